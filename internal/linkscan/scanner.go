package linkscan

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoPrefixes is returned by [New] when the prefix set is empty.
var ErrNoPrefixes = errors.New("at least one url prefix is required")

// tailPattern matches the project path after a prefix. It stops at whitespace,
// quotes, angle brackets and bracket pairs so markdown and HTML wrappers are
// not swallowed into the URL.
const tailPattern = `([^\s<>"'()\[\]{}]+)`

// trailingPunct is stripped from the end of a match; it almost always belongs
// to the surrounding sentence.
const trailingPunct = ".,;:!?"

// Scanner matches project links against a fixed set of URL prefixes.
//
// Scanner is immutable after [New] and safe for concurrent use.
type Scanner struct {
	prefixes []string
	re       *regexp.Regexp
}

// New compiles a [Scanner] for the given URL prefixes.
//
// Prefixes are matched literally and case-insensitively. Returns
// [ErrNoPrefixes] if prefixes is empty, or an error if any prefix is blank.
func New(prefixes []string) (*Scanner, error) {
	if len(prefixes) == 0 {
		return nil, ErrNoPrefixes
	}

	cleaned := make([]string, 0, len(prefixes))
	for i, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("url prefix %d is empty", i)
		}
		cleaned = append(cleaned, p)
	}

	// longest first so a prefix never shadows a more specific one
	ordered := append([]string(nil), cleaned...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i]) > len(ordered[j])
	})

	alts := make([]string, len(ordered))
	for i, p := range ordered {
		alts[i] = regexp.QuoteMeta(p)
	}

	re, err := regexp.Compile(`(?i)(?:` + strings.Join(alts, "|") + `)` + tailPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile url prefixes: %w", err)
	}

	return &Scanner{prefixes: cleaned, re: re}, nil
}

// Prefixes returns a copy of the configured URL prefixes.
func (s *Scanner) Prefixes() []string {
	return append([]string(nil), s.prefixes...)
}

// Extract returns every link in text, in order of appearance.
//
// Duplicates are preserved. The returned strings keep the casing used in
// text. Extract never fails; text without links yields an empty slice.
func (s *Scanner) Extract(text string) []string {
	matches := s.re.FindAllStringSubmatchIndex(text, -1)
	links := make([]string, 0, len(matches))

	for _, m := range matches {
		start, tailStart, tailEnd := m[0], m[2], m[3]
		tail := strings.TrimRight(text[tailStart:tailEnd], trailingPunct)
		if tail == "" {
			continue
		}
		links = append(links, text[start:tailStart+len(tail)])
	}

	return links
}

// Unique returns the distinct links in text, ordered by first occurrence.
func (s *Scanner) Unique(text string) []string {
	return dedupe(s.Extract(text))
}

// ExtractHTML returns the distinct links found in an HTML fragment.
//
// Anchor href values and text nodes are scanned in document order, so a
// link that appears both as href and as its own label is reported once.
// Script and style content is ignored.
func (s *Scanner) ExtractHTML(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script,noscript,style").Remove()

	var links []string
	var walk func(sel *goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, node *goquery.Selection) {
			switch goquery.NodeName(node) {
			case "#text":
				// text nodes are scanned one at a time so adjacent blocks
				// never glue into a single bogus URL
				links = append(links, s.Extract(node.Text())...)
			case "a":
				if href, ok := node.Attr("href"); ok {
					links = append(links, s.Extract(href)...)
				}
				walk(node)
			default:
				walk(node)
			}
		})
	}
	walk(doc.Selection)

	return dedupe(links), nil
}

func dedupe(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
