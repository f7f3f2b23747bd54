// Package linkscan finds candidate project links in free text.
//
// This package is internal to publink. A [Scanner] is built from a set of
// URL prefixes (for example "https://easel.com/projects/") and returns every
// substring of the input that starts with one of them. Matching is
// case-insensitive and has no side effects, so scanning the same text twice
// always yields the same result.
//
// The main components are:
//
//   - [Scanner]: compiled prefix matcher
//   - [Scanner.Extract]: every match in order, duplicates preserved
//   - [Scanner.Unique]: distinct matches in order of first occurrence
//   - [Scanner.ExtractHTML]: matches found in a rendered HTML preview
package linkscan
