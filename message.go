package publink

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/jpalmerr/publink/internal/pipeline"
)

// DefaultWarningMessage is the message template used when none is configured.
const DefaultWarningMessage = "The project link {{.URL}} may not be publicly viewable."

// messageData is the value a warning message template is executed with.
type messageData struct {
	URL string
}

// ValidateWarningMessage reports whether tmpl is a usable warning message
// template.
func ValidateWarningMessage(tmpl string) error {
	_, err := compileMessage(tmpl)
	return err
}

// compileMessage parses tmpl and returns a renderer for it.
//
// The template is executed once against a sample URL so that errors surface
// at construction rather than during a run. If a later execution still fails,
// the default message is used.
func compileMessage(tmpl string) (pipeline.MessageFunc, error) {
	t, err := template.New("warning").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("invalid warning message template: %w", err)
	}

	var sb strings.Builder
	if err := t.Execute(&sb, messageData{URL: "https://example.com/projects/sample"}); err != nil {
		return nil, fmt.Errorf("invalid warning message template: %w", err)
	}

	return func(url string) string {
		var sb strings.Builder
		if err := t.Execute(&sb, messageData{URL: url}); err != nil {
			return pipeline.DefaultMessage(url)
		}
		return sb.String()
	}, nil
}
