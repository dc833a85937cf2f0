// Package regexstrat implements the RegexExtractionStrategy (§4.4):
// ordered named patterns evaluated over markdown/plain text, grounded
// on internal/crawler/selector.go's regexp.Compile usage — stdlib
// regexp is the ecosystem-standard choice here, not a gap.
package regexstrat

import (
	"context"
	"fmt"
	"regexp"
)

// Pattern is one named capture rule. Group picks which submatch's text
// becomes the value (0 = whole match); a match that has no such group
// contributes no value.
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
	Group int
}

// Strategy evaluates an ordered list of Patterns, each producing all
// of its matches as a string slice keyed by Name.
type Strategy struct {
	Patterns []Pattern
}

func New(patterns ...Pattern) *Strategy {
	return &Strategy{Patterns: patterns}
}

// Compile builds a Pattern from a regex string, returning an error if
// it fails to compile rather than panicking at extraction time.
func Compile(name, pattern string, group int) (Pattern, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Pattern{}, fmt.Errorf("regexstrat: compile %q: %w", name, err)
	}
	return Pattern{Name: name, Regex: re, Group: group}, nil
}

func (s *Strategy) Name() string { return "regex" }

func (s *Strategy) Extract(ctx context.Context, content string) (any, error) {
	out := make(map[string][]string, len(s.Patterns))
	for _, p := range s.Patterns {
		matches := p.Regex.FindAllStringSubmatch(content, -1)
		values := make([]string, 0, len(matches))
		for _, m := range matches {
			if p.Group < len(m) {
				values = append(values, m[p.Group])
			}
		}
		out[p.Name] = values
	}
	return out, nil
}
