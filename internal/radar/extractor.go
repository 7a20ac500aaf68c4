package radar

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

var formatShapes = map[Format]*regexp.Regexp{
	FormatMajorMinor:      regexp.MustCompile(`^\d+\.\d+$`),
	FormatMajorMinorPatch: regexp.MustCompile(`^\d+\.\d+\.\d+$`),
	FormatFourPart:        regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`),
}

var errEmptySelector = errors.New("empty selector")

// Extractor turns page markup into a single version string.
type Extractor struct {
	query DocumentQuery
	match PatternMatch
}

// NewExtractor builds an Extractor. Nil collaborators fall back to the
// goquery document query and the regexp matcher.
func NewExtractor(query DocumentQuery, match PatternMatch) *Extractor {
	if query == nil {
		query = GoqueryDocument{}
	}
	if match == nil {
		match = RegexpMatcher{}
	}
	return &Extractor{query: query, match: match}
}

// Candidates lists every pattern match inside the selected nodes, in document
// order and, within a node, in match order. Malformed selectors or patterns are
// reported as ErrNoCandidates.
func (e *Extractor) Candidates(markup, selector, pattern string) ([]string, error) {
	texts, err := e.query.Texts(markup, selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCandidates, err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: selector %q matched nothing", ErrNoCandidates, selector)
	}
	var candidates []string
	for _, text := range texts {
		found, err := e.match.FindAll(text, pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoCandidates, err)
		}
		candidates = append(candidates, found...)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: pattern %q matched nothing", ErrNoCandidates, pattern)
	}
	return candidates, nil
}

// Extract selects the version for the given format from the page markup.
func (e *Extractor) Extract(markup, selector, pattern string, format Format) (string, error) {
	candidates, err := e.Candidates(markup, selector, pattern)
	if err != nil {
		return "", err
	}
	version, ok := SelectVersion(candidates, format)
	if !ok {
		return "", fmt.Errorf("%w %q among %d candidates", ErrNoFormatMatch, format, len(candidates))
	}
	return version, nil
}

// SelectVersion picks the first candidate whose whole string has the shape of
// format. Unrecognised formats return the first candidate.
func SelectVersion(candidates []string, format Format) (string, bool) {
	shape, known := formatShapes[format]
	if !known {
		if len(candidates) == 0 {
			return "", false
		}
		return candidates[0], true
	}
	for _, c := range candidates {
		if shape.MatchString(c) {
			return c, true
		}
	}
	return "", false
}

// Known reports whether f is one of the filtered formats.
func (f Format) Known() bool {
	_, ok := formatShapes[f]
	return ok
}

// GoqueryDocument implements DocumentQuery with goquery and cascadia.
type GoqueryDocument struct{}

// Texts parses markup and returns the trimmed text of each node matching selector.
func (GoqueryDocument) Texts(markup, selector string) ([]string, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, errEmptySelector
	}
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	selection := doc.FindMatcher(matcher)
	texts := make([]string, 0, selection.Length())
	selection.Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, strings.TrimSpace(s.Text()))
	})
	return texts, nil
}

// RegexpMatcher implements PatternMatch with the RE2 engine.
type RegexpMatcher struct{}

// FindAll compiles pattern and returns all of its non-empty, non-overlapping
// matches in text.
func (RegexpMatcher) FindAll(text, pattern string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	matches := re.FindAllString(text, -1)
	out := matches[:0]
	for _, m := range matches {
		if m != "" {
			out = append(out, m)
		}
	}
	return out, nil
}
