package analyze

import (
	"context"
	"strings"

	"github.com/prhythm/prhythm/internal/domain"
)

// Splitter divides a multilingual LLM response into per-language
// sections keyed by language code.
type Splitter struct {
	logger Logger
}

// NewSplitter creates a splitter. The logger may be nil.
func NewSplitter(logger Logger) *Splitter {
	return &Splitter{logger: logger}
}

// Split cuts the report at "---" delimiter lines and assigns each
// section to a language by its opening heading. Sections in languages
// outside the expected list are remapped to the first expected language,
// and a report with no recognizable sections is attributed whole to the
// first expected language (or English when none are configured).
func (s *Splitter) Split(ctx context.Context, report string, expected []string) map[string]string {
	result := map[string]string{}

	for _, section := range splitSections(report) {
		trimmed := strings.TrimSpace(section)
		if trimmed == "" {
			continue
		}

		lang := s.identify(ctx, trimmed, expected)
		if lang == "" {
			continue
		}
		if !contains(expected, lang) && len(expected) > 0 {
			s.warn(ctx, "remapping section to configured language", map[string]interface{}{
				"found":  lang,
				"mapped": expected[0],
			})
			lang = expected[0]
		}
		result[lang] = trimmed
	}

	if len(result) == 0 && strings.TrimSpace(report) != "" {
		fallback := "en"
		if len(expected) > 0 {
			fallback = expected[0]
		}
		result[fallback] = strings.TrimSpace(report)
	}

	for _, lang := range expected {
		if _, ok := result[lang]; !ok {
			s.warn(ctx, "expected language missing from report", map[string]interface{}{
				"language": lang,
			})
		}
	}

	return result
}

// identify determines the language of one section from its first
// non-blank line.
func (s *Splitter) identify(ctx context.Context, section string, expected []string) string {
	firstLine := ""
	for _, line := range strings.Split(section, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			firstLine = t
			break
		}
	}

	// Markers of the configured languages take priority.
	for _, code := range expected {
		lang, ok := domain.LookupLanguage(code)
		if !ok {
			continue
		}
		if matchesMarker(firstLine, lang.Markers) {
			return lang.Code
		}
	}

	// Then the full registry, so unexpected languages still get spotted.
	for _, lang := range domain.Languages() {
		if matchesMarker(firstLine, lang.Markers) {
			if !contains(expected, lang.Code) {
				s.warn(ctx, "found section in unconfigured language", map[string]interface{}{
					"language": lang.Code,
					"expected": strings.Join(expected, ", "),
				})
			}
			return lang.Code
		}
	}

	// Last resort: the language code itself appearing in the heading.
	lower := strings.ToLower(firstLine)
	for _, code := range expected {
		if strings.Contains(lower, code) {
			return code
		}
	}

	if len(expected) > 0 {
		s.warn(ctx, "could not identify section language, using default", map[string]interface{}{
			"default": expected[0],
		})
		return expected[0]
	}
	return ""
}

func (s *Splitter) warn(ctx context.Context, message string, fields map[string]interface{}) {
	if s.logger != nil {
		s.logger.LogWarning(ctx, message, fields)
	}
}

// splitSections cuts the report at lines consisting solely of dashes.
func splitSections(report string) []string {
	var sections []string
	var current []string
	for _, line := range strings.Split(report, "\n") {
		if isDelimiter(line) {
			sections = append(sections, strings.Join(current, "\n"))
			current = current[:0]
			continue
		}
		current = append(current, line)
	}
	sections = append(sections, strings.Join(current, "\n"))
	return sections
}

func isDelimiter(line string) bool {
	t := strings.TrimSpace(line)
	if len(t) < 3 {
		return false
	}
	for _, r := range t {
		if r != '-' {
			return false
		}
	}
	return true
}

func matchesMarker(line string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
