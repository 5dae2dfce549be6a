package domain

import (
	"strings"

	"golang.org/x/text/language"
)

// Language identifies a report output language by its lowercase code
// (e.g. "en", "zh-cn", "ja").
type Language struct {
	Code    string   // canonical lowercase code
	Name    string   // display name used in prompts and logs
	Markers []string // heading lines that open a section in this language
}

// supportedLanguages is the registry of languages the pipeline can emit,
// in marker-matching priority order.
var supportedLanguages = []Language{
	{
		Code: "en", Name: "English",
		Markers: []string{"# English Version", "# English"},
	},
	{
		Code: "zh-cn", Name: "中文 (Chinese)",
		Markers: []string{"# 中文版本", "# Chinese Version", "# 中文版本 (Chinese Version)", "# Chinese"},
	},
	{
		Code: "ja", Name: "日本語 (Japanese)",
		Markers: []string{"# 日本語版", "# Japanese Version", "# 日本語版 (Japanese Version)", "# Japanese"},
	},
	{
		Code: "ko", Name: "한국어 (Korean)",
		Markers: []string{"# 한국어 버전", "# Korean Version", "# 한국어 버전 (Korean Version)", "# Korean"},
	},
	{
		Code: "fr", Name: "Français (French)",
		Markers: []string{"# Version Française", "# French Version", "# Version Française (French Version)", "# French", "# Français"},
	},
	{
		Code: "de", Name: "Deutsch (German)",
		Markers: []string{"# Deutsche Version", "# German Version", "# Deutsche Version (German Version)", "# German", "# Deutsch"},
	},
	{
		Code: "es", Name: "Español (Spanish)",
		Markers: []string{"# Versión en Español", "# Spanish Version", "# Versión en Español (Spanish Version)", "# Spanish", "# Español"},
	},
}

// languageAliases maps common shorthand codes onto canonical ones.
var languageAliases = map[string]string{
	"zh": "zh-cn",
	"cn": "zh-cn",
	"jp": "ja",
	"kr": "ko",
}

// Languages returns the registry of supported languages.
func Languages() []Language {
	out := make([]Language, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}

// LookupLanguage finds a supported language by code. Aliases such as
// "jp" or "zh" are accepted; unknown codes are additionally run through
// BCP 47 parsing so that variants like "zh-CN" or "en-US" resolve.
func LookupLanguage(code string) (Language, bool) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if alias, ok := languageAliases[normalized]; ok {
		normalized = alias
	}
	for _, l := range supportedLanguages {
		if l.Code == normalized {
			return l, true
		}
	}

	tag, err := language.Parse(normalized)
	if err != nil {
		return Language{}, false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return Language{}, false
	}
	baseCode := base.String()
	if baseCode == "zh" {
		baseCode = "zh-cn"
	}
	for _, l := range supportedLanguages {
		if l.Code == baseCode {
			return l, true
		}
	}
	return Language{}, false
}

// LanguageName returns the display name for a code, falling back to the
// code itself for unsupported languages.
func LanguageName(code string) string {
	if l, ok := LookupLanguage(code); ok {
		return l.Name
	}
	return code
}

// NormalizeLanguages maps raw config codes onto canonical ones,
// dropping duplicates while preserving order. Unknown codes are kept
// as-is so that the caller can warn about them.
func NormalizeLanguages(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		canonical := strings.ToLower(strings.TrimSpace(code))
		if l, ok := LookupLanguage(code); ok {
			canonical = l.Code
		}
		if canonical == "" || seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out
}
