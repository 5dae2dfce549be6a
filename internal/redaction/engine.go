// Package redaction scrubs credential-shaped strings from text before
// it is sent to a completion provider. Diffs and file contents pulled
// into prompts regularly contain keys committed by accident; every
// match is replaced with a placeholder that is stable for the same
// secret, so repeated occurrences stay correlatable in the output.
package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

const placeholderPrefix = "<REDACTED:"

// rule pairs a secret pattern with a short name used in logs and tests.
type rule struct {
	name string
	re   *regexp.Regexp
}

var defaultRules = []rule{
	{"openai-key", regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`)},
	{"anthropic-key", regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-]{20,}`)},
	{"github-token", regexp.MustCompile(`gh[posru]_[a-zA-Z0-9]{20,}`)},
	{"github-pat", regexp.MustCompile(`github_pat_[a-zA-Z0-9_]{20,}`)},
	{"aws-access-key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws-secret-key", regexp.MustCompile(`aws.{0,20}?['"][0-9a-zA-Z/+]{40}['"]`)},
	{"google-key", regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`)},
	{"slack-token", regexp.MustCompile(`xox[baprs]-[a-zA-Z0-9\-]{10,}`)},
	{"jwt", regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`)},
	{"bearer", regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_\-\.]+`)},
	{"private-key", regexp.MustCompile(`-----BEGIN\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----[\s\S]*?-----END\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----`)},
}

// Engine detects and replaces secrets using a fixed rule set.
type Engine struct {
	rules []rule
}

// NewEngine returns an engine with the default rule set.
func NewEngine() *Engine {
	return &Engine{rules: defaultRules}
}

// Redact replaces every detected secret with its placeholder. The same
// secret always maps to the same placeholder within and across calls.
func (e *Engine) Redact(input string) (string, error) {
	replacements := map[string]string{}
	for _, r := range e.rules {
		for _, match := range r.re.FindAllString(input, -1) {
			if _, ok := replacements[match]; !ok {
				replacements[match] = placeholder(match)
			}
		}
	}

	out := input
	for secret, repl := range replacements {
		out = strings.ReplaceAll(out, secret, repl)
	}
	return out, nil
}

// IsRedacted reports whether content already carries placeholders.
func (e *Engine) IsRedacted(content string) bool {
	return strings.Contains(content, placeholderPrefix)
}

// placeholder derives a stable tag from the secret's hash so identical
// secrets redact identically without retaining the value.
func placeholder(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("%s%s>", placeholderPrefix, hex.EncodeToString(sum[:])[:8])
}
