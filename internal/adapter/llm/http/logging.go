package http

import (
	"fmt"
	"regexp"
)

// MaxLoggedResponseLength is the maximum length of response text to
// include in logs. Responses longer than this are truncated so raw
// report content never lands in log aggregators.
const MaxLoggedResponseLength = 200

// TruncateForLogging returns the first MaxLoggedResponseLength
// characters plus a truncation indicator if truncated.
func TruncateForLogging(response string) string {
	if len(response) <= MaxLoggedResponseLength {
		return response
	}
	return response[:MaxLoggedResponseLength] + fmt.Sprintf("... [truncated, total length=%d bytes]", len(response))
}

var urlSecretParams = []string{
	"key",
	"apiKey",
	"api_key",
	"token",
	"access_token",
}

// RedactURLSecrets redacts API keys and tokens from URLs that appear in
// error messages, e.g. "?key=secret123" becomes "?key=[REDACTED]".
func RedactURLSecrets(text string) string {
	if text == "" {
		return text
	}

	result := text
	for _, param := range urlSecretParams {
		re := regexp.MustCompile(param + `=([^&"\s]+)`)
		result = re.ReplaceAllString(result, param+"=[REDACTED]")
	}
	return result
}
