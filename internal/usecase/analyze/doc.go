// Package analyze turns a merged pull request into one or more Markdown
// analysis reports. It gathers repository context, builds an LLM prompt
// sized to the complexity of the change, calls the model, and splits the
// possibly multilingual response into per-language reports.
package analyze

import "context"

// Logger records progress and anomalies during analysis.
type Logger interface {
	LogDebug(ctx context.Context, message string, fields map[string]interface{})
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogWarning(ctx context.Context, message string, fields map[string]interface{})
	LogError(ctx context.Context, message string, fields map[string]interface{})
}
