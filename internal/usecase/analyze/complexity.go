package analyze

import (
	"strings"

	"github.com/prhythm/prhythm/internal/domain"
)

// Complexity holds the computed complexity score for a pull request together
// with the LLM sampling parameters derived from it.
type Complexity struct {
	Score            int
	FilesChanged     int
	LinesChanged     int
	DescriptionChars int

	MaxTokens        int
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
}

// ScoreComplexity rates a pull request on file count, total churn, and
// description length, then picks generation parameters to match. Larger
// changes get more output tokens and a lower temperature.
func ScoreComplexity(pr *domain.PullRequest) Complexity {
	c := Complexity{
		FilesChanged:     len(pr.Files),
		LinesChanged:     pr.TotalChanges(),
		DescriptionChars: len(pr.Body),
	}

	switch {
	case c.FilesChanged > 20:
		c.Score += 3
	case c.FilesChanged > 10:
		c.Score += 2
	case c.FilesChanged > 5:
		c.Score++
	}

	switch {
	case c.LinesChanged > 1000:
		c.Score += 3
	case c.LinesChanged > 500:
		c.Score += 2
	case c.LinesChanged > 100:
		c.Score++
	}

	switch {
	case c.DescriptionChars > 2000:
		c.Score += 2
	case c.DescriptionChars > 1000:
		c.Score++
	}

	switch {
	case c.Score >= 6:
		c.MaxTokens = 8000
		c.Temperature = 0.2
	case c.Score >= 3:
		c.MaxTokens = 6000
		c.Temperature = 0.3
	default:
		c.MaxTokens = 4000
		c.Temperature = 0.3
	}
	if c.Score <= 2 {
		c.Temperature = 0.4
	}

	if c.Score >= 3 {
		c.TopP = 0.95
		c.FrequencyPenalty = 0.1
	} else {
		c.TopP = 0.9
		c.FrequencyPenalty = 0
	}

	return c
}

// ScaleTokens raises the token budget for very large prompts and then clamps
// it to what the target model can actually emit.
func ScaleTokens(base int, promptLen int, model string) int {
	tokens := base
	switch {
	case promptLen > 100000:
		tokens = min(16000, base*2)
	case promptLen > 50000:
		tokens = min(12000, base*3/2)
	case promptLen > 20000:
		tokens = min(8000, base*6/5)
	}

	switch {
	case strings.HasPrefix(model, "gpt-4"):
		if tokens > 16000 {
			tokens = 16000
		}
	case strings.HasPrefix(model, "gpt-3.5"):
		if tokens > 4000 {
			tokens = 4000
		}
	}
	return tokens
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
