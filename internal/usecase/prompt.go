package usecase

import (
	"fmt"
	"strings"

	"rag-chat/internal/domain"
)

// DefaultSystemPrompt seeds sessions when no prompt is configured.
const DefaultSystemPrompt = "You are a travel assistant that provides information on travel service"

// FormatCitations renders citations as a numbered list matching the [docN]
// markers the retrieval service puts in replies.
func FormatCitations(citations []domain.Citation) string {
	lines := make([]string, 0, len(citations))
	for i, c := range citations {
		label := firstNonEmpty(c.Title, c.FilePath, c.URL, "untitled")
		line := fmt.Sprintf("[doc%d] %s", i+1, label)
		if c.URL != "" && c.URL != label {
			line += " (" + c.URL + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
