package handlers

import (
	"strings"

	"marketing-studio/internal/locale"
	"marketing-studio/internal/studio"
)

// RenderReview formats an analysis for the review step: product facts
// first, then the borrowed style, notes, and the prompt that will be sent.
func RenderReview(m locale.Messages, r *studio.FusionResult) string {
	var b strings.Builder

	b.WriteString(m.ReviewHeader)
	b.WriteString("\n\n")

	writeBlock(&b, m.ProductHeader, r.ProductDescription)
	writeBlock(&b, m.StyleHeader, r.ReferenceStyle)

	if len(r.Fusion.Notes) > 0 {
		b.WriteString(m.NotesHeader + ":\n")
		for _, n := range r.Fusion.Notes {
			b.WriteString("- " + strings.TrimSpace(n) + "\n")
		}
		b.WriteString("\n")
	}

	writeBlock(&b, m.PromptHeader, r.Fusion.GenerationPrompt)
	b.WriteString(m.ReviewHint)

	return b.String()
}

func writeBlock(b *strings.Builder, title, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	b.WriteString(title + ":\n")
	b.WriteString(body)
	b.WriteString("\n\n")
}
