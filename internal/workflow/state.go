package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"marketing-studio/internal/studio"
)

type State string

const (
	StateUpload     State = "upload"
	StateAnalyzing  State = "analyzing"
	StateReview     State = "review"
	StateGenerating State = "generating"
	StateComplete   State = "complete"
)

var (
	ErrInvalidTransition = errors.New("action not allowed in the current state")
	// ErrSuperseded is returned when the session was reset while a call
	// was in flight; the late result is dropped.
	ErrSuperseded = errors.New("session was reset during the operation")
)

// Analyzer is what the workflow needs from the orchestrator.
type Analyzer interface {
	AnalyzeAndSuggest(ctx context.Context, reference, product studio.ImagePayload) (*studio.FusionResult, error)
	GenerateImage(ctx context.Context, prompt string) (*studio.GenerationOutcome, error)
	GenerateFromProductWithPrompt(ctx context.Context, product studio.ImagePayload, userStyle string) (*studio.GenerationOutcome, error)
}

func discardLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}

func cloneOutcome(o *studio.GenerationOutcome) *studio.GenerationOutcome {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
