package studio

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

const keyNotConfigured = "API key not configured"

var (
	ErrConfiguration = errors.New("upstream credential not configured")
	ErrTransport     = errors.New("upstream unreachable")
	ErrInvalidPrompt = errors.New("prompt is empty or too short")
	ErrEmptyContent  = errors.New("model returned no content")
)

// VendorError is a non-success answer from the vendor, as relayed by the
// gateway.
type VendorError struct {
	Status  int
	Message string
}

func (e *VendorError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("vendor error (status %d)", e.Status)
	}
	return e.Message
}

// ParseError keeps the raw model output for logs. Error() never includes it.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return "could not parse analysis result"
}

func (e *ParseError) Unwrap() error { return e.Err }

// AnalysisError marks which analysis step failed.
type AnalysisError struct {
	Step string
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s analysis failed: %v", e.Step, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// GenerationError carries the exact prompt that was sent so it can be
// judged against the vendor message.
type GenerationError struct {
	Message string
	Prompt  string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s\n\n[prompt]:\n%s", e.Message, e.Prompt)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// classify maps an OpenAI client error into the studio taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusInternalServerError && apiErr.Message == keyNotConfigured {
			return fmt.Errorf("%w: %s", ErrConfiguration, apiErr.Message)
		}
		return &VendorError{Status: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if len(reqErr.Body) > 0 {
			msg = string(reqErr.Body)
		}
		return &VendorError{Status: reqErr.HTTPStatusCode, Message: msg}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf("%w: %v", ErrTransport, err)
}
