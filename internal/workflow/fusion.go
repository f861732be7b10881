package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"marketing-studio/internal/studio"
)

type FusionOptions struct {
	Analyzer Analyzer
	Logger   *slog.Logger
}

// Fusion drives the two-image flow:
// upload -> analyzing -> review -> generating -> complete.
// Calls to the analyzer run without holding the lock; the state itself
// keeps a second operation from starting.
type Fusion struct {
	analyzer Analyzer
	logger   *slog.Logger

	mu           sync.Mutex
	epoch        uint64
	state        State
	reference    studio.ImagePayload
	product      studio.ImagePayload
	analysis     *studio.FusionResult
	outcome      *studio.GenerationOutcome
	errMsg       string
	regenerating bool
}

type FusionSnapshot struct {
	State        State                     `json:"state"`
	HasReference bool                      `json:"has_reference"`
	HasProduct   bool                      `json:"has_product"`
	Reference    studio.ImagePayload       `json:"-"`
	Product      studio.ImagePayload       `json:"-"`
	Analysis     *studio.FusionResult      `json:"analysis,omitempty"`
	Outcome      *studio.GenerationOutcome `json:"outcome,omitempty"`
	Error        string                    `json:"error,omitempty"`
	Regenerating bool                      `json:"regenerating"`
}

func NewFusion(opts FusionOptions) *Fusion {
	return &Fusion{
		analyzer: opts.Analyzer,
		logger:   discardLogger(opts.Logger),
		state:    StateUpload,
	}
}

func (f *Fusion) SetReference(img studio.ImagePayload) error {
	return f.setImage(img, &f.reference)
}

func (f *Fusion) SetProduct(img studio.ImagePayload) error {
	return f.setImage(img, &f.product)
}

func (f *Fusion) setImage(img studio.ImagePayload, slot *studio.ImagePayload) error {
	if img.IsZero() {
		return fmt.Errorf("%w: empty image", studio.ErrInvalidImage)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateUpload {
		return ErrInvalidTransition
	}
	*slot = img
	f.errMsg = ""
	return nil
}

func (f *Fusion) Analyze(ctx context.Context) error {
	f.mu.Lock()
	if f.state != StateUpload || f.reference.IsZero() || f.product.IsZero() {
		f.mu.Unlock()
		return ErrInvalidTransition
	}
	f.state = StateAnalyzing
	f.errMsg = ""
	epoch := f.epoch
	reference, product := f.reference, f.product
	f.mu.Unlock()

	result, err := f.analyzer.AnalyzeAndSuggest(ctx, reference, product)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.epoch != epoch {
		return ErrSuperseded
	}
	if err != nil {
		f.logger.Warn("analysis failed", "err", err)
		f.state = StateUpload
		f.errMsg = err.Error()
		return err
	}

	f.analysis = result
	f.state = StateReview
	return nil
}

// Generate renders from review. A non-blank custom prompt replaces the
// analysis prompt once the render succeeds, so a later Regenerate sends
// the same text. A failed render leaves the analysis untouched.
func (f *Fusion) Generate(ctx context.Context, custom string) error {
	f.mu.Lock()
	if f.state != StateReview || f.analysis == nil {
		f.mu.Unlock()
		return ErrInvalidTransition
	}
	p := f.analysis.Fusion.GenerationPrompt
	edited := strings.TrimSpace(custom) != ""
	if edited {
		p = custom
	}
	f.state = StateGenerating
	f.errMsg = ""
	epoch := f.epoch
	f.mu.Unlock()

	outcome, err := f.analyzer.GenerateImage(ctx, p)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.epoch != epoch {
		return ErrSuperseded
	}
	if err != nil {
		f.logger.Warn("generation failed", "err", err)
		f.state = StateReview
		f.errMsg = err.Error()
		return err
	}

	if edited {
		f.analysis.Fusion.GenerationPrompt = p
	}
	f.outcome = outcome
	f.state = StateComplete
	return nil
}

// Regenerate re-renders the current prompt while staying in complete. The
// previous outcome is only replaced on success.
func (f *Fusion) Regenerate(ctx context.Context) error {
	f.mu.Lock()
	if f.state != StateComplete || f.regenerating || f.analysis == nil {
		f.mu.Unlock()
		return ErrInvalidTransition
	}
	f.regenerating = true
	f.errMsg = ""
	p := f.analysis.Fusion.GenerationPrompt
	epoch := f.epoch
	f.mu.Unlock()

	outcome, err := f.analyzer.GenerateImage(ctx, p)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.epoch != epoch {
		return ErrSuperseded
	}
	f.regenerating = false
	if err != nil {
		f.logger.Warn("regeneration failed", "err", err)
		f.errMsg = err.Error()
		return err
	}

	f.outcome = outcome
	return nil
}

// Back returns to review from complete, keeping the analysis.
func (f *Fusion) Back() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateComplete || f.regenerating {
		return ErrInvalidTransition
	}
	f.outcome = nil
	f.state = StateReview
	return nil
}

// Reset is valid from any state. A call still in flight finds the epoch
// moved on and drops its result.
func (f *Fusion) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.epoch++
	f.state = StateUpload
	f.reference = studio.ImagePayload{}
	f.product = studio.ImagePayload{}
	f.analysis = nil
	f.outcome = nil
	f.errMsg = ""
	f.regenerating = false
}

func (f *Fusion) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Fusion) Snapshot() FusionSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	return FusionSnapshot{
		State:        f.state,
		HasReference: !f.reference.IsZero(),
		HasProduct:   !f.product.IsZero(),
		Reference:    f.reference.Clone(),
		Product:      f.product.Clone(),
		Analysis:     f.analysis.Clone(),
		Outcome:      cloneOutcome(f.outcome),
		Error:        f.errMsg,
		Regenerating: f.regenerating,
	}
}
