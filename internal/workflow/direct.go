package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"marketing-studio/internal/studio"
)

type DirectOptions struct {
	Analyzer Analyzer
	Logger   *slog.Logger
}

// Direct is the single-image flow: a product image plus free-text style,
// upload -> generating -> complete.
type Direct struct {
	analyzer Analyzer
	logger   *slog.Logger

	mu           sync.Mutex
	epoch        uint64
	state        State
	product      studio.ImagePayload
	style        string
	outcome      *studio.GenerationOutcome
	errMsg       string
	regenerating bool
}

type DirectSnapshot struct {
	State        State                     `json:"state"`
	HasProduct   bool                      `json:"has_product"`
	Product      studio.ImagePayload       `json:"-"`
	Style        string                    `json:"style"`
	Outcome      *studio.GenerationOutcome `json:"outcome,omitempty"`
	Error        string                    `json:"error,omitempty"`
	Regenerating bool                      `json:"regenerating"`
}

func NewDirect(opts DirectOptions) *Direct {
	return &Direct{
		analyzer: opts.Analyzer,
		logger:   discardLogger(opts.Logger),
		state:    StateUpload,
	}
}

func (d *Direct) SetProduct(img studio.ImagePayload) error {
	if img.IsZero() {
		return fmt.Errorf("%w: empty image", studio.ErrInvalidImage)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateUpload {
		return ErrInvalidTransition
	}
	d.product = img
	d.errMsg = ""
	return nil
}

func (d *Direct) SetStyle(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateUpload {
		return ErrInvalidTransition
	}
	d.style = text
	return nil
}

func (d *Direct) Generate(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateUpload || d.product.IsZero() || strings.TrimSpace(d.style) == "" {
		d.mu.Unlock()
		return ErrInvalidTransition
	}
	d.state = StateGenerating
	d.errMsg = ""
	epoch := d.epoch
	product, style := d.product, d.style
	d.mu.Unlock()

	outcome, err := d.analyzer.GenerateFromProductWithPrompt(ctx, product, style)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.epoch != epoch {
		return ErrSuperseded
	}
	if err != nil {
		d.logger.Warn("direct generation failed", "err", err)
		d.state = StateUpload
		d.errMsg = err.Error()
		return err
	}

	d.outcome = outcome
	d.state = StateComplete
	return nil
}

func (d *Direct) Regenerate(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateComplete || d.regenerating {
		d.mu.Unlock()
		return ErrInvalidTransition
	}
	d.regenerating = true
	d.errMsg = ""
	epoch := d.epoch
	product, style := d.product, d.style
	d.mu.Unlock()

	outcome, err := d.analyzer.GenerateFromProductWithPrompt(ctx, product, style)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.epoch != epoch {
		return ErrSuperseded
	}
	d.regenerating = false
	if err != nil {
		d.logger.Warn("direct regeneration failed", "err", err)
		d.errMsg = err.Error()
		return err
	}

	d.outcome = outcome
	return nil
}

func (d *Direct) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.epoch++
	d.state = StateUpload
	d.product = studio.ImagePayload{}
	d.style = ""
	d.outcome = nil
	d.errMsg = ""
	d.regenerating = false
}

func (d *Direct) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Direct) Snapshot() DirectSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return DirectSnapshot{
		State:        d.state,
		HasProduct:   !d.product.IsZero(),
		Product:      d.product.Clone(),
		Style:        d.style,
		Outcome:      cloneOutcome(d.outcome),
		Error:        d.errMsg,
		Regenerating: d.regenerating,
	}
}
