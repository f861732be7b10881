package workflow

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"marketing-studio/internal/studio"
)

type fakeAnalyzer struct {
	mu sync.Mutex

	analyzeErr  error
	generateErr error
	directErr   error

	// block, when set, holds the call until the channel is closed.
	block chan struct{}

	// minPrompt rejects shorter prompts the way the orchestrator guard does.
	minPrompt int

	prompts []string
	styles  []string
	calls   int
}

func (a *fakeAnalyzer) wait() {
	if a.block != nil {
		<-a.block
	}
}

func (a *fakeAnalyzer) AnalyzeAndSuggest(ctx context.Context, reference, product studio.ImagePayload) (*studio.FusionResult, error) {
	a.wait()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.analyzeErr != nil {
		return nil, a.analyzeErr
	}
	return &studio.FusionResult{
		Fusion:             studio.FusionSuggestion{GenerationPrompt: "analysis prompt"},
		ProductDescription: "a red coat",
		ReferenceStyle:     "soft light",
	}, nil
}

func (a *fakeAnalyzer) GenerateImage(ctx context.Context, p string) (*studio.GenerationOutcome, error) {
	a.wait()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.prompts = append(a.prompts, p)
	if len(p) < a.minPrompt {
		return nil, studio.ErrInvalidPrompt
	}
	if a.generateErr != nil {
		return nil, a.generateErr
	}
	return &studio.GenerationOutcome{ImageURL: "img-" + string(rune('0'+len(a.prompts))), Prompt: p}, nil
}

func (a *fakeAnalyzer) GenerateFromProductWithPrompt(ctx context.Context, product studio.ImagePayload, userStyle string) (*studio.GenerationOutcome, error) {
	a.wait()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.styles = append(a.styles, userStyle)
	if a.directErr != nil {
		return nil, a.directErr
	}
	return &studio.GenerationOutcome{ImageURL: "direct-" + string(rune('0'+len(a.styles))), Prompt: userStyle}, nil
}

func (a *fakeAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

var (
	refImage  = studio.ImagePayload{MimeType: "image/jpeg", Data: []byte("ref")}
	prodImage = studio.ImagePayload{MimeType: "image/png", Data: []byte("prod")}
)

func readyFusion(t *testing.T, a *fakeAnalyzer) *Fusion {
	t.Helper()
	f := NewFusion(FusionOptions{Analyzer: a})
	if err := f.SetReference(refImage); err != nil {
		t.Fatal(err)
	}
	if err := f.SetProduct(prodImage); err != nil {
		t.Fatal(err)
	}
	return f
}

func mustState(t *testing.T, got, want State) {
	t.Helper()
	if got != want {
		t.Fatalf("state = %s, want %s", got, want)
	}
}

func TestFusionHappyPath(t *testing.T) {
	a := &fakeAnalyzer{}
	f := readyFusion(t, a)
	ctx := context.Background()

	if err := f.Analyze(ctx); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	mustState(t, f.State(), StateReview)

	if err := f.Generate(ctx, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	mustState(t, f.State(), StateComplete)

	snap := f.Snapshot()
	if snap.Outcome == nil || snap.Outcome.Prompt != "analysis prompt" {
		t.Fatalf("unexpected outcome %+v", snap.Outcome)
	}

	if err := f.Regenerate(ctx); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	mustState(t, f.State(), StateComplete)
	if got := f.Snapshot().Outcome.ImageURL; got != "img-2" {
		t.Errorf("outcome not replaced, got %s", got)
	}

	if err := f.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	snap = f.Snapshot()
	mustState(t, snap.State, StateReview)
	if snap.Analysis == nil || snap.Outcome != nil {
		t.Error("back must keep the analysis and clear the outcome")
	}
}

func TestFusionCustomPromptIsReused(t *testing.T) {
	a := &fakeAnalyzer{}
	f := readyFusion(t, a)
	ctx := context.Background()

	if err := f.Analyze(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.Generate(ctx, "edited prompt"); err != nil {
		t.Fatal(err)
	}
	if err := f.Regenerate(ctx); err != nil {
		t.Fatal(err)
	}

	if len(a.prompts) != 2 || a.prompts[0] != "edited prompt" || a.prompts[1] != "edited prompt" {
		t.Errorf("unexpected prompts %v", a.prompts)
	}
	if got := f.Snapshot().Analysis.Fusion.GenerationPrompt; got != "edited prompt" {
		t.Errorf("analysis prompt = %q", got)
	}
}

func TestFusionFailedEditKeepsAnalysisPrompt(t *testing.T) {
	a := &fakeAnalyzer{minPrompt: 10}
	f := readyFusion(t, a)
	ctx := context.Background()

	if err := f.Analyze(ctx); err != nil {
		t.Fatal(err)
	}

	if err := f.Generate(ctx, "too short"); !errors.Is(err, studio.ErrInvalidPrompt) {
		t.Fatalf("expected ErrInvalidPrompt, got %v", err)
	}
	snap := f.Snapshot()
	mustState(t, snap.State, StateReview)
	if got := snap.Analysis.Fusion.GenerationPrompt; got != "analysis prompt" {
		t.Fatalf("failed edit leaked into the analysis: %q", got)
	}

	if err := f.Generate(ctx, ""); err != nil {
		t.Fatalf("retry with the analysis prompt: %v", err)
	}
	if got := f.Snapshot().Outcome.Prompt; got != "analysis prompt" {
		t.Errorf("outcome prompt = %q", got)
	}
}

func TestFusionFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("analysis failure returns to upload", func(t *testing.T) {
		a := &fakeAnalyzer{analyzeErr: errors.New("style analysis failed")}
		f := readyFusion(t, a)

		if err := f.Analyze(ctx); err == nil {
			t.Fatal("expected error")
		}
		snap := f.Snapshot()
		mustState(t, snap.State, StateUpload)
		if snap.Error != "style analysis failed" || snap.Analysis != nil {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if !snap.HasReference || !snap.HasProduct {
			t.Error("images must be kept for a retry")
		}

		if err := f.SetProduct(prodImage); err != nil {
			t.Fatal(err)
		}
		if f.Snapshot().Error != "" {
			t.Error("selecting an image clears the error")
		}
	})

	t.Run("generation failure returns to review", func(t *testing.T) {
		a := &fakeAnalyzer{}
		f := readyFusion(t, a)
		if err := f.Analyze(ctx); err != nil {
			t.Fatal(err)
		}

		a.generateErr = &studio.GenerationError{Message: "rejected", Prompt: "analysis prompt"}
		if err := f.Generate(ctx, ""); err == nil {
			t.Fatal("expected error")
		}
		snap := f.Snapshot()
		mustState(t, snap.State, StateReview)
		if snap.Analysis == nil {
			t.Error("analysis must be kept")
		}
		if snap.Error == "" {
			t.Error("error must be recorded")
		}
	})

	t.Run("regenerate failure keeps the previous outcome", func(t *testing.T) {
		a := &fakeAnalyzer{}
		f := readyFusion(t, a)
		if err := f.Analyze(ctx); err != nil {
			t.Fatal(err)
		}
		if err := f.Generate(ctx, ""); err != nil {
			t.Fatal(err)
		}

		a.generateErr = errors.New("vendor down")
		if err := f.Regenerate(ctx); err == nil {
			t.Fatal("expected error")
		}
		snap := f.Snapshot()
		mustState(t, snap.State, StateComplete)
		if snap.Outcome == nil || snap.Outcome.ImageURL != "img-1" {
			t.Errorf("previous outcome lost: %+v", snap.Outcome)
		}
		if snap.Error != "vendor down" || snap.Regenerating {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})
}

func TestFusionInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	a := &fakeAnalyzer{}
	f := NewFusion(FusionOptions{Analyzer: a})

	if err := f.Analyze(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("analyze without images: %v", err)
	}
	if err := f.Generate(ctx, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("generate from upload: %v", err)
	}
	if err := f.Regenerate(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("regenerate from upload: %v", err)
	}
	if err := f.Back(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("back from upload: %v", err)
	}
	if err := f.SetReference(studio.ImagePayload{}); !errors.Is(err, studio.ErrInvalidImage) {
		t.Errorf("empty image: %v", err)
	}
	if a.callCount() != 0 {
		t.Errorf("invalid triggers must not call the analyzer")
	}
	mustState(t, f.State(), StateUpload)

	f = readyFusion(t, a)
	if err := f.Analyze(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.SetReference(refImage); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("image selection in review: %v", err)
	}
	if err := f.Analyze(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("analyze from review: %v", err)
	}
	mustState(t, f.State(), StateReview)
}

func TestFusionOneOperationAtATime(t *testing.T) {
	a := &fakeAnalyzer{block: make(chan struct{})}
	f := readyFusion(t, a)

	done := make(chan error, 1)
	go func() { done <- f.Analyze(context.Background()) }()

	for f.State() != StateAnalyzing {
		runtime.Gosched()
	}
	if err := f.Analyze(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second analyze: %v", err)
	}

	close(a.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	mustState(t, f.State(), StateReview)
}

func TestFusionResetDuringAnalysis(t *testing.T) {
	a := &fakeAnalyzer{block: make(chan struct{})}
	f := readyFusion(t, a)

	done := make(chan error, 1)
	go func() { done <- f.Analyze(context.Background()) }()

	for f.State() != StateAnalyzing {
		runtime.Gosched()
	}
	f.Reset()
	close(a.block)

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	snap := f.Snapshot()
	mustState(t, snap.State, StateUpload)
	if snap.Analysis != nil || snap.HasReference {
		t.Error("late result must be dropped")
	}
}

func TestFusionResetFromEveryState(t *testing.T) {
	ctx := context.Background()
	steps := map[State]func(f *Fusion) error{
		StateUpload: func(f *Fusion) error { return nil },
		StateReview: func(f *Fusion) error { return f.Analyze(ctx) },
		StateComplete: func(f *Fusion) error {
			if err := f.Analyze(ctx); err != nil {
				return err
			}
			return f.Generate(ctx, "")
		},
	}

	for state, reach := range steps {
		t.Run(string(state), func(t *testing.T) {
			f := readyFusion(t, &fakeAnalyzer{})
			if err := reach(f); err != nil {
				t.Fatal(err)
			}
			mustState(t, f.State(), state)

			f.Reset()

			snap := f.Snapshot()
			if snap.State != StateUpload || snap.HasReference || snap.HasProduct ||
				snap.Analysis != nil || snap.Outcome != nil || snap.Error != "" || snap.Regenerating {
				t.Errorf("reset left state behind: %+v", snap)
			}
		})
	}
}

func TestFusionSnapshotIsACopy(t *testing.T) {
	f := readyFusion(t, &fakeAnalyzer{})
	if err := f.Analyze(context.Background()); err != nil {
		t.Fatal(err)
	}

	snap := f.Snapshot()
	snap.Analysis.Fusion.GenerationPrompt = "mutated"

	if got := f.Snapshot().Analysis.Fusion.GenerationPrompt; got != "analysis prompt" {
		t.Errorf("snapshot shares state: %q", got)
	}
}

func TestSnapshotImagesAreCopies(t *testing.T) {
	f := NewFusion(FusionOptions{Analyzer: &fakeAnalyzer{}})
	if err := f.SetReference(studio.ImagePayload{MimeType: "image/jpeg", Data: []byte("ref")}); err != nil {
		t.Fatal(err)
	}
	snap := f.Snapshot()
	snap.Reference.Data[0] = 'X'
	if got := string(f.Snapshot().Reference.Data); got != "ref" {
		t.Errorf("fusion snapshot shares image bytes: %q", got)
	}

	d := NewDirect(DirectOptions{Analyzer: &fakeAnalyzer{}})
	if err := d.SetProduct(studio.ImagePayload{MimeType: "image/png", Data: []byte("prod")}); err != nil {
		t.Fatal(err)
	}
	dsnap := d.Snapshot()
	dsnap.Product.Data[0] = 'X'
	if got := string(d.Snapshot().Product.Data); got != "prod" {
		t.Errorf("direct snapshot shares image bytes: %q", got)
	}
}

func TestDirectFlow(t *testing.T) {
	ctx := context.Background()
	a := &fakeAnalyzer{}
	d := NewDirect(DirectOptions{Analyzer: a})

	if err := d.Generate(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("generate without inputs: %v", err)
	}
	if err := d.SetProduct(prodImage); err != nil {
		t.Fatal(err)
	}
	if err := d.SetStyle("   "); err != nil {
		t.Fatal(err)
	}
	if err := d.Generate(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("generate with blank style: %v", err)
	}
	if err := d.SetStyle("autumn campaign"); err != nil {
		t.Fatal(err)
	}

	if err := d.Generate(ctx); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	mustState(t, d.State(), StateComplete)

	if err := d.SetStyle("other"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("style edit in complete: %v", err)
	}

	if err := d.Regenerate(ctx); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if got := d.Snapshot().Outcome.ImageURL; got != "direct-2" {
		t.Errorf("outcome not replaced: %s", got)
	}
	if len(a.styles) != 2 || a.styles[1] != "autumn campaign" {
		t.Errorf("unexpected styles %v", a.styles)
	}

	d.Reset()
	snap := d.Snapshot()
	if snap.State != StateUpload || snap.HasProduct || snap.Style != "" || snap.Outcome != nil || snap.Error != "" {
		t.Errorf("reset left state behind: %+v", snap)
	}
}

func TestDirectFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("generate failure returns to upload", func(t *testing.T) {
		a := &fakeAnalyzer{directErr: errors.New("product analysis failed")}
		d := NewDirect(DirectOptions{Analyzer: a})
		_ = d.SetProduct(prodImage)
		_ = d.SetStyle("autumn campaign")

		if err := d.Generate(ctx); err == nil {
			t.Fatal("expected error")
		}
		snap := d.Snapshot()
		mustState(t, snap.State, StateUpload)
		if snap.Error != "product analysis failed" || !snap.HasProduct || snap.Style != "autumn campaign" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})

	t.Run("regenerate failure keeps outcome", func(t *testing.T) {
		a := &fakeAnalyzer{}
		d := NewDirect(DirectOptions{Analyzer: a})
		_ = d.SetProduct(prodImage)
		_ = d.SetStyle("autumn campaign")
		if err := d.Generate(ctx); err != nil {
			t.Fatal(err)
		}

		a.directErr = errors.New("vendor down")
		if err := d.Regenerate(ctx); err == nil {
			t.Fatal("expected error")
		}
		snap := d.Snapshot()
		mustState(t, snap.State, StateComplete)
		if snap.Outcome == nil || snap.Outcome.ImageURL != "direct-1" || snap.Error != "vendor down" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})
}
