package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"marketing-studio/internal/prompt"
)

type Mode string

const (
	ModeSteps    Mode = "steps"
	ModeCombined Mode = "combined"
)

const (
	MinPromptLength = 50

	imageSize    = "1024x1536"
	imageQuality = "high"

	productMaxTokens  = 500
	styleMaxTokens    = 800
	combinedMaxTokens = 4000

	stepProduct = "product"
	stepStyle   = "style"
	stepFusion  = "fusion"
)

var stepsNotes = []string{
	"In style fusion the reference image only contributes photography and visual expression.",
	"Any product structure, material or proportion taken from the reference image is treated as invalid.",
}

// Upstream is the subset of the OpenAI client the orchestrator needs.
// *openai.Client satisfies it.
type Upstream interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error)
}

// NewUpstream points an OpenAI client at the gateway. The gateway injects
// the real credential, so no key is configured here.
func NewUpstream(apiBase string, httpClient *http.Client) *openai.Client {
	cfg := openai.DefaultConfig("")
	cfg.BaseURL = strings.TrimRight(apiBase, "/")
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

type Options struct {
	Upstream   Upstream
	ChatModel  string
	ImageModel string
	Mode       Mode
	Parallel   bool
	Logger     *slog.Logger
}

type Orchestrator struct {
	upstream   Upstream
	chatModel  string
	imageModel string
	mode       Mode
	parallel   bool
	logger     *slog.Logger
}

func New(opts Options) *Orchestrator {
	chatModel := strings.TrimSpace(opts.ChatModel)
	if chatModel == "" {
		chatModel = "gpt-5.2"
	}

	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = "gpt-image-1"
	}

	mode := opts.Mode
	if mode != ModeCombined {
		mode = ModeSteps
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Orchestrator{
		upstream:   opts.Upstream,
		chatModel:  chatModel,
		imageModel: imageModel,
		mode:       mode,
		parallel:   opts.Parallel,
		logger:     logger,
	}
}

func (o *Orchestrator) AnalyzeAndSuggest(ctx context.Context, reference, product ImagePayload) (*FusionResult, error) {
	if reference.IsZero() || product.IsZero() {
		return nil, fmt.Errorf("%w: reference and product images are required", ErrInvalidImage)
	}

	if o.mode == ModeCombined {
		return o.analyzeCombined(ctx, reference, product)
	}

	productDescription, referenceStyle, err := o.describeBoth(ctx, reference, product)
	if err != nil {
		return nil, err
	}

	generationPrompt := prompt.Fusion(referenceStyle, productDescription)
	o.logger.Debug("generation prompt assembled", "prompt", generationPrompt)

	result := &FusionResult{
		Reference: ReferenceAnalysis{
			SceneType:   "Style Reference",
			VisualStyle: referenceStyle,
		},
		Fusion: FusionSuggestion{
			ProductReplacement: ProductReplacement{
				OriginalProduct: "(reference product, excluded from fusion)",
				NewProduct:      productDescription,
			},
			Notes:            append([]string(nil), stepsNotes...),
			GenerationPrompt: generationPrompt,
		},
		ProductDescription: productDescription,
		ReferenceStyle:     referenceStyle,
	}
	fillEmptyLists(result)

	return result, nil
}

// describeBoth runs the product and style analyses. They do not depend on
// each other; in parallel mode the first failure cancels the other call.
func (o *Orchestrator) describeBoth(ctx context.Context, reference, product ImagePayload) (string, string, error) {
	if !o.parallel {
		productDescription, err := o.describe(ctx, stepProduct, prompt.ProductAnalysisInstruction, product, productMaxTokens)
		if err != nil {
			return "", "", err
		}
		referenceStyle, err := o.describe(ctx, stepStyle, prompt.StyleAnalysisInstruction, reference, styleMaxTokens)
		if err != nil {
			return "", "", err
		}
		return productDescription, referenceStyle, nil
	}

	var productDescription, referenceStyle string
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		productDescription, err = o.describe(egCtx, stepProduct, prompt.ProductAnalysisInstruction, product, productMaxTokens)
		return err
	})
	eg.Go(func() error {
		var err error
		referenceStyle, err = o.describe(egCtx, stepStyle, prompt.StyleAnalysisInstruction, reference, styleMaxTokens)
		return err
	})
	if err := eg.Wait(); err != nil {
		return "", "", err
	}
	return productDescription, referenceStyle, nil
}

func (o *Orchestrator) describe(ctx context.Context, step, instruction string, image ImagePayload, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{imagePart(image)}},
		},
		MaxCompletionTokens: maxTokens,
	}

	content, err := o.chat(ctx, req)
	if err != nil {
		o.logger.Error("analysis call failed", "step", step, "err", err)
		return "", &AnalysisError{Step: step, Err: err}
	}

	o.logger.Debug("analysis step done", "step", step, "text", content)
	return content, nil
}

func (o *Orchestrator) analyzeCombined(ctx context.Context, reference, product ImagePayload) (*FusionResult, error) {
	productDescription, err := o.describe(ctx, stepProduct, prompt.ProductAnalysisInstruction, product, productMaxTokens)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.CombinedAnalysisInstruction},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt.CombinedUserText(productDescription)},
				imagePart(reference),
				imagePart(product),
			}},
		},
		MaxCompletionTokens: combinedMaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	raw, err := o.chat(ctx, req)
	if err != nil {
		o.logger.Error("combined analysis call failed", "err", err)
		return nil, &AnalysisError{Step: stepFusion, Err: err}
	}

	result, err := ParseFusion(raw, productDescription)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			o.logger.Error("combined analysis parse failed", "err", perr.Err, "raw", perr.Raw)
		}
		return nil, &AnalysisError{Step: stepFusion, Err: err}
	}

	return result, nil
}

func (o *Orchestrator) chat(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if o.upstream == nil {
		return "", errors.New("upstream client is nil")
	}

	resp, err := o.upstream.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyContent
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage renders one portrait image. The returned outcome carries
// the prompt exactly as given.
func (o *Orchestrator) GenerateImage(ctx context.Context, p string) (*GenerationOutcome, error) {
	if utf8.RuneCountInString(strings.TrimSpace(p)) < MinPromptLength {
		return nil, ErrInvalidPrompt
	}
	if o.upstream == nil {
		return nil, &GenerationError{Message: "upstream client is nil", Prompt: p}
	}

	resp, err := o.upstream.CreateImage(ctx, openai.ImageRequest{
		Model:   o.imageModel,
		Prompt:  p,
		N:       1,
		Size:    imageSize,
		Quality: imageQuality,
	})
	if err != nil {
		cause := classify(err)
		o.logger.Error("image generation failed", "err", cause)
		return nil, &GenerationError{Message: cause.Error(), Prompt: p, Err: cause}
	}

	if len(resp.Data) == 0 {
		return nil, &GenerationError{Message: "vendor returned no image", Prompt: p}
	}

	// Inline bytes win over a hosted URL.
	var imageURL string
	switch d := resp.Data[0]; {
	case d.B64JSON != "":
		imageURL = "data:image/png;base64," + d.B64JSON
	case d.URL != "":
		imageURL = d.URL
	default:
		return nil, &GenerationError{Message: "vendor returned no image", Prompt: p}
	}

	return &GenerationOutcome{ImageURL: imageURL, Prompt: p}, nil
}

// GenerateFromProductWithPrompt describes the product afresh and renders
// it under the user's style text.
func (o *Orchestrator) GenerateFromProductWithPrompt(ctx context.Context, product ImagePayload, userStyle string) (*GenerationOutcome, error) {
	if product.IsZero() {
		return nil, fmt.Errorf("%w: product image is required", ErrInvalidImage)
	}
	if strings.TrimSpace(userStyle) == "" {
		return nil, ErrInvalidPrompt
	}

	productDescription, err := o.describe(ctx, stepProduct, prompt.ProductAnalysisInstruction, product, productMaxTokens)
	if err != nil {
		return nil, err
	}

	return o.GenerateImage(ctx, prompt.Direct(userStyle, productDescription))
}

func imagePart(image ImagePayload) openai.ChatMessagePart {
	return openai.ChatMessagePart{
		Type:     openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{URL: image.DataURL()},
	}
}
