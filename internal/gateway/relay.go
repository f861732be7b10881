package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const MessageKeyNotConfigured = "API key not configured"

const (
	pathChatCompletions  = "/chat/completions"
	pathImageGenerations = "/images/generations"
)

type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Relay forwards request bodies to the vendor with the server-side
// credential attached. It holds no per-request state.
type Relay struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Result is the status and body to hand back to the caller unchanged.
type Result struct {
	Status int
	Body   []byte
}

type errorBody struct {
	Error errorMessage `json:"error"`
}

type errorMessage struct {
	Message string `json:"message"`
}

func New(opts Options) *Relay {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Relay{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (r *Relay) ChatCompletion(ctx context.Context, body []byte) Result {
	return r.forward(ctx, pathChatCompletions, body)
}

func (r *Relay) ImageGeneration(ctx context.Context, body []byte) Result {
	return r.forward(ctx, pathImageGenerations, body)
}

func (r *Relay) forward(ctx context.Context, path string, body []byte) Result {
	if r.apiKey == "" {
		return ErrorResult(http.StatusInternalServerError, MessageKeyNotConfigured)
	}

	url := r.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		r.logger.Error("relay request build failed", "path", path, "err", err)
		return ErrorResult(http.StatusInternalServerError, err.Error())
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("authorization", "Bearer "+r.apiKey)

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		r.logger.Error("relay request failed", "path", path, "err", err)
		return ErrorResult(http.StatusInternalServerError, fmt.Sprintf("upstream request failed: %v", err))
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		r.logger.Error("relay response read failed", "path", path, "err", err)
		return ErrorResult(http.StatusInternalServerError, fmt.Sprintf("read upstream response: %v", err))
	}

	if httpResp.StatusCode >= 400 {
		r.logger.Warn("vendor returned error", "path", path, "status", httpResp.StatusCode)
	}

	return Result{Status: httpResp.StatusCode, Body: rawBody}
}

// ErrorResult builds the {"error":{"message":...}} shape the vendor uses,
// so callers see one error format whether it came from us or upstream.
func ErrorResult(status int, message string) Result {
	body, _ := json.Marshal(errorBody{Error: errorMessage{Message: message}})
	return Result{Status: status, Body: body}
}
