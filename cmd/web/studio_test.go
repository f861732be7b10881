package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"marketing-studio/internal/gateway"
	"marketing-studio/internal/prompt"
	"marketing-studio/internal/session"
	"marketing-studio/internal/studio"
	"marketing-studio/internal/workflow"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubAnalyzer struct {
	generateErr error
}

func (s *stubAnalyzer) AnalyzeAndSuggest(ctx context.Context, reference, product studio.ImagePayload) (*studio.FusionResult, error) {
	return &studio.FusionResult{
		Fusion:             studio.FusionSuggestion{GenerationPrompt: "suggested prompt"},
		ProductDescription: "a camel trench coat",
		ReferenceStyle:     "backlit",
	}, nil
}

func (s *stubAnalyzer) GenerateImage(ctx context.Context, p string) (*studio.GenerationOutcome, error) {
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	return &studio.GenerationOutcome{ImageURL: "data:image/png;base64,AAAA", Prompt: p}, nil
}

func (s *stubAnalyzer) GenerateFromProductWithPrompt(ctx context.Context, product studio.ImagePayload, userStyle string) (*studio.GenerationOutcome, error) {
	return &studio.GenerationOutcome{ImageURL: "https://cdn.example.com/d.png", Prompt: "direct " + userStyle}, nil
}

func newTestServer(t *testing.T, relay *gateway.Relay, a workflow.Analyzer) *httptest.Server {
	t.Helper()
	store := session.NewStore(session.Options{Analyzer: a})
	srv := httptest.NewServer(newRouter(relay, newStudioAPI(store, 5*time.Second, discard)))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, method, url, contentType string, body io.Reader) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: response is not JSON: %s", method, url, raw)
		}
	}
	return resp.StatusCode, out
}

func jsonBody(v any) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func multipartImage(t *testing.T, mime string, data []byte) (string, io.Reader) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="product.png"`)
	h.Set("Content-Type", mime)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()
	return mw.FormDataContentType(), &buf
}

func fusionState(t *testing.T, body map[string]any) string {
	t.Helper()
	fusion, _ := body["fusion"].(map[string]any)
	state, _ := fusion["state"].(string)
	return state
}

func TestStudioAPIFusionFlow(t *testing.T) {
	srv := newTestServer(t, gateway.New(gateway.Options{}), &stubAnalyzer{})

	status, created := call(t, http.MethodPost, srv.URL+"/api/studio/sessions", "", nil)
	if status != http.StatusCreated {
		t.Fatalf("create: %d", status)
	}
	id, _ := created["id"].(string)
	base := srv.URL + "/api/studio/sessions/" + id

	status, body := call(t, http.MethodPost, base+"/analyze", "", nil)
	if status != http.StatusConflict {
		t.Errorf("analyze without images: %d %v", status, body)
	}

	status, _ = call(t, http.MethodPut, base+"/images/reference", "application/json",
		jsonBody(imageRequest{Image: dataURL("image/jpeg", []byte("ref"))}))
	if status != http.StatusOK {
		t.Fatalf("reference upload: %d", status)
	}

	ct, mp := multipartImage(t, "image/png", []byte("prod"))
	status, body = call(t, http.MethodPut, base+"/images/product", ct, mp)
	if status != http.StatusOK {
		t.Fatalf("product upload: %d %v", status, body)
	}
	fusion := body["fusion"].(map[string]any)
	if fusion["has_reference"] != true || fusion["has_product"] != true {
		t.Errorf("images not recorded: %v", fusion)
	}

	status, body = call(t, http.MethodPost, base+"/analyze", "", nil)
	if status != http.StatusOK || fusionState(t, body) != string(workflow.StateReview) {
		t.Fatalf("analyze: %d %v", status, body)
	}

	status, _ = call(t, http.MethodPut, base+"/images/reference", "application/json",
		jsonBody(imageRequest{Image: dataURL("image/jpeg", []byte("ref2"))}))
	if status != http.StatusConflict {
		t.Errorf("image change in review: %d", status)
	}

	status, body = call(t, http.MethodPost, base+"/generate", "application/json", jsonBody(generateRequest{Prompt: "edited"}))
	if status != http.StatusOK || fusionState(t, body) != string(workflow.StateComplete) {
		t.Fatalf("generate: %d %v", status, body)
	}
	outcome := body["fusion"].(map[string]any)["outcome"].(map[string]any)
	if outcome["prompt"] != "edited" {
		t.Errorf("edited prompt not sent: %v", outcome)
	}

	status, _ = call(t, http.MethodPost, base+"/regenerate", "", nil)
	if status != http.StatusOK {
		t.Errorf("regenerate: %d", status)
	}

	status, body = call(t, http.MethodPost, base+"/back", "", nil)
	if status != http.StatusOK || fusionState(t, body) != string(workflow.StateReview) {
		t.Errorf("back: %d %v", status, body)
	}

	status, body = call(t, http.MethodPost, base+"/reset", "", nil)
	if status != http.StatusOK || fusionState(t, body) != string(workflow.StateUpload) {
		t.Errorf("reset: %d %v", status, body)
	}

	status, _ = call(t, http.MethodDelete, base, "", nil)
	if status != http.StatusNoContent {
		t.Errorf("delete: %d", status)
	}
	status, _ = call(t, http.MethodGet, base, "", nil)
	if status != http.StatusNotFound {
		t.Errorf("get after delete: %d", status)
	}
}

func TestStudioAPIErrors(t *testing.T) {
	a := &stubAnalyzer{}
	srv := newTestServer(t, gateway.New(gateway.Options{}), a)

	status, _ := call(t, http.MethodGet, srv.URL+"/api/studio/sessions/nope", "", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown session: %d", status)
	}

	_, created := call(t, http.MethodPost, srv.URL+"/api/studio/sessions", "", nil)
	base := srv.URL + "/api/studio/sessions/" + created["id"].(string)

	status, _ = call(t, http.MethodPut, base+"/images/reference", "application/json",
		jsonBody(imageRequest{Image: dataURL("text/plain", []byte("hello"))}))
	if status != http.StatusBadRequest {
		t.Errorf("non-image upload: %d", status)
	}

	_, _ = call(t, http.MethodPut, base+"/direct/style", "application/json", jsonBody(styleRequest{Style: "autumn"}))
	status, _ = call(t, http.MethodPut, base+"/images/logo", "application/json",
		jsonBody(imageRequest{Image: dataURL("image/png", []byte("x"))}))
	if status != http.StatusNotFound {
		t.Errorf("unknown role: %d", status)
	}
	if _, body := call(t, http.MethodGet, base, "", nil); body["mode"] != string(session.ModeDirect) {
		t.Errorf("rejected upload switched the mode: %v", body["mode"])
	}
	_, _ = call(t, http.MethodPost, base+"/direct/reset", "", nil)

	_, _ = call(t, http.MethodPut, base+"/images/reference", "application/json", jsonBody(imageRequest{Image: dataURL("image/png", []byte("r"))}))
	_, _ = call(t, http.MethodPut, base+"/images/product", "application/json", jsonBody(imageRequest{Image: dataURL("image/png", []byte("p"))}))
	_, _ = call(t, http.MethodPost, base+"/analyze", "", nil)

	a.generateErr = &studio.GenerationError{
		Message: "rejected by safety system",
		Prompt:  "suggested prompt",
		Err:     &studio.VendorError{Status: 400, Message: "rejected by safety system"},
	}
	status, body := call(t, http.MethodPost, base+"/generate", "", nil)
	if status != http.StatusBadGateway {
		t.Errorf("vendor rejection: %d", status)
	}
	if body["error"] != "rejected by safety system" || body["prompt"] != "suggested prompt" {
		t.Errorf("error body should carry message and prompt: %v", body)
	}

	status, _ = call(t, http.MethodPost, base+"/generate", "application/json", strings.NewReader("{"))
	if status != http.StatusBadRequest {
		t.Errorf("invalid JSON: %d", status)
	}
}

func TestStudioAPIDirectFlow(t *testing.T) {
	srv := newTestServer(t, gateway.New(gateway.Options{}), &stubAnalyzer{})

	_, created := call(t, http.MethodPost, srv.URL+"/api/studio/sessions", "", nil)
	base := srv.URL + "/api/studio/sessions/" + created["id"].(string)

	status, _ := call(t, http.MethodPost, base+"/direct/generate", "", nil)
	if status != http.StatusConflict {
		t.Errorf("generate without inputs: %d", status)
	}

	_, _ = call(t, http.MethodPut, base+"/direct/product", "application/json", jsonBody(imageRequest{Image: dataURL("image/png", []byte("p"))}))
	status, body := call(t, http.MethodPut, base+"/direct/style", "application/json", jsonBody(styleRequest{Style: "autumn"}))
	if status != http.StatusOK || body["mode"] != string(session.ModeDirect) {
		t.Fatalf("style: %d %v", status, body)
	}

	status, body = call(t, http.MethodPost, base+"/direct/generate", "", nil)
	direct := body["direct"].(map[string]any)
	if status != http.StatusOK || direct["state"] != string(workflow.StateComplete) {
		t.Fatalf("direct generate: %d %v", status, body)
	}

	status, _ = call(t, http.MethodPost, base+"/direct/regenerate", "", nil)
	if status != http.StatusOK {
		t.Errorf("direct regenerate: %d", status)
	}

	status, body = call(t, http.MethodPost, base+"/direct/reset", "", nil)
	direct = body["direct"].(map[string]any)
	if status != http.StatusOK || direct["state"] != string(workflow.StateUpload) || direct["style"] != "" {
		t.Errorf("direct reset: %d %v", status, body)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, gateway.New(gateway.Options{}), &stubAnalyzer{})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/chat/completions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

// vendorStub plays the image vendor behind the relay.
type vendorStub struct {
	mu    sync.Mutex
	auth  []string
	paths []string
}

func (v *vendorStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	v.mu.Lock()
	v.auth = append(v.auth, r.Header.Get("Authorization"))
	v.paths = append(v.paths, r.URL.Path)
	v.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/v1/chat/completions":
		var req struct {
			Messages []struct {
				Content any `json:"content"`
			} `json:"messages"`
		}
		_ = json.Unmarshal(raw, &req)

		reply := "Warm golden-hour backlight, low angle, soft film grain."
		if len(req.Messages) > 0 && req.Messages[0].Content == prompt.ProductAnalysisInstruction {
			reply = "A camel cotton gabardine trench coat with horn buttons and a belted waist."
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": reply}}},
		})
	case "/v1/images/generations":
		_, _ = io.WriteString(w, `{"data":[{"b64_json":"aW1hZ2U="}]}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// TestEndToEnd wires the real relay and orchestrator: studio API ->
// orchestrator -> relay over HTTP -> vendor stub.
func TestEndToEnd(t *testing.T) {
	vendor := &vendorStub{}
	vendorSrv := httptest.NewServer(vendor)
	t.Cleanup(vendorSrv.Close)

	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	relay := gateway.New(gateway.Options{APIKey: "test-key", BaseURL: vendorSrv.URL + "/v1", Logger: discard})
	orchestrator := studio.New(studio.Options{
		Upstream: studio.NewUpstream(srv.URL+"/api", srv.Client()),
		Parallel: true,
		Logger:   discard,
	})
	store := session.NewStore(session.Options{Analyzer: orchestrator})
	handler = newRouter(relay, newStudioAPI(store, 5*time.Second, discard))

	status, body := call(t, http.MethodGet, srv.URL+"/", "", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("liveness: %d %v", status, body)
	}

	_, created := call(t, http.MethodPost, srv.URL+"/api/studio/sessions", "", nil)
	base := srv.URL + "/api/studio/sessions/" + created["id"].(string)
	_, _ = call(t, http.MethodPut, base+"/images/reference", "application/json", jsonBody(imageRequest{Image: dataURL("image/jpeg", []byte("ref"))}))
	_, _ = call(t, http.MethodPut, base+"/images/product", "application/json", jsonBody(imageRequest{Image: dataURL("image/png", []byte("prod"))}))

	status, body = call(t, http.MethodPost, base+"/analyze", "", nil)
	if status != http.StatusOK {
		t.Fatalf("analyze: %d %v", status, body)
	}
	analysis := body["fusion"].(map[string]any)["analysis"].(map[string]any)
	gp, _ := analysis["fusion"].(map[string]any)["generation_prompt"].(string)
	if !prompt.HasFusionLayout(gp) || !strings.Contains(gp, "horn buttons") {
		t.Errorf("unexpected generation prompt:\n%s", gp)
	}

	status, body = call(t, http.MethodPost, base+"/generate", "", nil)
	if status != http.StatusOK {
		t.Fatalf("generate: %d %v", status, body)
	}
	outcome := body["fusion"].(map[string]any)["outcome"].(map[string]any)
	if outcome["image_url"] != "data:image/png;base64,aW1hZ2U=" || outcome["prompt"] != gp {
		t.Errorf("unexpected outcome %v", outcome)
	}

	vendor.mu.Lock()
	defer vendor.mu.Unlock()
	if len(vendor.paths) != 3 {
		t.Errorf("expected 2 chat calls and 1 image call, got %v", vendor.paths)
	}
	for _, a := range vendor.auth {
		if a != "Bearer test-key" {
			t.Errorf("relay did not inject the credential: %q", a)
		}
	}
}

func TestEndToEndMissingKey(t *testing.T) {
	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	orchestrator := studio.New(studio.Options{
		Upstream: studio.NewUpstream(srv.URL+"/api", srv.Client()),
		Logger:   discard,
	})
	store := session.NewStore(session.Options{Analyzer: orchestrator})
	handler = newRouter(gateway.New(gateway.Options{Logger: discard}), newStudioAPI(store, 5*time.Second, discard))

	_, created := call(t, http.MethodPost, srv.URL+"/api/studio/sessions", "", nil)
	base := srv.URL + "/api/studio/sessions/" + created["id"].(string)
	_, _ = call(t, http.MethodPut, base+"/images/reference", "application/json", jsonBody(imageRequest{Image: dataURL("image/jpeg", []byte("ref"))}))
	_, _ = call(t, http.MethodPut, base+"/images/product", "application/json", jsonBody(imageRequest{Image: dataURL("image/png", []byte("prod"))}))

	status, body := call(t, http.MethodPost, base+"/analyze", "", nil)
	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d %v", status, body)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "API key not configured") {
		t.Errorf("unexpected error %q", msg)
	}

	_, body = call(t, http.MethodGet, base, "", nil)
	if fusionState(t, body) != string(workflow.StateUpload) {
		t.Errorf("failed analysis should return to upload: %v", body)
	}
}
