package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"marketing-studio/internal/session"
	"marketing-studio/internal/studio"
	"marketing-studio/internal/workflow"
)

const maxUploadBytes = 50 << 20

type apiError struct {
	Error  string `json:"error"`
	Prompt string `json:"prompt,omitempty"`
}

type sessionView struct {
	ID     string                  `json:"id"`
	Mode   session.Mode            `json:"mode"`
	Fusion workflow.FusionSnapshot `json:"fusion"`
	Direct workflow.DirectSnapshot `json:"direct"`
}

type imageRequest struct {
	Image string `json:"image"`
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type styleRequest struct {
	Style string `json:"style"`
}

type studioAPI struct {
	sessions *session.Store
	timeout  time.Duration
	logger   *slog.Logger
}

func newStudioAPI(sessions *session.Store, timeout time.Duration, logger *slog.Logger) *studioAPI {
	if timeout <= 0 {
		timeout = 240 * time.Second
	}
	return &studioAPI{sessions: sessions, timeout: timeout, logger: logger}
}

func (a *studioAPI) register(r *mux.Router) {
	r.HandleFunc("/sessions", a.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", a.withStudio(a.handleGet)).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", a.handleDelete).Methods(http.MethodDelete)

	r.HandleFunc("/sessions/{id}/images/{role}", a.withStudio(a.handleImage)).Methods(http.MethodPut)
	r.HandleFunc("/sessions/{id}/analyze", a.withStudio(a.handleAnalyze)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/generate", a.withStudio(a.handleGenerate)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/regenerate", a.withStudio(a.handleRegenerate)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/back", a.withStudio(a.handleBack)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/reset", a.withStudio(a.handleReset)).Methods(http.MethodPost)

	r.HandleFunc("/sessions/{id}/direct/product", a.withStudio(a.handleDirectProduct)).Methods(http.MethodPut)
	r.HandleFunc("/sessions/{id}/direct/style", a.withStudio(a.handleDirectStyle)).Methods(http.MethodPut)
	r.HandleFunc("/sessions/{id}/direct/generate", a.withStudio(a.handleDirectGenerate)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/direct/regenerate", a.withStudio(a.handleDirectRegenerate)).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/direct/reset", a.withStudio(a.handleDirectReset)).Methods(http.MethodPost)
}

type studioHandler func(w http.ResponseWriter, r *http.Request, st *session.Studio)

func (a *studioAPI) withStudio(next studioHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := a.sessions.Get(mux.Vars(r)["id"])
		if !ok {
			writeJSON(w, http.StatusNotFound, apiError{Error: "session not found"})
			return
		}
		next(w, r, st)
	}
}

func (a *studioAPI) handleCreate(w http.ResponseWriter, _ *http.Request) {
	st := a.sessions.Create()
	a.logger.Info("session created", "session_id", st.ID)
	writeJSON(w, http.StatusCreated, view(st))
}

func (a *studioAPI) handleGet(w http.ResponseWriter, _ *http.Request, st *session.Studio) {
	writeJSON(w, http.StatusOK, view(st))
}

func (a *studioAPI) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !a.sessions.Delete(mux.Vars(r)["id"]) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "session not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *studioAPI) handleImage(w http.ResponseWriter, r *http.Request, st *session.Studio) {
	img, err := readImage(w, r)
	if err != nil {
		a.writeError(w, err)
		return
	}

	set := st.Fusion.SetProduct
	switch mux.Vars(r)["role"] {
	case "reference":
		set = st.Fusion.SetReference
	case "product":
	default:
		writeJSON(w, http.StatusNotFound, apiError{Error: "image role must be reference or product"})
		return
	}

	st.SetMode(session.ModeFusion)
	a.respond(w, st, set(img))
}

func (a *studioAPI) handleAnalyze(w http.ResponseWriter, r *http.Request, st *session.Studio) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	a.respond(w, st, st.Fusion.Analyze(ctx))
}

func (a *studioAPI) handleGenerate(w http.ResponseWriter, r *http.Request, st *session.Studio) {
	var req generateRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	a.respond(w, st, st.Fusion.Generate(ctx, req.Prompt))
}

func (a *studioAPI) handleRegenerate(w http.ResponseWriter, r *http.Request, st *session.Studio) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	a.respond(w, st, st.Fusion.Regenerate(ctx))
}

func (a *studioAPI) handleBack(w http.ResponseWriter, _ *http.Request, st *session.Studio) {
	a.respond(w, st, st.Fusion.Back())
}

func (a *studioAPI) handleReset(w http.ResponseWriter, _ *http.Request, st *session.Studio) {
	st.Fusion.Reset()
	a.respond(w, st, nil)
}

func (a *studioAPI) handleDirectProduct(w http.ResponseWriter, r *http.Request, st *session.Studio) {
	img, err := readImage(w, r)
	if err != nil {
		a.writeError(w, err)
		return
	}

	st.SetMode(session.ModeDirect)
	a.respond(w, st, st.Direct.SetProduct(img))
}

func (a *studioAPI) handleDirectStyle(w http.ResponseWriter, r *http.Request, st *session.Studio) {
	var req styleRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	st.SetMode(session.ModeDirect)
	a.respond(w, st, st.Direct.SetStyle(req.Style))
}

func (a *studioAPI) handleDirectGenerate(w http.ResponseWriter, r *http.Request, st *session.Studio) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	a.respond(w, st, st.Direct.Generate(ctx))
}

func (a *studioAPI) handleDirectRegenerate(w http.ResponseWriter, r *http.Request, st *session.Studio) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	a.respond(w, st, st.Direct.Regenerate(ctx))
}

func (a *studioAPI) handleDirectReset(w http.ResponseWriter, _ *http.Request, st *session.Studio) {
	st.Direct.Reset()
	a.respond(w, st, nil)
}

func (a *studioAPI) respond(w http.ResponseWriter, st *session.Studio, err error) {
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view(st))
}

func (a *studioAPI) writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status >= 500 {
		a.logger.Error("studio request failed", "status", status, "err", err)
	}

	body := apiError{Error: err.Error()}
	var genErr *studio.GenerationError
	if errors.As(err, &genErr) {
		body = apiError{Error: genErr.Message, Prompt: genErr.Prompt}
	}
	writeJSON(w, status, body)
}

func errorStatus(err error) int {
	var vendorErr *studio.VendorError
	var parseErr *studio.ParseError

	switch {
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, workflow.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, studio.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, studio.ErrInvalidPrompt):
		return http.StatusUnprocessableEntity
	case errors.Is(err, studio.ErrConfiguration):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, studio.ErrTransport), errors.As(err, &vendorErr), errors.As(err, &parseErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// readImage accepts either a multipart "image" field or a JSON body
// carrying a data URL.
func readImage(w http.ResponseWriter, r *http.Request) (studio.ImagePayload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return studio.ImagePayload{}, badImage("invalid multipart form")
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			return studio.ImagePayload{}, badImage("missing image")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return studio.ImagePayload{}, badImage("failed to read image")
		}
		return studio.NewImagePayload(header.Header.Get("Content-Type"), data)
	}

	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return studio.ImagePayload{}, badImage("body must be multipart or JSON with an image data URL")
	}
	return studio.ParseDataURL(req.Image)
}

func badImage(msg string) error {
	return fmt.Errorf("%w: %s", studio.ErrInvalidImage, msg)
}

func decodeOptionalJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return errors.New("failed to read request body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.New("request body must be valid JSON")
	}
	return nil
}

func view(st *session.Studio) sessionView {
	return sessionView{
		ID:     st.ID,
		Mode:   st.Mode(),
		Fusion: st.Fusion.Snapshot(),
		Direct: st.Direct.Snapshot(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
