package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 50 << 20

type health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Register mounts the relay routes and the liveness probe on r.
func Register(r *mux.Router, relay *Relay) {
	r.HandleFunc("/", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api"+pathChatCompletions, relayHandler(relay.ChatCompletion)).Methods(http.MethodPost)
	r.HandleFunc("/api"+pathImageGenerations, relayHandler(relay.ImageGeneration)).Methods(http.MethodPost)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(health{Status: "ok", Message: "AI Marketing Studio API"})
}

func relayHandler(forward func(context.Context, []byte) Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeResult(w, *err)
			return
		}
		writeResult(w, forward(r.Context(), body))
	}
}

func writeResult(w http.ResponseWriter, res Result) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(res.Status)
	_, _ = w.Write(res.Body)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, *Result) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			res := ErrorResult(http.StatusRequestEntityTooLarge, "request body too large")
			return nil, &res
		}
		res := ErrorResult(http.StatusBadRequest, "failed to read request body")
		return nil, &res
	}
	if !json.Valid(body) {
		res := ErrorResult(http.StatusBadRequest, "request body must be valid JSON")
		return nil, &res
	}
	return body, nil
}
