package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"

	"github.com/iTrooz/ask-relay/internal/relay"
)

const (
	msgFetched         = "Data fetched and cached successfully"
	msgFetchInputs     = "apiUrl and token are required"
	msgFetchFailed     = "Failed to fetch data from API"
	msgTargetForbidden = "apiUrl is not allowed"
	msgQuestionMissing = "question is required"
	msgNoData          = "No data fetched yet. Please fetch data first."
	msgBodyTooLarge    = "request body too large"
	msgNotReady        = "cache unavailable"
)

type messageResponse struct {
	Message string `json:"message"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var req relay.FetchRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		logrus.Debugf("Undecodable fetch body: %v", err)
		writeError(w, http.StatusBadRequest, msgFetchInputs)
		return
	}

	if err := s.relay.Fetch(r.Context(), req); err != nil {
		status, msg := fetchErrorResponse(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: msgFetched})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	answer, err := s.relay.Ask(r.Context(), string(body))
	if err != nil {
		status, msg := askErrorResponse(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{Answer: answer})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.relay.Ready(ctx); err != nil {
		logrus.Warnf("Readiness check failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, msgNotReady)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// readBody reads the whole request body within the configured size limit.
// It writes the error response itself and returns false on failure.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxRequestBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return body, true
}

// fetchErrorResponse maps a relay fetch error to an HTTP status and message
func fetchErrorResponse(err error) (int, string) {
	var statusErr *relay.UpstreamStatusError
	var fetchErr *relay.FetchError

	switch {
	case errors.Is(err, relay.ErrMissingInput):
		return http.StatusBadRequest, msgFetchInputs
	case errors.Is(err, relay.ErrInvalidTarget):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, relay.ErrTargetNotAllowed):
		return http.StatusForbidden, msgTargetForbidden
	case errors.As(err, &statusErr):
		status := statusErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		return status, msgFetchFailed
	case errors.As(err, &fetchErr):
		return http.StatusInternalServerError, "Exception: " + fetchErr.Error()
	default:
		logrus.Errorf("Fetch failed: %v", err)
		return http.StatusInternalServerError, "Exception: " + err.Error()
	}
}

// askErrorResponse maps a relay ask error to an HTTP status and message
func askErrorResponse(err error) (int, string) {
	var modelErr *relay.ModelError

	switch {
	case errors.Is(err, relay.ErrMissingInput):
		return http.StatusBadRequest, msgQuestionMissing
	case errors.Is(err, relay.ErrNoData):
		return http.StatusBadRequest, msgNoData
	case errors.As(err, &modelErr):
		return http.StatusInternalServerError, "Failed to get answer from model: " + modelErr.Error()
	default:
		logrus.Errorf("Ask failed: %v", err)
		return http.StatusInternalServerError, err.Error()
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logrus.Errorf("Failed to write response body: %v", err)
	}
}
