package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-go-golems/coder/pkg/conversation"
	"github.com/go-go-golems/coder/pkg/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  session.ErrorKind `json:"error"`
	Detail string            `json:"detail"`
}

var statusForKind = map[session.ErrorKind]int{
	session.KindValidation:  http.StatusBadRequest,
	session.KindNotFound:    http.StatusNotFound,
	session.KindUpstream:    http.StatusBadGateway,
	session.KindSchema:      http.StatusBadGateway,
	session.KindPersistence: http.StatusInternalServerError,
	session.KindInternal:    http.StatusInternalServerError,
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	kind := session.KindOf(err)
	status, ok := statusForKind[kind]
	if !ok {
		kind, status = session.KindInternal, http.StatusInternalServerError
	}

	detail := err.Error()
	switch kind {
	case session.KindPersistence, session.KindInternal:
		log.Error().Err(err).Str("path", r.URL.Path).Str("kind", string(kind)).Msg("request failed")
		// store and internal errors may carry driver details
		detail = http.StatusText(status)
	case session.KindUpstream, session.KindSchema:
		log.Warn().Err(err).Str("path", r.URL.Path).Str("kind", string(kind)).Msg("request failed")
	default:
		log.Debug().Err(err).Str("path", r.URL.Path).Str("kind", string(kind)).Msg("request rejected")
	}
	jsonResponse(w, status, ErrorResponse{Error: kind, Detail: detail})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &session.ValidationError{Field: "body", Reason: "request body is empty"}
		}
		return &session.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req session.AskRequest
	if err := s.decode(w, r, &req); err != nil {
		errorResponse(w, r, err)
		return
	}
	resp, err := s.service.Ask(r.Context(), req)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req session.EditRequest
	if err := s.decode(w, r, &req); err != nil {
		errorResponse(w, r, err)
		return
	}
	resp, err := s.service.Edit(r.Context(), req)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	persona, err := conversation.ParsePersona(r.URL.Query().Get("persona"))
	if err != nil {
		errorResponse(w, r, &session.ValidationError{Field: "persona", Reason: err.Error()})
		return
	}
	h, err := s.service.History(r.Context(), id, persona)
	if err != nil {
		errorResponse(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, h)
}

type poolStats interface {
	Stats() (open int, inUse int)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			log.Warn().Err(err).Msg("health check failed")
			jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		if ps, ok := s.pinger.(poolStats); ok {
			open, inUse := ps.Stats()
			resp["open_connections"] = open
			resp["in_use_connections"] = inUse
		}
	}
	jsonResponse(w, http.StatusOK, resp)
}

// handlePreflight answers OPTIONS requests that the CORS middleware did not
// treat as a preflight, e.g. ones without an Origin header.
func handlePreflight(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "*")
	h.Set("Access-Control-Allow-Headers", "*")
	w.WriteHeader(http.StatusOK)
}
