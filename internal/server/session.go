package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/duet/internal/ledger"
	"github.com/desertthunder/duet/internal/models"
	"github.com/desertthunder/duet/internal/shared"
)

// Controller is the part of a running session the control API drives.
type Controller interface {
	Snapshot() ledger.Snapshot
	Thinking() bool
	Turn() models.Turn
	ContributeQuery(ctx context.Context, artist, title string) (models.LedgerEntry, error)
	SkipTo(ctx context.Context, entryID string) error
}

// SessionState is the body of GET /session.
type SessionState struct {
	Turn     string               `json:"turn"`
	Thinking bool                 `json:"thinking"`
	Current  *models.LedgerEntry  `json:"current"`
	Queue    []models.LedgerEntry `json:"queue"`
	History  []models.LedgerEntry `json:"history"`
}

// ContributeRequest is the body of POST /session/contribute. Query ("Artist - Title") is used when Artist
// and Title are empty.
type ContributeRequest struct {
	Artist string `json:"artist,omitempty"`
	Title  string `json:"title,omitempty"`
	Query  string `json:"query,omitempty"`
}

// SkipRequest is the body of POST /session/skip.
type SkipRequest struct {
	EntryID string `json:"entry_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SessionHandler serves the session control API.
type SessionHandler struct {
	session Controller
	mux     *http.ServeMux
	logger  *log.Logger
}

var _ Handler = (*SessionHandler)(nil)

func NewSessionHandler(session Controller, logger *log.Logger) *SessionHandler {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	h := &SessionHandler{session: session, mux: http.NewServeMux(), logger: logger}
	h.mux.HandleFunc("GET /session", h.state)
	h.mux.HandleFunc("POST /session/contribute", h.contribute)
	h.mux.HandleFunc("POST /session/skip", h.skip)
	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *SessionHandler) Routes() []string {
	return []string{"GET /session", "POST /session/contribute", "POST /session/skip"}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *SessionHandler) state(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	h.writeJSON(w, http.StatusOK, SessionState{
		Turn:     h.session.Turn().String(),
		Thinking: h.session.Thinking(),
		Current:  snap.Current,
		Queue:    snap.Queue,
		History:  snap.History,
	})
}

func (h *SessionHandler) contribute(w http.ResponseWriter, r *http.Request) {
	var req ContributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	artist, title := req.Artist, req.Title
	if artist == "" && title == "" {
		var err error
		if artist, title, err = shared.ParseArtistTitle(req.Query); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if artist == "" || title == "" {
		h.writeError(w, fmt.Errorf("%w: artist and title are required", shared.ErrInvalidInput))
		return
	}

	entry, err := h.session.ContributeQuery(r.Context(), artist, title)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}

func (h *SessionHandler) skip(w http.ResponseWriter, r *http.Request) {
	var req SkipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EntryID == "" {
		h.writeError(w, fmt.Errorf("%w: entry_id is required", shared.ErrInvalidInput))
		return
	}

	if err := h.session.SkipTo(r.Context(), req.EntryID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNoMatch), errors.Is(err, shared.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (h *SessionHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("session request failed", "error", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *SessionHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// NewControlRouter builds the control API router: panic recovery, request logging and the session routes.
func NewControlRouter(session Controller, logger *log.Logger) *Mux {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	r := NewMux()
	r.Use(Recover(logger), Logging(logger))
	r.Mount(NewSessionHandler(session, logger))
	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	h := &SessionHandler{logger: logger}
	r.Handle(http.MethodGet, "/{$}", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.writeJSON(w, http.StatusOK, map[string][]string{"routes": r.Patterns()})
	}))
	return r
}
