// Package handlers implements the batch HTTP API on top of batch.Service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"imagebatch/internal/batch"
	"imagebatch/internal/domain"
	"imagebatch/internal/http/ws"
)

// App holds the dependencies shared by the handlers.
type App struct {
	Batches *batch.Service
	Hub     *ws.Hub
	// History is optional; without it only in-memory jobs are listed.
	History domain.BatchHistory
	Logger  zerolog.Logger
	// MaxAge is the cleanup age used when the request does not name one.
	MaxAge time.Duration

	runCtx   context.Context
	runs     sync.WaitGroup
	upgrader websocket.Upgrader
}

// NewApp builds an App whose background batch runs are bound to runCtx.
func NewApp(runCtx context.Context, svc *batch.Service, hub *ws.Hub, logger zerolog.Logger) *App {
	return &App{
		Batches: svc,
		Hub:     hub,
		Logger:  logger,
		MaxAge:  batch.DefaultMaxAge,
		runCtx:  runCtx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Wait blocks until every batch started through the API has finished.
func (a *App) Wait() {
	a.runs.Wait()
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, errorResponse{Error: kind, Message: msg})
}

func (a *App) blob(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// fail maps service errors onto status codes. Errors that are not one of
// the domain sentinels are answered with fallback.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error, fallback int) {
	code, kind := statusFor(err, fallback)
	if code >= http.StatusInternalServerError {
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("http: request failed")
	}
	a.error(w, code, kind, err.Error())
}

func statusFor(err error, fallback int) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidIndex):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrUnknownMode),
		errors.Is(err, domain.ErrUnknownPreset),
		errors.Is(err, domain.ErrBadResolution):
		return http.StatusUnprocessableEntity, "invalid_request"
	case errors.Is(err, domain.ErrAlreadyStarted), errors.Is(err, domain.ErrDuplicateOperation):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrNoResults):
		return http.StatusConflict, "no_results"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	}
	switch fallback {
	case http.StatusBadGateway:
		return fallback, "upstream_error"
	case http.StatusBadRequest:
		return fallback, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
