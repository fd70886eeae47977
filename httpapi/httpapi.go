// Package httpapi is a thin, optional HTTP ingress/egress adapter over
// a Commander. It is an external collaborator, not part of the core
// (spec §1): nothing in commander or fanout depends on it.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/corebridge/commandbroker"
	"github.com/corebridge/commandbroker/commander"
	"github.com/corebridge/commandbroker/internal/logging"
)

// Source is the CloudEvents "source" attribute stamped on every
// envelope this adapter emits.
const Source = "commandbroker"

// Handler serves the command/event API over HTTP, encoding responses
// as CloudEvents in structured (JSON) content mode.
type Handler struct {
	commander *commander.Commander
	logger    logging.Logger
	mux       *http.ServeMux
}

// New builds a Handler routing requests to cmd.
func New(cmd *commander.Commander, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop
	}
	h := &Handler{commander: cmd, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /commands", h.createCommand)
	h.mux.HandleFunc("GET /commands", h.listCommands)
	h.mux.HandleFunc("GET /commands/{id}", h.getCommand)
	h.mux.HandleFunc("GET /events", h.listEvents)
	h.mux.HandleFunc("GET /events/{id}", h.getEvent)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) createCommand(w http.ResponseWriter, r *http.Request) {
	var params commandbroker.CommandParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if errs := h.commander.ValidateCommandParams(params); len(errs) > 0 {
		writeEvent(w, r.Context(), http.StatusBadRequest, "commandbroker.command.invalid", errs, h.logger)
		return
	}

	ctx := r.Context()
	var (
		cmd commandbroker.Command
		err error
	)
	if sync, _ := strconv.ParseBool(r.URL.Query().Get("sync")); sync {
		deadline := parseDuration(r.URL.Query().Get("timeout_ms"))
		cmd, err = h.commander.CreateCommandSync(ctx, params, deadline)
	} else {
		cmd, err = h.commander.CreateCommand(ctx, params)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeEvent(w, ctx, http.StatusCreated, "commandbroker.command", cmd, h.logger)
}

func (h *Handler) listCommands(w http.ResponseWriter, r *http.Request) {
	offset, limit := parsePagination(r)
	page, err := h.commander.ListCommands(r.Context(), offset, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeEvent(w, r.Context(), http.StatusOK, "commandbroker.command.page", page, h.logger)
}

func (h *Handler) getCommand(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cmd, ok, err := h.commander.GetCommandByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeEvent(w, r.Context(), http.StatusOK, "commandbroker.command", cmd, h.logger)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	offset, limit := parsePagination(r)
	page, err := h.commander.ListEvents(r.Context(), offset, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeEvent(w, r.Context(), http.StatusOK, "commandbroker.event.page", page, h.logger)
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	evt, ok, err := h.commander.GetEventByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeEvent(w, r.Context(), http.StatusOK, "commandbroker.event", evt, h.logger)
}

func writeEvent(w http.ResponseWriter, ctx context.Context, status int, eventType string, payload any, logger logging.Logger) {
	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(Source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	if err := event.SetData(cloudevents.ApplicationJSON, payload); err != nil {
		logger.Error("httpapi: set event data", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	body, err := event.MarshalJSON()
	if err != nil {
		logger.Error("httpapi: marshal event", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cloudevents+json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func parsePagination(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return offset, limit
}

func parseDuration(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	ms, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
