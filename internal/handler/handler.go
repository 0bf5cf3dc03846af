// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/Shivanand-hulikatti/eventhub/internal/notify"
	"github.com/Shivanand-hulikatti/eventhub/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/gocarina/gocsv"
)

// EventHandler holds all HTTP handlers for the event API.
type EventHandler struct {
	svc    *service.EventService
	logger *slog.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{svc: svc, logger: logger}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Kind: kindForStatus(status)})
}

// writeServiceError maps a service error to its HTTP status. Internal errors
// are logged and replaced by a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := model.ErrorKind(err)
	status := statusForKind(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		msg = "internal server error"
	}
	writeJSON(w, status, model.ErrorResponse{Error: msg, Kind: kind})
}

func statusForKind(kind string) int {
	switch kind {
	case "validation":
		return http.StatusBadRequest
	case "auth":
		return http.StatusUnauthorized
	case "permission":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict", "capacity":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return "validation"
	case http.StatusUnauthorized:
		return "auth"
	case http.StatusForbidden:
		return "permission"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	}
	return "internal"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeOptionalJSON is decodeJSON for bodies that may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CreateEvent handles POST /api/events
// Creates a new event organized by the caller. Admin events are approved
// right away; everything else waits for approval.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var draft model.EventDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.Create(r.Context(), draft, IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /api/events?category=&status=&search=
// Returns the visible events ordered by status and date.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.EventFilter{
		Category: model.Category(q.Get("category")),
		Status:   model.Status(q.Get("status")),
		Search:   q.Get("search"),
	}

	events, err := h.svc.List(r.Context(), filter, IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.EventView{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PUT /api/events/{id}
// Only the fields present in the body are changed.
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var patch model.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), patch, IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /api/events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id, IdentityFrom(r.Context())); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "event deleted", "id": id})
}

// Register handles POST /api/events/{id}/register
// Performs a concurrency-safe registration of the caller.
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.Register(r.Context(), chi.URLParam(r, "id"), IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// Unregister handles POST /api/events/{id}/unregister
// An optional {"attendee_email": "..."} body lets admins remove someone else.
func (h *EventHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	var req model.UnregisterRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.svc.Unregister(r.Context(), chi.URLParam(r, "id"), IdentityFrom(r.Context()), req.AttendeeEmail)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// Approve handles POST /api/events/{id}/approve
func (h *EventHandler) Approve(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.Approve(r.Context(), chi.URLParam(r, "id"), IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// ToggleStatus handles POST /api/events/{id}/toggle-status
func (h *EventHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.ToggleDisabled(r.Context(), chi.URLParam(r, "id"), IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// ExportAttendees handles GET /api/events/{id}/attendees.csv
func (h *EventHandler) ExportAttendees(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rows, err := h.svc.Attendees(r.Context(), id, IdentityFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	csv, err := gocsv.MarshalString(&rows)
	if err != nil {
		writeServiceError(w, r, h.logger, fmt.Errorf("encode attendees: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attendees-%s.csv"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, csv)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string      `json:"status"`
	Time   string      `json:"time"`
	Push   *PushHealth `json:"push,omitempty"`
}

// PushHealth counts the clients attached to the push channel.
type PushHealth struct {
	Connected int `json:"connected"`
	Admin     int `json:"admin"`
	User      int `json:"user"`
}

// HealthCheck handles GET /health
func HealthCheck(hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status: "ok",
			Time:   time.Now().UTC().Format(time.RFC3339),
		}
		if hub != nil {
			resp.Push = &PushHealth{
				Connected: hub.Connected(),
				Admin:     hub.Members(notify.ChannelAdmin),
				User:      hub.Members(notify.ChannelUser),
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
