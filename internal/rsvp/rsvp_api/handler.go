package rsvp_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-rsvp/internal/auth"
	"ms-rsvp/internal/domain"
	"ms-rsvp/internal/logger"
	"ms-rsvp/internal/rsvp"
	"ms-rsvp/internal/utils"
)

type Handler struct {
	RsvpService *rsvp.RsvpService
	Logger      *logger.Logger
}

// GetSummary returns the event's confirmed/waitlisted counts and
// capacity. Public: group pages show it to logged-out visitors too.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	summary, err := h.RsvpService.GetSummary(r.Context(), eventID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetSummary: event %s: %v", eventID, err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("rsvp summary", summary))
}

// GetStatus returns the caller's RSVP for the event, or 404 when they
// have none.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	userID := auth.UserID(r.Context())

	view, err := h.RsvpService.GetStatus(r.Context(), eventID, userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetStatus: event %s user %s: %v", eventID, userID, err))
		writeError(w, err)
		return
	}
	if view == nil {
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("no rsvp for this event", "not found"))
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("rsvp status", view))
}

// CreateRsvp signs the caller up, waitlisting when the event is full.
// Repeating the call returns the existing RSVP with 200 instead of 201.
func (h *Handler) CreateRsvp(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	userID := auth.UserID(r.Context())
	h.Logger.LogRsvp("CREATE", eventID, fmt.Sprintf("user=%s", userID))

	result, err := h.RsvpService.CreateRsvp(r.Context(), eventID, userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateRsvp: event %s user %s: %v", eventID, userID, err))
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if len(result.Events) == 0 {
		status = http.StatusOK // idempotent repeat, nothing changed
	}
	writeJSON(w, status, utils.SuccessResponse("rsvp "+result.Rsvp.Status, result.Rsvp))
}

// CancelRsvp cancels the caller's RSVP and reports who, if anyone, was
// promoted off the waitlist.
func (h *Handler) CancelRsvp(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	userID := auth.UserID(r.Context())
	h.Logger.LogRsvp("CANCEL", eventID, fmt.Sprintf("user=%s", userID))

	result, err := h.RsvpService.CancelRsvp(r.Context(), eventID, userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CancelRsvp: event %s user %s: %v", eventID, userID, err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("rsvp cancelled", result))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("not found", err.Error()))
	case errors.Is(err, domain.ErrEventCancelled):
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("event cancelled", err.Error()))
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("busy, retry", err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", err.Error()))
	}
}
