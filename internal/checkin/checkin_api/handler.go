package checkin_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-rsvp/internal/auth"
	"ms-rsvp/internal/checkin"
	"ms-rsvp/internal/checkin/qr"
	"ms-rsvp/internal/domain"
	"ms-rsvp/internal/logger"
	"ms-rsvp/internal/models"
	"ms-rsvp/internal/utils"
)

type Handler struct {
	CheckinService *checkin.CheckinService
	QR             *qr.Generator
	Logger         *logger.Logger
}

type redeemRequest struct {
	Code   string `json:"code"`
	Method string `json:"method"`
}

type createCodeRequest struct {
	MaxUses   *int       `json:"max_uses"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Redeem validates the submitted code and records the caller's
// check-in. Validation and recording are separate service calls on
// purpose: Record re-checks the cap at write time, so a stale Validate
// can never oversell the code.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("code is required", "empty code"))
		return
	}
	if req.Method == "" {
		req.Method = models.CheckinMethodCode
	}

	userID := auth.UserID(r.Context())

	code, err := h.CheckinService.Validate(r.Context(), req.Code)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Redeem: validate code: %v", err))
		writeError(w, err)
		return
	}
	h.Logger.LogCheckin("REDEEM", code.EventID, fmt.Sprintf("user=%s code=%s", userID, code.ID))

	result, err := h.CheckinService.Record(r.Context(), code.EventID, userID, code.ID, req.Method)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Redeem: record checkin: %v", err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("checked in", result.Checkin))
}

// ValidateCode is the advisory pre-check the door UI calls before
// submitting a redemption.
func (h *Handler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.CheckinService.Validate(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("code valid", code))
}

// CreateCode issues a new door token for an event.
func (h *Handler) CreateCode(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	userID := auth.UserID(r.Context())

	var req createCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	code, err := h.CheckinService.CreateCode(r.Context(), eventID, userID, req.MaxUses, req.ExpiresAt)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateCode: event %s: %v", eventID, err))
		writeError(w, err)
		return
	}
	h.Logger.LogCheckin("CODE_CREATED", eventID, fmt.Sprintf("code=%s by=%s", code.ID, userID))

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("checkin code created", code))
}

// ListCodes returns every code issued for an event.
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	codes, err := h.CheckinService.ListCodes(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("checkin codes", codes))
}

// CodeQR renders a code's token as a PNG for door signage.
func (h *Handler) CodeQR(w http.ResponseWriter, r *http.Request) {
	code, err := h.CheckinService.Validate(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	png, err := h.QR.EncodeCode(code.Code)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CodeQR: encode: %v", err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to render QR", err.Error()))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
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
	case errors.Is(err, domain.ErrAlreadyCheckedIn):
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("already checked in", err.Error()))
	case errors.Is(err, domain.ErrCodeExpired):
		writeJSON(w, http.StatusGone, utils.ErrorResponse("code expired", err.Error()))
	case errors.Is(err, domain.ErrCodeUsageExceeded):
		writeJSON(w, http.StatusConflict, utils.ErrorResponse("code usage exceeded", err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", err.Error()))
	}
}
