package httpserver

import (
	"net/http"
	"net/url"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
)

type registerTokenRequest struct {
	Token      string           `json:"token" validate:"required,max=512"`
	TokenType  *model.TokenType `json:"tokenType" validate:"omitempty,oneof=expo fcm"`
	DeviceType string           `json:"deviceType" validate:"required,oneof=ios android web"`
	DeviceName *string          `json:"deviceName" validate:"omitempty,max=120"`
}

type sendRequest struct {
	HouseholdID   uuid.UUID         `json:"householdId" validate:"required"`
	Title         string            `json:"title" validate:"required,max=120"`
	Body          string            `json:"body" validate:"max=500"`
	Data          map[string]string `json:"data"`
	ExcludeUserID *uuid.UUID        `json:"excludeUserId"`
}

func (h *Handler) registerToken(w http.ResponseWriter, r *http.Request) {
	var req registerTokenRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	id, err := h.svc.Notifications.RegisterToken(r.Context(), userID(r), service.RegisterTokenInput{
		Token:      req.Token,
		TokenType:  req.TokenType,
		DeviceType: req.DeviceType,
		DeviceName: cleanPtr(req.DeviceName),
	})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]uuid.UUID{"id": id})
}

func (h *Handler) removeToken(w http.ResponseWriter, r *http.Request) {
	token, err := url.PathUnescape(chi.URLParam(r, "token"))
	if err != nil {
		respondError(w, h.log, errs.New(errs.ErrBadRequest, "invalid token"))
		return
	}
	if err := h.svc.Notifications.RemoveToken(r.Context(), userID(r), token); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondNoContent(w)
}

func (h *Handler) sendNotification(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	rep, err := h.svc.Notifications.SendTest(r.Context(), userID(r), service.TestNotification{
		HouseholdID:   req.HouseholdID,
		Title:         clean(req.Title),
		Body:          clean(req.Body),
		Data:          req.Data,
		ExcludeUserID: req.ExcludeUserID,
	})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}
