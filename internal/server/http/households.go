package httpserver

import (
	"net/http"

	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/service"
	"github.com/gofrs/uuid/v5"
)

type householdRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=120"`
	Currency *string `json:"currency" validate:"omitempty,len=3,alpha"`
}

func (req householdRequest) input() service.HouseholdInput {
	return service.HouseholdInput{Name: cleanPtr(req.Name), Currency: req.Currency}
}

type renameRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

type switchRequest struct {
	HouseholdID uuid.UUID `json:"householdId" validate:"required"`
}

type roleRequest struct {
	Role model.Role `json:"role" validate:"required,oneof=owner member"`
}

type inviteRequest struct {
	Email *string `json:"email" validate:"omitempty,max=320"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
}

type acceptRequest struct {
	Token string `json:"token" validate:"required"`
}

type searchRequest struct {
	Identifier  string     `json:"identifier" validate:"required,max=320"`
	HouseholdID *uuid.UUID `json:"householdId"`
}

func (h *Handler) createHousehold(w http.ResponseWriter, r *http.Request) {
	var req householdRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	hh, err := h.svc.Households.Create(r.Context(), userID(r), req.input())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, hh)
}

func (h *Handler) currentHousehold(w http.ResponseWriter, r *http.Request) {
	hh, err := h.svc.Households.Current(r.Context(), userID(r))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, hh)
}

func (h *Handler) renameMine(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	hh, err := h.svc.Households.RenameMine(r.Context(), userID(r), clean(req.Name))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, hh)
}

func (h *Handler) listMyHouseholds(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Households.ListMine(r.Context(), userID(r))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(list))
}

func (h *Handler) switchPrimary(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	hh, err := h.svc.Households.SwitchPrimary(r.Context(), userID(r), req.HouseholdID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, hh)
}

func (h *Handler) listMyMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.Households.ListMyMembers(r.Context(), userID(r))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(members))
}

func (h *Handler) registerMember(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := checkEmail(req.Email); err != nil {
		respondError(w, h.log, err)
		return
	}
	v, err := h.svc.Households.RegisterMember(r.Context(), userID(r), req.input())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, v)
}

func (h *Handler) inviteToMine(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := checkEmail(req.Email); err != nil {
		respondError(w, h.log, err)
		return
	}
	inv, err := h.svc.Invitations.InviteToMine(r.Context(), userID(r), service.InviteInput{Email: req.Email, Phone: req.Phone})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, inv)
}

func (h *Handler) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	hh, err := h.svc.Invitations.AcceptByToken(r.Context(), userID(r), req.Token)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, hh)
}

func (h *Handler) searchUser(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	res, err := h.svc.Invitations.SearchUser(r.Context(), userID(r), req.Identifier, req.HouseholdID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handler) updateHousehold(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	var req householdRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	hh, err := h.svc.Households.Update(r.Context(), userID(r), id, req.input())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, hh)
}

func (h *Handler) deleteHousehold(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.svc.Households.Delete(r.Context(), userID(r), id); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondNoContent(w)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	members, err := h.svc.Households.ListMembers(r.Context(), userID(r), id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(members))
}

func (h *Handler) setMemberRole(w http.ResponseWriter, r *http.Request) {
	hid, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	uid, err := pathID(r, "userId")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	var req roleRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.svc.Households.SetMemberRole(r.Context(), userID(r), hid, uid, req.Role); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondNoContent(w)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	hid, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	uid, err := pathID(r, "userId")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.svc.Households.RemoveMember(r.Context(), userID(r), hid, uid); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondNoContent(w)
}

func (h *Handler) inviteTo(w http.ResponseWriter, r *http.Request) {
	hid, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	var req inviteRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := checkEmail(req.Email); err != nil {
		respondError(w, h.log, err)
		return
	}
	inv, err := h.svc.Invitations.InviteTo(r.Context(), userID(r), hid, service.InviteInput{Email: req.Email, Phone: req.Phone})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, inv)
}

func (h *Handler) listInvitations(w http.ResponseWriter, r *http.Request) {
	hid, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	list, err := h.svc.Invitations.ListForOwner(r.Context(), userID(r), hid)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(list))
}

func (h *Handler) revokeInvitation(w http.ResponseWriter, r *http.Request) {
	hid, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	invID, err := pathID(r, "invitationId")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.svc.Invitations.Revoke(r.Context(), userID(r), hid, invID); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondNoContent(w)
}

// nonNil renders empty listings as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
