package httpserver

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/service"
)

type tokensDTO struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func toTokensDTO(t model.Tokens) tokensDTO {
	return tokensDTO{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, ExpiresAt: t.ExpiresAt}
}

type authResponse struct {
	tokensDTO
	User      model.UserView   `json:"user"`
	Household *model.Household `json:"household"`
}

type registerRequest struct {
	Email       *string `json:"email" validate:"omitempty,max=320"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
	Password    string  `json:"password" validate:"required,min=6,max=128"`
	DisplayName string  `json:"displayName" validate:"required,min=2,max=120"`
}

func (req registerRequest) input() service.RegisterInput {
	return service.RegisterInput{
		Email:       req.Email,
		Phone:       req.Phone,
		Password:    req.Password,
		DisplayName: clean(req.DisplayName),
	}
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=320"`
	Password   string `json:"password" validate:"required,max=128"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type profileRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=2,max=120"`
	Email       *string `json:"email" validate:"omitempty,max=320"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=128"`
}

type meResponse struct {
	User      model.UserView   `json:"user"`
	Household *model.Household `json:"household"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := checkEmail(req.Email); err != nil {
		respondError(w, h.log, err)
		return
	}
	res, err := h.svc.Auth.Register(r.Context(), req.input())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{tokensDTO: toTokensDTO(res.Tokens), User: res.User, Household: res.Household})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	res, err := h.svc.Auth.Login(r.Context(), req.Identifier, req.Password, clientIP(r))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, authResponse{tokensDTO: toTokensDTO(res.Tokens), User: res.User, Household: res.Household})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	tok, err := h.svc.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toTokensDTO(tok))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	if err := h.svc.Auth.Logout(r.Context(), id.UserID, id.SessionID); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondNoContent(w)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, hh, err := h.svc.Auth.Me(r.Context(), userID(r))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, meResponse{User: u, Household: hh})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := checkEmail(req.Email); err != nil {
		respondError(w, h.log, err)
		return
	}
	v, err := h.svc.Auth.UpdateProfile(r.Context(), userID(r), service.ProfileInput{
		DisplayName: cleanPtr(req.DisplayName),
		Email:       req.Email,
		Phone:       req.Phone,
	})
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.svc.Auth.ChangePassword(r.Context(), userID(r), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondNoContent(w)
}

// checkEmail validates the format of a non-empty email. An empty one means
// absent on registration and cleared on profile updates.
func checkEmail(email *string) error {
	if email == nil || strings.TrimSpace(*email) == "" {
		return nil
	}
	if validate.Var(strings.TrimSpace(*email), "email") != nil {
		return errs.New(errs.ErrBadRequest, "email: failed email")
	}
	return nil
}

// clientIP returns the caller address without port. RealIP has already
// applied forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
