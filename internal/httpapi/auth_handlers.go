package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"folio.dev/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
}

type meResponse struct {
	User        *auth.User `json:"user"`
	Permissions []string   `json:"permissions"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}

	session, err := a.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	token, _ := auth.TokenFromContext(r.Context())
	if err := a.users.Logout(r.Context(), p, token); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleInviteLookup(w http.ResponseWriter, r *http.Request) {
	u, err := a.users.ValidateInviteToken(r.Context(), r.PathValue("token"))
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "invitation is invalid or already used")
			return
		}
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"email": u.Email, "role": u.Role})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req tokenPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.users.CompleteRegistration(r.Context(), req.Token, req.Password)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// handleForgotPassword answers 202 whether or not the account exists.
func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.users.RequestPasswordReset(r.Context(), req.Email); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *API) handleResetLookup(w http.ResponseWriter, r *http.Request) {
	u, err := a.users.ValidateResetToken(r.Context(), r.PathValue("token"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, r, http.StatusNotFound, "reset link is invalid or expired")
			return
		}
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"email": u.Email})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req tokenPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.users.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	writeJSON(w, http.StatusOK, meResponse{User: p.User, Permissions: p.PermissionList()})
}

func (a *API) handleUpdateMe(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.users.UpdateProfile(r.Context(), p, p.ID(), req.DisplayName)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
