package httpapi

import (
	"net/http"

	"folio.dev/internal/auth"
)

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	page, size, err := pageParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	users, err := a.users.List(r.Context(), p, page, size)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleInvite(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "role must be ADMIN or AUTHOR")
		return
	}
	u, err := a.users.Invite(r.Context(), p, req.Email, role)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "role must be ADMIN or AUTHOR")
		return
	}
	u, err := a.users.UpdateRole(r.Context(), p, req.Email, role)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
