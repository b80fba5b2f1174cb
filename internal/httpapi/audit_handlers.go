package httpapi

import (
	"net/http"

	"folio.dev/internal/auth"
)

func (a *API) handleListAudit(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if err := p.Require(auth.PermAuditRead); err != nil {
		handleDomainError(w, r, err)
		return
	}
	page, size, err := pageParams(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.audit.List(r.Context(), page, size)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
