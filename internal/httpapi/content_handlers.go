package httpapi

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"folio.dev/internal/audit"
	"folio.dev/internal/auth"
	"folio.dev/internal/content"
)

const recentActivityLimit = 5

type contentRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type scheduleRequest struct {
	PublishAt time.Time `json:"publishAt"`
}

type dashboardResponse struct {
	Stats          content.Stats `json:"stats"`
	RecentActivity []audit.Entry `json:"recentActivity,omitempty"`
}

func (a *API) handleListContent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, err := a.content.List(r.Context(), p, q)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parseListQuery(r *http.Request) (content.ListQuery, error) {
	values := r.URL.Query()
	q := content.ListQuery{
		Search: values.Get("search"),
		Sort:   strings.TrimSpace(values.Get("sort")),
	}
	if raw := values.Get("status"); strings.TrimSpace(raw) != "" {
		st, err := content.ParseStatus(raw)
		if err != nil {
			return q, err
		}
		q.Status = st
	}
	switch strings.ToLower(values.Get("order")) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return q, errors.New("order must be asc or desc")
	}
	var err error
	if q.Page, q.PageSize, err = pageParams(r); err != nil {
		return q, err
	}
	return q, nil
}

func (a *API) handleCreateContent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req contentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	it, err := a.content.Create(r.Context(), p, req.Title, req.Body)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/content/"+it.ID)
	writeJSON(w, http.StatusCreated, it)
}

func (a *API) handleGetContent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	it, err := a.content.Get(r.Context(), p, r.PathValue("id"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (a *API) handleUpdateContent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req contentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	it, err := a.content.Update(r.Context(), p, r.PathValue("id"), req.Title, req.Body)
	respondItem(w, r, it, err)
}

func (a *API) handleDeleteContent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	it, err := a.content.SoftDelete(r.Context(), p, r.PathValue("id"))
	respondItem(w, r, it, err)
}

func (a *API) handleSubmitContent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	it, err := a.content.SubmitForReview(r.Context(), p, r.PathValue("id"))
	respondItem(w, r, it, err)
}

func (a *API) handleApproveContent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	it, err := a.content.Approve(r.Context(), p, r.PathValue("id"))
	respondItem(w, r, it, err)
}

func (a *API) handleRejectContent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	it, err := a.content.Reject(r.Context(), p, r.PathValue("id"), req.Reason)
	respondItem(w, r, it, err)
}

func (a *API) handleScheduleContent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	it, err := a.content.Schedule(r.Context(), p, r.PathValue("id"), req.PublishAt)
	respondItem(w, r, it, err)
}

func (a *API) handleRestoreContent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	it, err := a.content.Restore(r.Context(), p, r.PathValue("id"))
	respondItem(w, r, it, err)
}

func (a *API) handlePurgeContent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if err := a.content.Purge(r.Context(), p, r.PathValue("id")); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleExportContent(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	// headers go out only once the export succeeded
	var buf bytes.Buffer
	if err := a.content.Export(r.Context(), p, &buf); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+content.ExportFileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	stats, err := a.content.Stats(r.Context(), p)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	resp := dashboardResponse{Stats: stats}
	if p.HasPermission(auth.PermAuditRead) {
		recent, err := a.audit.Recent(r.Context(), recentActivityLimit)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		resp.RecentActivity = recent
	}
	writeJSON(w, http.StatusOK, resp)
}

func respondItem(w http.ResponseWriter, r *http.Request, it *content.Item, err error) {
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}
