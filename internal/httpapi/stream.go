package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"folio.dev/internal/audit"
	"folio.dev/internal/auth"
	"folio.dev/internal/obs"
)

var streamKeepAlive = 15 * time.Second

type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (s sseWriter) comment(text string) {
	_, _ = fmt.Fprintf(s.w, ": %s\n\n", text)
	s.f.Flush()
}

func (s sseWriter) entry(e audit.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: audit\ndata: %s\n\n", e.ID, payload); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

// Stream pushes new audit entries to the client as Server-Sent Events
// until the request context ends.
func (a *API) Stream(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	if err := p.Require(auth.PermAuditRead); err != nil {
		handleDomainError(w, r, err)
		return
	}
	if a.stream == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}
	f, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	entries := a.stream.Subscribe(ctx)
	out := sseWriter{w: w, f: f}
	out.comment("stream started")

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			out.comment("keep-alive")
		case e, open := <-entries:
			if !open {
				return
			}
			if err := out.entry(e); err != nil {
				obs.Logger().Debug("sse write failed", "error", err.Error())
				return
			}
		}
	}
}
