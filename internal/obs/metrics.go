package obs

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "folio"

var httpLabels = []string{"method", "route", "status"}

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "Requests currently being served.",
	})
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Served HTTP requests.",
	}, httpLabels)
	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Time to serve an HTTP request.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, httpLabels)
)

// редакционный процесс
var (
	contentTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "content_transitions_total",
		Help:      "Content status transitions.",
	}, []string{"from", "to"})
	auditEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_entries_total",
		Help:      "Audit log entries appended, by action.",
	}, []string{"action"})
	loginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})
	streamSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_subscribers",
		Help:      "Open audit stream subscriptions.",
	})
	streamDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_dropped_total",
		Help:      "Audit entries not delivered to a slow subscriber.",
	})
	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ready",
		Help:      "1 when the service reports ready.",
	})
)

var (
	initOnce sync.Once
	ready    atomic.Bool
)

// Init registers all metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			contentTransitions, auditEntries, loginAttempts, readyGauge,
			streamSubscribers, streamDropped,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(Logger().Handler(), slog.LevelError),
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// SetReady flips the readiness flag reported by /readyz and the gRPC health service.
func SetReady(v bool) {
	ready.Store(v)
	if v {
		readyGauge.Set(1)
	} else {
		readyGauge.Set(0)
	}
}

// IsReady reports the readiness flag.
func IsReady() bool { return ready.Load() }

// ContentTransition counts a status change.
func ContentTransition(from, to string) {
	contentTransitions.WithLabelValues(from, to).Inc()
}

// AuditAppended counts an appended audit entry.
func AuditAppended(action string) {
	auditEntries.WithLabelValues(action).Inc()
}

// LoginAttempt counts a login by result ("ok", "invalid", "error").
func LoginAttempt(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// StreamSubscribers sets the open subscription gauge.
func StreamSubscribers(n int) { streamSubscribers.Set(float64(n)) }

// StreamDropped counts an entry a subscriber missed.
func StreamDropped() { streamDropped.Inc() }

// CanonicalPath collapses identifiers in URL paths so metric label cardinality stays bounded.
func CanonicalPath(raw string) string {
	path := raw
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "content" && parts[2] != "export":
		return "/v1/content/:id"
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "content":
		return "/v1/content/:id/" + parts[3]
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "auth" && parts[2] == "invites":
		return "/v1/auth/invites/:token"
	case len(parts) == 5 && parts[0] == "v1" && parts[1] == "auth" && parts[2] == "password" && parts[3] == "reset":
		return "/v1/auth/password/reset/:token"
	}
	return path
}

// route returns the ServeMux pattern that matched r without its method, or
// StreamSubscribers sets the open subscription gauge.
func StreamSubscribers(n int) { streamSubscribers.Set(float64(n)) }

// StreamDropped counts an entry a subscriber missed.
func StreamDropped() { streamDropped.Inc() }

// CanonicalPath when no pattern was recorded.
func route(r *http.Request) string {
	if r.Pattern == "" {
		return CanonicalPath(r.URL.Path)
	}
	if _, p, ok := strings.Cut(r.Pattern, " "); ok {
		return p
	}
	return r.Pattern
}

// Instrument records count, latency and in-flight gauge for next. When next
// is a ServeMux the route label is the matched pattern.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		mw := &metricsWriter{ResponseWriter: w, status: http.StatusOK}
		began := time.Now()
		next.ServeHTTP(mw, r)

		labels := []string{r.Method, route(r), strconv.Itoa(mw.status)}
		httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(began).Seconds())
		httpRequestsTotal.WithLabelValues(labels...).Inc()
	})
}

type metricsWriter struct {
	http.ResponseWriter
	status int
}

func (w *metricsWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *metricsWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
