package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"alpd/api/internal/session"
	"alpd/api/internal/store"
)

const sessionCookie = "alpd_session"

// RecentLister is satisfied by store.RecognitionRepo.
type RecentLister interface {
	Recent(ctx context.Context, limit int) ([]store.RecognitionRow, error)
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handle struct {
	sessions     *session.Manager
	recognitions RecentLister
	db           Pinger
	maxUpload    int64
	timeout      time.Duration
}

type Option func(*Handle)

// WithRecognitionLog enables GET /api/recognitions and the DB check in /healthz.
func WithRecognitionLog(l RecentLister, db Pinger) Option {
	return func(h *Handle) { h.recognitions, h.db = l, db }
}

func WithMaxUploadBytes(n int64) Option { return func(h *Handle) { h.maxUpload = n } }

// WithTimeout bounds one analysis; 0 means no deadline.
func WithTimeout(d time.Duration) Option { return func(h *Handle) { h.timeout = d } }

func New(sessions *session.Manager, opts ...Option) *Handle {
	h := &Handle{
		sessions:  sessions,
		maxUpload: 20 << 20,
		timeout:   180 * time.Second,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register mounts every route on mux.
func (h *Handle) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.Healthz)
	mux.HandleFunc("/api/state", h.State)
	mux.HandleFunc("/api/image", h.SelectImage)
	mux.HandleFunc("/api/analyze", h.Analyze)
	mux.HandleFunc("/api/reset", h.Reset)
	mux.HandleFunc("/api/history", h.History)
	mux.HandleFunc("/api/history/select", h.SelectHistory)
	mux.HandleFunc("/api/recognitions", h.Recognitions)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func postOnly(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return false
	}
	return true
}

// sessionFor returns the caller's session. Unknown or expired cookie values are
// never adopted: the caller gets a fresh id instead.
func (h *Handle) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		if s, ok := h.sessions.Lookup(c.Value); ok {
			return s
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return h.sessions.Get(id)
}

func (h *Handle) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
