package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mgpai22/subdeck/internal/metrics"
)

const (
	shutdownTimeout = 5 * time.Second
	maxWait         = 30 * time.Second
)

// Handler serves the snapshot store.
type Handler struct {
	store *Store
	log   *zap.SugaredLogger
}

// NewHandler returns a Handler over store.
func NewHandler(store *Store, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{store: store, log: log}
}

// GetState handles GET /state. With ?since=N it returns 304 when the
// snapshot version is not newer than N. Adding &wait=D (a duration such as
// 10s, capped at maxWait) holds the request until a newer snapshot arrives
// or D elapses.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	snap := h.store.Get()
	if since := q.Get("since"); since != "" {
		v, err := strconv.ParseUint(since, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		var wait time.Duration
		if s := q.Get("wait"); s != "" {
			wait, err = time.ParseDuration(s)
			if err != nil || wait < 0 {
				http.Error(w, "invalid wait", http.StatusBadRequest)
				return
			}
			wait = min(wait, maxWait)
		}
		if snap.Version <= v && wait > 0 {
			snap = h.waitNewer(r.Context(), v, wait)
		}
		if snap.Version <= v {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.log.Debugw("Failed to write state", "error", err)
	}
}

// waitNewer blocks until the store holds a version above since, wait
// elapses or ctx is done, and returns the latest snapshot.
func (h *Handler) waitNewer(ctx context.Context, since uint64, wait time.Duration) Snapshot {
	changed, cancel := h.store.Changed()
	defer cancel()
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		// re-read after subscribing so a Set in between is not missed
		snap := h.store.Get()
		if snap.Version > since {
			return snap
		}
		select {
		case <-changed:
		case <-timer.C:
			return h.store.Get()
		case <-ctx.Done():
			return h.store.Get()
		}
	}
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// CORSOptions allows every listed origin; a wildcard disables credentials.
func CORSOptions(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowCreds := true
	for _, o := range allowedOrigins {
		if o == "*" {
			allowCreds = false
			break
		}
	}
	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}

// Router wires the bridge endpoints. m may be nil; updateGauges runs before
// each metrics scrape.
func Router(h *Handler, m *metrics.Metrics, origins []string, updateGauges func()) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(CORSOptions(origins)))
	if m != nil {
		r.Use(metrics.RequestMiddleware(m))
		r.Method(http.MethodGet, "/metrics", m.Handler(updateGauges))
	}
	r.Get("/state", h.GetState)
	r.Get("/healthz", h.Healthz)
	return r
}

// Serve runs handler on addr until ctx is cancelled, then drains
// connections.
func Serve(ctx context.Context, addr string, handler http.Handler, log *zap.SugaredLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// cancels held long-polls on shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	log.Infow("Bridge listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
