// Package ops serves the operator HTTP surface: Prometheus metrics, a JSON
// health report and net/http/pprof.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"eventbot/internal/runtime/supervisor"
	logx "eventbot/pkg/logx"

	"github.com/gorilla/mux"
)

// Config controls the ops server.
//
// Binding to a non-loopback address requires Token unless AllowInsecure is
// set.
type Config struct {
	Addr          string
	Token         string
	AllowInsecure bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

const DefaultAddr = "127.0.0.1:9464"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg     Config
	log     logx.Logger
	metrics http.Handler
	sup     *supervisor.Supervisor
	store   Pinger
	started time.Time
}

func New(cfg Config, log logx.Logger, metrics http.Handler, sup *supervisor.Supervisor, store Pinger) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	// /debug/pprof/profile streams for 30s by default.
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, log: log, metrics: metrics, sup: sup, store: store, started: time.Now()}
}

// Router builds the handler tree.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recoverer, s.withAuth)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	r.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
	r.HandleFunc("/debug/pprof/profile", hpprof.Profile)
	r.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", hpprof.Trace)
	r.PathPrefix("/debug/pprof/").HandlerFunc(hpprof.Index)
	return r
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if s.cfg.Token == "" && !isLoopbackAddr(addr) {
		if !s.cfg.AllowInsecure {
			return fmt.Errorf("ops server refused %s: non-loopback address requires a token", addr)
		}
		s.log.Warn("ops server running without token on non-loopback address", logx.String("addr", addr))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("ops listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	s.log.Info("ops server started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", s.cfg.Token != ""))
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) && ctx.Err() != nil {
		<-stopped
		s.log.Info("ops server stopped")
		return nil
	}
	if err == nil {
		err = errors.New("ops server exited unexpectedly")
	}
	return err
}

type healthReport struct {
	Status     string               `json:"status"`
	Uptime     string               `json:"uptime"`
	Store      string               `json:"store"`
	Supervisor *supervisor.Snapshot `json:"supervisor,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	rep := healthReport{Status: "ok", Store: "ok", Uptime: time.Since(s.started).Round(time.Second).String()}
	code := http.StatusOK

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := s.store.Ping(ctx)
		cancel()
		if err != nil {
			rep.Status, rep.Store = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if s.sup != nil {
		snap := s.sup.Snapshot()
		rep.Supervisor = &snap
		if snap.FirstError != "" && code == http.StatusOK {
			rep.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.log.Error("ops handler panic", logx.String("path", r.URL.Path), logx.Any("panic", p))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withAuth accepts "Authorization: Bearer <token>" or ?token=<token>.
func (s *Server) withAuth(next http.Handler) http.Handler {
	tok := strings.TrimSpace(s.cfg.Token)
	if tok == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if got == "" {
			got = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		}
		if got != tok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
