package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	rtsup "cmdsched/internal/runtime/supervisor"
	logx "cmdsched/pkg/logx"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerConfig controls the optional HTTP endpoint.
type ServerConfig struct {
	Addr  string // empty disables the server
	Path  string // default "/metrics"
	Pprof bool   // also mount net/http/pprof under /debug/pprof/
}

// Server serves /metrics and /healthz under a restarting supervisor.
type Server struct {
	mu  sync.Mutex
	log logx.Logger
	cfg ServerConfig
	m   *Metrics

	sup  *rtsup.Supervisor
	addr string
}

func NewServer(cfg ServerConfig, m *Metrics, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, m: m, log: log.With(logx.String("comp", "metrics"))}
}

// Addr returns the bound listen address while the server is running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start is idempotent and a no-op when Addr is empty.
func (s *Server) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil || strings.TrimSpace(s.cfg.Addr) == "" {
		return
	}
	// Metrics are optional; never take the scheduler down.
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	s.sup.GoRestart("http.serve", s.serveOnce,
		rtsup.WithReportErrors(),
		rtsup.WithBackoff(500*time.Millisecond, 10*time.Second),
	)
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return
	}
	sup.Cancel()
	_ = sup.Wait(ctx)
	s.log.Info("metrics server stopped")
}

func (s *Server) handler() http.Handler {
	path := strings.TrimSpace(s.cfg.Path)
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(s.m.Registry, promhttp.HandlerOpts{Registry: s.m.Registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.Pprof {
		mux.HandleFunc("/debug/pprof/", hpprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", hpprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", hpprof.Trace)
	}
	return mux
}

func (s *Server) serveOnce(ctx context.Context) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(s.cfg.Addr))
	if err != nil {
		s.log.Error("metrics listen failed", logx.String("addr", s.cfg.Addr), logx.Err(err))
		if ctx.Err() != nil {
			return context.Canceled
		}
		return err
	}
	srv := &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	s.log.Info("metrics server started", logx.String("addr", ln.Addr().String()))

	err = srv.Serve(ln)

	s.mu.Lock()
	s.addr = ""
	s.mu.Unlock()
	if ctx.Err() != nil {
		return context.Canceled
	}
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return errors.New("metrics server exited unexpectedly")
	}
	return err
}
