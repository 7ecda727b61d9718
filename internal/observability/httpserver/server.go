// Package httpserver serves the operational endpoints: /healthz, /metrics,
// /status and optionally pprof.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	logx "ghwatch/pkg/logx"
)

// Config for the status server.
//
// Bind to loopback (the default) unless Token is set or AllowInsecure is
// explicitly enabled.
type Config struct {
	Addr          string
	Token         string
	AllowInsecure bool
	Pprof         bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Deps struct {
	Metrics http.Handler
	// Health returns nil while the process is healthy.
	Health func() error
	// Status returns any JSON-encodable value for /status.
	Status func() any
}

type Server struct {
	cfg  Config
	deps Deps
	log  logx.Logger
}

const pprofPrefix = "/debug/pprof/"

func New(cfg Config, deps Deps, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:9310"
	}
	return &Server{cfg: cfg, deps: deps, log: log.With(logx.String("comp", "http"))}
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	auth := func(h http.Handler) http.Handler { return withAuth(s.cfg.Token, h) }

	mux.Handle("/healthz", auth(http.HandlerFunc(s.healthz)))
	mux.Handle("/status", auth(http.HandlerFunc(s.status)))
	if s.deps.Metrics != nil {
		mux.Handle("/metrics", auth(s.deps.Metrics))
	}
	if s.cfg.Pprof {
		mux.Handle(pprofPrefix, auth(http.HandlerFunc(hpprof.Index)))
		mux.Handle(pprofPrefix+"cmdline", auth(http.HandlerFunc(hpprof.Cmdline)))
		mux.Handle(pprofPrefix+"profile", auth(http.HandlerFunc(hpprof.Profile)))
		mux.Handle(pprofPrefix+"symbol", auth(http.HandlerFunc(hpprof.Symbol)))
		mux.Handle(pprofPrefix+"trace", auth(http.HandlerFunc(hpprof.Trace)))
	}
	return mux
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	var v any = struct{}{}
	if s.deps.Status != nil {
		v = s.deps.Status()
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.log.Warn("status encode failed", logx.Err(err))
	}
}

// Run listens and serves until ctx is done. It refuses a non-loopback bind
// without a token unless AllowInsecure is set.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Addr
	if !s.cfg.AllowInsecure && s.cfg.Token == "" && !isLoopbackAddr(addr) {
		return errors.New("http server refused to start: non-loopback addr requires token or allow_insecure")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("http server started",
		logx.String("addr", ln.Addr().String()),
		logx.Bool("pprof", s.cfg.Pprof),
		logx.Bool("token_set", s.cfg.Token != ""),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return errors.New("http server exited unexpectedly")
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	<-errCh
	s.log.Info("http server stopped")
	return nil
}

// withAuth accepts "Authorization: Bearer <token>" or "?token=<token>".
func withAuth(token string, h http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("token")
		if got == "" {
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, "Bearer ") {
				got = strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
			}
		}
		if got != tok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
