package hlsproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// State is the lifecycle of a Server.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateListening
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	default:
		return "stopped"
	}
}

// HandlerFunc builds the HTTP handler once the relay address is known.
type HandlerFunc func(proxy ProxyConfig) http.Handler

// Server is the lazily started local relay. The zero port asks the OS for an
// ephemeral one; once listening, the port never changes until Shutdown.
type Server struct {
	host  string
	port  int
	build HandlerFunc
	log   *slog.Logger

	mu     sync.Mutex
	state  State
	proxy  ProxyConfig
	srv    *http.Server
	cancel context.CancelFunc
}

// NewServer returns a stopped Server. An empty host means DefaultHost.
func NewServer(host string, port int, build HandlerFunc, log *slog.Logger) *Server {
	if host == "" {
		host = DefaultHost
	}
	return &Server{host: host, port: port, build: build, log: log}
}

// EnsureStarted starts the relay on first use and returns its port. Later and
// concurrent calls wait for the first one and return the same port.
func (s *Server) EnsureStarted(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateListening {
		return s.proxy.Port, nil
	}
	s.state = StateStarting

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		s.state = StateStopped
		return 0, fmt.Errorf("%w: %w", ErrBindFailed, err)
	}

	s.proxy = ProxyConfig{Host: s.host, Port: ln.Addr().(*net.TCPAddr).Port}

	base, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.srv = &http.Server{
		Handler:           s.build(s.proxy),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("hls proxy stopped serving", slog.String("error", err.Error()))
		}
	}(s.srv)

	s.state = StateListening
	s.log.Info("hls proxy listening", slog.String("addr", ln.Addr().String()))
	return s.proxy.Port, nil
}

// State reports the lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Proxy returns the relay address, or nil when not listening.
func (s *Server) Proxy() *ProxyConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateListening {
		return nil
	}
	p := s.proxy
	return &p
}

// PlaybackURL starts the relay if needed and returns the URL a player should
// open for d. If the relay cannot start, the direct URL is returned along with
// the error so callers can still attempt playback.
func (s *Server) PlaybackURL(ctx context.Context, d StreamDescriptor) (string, error) {
	if _, err := s.EnsureStarted(ctx); err != nil {
		return StreamURL(nil, d), err
	}
	return StreamURL(s.Proxy(), d), nil
}

// Shutdown drains in-flight requests until ctx is done, then aborts the
// remaining upstream fetches.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateListening {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	s.cancel()
	if err != nil {
		err = errors.Join(err, s.srv.Close())
	}
	s.state = StateStopped
	s.srv = nil
	return err
}
