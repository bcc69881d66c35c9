package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/net/netutil"
)

// Subsystem names used in startup diagnostics
const (
	SubsystemFiles   = "file server"
	SubsystemMetrics = "metrics server"
)

var ErrNotListening = errors.New("server is not listening")

// State is a step in the server lifecycle
type State int32

const (
	StateUnstarted State = iota
	StateListening
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateListening:
		return "listening"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// StartupError reports a listener that could not be bound
type StartupError struct {
	Subsystem string
	Addr      string
	Err       error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("%s: failed to listen on %s: %v", e.Subsystem, e.Addr, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// Options configures the two listeners
type Options struct {
	Port            int
	MetricsPort     int
	MaxConnections  int
	ShutdownTimeout time.Duration
}

// Server runs the file server and the metrics server side by side. They share
// nothing but the process: a stalled scrape cannot hold up file requests.
type Server struct {
	opts   Options
	logger *slog.Logger

	files   *http.Server
	metrics *http.Server

	filesLn   net.Listener
	metricsLn net.Listener

	state atomic.Int32
}

// New creates a server in the Unstarted state
func New(opts Options, files, metrics http.Handler, logger *slog.Logger) *Server {
	errorLog := slog.NewLogLogger(logger.Handler(), slog.LevelWarn)

	return &Server{
		opts:    opts,
		logger:  logger,
		files:   &http.Server{Handler: files, ErrorLog: errorLog},
		metrics: &http.Server{Handler: metrics, ErrorLog: errorLog},
	}
}

// State returns the current lifecycle state
func (s *Server) State() State {
	return State(s.state.Load())
}

// Listen binds the metrics listener on all IPv4 interfaces, then the file
// listener dual-stack. Either both are bound on return or neither is.
func (s *Server) Listen(ctx context.Context) error {
	if st := s.State(); st != StateUnstarted {
		return fmt.Errorf("listen called in state %s", st)
	}

	metricsAddr := net.JoinHostPort("0.0.0.0", strconv.Itoa(s.opts.MetricsPort))
	var lc net.ListenConfig
	mln, err := lc.Listen(ctx, "tcp4", metricsAddr)
	if err != nil {
		return &StartupError{Subsystem: SubsystemMetrics, Addr: metricsAddr, Err: err}
	}

	fln, err := listenDualStack(ctx, s.opts.Port)
	if err != nil {
		_ = mln.Close()
		return &StartupError{
			Subsystem: SubsystemFiles,
			Addr:      net.JoinHostPort("", strconv.Itoa(s.opts.Port)),
			Err:       err,
		}
	}

	if s.opts.MaxConnections > 0 {
		fln = netutil.LimitListener(fln, s.opts.MaxConnections)
	}

	s.filesLn = fln
	s.metricsLn = mln
	s.state.Store(int32(StateListening))
	return nil
}

// Addr is the file server's bound address
func (s *Server) Addr() net.Addr {
	if s.filesLn == nil {
		return nil
	}
	return s.filesLn.Addr()
}

// MetricsAddr is the metrics server's bound address
func (s *Server) MetricsAddr() net.Addr {
	if s.metricsLn == nil {
		return nil
	}
	return s.metricsLn.Addr()
}

// Serve runs both accept loops until ctx is done, then drains in-flight
// requests and closes the listeners. A metrics server failure is logged and
// does not stop file serving.
func (s *Server) Serve(ctx context.Context) error {
	if s.State() != StateListening {
		return ErrNotListening
	}

	filesErr := make(chan error, 1)
	go func() {
		filesErr <- s.files.Serve(s.filesLn)
	}()

	go func() {
		err := s.metrics.Serve(s.metricsLn)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", "error", err, "address", s.metricsLn.Addr().String())
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server", "address", s.filesLn.Addr().String())
		return s.shutdown()
	case err := <-filesErr:
		shutdownErr := s.shutdown()
		return errors.Join(fmt.Errorf("%s: %w", SubsystemFiles, err), shutdownErr)
	}
}

// shutdown stops accepting, waits for in-flight requests up to the configured
// timeout (forever when zero), then force-closes whatever is left.
func (s *Server) shutdown() error {
	s.state.Store(int32(StateDraining))
	defer s.state.Store(int32(StateStopped))

	ctx := context.Background()
	if s.opts.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	for _, sub := range []struct {
		name string
		srv  *http.Server
	}{
		{SubsystemFiles, s.files},
		{SubsystemMetrics, s.metrics},
	} {
		if err := sub.srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: shutdown: %w", sub.name, err))
			_ = sub.srv.Close()
		}
	}

	if len(errs) == 0 {
		s.logger.Info("server stopped gracefully")
	}
	return errors.Join(errs...)
}
