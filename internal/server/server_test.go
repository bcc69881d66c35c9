package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts Options, files, metrics http.Handler) *Server {
	t.Helper()

	if files == nil {
		files = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("file"))
		})
	}
	if metrics == nil {
		metrics = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		})
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(opts, files, metrics, logger)
}

// startServer binds on ephemeral ports and serves until the returned cancel
// is called. The channel yields Serve's result.
func startServer(t *testing.T, s *Server) (context.CancelFunc, <-chan error) {
	t.Helper()

	require.NoError(t, s.Listen(context.Background()))
	require.Equal(t, StateListening, s.State())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	})
	return cancel, done
}

func get(t *testing.T, addr net.Addr, path string) (int, string) {
	t.Helper()

	resp, err := http.Get("http://" + addr.String() + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func portOf(addr net.Addr) int {
	return addr.(*net.TCPAddr).Port
}

func occupy(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return portOf(ln.Addr())
}

func TestServer_ServesBothPorts(t *testing.T) {
	s := newTestServer(t, Options{}, nil, nil)
	startServer(t, s)

	code, body := get(t, s.Addr(), "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "file", body)

	code, body = get(t, s.MetricsAddr(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "metrics", body)
}

func TestServer_FileListenerAcceptsIPv4(t *testing.T) {
	s := newTestServer(t, Options{}, nil, nil)
	startServer(t, s)

	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: portOf(s.Addr())}
	code, _ := get(t, addr, "/")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_FileListenerAcceptsIPv6(t *testing.T) {
	v6, err := net.Listen("tcp6", "[::1]:0")
	if err != nil {
		t.Skipf("IPv6 loopback unavailable: %v", err)
	}
	_ = v6.Close()

	s := newTestServer(t, Options{}, nil, nil)
	startServer(t, s)

	addr := &net.TCPAddr{IP: net.IPv6loopback, Port: portOf(s.Addr())}
	code, _ := get(t, addr, "/")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_MetricsPortInUse(t *testing.T) {
	port := occupy(t)
	s := newTestServer(t, Options{MetricsPort: port}, nil, nil)

	err := s.Listen(context.Background())

	var startupErr *StartupError
	require.True(t, errors.As(err, &startupErr), "got %v", err)
	assert.Equal(t, SubsystemMetrics, startupErr.Subsystem)
	assert.Contains(t, err.Error(), strconv.Itoa(port))
	assert.Equal(t, StateUnstarted, s.State())
}

func TestServer_FilePortInUse(t *testing.T) {
	port := occupy(t)
	s := newTestServer(t, Options{Port: port}, nil, nil)

	err := s.Listen(context.Background())

	var startupErr *StartupError
	require.True(t, errors.As(err, &startupErr), "got %v", err)
	assert.Equal(t, SubsystemFiles, startupErr.Subsystem)
	assert.Contains(t, err.Error(), strconv.Itoa(port))
	assert.Nil(t, s.MetricsAddr(), "metrics listener must be released")
}

func TestServer_BothPortsInUse(t *testing.T) {
	filePort, metricsPort := occupy(t), occupy(t)
	s := newTestServer(t, Options{Port: filePort, MetricsPort: metricsPort}, nil, nil)

	err := s.Listen(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf(":%d", metricsPort))
}

func TestServer_ServeBeforeListen(t *testing.T) {
	s := newTestServer(t, Options{}, nil, nil)
	assert.ErrorIs(t, s.Serve(context.Background()), ErrNotListening)
}

func TestServer_DrainsInFlightRequest(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	files := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		_, _ = w.Write([]byte("complete response"))
	})

	s := newTestServer(t, Options{}, files, nil)
	cancel, done := startServer(t, s)

	type result struct {
		code int
		body string
		err  error
	}
	got := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + s.Addr().String() + "/slow")
		if err != nil {
			got <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		got <- result{code: resp.StatusCode, body: string(body), err: err}
	}()

	<-entered
	cancel()

	require.Eventually(t, func() bool { return s.State() == StateDraining }, 2*time.Second, 5*time.Millisecond)
	close(release)

	r := <-got
	require.NoError(t, r.err)
	assert.Equal(t, http.StatusOK, r.code)
	assert.Equal(t, "complete response", r.body)

	require.NoError(t, <-done)
	assert.Equal(t, StateStopped, s.State())
}

func TestServer_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	entered := make(chan struct{})
	files := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})

	s := newTestServer(t, Options{ShutdownTimeout: 50 * time.Millisecond}, files, nil)
	cancel, done := startServer(t, s)

	go func() {
		resp, err := http.Get("http://" + s.Addr().String() + "/")
		if err == nil {
			_ = resp.Body.Close()
		}
	}()

	<-entered
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateStopped, s.State())
}

// net/http rejects unparseable requests before any handler runs, so those
// responses carry neither the isolation headers nor a request count.
func TestServer_MalformedRequestBypassesHandler(t *testing.T) {
	var calls atomic.Int32
	files := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	})

	s := newTestServer(t, Options{}, files, nil)
	startServer(t, s)

	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: portOf(s.Addr())}
	conn, err := net.DialTimeout("tcp", addr.String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: bad host\r\n\r\n"))
	require.NoError(t, err)

	raw, err := io.ReadAll(conn)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(raw), "HTTP/1.1 400 Bad Request"), "got %q", raw)
	assert.NotContains(t, string(raw), "Cross-Origin-Opener-Policy")
	assert.Zero(t, calls.Load())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unstarted", StateUnstarted.String())
	assert.Equal(t, "listening", StateListening.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
