//go:build unix

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"static-server/internal/config"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRun_SIGTERMDrainsAndReturnsNil(t *testing.T) {
	dir := t.TempDir()
	payload := bytes.Repeat([]byte("alien-egg"), 2<<20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.bin"), payload, 0o644))
	t.Chdir(t.TempDir())

	var out syncBuffer
	ctx, cancel := notifyShutdown(context.Background(), &out)
	defer cancel()

	cfg := config.Config{Root: dir, OpenPath: "big.bin", ShutdownTimeout: 10 * time.Second}
	opener := newRecordingOpener()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, &out, logger, opener) }()

	var url string
	select {
	case url = <-opener.ch:
	case err := <-done:
		t.Fatalf("run returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server never came up")
	}

	// Headers are in, the body is still on the wire.
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Received signal 15. Shutting down gracefully..."))
	}, 5*time.Second, 10*time.Millisecond)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, len(payload), len(body))
	assert.True(t, bytes.Equal(payload, body), "body truncated or corrupted")

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after SIGTERM")
	}
}

func TestNotifyShutdown_CancelWithoutSignal(t *testing.T) {
	var out syncBuffer
	ctx, cancel := notifyShutdown(context.Background(), &out)
	cancel()

	<-ctx.Done()
	assert.Empty(t, out.String())
}

func TestSignalNumber(t *testing.T) {
	assert.Equal(t, "15", signalNumber(syscall.SIGTERM))
	assert.Equal(t, "2", signalNumber(syscall.SIGINT))
}
