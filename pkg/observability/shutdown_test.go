package observability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func testLogger() *Logger {
	return NewLogger(InfoLevel, io.Discard)
}

// startManager runs WaitForShutdown in a goroutine and returns a channel
// carrying its result.
func startManager(sm *ShutdownManager) chan error {
	done := make(chan error, 1)
	go func() { done <- sm.WaitForShutdown() }()
	// Give the goroutine time to install its signal handler before the
	// test signals the process.
	time.Sleep(50 * time.Millisecond)
	return done
}

func sendShutdownSignal(t *testing.T) {
	t.Helper()
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("Failed to signal self: %v", err)
	}
}

func waitResult(t *testing.T, done chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not complete in time")
		return nil
	}
}

func TestShutdownManager_RunsCleanupInOrder(t *testing.T) {
	sm := NewShutdownManager(testLogger(), nil, time.Second)

	var order []string
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		order = append(order, "health server")
		return nil
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		order = append(order, "cron jobs")
		return nil
	})

	done := startManager(sm)
	sendShutdownSignal(t)

	if err := waitResult(t, done); err != nil {
		t.Fatalf("WaitForShutdown failed: %v", err)
	}
	if len(order) != 2 || order[0] != "health server" || order[1] != "cron jobs" {
		t.Errorf("Expected cleanup in registration order, got %v", order)
	}
}

func TestShutdownManager_DrainsAPIServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})}
	go server.Serve(ln)

	sm := NewShutdownManager(testLogger(), server, time.Second)
	done := startManager(sm)
	sendShutdownSignal(t)

	if err := waitResult(t, done); err != nil {
		t.Fatalf("WaitForShutdown failed: %v", err)
	}

	// The listener no longer accepts connections
	if _, err := http.Get("http://" + ln.Addr().String()); err == nil {
		t.Error("Expected the API server to be shut down")
	}
}

func TestShutdownManager_FirstErrorDoesNotStopCleanup(t *testing.T) {
	sm := NewShutdownManager(testLogger(), nil, time.Second)

	var ran atomic.Bool
	boom := errors.New("jobs refused to stop")
	sm.RegisterShutdownFunc(func(ctx context.Context) error { return boom })
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	done := startManager(sm)
	sendShutdownSignal(t)

	if err := waitResult(t, done); !errors.Is(err, boom) {
		t.Errorf("Expected the first cleanup error, got %v", err)
	}
	if !ran.Load() {
		t.Error("A failing cleanup step must not skip the remaining ones")
	}
}

func TestShutdownManager_DeadlineAbandonsRemainingCleanup(t *testing.T) {
	sm := NewShutdownManager(testLogger(), nil, 100*time.Millisecond)

	var second atomic.Bool
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		second.Store(true)
		return nil
	})

	done := startManager(sm)
	sendShutdownSignal(t)

	if err := waitResult(t, done); err == nil {
		t.Error("Expected an error after missing the shutdown deadline")
	}
	if second.Load() {
		t.Error("Cleanup past the deadline must be abandoned")
	}
}

func TestShutdownManager_DefaultTimeout(t *testing.T) {
	sm := NewShutdownManager(testLogger(), nil, 0)
	if sm.timeout != 30*time.Second {
		t.Errorf("Expected 30s default timeout, got %v", sm.timeout)
	}
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	func() {
		defer RecoverPanic(logger, "token cleanup")
		panic(fmt.Errorf("unexpected row"))
	}()

	entry := decodeEntry(t, &buf)
	if entry["context"] != "token cleanup" {
		t.Errorf("Expected panic context in log entry, got %v", entry["context"])
	}
	if entry["stack"] == nil || entry["stack"] == "" {
		t.Error("Expected a stack trace in the log entry")
	}
}
