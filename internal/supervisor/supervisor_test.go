package supervisor

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeServer struct {
	mu       sync.Mutex
	started  chan struct{}
	stop     chan struct{}
	shutdown bool
	failWith error
}

func newFakeServer() *fakeServer {
	return &fakeServer{started: make(chan struct{}), stop: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	if f.failWith != nil {
		return f.failWith
	}
	close(f.started)
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.mu.Lock()
	f.shutdown = true
	f.mu.Unlock()
	close(f.stop)
	return nil
}

func TestHTTPServiceShutsDownOnCancel(t *testing.T) {
	srv := newFakeServer()
	svc := NewHTTPService(srv, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-srv.started
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if !srv.shutdown {
		t.Error("Shutdown not called")
	}
}

func TestHTTPServiceReportsListenError(t *testing.T) {
	srv := newFakeServer()
	srv.failWith = errors.New("address in use")
	err := NewHTTPService(srv, time.Second).Serve(context.Background())
	if err == nil || !strings.Contains(err.Error(), "address in use") {
		t.Fatalf("Serve = %v", err)
	}
}

type panicky struct{ calls chan struct{} }

func (p *panicky) Serve(ctx context.Context) error {
	select {
	case p.calls <- struct{}{}:
	default:
	}
	panic("boom")
}

func TestTreeRestartsAndLogsPanics(t *testing.T) {
	var buf syncBuffer
	tree := New("test", zerolog.New(&buf), Config{FailureBackoff: 10 * time.Millisecond, ShutdownTimeout: time.Second})
	p := &panicky{calls: make(chan struct{}, 10)}
	tree.Add(p)

	ctx, cancel := context.WithCancel(context.Background())
	errc := tree.ServeBackground(ctx)
	for i := 0; i < 2; i++ {
		select {
		case <-p.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("service not restarted (call %d)", i)
		}
	}
	cancel()
	<-errc

	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Errorf("panic not logged at error level: %s", buf.String())
	}
}

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
