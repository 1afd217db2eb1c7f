package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

// flakyService fails its first run and then blocks until stopped.
type flakyService struct {
	runs atomic.Int32
}

func (s *flakyService) Serve(ctx context.Context) error {
	if s.runs.Add(1) == 1 {
		return errors.New("boom")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *flakyService) String() string { return "flaky" }

func TestTree_RestartsFailedService(t *testing.T) {
	tree := NewTree(TreeConfig{FailureBackoff: 10 * time.Millisecond, ShutdownTimeout: time.Second})
	svc := &flakyService{}
	tree.AddCoreService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for svc.runs.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("service ran %d times, want a restart", svc.runs.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}

type fakeHTTPServer struct {
	listenErr error
	stop      chan struct{}
	shutdowns atomic.Int32
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	f.shutdowns.Add(1)
	close(f.stop)
	return nil
}

func TestHTTPServerService(t *testing.T) {
	t.Run("Graceful shutdown", func(t *testing.T) {
		srv := &fakeHTTPServer{stop: make(chan struct{})}
		svc := NewHTTPServerService(srv, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() error = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve() did not return")
		}
		if srv.shutdowns.Load() != 1 {
			t.Errorf("Shutdown called %d times, want 1", srv.shutdowns.Load())
		}
	})

	t.Run("Listen failure", func(t *testing.T) {
		srv := &fakeHTTPServer{listenErr: errors.New("address in use")}
		err := NewHTTPServerService(srv, time.Second).Serve(context.Background())
		if err == nil {
			t.Fatal("Serve() error = nil, want listen failure")
		}
	})
}
