package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/queue"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/types"
	"go.uber.org/zap"
)

type stubRouter struct {
	mu     sync.Mutex
	routed []string
	fail   map[string]bool
}

func (r *stubRouter) Route(_ context.Context, doc *types.Document) (pipeline.Verdict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routed = append(r.routed, doc.Name)
	if r.fail[doc.Name] {
		return pipeline.Verdict{}, errors.New("destination down")
	}
	return pipeline.Verdict{Route: pipeline.RouteAccepted}, nil
}

type stubAcker struct {
	mu        sync.Mutex
	committed []string
	abandoned []string
}

func (a *stubAcker) Commit(doc *types.Document) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.committed = append(a.committed, doc.Name)
}

func (a *stubAcker) Abandon(doc *types.Document) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.abandoned = append(a.abandoned, doc.Name)
}

func TestNewPool_Validation(t *testing.T) {
	q := queue.NewQueue(1, nil)
	r, a, l := &stubRouter{}, &stubAcker{}, zap.NewNop()

	if _, err := NewPool(0, q, r, a, l); err == nil {
		t.Error("Expected error for zero workers")
	}
	if _, err := NewPool(1, nil, r, a, l); err == nil {
		t.Error("Expected error for nil queue")
	}
	if _, err := NewPool(1, q, nil, a, l); err == nil {
		t.Error("Expected error for nil router")
	}
	if _, err := NewPool(1, q, r, nil, l); err == nil {
		t.Error("Expected error for nil acker")
	}
}

func TestPool_RoutesAndAcknowledges(t *testing.T) {
	q := queue.NewQueue(10, nil)
	router := &stubRouter{fail: map[string]bool{"bad.json": true}}
	acker := &stubAcker{}

	pool, err := NewPool(3, q, router, acker, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	names := []string{"a.json", "b.json", "bad.json", "c.json"}
	for _, n := range names {
		if err := q.Enqueue(context.Background(), &types.Document{Name: n}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	q.Close()

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pool.Start(context.Background()); !errors.Is(err, ErrPoolAlreadyStarted) {
		t.Fatalf("Expected ErrPoolAlreadyStarted, got %v", err)
	}

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not drain the closed queue")
	}
	if err := pool.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if len(router.routed) != len(names) {
		t.Fatalf("Expected %d routed, got %v", len(names), router.routed)
	}
	if len(acker.committed) != 3 {
		t.Errorf("Expected 3 commits, got %v", acker.committed)
	}
	if len(acker.abandoned) != 1 || acker.abandoned[0] != "bad.json" {
		t.Errorf("Expected bad.json abandoned, got %v", acker.abandoned)
	}
}

func TestPool_StopInterruptsIdleWorkers(t *testing.T) {
	q := queue.NewQueue(1, nil)
	pool, _ := NewPool(2, q, &stubRouter{}, &stubAcker{}, zap.NewNop())

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- pool.Stop() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	if err := pool.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestPool_ContextCancelStopsWorkers(t *testing.T) {
	q := queue.NewQueue(1, nil)
	pool, _ := NewPool(2, q, &stubRouter{}, &stubAcker{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop on context cancel")
	}
	_ = pool.Stop()
}

// gatedRouter holds each document until release is closed.
type gatedRouter struct {
	started chan string
	release chan struct{}
}

func (r *gatedRouter) Route(_ context.Context, doc *types.Document) (pipeline.Verdict, error) {
	r.started <- doc.Name
	<-r.release
	return pipeline.Verdict{Route: pipeline.RouteRejected}, nil
}

func TestPool_CancelFinishesHeldDocumentOnly(t *testing.T) {
	q := queue.NewQueue(5, nil)
	for _, n := range []string{"a.json", "b.json", "c.json"} {
		if err := q.Enqueue(context.Background(), &types.Document{Name: n}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	router := &gatedRouter{started: make(chan string, 1), release: make(chan struct{})}
	acker := &stubAcker{}
	pool, _ := NewPool(1, q, router, acker, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	held := <-router.started
	cancel()
	close(router.release)

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after finishing its document")
	}
	_ = pool.Stop()

	if len(acker.committed) != 1 || acker.committed[0] != held {
		t.Fatalf("Expected only %s committed, got %v", held, acker.committed)
	}
	if q.Depth() != 2 {
		t.Fatalf("Expected 2 documents left queued, got %d", q.Depth())
	}
}
