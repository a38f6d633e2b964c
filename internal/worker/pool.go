// Package worker provides a fixed-size worker pool that routes documents from the queue
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/queue"
	"github.com/Sheliakhin-Golang-portfolio/TelemetryGate/internal/types"
	"go.uber.org/zap"
)

// Router is the per-document entry point the workers call.
type Router interface {
	Route(ctx context.Context, doc *types.Document) (pipeline.Verdict, error)
}

// Acker acknowledges documents back to their source.
type Acker interface {
	Commit(doc *types.Document)
	Abandon(doc *types.Document)
}

// Pool is a fixed-size set of workers routing documents from a queue
type Pool struct {
	workerCount int
	queue       *queue.Queue
	router      Router
	acker       Acker
	logger      *zap.Logger
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// NewPool creates a pool of workerCount workers
func NewPool(workerCount int, q *queue.Queue, router Router, acker Acker, logger *zap.Logger) (*Pool, error) {
	if workerCount <= 0 {
		return nil, fmt.Errorf("worker count must be greater than 0, got: %d", workerCount)
	}
	if q == nil || router == nil || acker == nil || logger == nil {
		return nil, fmt.Errorf("queue, router, acker and logger are required")
	}

	return &Pool{
		workerCount: workerCount,
		queue:       q,
		router:      router,
		acker:       acker,
		logger:      logger,
	}, nil
}

// Start launches the workers. Each one routes documents until ctx or the
// pool is cancelled, or the queue is closed and drained.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}
	p.started = true
	poolCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.logger.Info("Starting worker pool", zap.Int("workerCount", p.workerCount))

	for i := range p.workerCount {
		p.wg.Add(1)
		go p.worker(ctx, poolCtx, i)
	}
	return nil
}

func (p *Pool) worker(ctx, poolCtx context.Context, workerID int) {
	defer p.wg.Done()

	// Dequeue also stops on Stop, while routing keeps ctx so a held document finishes.
	dequeueCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopAfter := context.AfterFunc(poolCtx, cancel)
	defer stopAfter()

	for dequeueCtx.Err() == nil {
		doc, err := p.queue.Dequeue(dequeueCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, queue.ErrQueueClosed) {
				p.logger.Debug("Worker stopping", zap.Int("workerID", workerID), zap.Error(err))
				return
			}
			p.logger.Error("Failed to dequeue document", zap.Error(err), zap.Int("workerID", workerID))
			continue
		}

		p.routeDocument(ctx, doc, workerID)
	}
	p.logger.Debug("Worker stopping", zap.Int("workerID", workerID), zap.Error(dequeueCtx.Err()))
}

// routeDocument runs one gate invocation and acknowledges the document.
// A failed destination write abandons the document so the source redelivers it.
func (p *Pool) routeDocument(ctx context.Context, doc *types.Document, workerID int) {
	verdict, err := p.router.Route(ctx, doc)
	if err != nil {
		p.logger.Error("Routing failed",
			zap.Error(err),
			zap.Int("workerID", workerID),
			zap.String("document", doc.Name),
			zap.Int("bodyLength", len(doc.Body)),
			zap.Int("queueDepth", p.queue.Depth()),
		)
		p.acker.Abandon(doc)
		return
	}

	p.acker.Commit(doc)
	p.logger.Debug("Document acknowledged",
		zap.Int("workerID", workerID),
		zap.String("document", doc.Name),
		zap.String("route", verdict.Route.String()),
	)
}

// Wait blocks until every worker has returned
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Stop interrupts idle workers and waits for those routing a document.
// Documents still queued stay unacknowledged.
func (p *Pool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}
	p.started = false

	p.logger.Info("Stopping worker pool", zap.Int("workerCount", p.workerCount))
	p.cancel()
	p.wg.Wait()
	p.cancel = nil
	p.logger.Info("Worker pool stopped")

	return nil
}

// Errors
var (
	ErrPoolAlreadyStarted = &PoolError{msg: "worker pool is already started"}
)

// PoolError represents a worker pool operation error
type PoolError struct {
	msg string
}

func (e *PoolError) Error() string {
	return e.msg
}
