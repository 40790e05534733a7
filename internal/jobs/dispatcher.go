package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/zorli-ai/docvault/internal/domain"
)

const panicRecoveryTimeout = 5 * time.Second

// Processor runs the ingestion pipeline for one queued document.
type Processor interface {
	Process(ctx context.Context, documentID string) error
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ctx context.Context, documentID string) error

func (f ProcessorFunc) Process(ctx context.Context, documentID string) error {
	return f(ctx, documentID)
}

// DocumentStore is the document access the dispatcher needs: failure
// marking after a worker panic and the startup requeue scan.
type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	MarkFailed(ctx context.Context, id string, stage domain.ProcessingStage, reason string) error
	RequeueStaleProcessing(ctx context.Context) (int, error)
	ListPendingIDs(ctx context.Context) ([]string, error)
}

// DispatcherConfig holds dispatcher tuning knobs.
type DispatcherConfig struct {
	WorkerCount    int
	QueueCapacity  int
	ProcessTimeout time.Duration
}

// Dispatcher owns the in-memory document queue and the worker pool that
// drains it. Uploads enqueue document ids; workers run the processor,
// each under its own timeout.
type Dispatcher struct {
	processor      Processor
	documents      DocumentStore
	queue          chan string
	pool           *ants.Pool
	processTimeout time.Duration
	inflight       sync.WaitGroup
	stopChan       chan struct{}
	doneChan       chan struct{}
}

// NewDispatcher creates a new Dispatcher instance
func NewDispatcher(processor Processor, documents DocumentStore, cfg DispatcherConfig) (*Dispatcher, error) {
	pool, err := ants.NewPool(cfg.WorkerCount)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	timeout := cfg.ProcessTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	return &Dispatcher{
		processor:      processor,
		documents:      documents,
		queue:          make(chan string, cfg.QueueCapacity),
		pool:           pool,
		processTimeout: timeout,
		stopChan:       make(chan struct{}),
		doneChan:       make(chan struct{}),
	}, nil
}

// Enqueue hands a document to the background workers without blocking.
// When the queue is full the document stays pending and the caller gets
// domain.ErrQueueFull; the startup requeue picks it up eventually.
func (d *Dispatcher) Enqueue(documentID string) error {
	select {
	case d.queue <- documentID:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// RequeuePending recovers queue state from the database: documents left
// in processing by a previous run go back to pending, then every pending
// document is enqueued. Call once at startup, before workers claim.
func (d *Dispatcher) RequeuePending(ctx context.Context) (int, error) {
	reset, err := d.documents.RequeueStaleProcessing(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale documents: %w", err)
	}
	if reset > 0 {
		log.Printf("Returned %d interrupted documents to pending", reset)
	}

	ids, err := d.documents.ListPendingIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending documents: %w", err)
	}

	queued := 0
	for _, id := range ids {
		if err := d.Enqueue(id); err != nil {
			log.Printf("Queue filled during startup requeue, %d of %d documents deferred", len(ids)-queued, len(ids))
			break
		}
		queued++
	}
	if queued > 0 {
		log.Printf("Requeued %d pending documents", queued)
	}
	return queued, nil
}

// Start runs the dispatch loop until Stop is called or the context ends.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.doneChan)

	log.Printf("Dispatcher started with %d workers (queue capacity %d)", d.pool.Cap(), cap(d.queue))

	for {
		select {
		case <-ctx.Done():
			d.inflight.Wait()
			log.Println("Dispatcher stopped: context cancelled")
			return
		case <-d.stopChan:
			d.inflight.Wait()
			log.Println("Dispatcher stopped: stop signal received")
			return
		case id := <-d.queue:
			d.submit(id)
		}
	}
}

// Stop stops intake and waits for in-flight documents to finish.
// Documents still queued stay pending and are requeued at next startup.
func (d *Dispatcher) Stop() {
	close(d.stopChan)
	<-d.doneChan
	d.pool.Release()
	log.Println("Dispatcher shutdown complete")
}

func (d *Dispatcher) submit(documentID string) {
	d.inflight.Add(1)
	err := d.pool.Submit(func() {
		defer d.inflight.Done()
		d.run(documentID)
	})
	if err != nil {
		d.inflight.Done()
		log.Printf("Error submitting document %s to worker pool: %v", documentID, err)
	}
}

// run executes the processor for one document. The context is detached
// from the dispatch loop so a shutdown lets in-flight documents finish;
// the timeout bounds how long a single document may take.
func (d *Dispatcher) run(documentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.processTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker panic processing document %s: %v", documentID, r)
			d.recordPanic(documentID, r)
		}
	}()

	if err := d.processor.Process(ctx, documentID); err != nil {
		log.Printf("Error processing document %s: %v", documentID, err)
	}
}

// recordPanic marks the document failed at whatever stage the pipeline
// reached before the panic, so it surfaces in listings instead of
// sitting in processing forever.
func (d *Dispatcher) recordPanic(documentID string, cause any) {
	ctx, cancel := context.WithTimeout(context.Background(), panicRecoveryTimeout)
	defer cancel()

	doc, err := d.documents.GetByID(ctx, documentID)
	if err != nil {
		log.Printf("Error loading document %s after panic: %v", documentID, err)
		return
	}
	stage := doc.Stage
	if stage == "" {
		stage = domain.StageExtracting
	}
	if err := d.documents.MarkFailed(ctx, documentID, stage, fmt.Sprintf("worker panic: %v", cause)); err != nil {
		log.Printf("Error marking document %s failed after panic: %v", documentID, err)
	}
}
