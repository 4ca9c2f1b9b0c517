package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cashbook/internal/amqp"
)

// SummaryHandler refreshes whatever depends on a changed partition.
type SummaryHandler func(ctx context.Context, msg *amqp.LedgerChangedMessage) error

// SummaryProcessorConfig holds configuration for the summary processor
type SummaryProcessorConfig struct {
	// PollInterval is how often pending partitions are processed (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of partitions handled per poll (default: 10)
	BatchSize int

	// MaxRetries is the number of attempts before a partition is parked as failed (default: 3)
	MaxRetries int
}

func DefaultSummaryProcessorConfig() SummaryProcessorConfig {
	return SummaryProcessorConfig{
		PollInterval: 10 * time.Second,
		BatchSize:    10,
		MaxRetries:   3,
	}
}

type pendingChange struct {
	msg      *amqp.LedgerChangedMessage
	attempts int
	lastErr  string
}

// SummaryQueueStats is a point-in-time view of the queue.
type SummaryQueueStats struct {
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

// SummaryProcessor is the in-process alternative to the AMQP worker. It
// implements ChangePublisher by queueing changes, coalesced per partition,
// and hands them to a SummaryHandler from a polling loop.
type SummaryProcessor struct {
	handler SummaryHandler
	config  SummaryProcessorConfig

	qmu     sync.Mutex
	pending map[string]*pendingChange
	order   []string
	failed  map[string]*pendingChange

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSummaryProcessor(handler SummaryHandler, config SummaryProcessorConfig) *SummaryProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}
	return &SummaryProcessor{
		handler: handler,
		config:  config,
		pending: make(map[string]*pendingChange),
		failed:  make(map[string]*pendingChange),
	}
}

// PublishLedgerChanged queues msg. A partition already queued keeps its
// place and takes the newer message.
func (p *SummaryProcessor) PublishLedgerChanged(_ context.Context, msg *amqp.LedgerChangedMessage) error {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	delete(p.failed, msg.Partition)
	if cur, ok := p.pending[msg.Partition]; ok {
		cur.msg = msg
		cur.attempts = 0
		return nil
	}
	p.pending[msg.Partition] = &pendingChange{msg: msg}
	p.order = append(p.order, msg.Partition)
	return nil
}

// Start begins the processing loop. Returns an error if already running.
func (p *SummaryProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("summary processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Summary processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SummaryProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Summary processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Summary processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *SummaryProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SummaryProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.ProcessPending(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessPending(ctx)
		}
	}
}

// ProcessPending handles up to one batch and returns how many partitions
// were refreshed successfully.
func (p *SummaryProcessor) ProcessPending(ctx context.Context) int {
	batch := p.take(p.config.BatchSize)
	if len(batch) == 0 {
		return 0
	}
	slog.DebugContext(ctx, "Processing summary batch", "count", len(batch))

	ok := 0
	for _, item := range batch {
		if ctx.Err() != nil {
			p.requeue(item)
			continue
		}
		if err := p.handler(ctx, item.msg); err != nil {
			p.handleFailure(ctx, item, err)
			continue
		}
		ok++
	}
	return ok
}

func (p *SummaryProcessor) take(n int) []*pendingChange {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	if n > len(p.order) {
		n = len(p.order)
	}
	batch := make([]*pendingChange, 0, n)
	for _, partition := range p.order[:n] {
		batch = append(batch, p.pending[partition])
		delete(p.pending, partition)
	}
	p.order = append([]string(nil), p.order[n:]...)
	return batch
}

func (p *SummaryProcessor) requeue(item *pendingChange) {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	if _, ok := p.pending[item.msg.Partition]; ok {
		return // a newer change is already queued
	}
	p.pending[item.msg.Partition] = item
	p.order = append(p.order, item.msg.Partition)
}

func (p *SummaryProcessor) handleFailure(ctx context.Context, item *pendingChange, err error) {
	item.attempts++
	item.lastErr = err.Error()
	slog.WarnContext(ctx, "Summary refresh failed",
		"partition", item.msg.Partition,
		"attempt", item.attempts,
		"error", err)

	if item.attempts < p.config.MaxRetries {
		p.requeue(item)
		return
	}

	p.qmu.Lock()
	if _, newer := p.pending[item.msg.Partition]; !newer {
		p.failed[item.msg.Partition] = item
	}
	p.qmu.Unlock()
	slog.ErrorContext(ctx, "Summary refresh failed permanently after max retries",
		"partition", item.msg.Partition,
		"attempts", item.attempts)
}

func (p *SummaryProcessor) Stats() SummaryQueueStats {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	return SummaryQueueStats{Pending: len(p.order), Failed: len(p.failed)}
}

// RetryFailed moves every parked partition back into the queue.
func (p *SummaryProcessor) RetryFailed() int {
	p.qmu.Lock()
	failed := p.failed
	p.failed = make(map[string]*pendingChange)
	p.qmu.Unlock()

	for _, item := range failed {
		item.attempts = 0
		p.requeue(item)
	}
	return len(failed)
}
