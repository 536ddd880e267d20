package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
)

// LedgerSource hands the processor the latest durable ledger.
type LedgerSource interface {
	Load(ctx context.Context)
	Snapshot() ([]core.Transaction, uint64)
}

// MirrorProcessorConfig holds configuration for the mirror processor
type MirrorProcessorConfig struct {
	// PollInterval is how often a pending change is flushed (default: 10s)
	PollInterval time.Duration

	// MaxRetries is how many consecutive failed flushes are tolerated before
	// the pending change is dropped until the next event (default: 3)
	MaxRetries int
}

// DefaultMirrorProcessorConfig returns sensible defaults
func DefaultMirrorProcessorConfig() MirrorProcessorConfig {
	return MirrorProcessorConfig{
		PollInterval: 10 * time.Second,
		MaxRetries:   3,
	}
}

// MirrorProcessor coalesces ledger change events and mirrors the whole
// ledger to a spreadsheet at most once per poll interval.
type MirrorProcessor struct {
	source LedgerSource
	mirror sheets.Mirror
	config MirrorProcessorConfig
	logger *log.Logger

	pendingMu sync.Mutex
	pending   bool
	seq       uint64
	attempts  int
	mirrored  uint64

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMirrorProcessor creates a new mirror processor
func NewMirrorProcessor(source LedgerSource, mirror sheets.Mirror, config MirrorProcessorConfig, logger *log.Logger) *MirrorProcessor {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultMirrorProcessorConfig().PollInterval
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMirrorProcessorConfig().MaxRetries
	}
	return &MirrorProcessor{
		source: source,
		mirror: mirror,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Notify records a ledger change. It never blocks on the mirror.
func (p *MirrorProcessor) Notify(ctx context.Context, e amqp.LedgerEvent) error {
	p.pendingMu.Lock()
	p.pending = true
	p.seq++
	p.attempts = 0
	p.pendingMu.Unlock()

	p.logger.DebugContext(ctx, "Ledger change queued for mirroring",
		log.FieldEventKind, e.Kind, log.FieldRevision, e.Revision)
	return nil
}

// Pending reports whether a change awaits mirroring.
func (p *MirrorProcessor) Pending() bool {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return p.pending
}

// Start begins the processing loop. Returns an error if already running.
func (p *MirrorProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("mirror processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Mirror processor started", "poll_interval", p.config.PollInterval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *MirrorProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Mirror processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Mirror processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *MirrorProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *MirrorProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			// Last chance for a change that arrived just before shutdown.
			p.flushPending(ctx)
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flushPending(ctx)
		}
	}
}

func (p *MirrorProcessor) flushPending(ctx context.Context) {
	if !p.Pending() {
		return
	}
	if err := p.Flush(ctx); err != nil {
		p.handleFailure(ctx, err)
	}
}

// Flush reloads the ledger and mirrors it now. On success the pending flag
// is cleared unless another change was notified while the mirror ran.
func (p *MirrorProcessor) Flush(ctx context.Context) error {
	p.pendingMu.Lock()
	seq := p.seq
	p.pendingMu.Unlock()

	p.source.Load(ctx)
	txs, rev := p.source.Snapshot()

	if err := p.mirror.Mirror(ctx, txs); err != nil {
		return fmt.Errorf("mirror revision %d: %w", rev, err)
	}

	p.pendingMu.Lock()
	if p.seq == seq {
		p.pending = false
		p.attempts = 0
	}
	p.mirrored++
	p.pendingMu.Unlock()

	p.logger.InfoContext(ctx, "Ledger mirrored",
		log.FieldOperation, log.OpMirror, log.FieldCount, len(txs), log.FieldRevision, rev)
	return nil
}

// Mirrored counts successful flushes.
func (p *MirrorProcessor) Mirrored() uint64 {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return p.mirrored
}

func (p *MirrorProcessor) handleFailure(ctx context.Context, err error) {
	p.pendingMu.Lock()
	p.attempts++
	attempts := p.attempts
	if attempts >= p.config.MaxRetries {
		p.pending = false
		p.attempts = 0
	}
	p.pendingMu.Unlock()

	if attempts >= p.config.MaxRetries {
		p.logger.ErrorContext(ctx, "Mirror failed permanently after max retries",
			"attempts", attempts, log.FieldError, err)
		return
	}
	p.logger.WarnContext(ctx, "Mirror failed, will retry",
		"attempt", attempts, log.FieldError, err)
}
