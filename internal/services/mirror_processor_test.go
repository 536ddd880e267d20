package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
)

// newMirrorFixture returns a processor reading the slot that writer persists to,
// the way the worker shares a slot with the server.
func newMirrorFixture(t *testing.T, config MirrorProcessorConfig) (*MirrorProcessor, *ledger.Store, *memory.Mirror) {
	t.Helper()
	slot := storage.NewMemorySlot()
	writer := ledger.New(slot, ledger.DefaultKey, ledger.WithLogger(log.Discard()))
	writer.Load(context.Background())
	reader := ledger.New(slot, ledger.DefaultKey, ledger.WithLogger(log.Discard()))
	m := memory.New()
	return NewMirrorProcessor(reader, m, config, log.Discard()), writer, m
}

func TestDefaultMirrorProcessorConfig(t *testing.T) {
	config := DefaultMirrorProcessorConfig()

	if config.PollInterval != 10*time.Second {
		t.Errorf("expected PollInterval 10s, got %v", config.PollInterval)
	}
	if config.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", config.MaxRetries)
	}
}

func TestNewMirrorProcessorFillsDefaults(t *testing.T) {
	p := NewMirrorProcessor(nil, nil, MirrorProcessorConfig{}, log.Discard())
	if p.config != DefaultMirrorProcessorConfig() {
		t.Fatalf("zero config should fall back to defaults, got %+v", p.config)
	}
}

func TestMirrorProcessor_IsRunning(t *testing.T) {
	p := NewMirrorProcessor(nil, nil, DefaultMirrorProcessorConfig(), log.Discard())
	if p.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestMirrorProcessor_StartTwice(t *testing.T) {
	p, _, _ := newMirrorFixture(t, DefaultMirrorProcessorConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not be running after stop")
	}
}

func TestMirrorProcessor_StopNotRunning(t *testing.T) {
	p := NewMirrorProcessor(nil, nil, DefaultMirrorProcessorConfig(), log.Discard())
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("stopping an idle processor should not fail: %v", err)
	}
}

func TestMirrorProcessor_FlushReadsDurableLedger(t *testing.T) {
	p, writer, m := newMirrorFixture(t, DefaultMirrorProcessorConfig())
	ctx := context.Background()

	tx := core.Transaction{ID: 1, Title: "Coffee", Amount: core.Money{Cents: 500}, Type: core.Expense, Category: "Food", Date: core.NewDate(2024, 1, 5)}
	if err := writer.Add(ctx, tx); err != nil {
		t.Fatal(err)
	}
	if err := p.Notify(ctx, amqp.NewLedgerEvent(amqp.KindTransactionAdded, 1, writer.Revision(), 1)); err != nil {
		t.Fatal(err)
	}
	if !p.Pending() {
		t.Fatal("notify should mark a pending change")
	}

	if err := p.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if rows := m.Rows(); len(rows) != 1 || rows[0].Title != "Coffee" {
		t.Fatalf("mirror rows = %+v", rows)
	}
	if p.Pending() || p.Mirrored() != 1 {
		t.Fatalf("pending=%v mirrored=%d", p.Pending(), p.Mirrored())
	}
}

func TestMirrorProcessor_CoalescesEvents(t *testing.T) {
	p, _, m := newMirrorFixture(t, MirrorProcessorConfig{PollInterval: 10 * time.Millisecond, MaxRetries: 3})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 5; i++ {
		_ = p.Notify(ctx, amqp.NewLedgerEvent(amqp.KindTransactionAdded, int64(i), uint64(i), i))
	}
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for p.Pending() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if m.Calls() != 1 {
		t.Fatalf("expected a single mirror call for five events, got %d", m.Calls())
	}
}

func TestMirrorProcessor_GivesUpAfterMaxRetries(t *testing.T) {
	p, _, m := newMirrorFixture(t, MirrorProcessorConfig{PollInterval: time.Hour, MaxRetries: 2})
	ctx := context.Background()
	m.FailWith(errors.New("quota exceeded"))

	_ = p.Notify(ctx, amqp.NewLedgerEvent(amqp.KindLedgerReset, 0, 1, 0))
	p.flushPending(ctx)
	if !p.Pending() {
		t.Fatal("first failure should keep the change pending")
	}
	p.flushPending(ctx)
	if p.Pending() {
		t.Fatal("change should be dropped after max retries")
	}
	p.flushPending(ctx)
	if m.Calls() != 2 {
		t.Fatalf("expected 2 attempts, got %d", m.Calls())
	}

	m.FailWith(nil)
	_ = p.Notify(ctx, amqp.NewLedgerEvent(amqp.KindLedgerReset, 0, 2, 0))
	p.flushPending(ctx)
	if p.Pending() || p.Mirrored() != 1 {
		t.Fatal("a new event should re-arm mirroring")
	}
}

func TestMirrorProcessor_NotifyDuringFlushStaysPending(t *testing.T) {
	slot := storage.NewMemorySlot()
	reader := ledger.New(slot, ledger.DefaultKey, ledger.WithLogger(log.Discard()))
	ctx := context.Background()

	var p *MirrorProcessor
	calls := 0
	mirror := sheets.MirrorFunc(func(ctx context.Context, txs []core.Transaction) error {
		calls++
		if calls == 1 {
			_ = p.Notify(ctx, amqp.NewLedgerEvent(amqp.KindTransactionAdded, 2, 2, 1))
		}
		return nil
	})
	p = NewMirrorProcessor(reader, mirror, DefaultMirrorProcessorConfig(), log.Discard())

	_ = p.Notify(ctx, amqp.NewLedgerEvent(amqp.KindTransactionAdded, 1, 1, 1))
	if err := p.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if !p.Pending() {
		t.Fatal("a change notified while mirroring must stay pending")
	}

	if err := p.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if p.Pending() || calls != 2 || p.Mirrored() != 2 {
		t.Fatalf("pending=%v calls=%d mirrored=%d", p.Pending(), calls, p.Mirrored())
	}
}

func TestMirrorProcessor_StopFlushesPendingChange(t *testing.T) {
	p, writer, m := newMirrorFixture(t, MirrorProcessorConfig{PollInterval: time.Hour, MaxRetries: 3})
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	tx := core.Transaction{ID: 7, Title: "Rent", Amount: core.Money{Cents: 90000}, Type: core.Expense, Category: "Housing", Date: core.NewDate(2024, 2, 1)}
	if err := writer.Add(ctx, tx); err != nil {
		t.Fatal(err)
	}
	_ = p.Notify(ctx, amqp.NewLedgerEvent(amqp.KindTransactionAdded, 7, writer.Revision(), 1))

	if err := p.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if m.Calls() != 1 || p.Pending() {
		t.Fatalf("stop should flush the last change: calls=%d pending=%v", m.Calls(), p.Pending())
	}
	if rows := m.Rows(); len(rows) != 1 || rows[0].Title != "Rent" {
		t.Fatalf("mirror rows = %+v", rows)
	}
}
