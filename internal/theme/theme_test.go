package theme

import (
	"context"
	"testing"

	"fintrack/internal/storage"
)

func TestLoadDefaultsToLight(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	s := NewStore(slot, "")
	if got := s.Load(ctx); got != Light {
		t.Fatalf("empty slot = %q", got)
	}
	_ = slot.Set(ctx, DefaultKey, []byte("purple"))
	if got := s.Load(ctx); got != Light {
		t.Fatalf("unknown value = %q", got)
	}
	_ = slot.Set(ctx, DefaultKey, []byte(`"dark"`))
	if got := s.Load(ctx); got != Dark {
		t.Fatalf("quoted dark = %q", got)
	}
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	slot := storage.NewMemorySlot()
	s := NewStore(slot, "")

	got, err := s.Toggle(ctx)
	if err != nil || got != Dark {
		t.Fatalf("first toggle = %q, %v", got, err)
	}
	raw, _, _ := slot.Get(ctx, DefaultKey)
	if string(raw) != "dark" {
		t.Fatalf("stored %q", raw)
	}
	if got, _ := s.Toggle(ctx); got != Light {
		t.Fatalf("second toggle = %q", got)
	}
}

func TestSaveRejectsUnknown(t *testing.T) {
	s := NewStore(storage.NewMemorySlot(), "")
	if err := s.Save(context.Background(), "sepia"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Parse(" DARK "); err != nil {
		t.Fatalf("parse: %v", err)
	}
}
