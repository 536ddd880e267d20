// Package theme persists the dark/light display preference.
package theme

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/storage"
)

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"

	DefaultKey = "financeTheme"
)

// Parse accepts "dark" or "light" in any case.
func Parse(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case Light, Dark:
		return t, nil
	default:
		return "", fmt.Errorf("unknown theme %q", s)
	}
}

// Store reads and writes the preference under its own slot key.
type Store struct {
	slot storage.Slot
	key  string
}

func NewStore(slot storage.Slot, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{slot: slot, key: key}
}

// Load returns the saved theme, or Light when nothing valid is stored.
func (s *Store) Load(ctx context.Context) Theme {
	raw, ok, err := s.slot.Get(ctx, s.key)
	if err != nil || !ok {
		return Light
	}
	t, err := Parse(strings.Trim(string(raw), `"`))
	if err != nil {
		return Light
	}
	return t
}

func (s *Store) Save(ctx context.Context, t Theme) error {
	if _, err := Parse(string(t)); err != nil {
		return err
	}
	if err := s.slot.Set(ctx, s.key, []byte(t)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// Toggle flips and saves the preference, returning the new value.
func (s *Store) Toggle(ctx context.Context) (Theme, error) {
	next := Dark
	if s.Load(ctx) == Dark {
		next = Light
	}
	if err := s.Save(ctx, next); err != nil {
		return s.Load(ctx), err
	}
	return next, nil
}
