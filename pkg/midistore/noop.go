package midistore

import "context"

// AutoConfirmer is a Confirmer that approves every action.
// Useful for production paths without an interactive prompt and for testing.
type AutoConfirmer struct{}

// NewAutoConfirmer creates a Confirmer that approves everything
func NewAutoConfirmer() Confirmer {
	return &AutoConfirmer{}
}

// Confirm approves the action unconditionally
func (c *AutoConfirmer) Confirm(ctx context.Context, action string) (bool, error) {
	return true, nil
}
