// Package repository persists Compliance Gate subject bindings — attribute
// hashes only, never raw off-chain values (spec.md §4.6).
package repository

import (
	"context"
	"errors"

	"github.com/cardanoagents/enhanced-client/internal/compliance/model"
)

// ErrNotFound is returned when a subject has never been bound.
var ErrNotFound = errors.New("compliance subject not found")

// Repository is the storage boundary for subject bindings.
type Repository interface {
	// Upsert creates or replaces the binding for a subject.
	Upsert(ctx context.Context, b *model.SubjectBinding) error

	// Get retrieves the binding for a subject.
	Get(ctx context.Context, subject string) (*model.SubjectBinding, error)

	// Forget marks the binding as forgotten and discards its attribute
	// hashes, leaving only the tombstone so future checks fail closed.
	Forget(ctx context.Context, subject string) error
}
