package port

import (
	"context"
	"errors"

	"stocktrack/internal/core/domain"
)

var (
	// ErrRevisionMismatch is returned by ConditionalSave when another writer
	// committed between the caller's read and its write.
	ErrRevisionMismatch = errors.New("revision mismatch")

	// ErrIndeterminate is returned when a write was cut off (for example by
	// a deadline) and the store cannot tell whether it committed. Callers
	// must not treat it as a plain failure.
	ErrIndeterminate = errors.New("write outcome indeterminate")
)

// ItemStore is the durable mapping from (storeID, sku) to quantity and
// revision. Implementations must provide atomic compare-and-swap semantics
// for ConditionalSave; that is the single point of exclusivity the
// reservation protocol relies on.
type ItemStore interface {
	// Get returns the current item, or nil if absent. No side effects.
	Get(ctx context.Context, storeID, sku string) (*domain.Item, error)

	// ConditionalSave persists item only if the stored revision still equals
	// expectedRevision. An empty expectedRevision means the item must not
	// exist yet (creation). On success it returns the committed item with a
	// fresh revision; on a revision mismatch it returns ErrRevisionMismatch
	// and performs no mutation.
	ConditionalSave(ctx context.Context, item domain.Item, expectedRevision string) (domain.Item, error)

	// Delete removes the row, returning true if it existed.
	Delete(ctx context.Context, storeID, sku string) (bool, error)

	// ListByStore returns an unordered snapshot of a store's items.
	ListByStore(ctx context.Context, storeID string) ([]domain.Item, error)
}
