package port

import (
	"context"

	"stocktrack/internal/core/domain"
)

// Notifier receives stock-change facts after a successful commit. It is
// side-effecting and non-authoritative: a notify failure must never be
// surfaced as a failure of the mutation that produced the event.
type Notifier interface {
	Notify(ctx context.Context, event domain.StockChangedEvent) error
}
