package notifier

import (
	"context"

	"github.com/rs/zerolog"

	"stocktrack/internal/core/domain"
)

// LogNotifier writes stock-change facts to the log. It stands in for a real
// broker in development and in tests.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event domain.StockChangedEvent) error {
	n.logger.Info().
		Str("store_id", event.StoreID).
		Str("sku", event.SKU).
		Int("new_quantity", event.NewQuantity).
		Msg("stock changed")
	return nil
}
