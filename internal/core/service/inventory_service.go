package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stocktrack/internal/core/domain"
	"stocktrack/internal/port"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyExists     = errors.New("item already exists")

	// ErrConflict means the attempt lost its race window: another writer
	// committed between read and write and the attempt budget ran out. It
	// is retryable by definition and must never be mistaken for
	// ErrInsufficientStock.
	ErrConflict = errors.New("concurrent modification conflict")
)

const notifyTimeout = 5 * time.Second

// InventoryService implements the reservation protocol: read, check,
// conditional write, best-effort notify. It holds no lock across the
// sequence and never caches item state between attempts; correctness comes
// entirely from the store's compare-and-swap.
type InventoryService struct {
	store       port.ItemStore
	notifier    port.Notifier
	logger      zerolog.Logger
	maxAttempts int
}

// NewInventoryService wires the engine. maxAttempts bounds the internal
// retry loop on revision conflicts; 1 means fail-fast, surfacing
// ErrConflict to the caller on the first lost race.
func NewInventoryService(store port.ItemStore, notifier port.Notifier, logger zerolog.Logger, maxAttempts int) *InventoryService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &InventoryService{
		store:       store,
		notifier:    notifier,
		logger:      logger,
		maxAttempts: maxAttempts,
	}
}

// TryReserve decrements the item's quantity by quantity if enough stock is
// available, returning the remaining quantity. Each attempt re-reads the
// current state; a retry never reuses a stale sufficiency check.
func (s *InventoryService) TryReserve(ctx context.Context, storeID, sku string, quantity int) (int, error) {
	if storeID == "" || sku == "" {
		return 0, fmt.Errorf("%w: store id and sku are required", ErrInvalidInput)
	}
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		item, err := s.store.Get(ctx, storeID, sku)
		if err != nil {
			return 0, fmt.Errorf("read item: %w", err)
		}
		if item == nil {
			return 0, ErrNotFound
		}
		if item.Quantity < quantity {
			return 0, ErrInsufficientStock
		}

		updated := *item
		updated.Quantity -= quantity

		committed, err := s.store.ConditionalSave(ctx, updated, item.Revision)
		if errors.Is(err, port.ErrRevisionMismatch) {
			s.logger.Debug().
				Str("store_id", storeID).
				Str("sku", sku).
				Int("attempt", attempt).
				Msg("reservation lost race, re-reading")
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("commit reservation: %w", err)
		}

		s.logger.Info().
			Str("store_id", storeID).
			Str("sku", sku).
			Int("reserved", quantity).
			Int("remaining", committed.Quantity).
			Msg("stock reserved")

		s.notifyAsync(committed)
		return committed.Quantity, nil
	}

	return 0, ErrConflict
}

// CreateItem inserts a new item with an initial quantity. The store's
// absence check is the creation condition, so a concurrent creator losing
// the race gets ErrAlreadyExists, same as a plain duplicate.
func (s *InventoryService) CreateItem(ctx context.Context, storeID, sku string, quantity int) (domain.Item, error) {
	if storeID == "" || sku == "" {
		return domain.Item{}, fmt.Errorf("%w: store id and sku are required", ErrInvalidInput)
	}
	if quantity < 0 {
		return domain.Item{}, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}

	item := domain.Item{StoreID: storeID, SKU: sku, Quantity: quantity}
	committed, err := s.store.ConditionalSave(ctx, item, "")
	if errors.Is(err, port.ErrRevisionMismatch) {
		return domain.Item{}, ErrAlreadyExists
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("create item: %w", err)
	}

	s.logger.Info().
		Str("store_id", storeID).
		Str("sku", sku).
		Int("quantity", quantity).
		Msg("item created")

	return committed, nil
}

// UpdateQuantity overwrites an item's quantity (manual correction path).
// The write is still revision-guarded so it cannot clobber a concurrent
// reservation; on a lost race it re-reads once before giving up.
func (s *InventoryService) UpdateQuantity(ctx context.Context, storeID, sku string, quantity int) (domain.Item, error) {
	if quantity < 0 {
		return domain.Item{}, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}

	for attempt := 1; attempt <= 2; attempt++ {
		item, err := s.store.Get(ctx, storeID, sku)
		if err != nil {
			return domain.Item{}, fmt.Errorf("read item: %w", err)
		}
		if item == nil {
			return domain.Item{}, ErrNotFound
		}

		updated := *item
		updated.Quantity = quantity

		committed, err := s.store.ConditionalSave(ctx, updated, item.Revision)
		if errors.Is(err, port.ErrRevisionMismatch) {
			continue
		}
		if err != nil {
			return domain.Item{}, fmt.Errorf("update quantity: %w", err)
		}

		s.logger.Info().
			Str("store_id", storeID).
			Str("sku", sku).
			Int("quantity", quantity).
			Msg("quantity updated")

		s.notifyAsync(committed)
		return committed, nil
	}

	return domain.Item{}, ErrConflict
}

// DeleteItem removes the item, reporting ErrNotFound if it was absent.
func (s *InventoryService) DeleteItem(ctx context.Context, storeID, sku string) error {
	existed, err := s.store.Delete(ctx, storeID, sku)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if !existed {
		return ErrNotFound
	}

	s.logger.Info().
		Str("store_id", storeID).
		Str("sku", sku).
		Msg("item deleted")

	return nil
}

// GetItem returns the current item state.
func (s *InventoryService) GetItem(ctx context.Context, storeID, sku string) (domain.Item, error) {
	item, err := s.store.Get(ctx, storeID, sku)
	if err != nil {
		return domain.Item{}, fmt.Errorf("read item: %w", err)
	}
	if item == nil {
		return domain.Item{}, ErrNotFound
	}
	return *item, nil
}

// ListByStore returns a snapshot of a store's items. Ordering is
// unspecified.
func (s *InventoryService) ListByStore(ctx context.Context, storeID string) ([]domain.Item, error) {
	items, err := s.store.ListByStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// notifyAsync dispatches the stock-changed event on a detached goroutine
// with its own deadline. The commit already happened: a notifier failure is
// logged and swallowed, and caller cancellation cannot retract the event.
func (s *InventoryService) notifyAsync(item domain.Item) {
	event := domain.StockChangedEvent{
		StoreID:     item.StoreID,
		SKU:         item.SKU,
		NewQuantity: item.Quantity,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.Notify(ctx, event); err != nil {
			s.logger.Warn().
				Err(err).
				Str("store_id", event.StoreID).
				Str("sku", event.SKU).
				Msg("stock change notification failed")
		}
	}()
}
