package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stocktrack/internal/core/domain"
	"stocktrack/internal/port"
)

// Mock ItemStore: mutex-guarded map with an integer revision counter and an
// optional hook fired before every ConditionalSave.
type mockItemStore struct {
	mu       sync.Mutex
	items    map[string]domain.Item
	revision int
	saveHook func(item domain.Item) error
}

func newMockItemStore() *mockItemStore {
	return &mockItemStore{items: make(map[string]domain.Item)}
}

func (m *mockItemStore) seed(storeID, sku string, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revision++
	m.items[storeID+"/"+sku] = domain.Item{
		StoreID:  storeID,
		SKU:      sku,
		Quantity: quantity,
		Revision: strconv.Itoa(m.revision),
	}
}

func (m *mockItemStore) quantity(storeID, sku string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[storeID+"/"+sku].Quantity
}

func (m *mockItemStore) Get(_ context.Context, storeID, sku string) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[storeID+"/"+sku]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *mockItemStore) ConditionalSave(_ context.Context, item domain.Item, expectedRevision string) (domain.Item, error) {
	if m.saveHook != nil {
		if err := m.saveHook(item); err != nil {
			return domain.Item{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.items[item.Key()]
	if expectedRevision == "" {
		if exists {
			return domain.Item{}, port.ErrRevisionMismatch
		}
	} else if !exists || current.Revision != expectedRevision {
		return domain.Item{}, port.ErrRevisionMismatch
	}

	m.revision++
	item.Revision = strconv.Itoa(m.revision)
	m.items[item.Key()] = item
	return item, nil
}

func (m *mockItemStore) Delete(_ context.Context, storeID, sku string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := storeID + "/" + sku
	if _, ok := m.items[key]; !ok {
		return false, nil
	}
	delete(m.items, key)
	return true, nil
}

func (m *mockItemStore) ListByStore(_ context.Context, storeID string) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]domain.Item, 0)
	for _, item := range m.items {
		if item.StoreID == storeID {
			items = append(items, item)
		}
	}
	return items, nil
}

// Mock Notifier: records events, optionally failing every call.
type mockNotifier struct {
	mu     sync.Mutex
	events []domain.StockChangedEvent
	fail   bool
}

func (m *mockNotifier) Notify(_ context.Context, event domain.StockChangedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if m.fail {
		return errors.New("sink unavailable")
	}
	return nil
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockNotifier) event(i int) domain.StockChangedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[i]
}

// waitForEvents polls until the notifier has seen n events; the notify path
// is a detached goroutine.
func waitForEvents(t *testing.T, n *mockNotifier, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n.count() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d events, got %d", want, n.count())
}

func newTestService(store port.ItemStore, notifier port.Notifier, maxAttempts int) *InventoryService {
	return NewInventoryService(store, notifier, zerolog.Nop(), maxAttempts)
}

func TestTryReserve_Success(t *testing.T) {
	store := newMockItemStore()
	store.seed("STORE_A", "S1", 10)
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier, 3)

	remaining, err := svc.TryReserve(context.Background(), "STORE_A", "S1", 3)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if remaining != 7 {
		t.Errorf("expected remaining 7, got %d", remaining)
	}
	if got := store.quantity("STORE_A", "S1"); got != 7 {
		t.Errorf("expected persisted quantity 7, got %d", got)
	}

	waitForEvents(t, notifier, 1)
	event := notifier.event(0)
	if event.StoreID != "STORE_A" || event.SKU != "S1" || event.NewQuantity != 7 {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestTryReserve_NotFound(t *testing.T) {
	store := newMockItemStore()
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier, 3)

	_, err := svc.TryReserve(context.Background(), "STORE_A", "UNKNOWN", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
	if notifier.count() != 0 {
		t.Errorf("expected no events, got %d", notifier.count())
	}
}

func TestTryReserve_InsufficientStock(t *testing.T) {
	store := newMockItemStore()
	store.seed("STORE_A", "S1", 2)
	svc := newTestService(store, &mockNotifier{}, 3)

	_, err := svc.TryReserve(context.Background(), "STORE_A", "S1", 3)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got: %v", err)
	}
	if got := store.quantity("STORE_A", "S1"); got != 2 {
		t.Errorf("expected quantity unchanged at 2, got %d", got)
	}
}

func TestTryReserve_InvalidInput(t *testing.T) {
	svc := newTestService(newMockItemStore(), &mockNotifier{}, 3)

	if _, err := svc.TryReserve(context.Background(), "STORE_A", "S1", 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for zero quantity, got: %v", err)
	}
	if _, err := svc.TryReserve(context.Background(), "", "S1", 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty store, got: %v", err)
	}
}

func TestTryReserve_Concurrent(t *testing.T) {
	initialStock := 5
	totalRequests := 10

	store := newMockItemStore()
	store.seed("STORE_A", "S1", initialStock)
	notifier := &mockNotifier{}
	// attempt budget above the maximum possible number of lost races, so
	// every failure is a genuine sold-out
	svc := newTestService(store, notifier, totalRequests)

	var reserved, soldOut, other atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.TryReserve(context.Background(), "STORE_A", "S1", 1)
			switch {
			case err == nil:
				reserved.Add(1)
			case errors.Is(err, ErrInsufficientStock):
				soldOut.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	if reserved.Load() != int32(initialStock) {
		t.Errorf("expected %d reservations, got %d", initialStock, reserved.Load())
	}
	if soldOut.Load() != int32(totalRequests-initialStock) {
		t.Errorf("expected %d sold-out rejections, got %d", totalRequests-initialStock, soldOut.Load())
	}
	if other.Load() != 0 {
		t.Errorf("expected no other errors, got %d", other.Load())
	}
	if got := store.quantity("STORE_A", "S1"); got != 0 {
		t.Errorf("expected final quantity 0, got %d", got)
	}

	waitForEvents(t, notifier, initialStock)
}

func TestTryReserve_Conservation(t *testing.T) {
	initialStock := 50
	sizes := []int{1, 2, 3, 5, 8}

	store := newMockItemStore()
	store.seed("STORE_A", "S1", initialStock)
	svc := newTestService(store, &mockNotifier{}, 100)

	var reservedTotal atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(quantity int) {
			defer wg.Done()
			if _, err := svc.TryReserve(context.Background(), "STORE_A", "S1", quantity); err == nil {
				reservedTotal.Add(int64(quantity))
			}
		}(sizes[i%len(sizes)])
	}
	wg.Wait()

	final := store.quantity("STORE_A", "S1")
	if final < 0 {
		t.Fatalf("oversell: final quantity %d", final)
	}
	if int(reservedTotal.Load())+final != initialStock {
		t.Errorf("conservation violated: reserved %d + final %d != initial %d",
			reservedTotal.Load(), final, initialStock)
	}
}

func TestTryReserve_ConflictFailFast(t *testing.T) {
	store := newMockItemStore()
	store.seed("STORE_A", "S1", 10)
	store.saveHook = func(domain.Item) error { return port.ErrRevisionMismatch }
	svc := newTestService(store, &mockNotifier{}, 1)

	_, err := svc.TryReserve(context.Background(), "STORE_A", "S1", 1)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got: %v", err)
	}
}

func TestTryReserve_RetryRevalidatesStock(t *testing.T) {
	store := newMockItemStore()
	store.seed("STORE_A", "S1", 5)
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier, 3)

	// First save loses the race; by the time the engine re-reads, stock has
	// dropped below the requested amount. The retry must reject on the
	// fresh state, not commit against the stale one.
	var fired bool
	store.saveHook = func(domain.Item) error {
		if fired {
			return nil
		}
		fired = true
		store.seed("STORE_A", "S1", 2)
		return port.ErrRevisionMismatch
	}

	_, err := svc.TryReserve(context.Background(), "STORE_A", "S1", 4)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock after re-read, got: %v", err)
	}
	if got := store.quantity("STORE_A", "S1"); got != 2 {
		t.Errorf("expected quantity 2, got %d", got)
	}
}

func TestTryReserve_NotifierFailureSwallowed(t *testing.T) {
	store := newMockItemStore()
	store.seed("STORE_A", "S1", 10)
	notifier := &mockNotifier{fail: true}
	svc := newTestService(store, notifier, 3)

	remaining, err := svc.TryReserve(context.Background(), "STORE_A", "S1", 1)
	if err != nil {
		t.Fatalf("notifier failure leaked into reservation: %v", err)
	}
	if remaining != 9 {
		t.Errorf("expected remaining 9, got %d", remaining)
	}
	waitForEvents(t, notifier, 1)
}

func TestTryReserve_StoreFailurePropagates(t *testing.T) {
	store := newMockItemStore()
	store.seed("STORE_A", "S1", 10)
	infraErr := errors.New("storage unreachable")
	store.saveHook = func(domain.Item) error { return infraErr }
	svc := newTestService(store, &mockNotifier{}, 3)

	_, err := svc.TryReserve(context.Background(), "STORE_A", "S1", 1)
	if !errors.Is(err, infraErr) {
		t.Errorf("expected wrapped infrastructure error, got: %v", err)
	}
	if errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrConflict) {
		t.Errorf("infrastructure failure conflated with a business outcome: %v", err)
	}
}

func TestCreateItem(t *testing.T) {
	store := newMockItemStore()
	svc := newTestService(store, &mockNotifier{}, 3)

	item, err := svc.CreateItem(context.Background(), "STORE_A", "S1", 10)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if item.Revision == "" {
		t.Error("expected a revision on the created item")
	}

	_, err = svc.CreateItem(context.Background(), "STORE_A", "S1", 5)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got: %v", err)
	}
	if got := store.quantity("STORE_A", "S1"); got != 10 {
		t.Errorf("expected quantity to remain 10, got %d", got)
	}
}

func TestCreateItem_NegativeQuantity(t *testing.T) {
	svc := newTestService(newMockItemStore(), &mockNotifier{}, 3)

	_, err := svc.CreateItem(context.Background(), "STORE_A", "S1", -1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got: %v", err)
	}
}

func TestUpdateQuantity(t *testing.T) {
	store := newMockItemStore()
	store.seed("STORE_A", "S1", 10)
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier, 3)

	item, err := svc.UpdateQuantity(context.Background(), "STORE_A", "S1", 42)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if item.Quantity != 42 {
		t.Errorf("expected quantity 42, got %d", item.Quantity)
	}

	waitForEvents(t, notifier, 1)
	if got := notifier.event(0).NewQuantity; got != 42 {
		t.Errorf("expected event quantity 42, got %d", got)
	}
}

func TestUpdateQuantity_NotFound(t *testing.T) {
	svc := newTestService(newMockItemStore(), &mockNotifier{}, 3)

	_, err := svc.UpdateQuantity(context.Background(), "STORE_A", "MISSING", 5)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

func TestDeleteItem(t *testing.T) {
	store := newMockItemStore()
	store.seed("STORE_A", "S1", 10)
	svc := newTestService(store, &mockNotifier{}, 3)

	if err := svc.DeleteItem(context.Background(), "STORE_A", "S1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := svc.DeleteItem(context.Background(), "STORE_A", "S1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got: %v", err)
	}
}

func TestGetItemAndList(t *testing.T) {
	store := newMockItemStore()
	store.seed("STORE_A", "S1", 10)
	store.seed("STORE_A", "S2", 20)
	store.seed("STORE_B", "S1", 30)
	svc := newTestService(store, &mockNotifier{}, 3)

	item, err := svc.GetItem(context.Background(), "STORE_A", "S2")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if item.Quantity != 20 {
		t.Errorf("expected quantity 20, got %d", item.Quantity)
	}

	if _, err := svc.GetItem(context.Background(), "STORE_A", "MISSING"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}

	items, err := svc.ListByStore(context.Background(), "STORE_A")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items for STORE_A, got %d", len(items))
	}
}
