package domain

// Item is a per-store stock row. The (StoreID, SKU) pair identifies it;
// Revision is an opaque token advanced by every committed mutation and is
// the basis for optimistic concurrency. Quantity never goes below zero.
type Item struct {
	StoreID  string
	SKU      string
	Quantity int
	Revision string
}

// Key returns the composite storage key for the item.
func (i Item) Key() string {
	return i.StoreID + "/" + i.SKU
}

// ReservationRequest carries one reservation attempt. It lives only for the
// duration of the attempt and is never persisted.
type ReservationRequest struct {
	StoreID  string `json:"store_id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// StockChangedEvent is emitted after a committed quantity change. Delivery
// is best-effort: at most one event per commit, no ordering guarantee.
type StockChangedEvent struct {
	StoreID     string `json:"store_id"`
	SKU         string `json:"sku"`
	NewQuantity int    `json:"new_quantity"`
}
