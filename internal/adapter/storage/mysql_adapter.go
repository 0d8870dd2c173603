package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"stocktrack/internal/core/domain"
	"stocktrack/internal/port"
)

// duplicate entry for a unique key
const mysqlErrDupEntry = 1062

// MySQLAdapter implements ItemStore on an `items` table with a version
// column. The compare-and-swap is a single UPDATE guarded by
// `version = ?`; zero rows affected means another writer got there first.
//
//	CREATE TABLE items (
//	    store_id   VARCHAR(64)  NOT NULL,
//	    sku        VARCHAR(64)  NOT NULL,
//	    quantity   INT          NOT NULL,
//	    version    BIGINT       NOT NULL DEFAULT 1,
//	    updated_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
//	    PRIMARY KEY (store_id, sku)
//	);
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Get(ctx context.Context, storeID, sku string) (*domain.Item, error) {
	var (
		item    domain.Item
		version int64
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT store_id, sku, quantity, version
		FROM items WHERE store_id = ? AND sku = ?`, storeID, sku,
	).Scan(&item.StoreID, &item.SKU, &item.Quantity, &version)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}

	item.Revision = strconv.FormatInt(version, 10)
	return &item, nil
}

func (m *MySQLAdapter) ConditionalSave(ctx context.Context, item domain.Item, expectedRevision string) (domain.Item, error) {
	if expectedRevision == "" {
		return m.insert(ctx, item)
	}

	expected, err := strconv.ParseInt(expectedRevision, 10, 64)
	if err != nil {
		return domain.Item{}, fmt.Errorf("parse revision %q: %w", expectedRevision, err)
	}

	result, err := m.db.ExecContext(ctx, `
		UPDATE items
		SET quantity = ?, version = version + 1
		WHERE store_id = ? AND sku = ? AND version = ?`,
		item.Quantity, item.StoreID, item.SKU, expected,
	)
	if err != nil {
		return domain.Item{}, writeErr(ctx, "update item", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.Item{}, port.ErrRevisionMismatch
	}

	item.Revision = strconv.FormatInt(expected+1, 10)
	return item, nil
}

func (m *MySQLAdapter) insert(ctx context.Context, item domain.Item) (domain.Item, error) {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO items (store_id, sku, quantity, version)
		VALUES (?, ?, ?, 1)`,
		item.StoreID, item.SKU, item.Quantity,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDupEntry {
			return domain.Item{}, port.ErrRevisionMismatch
		}
		return domain.Item{}, writeErr(ctx, "insert item", err)
	}

	item.Revision = "1"
	return item, nil
}

func (m *MySQLAdapter) Delete(ctx context.Context, storeID, sku string) (bool, error) {
	result, err := m.db.ExecContext(ctx, `
		DELETE FROM items WHERE store_id = ? AND sku = ?`, storeID, sku,
	)
	if err != nil {
		return false, writeErr(ctx, "delete item", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (m *MySQLAdapter) ListByStore(ctx context.Context, storeID string) ([]domain.Item, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT store_id, sku, quantity, version
		FROM items WHERE store_id = ?`, storeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		var (
			item    domain.Item
			version int64
		)
		if err := rows.Scan(&item.StoreID, &item.SKU, &item.Quantity, &version); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.Revision = strconv.FormatInt(version, 10)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return items, nil
}

// writeErr wraps a failed write. If the context expired mid-write the commit
// state is unknown, so the error is marked indeterminate rather than failed.
func writeErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w: %v", op, port.ErrIndeterminate, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
