// internal/storage/orders.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mcp-dish-order/internal/models"
)

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.rebind(query), args...)
}

// ConsumeIngredient takes one unit of stock. It reports false, without
// error, when the ingredient is sold out or unknown. Unlimited ingredients
// always succeed and stay unlimited.
func (t *Tx) ConsumeIngredient(ctx context.Context, name string) (bool, error) {
	res, err := t.exec(ctx,
		`UPDATE ingredients SET quantity = quantity - 1 WHERE name = ? AND (quantity IS NULL OR quantity > 0)`,
		name)
	if err != nil {
		return false, fmt.Errorf("failed to decrement %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// RestockIngredient returns one unit. Untracked ingredients are left alone.
func (t *Tx) RestockIngredient(ctx context.Context, name string) error {
	if _, err := t.exec(ctx,
		`UPDATE ingredients SET quantity = quantity + 1 WHERE name = ? AND quantity IS NOT NULL`,
		name); err != nil {
		return fmt.Errorf("failed to increment %s: %w", name, err)
	}
	return nil
}

// InsertOrder stores the order and its ingredients in submitted order and
// returns the generated id.
func (t *Tx) InsertOrder(ctx context.Context, order *models.Order) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, t.dialect.rebind(`
        INSERT INTO orders (user_id, date, price, size, base)
        VALUES (?, ?, ?, ?, ?)
        RETURNING id
    `), order.UserID, t.dialect.timeValue(order.Date), order.Price, order.Size, order.Base).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order: %w", err)
	}

	for i, name := range order.Ingredients {
		if _, err := t.exec(ctx,
			`INSERT INTO order_ingredients (order_id, position, ingredient) VALUES (?, ?, ?)`,
			id, i, name); err != nil {
			return 0, fmt.Errorf("failed to insert order ingredient: %w", err)
		}
	}
	return id, nil
}

// OrderForUser loads an order inside the transaction, scoped to its owner.
func (t *Tx) OrderForUser(ctx context.Context, id, userID int64) (*models.Order, error) {
	return getOrder(ctx, t.tx, t.dialect, id, userID)
}

// DeleteOrder removes the caller's order and reports whether this
// transaction was the one that removed it. The orders row is deleted first so
// a concurrent cancel of the same order waits on its lock and then finds
// nothing to delete.
func (t *Tx) DeleteOrder(ctx context.Context, id, userID int64) (bool, error) {
	res, err := t.exec(ctx, `DELETE FROM orders WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if _, err := t.exec(ctx, `DELETE FROM order_ingredients WHERE order_id = ?`, id); err != nil {
		return false, fmt.Errorf("failed to delete order ingredients: %w", err)
	}
	return true, nil
}

// GetOrder returns ErrOrderNotFound when the id does not exist or belongs
// to someone else.
func (s *Storage) GetOrder(ctx context.Context, id, userID int64) (*models.Order, error) {
	return getOrder(ctx, s.db, s.dialect, id, userID)
}

func (s *Storage) ListOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
        SELECT id, user_id, date, price, size, base
        FROM orders
        WHERE user_id = ?
        ORDER BY id
    `), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	rows.Close()

	// Load ingredients for each order
	for _, order := range orders {
		if err := loadOrderIngredients(ctx, s.db, s.dialect, order); err != nil {
			return nil, fmt.Errorf("failed to load ingredients for order %d: %w", order.ID, err)
		}
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	var date orderDate
	if err := row.Scan(&order.ID, &order.UserID, &date, &order.Price, &order.Size, &order.Base); err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	order.Date = time.Time(date)
	return order, nil
}

// timeValue is the argument to bind for an order date. SQLite keeps dates
// as RFC3339 text; Postgres has a TIMESTAMPTZ column.
func (d dialect) timeValue(t time.Time) any {
	if d.nativeTime {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// orderDate scans either a native timestamp or RFC3339 text.
type orderDate time.Time

func (d *orderDate) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = orderDate(v.UTC())
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("unsupported date type %T", src)
	}
	return nil
}

func (d *orderDate) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("failed to parse date: %w", err)
	}
	*d = orderDate(t)
	return nil
}

func getOrder(ctx context.Context, q queryer, d dialect, id, userID int64) (*models.Order, error) {
	row := q.QueryRowContext(ctx, d.rebind(`
        SELECT id, user_id, date, price, size, base
        FROM orders
        WHERE id = ? AND user_id = ?
    `), id, userID)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadOrderIngredients(ctx, q, d, order); err != nil {
		return nil, fmt.Errorf("failed to load ingredients for order %d: %w", order.ID, err)
	}
	return order, nil
}

func loadOrderIngredients(ctx context.Context, q queryer, d dialect, order *models.Order) error {
	rows, err := q.QueryContext(ctx, d.rebind(`
        SELECT ingredient
        FROM order_ingredients
        WHERE order_id = ?
        ORDER BY position
    `), order.ID)
	if err != nil {
		return fmt.Errorf("failed to query order ingredients: %w", err)
	}
	defer rows.Close()

	order.Ingredients = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan order ingredient: %w", err)
		}
		order.Ingredients = append(order.Ingredients, name)
	}
	return rows.Err()
}
