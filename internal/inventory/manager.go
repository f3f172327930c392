// internal/inventory/manager.go
package inventory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"mcp-dish-order/internal/events"
	"mcp-dish-order/internal/models"
	"mcp-dish-order/internal/observability"
	"mcp-dish-order/internal/storage"
)

// ErrUnavailable matches every ConflictError.
var ErrUnavailable = errors.New("ingredient no longer available")

// ConflictError means stock ran out between validation and commit. The
// whole order was rolled back.
type ConflictError struct {
	Ingredient string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("One of the chosen ingredients (%s) is no more available.", e.Ingredient)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrUnavailable
}

// Store is the transactional storage the manager runs against.
type Store interface {
	WithTx(ctx context.Context, fn func(tx *storage.Tx) error) error
	GetOrder(ctx context.Context, id, userID int64) (*models.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]*models.Order, error)
}

type Manager struct {
	store     Store
	publisher events.Publisher
	tracer    trace.Tracer
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewManager(store Store, publisher events.Publisher, tracer trace.Tracer, metrics *observability.Metrics, logger *zap.Logger) *Manager {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if tracer == nil {
		tracer = otel.Tracer("mcp-dish-order/inventory")
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:     store,
		publisher: publisher,
		tracer:    tracer,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Create takes one unit of every ingredient and stores the order, all in a
// single transaction. The returned order carries the server-assigned id.
func (m *Manager) Create(ctx context.Context, req *models.Order) (*models.Order, error) {
	order := *req
	ctx, span := m.tracer.Start(ctx, "inventory.create")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.user_id", order.UserID),
		attribute.Int("order.ingredients", len(order.Ingredients)),
	)

	if order.Date.IsZero() {
		order.Date = m.now()
	}

	start := time.Now()
	var saved *models.Order
	err := m.store.WithTx(ctx, func(tx *storage.Tx) error {
		for _, name := range lockOrder(order.Ingredients) {
			ok, err := tx.ConsumeIngredient(ctx, name)
			if err != nil {
				return err
			}
			if !ok {
				return &ConflictError{Ingredient: name}
			}
		}
		id, err := tx.InsertOrder(ctx, &order)
		if err != nil {
			return err
		}
		saved, err = tx.OrderForUser(ctx, id, order.UserID)
		if err != nil {
			return fmt.Errorf("failed to reload order %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			m.observe("create", "conflict", start)
			m.metrics.AvailabilityConflict.WithLabelValues(conflict.Ingredient).Inc()
			span.SetAttributes(attribute.String("inventory.conflict", conflict.Ingredient))
			span.SetStatus(codes.Error, "ingredient unavailable")
			m.logger.Warn("Order rolled back, ingredient unavailable",
				zap.Int64("user_id", order.UserID),
				zap.String("ingredient", conflict.Ingredient),
			)
			return nil, conflict
		}
		m.observe("create", "error", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		m.logger.Error("Failed to create order", zap.Error(err), zap.Int64("user_id", order.UserID))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	m.observe("create", "committed", start)
	m.metrics.OrdersPlaced.Inc()
	span.SetAttributes(attribute.Int64("order.id", saved.ID))

	m.logger.Info("Order placed",
		zap.Int64("order_id", saved.ID),
		zap.Int64("user_id", saved.UserID),
		zap.Strings("ingredients", saved.Ingredients),
		zap.Float64("price", saved.Price),
	)
	m.publish(ctx, models.OrderPlaced, saved)
	return saved, nil
}

// Cancel deletes the caller's order and returns its stock. It reports the
// number of orders removed: 0 when the id is unknown, already cancelled or
// owned by someone else, in which case nothing changes.
func (m *Manager) Cancel(ctx context.Context, orderID, userID int64) (int64, error) {
	ctx, span := m.tracer.Start(ctx, "inventory.cancel")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("order.user_id", userID),
	)

	start := time.Now()
	var cancelled *models.Order
	err := m.store.WithTx(ctx, func(tx *storage.Tx) error {
		order, err := tx.OrderForUser(ctx, orderID, userID)
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		// Deleting first takes the order's row lock; a concurrent cancel
		// that lost the race deletes nothing and must not restock.
		deleted, err := tx.DeleteOrder(ctx, order.ID, userID)
		if err != nil {
			return err
		}
		if !deleted {
			return nil
		}
		for _, name := range lockOrder(order.Ingredients) {
			if err := tx.RestockIngredient(ctx, name); err != nil {
				return err
			}
		}
		cancelled = order
		return nil
	})
	if err != nil {
		m.observe("cancel", "error", start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		m.logger.Error("Failed to cancel order", zap.Error(err), zap.Int64("order_id", orderID))
		return 0, fmt.Errorf("failed to cancel order %d: %w", orderID, err)
	}
	if cancelled == nil {
		m.observe("cancel", "noop", start)
		return 0, nil
	}

	m.observe("cancel", "committed", start)
	m.metrics.OrdersCancelled.Inc()
	m.logger.Info("Order cancelled", zap.Int64("order_id", orderID), zap.Int64("user_id", userID))
	m.publish(ctx, models.OrderCancelled, cancelled)
	return 1, nil
}

// lockOrder returns the ingredients sorted by name so concurrent orders take
// stock row locks in the same order.
func lockOrder(ingredients []string) []string {
	sorted := slices.Clone(ingredients)
	slices.Sort(sorted)
	return sorted
}

func (m *Manager) Get(ctx context.Context, orderID, userID int64) (*models.Order, error) {
	return m.store.GetOrder(ctx, orderID, userID)
}

// List returns the user's orders, oldest first.
func (m *Manager) List(ctx context.Context, userID int64) ([]*models.Order, error) {
	orders, err := m.store.ListOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}

func (m *Manager) publish(ctx context.Context, eventType models.OrderEventType, order *models.Order) {
	if err := m.publisher.Publish(ctx, events.NewOrderEvent(eventType, order)); err != nil {
		m.logger.Warn("Failed to publish order event",
			zap.Error(err),
			zap.String("type", string(eventType)),
			zap.Int64("order_id", order.ID),
		)
	}
}

func (m *Manager) observe(operation, outcome string, start time.Time) {
	m.metrics.TxDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}
