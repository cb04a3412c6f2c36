package store

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-storefront/internal/apperr"
	"ms-storefront/internal/models"
)

var orderImmutable = []string{"id", "tracking_number", "created_at"}

// ---------------- ORDERS ----------------

// InsertOrder stores a new order together with its first tracking event.
func (s *Store) InsertOrder(ctx context.Context, order *models.Order, first *models.TrackingEvent) error {
	err := s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		if first != nil {
			if _, err := tx.NewInsert().Model(first).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	return mapErr("insert order", "order", order.TrackingNumber, err)
}

func (s *Store) FindOrderByID(ctx context.Context, id string) (*models.Order, error) {
	return s.findOrder(ctx, "id", id)
}

func (s *Store) FindOrderByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error) {
	return s.findOrder(ctx, "tracking_number", trackingNumber)
}

func (s *Store) FindOrderByCheckoutID(ctx context.Context, checkoutID string) (*models.Order, error) {
	return s.findOrder(ctx, "checkout_id", checkoutID)
}

func (s *Store) findOrder(ctx context.Context, column, value string) (*models.Order, error) {
	var order models.Order
	err := s.Bun.NewSelect().
		Model(&order).
		Where("? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, mapErr("find order", "order", value, err)
	}
	return &order, nil
}

// UpdateOrder writes the named columns. The tracking number and id are never writable.
func (s *Store) UpdateOrder(ctx context.Context, order *models.Order, columns ...string) error {
	if err := checkColumns(columns, orderImmutable...); err != nil {
		return &apperr.StoreError{Op: "update order", Err: err}
	}
	order.UpdatedAt = time.Now().UTC()
	_, err := s.Bun.NewUpdate().
		Model(order).
		Column(withUpdatedAt(columns)...).
		WherePK().
		Exec(ctx)
	return mapErr("update order", "order", order.ID, err)
}

// TransitionOrder writes the named columns only while the stored status still equals
// expected, and appends the tracking event in the same transaction. It reports false when
// another writer moved the order first.
func (s *Store) TransitionOrder(ctx context.Context, order *models.Order, expected models.OrderStatus, event *models.TrackingEvent, columns ...string) (bool, error) {
	if err := checkColumns(columns, orderImmutable...); err != nil {
		return false, &apperr.StoreError{Op: "transition order", Err: err}
	}
	order.UpdatedAt = time.Now().UTC()

	applied := false
	err := s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(order).
			Column(withUpdatedAt(columns)...).
			WherePK().
			Where("status = ?", expected).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := rowsAffected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		applied = true
		if event != nil {
			_, err = tx.NewInsert().Model(event).Exec(ctx)
		}
		return err
	})
	if err != nil {
		return false, mapErr("transition order", "order", order.ID, err)
	}
	return applied, nil
}

// DeleteOrder removes an order and its tracking history.
func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	err := s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.TrackingEvent)(nil)).
			Where("order_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().
			Model((*models.Order)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := rowsAffected(res); n == 0 {
			return &apperr.NotFoundError{Resource: "order", Key: id}
		}
		return nil
	})
	return mapErr("delete order", "order", id, err)
}

// FindPaidOrdersBefore lists orders still in paid whose last update is older than cutoff.
func (s *Store) FindPaidOrdersBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.Bun.NewSelect().
		Model(&orders).
		Where("status = ?", models.OrderPaid).
		Where("updated_at < ?", cutoff.UTC()).
		Order("updated_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, mapErr("find paid orders", "order", "", err)
	}
	return orders, nil
}

// ---------------- TRACKING EVENTS ----------------

func (s *Store) AppendTrackingEvent(ctx context.Context, event *models.TrackingEvent) error {
	_, err := s.Bun.NewInsert().Model(event).Exec(ctx)
	return mapErr("append tracking event", "tracking event", event.OrderID, err)
}

func (s *Store) ListTrackingEvents(ctx context.Context, orderID string) ([]models.TrackingEvent, error) {
	events := make([]models.TrackingEvent, 0)
	err := s.Bun.NewSelect().
		Model(&events).
		Where("order_id = ?", orderID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapErr("list tracking events", "tracking event", orderID, err)
	}
	return events, nil
}

// ---------------- ANALYTICS ----------------

type StatusCount struct {
	Status  models.OrderStatus `bun:"status" json:"status"`
	Count   int                `bun:"count" json:"count"`
	Revenue int64              `bun:"revenue" json:"revenue"`
}

// CountOrdersByStatus aggregates order counts and final price totals per status.
func (s *Store) CountOrdersByStatus(ctx context.Context, since time.Time) ([]StatusCount, error) {
	var rows []StatusCount
	q := s.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("status").
		ColumnExpr("COUNT(*) AS count").
		ColumnExpr("COALESCE(SUM(final_price), 0) AS revenue").
		Group("status").
		Order("status ASC")
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since.UTC())
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, mapErr("count orders", "order", "", err)
	}
	return rows, nil
}

type OrderSale struct {
	Status         models.OrderStatus `bun:"status"`
	Quantity       int                `bun:"quantity"`
	PromoCode      string             `bun:"promo_code"`
	DiscountAmount int64              `bun:"discount_amount"`
	FinalPrice     int64              `bun:"final_price"`
	CreatedAt      time.Time          `bun:"created_at"`
}

// ListOrderSales returns the money facts of every order created since the cutoff, oldest
// first. Bucketing happens in Go so the query stays portable across dialects.
func (s *Store) ListOrderSales(ctx context.Context, since time.Time) ([]OrderSale, error) {
	rows := make([]OrderSale, 0)
	q := s.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Column("status", "quantity", "promo_code", "discount_amount", "final_price", "created_at").
		Order("created_at ASC")
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since.UTC())
	}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, mapErr("list order sales", "order", "", err)
	}
	return rows, nil
}
