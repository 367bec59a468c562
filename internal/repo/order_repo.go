// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Order model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When an order is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - When a create collides with a live order for the same chat reference
//     or external reference, ErrDuplicate is returned.
//   - On other DB errors (connectivity issues, etc.), the raw gorm error is
//     propagated.
//
// The orders table holds live orders only. Terminal orders are removed via
// DeleteOrder once their lifecycle is resolved, so uniqueness of chat_ref
// doubles as the "one open order per buyer" rule.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ovitor/go-pix-orders/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate is returned when an insert violates a uniqueness rule
// (live order already exists for the chat or external reference).
var ErrDuplicate = errors.New("order already exists")

// isUniqueViolation reports whether err is a unique-constraint failure.
// GORM translates these to ErrDuplicatedKey where the driver supports it;
// the message check covers SQLite builds that do not.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateOrder inserts a new live order. The order ID is a randomly generated
// UUID (string) unless the caller pre-assigned one, and CreatedAt is set to
// UTC. A collision on chat_ref or external_ref yields ErrDuplicate.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) (*domain.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = domain.OrderPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return o, nil
}

// GetOrder fetches a single order by its ID. If the record does not exist,
// it returns ErrNotFound. On other DB errors, the raw error is returned.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderByChatRef fetches the live order for a chat reference, or
// ErrNotFound when the buyer has no outstanding order.
func GetOrderByChatRef(ctx context.Context, db *gorm.DB, chatRef string) (*domain.Order, error) {
	var o domain.Order
	if err := db.WithContext(ctx).Where("chat_ref = ?", chatRef).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOrder applies a column patch to the order identified by id and bumps
// updated_at. If no rows are affected (order already resolved and deleted),
// it returns ErrNotFound.
func UpdateOrder(ctx context.Context, db *gorm.DB, id string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	patch["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Updates(patch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteOrder removes a resolved order. Deleting an order that is already
// gone is not an error: terminal cleanup must be idempotent across racing
// triggers.
func DeleteOrder(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Order{}).Error
}

// ListLiveOrders returns a snapshot of every live order, oldest first, so a
// sweep works through the backlog in creation order. It returns an empty
// slice when nothing is outstanding.
func ListLiveOrders(ctx context.Context, db *gorm.DB) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// CountOrders returns the total number of live orders.
// On DB error, it returns the error.
func CountOrders(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Count(&total).Error
	return total, err
}

// ListOrdersPage returns a paginated slice of live orders, oldest first.
// Use CountOrders to obtain the total for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListOrdersPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Order("created_at asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
