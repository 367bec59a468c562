// Package services – order store contract.
//
// OrderStore is the persistence capability required by the orchestrator and
// the sweeper. RepoStore adapts the repository free functions to this
// interface; tests substitute hand-written fakes.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/ovitor/go-pix-orders/internal/domain"
	"github.com/ovitor/go-pix-orders/internal/repo"
)

// OrderStore defines the persistence contract for live orders.
// Implementations are responsible for enforcing the one-live-order-per-chat
// uniqueness rule on create.
type OrderStore interface {
	// CreateOrder persists a new live order, assigning its ID.
	CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) (*domain.Order, error)

	// GetOrder fetches an order by ID.
	GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error)

	// GetOrderByChatRef fetches the live order for a chat reference.
	GetOrderByChatRef(ctx context.Context, db *gorm.DB, chatRef string) (*domain.Order, error)

	// UpdateOrder applies a column patch to an order.
	UpdateOrder(ctx context.Context, db *gorm.DB, id string, patch map[string]any) error

	// DeleteOrder removes a resolved order; idempotent.
	DeleteOrder(ctx context.Context, db *gorm.DB, id string) error

	// ListLiveOrders returns a snapshot of all live orders, oldest first.
	ListLiveOrders(ctx context.Context, db *gorm.DB) ([]domain.Order, error)
}

// RepoStore proxies the repo package free functions. This keeps services
// decoupled from the concrete repo package while reusing existing functions.
type RepoStore struct{}

var _ OrderStore = RepoStore{}

// CreateOrder proxies repo.CreateOrder.
func (RepoStore) CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) (*domain.Order, error) {
	return repo.CreateOrder(ctx, db, o)
}

// GetOrder proxies repo.GetOrder.
func (RepoStore) GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	return repo.GetOrder(ctx, db, id)
}

// GetOrderByChatRef proxies repo.GetOrderByChatRef.
func (RepoStore) GetOrderByChatRef(ctx context.Context, db *gorm.DB, chatRef string) (*domain.Order, error) {
	return repo.GetOrderByChatRef(ctx, db, chatRef)
}

// UpdateOrder proxies repo.UpdateOrder.
func (RepoStore) UpdateOrder(ctx context.Context, db *gorm.DB, id string, patch map[string]any) error {
	return repo.UpdateOrder(ctx, db, id, patch)
}

// DeleteOrder proxies repo.DeleteOrder.
func (RepoStore) DeleteOrder(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteOrder(ctx, db, id)
}

// ListLiveOrders proxies repo.ListLiveOrders.
func (RepoStore) ListLiveOrders(ctx context.Context, db *gorm.DB) ([]domain.Order, error) {
	return repo.ListLiveOrders(ctx, db)
}
