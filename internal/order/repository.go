package order

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/amarnathnag/fitnect-cart/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OrderRepository splits order creation from item creation so the
// assembler can compensate: DeleteOrder removes a header whose items
// never made it in.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	CreateOrderItems(ctx context.Context, orderID uuid.UUID, items []domain.OrderItem) error
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	RunMigrations(*Credentials) error
	Close() error
}
