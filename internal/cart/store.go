package cart

import (
	"context"
	"errors"

	"github.com/amarnathnag/fitnect-cart/internal/domain"
)

var (
	ErrCartNotFound  = errors.New("cart not found")
	ErrEntryNotFound = errors.New("entry not found in cart")
)

// Store is the backing storage for one cart collection, keyed by the
// session key (user id or guest id). Two implementations exist: the
// sqlite-backed guest store and the Mongo-backed authenticated store.
// The controller is the only component that talks to a Store; "is guest"
// never leaks past that seam.
type Store interface {
	GetCart(ctx context.Context, key string) (*domain.Cart, error)
	AddEntry(ctx context.Context, key string, entry domain.CartEntry) error
	UpdateQuantity(ctx context.Context, key, productID string, quantity int) error
	RemoveEntry(ctx context.Context, key, productID string) error
	ClearCart(ctx context.Context, key string) error
}
