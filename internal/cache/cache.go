package cache

import (
	"context"
	"errors"

	"github.com/amarnathnag/fitnect-cart/internal/domain"
)

// CartCache caches hydrated authenticated carts keyed by user id.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
