package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/amarnathnag/fitnect-cart/internal/cache"
	"github.com/amarnathnag/fitnect-cart/internal/catalog"
	"github.com/amarnathnag/fitnect-cart/internal/domain"
	"github.com/amarnathnag/fitnect-cart/internal/notify"
	"github.com/amarnathnag/fitnect-cart/internal/pricing"
	"github.com/amarnathnag/fitnect-cart/internal/session"
)

var (
	ErrInvalidProduct  = errors.New("invalid product")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrTimeout         = errors.New("request timed out")
)

// Controller is the single entry point for cart reads and mutations. It
// picks the backing store from the session (guest sqlite vs authenticated
// Mongo), keeps an in-memory materialized view per session key, and
// applies every mutation optimistically: the view changes first, and a
// snapshot taken beforehand is restored if the backend write fails. The
// same rule covers updates and removals. Carts handed to callers are
// always copies; the view object itself never leaves the controller.
type Controller struct {
	guest    Store
	auth     Store
	catalog  catalog.RepoInterface
	cache    cache.CartCache
	notifier notify.Notifier
	breaker  *gobreaker.CircuitBreaker[*catalog.Product]
	sfg      singleflight.Group // Prevents cache stampede on reads

	mu    sync.RWMutex
	views map[string]*domain.Cart
}

func NewController(guest, auth Store, cat catalog.RepoInterface, cc cache.CartCache, notifier notify.Notifier) *Controller {
	breaker := gobreaker.NewCircuitBreaker[*catalog.Product](gobreaker.Settings{
		Name:    "catalog",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Controller{
		guest:    guest,
		auth:     auth,
		catalog:  cat,
		cache:    cc,
		notifier: notifier,
		breaker:  breaker,
		views:    make(map[string]*domain.Cart),
	}
}

func (c *Controller) storeFor(sess session.Session) Store {
	if sess.Authenticated() {
		return c.auth
	}
	return c.guest
}

// GetCart returns the cart for the session, hitting the cache first for
// authenticated users and falling back to the backing store. The cache
// holds raw rows only, so product snapshots are re-resolved from the
// catalog on every authenticated read, cache hit or not. A missing cart
// reads as an empty one, and the caller gets its own copy of the cart.
func (c *Controller) GetCart(ctx context.Context, sess session.Session) (*domain.Cart, error) {
	key := sess.Key()

	v, err, _ := c.sfg.Do(key, func() (interface{}, error) {
		if sess.Authenticated() {
			cached, errCache := c.cache.Get(ctx, key)
			if errCache == nil {
				return cached, nil
			}
			if !errors.Is(errCache, cache.ErrCacheMiss) {
				log.Printf("cache get error: %v", errCache) // log cache error but continue
			}
		}

		cart, errGet := c.loadCart(ctx, sess)
		if errGet != nil {
			return nil, errGet
		}

		if sess.Authenticated() {
			toCache := cloneCart(cart)
			go func() {
				errSet := c.cache.Set(context.Background(), key, toCache)
				if errSet != nil {
					log.Printf("cache set error: %v", errSet)
				}
			}()
		}

		return cart, nil
	})

	if err != nil {
		return nil, wrapTimeout(err)
	}

	cart := cloneCart(v.(*domain.Cart))
	if sess.Authenticated() {
		if errHydrate := c.hydrate(ctx, cart); errHydrate != nil {
			return nil, wrapTimeout(errHydrate)
		}
	}

	c.setView(key, cart)
	return cloneCart(cart), nil
}

// Refetch reloads the entry list from the backing store into the
// materialized view, bypassing the cache. Used after login/logout
// transitions and after add operations.
func (c *Controller) Refetch(ctx context.Context, sess session.Session) (*domain.Cart, error) {
	cart, err := c.loadCart(ctx, sess)
	if err != nil {
		return nil, wrapTimeout(err)
	}

	key := sess.Key()
	if sess.Authenticated() {
		// Cache the raw rows; hydration happens on every read.
		if errSet := c.cache.Set(ctx, key, cloneCart(cart)); errSet != nil {
			log.Printf("cache set error: %v", errSet)
		}
		if errHydrate := c.hydrate(ctx, cart); errHydrate != nil {
			return nil, wrapTimeout(errHydrate)
		}
	}

	c.setView(key, cart)
	return cloneCart(cart), nil
}

// loadCart reads raw rows from the backing store; a missing cart reads
// as an empty one. Hydration is the caller's job.
func (c *Controller) loadCart(ctx context.Context, sess session.Session) (*domain.Cart, error) {
	cart, err := c.storeFor(sess).GetCart(ctx, sess.Key())
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			now := time.Now()
			return &domain.Cart{UserID: sess.Key(), CreatedAt: now, UpdatedAt: now}, nil
		}
		return nil, err
	}

	return cart, nil
}

// hydrate re-resolves product snapshots from the catalog. Entries whose
// product has left the catalog are dropped from the view; they stay in
// the store until the next mutation touches them.
func (c *Controller) hydrate(ctx context.Context, cart *domain.Cart) error {
	entries := cart.Entries[:0]
	for _, entry := range cart.Entries {
		product, err := c.breaker.Execute(func() (*catalog.Product, error) {
			return c.catalog.GetProduct(ctx, entry.Product.ID)
		})
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				log.Printf("cart entry %s references unknown product %s, dropping from view", entry.EntryID, entry.Product.ID)
				continue
			}
			return fmt.Errorf("failed to resolve product %s: %w", entry.Product.ID, err)
		}
		entry.Product = product.Snapshot()
		entries = append(entries, entry)
	}
	cart.Entries = entries
	return nil
}

// AddToCart inserts a product with quantity 1, or bumps the quantity by
// one when the product is already in the cart.
func (c *Controller) AddToCart(ctx context.Context, sess session.Session, product domain.ProductSnapshot) error {
	if product.ID == "" {
		c.notifier.Error("Cannot add this product to cart")
		return ErrInvalidProduct
	}

	cart, err := c.GetCart(ctx, sess)
	if err != nil {
		c.notifier.Error("Could not load your cart")
		return err
	}

	if existing := cart.FindEntry(product.ID); existing != nil {
		return c.UpdateQuantity(ctx, sess, product.ID, existing.Quantity+1)
	}

	entry := domain.CartEntry{
		EntryID:  uuid.NewString(),
		Product:  product,
		Quantity: 1,
	}

	if errAdd := c.storeFor(sess).AddEntry(ctx, sess.Key(), entry); errAdd != nil {
		log.Printf("store add entry error: %v", errAdd)
		c.notifier.Error("Could not add item to cart")
		return wrapTimeout(errAdd)
	}

	c.invalidateCache(sess)
	if _, errRefetch := c.Refetch(ctx, sess); errRefetch != nil {
		log.Printf("refetch after add failed: %v", errRefetch)
	}

	c.notifier.Success(fmt.Sprintf("%s added to cart", product.Name))
	return nil
}

// UpdateQuantity sets the quantity for a product line. Zero delegates to
// RemoveFromCart; the entry never stores a non-positive quantity.
func (c *Controller) UpdateQuantity(ctx context.Context, sess session.Session, productID string, quantity int) error {
	if productID == "" || quantity < 0 {
		c.notifier.Error("Invalid quantity update")
		return ErrInvalidArgument
	}
	if quantity == 0 {
		return c.RemoveFromCart(ctx, sess, productID)
	}

	key := sess.Key()
	snapshot := c.snapshotView(key)

	c.applyToView(key, func(cart *domain.Cart) {
		if entry := cart.FindEntry(productID); entry != nil {
			entry.Quantity = quantity
		}
	})

	if err := c.storeFor(sess).UpdateQuantity(ctx, key, productID, quantity); err != nil {
		log.Printf("store update quantity error: %v", err)
		c.restoreView(key, snapshot)
		c.notifier.Error("Could not update quantity")
		return wrapTimeout(err)
	}

	c.invalidateCache(sess)
	c.notifier.Success("Cart updated")
	return nil
}

// RemoveFromCart deletes a product line. An empty product id is a no-op.
func (c *Controller) RemoveFromCart(ctx context.Context, sess session.Session, productID string) error {
	if productID == "" {
		return nil
	}

	key := sess.Key()
	snapshot := c.snapshotView(key)

	c.applyToView(key, func(cart *domain.Cart) {
		entries := cart.Entries[:0]
		for _, entry := range cart.Entries {
			if entry.Product.ID != productID {
				entries = append(entries, entry)
			}
		}
		cart.Entries = entries
	})

	if err := c.storeFor(sess).RemoveEntry(ctx, key, productID); err != nil {
		log.Printf("store remove entry error: %v", err)
		c.restoreView(key, snapshot)
		c.notifier.Error("Could not remove item from cart")
		return wrapTimeout(err)
	}

	c.invalidateCache(sess)
	c.notifier.Success("Item removed from cart")
	return nil
}

// Clear empties the cart. Clearing an already empty cart succeeds.
func (c *Controller) Clear(ctx context.Context, sess session.Session) error {
	key := sess.Key()

	if err := c.storeFor(sess).ClearCart(ctx, key); err != nil && !errors.Is(err, ErrCartNotFound) {
		log.Printf("store clear cart error: %v", err)
		c.notifier.Error("Could not clear cart")
		return wrapTimeout(err)
	}

	c.applyToView(key, func(cart *domain.Cart) {
		cart.Entries = nil
	})
	c.invalidateCache(sess)
	c.notifier.Success("Cart cleared")
	return nil
}

// MergeGuestCart folds a guest cart into the authenticated cart after
// login. The caller invokes this deliberately; logging in alone leaves
// the guest cart untouched in local storage. Quantities for products
// present in both carts are summed.
func (c *Controller) MergeGuestCart(ctx context.Context, sess session.Session) error {
	if !sess.Authenticated() || sess.GuestID == "" {
		return ErrInvalidArgument
	}

	guestCart, err := c.guest.GetCart(ctx, sess.GuestID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return nil // nothing to merge
		}
		return wrapTimeout(err)
	}

	authCart, err := c.auth.GetCart(ctx, sess.UserID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return wrapTimeout(err)
	}

	for _, entry := range guestCart.Entries {
		quantity := entry.Quantity
		if authCart != nil {
			if existing := authCart.FindEntry(entry.Product.ID); existing != nil {
				quantity += existing.Quantity
			}
		}

		merged := domain.CartEntry{
			EntryID:  uuid.NewString(),
			Product:  entry.Product,
			Quantity: quantity,
		}
		if errAdd := c.auth.AddEntry(ctx, sess.UserID, merged); errAdd != nil {
			c.notifier.Error("Could not merge your saved cart")
			return wrapTimeout(errAdd)
		}
	}

	if errClear := c.guest.ClearCart(ctx, sess.GuestID); errClear != nil && !errors.Is(errClear, ErrCartNotFound) {
		// The merge itself succeeded; a leftover guest cart is benign.
		log.Printf("failed to clear guest cart %s after merge: %v", sess.GuestID, errClear)
	}

	c.invalidateCache(sess)
	if _, errRefetch := c.Refetch(ctx, sess); errRefetch != nil {
		log.Printf("refetch after merge failed: %v", errRefetch)
	}

	c.notifier.Success("Saved cart merged")
	return nil
}

// Total returns the rounded cart total for the session's current view.
func (c *Controller) Total(sess session.Session) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cart, ok := c.views[sess.Key()]; ok {
		return pricing.CartTotal(cart.Entries)
	}
	return 0
}

// Count returns the unit count for the session's current view.
func (c *Controller) Count(sess session.Session) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if cart, ok := c.views[sess.Key()]; ok {
		return pricing.CartCount(cart.Entries)
	}
	return 0
}

func (c *Controller) setView(key string, cart *domain.Cart) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[key] = cart
}

func (c *Controller) snapshotView(key string) *domain.Cart {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cart, ok := c.views[key]
	if !ok {
		return nil
	}
	return cloneCart(cart)
}

// cloneCart copies the cart and its entry slice so no two holders ever
// share a mutable cart object.
func cloneCart(cart *domain.Cart) *domain.Cart {
	clone := *cart
	clone.Entries = append([]domain.CartEntry(nil), cart.Entries...)
	return &clone
}

func (c *Controller) applyToView(key string, mutate func(*domain.Cart)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cart, ok := c.views[key]; ok {
		mutate(cart)
	}
}

func (c *Controller) restoreView(key string, snapshot *domain.Cart) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if snapshot == nil {
		delete(c.views, key)
		return
	}
	c.views[key] = snapshot
}

func (c *Controller) invalidateCache(sess session.Session) {
	if !sess.Authenticated() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.cache.Delete(ctx, sess.Key()); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}

func wrapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
