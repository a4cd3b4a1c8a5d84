package order

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/amarnathnag/fitnect-cart/internal/domain"
	"github.com/amarnathnag/fitnect-cart/internal/notify"
	"github.com/amarnathnag/fitnect-cart/internal/pricing"
	"github.com/amarnathnag/fitnect-cart/internal/session"
)

var (
	ErrNotAuthenticated = errors.New("checkout requires a signed-in user")
	ErrEmptyCart        = errors.New("cart is empty, nothing to order")
)

// CartClearer is the slice of the cart controller the assembler needs.
type CartClearer interface {
	Clear(ctx context.Context, sess session.Session) error
}

// EventPublisher announces placed orders downstream. Publishing is best
// effort; a lost event never fails the order.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order *domain.Order) error
}

// Assembler turns a finalized cart plus delivery address into a persisted
// order. Creation runs as a three-step saga: order header, line items,
// cart clear. A failed item insert compensates by deleting the header;
// a failed cart clear is logged and tolerated because the order itself
// stands.
type Assembler struct {
	repo      OrderRepository
	carts     CartClearer
	publisher EventPublisher
	notifier  notify.Notifier
}

func NewAssembler(repo OrderRepository, carts CartClearer, publisher EventPublisher, notifier notify.Notifier) *Assembler {
	return &Assembler{
		repo:      repo,
		carts:     carts,
		publisher: publisher,
		notifier:  notifier,
	}
}

func (a *Assembler) PlaceOrder(
	ctx context.Context,
	sess session.Session,
	entries []domain.CartEntry,
	address domain.DeliveryAddress,
	couponDiscount float64,
) (*domain.Order, error) {

	if !sess.Authenticated() {
		a.notifier.Error("Please log in to place your order")
		return nil, ErrNotAuthenticated
	}
	if len(entries) == 0 {
		a.notifier.Error("Your cart is empty")
		return nil, ErrEmptyCart
	}

	items := make([]domain.OrderItem, len(entries))
	for i, entry := range entries {
		items[i] = domain.OrderItem{
			ProductID:    entry.Product.ID,
			ProductName:  entry.Product.Name,
			Quantity:     entry.Quantity,
			PricePerItem: entry.Product.UnitPrice,
		}
	}

	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          sess.UserID,
		TotalAmount:     pricing.FinalTotal(pricing.CartTotal(entries), couponDiscount),
		DeliveryAddress: address,
		Status:          domain.OrderStatusPending,
		Items:           items,
	}

	// Step 1: order header. Failure here creates nothing.
	if err := a.repo.CreateOrder(ctx, order); err != nil {
		a.notifier.Error("Could not place your order")
		return nil, fmt.Errorf("create order: %w", err)
	}

	// Step 2: line items. Compensate by deleting the header so no
	// orphaned zero-item order survives.
	if err := a.repo.CreateOrderItems(ctx, order.ID, items); err != nil {
		if errDelete := a.repo.DeleteOrder(ctx, order.ID); errDelete != nil {
			log.Printf("compensation failed, order %s left without items: %v", order.ID, errDelete)
		}
		a.notifier.Error("Could not place your order")
		return nil, fmt.Errorf("create order items: %w", err)
	}

	// Step 3: clear the cart. The order already stands, so a failure is
	// logged and not surfaced to the shopper.
	if err := a.carts.Clear(ctx, sess); err != nil {
		log.Printf("failed to clear cart for user %s after order %s: %v", sess.UserID, order.ID, err)
	}

	if a.publisher != nil {
		if err := a.publisher.PublishOrderPlaced(ctx, order); err != nil {
			log.Printf("failed to publish order-placed event for %s: %v", order.ID, err)
		}
	}

	a.notifier.Success(fmt.Sprintf("Order placed, total ₹%s", pricing.FormatPrice(order.TotalAmount)))
	return order, nil
}
