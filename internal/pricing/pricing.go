// Package pricing holds the pure arithmetic over cart entries: per-line
// subtotals, cart totals, item counts and display formatting.
package pricing

import (
	"fmt"
	"log"
	"math"

	"github.com/amarnathnag/fitnect-cart/internal/domain"
)

// Round2 rounds half-up to 2 decimal places.
func Round2(amount float64) float64 {
	return math.Floor(amount*100+0.5) / 100
}

// Subtotal computes unit price times quantity for one entry. Non-numeric
// or negative inputs contribute zero; that is a data problem worth a log
// line, not a fatal error.
func Subtotal(entry domain.CartEntry) float64 {
	price := entry.Product.UnitPrice
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		log.Printf("pricing: ignoring entry %s with bad unit price %v", entry.EntryID, price)
		return 0
	}
	if entry.Quantity < 0 {
		log.Printf("pricing: ignoring entry %s with negative quantity %d", entry.EntryID, entry.Quantity)
		return 0
	}
	return price * float64(entry.Quantity)
}

// CartTotal sums every entry subtotal and rounds to 2 decimal places.
// An empty list yields exactly 0.
func CartTotal(entries []domain.CartEntry) float64 {
	var total float64
	for _, entry := range entries {
		total += Subtotal(entry)
	}
	return Round2(total)
}

// CartCount counts units, not distinct products: two units of the same
// product contribute 2.
func CartCount(entries []domain.CartEntry) int {
	var count int
	for _, entry := range entries {
		if entry.Quantity > 0 {
			count += entry.Quantity
		}
	}
	return count
}

// FormatPrice renders a 2-decimal display string. Negative or NaN input
// normalizes to "0.00".
func FormatPrice(amount float64) string {
	if math.IsNaN(amount) || amount < 0 {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", Round2(amount))
}

// FinalTotal applies a discount to a cart total, floored at zero. The
// discount can never drive the total negative.
func FinalTotal(cartTotal, discount float64) float64 {
	return math.Max(0, Round2(cartTotal-discount))
}
