package domain

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Coupon is a static discount rule. Coupons are not persisted by this
// service; the table lives in the coupon engine.
type Coupon struct {
	Code               string       `json:"code"`
	DiscountValue      float64      `json:"discount_value"`
	DiscountType       DiscountType `json:"discount_type"`
	MinimumOrderAmount float64      `json:"minimum_order_amount"`
}
