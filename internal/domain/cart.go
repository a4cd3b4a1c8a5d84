package domain

import "time"

// ProductSnapshot is the slice of catalog data a cart entry carries.
// Guest carts freeze it at add time; authenticated carts re-resolve it
// from the catalog on every read.
type ProductSnapshot struct {
	ID            string   `json:"id" bson:"product_id"`
	Name          string   `json:"name" bson:"name"`
	Brand         string   `json:"brand" bson:"brand"`
	UnitPrice     float64  `json:"unit_price" bson:"unit_price"`
	ImageURLs     []string `json:"image_urls,omitempty" bson:"image_urls,omitempty"`
	StockQuantity int      `json:"stock_quantity" bson:"stock_quantity"`
}

// CartEntry is one product line in a cart. Quantity is always >= 1 while
// the entry exists; an update to zero removes the entry instead.
type CartEntry struct {
	EntryID  string          `json:"entry_id" bson:"entry_id"`
	Product  ProductSnapshot `json:"product" bson:"product"`
	Quantity int             `json:"quantity" bson:"quantity"`
	AddedAt  time.Time       `json:"added_at" bson:"added_at"`
}

type Cart struct {
	ID        string      `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    string      `json:"user_id" bson:"user_id"`
	Entries   []CartEntry `json:"entries" bson:"entries"`
	CreatedAt time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" bson:"updated_at"`
}

// FindEntry returns the entry for productID, or nil if the cart has none.
func (c *Cart) FindEntry(productID string) *CartEntry {
	for i := range c.Entries {
		if c.Entries[i].Product.ID == productID {
			return &c.Entries[i]
		}
	}
	return nil
}
