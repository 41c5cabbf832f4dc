package domain

import "time"

type AppliedPromo struct {
	Code       string `json:"code"`
	PercentOff int    `json:"percentOff"`
}

// Cart owns its line items until a booking or gear order is created for
// them. Items keep insertion order.
type Cart struct {
	ID        string        `json:"id"`
	Items     []LineItem    `json:"items"`
	Promo     *AppliedPromo `json:"promo,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func NewCart(id string) *Cart {
	return &Cart{ID: id, Items: []LineItem{}}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) IndexOf(itemID string) int {
	for i, item := range c.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

func (c *Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.TotalPrice
	}
	return total
}

func (c *Cart) HasDatedItems() bool {
	for _, item := range c.Items {
		if item.IsDated() {
			return true
		}
	}
	return false
}

// Snapshot returns a deep copy of the items, detached from the cart.
func (c *Cart) Snapshot() []LineItem {
	items := make([]LineItem, len(c.Items))
	for i, item := range c.Items {
		items[i] = item.Clone()
	}
	return items
}

func (c *Cart) Clone() *Cart {
	out := &Cart{ID: c.ID, Items: c.Snapshot(), UpdatedAt: c.UpdatedAt}
	if c.Promo != nil {
		p := *c.Promo
		out.Promo = &p
	}
	return out
}
