// Package order turns a customer's cart into an order, reserving stock for
// each line.
package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/loja/storefront/internal/product"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusApproved Status = "A"
	StatusCreated  Status = "C"
	StatusRejected Status = "R"
	StatusPending  Status = "P"
	StatusShipped  Status = "E"
	StatusFinished Status = "F"
)

// Label returns the human readable name of the status.
func (s Status) Label() string {
	switch s {
	case StatusApproved:
		return "Approved"
	case StatusCreated:
		return "Created"
	case StatusRejected:
		return "Rejected"
	case StatusPending:
		return "Pending"
	case StatusShipped:
		return "Shipped"
	case StatusFinished:
		return "Finished"
	}
	return string(s)
}

var (
	// ErrNotFound is returned when an order does not exist or belongs to another user.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when no cart line has stock left to order.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidCart is returned for malformed cart lines.
	ErrInvalidCart = errors.New("invalid cart")
)

// CartItem is one line of the cart a customer submits.
type CartItem struct {
	VariationID string `json:"variationId" example:"1b4e28ba-2fa1-11d2-883f-0016d3cca427"`
	Quantity    int    `json:"quantity"    example:"2"`
}

// Order is a placed order with its items.
type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Total       decimal.Decimal `json:"total"`
	Quantity    int             `json:"quantity"`
	Status      Status          `json:"status"`
	Items       []Item          `json:"items,omitempty"`
	Adjustments []Adjustment    `json:"adjustments,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Item is an order line. Names, prices and the image are copied from the
// catalog when the order is placed.
type Item struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"productId"`
	ProductName      string          `json:"productName"`
	VariationID      string          `json:"variationId"`
	VariationName    string          `json:"variationName"`
	Price            decimal.Decimal `json:"price"`
	PromotionalPrice decimal.Decimal `json:"promotionalPrice"`
	Quantity         int             `json:"quantity"`
	ImageURL         string          `json:"imageUrl"`
}

// UnitPrice is the promotional price when set, the regular price otherwise.
func (i Item) UnitPrice() decimal.Decimal {
	if i.PromotionalPrice.IsPositive() {
		return i.PromotionalPrice
	}
	return i.Price
}

// Subtotal is the unit price times the quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Adjustment records a cart line that was reduced or dropped for lack of stock.
type Adjustment struct {
	VariationID string `json:"variationId"`
	Requested   int    `json:"requested"`
	Granted     int    `json:"granted"`
}

// Stock is a locked variation together with the product fields an order
// line copies.
type Stock struct {
	Variation   product.Variation
	ProductName string
	ImageURL    string
}

// Merge sums the quantities of repeated variations, keeping the order in
// which each variation first appears.
func Merge(cart []CartItem) []CartItem {
	index := make(map[string]int, len(cart))
	merged := make([]CartItem, 0, len(cart))
	for _, c := range cart {
		if i, ok := index[c.VariationID]; ok {
			merged[i].Quantity += c.Quantity
			continue
		}
		index[c.VariationID] = len(merged)
		merged = append(merged, c)
	}
	return merged
}

// Build prices the cart against the locked stock. Quantities above the
// available stock are clamped and lines without stock or unknown variations
// are dropped, each recorded as an Adjustment. The returned order has status
// Created and no ID.
func Build(userID string, cart []CartItem, stock map[string]Stock) *Order {
	o := &Order{UserID: userID, Status: StatusCreated, Total: decimal.Zero}
	for _, c := range Merge(cart) {
		s, ok := stock[c.VariationID]
		granted := 0
		if ok {
			granted = min(c.Quantity, s.Variation.Stock)
		}
		if granted != c.Quantity {
			o.Adjustments = append(o.Adjustments, Adjustment{
				VariationID: c.VariationID,
				Requested:   c.Quantity,
				Granted:     max(granted, 0),
			})
		}
		if granted <= 0 {
			continue
		}

		item := Item{
			ProductID:        s.Variation.ProductID,
			ProductName:      s.ProductName,
			VariationID:      s.Variation.ID,
			VariationName:    s.Variation.DisplayName(s.ProductName),
			Price:            s.Variation.Price,
			PromotionalPrice: s.Variation.PromotionalPrice,
			Quantity:         granted,
			ImageURL:         s.ImageURL,
		}
		o.Items = append(o.Items, item)
		o.Quantity += granted
		o.Total = o.Total.Add(item.Subtotal())
	}
	return o
}
