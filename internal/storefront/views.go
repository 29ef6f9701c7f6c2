// Package storefront is the HTTP display for the single-session cart: catalog
// browsing, cart gestures, a live render stream and the payment handoff.
package storefront

import (
	"strconv"

	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/checkout"
	"github.com/noah-isme/storefront/internal/money"
)

// LineView is one cart line as the display renders it.
type LineView struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Author            string `json:"author"`
	ImageURL          string `json:"imageUrl"`
	Price             int64  `json:"price"`
	PriceFormatted    string `json:"priceFormatted"`
	Qty               int    `json:"qty"`
	Subtotal          int64  `json:"subtotal"`
	SubtotalFormatted string `json:"subtotalFormatted"`
}

// CartView is the rendered cart. Empty disables checkout on the display.
type CartView struct {
	Items          []LineView `json:"items"`
	Count          int        `json:"count"`
	CountLabel     string     `json:"countLabel"`
	Total          int64      `json:"total"`
	TotalFormatted string     `json:"totalFormatted"`
	Empty          bool       `json:"empty"`
}

// GestureView is the cart after a gesture. Changed is false when the gesture
// named an id the cart could not act on.
type GestureView struct {
	CartView
	Changed bool `json:"changed"`
}

// NewCartView formats snap with conv.
func NewCartView(snap cart.Snapshot, conv money.Convention) CartView {
	items := make([]LineView, 0, len(snap.Lines))
	for _, line := range snap.Lines {
		items = append(items, LineView{
			ID:                line.ID,
			Title:             line.Title,
			Author:            line.Author,
			ImageURL:          line.ImageURL,
			Price:             line.Price,
			PriceFormatted:    conv.Format(line.Price),
			Qty:               line.Qty,
			Subtotal:          line.Subtotal(),
			SubtotalFormatted: conv.Format(line.Subtotal()),
		})
	}
	return CartView{
		Items:          items,
		Count:          snap.Totals.Count,
		CountLabel:     countLabel(snap.Totals.Count),
		Total:          snap.Totals.Total,
		TotalFormatted: conv.Format(snap.Totals.Total),
		Empty:          snap.Totals.Empty(),
	}
}

func countLabel(n int) string {
	if n == 1 {
		return "1 item"
	}
	return strconv.Itoa(n) + " items"
}

// CheckoutView is returned when a payment has been opened.
type CheckoutView struct {
	Provider         string `json:"provider"`
	Reference        string `json:"reference"`
	Total            int64  `json:"total"`
	TotalFormatted   string `json:"totalFormatted"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	AuthorizationURL string `json:"authorizationUrl,omitempty"`
	AccessCode       string `json:"accessCode,omitempty"`
	PublicKey        string `json:"publicKey,omitempty"`
}

// NewCheckoutView flattens an attempt for the display.
func NewCheckoutView(a checkout.Attempt, conv money.Convention) CheckoutView {
	return CheckoutView{
		Provider:         a.Handoff.Provider,
		Reference:        a.Reference,
		Total:            a.Total,
		TotalFormatted:   conv.Format(a.Total),
		Amount:           a.Amount,
		Currency:         a.Currency,
		AuthorizationURL: a.Handoff.AuthorizationURL,
		AccessCode:       a.Handoff.AccessCode,
		PublicKey:        a.Handoff.PublicKey,
	}
}
