package checkout

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/cartsync/internal/cart"
)

// PaymentIDPrefix is prepended to every generated payment request id.
const PaymentIDPrefix = "PAY-"

// Invoice is an immutable copy of the billable cart lines at the moment the
// checkout began. Later cart updates never reach it.
type Invoice struct {
	Items     []cart.LineItem
	Total     decimal.Decimal
	Number    string
	CreatedAt time.Time
}

// newInvoice snapshots the positive-quantity lines of live, in display order.
func newInvoice(live cart.State, now time.Time) Invoice {
	return Invoice{
		Items:     live.ActiveLines(),
		Total:     live.Total(),
		Number:    InvoiceNumber(now),
		CreatedAt: now,
	}
}

// InvoiceNumber formats an invoice number as INV-YYYYMMDD-HHMM.
func InvoiceNumber(t time.Time) string {
	return "INV-" + t.Format("20060102-1504")
}

// clone returns a copy whose item slice is not shared.
func (inv Invoice) clone() Invoice {
	items := make([]cart.LineItem, len(inv.Items))
	copy(items, inv.Items)
	inv.Items = items
	return inv
}

// PaymentRequest is the artifact shown to the customer for one payment
// screen. It is generated once per screen from the invoice.
type PaymentRequest struct {
	InvoiceID   string
	Invoice     Invoice
	GeneratedAt time.Time
}

// PaymentPayload is the JSON document encoded into the payment QR code.
type PaymentPayload struct {
	InvoiceID string           `json:"invoiceId"`
	Total     string           `json:"total"`
	Products  []PayloadProduct `json:"products"`
	Timestamp string           `json:"timestamp"`
}

// PayloadProduct is one invoice line within the payload.
type PayloadProduct struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Subtotal string `json:"subtotal"`
}

// Payload builds the payment payload with two-decimal amounts.
func (pr PaymentRequest) Payload() PaymentPayload {
	products := make([]PayloadProduct, 0, len(pr.Invoice.Items))
	for _, it := range pr.Invoice.Items {
		products = append(products, PayloadProduct{
			Name:     it.Name,
			Quantity: it.Quantity,
			Subtotal: cart.FormatAmount(it.Subtotal),
		})
	}
	return PaymentPayload{
		InvoiceID: pr.InvoiceID,
		Total:     cart.FormatAmount(pr.Invoice.Total),
		Products:  products,
		Timestamp: pr.GeneratedAt.UTC().Format(time.RFC3339),
	}
}

// PayloadJSON marshals Payload.
func (pr PaymentRequest) PayloadJSON() ([]byte, error) {
	return json.Marshal(pr.Payload())
}
