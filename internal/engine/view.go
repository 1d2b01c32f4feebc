package engine

import (
	"time"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/checkout"
	"github.com/roach88/cartsync/internal/connection"
)

// View is the read model published after every handled event. A View is
// never mutated after it is stored, so readers may hold it freely.
type View struct {
	Seq        int64                 `json:"seq"`
	UpdatedAt  time.Time             `json:"updated_at"`
	Cart       CartView              `json:"cart"`
	Connection ConnectionView        `json:"connection"`
	Checkout   CheckoutView          `json:"checkout"`
	Frames     *connection.GateStats `json:"frames,omitempty"`
}

// CartView lists every line including zero-quantity placeholders.
type CartView struct {
	Items []LineView `json:"items"`
	Total string     `json:"total"`
}

type LineView struct {
	Name       string    `json:"name"`
	Quantity   int64     `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
	Subtotal   string    `json:"subtotal"`
	Active     bool      `json:"active"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

type ConnectionView struct {
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
	Label   string    `json:"label"`
	Since   time.Time `json:"since"`
}

type CheckoutView struct {
	Phase   checkout.Phase `json:"phase"`
	Invoice *InvoiceView   `json:"invoice,omitempty"`
	Payment *PaymentView   `json:"payment,omitempty"`
}

type InvoiceView struct {
	Number    string     `json:"number"`
	Total     string     `json:"total"`
	CreatedAt time.Time  `json:"created_at"`
	Items     []LineView `json:"items"`
}

type PaymentView struct {
	InvoiceID   string                  `json:"invoice_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Payload     checkout.PaymentPayload `json:"payload"`
}

// NewCartView renders a cart state with two-decimal amounts.
func NewCartView(s cart.State) CartView {
	return CartView{
		Items: lineViews(s.Lines()),
		Total: cart.FormatAmount(s.Total()),
	}
}

func lineViews(items []cart.LineItem) []LineView {
	out := make([]LineView, 0, len(items))
	for _, it := range items {
		out = append(out, LineView{
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  cart.FormatAmount(it.UnitPrice),
			Subtotal:   cart.FormatAmount(it.Subtotal),
			Active:     it.Active(),
			LastSeenAt: it.LastSeenAt,
		})
	}
	return out
}

func NewConnectionView(s connection.State) ConnectionView {
	return ConnectionView{
		Status:  s.Status.String(),
		Message: s.Message,
		Attempt: s.Attempt,
		Label:   s.Label(),
		Since:   s.Since,
	}
}

// NewCheckoutView renders the controller status. The payment payload is
// included so a display client can encode it without recomputing amounts.
func NewCheckoutView(st checkout.Status) CheckoutView {
	v := CheckoutView{Phase: st.Phase}
	if st.Invoice != nil {
		v.Invoice = &InvoiceView{
			Number:    st.Invoice.Number,
			Total:     cart.FormatAmount(st.Invoice.Total),
			CreatedAt: st.Invoice.CreatedAt,
			Items:     lineViews(st.Invoice.Items),
		}
	}
	if st.Payment != nil {
		v.Payment = &PaymentView{
			InvoiceID:   st.Payment.InvoiceID,
			GeneratedAt: st.Payment.GeneratedAt,
			Payload:     st.Payment.Payload(),
		}
	}
	return v
}
