package simulate

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/roach88/cartsync/internal/catalog"
)

// Pricer resolves a class name. *catalog.Store implements it.
type Pricer interface {
	Lookup(ctx context.Context, className string) (catalog.Product, error)
}

// Update is the payload of an update event. Amounts are JSON numbers.
type Update struct {
	Products []UpdateProduct `json:"products"`
	Total    json.Number     `json:"total"`
}

type UpdateProduct struct {
	ProductName string      `json:"product_name"`
	Quantity    int         `json:"quantity"`
	UnitPrice   json.Number `json:"unit_price"`
	Subtotal    json.Number `json:"subtotal"`
}

// BuildUpdate prices detections. Classes with a zero count or missing from
// the catalog are skipped. Products are ordered by class name.
func BuildUpdate(ctx context.Context, detections map[string]int, pricer Pricer) (Update, error) {
	out := Update{Products: []UpdateProduct{}}
	total := decimal.Zero

	for _, class := range classes(detections) {
		n := detections[class]
		if n <= 0 {
			continue
		}
		p, err := pricer.Lookup(ctx, class)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return Update{}, err
		}

		subtotal := p.UnitPrice.Mul(decimal.NewFromInt(int64(n)))
		total = total.Add(subtotal)
		out.Products = append(out.Products, UpdateProduct{
			ProductName: p.ProductName,
			Quantity:    n,
			UnitPrice:   json.Number(p.UnitPrice.StringFixed(2)),
			Subtotal:    json.Number(subtotal.StringFixed(2)),
		})
	}

	out.Total = json.Number(total.StringFixed(2))
	return out, nil
}
