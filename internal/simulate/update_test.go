package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/catalog"
)

type mapPricer map[string]catalog.Product

func (m mapPricer) Lookup(_ context.Context, class string) (catalog.Product, error) {
	p, ok := m[class]
	if !ok {
		return catalog.Product{}, fmt.Errorf("%w: %s", catalog.ErrNotFound, class)
	}
	return p, nil
}

type failingPricer struct{}

func (failingPricer) Lookup(context.Context, string) (catalog.Product, error) {
	return catalog.Product{}, errors.New("database is locked")
}

var testPrices = mapPricer{
	"toddy-750g":        {ClassName: "toddy-750g", ProductName: "Toddy - 750g", UnitPrice: decimal.RequireFromString("18.5")},
	"ketchup-kris-200g": {ClassName: "ketchup-kris-200g", ProductName: "Ketchup - Kris - 200g", UnitPrice: decimal.RequireFromString("3.2")},
}

func TestBuildUpdate(t *testing.T) {
	u, err := BuildUpdate(context.Background(), map[string]int{
		"toddy-750g":        1,
		"ketchup-kris-200g": 3,
		"unicorn":           2,
		"zero":              0,
	}, testPrices)
	require.NoError(t, err)

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"products": [
			{"product_name": "Ketchup - Kris - 200g", "quantity": 3, "unit_price": 3.20, "subtotal": 9.60},
			{"product_name": "Toddy - 750g", "quantity": 1, "unit_price": 18.50, "subtotal": 18.50}
		],
		"total": 28.10
	}`, string(data))
}

func TestBuildUpdate_Empty(t *testing.T) {
	u, err := BuildUpdate(context.Background(), nil, testPrices)
	require.NoError(t, err)

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"products": [], "total": 0}`, string(data))
}

func TestBuildUpdate_PricerFailure(t *testing.T) {
	_, err := BuildUpdate(context.Background(), map[string]int{"toddy-750g": 1}, failingPricer{})
	assert.Error(t, err)
}
