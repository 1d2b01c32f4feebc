// Package snapshot turns one raw update message from the vision backend into
// typed line-item candidates.
//
// Normalization never fails. Bad entries are dropped one by one; a message
// whose top level cannot be decoded yields an empty candidate set and is
// flagged Malformed so the session keeps running across bad frames.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/cartsync/internal/cart"
)

// MaxNameLength bounds product names accepted from the backend.
const MaxNameLength = 256

// maxExponent bounds the decimal exponent of every number read from the wire.
// Comparing or converting a decimal costs big-integer work proportional to
// its exponent.
const maxExponent = 18

// maxQuantity is the largest quantity accepted for one line.
var maxQuantity = decimal.NewFromInt(1 << 31)

// Snapshot is one normalized update.
type Snapshot struct {
	// Candidates holds one line per distinct name, in order of first
	// appearance. For duplicate names the last occurrence's values win.
	Candidates []cart.LineItem

	// DeclaredTotal is the backend's total, clamped at zero.
	DeclaredTotal decimal.Decimal

	// TotalDeclared is false when the message carried no usable total.
	TotalDeclared bool

	// Malformed marks a message whose top level was undecodable.
	Malformed bool

	// Dropped counts product entries rejected individually.
	Dropped int

	ReceivedAt time.Time
}

// HasActive reports whether any candidate has a positive quantity.
func (s Snapshot) HasActive() bool {
	for _, c := range s.Candidates {
		if c.Active() {
			return true
		}
	}
	return false
}

// message is the wire shape of an update.
type message struct {
	Products json.RawMessage `json:"products"`
	Total    json.RawMessage `json:"total"`
}

// wireProduct is one entry as sent. Subtotal is accepted but never trusted;
// it is recomputed from quantity and unit price.
type wireProduct struct {
	ProductName string      `json:"product_name"`
	Quantity    json.Number `json:"quantity"`
	UnitPrice   json.Number `json:"unit_price"`
	Subtotal    json.Number `json:"subtotal"`
}

// candidate is the typed entry checked by the validator.
type candidate struct {
	Name      string          `validate:"productname"`
	Quantity  int64           `validate:"gte=0"`
	UnitPrice decimal.Decimal `validate:"gte=0"`
}

// Normalizer validates and shapes update messages.
// Safe for concurrent use.
type Normalizer struct {
	validate *validator.Validate
}

// NewNormalizer builds a normalizer with decimal-aware validation.
func NewNormalizer() *Normalizer {
	v := validator.New()
	v.RegisterAlias("productname", fmt.Sprintf("required,max=%d", MaxNameLength))
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	return &Normalizer{validate: v}
}

// decimalValue lets numeric validator tags apply to decimal fields.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

// Normalize decodes payload and stamps every candidate with now.
func (n *Normalizer) Normalize(payload []byte, now time.Time) Snapshot {
	snap := Snapshot{ReceivedAt: now, DeclaredTotal: decimal.Zero}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		snap.Malformed = true
		return snap
	}

	var msg message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		snap.Malformed = true
		return snap
	}

	var entries []json.RawMessage
	if len(msg.Products) > 0 && !isNull(msg.Products) {
		if err := json.Unmarshal(msg.Products, &entries); err != nil {
			snap.Malformed = true
			return snap
		}
	}

	if total, ok := parseAmount(msg.Total); ok {
		snap.TotalDeclared = true
		if total.IsNegative() {
			total = decimal.Zero
		}
		snap.DeclaredTotal = total
	}

	index := make(map[string]int, len(entries))
	for _, raw := range entries {
		item, ok := n.entry(raw, now)
		if !ok {
			snap.Dropped++
			continue
		}
		if i, seen := index[item.Name]; seen {
			snap.Candidates[i] = item
			continue
		}
		index[item.Name] = len(snap.Candidates)
		snap.Candidates = append(snap.Candidates, item)
	}

	return snap
}

// entry converts one product entry, reporting false when it must be dropped.
func (n *Normalizer) entry(raw json.RawMessage, now time.Time) (cart.LineItem, bool) {
	var wp wireProduct
	if err := json.Unmarshal(raw, &wp); err != nil {
		return cart.LineItem{}, false
	}

	qty, ok := parseQuantity(wp.Quantity)
	if !ok {
		return cart.LineItem{}, false
	}
	price, ok := parseDecimal(wp.UnitPrice.String())
	if !ok {
		return cart.LineItem{}, false
	}

	c := candidate{
		Name:      CanonicalName(wp.ProductName),
		Quantity:  qty,
		UnitPrice: price,
	}
	if err := n.validate.Struct(c); err != nil {
		return cart.LineItem{}, false
	}

	return cart.NewLineItem(c.Name, c.Quantity, c.UnitPrice, now), true
}

// CanonicalName trims and NFC-normalizes a product name so visually equal
// names from the backend share one cart line.
func CanonicalName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// parseQuantity accepts integral numbers in [0, 2^31] (2 and 2.0 alike).
func parseQuantity(n json.Number) (int64, bool) {
	d, ok := parseDecimal(n.String())
	if !ok || !d.IsInteger() {
		return 0, false
	}
	if d.IsNegative() || d.GreaterThan(maxQuantity) {
		return 0, false
	}
	return d.IntPart(), true
}

// parseAmount reads an optional JSON number (or numeric string).
func parseAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	if len(raw) == 0 || isNull(raw) {
		return decimal.Zero, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return decimal.Zero, false
	}
	return parseDecimal(n.String())
}

// parseDecimal parses a non-empty number whose exponent is within
// ±maxExponent.
func parseDecimal(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return decimal.Zero, false
	}
	return d, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
