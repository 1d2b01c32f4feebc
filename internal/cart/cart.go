// Package cart holds the live cart model: line items keyed by product name and
// the total derived from them.
//
// State values are immutable. Every processed snapshot produces a new State;
// nothing in this package mutates a State after construction.
package cart

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one cart line. Name is the identity: two items with the same
// name are the same line.
type LineItem struct {
	Name       string
	Quantity   int64
	UnitPrice  decimal.Decimal
	Subtotal   decimal.Decimal
	LastSeenAt time.Time
}

// NewLineItem builds a line and derives its subtotal from quantity and unit price.
func NewLineItem(name string, quantity int64, unitPrice decimal.Decimal, seenAt time.Time) LineItem {
	return LineItem{
		Name:       name,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		Subtotal:   unitPrice.Mul(decimal.NewFromInt(quantity)),
		LastSeenAt: seenAt,
	}
}

// Active reports whether the line contributes to the total.
func (li LineItem) Active() bool {
	return li.Quantity > 0
}

// Zeroed returns a placeholder copy with quantity and subtotal forced to zero.
// LastSeenAt is preserved so the retention window keeps counting from the
// last real sighting.
func (li LineItem) Zeroed() LineItem {
	li.Quantity = 0
	li.Subtotal = decimal.Zero
	return li
}

// Touched returns a copy seen at t.
func (li LineItem) Touched(t time.Time) LineItem {
	li.LastSeenAt = t
	return li
}

// State is an immutable cart: the item mapping plus the total.
// The zero value is an empty cart.
type State struct {
	items map[string]LineItem
	total decimal.Decimal
}

// Empty returns a cart with no items and a zero total.
func Empty() State {
	return State{}
}

// NewState builds a State from items and a total. Later duplicates of a name
// replace earlier ones. Negative totals are clamped to zero.
func NewState(items []LineItem, total decimal.Decimal) State {
	m := make(map[string]LineItem, len(items))
	for _, it := range items {
		m[it.Name] = it
	}
	if total.IsNegative() {
		total = decimal.Zero
	}
	return State{items: m, total: total}
}

// Total returns the cart total.
func (s State) Total() decimal.Decimal {
	return s.total
}

// Len returns the number of lines, including zero-quantity placeholders.
func (s State) Len() int {
	return len(s.items)
}

// IsEmpty reports whether the item set is empty.
func (s State) IsEmpty() bool {
	return len(s.items) == 0
}

// Item looks up a line by name.
func (s State) Item(name string) (LineItem, bool) {
	it, ok := s.items[name]
	return it, ok
}

// Lines returns every line in display order (lexicographic by name).
func (s State) Lines() []LineItem {
	out := make([]LineItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ActiveLines returns the positive-quantity lines in display order.
func (s State) ActiveLines() []LineItem {
	all := s.Lines()
	out := all[:0]
	for _, it := range all {
		if it.Active() {
			out = append(out, it)
		}
	}
	return out
}

// HasActive reports whether at least one line has a positive quantity.
func (s State) HasActive() bool {
	for _, it := range s.items {
		if it.Active() {
			return true
		}
	}
	return false
}

// ActiveSum sums the subtotals of positive-quantity lines.
func (s State) ActiveSum() decimal.Decimal {
	return SumActive(s.Lines())
}

// SumActive sums the subtotals of positive-quantity items.
func SumActive(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if it.Active() {
			sum = sum.Add(it.Subtotal)
		}
	}
	return sum
}

// FormatAmount renders a money amount with two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
