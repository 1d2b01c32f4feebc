package cart

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

func TestNewLineItem_Subtotal(t *testing.T) {
	li := NewLineItem("milk", 2, decimal.RequireFromString("2.50"), t0)

	assert.True(t, li.Subtotal.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, li.Active())
	assert.Equal(t, t0, li.LastSeenAt)
}

func TestLineItem_Zeroed(t *testing.T) {
	li := NewLineItem("milk", 2, decimal.RequireFromString("2.50"), t0)
	z := li.Zeroed()

	assert.Equal(t, int64(0), z.Quantity)
	assert.True(t, z.Subtotal.IsZero())
	assert.True(t, z.UnitPrice.Equal(li.UnitPrice), "unit price survives")
	assert.Equal(t, t0, z.LastSeenAt, "last sighting is not refreshed")
	assert.False(t, z.Active())

	// source untouched
	assert.Equal(t, int64(2), li.Quantity)
}

func TestState_ZeroValueIsEmpty(t *testing.T) {
	var s State
	assert.True(t, s.IsEmpty())
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Total().IsZero())
	assert.Empty(t, s.Lines())
	_, ok := s.Item("milk")
	assert.False(t, ok)
}

func TestState_LinesSortedByName(t *testing.T) {
	s := NewState([]LineItem{
		NewLineItem("yogurt", 1, decimal.NewFromInt(1), t0),
		NewLineItem("bread", 1, decimal.NewFromInt(1), t0),
		NewLineItem("milk", 1, decimal.NewFromInt(1), t0),
	}, decimal.NewFromInt(3))

	lines := s.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "bread", lines[0].Name)
	assert.Equal(t, "milk", lines[1].Name)
	assert.Equal(t, "yogurt", lines[2].Name)
}

func TestState_ActiveLinesAndSum(t *testing.T) {
	s := NewState([]LineItem{
		NewLineItem("milk", 2, decimal.RequireFromString("2.50"), t0),
		NewLineItem("bread", 1, decimal.RequireFromString("1.20"), t0).Zeroed(),
		NewLineItem("eggs", 3, decimal.RequireFromString("0.40"), t0),
	}, decimal.RequireFromString("6.20"))

	active := s.ActiveLines()
	require.Len(t, active, 2)
	assert.Equal(t, "eggs", active[0].Name)
	assert.Equal(t, "milk", active[1].Name)
	assert.True(t, s.HasActive())
	assert.Equal(t, "6.20", FormatAmount(s.ActiveSum()))
}

func TestNewState_DuplicateLastWinsAndNegativeTotal(t *testing.T) {
	s := NewState([]LineItem{
		NewLineItem("milk", 1, decimal.NewFromInt(1), t0),
		NewLineItem("milk", 4, decimal.NewFromInt(1), t0),
	}, decimal.NewFromInt(-3))

	it, ok := s.Item("milk")
	require.True(t, ok)
	assert.Equal(t, int64(4), it.Quantity)
	assert.True(t, s.Total().IsZero())
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "5.00", FormatAmount(decimal.NewFromInt(5)))
	assert.Equal(t, "0.10", FormatAmount(decimal.RequireFromString("0.1")))
	assert.Equal(t, "18.50", FormatAmount(decimal.RequireFromString("18.5")))
}
