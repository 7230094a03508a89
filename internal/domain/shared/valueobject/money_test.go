package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNonNegative(t *testing.T) {
	assert.True(t, NonNegative(decimal.NewFromInt(-5)).IsZero())
	assert.True(t, NonNegative(decimal.NewFromInt(5)).Equal(decimal.NewFromInt(5)))
}

func TestIsNegligible(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   bool
	}{
		{"zero", "0", true},
		{"rounding noise", "0.0000001", true},
		{"negative noise", "-0.009", true},
		{"one cent", "0.01", false},
		{"real balance", "600", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNegligible(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestPercent(t *testing.T) {
	t.Run("computes percentage", func(t *testing.T) {
		got := Percent(decimal.NewFromInt(400), decimal.NewFromInt(1000))
		assert.True(t, got.Equal(decimal.NewFromInt(40)), got.String())
	})

	t.Run("zero whole yields zero", func(t *testing.T) {
		assert.True(t, Percent(decimal.NewFromInt(10), decimal.Zero).IsZero())
	})

	t.Run("rounds to two places", func(t *testing.T) {
		got := Percent(decimal.NewFromInt(1), decimal.NewFromInt(3))
		assert.Equal(t, "33.33", got.String())
	})
}

func TestClampPercent(t *testing.T) {
	assert.True(t, ClampPercent(decimal.NewFromInt(150)).Equal(decimal.NewFromInt(100)))
	assert.True(t, ClampPercent(decimal.NewFromInt(-3)).IsZero())
	assert.True(t, ClampPercent(decimal.NewFromInt(42)).Equal(decimal.NewFromInt(42)))
}

func TestRatio(t *testing.T) {
	assert.True(t, Ratio(decimal.NewFromInt(600), decimal.NewFromInt(1000)).Equal(decimal.RequireFromString("0.6")))
	assert.True(t, Ratio(decimal.NewFromInt(600), decimal.Zero).IsZero())
}

func TestSum(t *testing.T) {
	got := Sum(decimal.NewFromInt(500), decimal.NewFromInt(300), decimal.NewFromInt(400))
	assert.True(t, got.Equal(decimal.NewFromInt(1200)))
	assert.True(t, Sum().IsZero())
}
