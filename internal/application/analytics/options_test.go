package analytics

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/pos/analytics/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions_Valid(t *testing.T) {
	require.NoError(t, NewValidator().Options(DefaultOptions()))
}

func TestValidator_Options(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr string
	}{
		{"negative target", func(o *Options) { o.TargetRevenue = -1 }, "target_revenue"},
		{"weight above one", func(o *Options) { o.RevenueWeight = 1.5 }, "revenue_weight"},
		{"weights do not sum to one", func(o *Options) { o.MarginWeight = 0.5 }, "weights must sum to 1"},
		{"high below medium", func(o *Options) { o.HighRiskRatio, o.MediumRiskRatio = 0.1, 0.3 }, "high_risk_ratio"},
		{"unknown time zone", func(o *Options) { o.Timezone = "Mars/Olympus_Mons" }, "timezone"},
		{"zero top n", func(o *Options) { o.ProductTopN = 0 }, "product_top_n"},
		{"sample size below minus one", func(o *Options) { o.SampleSize = -2 }, "sample_size"},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)

			err := v.Options(opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrInvalidOptions)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidator_WeightTolerance(t *testing.T) {
	opts := DefaultOptions()
	opts.RevenueWeight, opts.MarginWeight, opts.CollectionWeight = 0.3333, 0.3333, 0.3333

	assert.NoError(t, NewValidator().Options(opts))
}

func ptr[T any](v T) *T {
	return &v
}

func TestOptions_Complete(t *testing.T) {
	base := DefaultOptions()

	t.Run("zero fields take the base", func(t *testing.T) {
		merged := Options{TargetRevenue: 5000, OverdueIsHighRisk: true}.complete(base)

		assert.Equal(t, 5000.0, merged.TargetRevenue)
		assert.Equal(t, base.RevenueWeight, merged.RevenueWeight)
		assert.Equal(t, base.HighRiskRatio, merged.HighRiskRatio)
		assert.Equal(t, base.ProductTopN, merged.ProductTopN)
		assert.Equal(t, base.DefaultWindowDays, merged.DefaultWindowDays)
		assert.Equal(t, "UTC", merged.Timezone)
	})

	t.Run("thresholds fill on their own", func(t *testing.T) {
		merged := Options{HighRiskRatio: 0.6}.complete(base)

		assert.Equal(t, 0.6, merged.HighRiskRatio)
		assert.Equal(t, base.MediumRiskRatio, merged.MediumRiskRatio)
	})

	t.Run("weights move together", func(t *testing.T) {
		merged := Options{RevenueWeight: 1}.complete(base)

		assert.Equal(t, 1.0, merged.RevenueWeight)
		assert.Zero(t, merged.MarginWeight)
		assert.Zero(t, merged.CollectionWeight)
		assert.NoError(t, NewValidator().Options(merged))
	})
}

func TestOverrides_Apply(t *testing.T) {
	base := DefaultOptions()

	t.Run("empty overrides keep the base", func(t *testing.T) {
		assert.Equal(t, base, Overrides{}.Apply(base))
	})

	t.Run("unrelated override keeps the overdue flag", func(t *testing.T) {
		got := Overrides{ProductTopN: ptr(5)}.Apply(base)

		assert.Equal(t, 5, got.ProductTopN)
		assert.True(t, got.OverdueIsHighRisk)
	})

	t.Run("overdue flag can be turned off", func(t *testing.T) {
		assert.False(t, Overrides{OverdueIsHighRisk: ptr(false)}.Apply(base).OverdueIsHighRisk)
	})

	t.Run("one threshold keeps the other", func(t *testing.T) {
		got := Overrides{HighRiskRatio: ptr(0.6)}.Apply(base)

		assert.Equal(t, 0.6, got.HighRiskRatio)
		assert.Equal(t, base.MediumRiskRatio, got.MediumRiskRatio)
	})

	t.Run("weights are replaced as a set", func(t *testing.T) {
		got := Overrides{RevenueWeight: ptr(0.5), MarginWeight: ptr(0.5)}.Apply(base)

		assert.Equal(t, 0.5, got.RevenueWeight)
		assert.Equal(t, 0.5, got.MarginWeight)
		assert.Zero(t, got.CollectionWeight)
		assert.NoError(t, NewValidator().Options(got))
	})

	t.Run("samples can be disabled", func(t *testing.T) {
		got := Overrides{SampleSize: ptr(-1)}.Apply(base)

		assert.Equal(t, -1, got.SampleSize)
		assert.NoError(t, NewValidator().Options(got))
	})
}

func TestOptions_ScoringConfig(t *testing.T) {
	cfg := DefaultOptions().ScoringConfig()

	assert.True(t, cfg.TargetRevenue.Equal(decimal.NewFromInt(100000)))
	assert.True(t, cfg.RevenueWeight.Equal(decimal.RequireFromString("0.4")))
	assert.True(t, cfg.MarginWeight.Equal(decimal.RequireFromString("0.35")))
	assert.True(t, cfg.CollectionWeight.Equal(decimal.RequireFromString("0.25")))
	assert.True(t, cfg.HighRiskRatio.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, cfg.OverdueIsHighRisk)
	assert.NoError(t, cfg.Validate())
}

func TestOptions_Location(t *testing.T) {
	assert.Equal(t, time.UTC, Options{}.Location())
	assert.Equal(t, time.UTC, Options{Timezone: "nowhere"}.Location())
	assert.Equal(t, "Africa/Nairobi", Options{Timezone: "Africa/Nairobi"}.Location().String())
}

func TestOptions_Fingerprint(t *testing.T) {
	a := DefaultOptions()
	b := DefaultOptions()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.SampleSize = 7
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
