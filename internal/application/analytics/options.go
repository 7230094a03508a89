package analytics

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pos/analytics/internal/domain/performance"
	"github.com/pos/analytics/internal/domain/report"
	"github.com/pos/analytics/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// weightTolerance is how far the three weights may sum away from 1
const weightTolerance = 0.001

// Options is the resolved analytics configuration of a call.
// SampleSize -1 disables credit samples.
type Options struct {
	TargetRevenue     float64 `json:"target_revenue" validate:"gt=0"`
	RevenueWeight     float64 `json:"revenue_weight" validate:"gte=0,lte=1"`
	MarginWeight      float64 `json:"margin_weight" validate:"gte=0,lte=1"`
	CollectionWeight  float64 `json:"collection_weight" validate:"gte=0,lte=1"`
	HighRiskRatio     float64 `json:"high_risk_ratio" validate:"gte=0,lte=1,gtefield=MediumRiskRatio"`
	MediumRiskRatio   float64 `json:"medium_risk_ratio" validate:"gte=0,lte=1"`
	OverdueIsHighRisk bool    `json:"overdue_is_high_risk"`
	ProductTopN       int     `json:"product_top_n" validate:"gte=1,lte=1000"`
	DefaultWindowDays int     `json:"default_window_days" validate:"gte=1,lte=3660"`
	SampleSize        int     `json:"sample_size" validate:"gte=-1,lte=100"`
	Timezone          string  `json:"timezone" validate:"omitempty,timezone"`
}

// DefaultOptions returns the stock configuration
func DefaultOptions() Options {
	return Options{
		TargetRevenue:     100000,
		RevenueWeight:     0.4,
		MarginWeight:      0.35,
		CollectionWeight:  0.25,
		HighRiskRatio:     0.5,
		MediumRiskRatio:   0.2,
		OverdueIsHighRisk: true,
		ProductTopN:       report.DefaultProductTopN,
		DefaultWindowDays: 30,
		SampleSize:        report.DefaultSampleSize,
		Timezone:          "UTC",
	}
}

// complete returns o with its zero fields taken from base. Each field is
// filled on its own; OverdueIsHighRisk is taken from o as given.
func (o Options) complete(base Options) Options {
	out := o
	if out.TargetRevenue == 0 {
		out.TargetRevenue = base.TargetRevenue
	}
	if out.RevenueWeight == 0 && out.MarginWeight == 0 && out.CollectionWeight == 0 {
		out.RevenueWeight, out.MarginWeight, out.CollectionWeight = base.RevenueWeight, base.MarginWeight, base.CollectionWeight
	}
	if out.HighRiskRatio == 0 {
		out.HighRiskRatio = base.HighRiskRatio
	}
	if out.MediumRiskRatio == 0 {
		out.MediumRiskRatio = base.MediumRiskRatio
	}
	if out.ProductTopN == 0 {
		out.ProductTopN = base.ProductTopN
	}
	if out.DefaultWindowDays == 0 {
		out.DefaultWindowDays = base.DefaultWindowDays
	}
	if out.SampleSize == 0 {
		out.SampleSize = base.SampleSize
	}
	if out.Timezone == "" {
		out.Timezone = base.Timezone
	}
	return out
}

// Overrides changes selected options for one call. Nil fields keep the
// service defaults. Weights are taken as a set: when any weight is given,
// the missing ones are zero.
type Overrides struct {
	TargetRevenue     *float64 `json:"target_revenue,omitempty"`
	RevenueWeight     *float64 `json:"revenue_weight,omitempty"`
	MarginWeight      *float64 `json:"margin_weight,omitempty"`
	CollectionWeight  *float64 `json:"collection_weight,omitempty"`
	HighRiskRatio     *float64 `json:"high_risk_ratio,omitempty"`
	MediumRiskRatio   *float64 `json:"medium_risk_ratio,omitempty"`
	OverdueIsHighRisk *bool    `json:"overdue_is_high_risk,omitempty"`
	ProductTopN       *int     `json:"product_top_n,omitempty"`
	DefaultWindowDays *int     `json:"default_window_days,omitempty"`
	SampleSize        *int     `json:"sample_size,omitempty"`
	Timezone          *string  `json:"timezone,omitempty"`
}

// Apply returns base with the given overrides set
func (o Overrides) Apply(base Options) Options {
	out := base
	if o.RevenueWeight != nil || o.MarginWeight != nil || o.CollectionWeight != nil {
		out.RevenueWeight = valueOr(o.RevenueWeight, 0)
		out.MarginWeight = valueOr(o.MarginWeight, 0)
		out.CollectionWeight = valueOr(o.CollectionWeight, 0)
	}
	out.TargetRevenue = valueOr(o.TargetRevenue, out.TargetRevenue)
	out.HighRiskRatio = valueOr(o.HighRiskRatio, out.HighRiskRatio)
	out.MediumRiskRatio = valueOr(o.MediumRiskRatio, out.MediumRiskRatio)
	out.OverdueIsHighRisk = valueOr(o.OverdueIsHighRisk, out.OverdueIsHighRisk)
	out.ProductTopN = valueOr(o.ProductTopN, out.ProductTopN)
	out.DefaultWindowDays = valueOr(o.DefaultWindowDays, out.DefaultWindowDays)
	out.SampleSize = valueOr(o.SampleSize, out.SampleSize)
	out.Timezone = valueOr(o.Timezone, out.Timezone)
	return out
}

func valueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}

// ScoringConfig converts the options to the scoring configuration
func (o Options) ScoringConfig() performance.Config {
	return performance.Config{
		TargetRevenue:     decimal.NewFromFloat(o.TargetRevenue),
		RevenueWeight:     decimal.NewFromFloat(o.RevenueWeight),
		MarginWeight:      decimal.NewFromFloat(o.MarginWeight),
		CollectionWeight:  decimal.NewFromFloat(o.CollectionWeight),
		HighRiskRatio:     decimal.NewFromFloat(o.HighRiskRatio),
		MediumRiskRatio:   decimal.NewFromFloat(o.MediumRiskRatio),
		OverdueIsHighRisk: o.OverdueIsHighRisk,
	}
}

// Location returns the configured time zone, UTC when unset or unknown
func (o Options) Location() *time.Location {
	if o.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Fingerprint renders every option in a fixed order for use in cache keys
func (o Options) Fingerprint() string {
	return fmt.Sprintf("t=%g|w=%g,%g,%g|r=%g,%g,%t|n=%d|d=%d|s=%d|z=%s",
		o.TargetRevenue,
		o.RevenueWeight, o.MarginWeight, o.CollectionWeight,
		o.HighRiskRatio, o.MediumRiskRatio, o.OverdueIsHighRisk,
		o.ProductTopN, o.DefaultWindowDays, o.SampleSize, o.Timezone)
}

// Validator validates options and queries
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator reporting fields by their JSON names
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Options validates o. Failures are INVALID_OPTIONS domain errors.
func (v *Validator) Options(o Options) error {
	if err := v.validate.Struct(o); err != nil {
		return invalidOptions(formatValidationErrors(err))
	}
	sum := o.RevenueWeight + o.MarginWeight + o.CollectionWeight
	if math.Abs(sum-1) > weightTolerance {
		return invalidOptions(fmt.Sprintf("weights must sum to 1, got %g", sum))
	}
	return nil
}

// Query validates the query fields that do not depend on defaults
func (v *Validator) Query(q Query) error {
	if err := v.validate.Struct(q); err != nil {
		return invalidOptions(formatValidationErrors(err))
	}
	return nil
}

func invalidOptions(msg string) error {
	return fmt.Errorf("%s: %w", msg, shared.ErrInvalidOptions)
}

func formatValidationErrors(err error) string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	details := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		details = append(details, e.Field()+": "+validationMessage(e))
	}
	return strings.Join(details, "; ")
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be at least " + e.Param()
	case "lte":
		return "must be at most " + e.Param()
	case "gtefield":
		return "must not be below " + e.Param()
	case "timezone":
		return "unknown time zone"
	default:
		return "failed on " + e.Tag()
	}
}
