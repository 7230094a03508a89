package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/pos/analytics/internal/domain/credit"
	"github.com/pos/analytics/internal/domain/sales"
	"github.com/pos/analytics/internal/domain/shared"
	"github.com/pos/analytics/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// RiskLevel is a coarse classification of credit-default exposure
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// String returns the string representation of RiskLevel
func (r RiskLevel) String() string {
	return string(r)
}

const (
	// DefaultSampleSize is how many credit transactions each aggregate keeps as a sample
	DefaultSampleSize = 5

	// SummaryKey is the key of the single row produced by GroupingNone
	SummaryKey = "all"
	// SummaryName is the display name of the GroupingNone row
	SummaryName = "All"
	// DayKeyLayout formats day group keys
	DayKeyLayout = "2006-01-02"

	unknownKey = "unknown"
)

// CreditSample is one credit sale listed on an aggregate
type CreditSample struct {
	TransactionID string          `json:"transaction_id"`
	CreditID      string          `json:"credit_id,omitempty"`
	CustomerName  string          `json:"customer_name"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
	Status        credit.Status   `json:"status"`
	SaleDate      time.Time       `json:"sale_date"`
}

// DimensionAggregate summarizes one group key over a date window.
// ProfitMargin and CreditCollectionRate are derived from the summed components.
type DimensionAggregate struct {
	Key                  string          `json:"key"`
	Name                 string          `json:"name"`
	TotalRevenue         decimal.Decimal `json:"total_revenue"`
	TotalProfit          decimal.Decimal `json:"total_profit"`
	TotalCost            decimal.Decimal `json:"total_cost"`
	TransactionCount     int64           `json:"transaction_count"`
	ItemsSold            decimal.Decimal `json:"items_sold"`
	CreditSalesCount     int64           `json:"credit_sales_count"`
	OutstandingCredit    decimal.Decimal `json:"outstanding_credit"`
	TotalCreditGiven     decimal.Decimal `json:"total_credit_given"`
	AmountCollected      decimal.Decimal `json:"amount_collected"`
	ProfitMargin         decimal.Decimal `json:"profit_margin"`
	CreditCollectionRate decimal.Decimal `json:"credit_collection_rate"`
	HasOverdueCredit     bool            `json:"has_overdue_credit"`
	PerformanceScore     int             `json:"performance_score"`
	RiskLevel            RiskLevel       `json:"risk_level,omitempty"`
	CreditSamples        []CreditSample  `json:"credit_samples,omitempty"`
}

// HasCredit returns true if any credit was extended within the group
func (a DimensionAggregate) HasCredit() bool {
	return a.TotalCreditGiven.IsPositive()
}

// OutstandingRatio returns outstanding/given, or zero when no credit was extended
func (a DimensionAggregate) OutstandingRatio() decimal.Decimal {
	return valueobject.Ratio(a.OutstandingCredit, a.TotalCreditGiven)
}

// Derive recomputes ProfitMargin and CreditCollectionRate from the summed components
func (a DimensionAggregate) Derive() DimensionAggregate {
	a.ProfitMargin = valueobject.Percent(a.TotalProfit, a.TotalRevenue)
	a.CreditCollectionRate = valueobject.ClampPercent(valueobject.Percent(a.AmountCollected, a.TotalCreditGiven))
	return a
}

// Options tune aggregation output
type Options struct {
	// SampleSize caps CreditSamples per aggregate; zero means DefaultSampleSize, negative disables samples
	SampleSize int
	// Location is used to cut calendar days; nil means UTC
	Location *time.Location
	// Now evaluates overdue credit records; zero disables the record check
	Now time.Time
}

func (o Options) sampleSize() int {
	if o.SampleSize == 0 {
		return DefaultSampleSize
	}
	if o.SampleSize < 0 {
		return 0
	}
	return o.SampleSize
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// contribution is the share of one transaction attributed to one group
type contribution struct {
	key, name   string
	revenue     decimal.Decimal
	cost        decimal.Decimal
	profit      decimal.Decimal
	items       decimal.Decimal
	given       decimal.Decimal
	collected   decimal.Decimal
	outstanding decimal.Decimal
}

type bucket struct {
	agg    DimensionAggregate
	lastTx int
}

// Aggregate buckets the reconciled transactions falling inside the window by
// the grouping and sums their figures. Groups with no matching transactions are
// absent from the output, which is ordered by key.
//
// Credit records are deduplicated and matched to transactions by transaction ID.
// They feed the credit samples and the overdue flag.
func Aggregate(txs []sales.ReconciledTransaction, credits []credit.Record, grouping Grouping, window DateWindow, opts Options) ([]DimensionAggregate, error) {
	if !grouping.IsValid() {
		return nil, fmt.Errorf("grouping %q: %w", grouping, shared.ErrInvalidGrouping)
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	records := indexCredits(credits)
	buckets := make(map[string]*bucket)
	sampleSize := opts.sampleSize()

	for i, tx := range txs {
		if !window.Contains(tx.EffectiveDate()) {
			continue
		}
		rec, hasRecord := records[tx.ID]
		overdue := tx.Overdue || (hasRecord && !opts.Now.IsZero() && rec.IsOverdue(opts.Now))

		for _, c := range contributions(tx, grouping, opts.location()) {
			b, ok := buckets[c.key]
			if !ok {
				b = &bucket{agg: newAggregate(c.key, c.name), lastTx: -1}
				buckets[c.key] = b
			}
			a := &b.agg
			a.TotalRevenue = a.TotalRevenue.Add(c.revenue)
			a.TotalCost = a.TotalCost.Add(c.cost)
			a.TotalProfit = a.TotalProfit.Add(c.profit)
			a.ItemsSold = a.ItemsSold.Add(c.items)

			firstLine := b.lastTx != i
			b.lastTx = i
			if firstLine {
				a.TransactionCount++
			}

			if !tx.IsCredit {
				continue
			}
			a.TotalCreditGiven = a.TotalCreditGiven.Add(c.given)
			a.AmountCollected = a.AmountCollected.Add(c.collected)
			a.OutstandingCredit = a.OutstandingCredit.Add(c.outstanding)
			if firstLine {
				a.CreditSalesCount++
				if overdue {
					a.HasOverdueCredit = true
				}
				if len(a.CreditSamples) < sampleSize {
					a.CreditSamples = append(a.CreditSamples, newCreditSample(tx, rec, hasRecord))
				}
			}
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]DimensionAggregate, 0, len(keys))
	for _, k := range keys {
		out = append(out, buckets[k].agg.Derive())
	}
	return out, nil
}

// Summarize returns the single dashboard total row for the window.
// It equals the sum of any partition grouping over the same window.
func Summarize(txs []sales.ReconciledTransaction, credits []credit.Record, window DateWindow, opts Options) (DimensionAggregate, error) {
	aggs, err := Aggregate(txs, credits, GroupingNone, window, opts)
	if err != nil {
		return DimensionAggregate{}, err
	}
	if len(aggs) == 0 {
		return newAggregate(SummaryKey, SummaryName).Derive(), nil
	}
	return aggs[0], nil
}

func newAggregate(key, name string) DimensionAggregate {
	return DimensionAggregate{
		Key:               key,
		Name:              name,
		TotalRevenue:      decimal.Zero,
		TotalProfit:       decimal.Zero,
		TotalCost:         decimal.Zero,
		ItemsSold:         decimal.Zero,
		OutstandingCredit: decimal.Zero,
		TotalCreditGiven:  decimal.Zero,
		AmountCollected:   decimal.Zero,
	}
}

func contributions(tx sales.ReconciledTransaction, grouping Grouping, loc *time.Location) []contribution {
	whole := contribution{
		revenue:     tx.TotalAmount,
		cost:        tx.Cost,
		profit:      tx.GrossProfit(),
		items:       tx.ItemsSold(),
		given:       tx.TotalAmount,
		collected:   tx.RecognizedRevenue,
		outstanding: tx.OutstandingRevenue,
	}

	switch grouping {
	case GroupingCashier:
		whole.key, whole.name = refKey(tx.Cashier)
	case GroupingShop:
		whole.key, whole.name = refKey(tx.Shop)
	case GroupingDay:
		whole.key = tx.EffectiveDate().In(loc).Format(DayKeyLayout)
		whole.name = whole.key
	case GroupingNone:
		whole.key, whole.name = SummaryKey, SummaryName
	case GroupingProduct:
		return lineContributions(tx)
	}
	return []contribution{whole}
}

// lineContributions apportions a transaction to its line items. The collected
// share of each line follows the transaction's recognized/total ratio.
func lineContributions(tx sales.ReconciledTransaction) []contribution {
	if len(tx.Items) == 0 {
		return nil
	}
	collectedRatio := valueobject.Ratio(tx.RecognizedRevenue, tx.TotalAmount)

	out := make([]contribution, 0, len(tx.Items))
	for _, item := range tx.Items {
		key, name := refKey(item.Product)
		revenue := item.Revenue()
		cost := item.Cost()
		collected := valueobject.RoundMoney(revenue.Mul(collectedRatio))
		out = append(out, contribution{
			key:         key,
			name:        name,
			revenue:     revenue,
			cost:        cost,
			profit:      revenue.Sub(cost),
			items:       item.Quantity,
			given:       revenue,
			collected:   collected,
			outstanding: revenue.Sub(collected),
		})
	}
	return out
}

func refKey(ref shared.Reference) (string, string) {
	if ref.ID == "" {
		return unknownKey, ref.Name
	}
	return ref.ID, ref.Name
}

func indexCredits(credits []credit.Record) map[string]credit.Record {
	unique, _ := credit.Dedupe(credits)
	index := make(map[string]credit.Record, len(unique))
	for _, rec := range unique {
		if rec.TransactionID != "" {
			index[rec.TransactionID] = rec
		}
	}
	return index
}

func newCreditSample(tx sales.ReconciledTransaction, rec credit.Record, hasRecord bool) CreditSample {
	sample := CreditSample{
		TransactionID: tx.ID,
		CreditID:      tx.CreditID,
		CustomerName:  tx.CustomerName,
		TotalAmount:   tx.TotalAmount,
		AmountPaid:    tx.RecognizedRevenue,
		BalanceDue:    tx.OutstandingRevenue,
		Status:        tx.DisplayStatus,
		SaleDate:      tx.EffectiveDate(),
	}
	if hasRecord && sample.CreditID == "" {
		sample.CreditID = rec.ID
	}
	return sample
}
