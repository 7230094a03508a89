package sales

import (
	"time"

	"github.com/pos/analytics/internal/domain/credit"
	"github.com/pos/analytics/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ReconciledTransaction is a transaction with its cash-basis figures derived.
// For every credit transaction RecognizedRevenue + OutstandingRevenue == TotalAmount.
type ReconciledTransaction struct {
	Transaction
	AmountPaid         decimal.Decimal `json:"amount_paid"`
	RecognizedRevenue  decimal.Decimal `json:"recognized_revenue"`
	OutstandingRevenue decimal.Decimal `json:"outstanding_revenue"`
	CollectionRate     decimal.Decimal `json:"collection_rate"`
	CreditStatus       credit.Status   `json:"credit_status,omitempty"`
	DisplayStatus      credit.Status   `json:"display_status,omitempty"`
	Overdue            bool            `json:"overdue"`
	CreditID           string          `json:"credit_id,omitempty"`
	// Stale is set when the reported derived fields disagree with the recomputation
	Stale bool `json:"stale"`
}

// Reconcile computes recognized and outstanding revenue for one transaction.
//
// Non-credit sales are recognized in full. For credit sales the amount paid
// comes from the attached credit record's payment history when rec is given,
// otherwise from the reported AmountPaid, then the reported RecognizedRevenue.
// AmountPaid is authoritative when both are reported.
func Reconcile(tx Transaction, rec *credit.Record, now time.Time) ReconciledTransaction {
	out := ReconciledTransaction{Transaction: tx}

	if !tx.IsCredit {
		out.AmountPaid = tx.TotalAmount
		out.RecognizedRevenue = tx.TotalAmount
		out.OutstandingRevenue = decimal.Zero
		out.CollectionRate = CollectionRate(tx.TotalAmount, tx.TotalAmount)
		return out
	}

	paid := reportedPaid(tx)
	dueDate := tx.DueDate
	if rec != nil {
		paid = rec.EffectivePaid()
		out.CreditID = rec.ID
		if dueDate == nil {
			dueDate = rec.DueDate
		}
	}
	paid = valueobject.NonNegative(paid)

	recognized, outstanding := SplitRevenue(tx.TotalAmount, paid)
	out.AmountPaid = paid
	out.RecognizedRevenue = recognized
	out.OutstandingRevenue = outstanding
	out.CollectionRate = CollectionRate(recognized, tx.TotalAmount)
	out.CreditStatus = credit.DeriveStatus(recognized, outstanding)
	out.Overdue = credit.IsOverdue(outstanding, dueDate, now)
	out.DisplayStatus = credit.DisplayStatus(recognized, outstanding, dueDate, now)
	out.Transaction.DueDate = dueDate
	out.Stale = isStale(tx, out)

	return out
}

// ReconcileAll reconciles every transaction against its credit record.
// Credit records are deduplicated first so each transaction sees exactly one.
func ReconcileAll(txs []Transaction, credits []credit.Record, now time.Time) []ReconciledTransaction {
	unique, _ := credit.Dedupe(credits)
	byTransaction := make(map[string]credit.Record, len(unique))
	for _, rec := range unique {
		if rec.TransactionID != "" {
			byTransaction[rec.TransactionID] = rec
		}
	}

	out := make([]ReconciledTransaction, len(txs))
	for i, tx := range txs {
		var rec *credit.Record
		if found, ok := byTransaction[tx.ID]; ok && tx.ID != "" {
			rec = &found
		}
		out[i] = Reconcile(tx, rec, now)
	}
	return out
}

// SplitRevenue divides a total into recognized and outstanding parts given
// the amount paid. Remainders below one cent, and overpayments, count as
// fully collected.
func SplitRevenue(total, paid decimal.Decimal) (recognized, outstanding decimal.Decimal) {
	remaining := total.Sub(paid)
	if remaining.IsNegative() || valueobject.IsNegligible(remaining) {
		return total, decimal.Zero
	}
	return paid, remaining
}

// CollectionRate returns recognized/total*100 clamped to [0, 100]
func CollectionRate(recognized, total decimal.Decimal) decimal.Decimal {
	return valueobject.ClampPercent(valueobject.Percent(recognized, total))
}

func reportedPaid(tx Transaction) decimal.Decimal {
	if tx.ReportedAmountPaid.Valid {
		return tx.ReportedAmountPaid.Decimal
	}
	if tx.ReportedRecognizedRevenue.Valid {
		return tx.ReportedRecognizedRevenue.Decimal
	}
	return decimal.Zero
}

func isStale(tx Transaction, out ReconciledTransaction) bool {
	differs := func(reported decimal.NullDecimal, derived decimal.Decimal) bool {
		return reported.Valid && !valueobject.IsNegligible(reported.Decimal.Sub(derived))
	}
	if differs(tx.ReportedAmountPaid, out.AmountPaid) {
		return true
	}
	if differs(tx.ReportedRecognizedRevenue, out.RecognizedRevenue) {
		return true
	}
	if differs(tx.ReportedOutstandingRevenue, out.OutstandingRevenue) {
		return true
	}
	if status, ok := credit.ParseStatus(tx.ReportedCreditStatus); ok && status != out.CreditStatus {
		return true
	}
	return false
}
