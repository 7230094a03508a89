package credit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pos/analytics/internal/domain/shared"
	"github.com/pos/analytics/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PaymentEvent is one recorded payment against a credit record.
// Events are append-only.
type PaymentEvent struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paid_at"`
	Method     string          `json:"method,omitempty"`
	RecordedBy string          `json:"recorded_by,omitempty"`
}

// NewPaymentEvent creates a payment event with a generated ID
func NewPaymentEvent(amount decimal.Decimal, paidAt time.Time, method, recordedBy string) PaymentEvent {
	return PaymentEvent{
		ID:         uuid.New().String(),
		Amount:     amount,
		PaidAt:     paidAt,
		Method:     method,
		RecordedBy: recordedBy,
	}
}

// Record is the payable associated with a credit transaction.
// It is a value: every operation returns a new Record.
type Record struct {
	ID            string           `json:"id"`
	TransactionID string           `json:"transaction_id"`
	Shop          shared.Reference `json:"shop"`
	Cashier       shared.Reference `json:"cashier"`
	CustomerName  string           `json:"customer_name"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	AmountPaid    decimal.Decimal  `json:"amount_paid"`
	Status        Status           `json:"status"`
	DueDate       *time.Time       `json:"due_date,omitempty"`
	Payments      []PaymentEvent   `json:"payments"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Key returns the canonical identity used for deduplication:
// the transaction ID, or the record ID when no transaction is referenced
func (r Record) Key() string {
	if r.TransactionID != "" {
		return r.TransactionID
	}
	return r.ID
}

// PaymentsTotal returns the sum of all recorded payment amounts
func (r Record) PaymentsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// EffectivePaid returns the amount paid according to the ledger: the payment
// history when one exists, the reported AmountPaid otherwise
func (r Record) EffectivePaid() decimal.Decimal {
	if len(r.Payments) > 0 {
		return valueobject.NonNegative(r.PaymentsTotal())
	}
	return valueobject.NonNegative(r.AmountPaid)
}

// BalanceDue returns max(0, TotalAmount - EffectivePaid)
func (r Record) BalanceDue() decimal.Decimal {
	return BalanceDue(r.TotalAmount, r.EffectivePaid())
}

// Recompute returns a copy whose AmountPaid and Status are derived from the
// payment history instead of trusting the reported fields
func (r Record) Recompute() Record {
	out := r
	out.Payments = append([]PaymentEvent(nil), r.Payments...)
	out.AmountPaid = r.EffectivePaid()
	out.Status = DeriveStatus(out.AmountPaid, r.BalanceDue())
	return out
}

// IsOverdue returns true if the record has an open balance past its due date
func (r Record) IsOverdue(now time.Time) bool {
	return IsOverdue(r.BalanceDue(), r.DueDate, now)
}

// DisplayStatus returns the stored status with the overdue overlay applied
func (r Record) DisplayStatus(now time.Time) Status {
	return DisplayStatus(r.EffectivePaid(), r.BalanceDue(), r.DueDate, now)
}

// Verify reports a mismatch between the payment history and the reported
// AmountPaid. The history wins; the error is a data-quality signal only.
func (r Record) Verify() error {
	if len(r.Payments) == 0 {
		return nil
	}
	diff := r.PaymentsTotal().Sub(r.AmountPaid)
	if valueobject.IsNegligible(diff) {
		return nil
	}
	return shared.NewDomainError("PAYMENT_HISTORY_MISMATCH",
		fmt.Sprintf("Payment history totals %s but amount paid is %s", r.PaymentsTotal().StringFixed(2), r.AmountPaid.StringFixed(2)))
}

// ClampEvent reports how a payment was applied. When Clamped is true the
// requested amount exceeded the open balance and only Applied was accepted.
type ClampEvent struct {
	ID            string          `json:"id"`
	CreditID      string          `json:"credit_id"`
	TransactionID string          `json:"transaction_id"`
	Requested     decimal.Decimal `json:"requested"`
	Applied       decimal.Decimal `json:"applied"`
	Excess        decimal.Decimal `json:"excess"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Clamped       bool            `json:"clamped"`
}

// ApplyPayment applies a payment event and returns the updated record.
// The amount is capped at the current balance; anything above it is rejected
// and reported through the returned ClampEvent. A settled record accepts nothing.
func (r Record) ApplyPayment(event PaymentEvent) (Record, ClampEvent, error) {
	if !event.Amount.IsPositive() {
		return r, ClampEvent{}, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	base := r.withOpeningBalance()
	before := base.BalanceDue()
	applied := decimal.Min(event.Amount, before)

	outcome := ClampEvent{
		ID:            event.ID,
		CreditID:      r.ID,
		TransactionID: r.TransactionID,
		Requested:     event.Amount,
		Applied:       applied,
		Excess:        event.Amount.Sub(applied),
		BalanceBefore: before,
		Clamped:       applied.LessThan(event.Amount),
	}

	if !applied.IsPositive() {
		outcome.BalanceAfter = before
		return r.Recompute(), outcome, nil
	}

	event.Amount = applied
	next := base
	next.Payments = append(append([]PaymentEvent(nil), base.Payments...), event)
	if event.PaidAt.After(next.UpdatedAt) {
		next.UpdatedAt = event.PaidAt
	}
	next = next.Recompute()

	outcome.BalanceAfter = next.BalanceDue()
	return next, outcome, nil
}

// withOpeningBalance converts a reported AmountPaid without history into an
// opening payment event so that the history keeps summing to AmountPaid
func (r Record) withOpeningBalance() Record {
	out := r
	out.Payments = append([]PaymentEvent(nil), r.Payments...)
	if len(out.Payments) == 0 && r.AmountPaid.IsPositive() {
		out.Payments = append(out.Payments, PaymentEvent{
			ID:         r.Key() + "-opening",
			Amount:     r.AmountPaid,
			PaidAt:     r.CreatedAt,
			RecordedBy: "opening-balance",
		})
	}
	return out
}

// View is a display snapshot of a credit record evaluated at a point in time
type View struct {
	Record         Record          `json:"record"`
	BalanceDue     decimal.Decimal `json:"balance_due"`
	DisplayStatus  Status          `json:"display_status"`
	DaysOverdue    int             `json:"days_overdue"`
	PaidPercentage decimal.Decimal `json:"paid_percentage"`
}

// NewView evaluates a record at now
func NewView(r Record, now time.Time) View {
	rec := r.Recompute()
	view := View{
		Record:        rec,
		BalanceDue:    rec.BalanceDue(),
		DisplayStatus: rec.DisplayStatus(now),
	}
	if rec.TotalAmount.IsPositive() {
		view.PaidPercentage = valueobject.ClampPercent(valueobject.Percent(rec.AmountPaid, rec.TotalAmount))
	}
	if rec.IsOverdue(now) {
		view.DaysOverdue = int(now.Sub(*rec.DueDate).Hours() / 24)
	}
	return view
}
