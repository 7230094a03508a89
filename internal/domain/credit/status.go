package credit

import (
	"time"

	"github.com/pos/analytics/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Status represents the stored lifecycle state of a credit sale
type Status string

const (
	StatusPending       Status = "pending"        // Nothing paid yet, balance > 0
	StatusPartiallyPaid Status = "partially_paid" // Some payment received, balance > 0
	StatusPaid          Status = "paid"           // Balance settled
)

// StatusOverdue is a display overlay on top of pending/partially_paid.
// It is derived from the due date at evaluation time and never stored.
const StatusOverdue Status = "overdue"

// IsValid checks if the status is a valid stored Status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPartiallyPaid, StatusPaid:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusPaid
}

// CanApplyPayment returns true if payments can be applied in this status
func (s Status) CanApplyPayment() bool {
	return s == StatusPending || s == StatusPartiallyPaid
}

// ParseStatus maps a reported status string onto a stored Status.
// "overdue" and unknown values are not stored states and yield false.
func ParseStatus(s string) (Status, bool) {
	status := Status(s)
	if !status.IsValid() {
		return "", false
	}
	return status, true
}

// DeriveStatus computes the stored status from the amount paid and balance due
func DeriveStatus(amountPaid, balanceDue decimal.Decimal) Status {
	if !balanceDue.IsPositive() {
		return StatusPaid
	}
	if amountPaid.IsPositive() {
		return StatusPartiallyPaid
	}
	return StatusPending
}

// IsOverdue returns true if a positive balance is past its due date at now
func IsOverdue(balanceDue decimal.Decimal, dueDate *time.Time, now time.Time) bool {
	if dueDate == nil || !balanceDue.IsPositive() {
		return false
	}
	return dueDate.Before(now)
}

// DisplayStatus returns the status shown to operators: the stored status,
// or overdue when an open balance is past due
func DisplayStatus(amountPaid, balanceDue decimal.Decimal, dueDate *time.Time, now time.Time) Status {
	if IsOverdue(balanceDue, dueDate, now) {
		return StatusOverdue
	}
	return DeriveStatus(amountPaid, balanceDue)
}

// BalanceDue returns max(0, total - paid), treating sub-cent remainders as settled
func BalanceDue(totalAmount, amountPaid decimal.Decimal) decimal.Decimal {
	balance := totalAmount.Sub(amountPaid)
	if valueobject.IsNegligible(balance) || balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}
