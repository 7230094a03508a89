package sales

import (
	"time"

	"github.com/pos/analytics/internal/domain/credit"
	"github.com/pos/analytics/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a sale was settled at the till
type PaymentMethod string

const (
	PaymentMethodCash          PaymentMethod = "cash"
	PaymentMethodBankMpesa     PaymentMethod = "bank_mpesa"
	PaymentMethodCashBankMpesa PaymentMethod = "cash_bank_mpesa"
	PaymentMethodCredit        PaymentMethod = "credit"
)

// IsValid checks if the payment method is one of the supported methods
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankMpesa, PaymentMethodCashBankMpesa, PaymentMethodCredit:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// LineItem is one product line of a sale
type LineItem struct {
	Product   shared.Reference `json:"product"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	UnitCost  decimal.Decimal  `json:"unit_cost"`
}

// Revenue returns quantity * unit price
func (li LineItem) Revenue() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

// Cost returns quantity * unit cost
func (li LineItem) Cost() decimal.Decimal {
	return li.Quantity.Mul(li.UnitCost)
}

// Transaction is the canonical shape of one completed or credit sale.
//
// The Reported* fields carry what the source system stored for credit sales.
// They are inputs to reconciliation, never read as derived truth.
type Transaction struct {
	ID            string           `json:"id"`
	Shop          shared.Reference `json:"shop"`
	Cashier       shared.Reference `json:"cashier"`
	CustomerName  string           `json:"customer_name,omitempty"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	PaymentMethod PaymentMethod    `json:"payment_method"`
	Items         []LineItem       `json:"items"`
	Cost          decimal.Decimal  `json:"cost"`
	// Profit is set only when the source supplied it separately
	Profit    decimal.NullDecimal `json:"profit"`
	SaleDate  time.Time           `json:"sale_date"`
	CreatedAt time.Time           `json:"created_at"`
	IsCredit  bool                `json:"is_credit_transaction"`

	ReportedAmountPaid         decimal.NullDecimal `json:"reported_amount_paid"`
	ReportedRecognizedRevenue  decimal.NullDecimal `json:"reported_recognized_revenue"`
	ReportedOutstandingRevenue decimal.NullDecimal `json:"reported_outstanding_revenue"`
	ReportedCreditStatus       string              `json:"reported_credit_status,omitempty"`
	DueDate                    *time.Time          `json:"due_date,omitempty"`
}

// EffectiveDate returns the sale date, falling back to the creation time
func (t Transaction) EffectiveDate() time.Time {
	if !t.SaleDate.IsZero() {
		return t.SaleDate
	}
	return t.CreatedAt
}

// ItemsSold returns the sum of line item quantities
func (t Transaction) ItemsSold() decimal.Decimal {
	total := decimal.Zero
	for _, item := range t.Items {
		total = total.Add(item.Quantity)
	}
	return total
}

// LineCost returns the sum of line item costs
func (t Transaction) LineCost() decimal.Decimal {
	total := decimal.Zero
	for _, item := range t.Items {
		total = total.Add(item.Cost())
	}
	return total
}

// GrossProfit returns the supplied profit, or TotalAmount - Cost
func (t Transaction) GrossProfit() decimal.Decimal {
	if t.Profit.Valid {
		return t.Profit.Decimal
	}
	return t.TotalAmount.Sub(t.Cost)
}

// CreditRecord builds the payable implied by a credit transaction when the
// source has no separate credit record for it
func (t Transaction) CreditRecord() credit.Record {
	paid := decimal.Zero
	switch {
	case t.ReportedAmountPaid.Valid:
		paid = t.ReportedAmountPaid.Decimal
	case t.ReportedRecognizedRevenue.Valid:
		paid = t.ReportedRecognizedRevenue.Decimal
	}

	rec := credit.Record{
		ID:            t.ID,
		TransactionID: t.ID,
		Shop:          t.Shop,
		Cashier:       t.Cashier,
		CustomerName:  t.CustomerName,
		TotalAmount:   t.TotalAmount,
		AmountPaid:    paid,
		DueDate:       t.DueDate,
		CreatedAt:     t.EffectiveDate(),
		UpdatedAt:     t.EffectiveDate(),
	}
	return rec.Recompute()
}
