package ingest

import (
	"fmt"
	"strings"

	"github.com/pos/analytics/internal/domain/credit"
	"github.com/pos/analytics/internal/domain/sales"
	"github.com/pos/analytics/internal/domain/shared"
	"github.com/pos/analytics/internal/domain/shared/valueobject"
)

// paymentMethodAliases maps spellings seen in the field onto canonical methods
var paymentMethodAliases = map[string]sales.PaymentMethod{
	"cash":            sales.PaymentMethodCash,
	"mpesa":           sales.PaymentMethodBankMpesa,
	"m_pesa":          sales.PaymentMethodBankMpesa,
	"bank":            sales.PaymentMethodBankMpesa,
	"bank_mpesa":      sales.PaymentMethodBankMpesa,
	"cash_bank_mpesa": sales.PaymentMethodCashBankMpesa,
	"cash_mpesa":      sales.PaymentMethodCashBankMpesa,
	"credit":          sales.PaymentMethodCredit,
}

// Batch is the canonical output of one normalization pass
type Batch struct {
	Transactions []sales.Transaction `json:"transactions"`
	Credits      []credit.Record     `json:"credits"`
	Issues       []Issue             `json:"issues"`
	IssueCount   int                 `json:"issue_count"`
}

// Normalizer turns raw POS records into canonical domain records.
// It never fails: malformed values are coerced and reported as issues.
type Normalizer struct {
	lookup    Lookup
	maxIssues int
}

// NormalizerOption configures a Normalizer
type NormalizerOption func(*Normalizer)

// WithMaxIssues caps the issues kept in a Batch
func WithMaxIssues(limit int) NormalizerOption {
	return func(n *Normalizer) {
		n.maxIssues = limit
	}
}

// NewNormalizer creates a Normalizer resolving references through lookup
func NewNormalizer(lookup Lookup, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{lookup: lookup, maxIssues: DefaultMaxIssues}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize normalizes a whole snapshot using its own dimension records
func Normalize(s Snapshot) Batch {
	return NewNormalizer(LookupFromSnapshot(s)).Normalize(s)
}

// Normalize converts every raw record of the snapshot. Transactions sharing an
// id collapse to the last occurrence, kept at the first occurrence's position.
// Credit records sharing a transaction collapse through credit.Dedupe.
func (n *Normalizer) Normalize(s Snapshot) Batch {
	issues := NewIssueCollection(n.maxIssues)

	txs := make([]sales.Transaction, 0, len(s.Transactions))
	position := make(map[string]int, len(s.Transactions))
	for i, raw := range s.Transactions {
		tx := n.Transaction(raw, i, issues)
		if tx.ID == "" {
			txs = append(txs, tx)
			continue
		}
		if at, seen := position[tx.ID]; seen {
			issues.Add(Issue{
				Record:  RecordTransaction,
				Index:   i,
				ID:      tx.ID,
				Code:    IssueDuplicateTransaction,
				Message: fmt.Sprintf("duplicate transaction id replaces record at index %d", at),
			})
			txs[at] = tx
			continue
		}
		position[tx.ID] = len(txs)
		txs = append(txs, tx)
	}

	records := make([]credit.Record, 0, len(s.Credits))
	for i, raw := range s.Credits {
		records = append(records, n.Credit(raw, i, issues))
	}
	unique, dups := credit.Dedupe(records)
	for _, d := range dups {
		issues.Add(Issue{
			Record:  RecordCredit,
			ID:      d.DroppedID,
			Field:   "transaction",
			Code:    IssueDuplicateCredit,
			Message: fmt.Sprintf("%d credit records reference transaction %s, kept %s", d.Candidates, d.Key, d.KeptID),
			Value:   d.Key,
		})
	}
	for i, rec := range unique {
		if rec.TransactionID == "" {
			continue
		}
		if _, ok := position[rec.TransactionID]; !ok {
			issues.Add(Issue{
				Record:  RecordCredit,
				Index:   i,
				ID:      rec.ID,
				Field:   "transaction",
				Code:    IssueOrphanCredit,
				Message: "credit references a transaction not present in the batch",
				Value:   rec.TransactionID,
			})
		}
	}

	return Batch{
		Transactions: txs,
		Credits:      unique,
		Issues:       issues.Issues(),
		IssueCount:   issues.TotalCount(),
	}
}

// Transaction normalizes one raw transaction
func (n *Normalizer) Transaction(raw RawTransaction, index int, issues *IssueCollection) sales.Transaction {
	id := recordID(raw.ID, raw.MongoID)
	if id == "" {
		issues.Add(Issue{Record: RecordTransaction, Index: index, Field: "id", Code: IssueMissingIdentifier, Message: "transaction has no id"})
	}

	tx := sales.Transaction{
		ID:            id,
		Shop:          n.resolve(raw.Shop, raw.ShopID, n.lookup.Shops, UnknownShop, RecordTransaction, "shop", index, id, issues),
		Cashier:       n.resolve(raw.Cashier, raw.CashierID, n.lookup.Cashiers, UnknownCashier, RecordTransaction, "cashier", index, id, issues),
		CustomerName:  customerName(raw.CustomerName, raw.Customer),
		TotalAmount:   valueobject.NonNegative(ToDecimal(raw.TotalAmount)),
		PaymentMethod: n.paymentMethod(raw.PaymentMethod, index, id, issues),
		Profit:        ToNullDecimal(raw.Profit),
		SaleDate:      ToTime(raw.SaleDate),
		CreatedAt:     ToTime(raw.CreatedAt),
		DueDate:       ToTimePtr(raw.DueDate),

		ReportedAmountPaid:         ToNullDecimal(raw.AmountPaid),
		ReportedRecognizedRevenue:  ToNullDecimal(raw.RecognizedRevenue),
		ReportedOutstandingRevenue: ToNullDecimal(raw.OutstandingRevenue),
		ReportedCreditStatus:       strings.ToLower(ToString(raw.CreditStatus)),
	}
	tx.IsCredit = ToBool(raw.IsCreditTransaction) || tx.PaymentMethod == sales.PaymentMethodCredit

	tx.Items = make([]sales.LineItem, 0, len(raw.Items))
	for _, item := range raw.Items {
		product, ok := ResolveRef(item.Product, item.ProductID, n.lookup.Products, UnknownProduct)
		if !ok {
			if name := CanonicalName(ToString(item.ProductName)); name != "" {
				product.Name = name
			} else {
				issues.Add(unknownRef(RecordTransaction, "items.product", index, id, product.ID))
			}
		}
		tx.Items = append(tx.Items, sales.LineItem{
			Product:   product,
			Quantity:  valueobject.NonNegative(ToDecimal(item.Quantity)),
			UnitPrice: ToDecimal(firstPresent(item.UnitPrice, item.Price)),
			UnitCost:  ToDecimal(firstPresent(item.UnitCost, item.CostPrice)),
		})
	}

	if cost := firstPresent(raw.Cost, raw.TotalCost); cost != nil {
		tx.Cost = ToDecimal(cost)
	} else {
		tx.Cost = tx.LineCost()
	}
	if tx.IsCredit && tx.CustomerName == "" {
		tx.CustomerName = UnknownCustomer
	}
	return tx
}

// Credit normalizes one raw credit record. The returned record is recomputed
// from its payment history; a history that disagrees with the reported amount
// paid is reported as an issue.
func (n *Normalizer) Credit(raw RawCredit, index int, issues *IssueCollection) credit.Record {
	id := recordID(raw.ID, raw.MongoID)
	transactionID, _ := ExtractRef(raw.Transaction)
	if transactionID == "" {
		transactionID, _ = ExtractRef(raw.TransactionID)
	}
	if id == "" && transactionID == "" {
		issues.Add(Issue{Record: RecordCredit, Index: index, Field: "id", Code: IssueMissingIdentifier, Message: "credit has neither id nor transaction"})
	}

	embedded := raw.Transaction
	rec := credit.Record{
		ID:            id,
		TransactionID: transactionID,
		Shop:          n.resolve(firstPresent(raw.Shop, embeddedField(embedded, "shop")), raw.ShopID, n.lookup.Shops, UnknownShop, RecordCredit, "shop", index, id, issues),
		Cashier:       n.resolve(firstPresent(raw.Cashier, embeddedField(embedded, "cashier")), raw.CashierID, n.lookup.Cashiers, UnknownCashier, RecordCredit, "cashier", index, id, issues),
		CustomerName:  customerName(firstPresent(raw.CustomerName, embeddedField(embedded, "customerName")), raw.Customer),
		TotalAmount:   valueobject.NonNegative(ToDecimal(firstPresent(raw.TotalAmount, embeddedField(embedded, "totalAmount")))),
		AmountPaid:    ToDecimal(raw.AmountPaid),
		DueDate:       ToTimePtr(raw.DueDate),
		CreatedAt:     ToTime(raw.CreatedAt),
		UpdatedAt:     ToTime(firstPresent(raw.UpdatedAt, raw.CreatedAt)),
	}
	if rec.CustomerName == "" {
		rec.CustomerName = UnknownCustomer
	}

	for j, p := range raw.PaymentHistory {
		amount := ToDecimal(p.Amount)
		paymentID := recordID(p.ID, p.MongoID)
		if paymentID == "" {
			paymentID = fmt.Sprintf("%s-payment-%d", rec.Key(), j)
		}
		if !amount.IsPositive() {
			issues.Add(Issue{
				Record:  RecordCredit,
				Index:   index,
				ID:      id,
				Field:   fmt.Sprintf("paymentHistory[%d].amount", j),
				Code:    IssueInvalidPayment,
				Message: "non-positive payment dropped",
				Value:   amount.String(),
			})
			continue
		}
		rec.Payments = append(rec.Payments, credit.PaymentEvent{
			ID:         paymentID,
			Amount:     amount,
			PaidAt:     ToTime(firstPresent(p.PaidAt, p.Date)),
			Method:     ToString(p.PaymentMethod),
			RecordedBy: ToString(p.RecordedBy),
		})
	}

	if err := rec.Verify(); err != nil {
		issues.Add(Issue{
			Record:  RecordCredit,
			Index:   index,
			ID:      id,
			Field:   "amountPaid",
			Code:    IssuePaymentHistory,
			Message: err.Error(),
			Value:   rec.AmountPaid.String(),
		})
	}
	return rec.Recompute()
}

func (n *Normalizer) resolve(ref, fallback any, names map[string]string, sentinel, record, field string, index int, id string, issues *IssueCollection) shared.Reference {
	out, ok := ResolveRef(ref, fallback, names, sentinel)
	if !ok {
		issues.Add(unknownRef(record, field, index, id, out.ID))
	}
	return out
}

func (n *Normalizer) paymentMethod(v any, index int, id string, issues *IssueCollection) sales.PaymentMethod {
	raw := ToString(v)
	key := strings.ToLower(raw)
	key = strings.NewReplacer(" ", "_", "-", "_", "/", "_", "+", "_", "&", "_").Replace(key)
	if method, ok := paymentMethodAliases[key]; ok {
		return method
	}
	issues.Add(Issue{
		Record:  RecordTransaction,
		Index:   index,
		ID:      id,
		Field:   "paymentMethod",
		Code:    IssueUnknownPaymentMethod,
		Message: "unknown payment method, treated as cash",
		Value:   raw,
	})
	return sales.PaymentMethodCash
}

func unknownRef(record, field string, index int, id, value string) Issue {
	return Issue{
		Record:  record,
		Index:   index,
		ID:      id,
		Field:   field,
		Code:    IssueUnknownReference,
		Message: fmt.Sprintf("%s could not be resolved", field),
		Value:   value,
	}
}

func recordID(id, mongoID any) string {
	out, _ := ExtractRef(firstPresent(id, mongoID))
	return out
}

func customerName(name, customer any) string {
	if s := CanonicalName(ToString(name)); s != "" {
		return s
	}
	_, embedded := ExtractRef(customer)
	return embedded
}
