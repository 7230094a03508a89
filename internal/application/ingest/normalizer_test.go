package ingest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pos/analytics/internal/domain/credit"
	"github.com/pos/analytics/internal/domain/sales"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createTestLookup() Lookup {
	return NewLookup(
		[]DimensionRecord{{MongoID: "shop-1", Name: "Main Street"}, {ID: "shop-2", Name: "Harbour Road"}},
		[]DimensionRecord{{MongoID: "cashier-1", Username: "amina"}},
		[]DimensionRecord{{MongoID: "prod-1", Name: "Sugar 1kg"}},
	)
}

func findIssue(issues []Issue, code string) (Issue, bool) {
	for _, i := range issues {
		if i.Code == code {
			return i, true
		}
	}
	return Issue{}, false
}

func TestCanonicalName(t *testing.T) {
	assert.Equal(t, "Main Street", CanonicalName("  Main   Street "))
	// "e" + combining acute composes to the precomposed form
	assert.Equal(t, "Caf\u00e9", CanonicalName("Cafe\u0301"))
}

func TestResolveRef(t *testing.T) {
	names := map[string]string{"shop-1": "Main Street"}

	tests := []struct {
		name         string
		ref          any
		fallback     any
		wantID       string
		wantName     string
		wantResolved bool
	}{
		{"bare id", "shop-1", nil, "shop-1", "Main Street", true},
		{"embedded id", map[string]any{"_id": "shop-1", "name": "Old Name"}, nil, "shop-1", "Main Street", true},
		{"embedded name when lookup misses", map[string]any{"_id": "shop-9", "name": "Pop-up"}, nil, "shop-9", "Pop-up", true},
		{"object id wrapper", map[string]any{"$oid": "shop-1"}, nil, "shop-1", "Main Street", true},
		{"fallback id", nil, "shop-1", "shop-1", "Main Street", true},
		{"unknown id", "shop-404", nil, "shop-404", UnknownShop, false},
		{"missing", nil, nil, "", UnknownShop, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveRef(tt.ref, tt.fallback, names, UnknownShop)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.wantName, got.Name)
			assert.Equal(t, tt.wantResolved, ok)
		})
	}
}

func TestNormalizer_Transaction(t *testing.T) {
	n := NewNormalizer(createTestLookup())
	issues := NewIssueCollection(0)

	tx := n.Transaction(RawTransaction{
		MongoID:       "TX-1",
		Shop:          map[string]any{"_id": "shop-1"},
		Cashier:       "cashier-1",
		TotalAmount:   "1000",
		PaymentMethod: "Credit",
		AmountPaid:    400.0,
		SaleDate:      "2024-06-10T08:00:00Z",
		Items: []RawLineItem{
			{Product: "prod-1", Quantity: "4", Price: 250.0, CostPrice: "180"},
		},
	}, 0, issues)

	assert.Equal(t, "TX-1", tx.ID)
	assert.Equal(t, "Main Street", tx.Shop.Name)
	assert.Equal(t, "amina", tx.Cashier.Name)
	assert.True(t, tx.TotalAmount.Equal(dec("1000")))
	assert.Equal(t, sales.PaymentMethodCredit, tx.PaymentMethod)
	assert.True(t, tx.IsCredit)
	assert.Equal(t, UnknownCustomer, tx.CustomerName)
	assert.True(t, tx.ReportedAmountPaid.Valid)
	assert.False(t, tx.ReportedRecognizedRevenue.Valid)
	require.Len(t, tx.Items, 1)
	assert.Equal(t, "Sugar 1kg", tx.Items[0].Product.Name)
	assert.True(t, tx.Cost.Equal(dec("720")), "cost falls back to line costs")
	assert.Zero(t, issues.TotalCount())
}

func TestNormalizer_TransactionMalformed(t *testing.T) {
	n := NewNormalizer(createTestLookup())
	issues := NewIssueCollection(0)

	tx := n.Transaction(RawTransaction{
		ID:                  "TX-2",
		Shop:                "shop-404",
		TotalAmount:         "not a number",
		PaymentMethod:       "bitcoin",
		Cost:                nil,
		TotalCost:           "15",
		IsCreditTransaction: "true",
		Items: []RawLineItem{
			{ProductID: "prod-404", ProductName: "Loose Tea", Quantity: -2},
			{ProductID: "prod-405"},
		},
	}, 3, issues)

	assert.True(t, tx.TotalAmount.IsZero())
	assert.Equal(t, UnknownShop, tx.Shop.Name)
	assert.Equal(t, UnknownCashier, tx.Cashier.Name)
	assert.Equal(t, sales.PaymentMethodCash, tx.PaymentMethod)
	assert.True(t, tx.IsCredit, "explicit flag marks a credit sale")
	assert.True(t, tx.Cost.Equal(dec("15")))
	assert.Equal(t, "Loose Tea", tx.Items[0].Product.Name)
	assert.True(t, tx.Items[0].Quantity.IsZero())
	assert.Equal(t, UnknownProduct, tx.Items[1].Product.Name)

	unknown, ok := findIssue(issues.Issues(), IssueUnknownReference)
	require.True(t, ok)
	assert.Equal(t, 3, unknown.Index)
	_, ok = findIssue(issues.Issues(), IssueUnknownPaymentMethod)
	assert.True(t, ok)
}

func TestNormalizer_Credit(t *testing.T) {
	n := NewNormalizer(createTestLookup())
	issues := NewIssueCollection(0)

	rec := n.Credit(RawCredit{
		MongoID:      "CR-1",
		Transaction:  map[string]any{"_id": "TX-1", "shop": "shop-1", "totalAmount": 1000.0},
		Cashier:      "cashier-1",
		CustomerName: "Wanjiru",
		AmountPaid:   "900",
		DueDate:      "2024-07-01",
		PaymentHistory: []RawPayment{
			{Amount: "250", PaidAt: "2024-06-11T10:00:00Z"},
			{Amount: 0.0},
			{Amount: "150", Date: "2024-06-12"},
		},
	}, 0, issues)

	assert.Equal(t, "CR-1", rec.ID)
	assert.Equal(t, "TX-1", rec.TransactionID)
	assert.Equal(t, "Main Street", rec.Shop.Name)
	assert.True(t, rec.TotalAmount.Equal(dec("1000")))
	require.Len(t, rec.Payments, 2, "non-positive payment is dropped")
	assert.Equal(t, "TX-1-payment-0", rec.Payments[0].ID)
	assert.True(t, rec.AmountPaid.Equal(dec("400")), "history is the source of truth")
	assert.Equal(t, credit.StatusPartiallyPaid, rec.Status)
	require.NotNil(t, rec.DueDate)

	_, ok := findIssue(issues.Issues(), IssueInvalidPayment)
	assert.True(t, ok)
	mismatch, ok := findIssue(issues.Issues(), IssuePaymentHistory)
	require.True(t, ok)
	assert.Equal(t, "900", mismatch.Value)
}

func TestNormalize_DuplicateCreditReferences(t *testing.T) {
	snapshot := Snapshot{
		Transactions: []RawTransaction{
			{ID: "TX-1", Shop: "shop-1", Cashier: "cashier-1", TotalAmount: 1000.0, PaymentMethod: "credit", AmountPaid: 0.0},
		},
		Credits: []RawCredit{
			{ID: "CR-A", Transaction: "TX-1", TotalAmount: 1000.0},
			{ID: "CR-B", Transaction: map[string]any{"_id": "TX-1"}, TotalAmount: 1000.0, AmountPaid: 300.0},
		},
		Shops:    []DimensionRecord{{ID: "shop-1", Name: "Main Street"}},
		Cashiers: []DimensionRecord{{ID: "cashier-1", Name: "Amina"}},
	}

	batch := Normalize(snapshot)

	require.Len(t, batch.Credits, 1)
	assert.Equal(t, "TX-1", batch.Credits[0].TransactionID)
	assert.Equal(t, "CR-B", batch.Credits[0].ID)
	dup, ok := findIssue(batch.Issues, IssueDuplicateCredit)
	require.True(t, ok)
	assert.Equal(t, "CR-A", dup.ID)
}

func TestNormalize_DuplicateTransactions(t *testing.T) {
	snapshot := Snapshot{
		Transactions: []RawTransaction{
			{ID: "TX-1", TotalAmount: 100.0, PaymentMethod: "cash"},
			{ID: "TX-2", TotalAmount: 200.0, PaymentMethod: "cash"},
			{ID: "TX-1", TotalAmount: 150.0, PaymentMethod: "cash"},
		},
	}

	batch := Normalize(snapshot)

	require.Len(t, batch.Transactions, 2)
	assert.Equal(t, "TX-1", batch.Transactions[0].ID)
	assert.True(t, batch.Transactions[0].TotalAmount.Equal(dec("150")), "last occurrence wins")
	_, ok := findIssue(batch.Issues, IssueDuplicateTransaction)
	assert.True(t, ok)
}

func TestNormalize_OrphanCredit(t *testing.T) {
	batch := Normalize(Snapshot{
		Credits: []RawCredit{{ID: "CR-1", TransactionID: "TX-GONE", TotalAmount: 50.0}},
	})

	require.Len(t, batch.Credits, 1)
	_, ok := findIssue(batch.Issues, IssueOrphanCredit)
	assert.True(t, ok)
}

func TestNormalize_IssueLimit(t *testing.T) {
	var raws []RawTransaction
	for i := 0; i < 10; i++ {
		raws = append(raws, RawTransaction{PaymentMethod: "cash"})
	}

	batch := NewNormalizer(Lookup{}, WithMaxIssues(5)).Normalize(Snapshot{Transactions: raws})

	assert.Len(t, batch.Issues, 5)
	assert.Greater(t, batch.IssueCount, 5)
	assert.Len(t, batch.Transactions, 10, "records without id are kept")
}

func TestNormalize_FromJSON(t *testing.T) {
	payload := `{
		"transactions": [
			{"_id": {"$oid": "TX-1"}, "shop": {"_id": "shop-1", "name": "Main Street"}, "cashier": "cashier-1",
			 "totalAmount": "1000", "paymentMethod": "credit", "amountPaid": 400,
			 "saleDate": {"$date": "2024-06-10T08:00:00Z"}}
		],
		"credits": [],
		"shops": [],
		"cashiers": [{"_id": "cashier-1", "username": "amina"}],
		"products": []
	}`

	var snapshot Snapshot
	decoder := json.NewDecoder(strings.NewReader(payload))
	decoder.UseNumber()
	require.NoError(t, decoder.Decode(&snapshot))

	batch := Normalize(snapshot)

	require.Len(t, batch.Transactions, 1)
	tx := batch.Transactions[0]
	assert.Equal(t, "TX-1", tx.ID)
	assert.Equal(t, "Main Street", tx.Shop.Name)
	assert.Equal(t, "amina", tx.Cashier.Name)
	assert.True(t, tx.ReportedAmountPaid.Decimal.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, 2024, tx.SaleDate.Year())
}
