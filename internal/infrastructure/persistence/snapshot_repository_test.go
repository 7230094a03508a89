package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/pos/analytics/internal/application/analytics"
	"github.com/pos/analytics/internal/application/ingest"
	"github.com/pos/analytics/internal/domain/report"
	"github.com/pos/analytics/internal/infrastructure/config"
	"github.com/pos/analytics/internal/infrastructure/logger"
	"github.com/pos/analytics/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func seedTestData(t *testing.T, db *gorm.DB) {
	t.Helper()

	shops := []models.ShopModel{
		{DimensionModel: models.DimensionModel{ID: "shop-1", Name: "Main Street"}},
		{DimensionModel: models.DimensionModel{ID: "shop-2", Name: "Harbour Road"}},
	}
	cashiers := []models.CashierModel{
		{DimensionModel: models.DimensionModel{ID: "cashier-1"}, Username: "amina"},
		{DimensionModel: models.DimensionModel{ID: "cashier-2"}, Username: "brian"},
	}
	products := []models.ProductModel{
		{DimensionModel: models.DimensionModel{ID: "prod-1", Name: "Sugar 1kg"}},
		{DimensionModel: models.DimensionModel{ID: "prod-2", Name: "Rice 2kg"}},
	}
	transactions := []models.TransactionModel{
		{
			BaseModel: models.BaseModel{ID: "TX-1", CreatedAt: *at("2024-06-20T09:00:00Z")},
			ShopID:    "shop-1", CashierID: "cashier-1", CustomerName: "Wanjiru",
			TotalAmount: nd("1000"), PaymentMethod: "credit", AmountPaid: nd("400"),
			SaleDate:            at("2024-06-20T09:00:00Z"),
			IsCreditTransaction: true,
			Items:               models.LineItems{{ProductID: "prod-1", Quantity: nd("4"), UnitPrice: nd("250"), UnitCost: nd("180")}},
		},
		{
			BaseModel: models.BaseModel{ID: "TX-2", CreatedAt: *at("2024-06-25T15:30:00Z")},
			ShopID:    "shop-2", CashierID: "cashier-2",
			TotalAmount: nd("500"), PaymentMethod: "cash",
			Items: models.LineItems{{ProductID: "prod-2", Quantity: nd("5"), UnitPrice: nd("100"), UnitCost: nd("60")}},
		},
		{
			BaseModel: models.BaseModel{ID: "TX-3", CreatedAt: *at("2024-04-01T10:00:00Z")},
			ShopID:    "shop-1", CashierID: "cashier-1",
			TotalAmount: nd("300"), PaymentMethod: "cash",
			SaleDate: at("2024-04-01T10:00:00Z"),
			Items:    models.LineItems{{ProductID: "prod-1", Quantity: nd("1"), UnitPrice: nd("300")}},
		},
	}
	credits := []models.CreditModel{
		{
			BaseModel:     models.BaseModel{ID: "CR-1", CreatedAt: *at("2024-06-20T09:00:00Z")},
			TransactionID: "TX-1", ShopID: "shop-1", CashierID: "cashier-1", CustomerName: "Wanjiru",
			TotalAmount: nd("1000"), AmountPaid: nd("400"), BalanceDue: nd("600"), Status: "partially_paid",
			DueDate:        at("2024-06-25T00:00:00Z"),
			PaymentHistory: models.Payments{{ID: "PAY-1", Amount: decimal.RequireFromString("400"), PaidAt: *at("2024-06-21T10:00:00Z"), PaymentMethod: "cash"}},
		},
		{
			BaseModel:     models.BaseModel{ID: "CR-OLD", CreatedAt: *at("2024-04-01T10:00:00Z")},
			TransactionID: "TX-3", ShopID: "shop-1", CustomerName: "Otieno",
			TotalAmount: nd("300"),
		},
	}

	require.NoError(t, db.Create(&shops).Error)
	require.NoError(t, db.Create(&cashiers).Error)
	require.NoError(t, db.Create(&products).Error)
	require.NoError(t, db.Create(&transactions).Error)
	require.NoError(t, db.Create(&credits).Error)
}

func june() report.DateWindow {
	w, err := report.NewDateWindow(
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		report.EndOfDay(testNow),
	)
	if err != nil {
		panic(err)
	}
	return w
}

func TestGormSnapshotRepository_LoadSnapshot(t *testing.T) {
	db := newTestDatabase(t)
	seedTestData(t, db.DB)
	repo := NewGormSnapshotRepository(db.DB)

	snapshot, err := repo.LoadSnapshot(context.Background(), june())
	require.NoError(t, err)

	t.Run("filters transactions by effective date", func(t *testing.T) {
		require.Len(t, snapshot.Transactions, 2)
		assert.Equal(t, "TX-1", snapshot.Transactions[0].ID)
		assert.Equal(t, "TX-2", snapshot.Transactions[1].ID)
		assert.Nil(t, snapshot.Transactions[1].SaleDate, "missing sale date stays absent")
		assert.NotNil(t, snapshot.Transactions[1].CreatedAt)
	})

	t.Run("loads credits attached to window transactions only", func(t *testing.T) {
		require.Len(t, snapshot.Credits, 1)
		c := snapshot.Credits[0]
		assert.Equal(t, "CR-1", c.ID)
		assert.Equal(t, "TX-1", c.TransactionID)
		require.Len(t, c.PaymentHistory, 1)
		assert.True(t, ingest.ToDecimal(c.PaymentHistory[0].Amount).Equal(decimal.NewFromInt(400)))
		assert.Equal(t, time.Date(2024, 6, 21, 10, 0, 0, 0, time.UTC), ingest.ToTime(c.PaymentHistory[0].PaidAt))
	})

	t.Run("round-trips line items", func(t *testing.T) {
		items := snapshot.Transactions[0].Items
		require.Len(t, items, 1)
		assert.Equal(t, "prod-1", items[0].ProductID)
		assert.True(t, ingest.ToDecimal(items[0].UnitCost).Equal(decimal.NewFromInt(180)))
	})

	t.Run("loads all dimensions", func(t *testing.T) {
		assert.Len(t, snapshot.Shops, 2)
		assert.Len(t, snapshot.Cashiers, 2)
		assert.Len(t, snapshot.Products, 2)
		assert.Equal(t, "amina", snapshot.Cashiers[0].Username)
	})

	t.Run("absent derived fields stay absent", func(t *testing.T) {
		assert.False(t, ingest.ToNullDecimal(snapshot.Transactions[1].RecognizedRevenue).Valid)
		assert.False(t, ingest.ToNullDecimal(snapshot.Transactions[1].TotalCost).Valid)
	})
}

func TestGormSnapshotRepository_EmptyWindow(t *testing.T) {
	db := newTestDatabase(t)
	seedTestData(t, db.DB)
	repo := NewGormSnapshotRepository(db.DB)

	w, err := report.NewDateWindow(
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 31, 23, 59, 59, 0, time.UTC),
	)
	require.NoError(t, err)

	snapshot, err := repo.LoadSnapshot(context.Background(), w)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Transactions)
	assert.Empty(t, snapshot.Credits)
	assert.Len(t, snapshot.Shops, 2, "dimensions do not depend on the window")
}

func TestGormSnapshotRepository_CancelledContext(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormSnapshotRepository(db.DB)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.LoadSnapshot(ctx, june())
	assert.Error(t, err)
}

func TestGormSnapshotRepository_FeedsAnalytics(t *testing.T) {
	db := newTestDatabase(t)
	seedTestData(t, db.DB)

	svc := analytics.NewService(analytics.WithClock(func() time.Time { return testNow }))
	res, err := svc.Run(context.Background(), NewGormSnapshotRepository(db.DB), analytics.Query{Grouping: report.GroupingShop})
	require.NoError(t, err)

	assert.True(t, res.Summary.TotalRevenue.Equal(decimal.NewFromInt(1500)))
	assert.True(t, res.Summary.TotalCost.Equal(decimal.NewFromInt(1020)))
	require.Len(t, res.Aggregates, 2)
	require.Len(t, res.Credits, 1)
	assert.True(t, res.Credits[0].BalanceDue.Equal(decimal.NewFromInt(600)))
}

func TestGormSnapshotRepository_QueriesCarryRunContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	db, err := NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
		WithDatabaseLogger(log),
		WithLogLevel(gormlogger.Info),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, AutoMigrate(db.DB))
	seedTestData(t, db.DB)
	logs.TakeAll()

	svc := analytics.NewService(
		analytics.WithLogger(log),
		analytics.WithClock(func() time.Time { return testNow }),
	)
	ctx, _ := logger.WithScope(context.Background(), log, "tenant-1")
	_, err = svc.Run(ctx, NewGormSnapshotRepository(db.DB, WithRepositoryLogger(log)), analytics.Query{Grouping: report.GroupingShop})
	require.NoError(t, err)

	computed := logs.FilterMessage("Analytics computed").All()
	require.Len(t, computed, 1)
	runID, ok := computed[0].ContextMap()["run_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, runID)
	assert.Equal(t, "tenant-1", computed[0].ContextMap()["scope"])

	queries := logs.FilterMessage("SQL Query").All()
	require.NotEmpty(t, queries)
	for _, q := range queries {
		assert.Equal(t, runID, q.ContextMap()["run_id"], "query %v", q.ContextMap()["sql"])
		assert.Equal(t, "tenant-1", q.ContextMap()["scope"])
	}

	loaded := logs.FilterMessage("Snapshot loaded").All()
	require.Len(t, loaded, 1)
	assert.Equal(t, runID, loaded[0].ContextMap()["run_id"])
}
