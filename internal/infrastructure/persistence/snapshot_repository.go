package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/pos/analytics/internal/application/analytics"
	"github.com/pos/analytics/internal/application/ingest"
	"github.com/pos/analytics/internal/domain/report"
	"github.com/pos/analytics/internal/infrastructure/logger"
	"github.com/pos/analytics/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormSnapshotRepository loads raw POS snapshots using GORM
type GormSnapshotRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// SnapshotRepositoryOption configures a GormSnapshotRepository
type SnapshotRepositoryOption func(*GormSnapshotRepository)

// WithRepositoryLogger sets the repository logger
func WithRepositoryLogger(l *zap.Logger) SnapshotRepositoryOption {
	return func(r *GormSnapshotRepository) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewGormSnapshotRepository creates a new GormSnapshotRepository
func NewGormSnapshotRepository(db *gorm.DB, opts ...SnapshotRepositoryOption) *GormSnapshotRepository {
	r := &GormSnapshotRepository{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AutoMigrate creates or updates the read model tables
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate read models: %w", err)
	}
	return nil
}

// inWindow filters transactions whose effective date falls in the window.
// The effective date is the sale date, falling back to creation time.
func inWindow(w report.DateWindow) func(*gorm.DB) *gorm.DB {
	start, end := w.Start.UTC(), w.End.UTC()
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"(sale_date IS NOT NULL AND sale_date BETWEEN ? AND ?) OR (sale_date IS NULL AND created_at BETWEEN ? AND ?)",
			start, end, start, end,
		)
	}
}

// LoadSnapshot returns the transactions of the window, the credits attached to
// them and every dimension record. Credits whose transaction falls outside the
// window are left out.
func (r *GormSnapshotRepository) LoadSnapshot(ctx context.Context, window report.DateWindow) (ingest.Snapshot, error) {
	began := time.Now()
	db := r.db.WithContext(ctx)

	var transactions []models.TransactionModel
	if err := db.Scopes(inWindow(window)).Order("id ASC").Find(&transactions).Error; err != nil {
		return ingest.Snapshot{}, fmt.Errorf("failed to load transactions: %w", err)
	}

	windowIDs := db.Model(&models.TransactionModel{}).Select("id").Scopes(inWindow(window))
	var credits []models.CreditModel
	if err := db.Where("transaction_id IN (?)", windowIDs).Order("id ASC").Find(&credits).Error; err != nil {
		return ingest.Snapshot{}, fmt.Errorf("failed to load credits: %w", err)
	}

	var shops []models.ShopModel
	if err := db.Order("id ASC").Find(&shops).Error; err != nil {
		return ingest.Snapshot{}, fmt.Errorf("failed to load shops: %w", err)
	}
	var cashiers []models.CashierModel
	if err := db.Order("id ASC").Find(&cashiers).Error; err != nil {
		return ingest.Snapshot{}, fmt.Errorf("failed to load cashiers: %w", err)
	}
	var products []models.ProductModel
	if err := db.Order("id ASC").Find(&products).Error; err != nil {
		return ingest.Snapshot{}, fmt.Errorf("failed to load products: %w", err)
	}

	snapshot := ingest.Snapshot{
		Transactions: make([]ingest.RawTransaction, len(transactions)),
		Credits:      make([]ingest.RawCredit, len(credits)),
		Shops:        make([]ingest.DimensionRecord, len(shops)),
		Cashiers:     make([]ingest.DimensionRecord, len(cashiers)),
		Products:     make([]ingest.DimensionRecord, len(products)),
	}
	for i := range transactions {
		snapshot.Transactions[i] = transactions[i].ToRaw()
	}
	for i := range credits {
		snapshot.Credits[i] = credits[i].ToRaw()
	}
	for i, s := range shops {
		snapshot.Shops[i] = s.ToRaw()
	}
	for i, c := range cashiers {
		snapshot.Cashiers[i] = c.ToRaw()
	}
	for i, p := range products {
		snapshot.Products[i] = p.ToRaw()
	}

	r.logger.Debug("Snapshot loaded",
		zap.String("run_id", logger.GetRunID(ctx)),
		zap.Time("start", window.Start),
		zap.Time("end", window.End),
		zap.Int("transactions", len(transactions)),
		zap.Int("credits", len(credits)),
		zap.Duration("elapsed", time.Since(began)),
	)
	return snapshot, nil
}

var _ analytics.SnapshotSource = (*GormSnapshotRepository)(nil)
