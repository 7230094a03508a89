package models

import (
	"database/sql/driver"
	"time"

	"github.com/pos/analytics/internal/application/ingest"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// LineItem is one product line stored inside a transaction row
type LineItem struct {
	ProductID   string              `json:"productId"`
	ProductName string              `json:"productName,omitempty"`
	Quantity    decimal.NullDecimal `json:"quantity"`
	UnitPrice   decimal.NullDecimal `json:"unitPrice"`
	UnitCost    decimal.NullDecimal `json:"unitCost"`
}

// LineItems is the JSON column holding a transaction's items
type LineItems []LineItem

// Value implements driver.Valuer
func (l LineItems) Value() (driver.Value, error) { return jsonValue([]LineItem(l)) }

// GormDBDataType implements migrator.GormDataTypeInterface
func (LineItems) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonColumnType(db, field)
}

// Scan implements sql.Scanner
func (l *LineItems) Scan(value any) error {
	items := []LineItem(*l)
	if err := jsonScan(value, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// Payment is one entry of a credit's payment history
type Payment struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAt        time.Time       `json:"paidAt"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	RecordedBy    string          `json:"recordedBy,omitempty"`
}

// Payments is the JSON column holding a credit's payment history
type Payments []Payment

// Value implements driver.Valuer
func (p Payments) Value() (driver.Value, error) { return jsonValue([]Payment(p)) }

// GormDBDataType implements migrator.GormDataTypeInterface
func (Payments) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonColumnType(db, field)
}

// Scan implements sql.Scanner
func (p *Payments) Scan(value any) error {
	payments := []Payment(*p)
	if err := jsonScan(value, &payments); err != nil {
		return err
	}
	*p = payments
	return nil
}

// TransactionModel is the read model of a POS sale.
// Derived revenue columns are nullable: older rows never had them written.
type TransactionModel struct {
	BaseModel
	ShopID              string              `gorm:"type:varchar(64);index"`
	CashierID           string              `gorm:"type:varchar(64);index"`
	CustomerName        string              `gorm:"type:varchar(200)"`
	TotalAmount         decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	PaymentMethod       string              `gorm:"type:varchar(20)"`
	Items               LineItems
	TotalCost           decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Profit              decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	SaleDate            *time.Time          `gorm:"index"`
	IsCreditTransaction bool                `gorm:"not null;default:false"`
	AmountPaid          decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	RecognizedRevenue   decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	OutstandingRevenue  decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	CreditStatus        string              `gorm:"type:varchar(20)"`
	DueDate             *time.Time
}

// TableName returns the table name for GORM
func (TransactionModel) TableName() string {
	return "pos_transactions"
}

// ToRaw converts the row into the raw record consumed by ingest
func (m *TransactionModel) ToRaw() ingest.RawTransaction {
	raw := ingest.RawTransaction{
		ID:                  m.ID,
		ShopID:              optionalString(m.ShopID),
		CashierID:           optionalString(m.CashierID),
		CustomerName:        optionalString(m.CustomerName),
		TotalAmount:         m.TotalAmount,
		PaymentMethod:       optionalString(m.PaymentMethod),
		TotalCost:           m.TotalCost,
		Profit:              m.Profit,
		SaleDate:            optionalTime(m.SaleDate),
		CreatedAt:           optionalTime(&m.CreatedAt),
		IsCreditTransaction: m.IsCreditTransaction,
		AmountPaid:          m.AmountPaid,
		RecognizedRevenue:   m.RecognizedRevenue,
		OutstandingRevenue:  m.OutstandingRevenue,
		CreditStatus:        optionalString(m.CreditStatus),
		DueDate:             optionalTime(m.DueDate),
	}
	raw.Items = make([]ingest.RawLineItem, len(m.Items))
	for i, item := range m.Items {
		raw.Items[i] = ingest.RawLineItem{
			ProductID:   optionalString(item.ProductID),
			ProductName: optionalString(item.ProductName),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			UnitCost:    item.UnitCost,
		}
	}
	return raw
}

// CreditModel is the read model of a credit record
type CreditModel struct {
	BaseModel
	TransactionID  string              `gorm:"type:varchar(64);index"`
	ShopID         string              `gorm:"type:varchar(64);index"`
	CashierID      string              `gorm:"type:varchar(64)"`
	CustomerName   string              `gorm:"type:varchar(200)"`
	TotalAmount    decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	AmountPaid     decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	BalanceDue     decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Status         string              `gorm:"type:varchar(20);index"`
	DueDate        *time.Time          `gorm:"index"`
	PaymentHistory Payments
}

// TableName returns the table name for GORM
func (CreditModel) TableName() string {
	return "pos_credits"
}

// ToRaw converts the row into the raw record consumed by ingest
func (m *CreditModel) ToRaw() ingest.RawCredit {
	raw := ingest.RawCredit{
		ID:            m.ID,
		TransactionID: optionalString(m.TransactionID),
		ShopID:        optionalString(m.ShopID),
		CashierID:     optionalString(m.CashierID),
		CustomerName:  optionalString(m.CustomerName),
		TotalAmount:   m.TotalAmount,
		AmountPaid:    m.AmountPaid,
		BalanceDue:    m.BalanceDue,
		Status:        optionalString(m.Status),
		DueDate:       optionalTime(m.DueDate),
		CreatedAt:     optionalTime(&m.CreatedAt),
		UpdatedAt:     optionalTime(&m.UpdatedAt),
	}
	raw.PaymentHistory = make([]ingest.RawPayment, len(m.PaymentHistory))
	for i, p := range m.PaymentHistory {
		raw.PaymentHistory[i] = ingest.RawPayment{
			ID:            optionalString(p.ID),
			Amount:        p.Amount,
			PaidAt:        optionalTime(&p.PaidAt),
			PaymentMethod: optionalString(p.PaymentMethod),
			RecordedBy:    optionalString(p.RecordedBy),
		}
	}
	return raw
}

// DimensionModel holds the fields shared by shop, cashier and product rows
type DimensionModel struct {
	ID   string `gorm:"type:varchar(64);primaryKey"`
	Name string `gorm:"type:varchar(200)"`
}

// ToRaw converts the row into a dimension record
func (m DimensionModel) ToRaw() ingest.DimensionRecord {
	return ingest.DimensionRecord{ID: m.ID, Name: optionalString(m.Name)}
}

// ShopModel is a shop master record
type ShopModel struct {
	DimensionModel
}

// TableName returns the table name for GORM
func (ShopModel) TableName() string {
	return "pos_shops"
}

// CashierModel is a cashier master record
type CashierModel struct {
	DimensionModel
	Username string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (CashierModel) TableName() string {
	return "pos_cashiers"
}

// ToRaw converts the row into a dimension record
func (m CashierModel) ToRaw() ingest.DimensionRecord {
	raw := m.DimensionModel.ToRaw()
	raw.Username = optionalString(m.Username)
	return raw
}

// ProductModel is a product master record
type ProductModel struct {
	DimensionModel
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "pos_products"
}

// All returns every model for AutoMigrate
func All() []any {
	return []any{
		&ShopModel{},
		&CashierModel{},
		&ProductModel{},
		&TransactionModel{},
		&CreditModel{},
	}
}
