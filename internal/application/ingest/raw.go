package ingest

// Raw records mirror what the POS backend stores. Every field is loosely typed:
// numbers may arrive as strings, references as bare ids or embedded documents.

// RawTransaction is a sale as stored by the POS backend
type RawTransaction struct {
	ID                  any           `json:"id,omitempty"`
	MongoID             any           `json:"_id,omitempty"`
	Shop                any           `json:"shop,omitempty"`
	ShopID              any           `json:"shopId,omitempty"`
	Cashier             any           `json:"cashier,omitempty"`
	CashierID           any           `json:"cashierId,omitempty"`
	Customer            any           `json:"customer,omitempty"`
	CustomerName        any           `json:"customerName,omitempty"`
	TotalAmount         any           `json:"totalAmount,omitempty"`
	PaymentMethod       any           `json:"paymentMethod,omitempty"`
	Items               []RawLineItem `json:"items,omitempty"`
	Cost                any           `json:"cost,omitempty"`
	TotalCost           any           `json:"totalCost,omitempty"`
	Profit              any           `json:"profit,omitempty"`
	SaleDate            any           `json:"saleDate,omitempty"`
	CreatedAt           any           `json:"createdAt,omitempty"`
	IsCreditTransaction any           `json:"isCreditTransaction,omitempty"`
	AmountPaid          any           `json:"amountPaid,omitempty"`
	RecognizedRevenue   any           `json:"recognizedRevenue,omitempty"`
	OutstandingRevenue  any           `json:"outstandingRevenue,omitempty"`
	CreditStatus        any           `json:"creditStatus,omitempty"`
	DueDate             any           `json:"dueDate,omitempty"`
}

// RawLineItem is one product line of a raw sale
type RawLineItem struct {
	Product     any `json:"product,omitempty"`
	ProductID   any `json:"productId,omitempty"`
	ProductName any `json:"productName,omitempty"`
	Quantity    any `json:"quantity,omitempty"`
	UnitPrice   any `json:"unitPrice,omitempty"`
	Price       any `json:"price,omitempty"`
	UnitCost    any `json:"unitCost,omitempty"`
	CostPrice   any `json:"costPrice,omitempty"`
}

// RawCredit is a credit record as stored by the POS backend
type RawCredit struct {
	ID             any          `json:"id,omitempty"`
	MongoID        any          `json:"_id,omitempty"`
	Transaction    any          `json:"transaction,omitempty"`
	TransactionID  any          `json:"transactionId,omitempty"`
	Shop           any          `json:"shop,omitempty"`
	ShopID         any          `json:"shopId,omitempty"`
	Cashier        any          `json:"cashier,omitempty"`
	CashierID      any          `json:"cashierId,omitempty"`
	Customer       any          `json:"customer,omitempty"`
	CustomerName   any          `json:"customerName,omitempty"`
	TotalAmount    any          `json:"totalAmount,omitempty"`
	AmountPaid     any          `json:"amountPaid,omitempty"`
	BalanceDue     any          `json:"balanceDue,omitempty"`
	Status         any          `json:"status,omitempty"`
	DueDate        any          `json:"dueDate,omitempty"`
	PaymentHistory []RawPayment `json:"paymentHistory,omitempty"`
	CreatedAt      any          `json:"createdAt,omitempty"`
	UpdatedAt      any          `json:"updatedAt,omitempty"`
}

// RawPayment is one entry of a raw credit's payment history
type RawPayment struct {
	ID            any `json:"id,omitempty"`
	MongoID       any `json:"_id,omitempty"`
	Amount        any `json:"amount,omitempty"`
	PaidAt        any `json:"paidAt,omitempty"`
	Date          any `json:"date,omitempty"`
	PaymentMethod any `json:"paymentMethod,omitempty"`
	RecordedBy    any `json:"recordedBy,omitempty"`
}

// DimensionRecord is a shop, cashier or product master record
type DimensionRecord struct {
	ID       any `json:"id,omitempty"`
	MongoID  any `json:"_id,omitempty"`
	Name     any `json:"name,omitempty"`
	Username any `json:"username,omitempty"`
}

// Snapshot is one fetch of raw POS data
type Snapshot struct {
	Transactions []RawTransaction  `json:"transactions"`
	Credits      []RawCredit       `json:"credits"`
	Shops        []DimensionRecord `json:"shops"`
	Cashiers     []DimensionRecord `json:"cashiers"`
	Products     []DimensionRecord `json:"products"`
}
