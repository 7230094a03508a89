// Package export writes analytics results to xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pos/analytics/internal/application/analytics"
	"github.com/pos/analytics/internal/domain/credit"
	"github.com/pos/analytics/internal/domain/report"
	"github.com/pos/analytics/internal/domain/sales"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet    = "Sheet1"
	transactionsTab = "Transactions"
	creditsTab      = "Credits"
	dateLayout      = "2006-01-02 15:04"
)

var aggregateHeaders = []any{
	"Key", "Name", "Revenue", "Cost", "Profit", "Profit margin %",
	"Transactions", "Items sold", "Credit sales", "Credit given",
	"Collected", "Outstanding", "Collection rate %", "Overdue", "Score", "Risk",
}

var transactionHeaders = []any{
	"ID", "Date", "Shop", "Cashier", "Customer", "Payment method", "Total",
	"Cost", "Paid", "Recognized", "Outstanding", "Credit status", "Overdue", "Stale",
}

var creditHeaders = []any{
	"ID", "Transaction", "Shop", "Customer", "Total", "Paid", "Balance due",
	"Status", "Due date", "Days overdue", "Paid %",
}

// Workbook accumulates analytics sheets in one xlsx file
type Workbook struct {
	file     *excelize.File
	header   int
	sheets   []string
	location *time.Location
}

// NewWorkbook creates an empty workbook. Dates are written in loc, or UTC when loc is nil.
func NewWorkbook(loc *time.Location) (*Workbook, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	return &Workbook{file: f, header: header, location: loc}, nil
}

// SheetName returns the sheet used for a grouping
func SheetName(g report.Grouping) string {
	if g == report.GroupingNone {
		return "Summary"
	}
	return "By " + g.String()
}

// Sheets returns the sheets added so far, in order
func (w *Workbook) Sheets() []string {
	return append([]string(nil), w.sheets...)
}

// AddAggregates writes one row per group key
func (w *Workbook) AddAggregates(g report.Grouping, aggregates []report.DimensionAggregate) error {
	rows := make([][]any, len(aggregates))
	for i, a := range aggregates {
		rows[i] = []any{
			a.Key, a.Name, num(a.TotalRevenue), num(a.TotalCost), num(a.TotalProfit), num(a.ProfitMargin),
			a.TransactionCount, num(a.ItemsSold), a.CreditSalesCount, num(a.TotalCreditGiven),
			num(a.AmountCollected), num(a.OutstandingCredit), num(a.CreditCollectionRate),
			a.HasOverdueCredit, a.PerformanceScore, a.RiskLevel.String(),
		}
	}
	return w.addSheet(SheetName(g), aggregateHeaders, rows)
}

// AddTransactions writes the reconciled transactions
func (w *Workbook) AddTransactions(txs []sales.ReconciledTransaction) error {
	rows := make([][]any, len(txs))
	for i, tx := range txs {
		rows[i] = []any{
			tx.ID, w.date(tx.EffectiveDate()), tx.Shop.Name, tx.Cashier.Name, tx.CustomerName,
			string(tx.PaymentMethod), num(tx.TotalAmount), num(tx.Cost), num(tx.AmountPaid),
			num(tx.RecognizedRevenue), num(tx.OutstandingRevenue), string(tx.DisplayStatus),
			tx.Overdue, tx.Stale,
		}
	}
	return w.addSheet(transactionsTab, transactionHeaders, rows)
}

// AddCredits writes credit views
func (w *Workbook) AddCredits(views []credit.View) error {
	rows := make([][]any, len(views))
	for i, v := range views {
		due := ""
		if v.Record.DueDate != nil {
			due = w.date(*v.Record.DueDate)
		}
		rows[i] = []any{
			v.Record.ID, v.Record.TransactionID, v.Record.Shop.Name, v.Record.CustomerName,
			num(v.Record.TotalAmount), num(v.Record.AmountPaid), num(v.BalanceDue),
			string(v.DisplayStatus), due, v.DaysOverdue, num(v.PaidPercentage),
		}
	}
	return w.addSheet(creditsTab, creditHeaders, rows)
}

// AddResults writes one aggregate sheet per result, ordered by grouping,
// followed by the transactions and credits of the first result. Results
// computed together share both.
func (w *Workbook) AddResults(results map[report.Grouping]*analytics.Result) error {
	groupings := make([]report.Grouping, 0, len(results))
	for g := range results {
		groupings = append(groupings, g)
	}
	sort.Slice(groupings, func(i, j int) bool { return groupings[i] < groupings[j] })

	for _, g := range groupings {
		if err := w.AddAggregates(g, results[g].Aggregates); err != nil {
			return err
		}
	}
	if len(groupings) == 0 {
		return nil
	}
	first := results[groupings[0]]
	if err := w.AddTransactions(first.Transactions); err != nil {
		return err
	}
	return w.AddCredits(first.Credits)
}

func (w *Workbook) addSheet(name string, headers []any, rows [][]any) error {
	if idx, _ := w.file.GetSheetIndex(name); idx >= 0 {
		return fmt.Errorf("sheet %q already exists", name)
	}

	if len(w.sheets) == 0 {
		if err := w.file.SetSheetName(defaultSheet, name); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", name, err)
	}
	w.sheets = append(w.sheets, name)

	if err := w.file.SetSheetRow(name, "A1", &headers); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := w.file.SetCellStyle(name, "A1", last, w.header); err != nil {
		return err
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(name, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write row %d of %q: %w", i+2, name, err)
		}
	}
	return nil
}

// Write streams the workbook to out
func (w *Workbook) Write(out io.Writer) error {
	if err := w.file.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveAs writes the workbook to path
func (w *Workbook) SaveAs(path string) error {
	if err := w.file.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Close releases the workbook's temporary files
func (w *Workbook) Close() error {
	return w.file.Close()
}

func (w *Workbook) date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(w.location).Format(dateLayout)
}

func num(d decimal.Decimal) float64 {
	return d.Round(4).InexactFloat64()
}

// WriteFile lays out computed results in a new workbook saved to path
func WriteFile(path string, loc *time.Location, results map[report.Grouping]*analytics.Result) error {
	w, err := NewWorkbook(loc)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.AddResults(results); err != nil {
		return err
	}
	return w.SaveAs(path)
}
