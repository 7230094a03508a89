package ingest

import "fmt"

// Data-quality issue codes
const (
	IssueUnknownReference     = "WARN_UNKNOWN_REFERENCE"
	IssueUnknownPaymentMethod = "WARN_UNKNOWN_PAYMENT_METHOD"
	IssueDuplicateTransaction = "WARN_DUPLICATE_TRANSACTION"
	IssueDuplicateCredit      = "WARN_DUPLICATE_CREDIT"
	IssueInvalidPayment       = "WARN_INVALID_PAYMENT"
	IssuePaymentHistory       = "WARN_PAYMENT_HISTORY_MISMATCH"
	IssueOrphanCredit         = "WARN_ORPHAN_CREDIT"
	IssueMissingIdentifier    = "WARN_MISSING_IDENTIFIER"
	IssueStaleDerivedFields   = "WARN_STALE_DERIVED_FIELDS"
	IssuePaymentClamped       = "WARN_PAYMENT_CLAMPED"
)

// Record kinds an issue can point at
const (
	RecordTransaction = "transaction"
	RecordCredit      = "credit"
)

// DefaultMaxIssues caps the issues kept per batch
const DefaultMaxIssues = 100

// Issue is a data-quality warning. Issues never fail a computation;
// callers log or display them.
type Issue struct {
	Record  string `json:"record"`
	Index   int    `json:"index"`
	ID      string `json:"id,omitempty"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// String renders the issue for logs
func (i Issue) String() string {
	if i.Field != "" {
		return fmt.Sprintf("%s %d (%s), field '%s': %s", i.Record, i.Index, i.ID, i.Field, i.Message)
	}
	return fmt.Sprintf("%s %d (%s): %s", i.Record, i.Index, i.ID, i.Message)
}

// IssueCollection keeps at most maxIssues issues while counting all of them
type IssueCollection struct {
	issues     []Issue
	maxIssues  int
	totalCount int
}

// NewIssueCollection creates a collection with a maximum issue limit
func NewIssueCollection(maxIssues int) *IssueCollection {
	if maxIssues <= 0 {
		maxIssues = DefaultMaxIssues
	}
	return &IssueCollection{
		issues:    make([]Issue, 0),
		maxIssues: maxIssues,
	}
}

// Add adds an issue to the collection
func (c *IssueCollection) Add(issue Issue) {
	c.totalCount++
	if len(c.issues) < c.maxIssues {
		c.issues = append(c.issues, issue)
	}
}

// Issues returns the collected issues
func (c *IssueCollection) Issues() []Issue {
	return c.issues
}

// Count returns the number of collected issues (up to the limit)
func (c *IssueCollection) Count() int {
	return len(c.issues)
}

// TotalCount returns the total number of issues including those not kept
func (c *IssueCollection) TotalCount() int {
	return c.totalCount
}

// Truncated returns true if some issues were dropped
func (c *IssueCollection) Truncated() bool {
	return c.totalCount > len(c.issues)
}
