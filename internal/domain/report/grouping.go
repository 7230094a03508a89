package report

import (
	"fmt"
	"strings"

	"github.com/pos/analytics/internal/domain/shared"
)

// Grouping is the dimension transactions are bucketed by
type Grouping string

const (
	GroupingCashier Grouping = "cashier"
	GroupingShop    Grouping = "shop"
	GroupingProduct Grouping = "product"
	GroupingDay     Grouping = "day"
	GroupingNone    Grouping = "none"
)

// AllGroupings lists every supported grouping
var AllGroupings = []Grouping{GroupingCashier, GroupingShop, GroupingProduct, GroupingDay, GroupingNone}

// IsValid checks if the grouping is supported
func (g Grouping) IsValid() bool {
	switch g {
	case GroupingCashier, GroupingShop, GroupingProduct, GroupingDay, GroupingNone:
		return true
	}
	return false
}

// String returns the string representation of Grouping
func (g Grouping) String() string {
	return string(g)
}

// ParseGrouping parses a grouping selector. An empty string means GroupingNone.
func ParseGrouping(s string) (Grouping, error) {
	g := Grouping(strings.ToLower(strings.TrimSpace(s)))
	if g == "" {
		return GroupingNone, nil
	}
	if !g.IsValid() {
		return "", fmt.Errorf("grouping %q: %w", s, shared.ErrInvalidGrouping)
	}
	return g, nil
}
