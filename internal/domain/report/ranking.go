package report

import "sort"

// DefaultProductTopN is the default length of the product ranking
const DefaultProductTopN = 10

// Rank returns a copy of aggs ordered by revenue descending, then transaction
// count descending, then name and key ascending, truncated to n.
// n <= 0 keeps every entry.
func Rank(aggs []DimensionAggregate, n int) []DimensionAggregate {
	ranked := make([]DimensionAggregate, len(aggs))
	copy(ranked, aggs)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if c := a.TotalRevenue.Cmp(b.TotalRevenue); c != 0 {
			return c > 0
		}
		if a.TransactionCount != b.TransactionCount {
			return a.TransactionCount > b.TransactionCount
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Key < b.Key
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
