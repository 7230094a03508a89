package credit

// Duplicate describes a credit record that was collapsed into another one
// sharing the same transaction
type Duplicate struct {
	Key        string `json:"key"`
	KeptID     string `json:"kept_id"`
	DroppedID  string `json:"dropped_id"`
	Candidates int    `json:"candidates"`
}

// Dedupe collapses records that reference the same transaction into exactly
// one record per key. Amounts are never summed across duplicates.
//
// The winner is the most complete candidate (longest payment history), then
// the most recently updated, then the last one in input order. Output keeps
// the order in which each key was first seen.
func Dedupe(records []Record) ([]Record, []Duplicate) {
	order := make([]string, 0, len(records))
	winners := make(map[string]int, len(records))
	counts := make(map[string]int, len(records))
	var duplicates []Duplicate

	for i, rec := range records {
		key := rec.Key()
		counts[key]++
		current, seen := winners[key]
		if !seen {
			order = append(order, key)
			winners[key] = i
			continue
		}

		kept, dropped := current, i
		if supersedes(rec, records[current]) {
			kept, dropped = i, current
		}
		winners[key] = kept
		duplicates = append(duplicates, Duplicate{
			Key:       key,
			KeptID:    records[kept].ID,
			DroppedID: records[dropped].ID,
		})
	}

	for i := range duplicates {
		duplicates[i].Candidates = counts[duplicates[i].Key]
		duplicates[i].KeptID = records[winners[duplicates[i].Key]].ID
	}

	out := make([]Record, 0, len(order))
	for _, key := range order {
		out = append(out, records[winners[key]])
	}
	return out, duplicates
}

// supersedes reports whether a later candidate should replace the current winner
func supersedes(candidate, current Record) bool {
	if len(candidate.Payments) != len(current.Payments) {
		return len(candidate.Payments) > len(current.Payments)
	}
	if current.UpdatedAt.After(candidate.UpdatedAt) {
		return false
	}
	return true
}
