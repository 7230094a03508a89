package ingest

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// timeLayouts are tried in order when a timestamp arrives as a string
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ToDecimal coerces v into a finite decimal. Nil, NaN, infinities and
// non-numeric strings all yield zero.
func ToDecimal(v any) decimal.Decimal {
	switch n := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return n
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero
		}
		return *n
	case decimal.NullDecimal:
		if !n.Valid {
			return decimal.Zero
		}
		return n.Decimal
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(n)
	case float32:
		return ToDecimal(float64(n))
	case int:
		return decimal.NewFromInt(int64(n))
	case int32:
		return decimal.NewFromInt32(n)
	case int64:
		return decimal.NewFromInt(n)
	case uint:
		return decimal.NewFromUint64(uint64(n))
	case uint64:
		return decimal.NewFromUint64(n)
	case json.Number:
		return parseDecimal(n.String())
	case string:
		return parseDecimal(n)
	case map[string]any:
		// extended JSON: {"$numberDecimal": "12.50"}
		for _, key := range []string{"$numberDecimal", "$numberDouble", "$numberInt", "$numberLong"} {
			if inner, ok := n[key]; ok {
				return ToDecimal(inner)
			}
		}
	}
	return decimal.Zero
}

func parseDecimal(s string) decimal.Decimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ToNullDecimal coerces v like ToDecimal but reports absence: nil and blank
// strings are not valid. A present but malformed value is a valid zero.
func ToNullDecimal(v any) decimal.NullDecimal {
	if isAbsent(v) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(ToDecimal(v))
}

func isAbsent(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	case decimal.NullDecimal:
		return !s.Valid
	}
	return false
}

// ToTime coerces v into a UTC timestamp. Numbers are read as Unix
// milliseconds. Unparseable values yield the zero time.
func ToTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return time.Time{}
		}
		return t.UTC()
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC()
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return time.Time{}
		}
		return time.UnixMilli(int64(t)).UTC()
	case int64:
		return time.UnixMilli(t).UTC()
	case int:
		return time.UnixMilli(int64(t)).UTC()
	case json.Number:
		if ms, err := t.Int64(); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	case map[string]any:
		// extended JSON: {"$date": "..."}
		if inner, ok := t["$date"]; ok {
			return ToTime(inner)
		}
	}
	return time.Time{}
}

// ToTimePtr is ToTime returning nil for the zero time
func ToTimePtr(v any) *time.Time {
	t := ToTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

// ToString coerces scalars into a trimmed string. Documents and lists yield "".
func ToString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return ""
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	case map[string]any:
		// extended JSON: {"$oid": "..."}
		if inner, ok := s["$oid"]; ok {
			return ToString(inner)
		}
	}
	return ""
}

// ToBool coerces v into a bool. Strings "true", "1" and "yes" are true.
func ToBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "y":
			return true
		}
	case float64:
		return b != 0 && !math.IsNaN(b)
	case int:
		return b != 0
	case json.Number:
		return !ToDecimal(b).IsZero()
	}
	return false
}

// firstPresent returns the first value that is not absent
func firstPresent(values ...any) any {
	for _, v := range values {
		if !isAbsent(v) {
			return v
		}
	}
	return nil
}
