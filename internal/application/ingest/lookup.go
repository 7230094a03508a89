package ingest

import (
	"strings"

	"github.com/pos/analytics/internal/domain/shared"
	"golang.org/x/text/unicode/norm"
)

// Display-name sentinels for references that cannot be resolved
const (
	UnknownShop     = "Unknown Shop"
	UnknownCashier  = "Unknown Cashier"
	UnknownProduct  = "Unknown Product"
	UnknownCustomer = "Unknown Customer"
)

// Lookup maps dimension ids to display names
type Lookup struct {
	Shops    map[string]string
	Cashiers map[string]string
	Products map[string]string
}

// NewLookup builds a Lookup from dimension records.
// A later record with the same id replaces an earlier one.
func NewLookup(shops, cashiers, products []DimensionRecord) Lookup {
	return Lookup{
		Shops:    indexDimension(shops),
		Cashiers: indexDimension(cashiers),
		Products: indexDimension(products),
	}
}

// LookupFromSnapshot builds a Lookup from the dimension records of a snapshot
func LookupFromSnapshot(s Snapshot) Lookup {
	return NewLookup(s.Shops, s.Cashiers, s.Products)
}

func indexDimension(records []DimensionRecord) map[string]string {
	index := make(map[string]string, len(records))
	for _, r := range records {
		id := ToString(firstPresent(r.ID, r.MongoID))
		if id == "" {
			continue
		}
		index[id] = CanonicalName(ToString(firstPresent(r.Name, r.Username)))
	}
	return index
}

// CanonicalName trims, collapses inner whitespace and applies Unicode NFC so
// that visually identical names compare and sort equal
func CanonicalName(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// ExtractRef reads a reference that is either a bare id or an embedded
// document carrying an id and optionally a name
func ExtractRef(v any) (id, name string) {
	doc, ok := v.(map[string]any)
	if !ok {
		return ToString(v), ""
	}
	if _, isOID := doc["$oid"]; isOID {
		return ToString(doc), ""
	}
	id = ToString(firstPresent(doc["_id"], doc["id"]))
	name = ToString(firstPresent(doc["name"], doc["username"], doc["fullName"]))
	return id, CanonicalName(name)
}

// ResolveRef resolves a reference to an id and display name. The reference is
// read from ref, falling back to fallbackID. The lookup name wins over a name
// embedded in the reference; when neither exists the sentinel is used and
// resolved is false.
func ResolveRef(ref, fallbackID any, names map[string]string, sentinel string) (out shared.Reference, resolved bool) {
	id, embedded := ExtractRef(ref)
	if id == "" {
		id, _ = ExtractRef(fallbackID)
		if embedded == "" {
			_, embedded = ExtractRef(fallbackID)
		}
	}

	if name, ok := names[id]; ok && id != "" && name != "" {
		return shared.Reference{ID: id, Name: name}, true
	}
	if embedded != "" {
		return shared.Reference{ID: id, Name: embedded}, true
	}
	return shared.Reference{ID: id, Name: sentinel}, false
}

// embeddedField reads a field of an embedded document, or nil
func embeddedField(v any, key string) any {
	if doc, ok := v.(map[string]any); ok {
		return doc[key]
	}
	return nil
}
