package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// BaseModel provides the common persistence fields of POS records.
// Ids are the POS backend's own string ids, not generated keys.
type BaseModel struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time
}

// jsonColumnType picks the JSON column type of the connected dialect
func jsonColumnType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "jsonb"
	case "mysql":
		return "json"
	default:
		return "text"
	}
}

// jsonValue encodes v for a JSON column, storing nil slices as "[]"
func jsonValue[T any](v []T) (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// jsonScan decodes a JSON column into dst
func jsonScan[T any](value any, dst *[]T) error {
	if value == nil {
		*dst = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan JSON column: unsupported type")
	}

	if len(bytes) == 0 {
		*dst = nil
		return nil
	}
	return json.Unmarshal(bytes, dst)
}

// optionalTime returns an untyped nil for a missing time so that raw-record
// coercion sees the field as absent.
func optionalTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}

// optionalString returns nil for an empty string
func optionalString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
