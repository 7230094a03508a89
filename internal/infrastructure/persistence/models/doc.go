// Package models contains the GORM models of the POS read tables.
//
// The models stay separate from the domain types: they carry the column
// tags and JSON column codecs, and convert to the loosely typed ingest
// records through ToRaw so that stored rows go through the same
// normalization as snapshot files.
//
// Structure:
//   - base.go: BaseModel and the JSON column helpers
//   - pos.go: transactions, credits, shops, cashiers and products
package models
