// Package catalog holds the product index the scan detector resolves
// against.
//
// The backend owns the catalog. This package keeps the latest snapshot in
// memory behind an atomic pointer so lookups are synchronous, refreshes it
// on a fixed interval, and optionally persists it to a local bbolt cache so
// scanning works before the first refresh succeeds.
//
// Lookup rules:
//   - barcode: exact, case-sensitive
//   - sku: case-insensitive (Unicode case folding)
//   - a barcode match anywhere in the snapshot beats a SKU match
package catalog
