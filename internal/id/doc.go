// Package id generates identifiers for requests and log correlation.
//
//   - UUID: random UUID v4
//   - Sortable: UUID v7, ordered by creation time
//   - Short: 16 hex characters for user-facing output
package id
