// Package storage persists lapsed chore occurrences (history).
//
// Every driver enforces the same natural key, (date, original rule id), and
// only ever inserts: a record that already exists is left untouched.
package storage
