// Package stores persists simulation runs on SQLite.
//
// The schema is applied from embedded golang-migrate migrations and holds the
// append-only workforce event log, year-end snapshots, contribution records,
// run history and per-year transition results. Every year is written in one
// transaction that first removes any rows already stored for that year, so
// re-running a year never duplicates data.
package stores
