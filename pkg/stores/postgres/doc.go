// Package postgres implements engine.Store on PostgreSQL with pgx.
//
// Years are bulk-loaded with COPY inside one read-write transaction managed by
// TransactionManager. Repository calls pick up a transaction from the context
// through QueryerFromContext, so nested operations join the outer transaction.
// The schema is applied with golang-migrate's pgx/v5 driver from embedded
// migrations when the store is opened from a postgres:// URL.
package postgres
