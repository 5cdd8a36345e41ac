// Package postgres provides PostgreSQL implementations of the store
// contracts, the schema migrations that back them, and the mapping from
// PostgreSQL errors to store sentinel errors. Connections go through
// database/sql using the pgx stdlib driver.
package postgres
