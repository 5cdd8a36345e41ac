// Package testdb provides utilities for database integration tests: opening
// a migrated Postgres database, resetting it between tests and running test
// code inside a rolled-back transaction.
//
// Tests that need a real database call Open, which skips the test when no
// database URL is configured and fails it instead when running in CI.
package testdb
