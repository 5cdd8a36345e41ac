// Package domain contains the core business entities and the pure rules of
// the task lifecycle: status derivation, deadline scoring, list ordering,
// pagination and per-user statistics. Nothing in this package performs I/O
// or reads the wall clock; callers pass "now" explicitly.
package domain
