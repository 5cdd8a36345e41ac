// Package store defines the persistence contracts for tasks and the user
// directory. Implementations live in store/memory and platform/postgres and
// must keep every task mutation atomic under concurrent access.
package store
