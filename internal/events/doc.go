// Package events carries committed task lifecycle changes from the service
// layer to loosely coupled consumers such as the notification handler.
//
// The primary components are:
// - TaskEvent: a snapshot of a task plus the kind of change
// - EventHandler: consumes events
// - EventEmitter: publishes events to registered handlers
package events
