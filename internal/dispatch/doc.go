// Package dispatch runs background jobs, chiefly notification deliveries, on
// a bounded worker pool. Producers get a Pending for each job and can collect
// several into a Batch, so they never wait on one delivery before queuing the
// next.
package dispatch
