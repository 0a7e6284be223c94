// Package conversation provides thread-scoped message store
// implementations. A thread's history is an append-only, order-preserving
// sequence of role/content messages; unknown thread IDs yield an empty
// history, never an error.
//
// Implementations:
//   - redis: durable per-thread lists with optional retention (production)
//   - memory: process-local, volatile (tutorial default and testing)
package conversation
