// Package events provides event bus implementations.
//
// Implementations:
//   - nats: NATS JetStream (production)
//   - memory: in-memory for testing
package events
