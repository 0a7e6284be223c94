// Package storage provides run store implementations.
//
// Implementations:
//   - postgres: gorm-backed event-sourced store (production)
//   - memory: in-memory for testing
package storage
