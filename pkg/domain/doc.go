// Package domain defines the core entities shared by the control plane,
// the storage and event adapters, and the worker SDK: assistants, runs,
// threads, conversation messages and run lifecycle events.
package domain
