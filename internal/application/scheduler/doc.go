// Package scheduler coordinates the run lifecycle: it validates and
// persists run requests, dispatches them to registered workers over the
// event bus, records lifecycle events, and enforces run timeouts.
package scheduler
