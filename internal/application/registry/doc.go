// Package registry tracks the workers registered with the control plane.
// Workers announce the graphs they can execute, send periodic heartbeats,
// and are expired by a background sweep when they go silent.
package registry
