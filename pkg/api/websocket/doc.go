// Package websocket streams run lifecycle events to connected clients.
package websocket
