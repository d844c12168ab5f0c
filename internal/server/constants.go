// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Timeout for pushing one event to one WebSocket client.
	BroadcastWriteTimeout = 2 * time.Second
)
