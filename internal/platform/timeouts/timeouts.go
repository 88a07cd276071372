// Package timeouts defines shared timeout constants used across the app.
// Centralizing these values prevents drift between surfaces and makes the
// durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// LinkFetch caps the time spent fetching a submitted resource URL for
// title extraction.
const LinkFetch = 3 * time.Second
