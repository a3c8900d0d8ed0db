// Package providers contains dependency injection providers for the client
// and backend binaries.
package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// startupTimeout bounds the network work providers do while wiring, such
	// as the first connectivity probe and the first cache worker install.
	startupTimeout = 10 * time.Second
)
