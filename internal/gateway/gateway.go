// Package gateway hosts the long-running front ends: the HTTP backend the
// chat client talks to and the Telegram bot that drives sessions.
package gateway

import "context"

// Gateway is a front end with a blocking run loop.
type Gateway interface {
	// Start serves until ctx is done or the gateway fails.
	Start(ctx context.Context) error
	// Stop shuts the gateway down.
	Stop() error
}
