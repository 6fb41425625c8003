package server

import "context"

// Server is a long-running component with a blocking Start and a graceful
// Stop.
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
