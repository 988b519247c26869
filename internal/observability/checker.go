package observability

import "context"

// Checker is implemented by backend dependencies that report health status
// through the readiness probe. Implementations must be safe for concurrent
// use and must honor the context deadline.
type Checker interface {
	// Name identifies the dependency ("postgres", "redis").
	Name() string
	// Check returns nil when the dependency is reachable and healthy.
	Check(ctx context.Context) error
}
