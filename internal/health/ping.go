package health

import "context"

// HealthPinger is implemented by components that can probe their backing
// dependency directly. A nil return means the component is usable.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}
