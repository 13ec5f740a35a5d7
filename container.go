package llmstack

// HealthStatus is the engine-reported health-check result for a container.
type HealthStatus uint8

const (
	HealthUnknown   HealthStatus = iota // no health check configured, or still starting
	HealthHealthy                       // last health check passed
	HealthUnhealthy                     // health check failing
)

func (h HealthStatus) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// DefaultRestartLoopThreshold is the restart count above which a container
// is reported as restart-looping. Overridable via config.
const DefaultRestartLoopThreshold = 3

// Container is a point-in-time snapshot of one container's engine state.
// It is read fresh on every inspection and never cached across runs.
// When Exists is false no other field carries meaning.
type Container struct {
	Name         string
	Exists       bool
	Running      bool
	RestartCount int
	Health       HealthStatus
}

// RestartLooping reports whether the container has crossed the restart-loop
// threshold. This is a reporting signal only; it holds regardless of the
// current running or health state.
func (c Container) RestartLooping(threshold int) bool {
	return c.Exists && c.RestartCount > threshold
}
