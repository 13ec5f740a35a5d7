package stack

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docker/docker/api/types/container"

	"llmstack"
	"llmstack/internal/engine"
)

// Engine is the subset of the container engine CLI this package drives.
// *engine.Engine satisfies it; tests use a fake.
type Engine interface {
	Command(ctx context.Context, args ...string) ([]byte, error)
}

// Inspect reads a container's current engine state. A name the engine does
// not know yields Exists=false and no error; nothing is cached between
// calls. Podman emits a docker-compatible inspect document for the fields
// read here.
func Inspect(ctx context.Context, eng Engine, name string) (llmstack.Container, error) {
	out, err := eng.Command(ctx, "inspect", "--type", "container", name)
	if err != nil {
		if engine.IsNotFound(err) {
			return llmstack.Container{Name: name}, nil
		}
		return llmstack.Container{}, fmt.Errorf("inspect container %q: %w", name, err)
	}

	var docs []container.InspectResponse
	if err := json.Unmarshal(out, &docs); err != nil {
		return llmstack.Container{}, fmt.Errorf("decode inspect output for %q: %w", name, err)
	}
	if len(docs) == 0 {
		return llmstack.Container{Name: name}, nil
	}

	doc := docs[0]
	rec := llmstack.Container{
		Name:         name,
		Exists:       true,
		RestartCount: doc.RestartCount,
	}
	if doc.State != nil {
		rec.Running = doc.State.Running
		rec.Health = healthStatus(doc.State.Health)
	}
	return rec, nil
}

func healthStatus(h *container.Health) llmstack.HealthStatus {
	if h == nil {
		return llmstack.HealthUnknown
	}
	switch h.Status {
	case container.Healthy:
		return llmstack.HealthHealthy
	case container.Unhealthy:
		return llmstack.HealthUnhealthy
	default:
		// "starting", "none" or anything future: not trusted either way.
		return llmstack.HealthUnknown
	}
}
