package stack

import (
	"context"
	"fmt"
	"sort"

	"github.com/docker/go-connections/nat"
)

// Recreate phases, reported in RecreateError.
const (
	PhaseStop   = "stop"
	PhaseRemove = "remove"
	PhaseCreate = "create"
	PhaseVerify = "verify"
)

// RecreateError says which phase of a recreate failed. The sequence is not
// atomic: a failure in the create phase means the old container is already
// gone, and callers must say so instead of implying a rollback happened.
type RecreateError struct {
	Phase string
	Err   error
}

func (e *RecreateError) Error() string {
	if e.Phase == PhaseCreate {
		return fmt.Sprintf("recreate failed during %s (old container already removed): %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("recreate failed during %s: %v", e.Phase, e.Err)
}

func (e *RecreateError) Unwrap() error { return e.Err }

// Recreate replaces a container with one whose environment carries the
// corrected values in env (overriding the compose-declared ones). Named
// volumes are preserved. When verify is non-nil it runs once after the new
// container starts; its error fails the verify phase.
func Recreate(ctx context.Context, eng Engine, svc Service, env map[string]string, verify func(context.Context) error) error {
	current, err := Inspect(ctx, eng, svc.Container)
	if err != nil {
		return err
	}

	if current.Exists && current.Running {
		if _, err := eng.Command(ctx, "stop", svc.Container); err != nil {
			return &RecreateError{Phase: PhaseStop, Err: err}
		}
	}
	if current.Exists {
		// No -v: named volumes survive the remove.
		if _, err := eng.Command(ctx, "rm", svc.Container); err != nil {
			return &RecreateError{Phase: PhaseRemove, Err: err}
		}
	}

	args, err := runArgs(svc, env)
	if err != nil {
		return &RecreateError{Phase: PhaseCreate, Err: err}
	}
	if _, err := eng.Command(ctx, args...); err != nil {
		return &RecreateError{Phase: PhaseCreate, Err: err}
	}

	if verify != nil {
		if err := verify(ctx); err != nil {
			return &RecreateError{Phase: PhaseVerify, Err: err}
		}
	}
	return nil
}

// runArgs builds the engine `run` invocation for a service, with env
// overrides applied last so they win.
func runArgs(svc Service, overrides map[string]string) ([]string, error) {
	if svc.Image == "" {
		return nil, fmt.Errorf("service %q has no image", svc.Name)
	}

	args := []string{"run", "-d", "--name", svc.Container, "--restart", "unless-stopped"}

	if svc.Network != "" {
		args = append(args, "--network", svc.Network)
	}

	for _, p := range svc.Ports {
		if _, err := nat.ParsePortSpec(p); err != nil {
			return nil, fmt.Errorf("invalid port spec %q: %w", p, err)
		}
		args = append(args, "-p", p)
	}

	for _, v := range svc.Volumes {
		args = append(args, "-v", v)
	}

	merged := make(map[string]string, len(svc.Env)+len(overrides))
	for k, v := range svc.Env {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+merged[k])
	}

	return append(args, svc.Image), nil
}
