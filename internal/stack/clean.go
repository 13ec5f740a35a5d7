package stack

import (
	"context"

	"llmstack/internal/engine"
)

// CleanOptions selects which resource kinds Clean removes beyond containers.
type CleanOptions struct {
	Volumes  bool
	Networks bool
}

// CleanResult records one removal attempt. Err is nil on success; a
// resource that was already absent is reported with Skipped=true.
type CleanResult struct {
	Kind    string // container, volume, network
	Name    string
	Skipped bool
	Err     error
}

// Clean stops and removes the stack's containers, then optionally its named
// volumes and networks. A failure on one item is recorded and the remaining
// items are still processed.
func Clean(ctx context.Context, eng Engine, spec *Spec, opts CleanOptions) []CleanResult {
	var results []CleanResult

	for _, svc := range spec.Services {
		results = append(results, cleanContainer(ctx, eng, svc.Container))
	}

	if opts.Volumes {
		for _, name := range spec.Volumes {
			results = append(results, cleanResource(ctx, eng, "volume", name))
		}
	}
	if opts.Networks {
		for _, name := range spec.Networks {
			results = append(results, cleanResource(ctx, eng, "network", name))
		}
	}

	return results
}

func cleanContainer(ctx context.Context, eng Engine, name string) CleanResult {
	res := CleanResult{Kind: "container", Name: name}

	current, err := Inspect(ctx, eng, name)
	if err != nil {
		res.Err = err
		return res
	}
	if !current.Exists {
		res.Skipped = true
		return res
	}

	if current.Running {
		if _, err := eng.Command(ctx, "stop", name); err != nil {
			res.Err = err
			return res
		}
	}
	if _, err := eng.Command(ctx, "rm", name); err != nil {
		res.Err = err
	}
	return res
}

func cleanResource(ctx context.Context, eng Engine, kind, name string) CleanResult {
	res := CleanResult{Kind: kind, Name: name}
	if _, err := eng.Command(ctx, kind, "rm", name); err != nil {
		if engine.IsNotFound(err) {
			res.Skipped = true
			return res
		}
		res.Err = err
	}
	return res
}
