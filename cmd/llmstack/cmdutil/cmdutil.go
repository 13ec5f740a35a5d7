// Package cmdutil holds the setup steps shared by every subcommand:
// loading configuration, parsing the stack definition and finding a
// live container engine.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"os"

	"llmstack/config"
	"llmstack/internal/engine"
	"llmstack/internal/stack"
)

// LoadConfig reads the config at path, or the default location when path
// is empty.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

// LoadSpec reads and parses the compose file named by the config.
func LoadSpec(ctx context.Context, cfg *config.Config) (*stack.Spec, error) {
	data, err := os.ReadFile(cfg.ComposeFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", cfg.ComposeFile, err)
	}
	spec, err := stack.Load(ctx, data, cfg.Project)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.ComposeFile, err)
	}
	return spec, nil
}

// DetectEngine finds a live container engine, turning the no-runtime case
// into an actionable message.
func DetectEngine(ctx context.Context) (*engine.Engine, error) {
	eng, err := engine.Detect(ctx)
	if err != nil {
		if errors.Is(err, engine.ErrNoRuntime) {
			return nil, fmt.Errorf("%w; install docker or podman and make sure its daemon or machine is running", err)
		}
		return nil, err
	}
	return eng, nil
}
