// Package engine detects the active container engine (docker or podman) and
// wraps its CLI. All other packages talk to the engine through this one so
// the inspect/remediate/sync paths can run against a fake in tests.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/containerd/errdefs"
)

// Kind identifies a supported container engine.
type Kind string

const (
	Docker Kind = "docker"
	Podman Kind = "podman"
)

// ErrNoRuntime is returned by Detect when neither engine is installed or
// neither answers a liveness query.
var ErrNoRuntime = errors.New("no container runtime found")

// livenessTimeout bounds the `info` query issued during detection.
const livenessTimeout = 5 * time.Second

// helperImage runs throwaway host-network containers for VM-level queries
// on engines without a machine shell.
const helperImage = "alpine:3.20"

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// LookPath locates a binary on PATH.
type LookPath func(file string) (string, error)

// Engine is a handle to the detected container engine CLI.
type Engine struct {
	Kind Kind
	path string
	run  Runner
	look LookPath
}

type Option func(*Engine)

// WithRunner replaces the process runner. Testing only.
func WithRunner(r Runner) Option {
	return func(e *Engine) { e.run = r }
}

// WithLookPath replaces binary lookup. Testing only.
func WithLookPath(l LookPath) Option {
	return func(e *Engine) { e.look = l }
}

// New returns an Engine for a known kind without probing it.
func New(kind Kind, opts ...Option) *Engine {
	e := &Engine{Kind: kind, path: string(kind), run: runCombined, look: exec.LookPath}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Detect selects the active container engine. In CI contexts docker is tried
// first (hosted runners ship it); interactively podman is tried first. A
// candidate must be on PATH and answer `info` within the liveness timeout.
func Detect(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{run: runCombined, look: exec.LookPath}
	for _, opt := range opts {
		opt(e)
	}

	order := []Kind{Podman, Docker}
	if ciContext() {
		order = []Kind{Docker, Podman}
	}

	var tried []string
	for _, kind := range order {
		path, err := e.look(string(kind))
		if err != nil {
			tried = append(tried, string(kind)+": not installed")
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, livenessTimeout)
		_, err = e.run(probeCtx, path, "info")
		cancel()
		if err != nil {
			slog.Debug("engine liveness query failed", "engine", kind, "error", err)
			tried = append(tried, string(kind)+": not responding")
			continue
		}

		e.Kind = kind
		e.path = path
		slog.Debug("selected container engine", "engine", kind, "path", path)
		return e, nil
	}

	return nil, fmt.Errorf("%w (%s)", ErrNoRuntime, strings.Join(tried, ", "))
}

// Engine "no such object" stderr variants: docker says "No such object" /
// "No such container", podman says "no such container" or "no container
// with name or ID".
var noSuchRe = regexp.MustCompile(`(?i)no such (object|container|image|volume|network)|no (container|volume|network) with name`)

// Command runs one engine subcommand and returns its combined output.
// Object-not-found failures are classified with errdefs.ErrNotFound so
// callers can branch without string matching.
func (e *Engine) Command(ctx context.Context, args ...string) ([]byte, error) {
	out, err := e.run(ctx, e.path, args...)
	if err == nil {
		return out, nil
	}

	msg := strings.TrimSpace(string(out))
	op := e.path
	if len(args) > 0 {
		op += " " + args[0]
	}
	if noSuchRe.MatchString(msg) {
		return out, fmt.Errorf("%s: %s: %w", op, firstLine(msg), errdefs.ErrNotFound)
	}
	if msg == "" {
		return out, fmt.Errorf("%s: %w", op, err)
	}
	return out, fmt.Errorf("%s: %w: %s", op, err, firstLine(msg))
}

// Exec runs a command inside a running container via `<engine> exec`.
func (e *Engine) Exec(ctx context.Context, container string, argv ...string) ([]byte, error) {
	return e.Command(ctx, append([]string{"exec", container}, argv...)...)
}

// VMShell runs a shell script inside the engine's backing virtual machine.
// Podman has a first-class machine shell; for docker the script runs in a
// throwaway host-network helper container, which shares the VM's network
// namespace and therefore sees its routing table.
func (e *Engine) VMShell(ctx context.Context, script string) ([]byte, error) {
	if e.Kind == Podman {
		return e.Command(ctx, "machine", "ssh", script)
	}
	return e.Command(ctx, "run", "--rm", "--net=host", helperImage, "sh", "-c", script)
}

// IsNotFound reports whether err denotes an engine object that does not exist.
func IsNotFound(err error) bool {
	return errdefs.IsNotFound(err)
}

// ExitCode extracts the process exit status carried by err, or -1 when none.
func ExitCode(err error) int {
	var xe *exec.ExitError
	if errors.As(err, &xe) {
		return xe.ExitCode()
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return -1
}

// ExitError conveys a known process exit status when the error did not come
// from os/exec (fake runners in tests, pre-parsed statuses).
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("exit status %d: %s", e.Code, e.Stderr)
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func runCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func ciContext() bool {
	for _, key := range []string{"CI", "GITHUB_ACTIONS"} {
		if envTruthy(key) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
