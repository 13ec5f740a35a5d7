// Package probe issues single best-effort HTTP reachability checks, from
// the host and from inside a running container. Probes never retry; one
// post-fix reverification is the caller's call to make.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"llmstack/internal/engine"
)

// DefaultTimeout bounds a single probe. Overridable via config.
const DefaultTimeout = 5 * time.Second

// Status is the outcome of one reachability check.
type Status uint8

const (
	Reachable Status = iota
	Unreachable
	Timeout
)

func (s Status) String() string {
	switch s {
	case Reachable:
		return "reachable"
	case Unreachable:
		return "unreachable"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Result carries the probe outcome plus a short human detail
// (HTTP status or error text).
type Result struct {
	Status Status
	Detail string
}

// Ok reports whether the target answered successfully.
func (r Result) Ok() bool { return r.Status == Reachable }

// Probe issues one HTTP GET against url from this process. A response with
// status < 400 counts as reachable.
func Probe(ctx context.Context, url string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Status: Unreachable, Detail: err.Error()}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return Result{Status: Timeout, Detail: fmt.Sprintf("no response within %s", timeout)}
		}
		return Result{Status: Unreachable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{Status: Unreachable, Detail: "HTTP " + resp.Status}
	}
	return Result{Status: Reachable, Detail: "HTTP " + resp.Status}
}

// Execer runs a command inside a named container. engine.Engine.Exec
// satisfies this.
type Execer func(ctx context.Context, container string, argv ...string) ([]byte, error)

// curl exit statuses worth telling apart.
const (
	curlExitCouldNotConnect = 7
	curlExitTimeout         = 28
)

// InContainer runs the same check from inside container using its curl
// binary, so the request traverses the container's network namespace.
func InContainer(ctx context.Context, exec Execer, container, url string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	secs := int(timeout.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}

	out, err := exec(ctx, container, "curl", "-fsS", "--max-time", fmt.Sprint(secs), "-o", "/dev/null", url)
	if err == nil {
		return Result{Status: Reachable}
	}

	switch engine.ExitCode(err) {
	case curlExitTimeout:
		return Result{Status: Timeout, Detail: fmt.Sprintf("no response within %ds", secs)}
	case curlExitCouldNotConnect:
		return Result{Status: Unreachable, Detail: "connection refused"}
	default:
		detail := strings.TrimSpace(string(out))
		if detail == "" {
			detail = err.Error()
		}
		return Result{Status: Unreachable, Detail: detail}
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
