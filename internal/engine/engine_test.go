package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func fakeLook(installed ...string) LookPath {
	return func(file string) (string, error) {
		for _, name := range installed {
			if name == file {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("executable file not found in $PATH")
	}
}

func TestDetectPrefersFirstResponding(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")

	var probed []string
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		probed = append(probed, name)
		return nil, nil
	}

	eng, err := Detect(context.Background(), WithRunner(run), WithLookPath(fakeLook("podman", "docker")))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if eng.Kind != Podman {
		t.Fatalf("Kind = %q, want podman first in interactive context", eng.Kind)
	}
	if len(probed) != 1 || probed[0] != "/usr/bin/podman" {
		t.Fatalf("probed %v, want single podman liveness query", probed)
	}
}

func TestDetectPrefersDockerInCI(t *testing.T) {
	t.Setenv("CI", "true")

	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, nil
	}

	eng, err := Detect(context.Background(), WithRunner(run), WithLookPath(fakeLook("podman", "docker")))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if eng.Kind != Docker {
		t.Fatalf("Kind = %q, want docker in CI context", eng.Kind)
	}
}

func TestDetectFallsBackWhenFirstNotResponding(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")

	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if name == "/usr/bin/podman" {
			return []byte("Cannot connect to Podman"), errors.New("exit status 125")
		}
		return nil, nil
	}

	eng, err := Detect(context.Background(), WithRunner(run), WithLookPath(fakeLook("podman", "docker")))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if eng.Kind != Docker {
		t.Fatalf("Kind = %q, want docker after podman liveness failure", eng.Kind)
	}
}

func TestDetectNoRuntime(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")

	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("should not be called")
	}

	_, err := Detect(context.Background(), WithRunner(run), WithLookPath(fakeLook()))
	if !errors.Is(err, ErrNoRuntime) {
		t.Fatalf("err = %v, want ErrNoRuntime", err)
	}
}

func TestCommandClassifiesNotFound(t *testing.T) {
	tests := []struct {
		name         string
		output       string
		wantNotFound bool
	}{
		{"docker no such object", "Error: No such object: webui", true},
		{"podman no such container", `Error: no such container "webui"`, true},
		{"podman no container with name", "Error: no container with name or ID webui found", true},
		{"unrelated failure", "Error: context deadline exceeded", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
				return []byte(tt.output), errors.New("exit status 1")
			}
			eng := New(Docker, WithRunner(run))

			_, err := eng.Command(context.Background(), "inspect", "webui")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsNotFound(err); got != tt.wantNotFound {
				t.Fatalf("IsNotFound = %v, want %v (err: %v)", got, tt.wantNotFound, err)
			}
		})
	}
}

func TestExecBuildsExecInvocation(t *testing.T) {
	var gotArgs []string
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte("ok"), nil
	}
	eng := New(Podman, WithRunner(run))

	out, err := eng.Exec(context.Background(), "webui", "curl", "-fsS", "http://10.0.0.1:11434/api/tags")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if string(out) != "ok" {
		t.Fatalf("out = %q", out)
	}
	want := fmt.Sprintf("%v", []string{"exec", "webui", "curl", "-fsS", "http://10.0.0.1:11434/api/tags"})
	if fmt.Sprintf("%v", gotArgs) != want {
		t.Fatalf("args = %v, want %v", gotArgs, want)
	}
}

func TestVMShellPerEngine(t *testing.T) {
	tests := []struct {
		kind     Kind
		wantHead []string
	}{
		{Podman, []string{"machine", "ssh"}},
		{Docker, []string{"run", "--rm", "--net=host"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			var gotArgs []string
			run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
				gotArgs = args
				return nil, nil
			}
			eng := New(tt.kind, WithRunner(run))

			if _, err := eng.VMShell(context.Background(), "ip -4 route show default"); err != nil {
				t.Fatalf("VMShell: %v", err)
			}
			for i, want := range tt.wantHead {
				if i >= len(gotArgs) || gotArgs[i] != want {
					t.Fatalf("args = %v, want prefix %v", gotArgs, tt.wantHead)
				}
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(&ExitError{Code: 28}); got != 28 {
		t.Fatalf("ExitCode = %d, want 28", got)
	}
	if got := ExitCode(errors.New("plain")); got != -1 {
		t.Fatalf("ExitCode = %d, want -1", got)
	}
	wrapped := fmt.Errorf("exec in container: %w", &ExitError{Code: 7})
	if got := ExitCode(wrapped); got != 7 {
		t.Fatalf("ExitCode(wrapped) = %d, want 7", got)
	}
}
