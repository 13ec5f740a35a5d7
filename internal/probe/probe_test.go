package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"llmstack/internal/engine"
)

func TestProbeReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	res := Probe(context.Background(), srv.URL+"/api/tags", time.Second)
	if res.Status != Reachable {
		t.Fatalf("Status = %s (%s), want reachable", res.Status, res.Detail)
	}
}

func TestProbeHTTPErrorIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := Probe(context.Background(), srv.URL, time.Second)
	if res.Status != Unreachable {
		t.Fatalf("Status = %s, want unreachable on HTTP 500", res.Status)
	}
}

func TestProbeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listens any more

	res := Probe(context.Background(), url, time.Second)
	if res.Status != Unreachable {
		t.Fatalf("Status = %s, want unreachable", res.Status)
	}
}

func TestProbeTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	res := Probe(context.Background(), srv.URL, 50*time.Millisecond)
	if res.Status != Timeout {
		t.Fatalf("Status = %s (%s), want timeout", res.Status, res.Detail)
	}
}

func TestInContainer(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"success", nil, Reachable},
		{"curl timeout", &engine.ExitError{Code: 28}, Timeout},
		{"connection refused", &engine.ExitError{Code: 7}, Unreachable},
		{"curl missing", errors.New("exec: curl: executable file not found"), Unreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotArgv []string
			exec := func(ctx context.Context, container string, argv ...string) ([]byte, error) {
				gotArgv = argv
				return nil, tt.err
			}

			res := InContainer(context.Background(), exec, "webui", "http://172.17.144.1:11434/api/tags", 5*time.Second)
			if res.Status != tt.want {
				t.Fatalf("Status = %s, want %s", res.Status, tt.want)
			}
			if gotArgv[0] != "curl" {
				t.Fatalf("argv = %v, want curl invocation", gotArgv)
			}
		})
	}
}
