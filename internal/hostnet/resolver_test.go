package hostnet

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"testing"
)

// scriptShell routes each VMShell script to a canned response keyed on a
// distinguishing substring.
func scriptShell(t *testing.T, responses map[string]string, errs map[string]error) Shell {
	t.Helper()
	return func(ctx context.Context, script string) ([]byte, error) {
		for key, err := range errs {
			if strings.Contains(script, key) {
				return nil, err
			}
		}
		for key, out := range responses {
			if strings.Contains(script, key) {
				return []byte(out), nil
			}
		}
		return nil, fmt.Errorf("unexpected script %q", script)
	}
}

func TestResolveViaAlias(t *testing.T) {
	shell := scriptShell(t, map[string]string{
		"getent": "172.17.144.1    host.containers.internal\n",
	}, nil)

	ep, err := NewResolver(shell, 11434).Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ep.Method != MethodDNS {
		t.Fatalf("Method = %q, want dns", ep.Method)
	}
	if want := netip.MustParseAddr("172.17.144.1"); ep.Addr != want {
		t.Fatalf("Addr = %s, want %s", ep.Addr, want)
	}
	if got := ep.URL("/api/tags"); got != "http://172.17.144.1:11434/api/tags" {
		t.Fatalf("URL = %q", got)
	}
}

func TestResolveRejectsLinkLocalAliasAndFallsBackToGateway(t *testing.T) {
	shell := scriptShell(t, map[string]string{
		"getent": "169.254.44.5    host.containers.internal\n",
		"route":  "default via 172.17.144.1 dev eth0 proto dhcp metric 100\n",
	}, nil)

	ep, err := NewResolver(shell, 11434).Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ep.Method != MethodGateway {
		t.Fatalf("Method = %q, want gateway after link-local alias rejected", ep.Method)
	}
	if want := netip.MustParseAddr("172.17.144.1"); ep.Addr != want {
		t.Fatalf("Addr = %s, want %s", ep.Addr, want)
	}
}

func TestResolveFallsBackToMachineAddrs(t *testing.T) {
	shell := scriptShell(t, map[string]string{
		"addr show": "2: eth0    inet 192.168.127.2/24 brd 192.168.127.255 scope global eth0\n",
	}, map[string]error{
		"getent": errors.New("getent: command not found"),
		"route":  errors.New("exit status 1"),
	})

	ep, err := NewResolver(shell, 11434).Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ep.Method != MethodMachineAddrs {
		t.Fatalf("Method = %q, want machine-addrs", ep.Method)
	}
	if want := netip.MustParseAddr("192.168.127.2"); ep.Addr != want {
		t.Fatalf("Addr = %s, want %s", ep.Addr, want)
	}
}

func TestResolveNeverReturnsLinkLocal(t *testing.T) {
	// Every strategy yields only link-local answers: resolution must fail
	// rather than hand back a non-routable address.
	shell := scriptShell(t, map[string]string{
		"getent":    "169.254.44.5    host.containers.internal\n",
		"route":     "default via 169.254.0.1 dev eth0\n",
		"addr show": "2: eth0    inet 169.254.13.8/16 scope global eth0\n",
	}, nil)

	_, err := NewResolver(shell, 11434).Resolve(context.Background())
	if !errors.Is(err, ErrHostResolutionFailed) {
		t.Fatalf("err = %v, want ErrHostResolutionFailed", err)
	}
}

func TestDefaultRouteParsing(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    string
		wantErr bool
	}{
		{"plain", "default via 172.17.144.1 dev eth0\n", "172.17.144.1", false},
		{"wsl style with metric", "default via 172.25.32.1 dev eth0 proto kernel\n", "172.25.32.1", false},
		{"no default route", "172.17.0.0/16 dev docker0 proto kernel scope link\n", "", true},
		{"empty output", "", "", true},
		{"garbage is not substring-matched", "not a route but mentions default via nothing\n", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shell := func(ctx context.Context, script string) ([]byte, error) {
				return []byte(tt.out), nil
			}
			r := NewResolver(shell, 11434)

			addr, err := r.defaultGateway(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parsed %s, want error", addr)
				}
				return
			}
			if err != nil {
				t.Fatalf("defaultGateway: %v", err)
			}
			if addr != netip.MustParseAddr(tt.want) {
				t.Fatalf("addr = %s, want %s", addr, tt.want)
			}
		})
	}
}

func TestRoutable(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"172.17.144.1", true},
		{"10.0.2.2", true},
		{"169.254.0.1", false},
		{"127.0.0.1", false},
		{"0.0.0.0", false},
		{"fd00::1", false},
	}
	for _, tt := range tests {
		if got := routable(netip.MustParseAddr(tt.addr)); got != tt.want {
			t.Errorf("routable(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
