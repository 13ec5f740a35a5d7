// Package hostnet resolves the address a container must use to reach a
// service on the host. Under a virtualized engine backend the well-known
// host alias can resolve to a link-local address that routes nowhere, so
// resolution runs an ordered list of strategies and rejects link-local
// results outright.
package hostnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"regexp"
	"strings"
)

// Method names the strategy that produced a resolved endpoint.
type Method string

const (
	MethodDNS          Method = "dns"           // host alias via the VM's resolver
	MethodGateway      Method = "gateway"       // VM default-route gateway
	MethodMachineAddrs Method = "machine-addrs" // first global address assigned to the VM
)

// ErrHostResolutionFailed is returned when every strategy is exhausted.
// Callers must surface this; there is no usable fallback address.
var ErrHostResolutionFailed = errors.New("host resolution failed")

// Host aliases injected by the engines, in probe order.
var hostAliases = []string{"host.containers.internal", "host.docker.internal"}

// Shell runs a script inside the engine's backing VM. engine.Engine.VMShell
// satisfies this.
type Shell func(ctx context.Context, script string) ([]byte, error)

// Endpoint is a resolved host-reachable address with its provenance.
type Endpoint struct {
	Addr   netip.Addr
	Port   uint16
	Method Method
}

func (e Endpoint) String() string {
	return netip.AddrPortFrom(e.Addr, e.Port).String()
}

// URL builds an http URL for the endpoint; path may be empty.
func (e Endpoint) URL(path string) string {
	return "http://" + e.String() + path
}

// Resolver finds a routable host address by running strategies in order.
type Resolver struct {
	shell Shell
	port  uint16
}

func NewResolver(shell Shell, port uint16) *Resolver {
	return &Resolver{shell: shell, port: port}
}

// Resolve tries each strategy in order and returns the first routable
// address. Link-local results (169.254.0.0/16) are never accepted; the next
// strategy is attempted instead.
func (r *Resolver) Resolve(ctx context.Context) (Endpoint, error) {
	strategies := []struct {
		method Method
		fn     func(context.Context) (netip.Addr, error)
	}{
		{MethodDNS, r.lookupAlias},
		{MethodGateway, r.defaultGateway},
		{MethodMachineAddrs, r.machineAddrs},
	}

	var attempts []string
	for _, s := range strategies {
		addr, err := s.fn(ctx)
		if err != nil {
			slog.Debug("host resolution strategy failed", "method", s.method, "error", err)
			attempts = append(attempts, fmt.Sprintf("%s: %v", s.method, err))
			continue
		}
		if !routable(addr) {
			slog.Debug("host resolution strategy returned non-routable address", "method", s.method, "addr", addr)
			attempts = append(attempts, fmt.Sprintf("%s: %s is not routable", s.method, addr))
			continue
		}
		return Endpoint{Addr: addr, Port: r.port, Method: s.method}, nil
	}

	return Endpoint{}, fmt.Errorf("%w (%s)", ErrHostResolutionFailed, strings.Join(attempts, "; "))
}

// lookupAlias resolves the engine's host alias with the VM's own resolver.
func (r *Resolver) lookupAlias(ctx context.Context) (netip.Addr, error) {
	script := fmt.Sprintf("getent hosts %s", strings.Join(hostAliases, " "))
	out, err := r.shell(ctx, script)
	if err != nil {
		return netip.Addr{}, err
	}
	for line := range strings.Lines(string(out)) {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		addr, err := netip.ParseAddr(fields[0])
		if err != nil {
			continue
		}
		return addr, nil
	}
	return netip.Addr{}, fmt.Errorf("alias did not resolve")
}

// defaultRouteRe parses one line of `ip -4 route show default`. Anything
// that does not match is a hard failure; substring presence is never
// trusted.
var defaultRouteRe = regexp.MustCompile(`^default via (?P<gateway>(?:\d{1,3}\.){3}\d{1,3}) dev (?P<dev>\S+)`)

// defaultGateway reads the VM's default route and extracts the gateway.
func (r *Resolver) defaultGateway(ctx context.Context) (netip.Addr, error) {
	out, err := r.shell(ctx, "ip -4 route show default")
	if err != nil {
		return netip.Addr{}, err
	}
	for line := range strings.Lines(string(out)) {
		m := defaultRouteRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		gw := m[defaultRouteRe.SubexpIndex("gateway")]
		addr, err := netip.ParseAddr(gw)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("parse gateway %q: %w", gw, err)
		}
		return addr, nil
	}
	return netip.Addr{}, fmt.Errorf("no default route line matched")
}

// inetRe extracts addresses from `ip -4 -o addr show` one-line output.
var inetRe = regexp.MustCompile(`inet (?P<addr>(?:\d{1,3}\.){3}\d{1,3})/\d+`)

// machineAddrs lists the VM's assigned IPv4 addresses and picks the first
// routable one.
func (r *Resolver) machineAddrs(ctx context.Context) (netip.Addr, error) {
	out, err := r.shell(ctx, "ip -4 -o addr show scope global")
	if err != nil {
		return netip.Addr{}, err
	}
	for line := range strings.Lines(string(out)) {
		m := inetRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		addr, err := netip.ParseAddr(m[inetRe.SubexpIndex("addr")])
		if err != nil {
			continue
		}
		if routable(addr) {
			return addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("no global address assigned")
}

// routable rejects link-local, loopback, unspecified and non-IPv4 results.
func routable(addr netip.Addr) bool {
	return addr.Is4() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLoopback() &&
		!addr.IsUnspecified()
}
