// Package stack models the monitored container stack: its compose-file
// definition, per-container engine state, remediation and cleanup.
package stack

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	compose "github.com/compose-spec/compose-go/v2/types"
)

const composeSpecFilename = "compose.yaml"

// RoleLabel marks what part a compose service plays in the stack.
const RoleLabel = "llmstack.role"

const (
	RoleOllama = "ollama" // the inference server
	RoleWebUI  = "webui"  // the web frontend that must reach it
)

// Service is the subset of a compose service needed to inspect and
// recreate its container.
type Service struct {
	Name      string
	Container string
	Image     string
	Role      string
	Env       map[string]string
	Ports     []string // docker -p publish specs, "host:container[/proto]"
	Volumes   []string // docker -v specs, "source:target[:ro]"
	Network   string
}

// Spec is the loaded stack definition.
type Spec struct {
	Name     string
	Services []Service
	Volumes  []string // named top-level volumes
	Networks []string
}

// ByRole returns the first service carrying the given role label.
func (s *Spec) ByRole(role string) (Service, bool) {
	for _, svc := range s.Services {
		if svc.Role == role {
			return svc, true
		}
	}
	return Service{}, false
}

// Load parses a compose YAML document into a Spec. The project name scopes
// default container names the way compose does.
func Load(ctx context.Context, data []byte, project string) (*Spec, error) {
	configDetails := compose.ConfigDetails{
		ConfigFiles: []compose.ConfigFile{
			{Filename: composeSpecFilename, Content: data},
		},
	}

	project = strings.TrimSpace(project)
	if project == "" {
		project = "llmstack"
	}

	p, err := loader.LoadWithContext(ctx, configDetails, func(o *loader.Options) {
		o.SetProjectName(project, true)
	})
	if err != nil {
		return nil, fmt.Errorf("parse compose spec: %w", err)
	}
	if len(p.Services) == 0 {
		return nil, fmt.Errorf("compose spec has no services")
	}

	// Named volumes and networks are referenced by compose key in services
	// but exist under project-scoped engine names; resolve once up front so
	// a recreated container reattaches to what compose actually made.
	volNames := make(map[string]string, len(p.Volumes))
	for key, cfg := range p.Volumes {
		volNames[key] = volumeName(p.Name, key, cfg)
	}
	netNames := make(map[string]string, len(p.Networks))
	for key, cfg := range p.Networks {
		netNames[key] = networkName(p.Name, key, cfg)
	}

	spec := &Spec{Name: p.Name}
	for name, svc := range p.Services {
		spec.Services = append(spec.Services, normalizeService(p.Name, name, svc, volNames, netNames))
	}
	sort.Slice(spec.Services, func(i, j int) bool {
		return spec.Services[i].Name < spec.Services[j].Name
	})

	for _, scoped := range volNames {
		spec.Volumes = append(spec.Volumes, scoped)
	}
	sort.Strings(spec.Volumes)

	for _, scoped := range netNames {
		spec.Networks = append(spec.Networks, scoped)
	}
	sort.Strings(spec.Networks)

	return spec, nil
}

func normalizeService(project, name string, svc compose.ServiceConfig, volNames, netNames map[string]string) Service {
	out := Service{
		Name:      name,
		Container: svc.ContainerName,
		Image:     svc.Image,
		Role:      svc.Labels[RoleLabel],
		Env:       flattenEnv(svc.Environment),
		Ports:     publishSpecs(svc.Ports),
		Volumes:   volumeSpecs(svc.Volumes, volNames),
	}
	if out.Container == "" {
		out.Container = project + "-" + name
	}
	for netName := range svc.Networks {
		if scoped, ok := netNames[netName]; ok {
			out.Network = scoped
		} else {
			out.Network = netName
		}
		break
	}
	return out
}

func flattenEnv(env compose.MappingWithEquals) map[string]string {
	if len(env) == 0 {
		return nil
	}
	out := make(map[string]string, len(env))
	for key, value := range env {
		if value != nil {
			out[key] = *value
		} else {
			out[key] = ""
		}
	}
	return out
}

func publishSpecs(ports []compose.ServicePortConfig) []string {
	out := make([]string, 0, len(ports))
	for _, p := range ports {
		if strings.TrimSpace(p.Published) == "" {
			continue
		}
		spec := fmt.Sprintf("%s:%d", p.Published, p.Target)
		if proto := strings.ToLower(strings.TrimSpace(p.Protocol)); proto != "" && proto != "tcp" {
			spec += "/" + proto
		}
		out = append(out, spec)
	}
	return out
}

func volumeSpecs(volumes []compose.ServiceVolumeConfig, volNames map[string]string) []string {
	out := make([]string, 0, len(volumes))
	for _, v := range volumes {
		if strings.TrimSpace(v.Target) == "" || strings.TrimSpace(v.Source) == "" {
			continue
		}
		source := v.Source
		if scoped, ok := volNames[source]; ok {
			source = scoped
		}
		spec := source + ":" + v.Target
		if v.ReadOnly {
			spec += ":ro"
		}
		out = append(out, spec)
	}
	return out
}

func volumeName(project, key string, cfg compose.VolumeConfig) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return project + "_" + key
}

func networkName(project, key string, cfg compose.NetworkConfig) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return project + "_" + key
}
