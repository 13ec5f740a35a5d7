// Package doctorcmd implements "llmstack doctor": a read-only diagnostic
// pass over the stack, with opt-in remediation behind --fix.
package doctorcmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	llmstack "llmstack"
	"llmstack/cmd/llmstack/cmdutil"
	"llmstack/cmd/llmstack/ui"
	"llmstack/config"
	"llmstack/internal/clockcheck"
	"llmstack/internal/engine"
	"llmstack/internal/hostnet"
	"llmstack/internal/probe"
	"llmstack/internal/report"
	"llmstack/internal/stack"

	"github.com/spf13/cobra"
)

// Cmd returns the "llmstack doctor" command.
func Cmd() *cobra.Command {
	var (
		configPath string
		fix        bool
		full       bool
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the stack's containers and connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := cmdutil.LoadConfig(configPath)
			if err != nil {
				return err
			}
			eng, err := cmdutil.DetectEngine(ctx)
			if err != nil {
				return err
			}
			spec, err := cmdutil.LoadSpec(ctx, cfg)
			if err != nil {
				return err
			}

			rep := report.New()
			diagnose(ctx, rep, eng, cfg, spec, fix, full)

			if jsonOut {
				if err := rep.WriteJSON(os.Stdout); err != nil {
					return err
				}
			} else {
				printReport(rep)
			}

			if !rep.Ok() {
				return fmt.Errorf("%d of %d checks failed", rep.Failed(), len(rep.Results()))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path")
	cmd.Flags().BoolVar(&fix, "fix", false, "Recreate the frontend container when it cannot reach the host")
	cmd.Flags().BoolVar(&full, "full", false, "Also check clock drift and stack volumes")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the report as JSON on stdout")
	return cmd
}

func diagnose(ctx context.Context, rep *report.Run, eng *engine.Engine, cfg *config.Config, spec *stack.Spec, fix, full bool) {
	rep.Info("engine", string(eng.Kind))

	hostURL := fmt.Sprintf("http://127.0.0.1:%d/api/tags", cfg.OllamaPort)
	if res := probe.Probe(ctx, hostURL, cfg.ProbeTimeout()); res.Ok() {
		rep.Pass("ollama host port", "reachable at "+hostURL)
	} else {
		rep.Fail("ollama host port", res.Status.String(), res.Detail)
	}

	webui, hasWebUI := spec.ByRole(stack.RoleWebUI)
	var ctr llmstack.Container
	if !hasWebUI {
		rep.Skip("webui container", "no service labeled "+stack.RoleLabel+"="+stack.RoleWebUI)
	} else {
		ctr = inspectWebUI(ctx, rep, eng, cfg, webui)
	}

	ep, resolved := resolveHost(ctx, rep, eng, cfg)

	containerOK := false
	switch {
	case !hasWebUI:
		rep.Skip("container connectivity", "no frontend container to probe from")
	case !resolved:
		rep.Skip("container connectivity", "host address unresolved")
	case !ctr.Running:
		rep.Skip("container connectivity", webui.Container+" is not running")
	default:
		res := probe.InContainer(ctx, eng.Exec, webui.Container, ep.URL("/api/tags"), cfg.ProbeTimeout())
		if res.Ok() {
			containerOK = true
			rep.Pass("container connectivity", webui.Container+" reaches "+ep.String())
		} else {
			rep.Fail("container connectivity", res.Status.String(), res.Detail)
		}
	}

	if fix {
		remediate(ctx, rep, eng, cfg, webui, hasWebUI && ctr.Exists, resolved, containerOK, ep)
	}

	if full {
		checkClock(rep, cfg)
		checkVolumes(ctx, rep, eng, spec)
	}
}

// inspectWebUI records the frontend container's state. Restart looping and
// an unhealthy healthcheck are independent failures; both are reported.
func inspectWebUI(ctx context.Context, rep *report.Run, eng *engine.Engine, cfg *config.Config, svc stack.Service) llmstack.Container {
	ctr, err := stack.Inspect(ctx, eng, svc.Container)
	if err != nil {
		rep.Fail("webui container", "inspect failed", err.Error())
		return ctr
	}

	switch {
	case !ctr.Exists:
		rep.Fail("webui container", svc.Container+" does not exist", "run your compose tool to create it")
	case !ctr.Running:
		rep.Fail("webui container", svc.Container+" is not running", "")
	default:
		rep.Pass("webui container", svc.Container+" is running")
	}

	if ctr.RestartLooping(cfg.RestartLoopThreshold) {
		rep.Fail("webui restarts", fmt.Sprintf("%d restarts exceeds threshold %d", ctr.RestartCount, cfg.RestartLoopThreshold), "the container is crash-looping; check its logs")
	}
	if ctr.Health == llmstack.HealthUnhealthy {
		rep.Fail("webui health", svc.Container+" reports unhealthy", "")
	}
	return ctr
}

func resolveHost(ctx context.Context, rep *report.Run, eng *engine.Engine, cfg *config.Config) (hostnet.Endpoint, bool) {
	ep, err := hostnet.NewResolver(eng.VMShell, cfg.OllamaPort).Resolve(ctx)
	if err != nil {
		rep.Fail("host address", "could not resolve a host-reachable address", err.Error())
		return hostnet.Endpoint{}, false
	}
	rep.Pass("host address", ep.String()+" via "+string(ep.Method))
	return ep, true
}

// remediate recreates the frontend container pointed at the resolved host
// address, then reverifies connectivity once. It only acts when the
// in-container probe failed and there is a healthy target to point at.
func remediate(ctx context.Context, rep *report.Run, eng *engine.Engine, cfg *config.Config, svc stack.Service, exists, resolved, containerOK bool, ep hostnet.Endpoint) {
	switch {
	case containerOK:
		rep.Skip("fix", "container connectivity is healthy; nothing to do")
		return
	case !resolved:
		rep.Skip("fix", "no resolved host address to point the container at")
		return
	case !exists:
		rep.Skip("fix", "frontend container does not exist; nothing to recreate")
		return
	}

	env := map[string]string{"OLLAMA_BASE_URL": ep.URL("")}
	verify := func(ctx context.Context) error {
		res := probe.InContainer(ctx, eng.Exec, svc.Container, ep.URL("/api/tags"), cfg.ProbeTimeout())
		if !res.Ok() {
			return errors.New(res.Detail)
		}
		return nil
	}

	if err := stack.Recreate(ctx, eng, svc, env, verify); err != nil {
		rep.Fail("fix", "recreate "+svc.Container, err.Error())
		return
	}
	rep.Pass("fix", svc.Container+" recreated with OLLAMA_BASE_URL="+ep.URL(""))
}

func checkClock(rep *report.Run, cfg *config.Config) {
	res := clockcheck.Check(cfg.NTPPool, clockcheck.DefaultThreshold)
	switch {
	case res.Err != nil:
		rep.Skip("clock", "ntp query failed: "+res.Err.Error())
	case res.Healthy:
		rep.Pass("clock", fmt.Sprintf("offset %s from %s", res.Offset, cfg.NTPPool))
	default:
		rep.Fail("clock", fmt.Sprintf("system clock drifted by %s", res.Offset), "registry TLS handshakes fail on large drift; resync the clock")
	}
}

func checkVolumes(ctx context.Context, rep *report.Run, eng *engine.Engine, spec *stack.Spec) {
	for _, vol := range spec.Volumes {
		_, err := eng.Command(ctx, "volume", "inspect", vol)
		switch {
		case err == nil:
			rep.Info("volume "+vol, "present")
		case engine.IsNotFound(err):
			rep.Skip("volume "+vol, "not created yet")
		default:
			rep.Fail("volume "+vol, "inspect failed", err.Error())
		}
	}
}

func printReport(rep *report.Run) {
	for _, res := range rep.Results() {
		fmt.Println(ui.ResultLine(res))
	}
	fmt.Printf("\n%s passed, %s failed, %s skipped\n",
		ui.Bold(fmt.Sprint(rep.Passed())),
		ui.Bold(fmt.Sprint(rep.Failed())),
		ui.Bold(fmt.Sprint(rep.Skipped())))
}
