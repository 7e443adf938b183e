package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marksync/internal/app"
	"github.com/MrSnakeDoc/marksync/internal/config"
	"github.com/MrSnakeDoc/marksync/internal/remote"
	"github.com/MrSnakeDoc/marksync/internal/syncer"
)

func newAgentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the sync agent against the configured bookmark tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadAgent()
			log := app.NewLogger(cfg.Common)
			defer func() { _ = log.Sync() }()

			agent, err := app.NewAgent(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			return agent.Run()
		},
	}
}

// controlCmd builds a command that asks the running agent to do something.
// With --local the agent is built in-process for a single command instead.
func controlCmd(use, short, method, path string, local func(context.Context, *app.Agent) (any, error)) *cobra.Command {
	var inProcess bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadAgent()
			if inProcess {
				return runLocal(cmd, cfg, local)
			}
			return runRemote(cmd, cfg, method, path)
		},
	}
	if local != nil {
		cmd.Flags().BoolVar(&inProcess, "local", false, "run in-process instead of asking the running agent")
	}
	return cmd
}

func runRemote(cmd *cobra.Command, cfg *config.AgentConfig, method, path string) error {
	if cfg.ControlAddr == "" {
		return fmt.Errorf("control API disabled (MARKSYNC_CONTROL_ADDR is empty), use --local")
	}
	client := remote.NewControlClient(cfg.ControlAddr, cfg.ControlTimeout)
	status, body, err := client.Call(cmd.Context(), method, path)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), body); err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("agent answered %d", status)
	}
	return nil
}

func runLocal(cmd *cobra.Command, cfg *config.AgentConfig, local func(context.Context, *app.Agent) (any, error)) error {
	log := app.NewLogger(cfg.Common)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ControlTimeout)
	defer cancel()

	agent, err := app.NewAgent(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer agent.Close()

	out, err := local(ctx, agent)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if res, ok := out.(syncer.Result); ok && !res.Success {
		return fmt.Errorf("%s failed: %s", res.Op, res.Error)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSyncCmd() *cobra.Command {
	var (
		source    string
		inProcess bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the bookmark tree with the remote snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadAgent()
			if inProcess {
				return runLocal(cmd, cfg, func(ctx context.Context, a *app.Agent) (any, error) {
					return a.Orchestrator().Sync(ctx, source), nil
				})
			}
			path := "/sync"
			if source != "" {
				path += "?source=" + url.QueryEscape(source)
			}
			return runRemote(cmd, cfg, http.MethodPost, path)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "only sync when this is the configured source id")
	cmd.Flags().BoolVar(&inProcess, "local", false, "run in-process instead of asking the running agent")
	return cmd
}

func newForcePushCmd() *cobra.Command {
	return controlCmd("force-push", "Overwrite the remote snapshot with the local tree", http.MethodPost, "/force-push",
		func(ctx context.Context, a *app.Agent) (any, error) {
			return a.Orchestrator().ForcePush(ctx), nil
		})
}

func newForcePullCmd() *cobra.Command {
	return controlCmd("force-pull", "Overwrite the local tree with the remote snapshot", http.MethodPost, "/force-pull",
		func(ctx context.Context, a *app.Agent) (any, error) {
			return a.Orchestrator().ForcePull(ctx), nil
		})
}

func newStatusCmd() *cobra.Command {
	return controlCmd("status", "Show the agent's sync status", http.MethodGet, "/status",
		func(ctx context.Context, a *app.Agent) (any, error) {
			return a.Orchestrator().Status(ctx), nil
		})
}

func newResetCmd() *cobra.Command {
	// failure counters only live in the running agent
	return controlCmd("reset", "Clear the failure counter and close the circuit breaker", http.MethodPost, "/reset", nil)
}

func newImportCmd() *cobra.Command {
	return controlCmd("import", "Import Homepage bookmarks into the tree", http.MethodPost, "/import",
		func(ctx context.Context, a *app.Agent) (any, error) {
			created, err := a.Import(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"created": created, "at": time.Now().UTC()}, nil
		})
}
