package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/goatherd"
	"github.com/hupe1980/goatherd/config"
	"github.com/hupe1980/goatherd/logging"

	// Register the built-in provider kinds.
	_ "github.com/hupe1980/goatherd/provider/cli"
	_ "github.com/hupe1980/goatherd/provider/modelapi"
)

var (
	configFile string
	logLevel   string
	logFormat  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "goatherd",
		Short: "Hierarchical agent orchestration with routing, sessions and run ledgers",
		Long: `Goatherd routes user messages to an entry agent and drives a bounded,
planner-directed delegation loop across a roster of agents. Every run is
recorded in a replayable ledger; agent conversations are kept warm through
per-agent session continuity.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "goatherd.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(ledgersCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var agentFlag string
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "run [message]",
		Short: "Route a message and drive one orchestration run to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			herd, err := buildHerd()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, decision, err := herd.HandleFrom(ctx, agentFlag, args[0])
			if err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(os.Stdout, map[string]any{
					"routing": decision,
					"runId":   result.Ledger.RunID,
					"status":  result.Status,
					"final":   result.FinalMessage,
				})
			}

			fmt.Fprintf(os.Stderr, "Routed to %s (confidence %.2f, %s)\n",
				decision.TargetAgentID, decision.Confidence, decision.Reason)
			fmt.Fprintf(os.Stderr, "Run %s finished with status %s after %d steps\n",
				result.Ledger.RunID, result.Status, len(result.Ledger.Steps))
			fmt.Println(result.FinalMessage)
			return nil
		},
	}

	cmd.Flags().StringVar(&agentFlag, "agent", "", "requested entry agent (falls back to default when unknown)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "emit the result as JSON")

	return cmd
}

func routeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route [message]",
		Short: "Show the routing decision for a message without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			herd, err := buildHerd()
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, herd.Route(args[0]))
		},
	}
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage per-agent sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list [agent-id]",
		Short: "List sessions for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			herd, err := buildHerd()
			if err != nil {
				return err
			}
			infos, err := herd.Sessions().List(args[0])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSESSION\tPROJECT\tCOMPACTIONS")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					info.SessionKey, info.SessionID, info.ProjectPath, info.CompactionCount)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset [agent-id] [session-key]",
		Short: "Delete a session so the next run starts fresh",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			herd, err := buildHerd()
			if err != nil {
				return err
			}
			return herd.Sessions().Reset(context.Background(), args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "compact [agent-id] [session-key]",
		Short: "Mark a session compacted, keeping its identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			herd, err := buildHerd()
			if err != nil {
				return err
			}
			info, err := herd.Sessions().Compact(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Session %s compacted %d time(s)\n", info.SessionID, info.CompactionCount)
			return nil
		},
	})

	return cmd
}

func ledgersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledgers",
		Short: "Inspect persisted run ledgers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List run ids with persisted ledgers",
		RunE: func(cmd *cobra.Command, args []string) error {
			herd, err := buildHerd()
			if err != nil {
				return err
			}
			ids, err := herd.Ledgers().List()
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show [run-id]",
		Short: "Print the full ledger for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			herd, err := buildHerd()
			if err != nil {
				return err
			}
			ledger, err := herd.Ledgers().Load(args[0])
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, ledger)
		},
	})

	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file without running anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(configFile); err != nil {
				return err
			}
			fmt.Println("Config is valid.")
			return nil
		},
	}
}

func buildHerd() (*goatherd.Herd, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	logger, err := buildLogger()
	if err != nil {
		return nil, err
	}

	return goatherd.FromConfig(cfg, func(o *goatherd.Options) {
		o.Logger = logger
	})
}

func buildLogger() (logging.Logger, error) {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:  level,
		Format: logFormat,
		Output: os.Stderr,
	}), nil
}

func printJSON(w *os.File, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
