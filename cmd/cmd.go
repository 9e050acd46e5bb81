// Package cmd implements the secrnn command line: planning and launching
// fine-tuning sweeps, inspecting checkpoints and runs, scoring saved
// regressors and serving the monitor API.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/edgarlab/secrnn/api"
	"github.com/edgarlab/secrnn/envconfig"
	"github.com/edgarlab/secrnn/logutil"
	"github.com/edgarlab/secrnn/version"
)

func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "secrnn",
		Short:         "SEC filing fine-tuning sweep driver",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if envconfig.Debug() {
				level = slog.LevelDebug
			}
			slog.SetDefault(logutil.NewLogger(os.Stderr, level))
		},
	}

	sweepCmd := NewSweepCmd()
	runsCmd := NewRunsCmd()
	showCmd := NewShowCmd()
	evalCmd := NewEvalCmd()
	pruneCmd := NewPruneCmd()
	serveCmd := NewServeCmd()

	envVars := envconfig.AsMap()
	for _, cmd := range []*cobra.Command{sweepCmd, runsCmd, showCmd, evalCmd, pruneCmd, serveCmd} {
		switch cmd {
		case sweepCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["SECRNN_RUNS"],
				envVars["SECRNN_PYTHON"],
				envVars["SECRNN_ENTRYPOINT"],
				envVars["SECRNN_MAX_PARALLEL"],
			})
		case pruneCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["SECRNN_RUNS"],
				envVars["SECRNN_KEEP_CHECKPOINTS"],
				envVars["SECRNN_NOPRUNE"],
			})
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["SECRNN_HOST"],
				envVars["SECRNN_ORIGINS"],
				envVars["SECRNN_RUNS"],
				envVars["SECRNN_DEBUG"],
			})
		default:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["SECRNN_RUNS"]})
		}
	}

	rootCmd.AddCommand(
		sweepCmd,
		runsCmd,
		showCmd,
		evalCmd,
		pruneCmd,
		serveCmd,
		NewVersionCmd(),
	)

	return rootCmd
}

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

func checkServerHeartbeat(cmd *cobra.Command, _ []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	if err := client.Heartbeat(cmd.Context()); err != nil {
		return fmt.Errorf("could not connect to a secrnn server, is it running? %w", err)
	}

	return nil
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Println("secrnn version", version.Version)

			client, err := api.ClientFromEnvironment()
			if err != nil {
				return err
			}

			if v, err := client.Version(cmd.Context()); err == nil && v != version.Version {
				fmt.Println("server version", v)
			}

			return nil
		},
	}
}
