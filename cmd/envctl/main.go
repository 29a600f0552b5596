package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/envctl/cmd/envctl/commands"
	"github.com/systmms/envctl/internal/config"
	"github.com/systmms/envctl/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		root    string
		env     string
		noColor bool
		debug   bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "envctl",
		Short: "Environment contract tooling - validate and compile local env files",
		Long: `envctl turns a repo's environment contract into a ready-to-use local
env file: it validates declared variables against the contract, resolves
secret references through their backends, and writes redacted reports.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Root = root
			cfg.Env = env
			cfg.Debug = debug
			cfg.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&root, "root", ".", "Project root containing the env/ tree")
	rootCmd.PersistentFlags().StringVar(&env, "env", "dev", "Target environment name")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewDoctorCommand(cfg),
		commands.NewCompileCommand(cfg),
		commands.NewConnectivityCommand(cfg),
		commands.NewGetCommand(cfg),
	)

	return rootCmd.Execute()
}
