package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/envctl/internal/config"
	"github.com/systmms/envctl/internal/pipeline"
	"github.com/systmms/envctl/internal/project"
	"github.com/systmms/envctl/internal/report"
)

func NewCompileCommand(cfg *config.Config) *cobra.Command {
	var (
		outPath string
		noWrite bool
	)

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Materialize the effective env file for one environment",
		Long: `Merge contract defaults, project values, developer-local values, and
resolved secrets into the local env file for one environment. The env file and
the redacted effective context are only written when every check passes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := project.New(cfg.Root)
			cfg.Logger.Debug("Compiling environment %s under %s", cfg.Env, layout.Root)

			pipe := pipeline.New(layout, cfg.Env, cfg.Logger)
			rep, err := pipe.Compile(context.Background(), noWrite)
			if err != nil {
				return fmt.Errorf("compile failed: %w", err)
			}

			if err := emitReport(outPath, report.RenderCompile(rep)); err != nil {
				return err
			}

			if rep.Status != "PASS" {
				cfg.Logger.Error("Compile found %d problem(s) for env %s", len(rep.Errors), cfg.Env)
				return fmt.Errorf("environment %s failed validation", cfg.Env)
			}
			if noWrite {
				cfg.Logger.Info("✓ Environment %s compiled (dry run, env file not written)", cfg.Env)
			} else {
				cfg.Logger.Info("✓ Wrote %s", rep.EnvFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Write the markdown report to this file instead of stdout")
	cmd.Flags().BoolVar(&noWrite, "no-write", false, "Validate and report without writing the env file")

	return cmd
}
