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

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate contract, values, and secret availability",
		Long: `Validate the environment contract and the value layers for one
environment, and check that every referenced secret is available from its
backend. No secret material is printed and no env file is written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := project.New(cfg.Root)
			cfg.Logger.Debug("Checking environment %s under %s", cfg.Env, layout.Root)

			pipe := pipeline.New(layout, cfg.Env, cfg.Logger)
			summary := pipe.Doctor(context.Background())

			if err := emitReport(outPath, report.RenderDoctor(summary)); err != nil {
				return err
			}

			if summary.Status != "PASS" {
				cfg.Logger.Error("Doctor found %d problem(s) for env %s", len(summary.Errors), cfg.Env)
				return fmt.Errorf("environment %s failed validation", cfg.Env)
			}
			cfg.Logger.Info("✓ Environment %s is ready", cfg.Env)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Write the markdown report to this file instead of stdout")

	return cmd
}
