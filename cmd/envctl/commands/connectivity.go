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

func NewConnectivityCommand(cfg *config.Config) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "connectivity",
		Short: "Probe every url-typed value for reachability",
		Long: `Build the effective mapping in memory and probe each url-typed value:
sqlite URLs are checked for a usable database path, and URLs with a host and
port get a short TCP dial. Values without a probeable target are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := project.New(cfg.Root)
			cfg.Logger.Debug("Probing connectivity for env %s under %s", cfg.Env, layout.Root)

			pipe := pipeline.New(layout, cfg.Env, cfg.Logger)
			rep, errors, warnings, status := pipe.Connectivity(context.Background())

			md := report.RenderConnectivity(cfg.Env, rep.TimestampUTC, status, errors, warnings, rep.Checks)
			if err := emitReport(outPath, md); err != nil {
				return err
			}

			if status != "PASS" {
				cfg.Logger.Error("Connectivity checks failed for env %s", cfg.Env)
				return fmt.Errorf("environment %s failed connectivity checks", cfg.Env)
			}
			cfg.Logger.Info("✓ Connectivity checks passed for env %s", cfg.Env)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Write the markdown report to this file instead of stdout")

	return cmd
}
