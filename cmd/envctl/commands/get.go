package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/envctl/internal/config"
	"github.com/systmms/envctl/internal/errors"
	"github.com/systmms/envctl/internal/pipeline"
	"github.com/systmms/envctl/internal/project"
)

func NewGetCommand(cfg *config.Config) *cobra.Command {
	var varName string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get a single effective value",
		Long: `Resolve and print one variable's effective value to stdout.

Only the raw value is printed, making it suitable for scripting. Secret
variables are resolved through their backend; this is the only command that
outputs secret material outside the local env file.

Examples:
  # Read a non-secret value
  envctl get --var DATABASE_URL

  # Use in scripts
  export API_KEY=$(envctl get --env staging --var API_KEY)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if varName == "" {
				return errors.UserError{
					Message:    "Variable name is required",
					Suggestion: "Use --var <VARIABLE_NAME> to specify which variable to get",
				}
			}

			layout := project.New(cfg.Root)
			pipe := pipeline.New(layout, cfg.Env, cfg.Logger)

			value, err := pipe.Get(context.Background(), varName)
			if err != nil {
				return err
			}

			fmt.Println(value)
			return nil
		},
	}

	cmd.Flags().StringVar(&varName, "var", "", "Variable name to resolve")

	return cmd
}
