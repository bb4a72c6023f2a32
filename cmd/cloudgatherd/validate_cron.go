package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudgather/cloudgather/internal/cronspec"
)

// newValidateCronCmd is a thin CLI exposer over internal/cronspec.Validate,
// letting an operator check a schedule expression without standing up a
// task or hitting the control plane (§6.4's validate endpoint, offline).
func newValidateCronCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-cron <expr>",
		Short: "validate a cron expression and print its next fire time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := cronspec.Validate(args[0], time.Now())
			if err != nil {
				return fmt.Errorf("invalid cron expression: %w", err)
			}

			fmt.Printf("canonical: %s\nnext fire: %s\n", result.Canonical, formatTime(result.NextFire))

			return nil
		},
	}
}
