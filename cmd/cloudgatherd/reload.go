package main

import (
	"github.com/spf13/cobra"
)

// newReloadCmd sends SIGHUP to the running daemon (found via its PID file),
// triggering an additive reload of the on-disk task files (§6.1).
func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "tell the running daemon to pick up new on-disk task files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			return sendSIGHUP(cfg.PIDFile)
		},
	}
}
