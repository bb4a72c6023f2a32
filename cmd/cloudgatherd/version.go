package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCmd prints the build version, set at build time via ldflags.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the cloudgatherd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}
