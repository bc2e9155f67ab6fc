package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("lapisup version %s\n", buildVersion)
			if verbose {
				fmt.Printf("commit: %s\n", buildCommit)
				fmt.Printf("built: %s\n", buildDate)
			}
			return nil
		},
	}
}
