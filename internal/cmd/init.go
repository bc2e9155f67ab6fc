package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lapis-cms/lapisup/internal/config"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter config file",
		Long: `Init writes a commented lapisup.yaml template to the given path, or to
./lapisup.yaml by default. Edit app.install_root and source.url before
running any other command.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "lapisup.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			return runInit(path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func runInit(path string, force bool) error {
	if err := config.WriteTemplate(path, force); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	fmt.Println("Edit app.install_root and source.url, then run 'lapisup check'.")
	return nil
}
