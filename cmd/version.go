package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relkit/relkit/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print relkit version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), version.Version)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.Summary())
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the bare version number")
	return cmd
}
