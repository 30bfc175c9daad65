package cmd

import (
	"github.com/spf13/cobra"
)

var debugMode bool

var rootCmd = &cobra.Command{
	Use:   "relkit",
	Short: "Git release toolkit for GitHub Actions",
	Long: `relkit wraps the git and GitHub plumbing of release automation:
it resolves the next version from tags and commit counts, lists and
manages tags and branches, updates the changelog and drives the full
release workflow with rollback support.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

func Execute() error {
	return rootCmd.Execute()
}
