package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relkit/relkit/internal/domain"
	"github.com/relkit/relkit/internal/usecase"
)

func newBranchCmd(c *container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "List and manage branches",
	}
	cmd.AddCommand(
		newBranchListCmd(c),
		newBranchCreateCmd(c),
		newBranchDeleteCmd(c),
	)
	return cmd
}

func newBranchListCmd(c *container) *cobra.Command {
	var (
		remote   bool
		pattern  string
		sortMode string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List local or remote branches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gitRepo, err := c.git()
			if err != nil {
				return err
			}
			mode, err := domain.ParseSortMode(resolvedSort(sortMode, c))
			if err != nil {
				return err
			}
			uc := &usecase.ListBranchesUseCase{GitRepo: gitRepo}
			names, err := uc.Execute(cmd.Context(), remote, resolvedPattern(pattern, c), mode)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return c.outputs().Set("branches", strings.Join(names, ","))
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "List remote branches instead of local ones")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Glob pattern to filter branches (* and ? only)")
	cmd.Flags().StringVar(&sortMode, "sort", "", "Sort order: alphabetic or version")
	return cmd
}

func newBranchCreateCmd(c *container) *cobra.Command {
	var (
		checkout bool
		push     bool
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a branch from HEAD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gitRepo, err := c.git()
			if err != nil {
				return err
			}
			uc := &usecase.CreateBranchUseCase{GitRepo: gitRepo}
			if err := uc.Execute(cmd.Context(), args[0], checkout, push); err != nil {
				return err
			}
			c.logger().Infow("created branch", "branch", args[0], "checkout", checkout, "pushed", push)
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkout, "checkout", false, "Check out the branch after creating it")
	cmd.Flags().BoolVar(&push, "push", false, "Push the branch to the remote")
	return cmd
}

func newBranchDeleteCmd(c *container) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gitRepo, err := c.git()
			if err != nil {
				return err
			}
			uc := &usecase.DeleteBranchUseCase{GitRepo: gitRepo}
			if err := uc.Execute(cmd.Context(), args[0], remote); err != nil {
				return err
			}
			c.logger().Infow("deleted branch", "branch", args[0], "remote", remote)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Also delete the branch from the remote")
	return cmd
}
