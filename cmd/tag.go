package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relkit/relkit/internal/domain"
	"github.com/relkit/relkit/internal/usecase"
)

func newTagCmd(c *container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "List and manage tags",
	}
	cmd.AddCommand(
		newTagListCmd(c),
		newTagLatestCmd(c),
		newTagCreateCmd(c),
		newTagDeleteCmd(c),
	)
	return cmd
}

func newTagListCmd(c *container) *cobra.Command {
	var (
		pattern  string
		sortMode string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tags, filtered and sorted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gitRepo, err := c.git()
			if err != nil {
				return err
			}
			mode, err := domain.ParseSortMode(resolvedSort(sortMode, c))
			if err != nil {
				return err
			}
			uc := &usecase.ListTagsUseCase{GitRepo: gitRepo}
			names, err := uc.Execute(cmd.Context(), resolvedPattern(pattern, c), mode)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return c.outputs().Set("tags", strings.Join(names, ","))
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "Glob pattern to filter tags (* and ? only)")
	cmd.Flags().StringVar(&sortMode, "sort", "", "Sort order: alphabetic, version or date")
	return cmd
}

func newTagLatestCmd(c *container) *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the highest tag matching a pattern",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gitRepo, err := c.git()
			if err != nil {
				return err
			}
			p := pattern
			if p == "" {
				p = c.cfg.TagPattern
			}
			latest, err := gitRepo.LatestTagMatching(cmd.Context(), p)
			if err != nil {
				return err
			}
			if latest == "" {
				return fmt.Errorf("no tag matches pattern %q", p)
			}
			fmt.Fprintln(cmd.OutOrStdout(), latest)
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "Glob pattern to filter tags (* and ? only)")
	return cmd
}

func newTagCreateCmd(c *container) *cobra.Command {
	var (
		message string
		push    bool
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a tag, annotated when a message is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gitRepo, err := c.git()
			if err != nil {
				return err
			}
			uc := &usecase.CreateTagUseCase{GitRepo: gitRepo}
			if err := uc.Execute(cmd.Context(), args[0], message, push); err != nil {
				return err
			}
			c.logger().Infow("created tag", "tag", args[0], "pushed", push)
			return c.outputs().Set("created", "true")
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Annotation message; empty creates a lightweight tag")
	cmd.Flags().BoolVar(&push, "push", false, "Push the tag to the remote")
	return cmd
}

func newTagDeleteCmd(c *container) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gitRepo, err := c.git()
			if err != nil {
				return err
			}
			uc := &usecase.DeleteTagUseCase{GitRepo: gitRepo}
			if err := uc.Execute(cmd.Context(), args[0], remote); err != nil {
				return err
			}
			c.logger().Infow("deleted tag", "tag", args[0], "remote", remote)
			return c.outputs().Set("deleted", "true")
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Also delete the tag from the remote")
	return cmd
}

// resolvedPattern falls back to the configured filter pattern, then to
// match-all.
func resolvedPattern(flag string, c *container) string {
	if flag != "" {
		return flag
	}
	if c.cfg.Pattern != "" {
		return c.cfg.Pattern
	}
	return "*"
}

func resolvedSort(flag string, c *container) string {
	if flag != "" {
		return flag
	}
	return c.cfg.Sort
}
