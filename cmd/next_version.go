package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/relkit/relkit/internal/usecase"
)

func newNextVersionCmd(c *container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next-version",
		Short: "Resolve the next version from tags and commit count",
		Long: `Resolve the current version from the highest tag matching the
configured pattern and compute the next version by adding the number of
commits since that tag to the patch component. Without any matching tag
the configured default version is used.

The result is printed and published as the step outputs current_version,
next_version, commit_count and tag_name.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gitRepo, err := c.git()
			if err != nil {
				return err
			}
			uc := &usecase.ResolveVersionUseCase{
				GitRepo:        gitRepo,
				TagPattern:     c.cfg.TagPattern,
				VersionPrefix:  c.cfg.VersionPrefix,
				DefaultVersion: c.cfg.DefaultVersion,
			}
			result, err := uc.Execute(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.outputs().SetAll([][2]string{
				{"current_version", result.Current.String()},
				{"next_version", result.Next.String()},
				{"commit_count", strconv.Itoa(result.CommitCount)},
				{"tag_name", result.Next.String()},
			}); err != nil {
				return fmt.Errorf("failed to write outputs: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Next.String())
			return nil
		},
	}
	return cmd
}
