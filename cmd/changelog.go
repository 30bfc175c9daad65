package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relkit/relkit/internal/usecase"
)

func newChangelogCmd(c *container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Maintain the changelog file",
	}
	cmd.AddCommand(newChangelogUpdateCmd(c))
	return cmd
}

func newChangelogUpdateCmd(c *container) *cobra.Command {
	var (
		versionFlag string
		sinceTag    string
	)
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Prepend a section for a version from commit subjects",
		Long: `Render a changelog section from the commit subjects since the last
matching tag and prepend it to the changelog file. Without --version the
next version is resolved from the tag history first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gitRepo, err := c.git()
			if err != nil {
				return err
			}
			version := versionFlag
			since := sinceTag
			if version == "" {
				resolve := &usecase.ResolveVersionUseCase{
					GitRepo:        gitRepo,
					TagPattern:     c.cfg.TagPattern,
					VersionPrefix:  c.cfg.VersionPrefix,
					DefaultVersion: c.cfg.DefaultVersion,
				}
				result, err := resolve.Execute(cmd.Context())
				if err != nil {
					return err
				}
				version = result.Next.String()
				if since == "" && result.Current.String() != version {
					since = result.Current.String()
				}
			}
			uc := &usecase.UpdateChangelogUseCase{GitRepo: gitRepo, Fs: c.fs}
			section, err := uc.Execute(cmd.Context(), c.cfg.ChangelogFile, version, since)
			if err != nil {
				return err
			}
			if err := c.outputs().Set("changelog_section", section); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			c.logger().Infow("updated changelog", "file", c.cfg.ChangelogFile, "version", version)
			return nil
		},
	}
	cmd.Flags().StringVar(&versionFlag, "version", "", "Version heading to use; resolved from tags when empty")
	cmd.Flags().StringVar(&sinceTag, "since", "", "Collect commit subjects since this tag; full history when empty")
	return cmd
}
