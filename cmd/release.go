package cmd

import (
	"github.com/spf13/cobra"

	"github.com/relkit/relkit/internal/orchestrator"
)

func newReleaseCmd(c *container) *cobra.Command {
	var (
		dryRun         bool
		force          bool
		skipRelease    bool
		prerelease     bool
		viaPR          bool
		enableRollback bool
		rollback       bool
		sessionID      string
	)
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Run the full release workflow",
		Long: `Run the complete release workflow: resolve the next version, update
the changelog, commit, tag, push and publish the GitHub release.

With --via-pr the changelog commit is pushed to a release/<tag> branch
and a pull request against the current branch is opened instead of
tagging directly; the tag and GitHub release are left to a later run
once the pull request merges.

With --enable-rollback every step is checkpointed and compensated
automatically when a later step fails. A session that still failed can
be cleaned up afterwards with --rollback.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gitRepo, err := c.git()
			if err != nil {
				return err
			}
			githubRepo, err := c.github()
			if err != nil {
				return err
			}
			orch := orchestrator.NewReleaseOrchestrator(
				gitRepo,
				githubRepo,
				c.fs,
				c.stateRepo(),
				c.cfg,
				c.outputs(),
				c.logger(),
			)
			return orch.Execute(cmd.Context(), orchestrator.ReleaseConfig{
				DryRun:         dryRun,
				Force:          force,
				SkipRelease:    skipRelease,
				Prerelease:     prerelease,
				ViaPR:          viaPR,
				EnableRollback: enableRollback,
				Rollback:       rollback,
				SessionID:      sessionID,
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve and report without changing anything")
	cmd.Flags().BoolVar(&force, "force", false, "Release even when there are no new commits")
	cmd.Flags().BoolVar(&skipRelease, "skip-release", false, "Tag and push but skip the GitHub release")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Mark the GitHub release as a prerelease")
	cmd.Flags().BoolVar(&viaPR, "via-pr", false, "Open a changelog pull request instead of tagging directly")
	cmd.Flags().BoolVar(&enableRollback, "enable-rollback", false, "Enable automatic rollback on failure")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Roll back a failed release session")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session to roll back (latest when empty)")
	return cmd
}
