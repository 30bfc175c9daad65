package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/relkit/relkit/internal/repository"
)

// CompensatingActions provides idempotent undo operations for release
// workflow steps. Each action tolerates being run against a repository where
// the step's effect is already gone.
type CompensatingActions struct {
	gitRepo    repository.GitRepository
	githubRepo repository.GithubRepository
	log        *zap.SugaredLogger
}

// NewCompensatingActions creates a compensating actions handler.
func NewCompensatingActions(
	gitRepo repository.GitRepository,
	githubRepo repository.GithubRepository,
	log *zap.SugaredLogger,
) *CompensatingActions {
	return &CompensatingActions{
		gitRepo:    gitRepo,
		githubRepo: githubRepo,
		log:        log,
	}
}

// NoOp is the compensation for steps that leave no durable effect.
func (ca *CompensatingActions) NoOp(_ context.Context, _ map[string]any) error {
	return nil
}

// ResetToCommit moves the working tree back to the commit recorded before the
// workflow touched anything, discarding the changelog edit and the release
// commit in one stroke.
func (ca *CompensatingActions) ResetToCommit(ctx context.Context, rollbackData map[string]any) error {
	sha, ok := rollbackData["original_commit"].(string)
	if !ok || sha == "" {
		return nil
	}
	head, err := ca.gitRepo.HeadCommit(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current HEAD: %w", err)
	}
	if head == sha {
		return nil
	}
	if err := ca.gitRepo.ResetHard(ctx, sha); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", sha, err)
	}
	ca.log.Infow("reset working tree", "commit", sha)
	return nil
}

// DeleteTag removes the tag created by the workflow, locally and, when it was
// pushed, from the remote.
func (ca *CompensatingActions) DeleteTag(ctx context.Context, rollbackData map[string]any) error {
	tagName, ok := rollbackData["tag_name"].(string)
	if !ok || tagName == "" {
		return nil
	}
	exists, err := ca.gitRepo.TagExists(ctx, tagName)
	if err != nil {
		return fmt.Errorf("failed to check tag %s: %w", tagName, err)
	}
	if exists {
		if err := ca.gitRepo.DeleteTag(ctx, tagName); err != nil &&
			!strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("failed to delete tag %s: %w", tagName, err)
		}
		ca.log.Infow("deleted local tag", "tag", tagName)
	}
	if pushed, _ := rollbackData["pushed"].(bool); pushed {
		if err := ca.gitRepo.DeleteRemoteTag(ctx, tagName); err != nil &&
			!strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("failed to delete remote tag %s: %w", tagName, err)
		}
		ca.log.Infow("deleted remote tag", "tag", tagName)
	}
	return nil
}

// DeleteRemoteTag removes only the remote copy of a pushed tag.
func (ca *CompensatingActions) DeleteRemoteTag(ctx context.Context, rollbackData map[string]any) error {
	tagName, ok := rollbackData["tag_name"].(string)
	if !ok || tagName == "" {
		return nil
	}
	if err := ca.gitRepo.DeleteRemoteTag(ctx, tagName); err != nil &&
		!strings.Contains(err.Error(), "not found") {
		return fmt.Errorf("failed to delete remote tag %s: %w", tagName, err)
	}
	ca.log.Infow("deleted remote tag", "tag", tagName)
	return nil
}

// DeleteBranch removes a branch created by the workflow if it still exists,
// switching back to the branch the session started on when it is currently
// checked out.
func (ca *CompensatingActions) DeleteBranch(ctx context.Context, rollbackData map[string]any) error {
	branchName, ok := rollbackData["branch_name"].(string)
	if !ok || branchName == "" {
		return nil
	}
	if created, _ := rollbackData["created_in_session"].(bool); !created {
		ca.log.Infow("branch existed before session, keeping it", "branch", branchName)
		return nil
	}
	if err := ca.switchAwayFromBranch(ctx, branchName, rollbackData); err != nil {
		return err
	}
	branches, err := ca.gitRepo.ListLocalBranches(ctx)
	if err != nil {
		return fmt.Errorf("failed to list local branches: %w", err)
	}
	if !slices.Contains(branches, branchName) {
		return nil
	}
	if err := ca.gitRepo.DeleteBranch(ctx, branchName); err != nil &&
		!strings.Contains(err.Error(), "not found") {
		return fmt.Errorf("failed to delete branch %s: %w", branchName, err)
	}
	ca.log.Infow("deleted branch", "branch", branchName)
	return nil
}

// switchAwayFromBranch checks out the branch the session started on when the
// branch about to be deleted is currently checked out. Deleting the checked
// out branch is not possible.
func (ca *CompensatingActions) switchAwayFromBranch(
	ctx context.Context,
	branchName string,
	rollbackData map[string]any,
) error {
	current, err := ca.gitRepo.CurrentBranch(ctx)
	if err != nil || current != branchName {
		return nil
	}
	original, _ := rollbackData["original_branch"].(string)
	if original == "" {
		return fmt.Errorf("cannot delete checked out branch %s: original branch unknown", branchName)
	}
	if err := ca.gitRepo.CheckoutBranch(ctx, original); err != nil {
		return fmt.Errorf("failed to switch back to %s: %w", original, err)
	}
	ca.log.Infow("switched back to original branch", "branch", original)
	return nil
}

// DeleteRelease removes the GitHub release created for a tag. A release that
// was never created or is already gone is not an error.
func (ca *CompensatingActions) DeleteRelease(ctx context.Context, rollbackData map[string]any) error {
	tagName, ok := rollbackData["tag_name"].(string)
	if !ok || tagName == "" {
		return nil
	}
	if err := ca.githubRepo.DeleteRelease(ctx, tagName); err != nil {
		return fmt.Errorf("failed to delete release for %s: %w", tagName, err)
	}
	ca.log.Infow("deleted release", "tag", tagName)
	return nil
}
