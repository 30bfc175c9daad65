package usecase

import (
	"context"
	"fmt"

	"github.com/relkit/relkit/internal/domain"
	"github.com/relkit/relkit/internal/repository"
)

// DeleteBranchUseCase deletes a local branch and optionally its remote copy.
// Deleting the branch that is currently checked out is rejected.

type DeleteBranchUseCase struct {
	GitRepo repository.GitRepository
}

// Execute runs the use case.
func (uc *DeleteBranchUseCase) Execute(ctx context.Context, name string, remote bool) error {
	if err := ValidateBranchName(name); err != nil {
		return err
	}
	current, err := uc.GitRepo.CurrentBranch(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("%w: cannot delete the current branch %q", domain.ErrInvalidInput, name)
	}
	if err := uc.GitRepo.DeleteBranch(ctx, name); err != nil {
		return fmt.Errorf("failed to delete branch: %w", err)
	}
	if remote {
		if err := uc.GitRepo.DeleteRemoteBranch(ctx, name); err != nil {
			return fmt.Errorf("failed to delete remote branch: %w", err)
		}
	}
	return nil
}
