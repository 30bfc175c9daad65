package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/relkit/relkit/internal/domain"
	"github.com/relkit/relkit/internal/repository"
)

// CreateBranchUseCase creates a branch from the current HEAD, optionally
// checking it out and pushing it.

type CreateBranchUseCase struct {
	GitRepo repository.GitRepository
}

// ValidateBranchName applies the ref-name rules relevant to branches on top
// of the shared tag-name checks.
func ValidateBranchName(name string) error {
	if !domain.ValidateTagName(name) {
		return fmt.Errorf("%w: invalid branch name %q", domain.ErrInvalidInput, name)
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return fmt.Errorf("%w: branch name cannot start or end with '/'", domain.ErrInvalidInput)
	}
	if strings.Contains(name, "//") || strings.Contains(name, "..") {
		return fmt.Errorf("%w: branch name cannot contain '//' or '..'", domain.ErrInvalidInput)
	}
	if strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("%w: branch name cannot end with '.lock'", domain.ErrInvalidInput)
	}
	return nil
}

// Execute runs the use case.
func (uc *CreateBranchUseCase) Execute(ctx context.Context, name string, checkout, push bool) error {
	if err := ValidateBranchName(name); err != nil {
		return err
	}
	if err := uc.GitRepo.CreateBranch(ctx, name); err != nil {
		return fmt.Errorf("failed to create branch: %w", err)
	}
	if checkout {
		if err := uc.GitRepo.CheckoutBranch(ctx, name); err != nil {
			return fmt.Errorf("failed to checkout branch: %w", err)
		}
	}
	if push {
		if err := uc.GitRepo.PushBranch(ctx, name); err != nil {
			return fmt.Errorf("failed to push branch: %w", err)
		}
	}
	return nil
}
