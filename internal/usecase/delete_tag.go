package usecase

import (
	"context"
	"fmt"

	"github.com/relkit/relkit/internal/domain"
	"github.com/relkit/relkit/internal/repository"
)

// DeleteTagUseCase deletes a local tag and optionally its remote copy.

type DeleteTagUseCase struct {
	GitRepo repository.GitRepository
}

// Execute runs the use case.
func (uc *DeleteTagUseCase) Execute(ctx context.Context, name string, remote bool) error {
	if !domain.ValidateTagName(name) {
		return fmt.Errorf("%w: invalid tag name %q", domain.ErrInvalidInput, name)
	}
	if err := uc.GitRepo.DeleteTag(ctx, name); err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if remote {
		if err := uc.GitRepo.DeleteRemoteTag(ctx, name); err != nil {
			return fmt.Errorf("failed to delete remote tag: %w", err)
		}
	}
	return nil
}
