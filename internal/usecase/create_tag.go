package usecase

import (
	"context"
	"fmt"

	"github.com/relkit/relkit/internal/domain"
	"github.com/relkit/relkit/internal/repository"
)

// CreateTagUseCase creates a tag, optionally annotated and pushed.

type CreateTagUseCase struct {
	GitRepo repository.GitRepository
}

// Execute runs the use case.
func (uc *CreateTagUseCase) Execute(ctx context.Context, name, message string, push bool) error {
	if !domain.ValidateTagName(name) {
		return fmt.Errorf("%w: invalid tag name %q", domain.ErrInvalidInput, name)
	}
	exists, err := uc.GitRepo.TagExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check tag: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: tag %q already exists", domain.ErrInvalidInput, name)
	}
	if err := uc.GitRepo.CreateTag(ctx, name, message); err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	if push {
		if err := uc.GitRepo.PushTag(ctx, name); err != nil {
			return fmt.Errorf("failed to push tag: %w", err)
		}
	}
	return nil
}
