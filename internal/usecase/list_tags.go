package usecase

import (
	"context"
	"fmt"

	"github.com/relkit/relkit/internal/domain"
	"github.com/relkit/relkit/internal/repository"
)

// ListTagsUseCase lists tag names, optionally filtered and in the requested
// order.

type ListTagsUseCase struct {
	GitRepo repository.GitRepository
}

// Execute runs the use case.
func (uc *ListTagsUseCase) Execute(ctx context.Context, pattern string, mode domain.SortMode) ([]string, error) {
	records, err := uc.GitRepo.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return domain.FilterAndSort(records, pattern, mode)
}
