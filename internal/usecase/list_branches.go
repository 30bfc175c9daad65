package usecase

import (
	"context"
	"fmt"

	"github.com/relkit/relkit/internal/domain"
	"github.com/relkit/relkit/internal/repository"
)

// ListBranchesUseCase lists local or remote branch names. Branch names go
// through the same filter and ordering machinery as tags; date ordering is
// not available since branches carry no creation timestamp.

type ListBranchesUseCase struct {
	GitRepo repository.GitRepository
}

// Execute runs the use case.
func (uc *ListBranchesUseCase) Execute(
	ctx context.Context,
	remote bool,
	pattern string,
	mode domain.SortMode,
) ([]string, error) {
	var (
		names []string
		err   error
	)
	if remote {
		names, err = uc.GitRepo.ListRemoteBranches(ctx)
	} else {
		names, err = uc.GitRepo.ListLocalBranches(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	records := make([]domain.TagRecord, len(names))
	for i, name := range names {
		records[i] = domain.TagRecord{Name: name}
	}
	return domain.FilterAndSort(records, pattern, mode)
}
