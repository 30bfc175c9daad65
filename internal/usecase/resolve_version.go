package usecase

import (
	"context"
	"fmt"

	"github.com/relkit/relkit/internal/domain"
	"github.com/relkit/relkit/internal/repository"
)

// ResolveVersionUseCase computes the current and next version from the tag
// history. The git repository supplies the raw data; the arithmetic lives in
// the domain package.

type ResolveVersionUseCase struct {
	GitRepo        repository.GitRepository
	TagPattern     string
	VersionPrefix  string
	DefaultVersion string
}

// Execute runs the use case.
func (uc *ResolveVersionUseCase) Execute(ctx context.Context) (*domain.QueryResult, error) {
	latestTag, err := uc.GitRepo.LatestTagMatching(ctx, uc.TagPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest tag: %w", err)
	}
	var commitCount int
	if latestTag == "" {
		// No matching tag: the count reflects the whole history.
		commitCount, err = uc.GitRepo.TotalCommits(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count commits: %w", err)
		}
	} else {
		commitCount, err = uc.GitRepo.CommitsSinceTag(ctx, latestTag)
		if err != nil {
			return nil, fmt.Errorf("failed to count commits since tag: %w", err)
		}
	}
	return domain.Resolve(latestTag, uc.VersionPrefix, uc.DefaultVersion, commitCount)
}
