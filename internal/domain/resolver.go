package domain

import "fmt"

// QueryResult is the outcome of one version resolution.
type QueryResult struct {
	Current     *Version
	Next        *Version
	CommitCount int
}

// Resolve derives the current and next version from the latest matching tag
// and the number of commits since it. An empty latestTag means no tag
// matched: the default version is used for both current and next, and the
// commit count (typically the total number of commits in the repository) is
// passed through without advancing the patch.
func Resolve(latestTag, versionPrefix, defaultVersion string, commitCount int) (*QueryResult, error) {
	if commitCount < 0 {
		return nil, fmt.Errorf("%w: commit count must not be negative, got %d", ErrInvalidInput, commitCount)
	}
	if latestTag == "" {
		current, err := ParseVersion(defaultVersion, versionPrefix)
		if err != nil {
			return nil, fmt.Errorf("parsing default version: %w", err)
		}
		return &QueryResult{Current: current, Next: current, CommitCount: commitCount}, nil
	}
	current, err := ParseVersion(latestTag, versionPrefix)
	if err != nil {
		return nil, fmt.Errorf("parsing latest tag: %w", err)
	}
	return &QueryResult{
		Current:     current,
		Next:        current.AddCommits(commitCount),
		CommitCount: commitCount,
	}, nil
}
