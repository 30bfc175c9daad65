package repository

import (
	"context"
	"errors"
	"fmt"
)

var ErrGithubTokenRequired = errors.New("github token is required for GitHub operations")

// githubNoopRepository stands in when no token is configured; every
// operation fails with a descriptive error instead of a nil dereference.
type githubNoopRepository struct {
	owner string
	repo  string
}

func NewGithubNoopRepository(owner, repo string) GithubRepository {
	return &githubNoopRepository{owner: owner, repo: repo}
}

func (r *githubNoopRepository) CreateRelease(_ context.Context, _, _, _ string, _ bool) (string, error) {
	return "", r.operationError("create release")
}

func (r *githubNoopRepository) DeleteRelease(_ context.Context, _ string) error {
	return r.operationError("delete release")
}

func (r *githubNoopRepository) CreateOrUpdatePR(_ context.Context, _, _, _, _ string, _ []string) error {
	return r.operationError("create or update pull request")
}

func (r *githubNoopRepository) operationError(action string) error {
	return fmt.Errorf("%w: unable to %s for %s/%s", ErrGithubTokenRequired, action, r.owner, r.repo)
}
