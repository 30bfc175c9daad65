package repository

import "context"

// GithubRepository defines the GitHub API operations used by release
// orchestration.

type GithubRepository interface {
	// CreateRelease publishes a release for an existing tag and returns its
	// HTML URL.
	CreateRelease(ctx context.Context, tag, name, body string, prerelease bool) (string, error)
	// DeleteRelease removes the release associated with a tag. Deleting a
	// release that does not exist is not an error.
	DeleteRelease(ctx context.Context, tag string) error
	// CreateOrUpdatePR creates a pull request or updates the open one with
	// the same head and base.
	CreateOrUpdatePR(ctx context.Context, head, base, title, body string, labels []string) error
}
