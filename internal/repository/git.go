package repository

import (
	"context"

	"github.com/relkit/relkit/internal/domain"
)

// GitRepository is the data-acquisition and mutation boundary around git.
// All computation on the returned data happens in the domain package.

type GitRepository interface {
	// Tag queries
	LatestTagMatching(ctx context.Context, pattern string) (string, error)
	ListTags(ctx context.Context) ([]domain.TagRecord, error)
	TagExists(ctx context.Context, tag string) (bool, error)
	CommitsSinceTag(ctx context.Context, tag string) (int, error)
	TotalCommits(ctx context.Context) (int, error)
	CommitSubjectsSince(ctx context.Context, tag string) ([]string, error)
	// Tag mutation
	CreateTag(ctx context.Context, tag, msg string) error
	DeleteTag(ctx context.Context, tag string) error
	PushTag(ctx context.Context, tag string) error
	DeleteRemoteTag(ctx context.Context, tag string) error
	// Branch operations
	CreateBranch(ctx context.Context, name string) error
	DeleteBranch(ctx context.Context, name string) error
	DeleteRemoteBranch(ctx context.Context, name string) error
	ListLocalBranches(ctx context.Context) ([]string, error)
	ListRemoteBranches(ctx context.Context) ([]string, error)
	CheckoutBranch(ctx context.Context, name string) error
	CurrentBranch(ctx context.Context) (string, error)
	PushBranch(ctx context.Context, name string) error
	// Commit operations
	ConfigureUser(ctx context.Context, name, email string) error
	AddFiles(ctx context.Context, pattern string) error
	Commit(ctx context.Context, message string) error
	HeadCommit(ctx context.Context) (string, error)
	ResetHard(ctx context.Context, ref string) error
}
