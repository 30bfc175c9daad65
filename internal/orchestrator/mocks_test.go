package orchestrator

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/relkit/relkit/internal/domain"
)

type mockGitRepository struct {
	mock.Mock
}

func (m *mockGitRepository) LatestTagMatching(ctx context.Context, pattern string) (string, error) {
	args := m.Called(ctx, pattern)
	return args.String(0), args.Error(1)
}

func (m *mockGitRepository) ListTags(ctx context.Context) ([]domain.TagRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TagRecord), args.Error(1)
}

func (m *mockGitRepository) TagExists(ctx context.Context, tag string) (bool, error) {
	args := m.Called(ctx, tag)
	return args.Bool(0), args.Error(1)
}

func (m *mockGitRepository) CommitsSinceTag(ctx context.Context, tag string) (int, error) {
	args := m.Called(ctx, tag)
	return args.Int(0), args.Error(1)
}

func (m *mockGitRepository) TotalCommits(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockGitRepository) CommitSubjectsSince(ctx context.Context, tag string) ([]string, error) {
	args := m.Called(ctx, tag)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockGitRepository) CreateTag(ctx context.Context, tag, msg string) error {
	args := m.Called(ctx, tag, msg)
	return args.Error(0)
}

func (m *mockGitRepository) DeleteTag(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

func (m *mockGitRepository) PushTag(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

func (m *mockGitRepository) DeleteRemoteTag(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

func (m *mockGitRepository) CreateBranch(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *mockGitRepository) DeleteBranch(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *mockGitRepository) DeleteRemoteBranch(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *mockGitRepository) ListLocalBranches(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockGitRepository) ListRemoteBranches(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockGitRepository) CheckoutBranch(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *mockGitRepository) CurrentBranch(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockGitRepository) PushBranch(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *mockGitRepository) ConfigureUser(ctx context.Context, name, email string) error {
	args := m.Called(ctx, name, email)
	return args.Error(0)
}

func (m *mockGitRepository) AddFiles(ctx context.Context, pattern string) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}

func (m *mockGitRepository) Commit(ctx context.Context, message string) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *mockGitRepository) HeadCommit(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockGitRepository) ResetHard(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

type mockGithubRepository struct {
	mock.Mock
}

func (m *mockGithubRepository) CreateRelease(
	ctx context.Context,
	tag, name, body string,
	prerelease bool,
) (string, error) {
	args := m.Called(ctx, tag, name, body, prerelease)
	return args.String(0), args.Error(1)
}

func (m *mockGithubRepository) DeleteRelease(ctx context.Context, tag string) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

func (m *mockGithubRepository) CreateOrUpdatePR(
	ctx context.Context,
	head, base, title, body string,
	labels []string,
) error {
	args := m.Called(ctx, head, base, title, body, labels)
	return args.Error(0)
}

type mockStateRepository struct {
	mock.Mock
}

func (m *mockStateRepository) Save(ctx context.Context, state *domain.ReleaseState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *mockStateRepository) Load(ctx context.Context, sessionID string) (*domain.ReleaseState, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReleaseState), args.Error(1)
}

func (m *mockStateRepository) LoadLatest(ctx context.Context) (*domain.ReleaseState, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReleaseState), args.Error(1)
}

func (m *mockStateRepository) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *mockStateRepository) Exists(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}
