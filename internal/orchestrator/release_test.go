package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relkit/relkit/internal/config"
	"github.com/relkit/relkit/internal/domain"
	"github.com/relkit/relkit/internal/output"
)

// newFailedSessionState builds the persisted state of a run that created a
// tag and then failed, the shape a later rollback has to clean up.
func newFailedSessionState() *domain.ReleaseState {
	state := domain.NewReleaseState("session-rollback")
	state.AddStep(domain.StepTypeResolveVersion)
	state.AddStep(domain.StepTypeCreateTag)
	state.MarkStepStarted(domain.StepTypeResolveVersion)
	state.MarkStepCompleted(domain.StepTypeResolveVersion, map[string]any{"version": "v2.0.0"})
	state.MarkStepStarted(domain.StepTypeCreateTag)
	state.MarkStepCompleted(domain.StepTypeCreateTag, map[string]any{"tag_name": "v2.0.0"})
	state.Status = domain.WorkflowStatusFailed
	return state
}

type releaseTestEnv struct {
	gitRepo    *mockGitRepository
	githubRepo *mockGithubRepository
	stateRepo  *mockStateRepository
	fs         afero.Fs
	out        *bytes.Buffer
	orch       *ReleaseOrchestrator
}

func newReleaseTestEnv(t *testing.T) *releaseTestEnv {
	t.Helper()
	env := &releaseTestEnv{
		gitRepo:    &mockGitRepository{},
		githubRepo: &mockGithubRepository{},
		stateRepo:  &mockStateRepository{},
		fs:         afero.NewMemMapFs(),
		out:        &bytes.Buffer{},
	}
	env.orch = NewReleaseOrchestrator(
		env.gitRepo,
		env.githubRepo,
		env.fs,
		env.stateRepo,
		config.DefaultConfig(),
		output.NewFileWriter(env.fs, "", env.out),
		zap.NewNop().Sugar(),
	)
	return env
}

func (env *releaseTestEnv) stubSessionStart() {
	env.gitRepo.On("HeadCommit", mock.Anything).Return("abc123", nil)
	env.gitRepo.On("CurrentBranch", mock.Anything).Return("main", nil)
}

func TestReleaseOrchestrator_Execute(t *testing.T) {
	t.Run("Should run the full workflow and publish a release", func(t *testing.T) {
		env := newReleaseTestEnv(t)
		env.stubSessionStart()
		env.gitRepo.On("LatestTagMatching", mock.Anything, "v*").Return("v1.0.0", nil)
		env.gitRepo.On("CommitsSinceTag", mock.Anything, "v1.0.0").Return(2, nil)
		env.gitRepo.On("CommitSubjectsSince", mock.Anything, "v1.0.0").Return([]string{"feat: x"}, nil)
		env.gitRepo.On("ConfigureUser", mock.Anything, "github-actions[bot]",
			"github-actions[bot]@users.noreply.github.com").Return(nil)
		env.gitRepo.On("AddFiles", mock.Anything, "CHANGELOG.md").Return(nil)
		env.gitRepo.On("Commit", mock.Anything, "chore(release): v1.0.2").Return(nil)
		env.gitRepo.On("TagExists", mock.Anything, "v1.0.2").Return(false, nil)
		env.gitRepo.On("CreateTag", mock.Anything, "v1.0.2", "Release v1.0.2").Return(nil)
		env.gitRepo.On("PushBranch", mock.Anything, "main").Return(nil)
		env.gitRepo.On("PushTag", mock.Anything, "v1.0.2").Return(nil)
		env.githubRepo.On("CreateRelease", mock.Anything, "v1.0.2", "Release v1.0.2",
			mock.Anything, false).Return("https://example.com/releases/v1.0.2", nil)

		err := env.orch.Execute(context.Background(), ReleaseConfig{})
		require.NoError(t, err)
		env.gitRepo.AssertExpectations(t)
		env.githubRepo.AssertExpectations(t)

		outputs := env.out.String()
		assert.Contains(t, outputs, "current_version=v1.0.0")
		assert.Contains(t, outputs, "next_version=v1.0.2")
		assert.Contains(t, outputs, "commit_count=2")
		assert.Contains(t, outputs, "released=true")
		assert.Contains(t, outputs, "release_url=https://example.com/releases/v1.0.2")

		changelog, err := afero.ReadFile(env.fs, "CHANGELOG.md")
		require.NoError(t, err)
		assert.Contains(t, string(changelog), "## v1.0.2")
	})

	t.Run("Should stop after resolving when there are no new commits", func(t *testing.T) {
		env := newReleaseTestEnv(t)
		env.stubSessionStart()
		env.gitRepo.On("LatestTagMatching", mock.Anything, "v*").Return("v1.0.0", nil)
		env.gitRepo.On("CommitsSinceTag", mock.Anything, "v1.0.0").Return(0, nil)

		err := env.orch.Execute(context.Background(), ReleaseConfig{})
		require.NoError(t, err)
		env.gitRepo.AssertNotCalled(t, "CreateTag", mock.Anything, mock.Anything, mock.Anything)
		env.gitRepo.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
		assert.Contains(t, env.out.String(), "released=false")
	})

	t.Run("Should not mutate anything in dry run mode", func(t *testing.T) {
		env := newReleaseTestEnv(t)
		env.stubSessionStart()
		env.gitRepo.On("LatestTagMatching", mock.Anything, "v*").Return("v1.0.0", nil)
		env.gitRepo.On("CommitsSinceTag", mock.Anything, "v1.0.0").Return(3, nil)

		err := env.orch.Execute(context.Background(), ReleaseConfig{DryRun: true})
		require.NoError(t, err)
		env.gitRepo.AssertNotCalled(t, "CreateTag", mock.Anything, mock.Anything, mock.Anything)
		env.gitRepo.AssertNotCalled(t, "PushTag", mock.Anything, mock.Anything)
		env.githubRepo.AssertNotCalled(t, "CreateRelease",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Contains(t, env.out.String(), "next_version=v1.0.3")
	})

	t.Run("Should skip the GitHub release when requested", func(t *testing.T) {
		env := newReleaseTestEnv(t)
		env.stubSessionStart()
		env.gitRepo.On("LatestTagMatching", mock.Anything, "v*").Return("v1.0.0", nil)
		env.gitRepo.On("CommitsSinceTag", mock.Anything, "v1.0.0").Return(1, nil)
		env.gitRepo.On("CommitSubjectsSince", mock.Anything, "v1.0.0").Return([]string{"fix: y"}, nil)
		env.gitRepo.On("ConfigureUser", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		env.gitRepo.On("AddFiles", mock.Anything, "CHANGELOG.md").Return(nil)
		env.gitRepo.On("Commit", mock.Anything, mock.Anything).Return(nil)
		env.gitRepo.On("TagExists", mock.Anything, "v1.0.1").Return(false, nil)
		env.gitRepo.On("CreateTag", mock.Anything, "v1.0.1", mock.Anything).Return(nil)
		env.gitRepo.On("PushBranch", mock.Anything, "main").Return(nil)
		env.gitRepo.On("PushTag", mock.Anything, "v1.0.1").Return(nil)

		err := env.orch.Execute(context.Background(), ReleaseConfig{SkipRelease: true})
		require.NoError(t, err)
		env.githubRepo.AssertNotCalled(t, "CreateRelease",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should open a changelog pull request instead of tagging in via-pr mode", func(t *testing.T) {
		env := newReleaseTestEnv(t)
		env.stubSessionStart()
		env.gitRepo.On("LatestTagMatching", mock.Anything, "v*").Return("v1.0.0", nil)
		env.gitRepo.On("CommitsSinceTag", mock.Anything, "v1.0.0").Return(2, nil)
		env.gitRepo.On("ListLocalBranches", mock.Anything).Return([]string{"main"}, nil)
		env.gitRepo.On("CreateBranch", mock.Anything, "release/v1.0.2").Return(nil)
		env.gitRepo.On("CheckoutBranch", mock.Anything, "release/v1.0.2").Return(nil)
		env.gitRepo.On("CommitSubjectsSince", mock.Anything, "v1.0.0").Return([]string{"feat: x"}, nil)
		env.gitRepo.On("ConfigureUser", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		env.gitRepo.On("AddFiles", mock.Anything, "CHANGELOG.md").Return(nil)
		env.gitRepo.On("Commit", mock.Anything, "chore(release): v1.0.2").Return(nil)
		env.gitRepo.On("PushBranch", mock.Anything, "release/v1.0.2").Return(nil)
		env.githubRepo.On("CreateOrUpdatePR", mock.Anything, "release/v1.0.2", "main",
			"chore(release): v1.0.2", mock.Anything,
			[]string{"release-pending", "automated"}).Return(nil)

		err := env.orch.Execute(context.Background(), ReleaseConfig{ViaPR: true})
		require.NoError(t, err)
		env.gitRepo.AssertExpectations(t)
		env.githubRepo.AssertExpectations(t)
		env.gitRepo.AssertNotCalled(t, "CreateTag", mock.Anything, mock.Anything, mock.Anything)
		env.gitRepo.AssertNotCalled(t, "PushTag", mock.Anything, mock.Anything)
		env.githubRepo.AssertNotCalled(t, "CreateRelease",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

		outputs := env.out.String()
		assert.Contains(t, outputs, "next_version=v1.0.2")
		assert.Contains(t, outputs, "released=false")
		assert.Contains(t, outputs, "pr_branch=release/v1.0.2")
	})

	t.Run("Should delete the release branch when opening the pull request fails", func(t *testing.T) {
		env := newReleaseTestEnv(t)
		env.stateRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		env.gitRepo.On("HeadCommit", mock.Anything).Return("abc123", nil)
		env.gitRepo.On("CurrentBranch", mock.Anything).Return("main", nil).Once()
		env.gitRepo.On("CurrentBranch", mock.Anything).Return("release/v1.0.2", nil)
		env.gitRepo.On("LatestTagMatching", mock.Anything, "v*").Return("v1.0.0", nil)
		env.gitRepo.On("CommitsSinceTag", mock.Anything, "v1.0.0").Return(2, nil)
		env.gitRepo.On("ListLocalBranches", mock.Anything).Return([]string{"main"}, nil).Once()
		env.gitRepo.On("CreateBranch", mock.Anything, "release/v1.0.2").Return(nil)
		env.gitRepo.On("CheckoutBranch", mock.Anything, "release/v1.0.2").Return(nil)
		env.gitRepo.On("CommitSubjectsSince", mock.Anything, "v1.0.0").Return([]string{"feat: x"}, nil)
		env.gitRepo.On("ConfigureUser", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		env.gitRepo.On("AddFiles", mock.Anything, "CHANGELOG.md").Return(nil)
		env.gitRepo.On("Commit", mock.Anything, mock.Anything).Return(nil)
		env.gitRepo.On("PushBranch", mock.Anything, "release/v1.0.2").Return(nil)
		env.githubRepo.On("CreateOrUpdatePR", mock.Anything, "release/v1.0.2", "main",
			mock.Anything, mock.Anything, mock.Anything).Return(errors.New("api unavailable"))
		env.gitRepo.On("CheckoutBranch", mock.Anything, "main").Return(nil)
		env.gitRepo.On("ListLocalBranches", mock.Anything).
			Return([]string{"main", "release/v1.0.2"}, nil)
		env.gitRepo.On("DeleteBranch", mock.Anything, "release/v1.0.2").Return(nil)

		err := env.orch.Execute(context.Background(), ReleaseConfig{ViaPR: true, EnableRollback: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "release workflow failed")
		env.gitRepo.AssertCalled(t, "CheckoutBranch", mock.Anything, "main")
		env.gitRepo.AssertCalled(t, "DeleteBranch", mock.Anything, "release/v1.0.2")
	})

	t.Run("Should roll back the tag when the push fails", func(t *testing.T) {
		env := newReleaseTestEnv(t)
		env.stateRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		env.stubSessionStart()
		env.gitRepo.On("LatestTagMatching", mock.Anything, "v*").Return("v1.0.0", nil)
		env.gitRepo.On("CommitsSinceTag", mock.Anything, "v1.0.0").Return(1, nil)
		env.gitRepo.On("CommitSubjectsSince", mock.Anything, "v1.0.0").Return([]string{"fix: y"}, nil)
		env.gitRepo.On("ConfigureUser", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		env.gitRepo.On("AddFiles", mock.Anything, "CHANGELOG.md").Return(nil)
		env.gitRepo.On("Commit", mock.Anything, mock.Anything).Return(nil)
		env.gitRepo.On("TagExists", mock.Anything, "v1.0.1").Return(false, nil).Once()
		env.gitRepo.On("CreateTag", mock.Anything, "v1.0.1", mock.Anything).Return(nil)
		env.gitRepo.On("PushBranch", mock.Anything, "main").Return(nil)
		env.gitRepo.On("PushTag", mock.Anything, "v1.0.1").Return(errors.New("remote rejected"))
		env.gitRepo.On("TagExists", mock.Anything, "v1.0.1").Return(true, nil)
		env.gitRepo.On("DeleteTag", mock.Anything, "v1.0.1").Return(nil)

		err := env.orch.Execute(context.Background(), ReleaseConfig{EnableRollback: true})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "release workflow failed")
		env.gitRepo.AssertCalled(t, "DeleteTag", mock.Anything, "v1.0.1")
		env.githubRepo.AssertNotCalled(t, "CreateRelease",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Should roll back a stored session on request", func(t *testing.T) {
		env := newReleaseTestEnv(t)
		state := newFailedSessionState()
		env.stateRepo.On("Load", mock.Anything, state.SessionID).Return(state, nil)
		env.stateRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
		env.gitRepo.On("TagExists", mock.Anything, "v2.0.0").Return(true, nil)
		env.gitRepo.On("DeleteTag", mock.Anything, "v2.0.0").Return(nil)

		err := env.orch.Execute(context.Background(), ReleaseConfig{
			Rollback:  true,
			SessionID: state.SessionID,
		})
		require.NoError(t, err)
		env.gitRepo.AssertExpectations(t)
	})
}
