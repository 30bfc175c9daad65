package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/sethvargo/go-retry"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/relkit/relkit/internal/config"
	"github.com/relkit/relkit/internal/domain"
	"github.com/relkit/relkit/internal/output"
	"github.com/relkit/relkit/internal/repository"
	"github.com/relkit/relkit/internal/usecase"
)

// ReleaseConfig contains the per-invocation switches of the release workflow.
type ReleaseConfig struct {
	DryRun         bool
	Force          bool
	SkipRelease    bool
	Prerelease     bool
	ViaPR          bool
	EnableRollback bool
	Rollback       bool
	SessionID      string
}

// ReleaseOrchestrator drives the full release workflow: resolve the next
// version, update the changelog, commit, tag, push and publish the GitHub
// release. Every mutating step registers a compensation so a failed run can
// be rolled back.
type ReleaseOrchestrator struct {
	gitRepo    repository.GitRepository
	githubRepo repository.GithubRepository
	fs         afero.Fs
	stateRepo  repository.StateRepository
	cfg        *config.Config
	out        *output.Writer
	log        *zap.SugaredLogger
}

// NewReleaseOrchestrator creates a release orchestrator.
func NewReleaseOrchestrator(
	gitRepo repository.GitRepository,
	githubRepo repository.GithubRepository,
	fs afero.Fs,
	stateRepo repository.StateRepository,
	cfg *config.Config,
	out *output.Writer,
	log *zap.SugaredLogger,
) *ReleaseOrchestrator {
	return &ReleaseOrchestrator{
		gitRepo:    gitRepo,
		githubRepo: githubRepo,
		fs:         fs,
		stateRepo:  stateRepo,
		cfg:        cfg,
		out:        out,
		log:        log,
	}
}

// releaseContext carries the release being built between workflow steps.
// baseBranch is the branch the session started on; in pull request mode the
// changelog commit lands on a separate release branch instead.
type releaseContext struct {
	release    *domain.Release
	baseBranch string
	skipped    bool
}

// Execute runs the workflow, or a rollback of an earlier session when
// requested.
func (o *ReleaseOrchestrator) Execute(ctx context.Context, rcfg ReleaseConfig) error {
	if rcfg.Rollback {
		return o.performRollback(ctx, rcfg.SessionID)
	}
	ctx, cancel := context.WithTimeout(ctx, ReleaseTimeout)
	defer cancel()

	saga := NewSagaExecutor(o.stateRepo, rcfg.EnableRollback, o.log)
	rctx := &releaseContext{release: &domain.Release{}}
	if err := o.initializeSession(ctx, saga, rctx); err != nil {
		return err
	}
	compensator := NewCompensatingActions(o.gitRepo, o.githubRepo, o.log)
	originalCommit := saga.GetState().OriginalCommit

	o.addResolveVersionStep(saga, rcfg, compensator, rctx)
	if rcfg.ViaPR {
		o.addCreateBranchStep(saga, rcfg, compensator, rctx)
	}
	o.addUpdateChangelogStep(saga, rcfg, compensator, rctx, originalCommit)
	o.addCommitChangesStep(saga, rcfg, compensator, rctx, originalCommit)
	if rcfg.ViaPR {
		o.addPushBranchStep(saga, rcfg, compensator, rctx)
		o.addCreatePRStep(saga, rcfg, compensator, rctx)
	} else {
		o.addCreateTagStep(saga, rcfg, compensator, rctx)
		o.addPushBranchStep(saga, rcfg, compensator, rctx)
		o.addPushTagStep(saga, rcfg, compensator, rctx)
		o.addCreateReleaseStep(saga, rcfg, compensator, rctx)
	}

	if err := saga.Execute(ctx); err != nil {
		return fmt.Errorf("release workflow failed (session %s): %w", saga.SessionID(), err)
	}
	switch {
	case rctx.skipped:
		o.log.Info("no commits since last release, nothing to do")
	case rcfg.DryRun:
		o.log.Infow("dry run complete", "version", rctx.release.TagName)
	case rcfg.ViaPR:
		o.log.Infow("release pull request opened", "version", rctx.release.TagName)
	default:
		o.log.Infow("release completed", "version", rctx.release.TagName)
	}
	return nil
}

// initializeSession records where the repository stood before the workflow so
// compensations know what to restore.
func (o *ReleaseOrchestrator) initializeSession(
	ctx context.Context,
	saga *SagaExecutor,
	rctx *releaseContext,
) error {
	head, err := o.gitRepo.HeadCommit(ctx)
	if err != nil {
		return fmt.Errorf("failed to get HEAD commit: %w", err)
	}
	branch, err := o.gitRepo.CurrentBranch(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current branch: %w", err)
	}
	saga.GetState().OriginalCommit = head
	saga.GetState().Branch = branch
	rctx.baseBranch = branch
	rctx.release.Branch = branch
	return nil
}

func (o *ReleaseOrchestrator) addResolveVersionStep(
	saga *SagaExecutor,
	rcfg ReleaseConfig,
	compensator *CompensatingActions,
	rctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name: "Resolve Version",
		Type: domain.StepTypeResolveVersion,
		Execute: func(ctx context.Context) (map[string]any, error) {
			uc := &usecase.ResolveVersionUseCase{
				GitRepo:        o.gitRepo,
				TagPattern:     o.cfg.TagPattern,
				VersionPrefix:  o.cfg.VersionPrefix,
				DefaultVersion: o.cfg.DefaultVersion,
			}
			result, err := uc.Execute(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve version: %w", err)
			}
			rctx.release.Current = result.Current
			rctx.release.Next = result.Next
			rctx.release.CommitCount = result.CommitCount
			rctx.release.TagName = result.Next.String()
			if result.CommitCount == 0 && !rcfg.Force {
				rctx.skipped = true
			}
			saga.GetState().Version = rctx.release.TagName
			saga.GetState().TagName = rctx.release.TagName
			if err := o.out.SetAll([][2]string{
				{"current_version", result.Current.String()},
				{"next_version", result.Next.String()},
				{"commit_count", strconv.Itoa(result.CommitCount)},
				{"tag_name", rctx.release.TagName},
				{"released", strconv.FormatBool(!rctx.skipped && !rcfg.DryRun && !rcfg.ViaPR)},
			}); err != nil {
				return nil, fmt.Errorf("failed to write outputs: %w", err)
			}
			return map[string]any{"version": rctx.release.TagName}, nil
		},
		Compensate: compensator.NoOp,
	})
}

func (o *ReleaseOrchestrator) addCreateBranchStep(
	saga *SagaExecutor,
	rcfg ReleaseConfig,
	compensator *CompensatingActions,
	rctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name: "Create Release Branch",
		Type: domain.StepTypeCreateBranch,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if rctx.skipped || rcfg.DryRun {
				return map[string]any{"skip": true}, nil
			}
			branchName := fmt.Sprintf("release/%s", rctx.release.TagName)
			branches, err := o.gitRepo.ListLocalBranches(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to list local branches: %w", err)
			}
			created := !slices.Contains(branches, branchName)
			if created {
				if err := o.gitRepo.CreateBranch(ctx, branchName); err != nil {
					return nil, fmt.Errorf("failed to create branch %s: %w", branchName, err)
				}
			}
			if err := o.gitRepo.CheckoutBranch(ctx, branchName); err != nil {
				return nil, fmt.Errorf("failed to checkout branch %s: %w", branchName, err)
			}
			rctx.release.Branch = branchName
			return map[string]any{
				"branch_name":        branchName,
				"original_branch":    rctx.baseBranch,
				"created_in_session": created,
			}, nil
		},
		Compensate: compensator.DeleteBranch,
	})
}

func (o *ReleaseOrchestrator) addUpdateChangelogStep(
	saga *SagaExecutor,
	rcfg ReleaseConfig,
	compensator *CompensatingActions,
	rctx *releaseContext,
	originalCommit string,
) {
	saga.AddStep(SagaStep{
		Name: "Update Changelog",
		Type: domain.StepTypeUpdateChangelog,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if rctx.skipped || rcfg.DryRun {
				return map[string]any{"skip": true}, nil
			}
			sinceTag := ""
			if rctx.release.Current.String() != rctx.release.TagName {
				sinceTag = rctx.release.Current.String()
			}
			uc := &usecase.UpdateChangelogUseCase{GitRepo: o.gitRepo, Fs: o.fs}
			notes, err := uc.Execute(ctx, o.cfg.ChangelogFile, rctx.release.TagName, sinceTag)
			if err != nil {
				return nil, err
			}
			rctx.release.Notes = notes
			return map[string]any{"original_commit": originalCommit}, nil
		},
		Compensate: compensator.ResetToCommit,
	})
}

func (o *ReleaseOrchestrator) addCommitChangesStep(
	saga *SagaExecutor,
	rcfg ReleaseConfig,
	compensator *CompensatingActions,
	rctx *releaseContext,
	originalCommit string,
) {
	saga.AddStep(SagaStep{
		Name: "Commit Changes",
		Type: domain.StepTypeCommitChanges,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if rctx.skipped || rcfg.DryRun {
				return map[string]any{"skip": true}, nil
			}
			if err := o.gitRepo.ConfigureUser(ctx, o.cfg.GitUserName, o.cfg.GitUserEmail); err != nil {
				return nil, fmt.Errorf("failed to configure git user: %w", err)
			}
			if err := o.gitRepo.AddFiles(ctx, o.cfg.ChangelogFile); err != nil {
				return nil, fmt.Errorf("failed to stage changelog: %w", err)
			}
			message := fmt.Sprintf("chore(release): %s", rctx.release.TagName)
			if err := o.gitRepo.Commit(ctx, message); err != nil {
				return nil, fmt.Errorf("failed to commit changes: %w", err)
			}
			return map[string]any{"original_commit": originalCommit}, nil
		},
		Compensate: compensator.ResetToCommit,
	})
}

func (o *ReleaseOrchestrator) addCreateTagStep(
	saga *SagaExecutor,
	rcfg ReleaseConfig,
	compensator *CompensatingActions,
	rctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name: "Create Tag",
		Type: domain.StepTypeCreateTag,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if rctx.skipped || rcfg.DryRun {
				return map[string]any{"skip": true}, nil
			}
			uc := &usecase.CreateTagUseCase{GitRepo: o.gitRepo}
			message := fmt.Sprintf("Release %s", rctx.release.TagName)
			if err := uc.Execute(ctx, rctx.release.TagName, message, false); err != nil {
				return nil, err
			}
			return map[string]any{"tag_name": rctx.release.TagName}, nil
		},
		Compensate: compensator.DeleteTag,
	})
}

func (o *ReleaseOrchestrator) addPushBranchStep(
	saga *SagaExecutor,
	rcfg ReleaseConfig,
	compensator *CompensatingActions,
	rctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name: "Push Branch",
		Type: domain.StepTypePushBranch,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if rctx.skipped || rcfg.DryRun {
				return map[string]any{"skip": true}, nil
			}
			if err := o.gitRepo.PushBranch(ctx, rctx.release.Branch); err != nil {
				return nil, fmt.Errorf("failed to push branch: %w", err)
			}
			return map[string]any{"branch_name": rctx.release.Branch}, nil
		},
		Compensate: compensator.NoOp,
	})
}

func (o *ReleaseOrchestrator) addPushTagStep(
	saga *SagaExecutor,
	rcfg ReleaseConfig,
	compensator *CompensatingActions,
	rctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name: "Push Tag",
		Type: domain.StepTypePushTag,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if rctx.skipped || rcfg.DryRun {
				return map[string]any{"skip": true}, nil
			}
			if err := o.gitRepo.PushTag(ctx, rctx.release.TagName); err != nil {
				return nil, fmt.Errorf("failed to push tag: %w", err)
			}
			return map[string]any{"tag_name": rctx.release.TagName, "pushed": true}, nil
		},
		Compensate: compensator.DeleteRemoteTag,
	})
}

func (o *ReleaseOrchestrator) addCreateReleaseStep(
	saga *SagaExecutor,
	rcfg ReleaseConfig,
	compensator *CompensatingActions,
	rctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name: "Create GitHub Release",
		Type: domain.StepTypeCreateRelease,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if rctx.skipped || rcfg.DryRun || rcfg.SkipRelease {
				return map[string]any{"skip": true}, nil
			}
			title := fmt.Sprintf("Release %s", rctx.release.TagName)
			var url string
			err := retry.Do(
				ctx,
				retry.WithMaxRetries(DefaultRetryCount, retry.NewExponential(DefaultRetryDelay)),
				func(ctx context.Context) error {
					var createErr error
					url, createErr = o.githubRepo.CreateRelease(
						ctx, rctx.release.TagName, title, rctx.release.Notes, rcfg.Prerelease)
					if createErr != nil {
						return retry.RetryableError(createErr)
					}
					return nil
				},
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create release: %w", err)
			}
			if err := o.out.Set("release_url", url); err != nil {
				return nil, fmt.Errorf("failed to write release_url output: %w", err)
			}
			return map[string]any{"tag_name": rctx.release.TagName, "release_url": url}, nil
		},
		Compensate: compensator.DeleteRelease,
	})
}

func (o *ReleaseOrchestrator) addCreatePRStep(
	saga *SagaExecutor,
	rcfg ReleaseConfig,
	compensator *CompensatingActions,
	rctx *releaseContext,
) {
	saga.AddStep(SagaStep{
		Name: "Create Pull Request",
		Type: domain.StepTypeCreatePR,
		Execute: func(ctx context.Context) (map[string]any, error) {
			if rctx.skipped || rcfg.DryRun {
				return map[string]any{"skip": true}, nil
			}
			title := fmt.Sprintf("chore(release): %s", rctx.release.TagName)
			labels := []string{"release-pending", "automated"}
			err := retry.Do(
				ctx,
				retry.WithMaxRetries(DefaultRetryCount, retry.NewExponential(DefaultRetryDelay)),
				func(ctx context.Context) error {
					createErr := o.githubRepo.CreateOrUpdatePR(
						ctx, rctx.release.Branch, rctx.baseBranch, title, rctx.release.Notes, labels)
					if createErr != nil {
						return retry.RetryableError(createErr)
					}
					return nil
				},
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create pull request: %w", err)
			}
			if err := o.out.Set("pr_branch", rctx.release.Branch); err != nil {
				return nil, fmt.Errorf("failed to write pr_branch output: %w", err)
			}
			return map[string]any{"branch_name": rctx.release.Branch}, nil
		},
		Compensate: compensator.NoOp,
	})
}

// performRollback compensates a failed session. With no session ID the most
// recent session is used.
func (o *ReleaseOrchestrator) performRollback(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		state, err := o.stateRepo.LoadLatest(ctx)
		if err != nil {
			return fmt.Errorf("failed to load latest session: %w", err)
		}
		sessionID = state.SessionID
	}
	saga, err := LoadExistingSaga(ctx, o.stateRepo, sessionID, o.log)
	if err != nil {
		return fmt.Errorf("failed to load saga: %w", err)
	}
	compensator := NewCompensatingActions(o.gitRepo, o.githubRepo, o.log)
	o.rebuildSagaSteps(saga, compensator)
	if err := saga.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}

// rebuildSagaSteps re-attaches compensations to a restored session; function
// pointers are not part of the persisted state.
func (o *ReleaseOrchestrator) rebuildSagaSteps(saga *SagaExecutor, compensator *CompensatingActions) {
	compensateMap := map[domain.StepType]func(context.Context, map[string]any) error{
		domain.StepTypeResolveVersion:  compensator.NoOp,
		domain.StepTypeCreateBranch:    compensator.DeleteBranch,
		domain.StepTypeUpdateChangelog: compensator.ResetToCommit,
		domain.StepTypeCommitChanges:   compensator.ResetToCommit,
		domain.StepTypeCreateTag:       compensator.DeleteTag,
		domain.StepTypePushBranch:      compensator.NoOp,
		domain.StepTypePushTag:         compensator.DeleteRemoteTag,
		domain.StepTypeCreateRelease:   compensator.DeleteRelease,
		domain.StepTypeCreatePR:        compensator.NoOp,
	}
	for _, record := range saga.GetState().Steps {
		if compensate, ok := compensateMap[record.Type]; ok {
			saga.AddStep(SagaStep{
				Name:       string(record.Type),
				Type:       record.Type,
				Compensate: compensate,
			})
		}
	}
}
