package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/relkit/relkit/internal/domain"
	"github.com/relkit/relkit/internal/repository"
)

// SagaStep is one step of the release workflow. Execute returns the data its
// Compensate needs to undo the step.
type SagaStep struct {
	Name       string
	Type       domain.StepType
	Execute    func(ctx context.Context) (rollbackData map[string]any, err error)
	Compensate func(ctx context.Context, rollbackData map[string]any) error
}

// SagaExecutor runs workflow steps in order and compensates completed steps
// in reverse order when one fails. State is persisted after every transition
// so an interrupted session can be rolled back from a later process.
type SagaExecutor struct {
	sessionID      string
	stateRepo      repository.StateRepository
	state          *domain.ReleaseState
	steps          []SagaStep
	enableRollback bool
	log            *zap.SugaredLogger
}

// NewSagaExecutor creates an executor for a fresh session.
func NewSagaExecutor(stateRepo repository.StateRepository, enableRollback bool, log *zap.SugaredLogger) *SagaExecutor {
	sessionID := uuid.New().String()
	return &SagaExecutor{
		sessionID:      sessionID,
		stateRepo:      stateRepo,
		state:          domain.NewReleaseState(sessionID),
		steps:          []SagaStep{},
		enableRollback: enableRollback,
		log:            log,
	}
}

// LoadExistingSaga restores an executor from persisted state. Step functions
// are not persisted, so the caller must re-register compensations before
// calling Rollback.
func LoadExistingSaga(
	ctx context.Context,
	stateRepo repository.StateRepository,
	sessionID string,
	log *zap.SugaredLogger,
) (*SagaExecutor, error) {
	state, err := stateRepo.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saga state: %w", err)
	}
	return &SagaExecutor{
		sessionID:      sessionID,
		stateRepo:      stateRepo,
		state:          state,
		steps:          []SagaStep{},
		enableRollback: true,
		log:            log,
	}, nil
}

// AddStep registers a step. For a fresh session the step is also recorded in
// the state; a restored session already carries its records.
func (s *SagaExecutor) AddStep(step SagaStep) {
	s.steps = append(s.steps, step)
	if s.state.Status == domain.WorkflowStatusPending {
		s.state.AddStep(step.Type)
	}
}

// Execute runs all steps, compensating on the first failure when rollback is
// enabled.
func (s *SagaExecutor) Execute(ctx context.Context) error {
	if s.enableRollback {
		if err := s.saveState(ctx); err != nil {
			return fmt.Errorf("failed to save initial state: %w", err)
		}
	}
	s.state.Status = domain.WorkflowStatusRunning
	for _, step := range s.steps {
		if err := s.executeStep(ctx, step); err != nil {
			s.state.MarkStepFailed(step.Type, err)
			if s.enableRollback {
				s.saveStateBestEffort(ctx, "before rollback")
				// Detached context so a canceled workflow cannot abort the
				// compensations.
				rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RollbackTimeout)
				rollbackErr := s.rollback(rollbackCtx)
				cancel()
				if rollbackErr != nil {
					return fmt.Errorf("step %q failed: %w, rollback also failed: %v",
						step.Name, err, rollbackErr)
				}
			}
			return fmt.Errorf("step %q failed: %w", step.Name, err)
		}
	}
	s.state.Status = domain.WorkflowStatusCompleted
	if s.enableRollback {
		s.saveStateBestEffort(ctx, "at completion")
	}
	return nil
}

func (s *SagaExecutor) executeStep(ctx context.Context, step SagaStep) error {
	s.state.MarkStepStarted(step.Type)
	if s.enableRollback {
		s.saveStateBestEffort(ctx, "after step start")
	}
	var rollbackData map[string]any
	retryStrategy := retry.WithMaxRetries(DefaultRetryCount, retry.NewExponential(DefaultRetryDelay))
	err := retry.Do(ctx, retryStrategy, func(retryCtx context.Context) error {
		select {
		case <-retryCtx.Done():
			return retryCtx.Err()
		default:
		}
		data, execErr := step.Execute(retryCtx)
		if execErr != nil {
			return retry.RetryableError(execErr)
		}
		rollbackData = data
		return nil
	})
	if err != nil {
		return err
	}
	s.state.MarkStepCompleted(step.Type, rollbackData)
	if s.enableRollback {
		s.saveStateBestEffort(ctx, "after step completion")
	}
	return nil
}

// Rollback compensates the completed steps of the session.
func (s *SagaExecutor) Rollback(ctx context.Context) error {
	return s.rollback(ctx)
}

func (s *SagaExecutor) rollback(ctx context.Context) error {
	s.log.Infow("starting rollback", "session_id", s.sessionID)
	completed := s.state.CompletedSteps()
	if len(completed) == 0 {
		s.log.Info("no completed steps to roll back")
		return nil
	}
	for _, record := range completed {
		select {
		case <-ctx.Done():
			return fmt.Errorf("rollback canceled: %w", ctx.Err())
		default:
		}
		step := s.findStepByType(record.Type)
		if step == nil || step.Compensate == nil {
			continue
		}
		s.log.Infow("rolling back step", "step", step.Name)
		if err := s.executeCompensation(ctx, step, record.RollbackData); err != nil {
			s.log.Errorw("rollback step failed", "step", step.Name, "error", err)
			return fmt.Errorf("rollback failed for %s: %w", step.Name, err)
		}
		s.state.MarkStepRolledBack(record.Type)
		if s.enableRollback {
			s.saveStateBestEffort(ctx, "during rollback")
		}
	}
	s.state.Status = domain.WorkflowStatusRolledBack
	if s.enableRollback {
		s.saveStateBestEffort(ctx, "after rollback")
	}
	s.log.Infow("rollback completed", "session_id", s.sessionID)
	return nil
}

func (s *SagaExecutor) executeCompensation(ctx context.Context, step *SagaStep, rollbackData map[string]any) error {
	retryStrategy := retry.WithMaxRetries(DefaultRetryCount, retry.NewExponential(DefaultRetryDelay))
	return retry.Do(ctx, retryStrategy, func(retryCtx context.Context) error {
		select {
		case <-retryCtx.Done():
			return retryCtx.Err()
		default:
		}
		if err := step.Compensate(retryCtx, rollbackData); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (s *SagaExecutor) findStepByType(stepType domain.StepType) *SagaStep {
	for i := range s.steps {
		if s.steps[i].Type == stepType {
			return &s.steps[i]
		}
	}
	return nil
}

func (s *SagaExecutor) saveState(ctx context.Context) error {
	return s.stateRepo.Save(ctx, s.state)
}

// saveStateBestEffort logs persistence failures instead of aborting; losing a
// checkpoint is preferable to losing the workflow.
func (s *SagaExecutor) saveStateBestEffort(ctx context.Context, when string) {
	if err := s.saveState(ctx); err != nil {
		s.log.Warnw("failed to save state", "when", when, "error", err)
	}
}

// GetState returns the current session state.
func (s *SagaExecutor) GetState() *domain.ReleaseState {
	return s.state
}

// SessionID returns the identifier of this session.
func (s *SagaExecutor) SessionID() string {
	return s.sessionID
}
