package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relkit/relkit/internal/domain"
)

func newTestSaga(t *testing.T, enableRollback bool) (*SagaExecutor, *mockStateRepository) {
	t.Helper()
	stateRepo := &mockStateRepository{}
	if enableRollback {
		stateRepo.On("Save", mock.Anything, mock.Anything).Return(nil)
	}
	return NewSagaExecutor(stateRepo, enableRollback, zap.NewNop().Sugar()), stateRepo
}

func TestSagaExecutor_Execute(t *testing.T) {
	t.Run("Should execute steps in order", func(t *testing.T) {
		saga, _ := newTestSaga(t, false)
		var order []string
		saga.AddStep(SagaStep{
			Name: "first",
			Type: domain.StepTypeResolveVersion,
			Execute: func(_ context.Context) (map[string]any, error) {
				order = append(order, "first")
				return nil, nil
			},
		})
		saga.AddStep(SagaStep{
			Name: "second",
			Type: domain.StepTypeCreateTag,
			Execute: func(_ context.Context) (map[string]any, error) {
				order = append(order, "second")
				return nil, nil
			},
		})

		err := saga.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "second"}, order)
		assert.Equal(t, domain.WorkflowStatusCompleted, saga.GetState().Status)
	})

	t.Run("Should compensate completed steps in reverse order on failure", func(t *testing.T) {
		saga, _ := newTestSaga(t, true)
		var compensated []string
		saga.AddStep(SagaStep{
			Name: "tag",
			Type: domain.StepTypeCreateTag,
			Execute: func(_ context.Context) (map[string]any, error) {
				return map[string]any{"tag_name": "v1.0.0"}, nil
			},
			Compensate: func(_ context.Context, data map[string]any) error {
				compensated = append(compensated, data["tag_name"].(string))
				return nil
			},
		})
		saga.AddStep(SagaStep{
			Name: "push",
			Type: domain.StepTypePushTag,
			Execute: func(_ context.Context) (map[string]any, error) {
				return nil, errors.New("network down")
			},
		})

		err := saga.Execute(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), `step "push" failed`)
		assert.Equal(t, []string{"v1.0.0"}, compensated)
		assert.Equal(t, domain.WorkflowStatusRolledBack, saga.GetState().Status)
	})

	t.Run("Should not compensate when rollback is disabled", func(t *testing.T) {
		saga, _ := newTestSaga(t, false)
		compensated := false
		saga.AddStep(SagaStep{
			Name: "tag",
			Type: domain.StepTypeCreateTag,
			Execute: func(_ context.Context) (map[string]any, error) {
				return nil, nil
			},
			Compensate: func(_ context.Context, _ map[string]any) error {
				compensated = true
				return nil
			},
		})
		saga.AddStep(SagaStep{
			Name: "push",
			Type: domain.StepTypePushTag,
			Execute: func(_ context.Context) (map[string]any, error) {
				return nil, errors.New("boom")
			},
		})

		err := saga.Execute(context.Background())
		require.Error(t, err)
		assert.False(t, compensated)
	})

	t.Run("Should retry a failing step before giving up", func(t *testing.T) {
		saga, _ := newTestSaga(t, false)
		attempts := 0
		saga.AddStep(SagaStep{
			Name: "flaky",
			Type: domain.StepTypePushTag,
			Execute: func(_ context.Context) (map[string]any, error) {
				attempts++
				if attempts < 2 {
					return nil, errors.New("transient")
				}
				return nil, nil
			},
		})

		err := saga.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
	})

	t.Run("Should persist state when rollback is enabled", func(t *testing.T) {
		saga, stateRepo := newTestSaga(t, true)
		saga.AddStep(SagaStep{
			Name: "step",
			Type: domain.StepTypeResolveVersion,
			Execute: func(_ context.Context) (map[string]any, error) {
				return nil, nil
			},
		})

		err := saga.Execute(context.Background())
		require.NoError(t, err)
		stateRepo.AssertCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestLoadExistingSaga(t *testing.T) {
	t.Run("Should restore state for a known session", func(t *testing.T) {
		state := domain.NewReleaseState("session-1")
		state.AddStep(domain.StepTypeCreateTag)
		stateRepo := &mockStateRepository{}
		stateRepo.On("Load", mock.Anything, "session-1").Return(state, nil)

		saga, err := LoadExistingSaga(context.Background(), stateRepo, "session-1", zap.NewNop().Sugar())
		require.NoError(t, err)
		assert.Equal(t, "session-1", saga.SessionID())
		assert.Len(t, saga.GetState().Steps, 1)
	})

	t.Run("Should fail for an unknown session", func(t *testing.T) {
		stateRepo := &mockStateRepository{}
		stateRepo.On("Load", mock.Anything, "missing").Return(nil, errors.New("not found"))

		_, err := LoadExistingSaga(context.Background(), stateRepo, "missing", zap.NewNop().Sugar())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load saga state")
	})
}
