package domain

import (
	"fmt"
	"time"
)

// WorkflowStatus represents the overall status of a release workflow.
type WorkflowStatus string

const (
	WorkflowStatusPending    WorkflowStatus = "pending"
	WorkflowStatusRunning    WorkflowStatus = "running"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
	WorkflowStatusFailed     WorkflowStatus = "failed"
	WorkflowStatusRolledBack WorkflowStatus = "rolled_back"
)

// StepStatus represents the status of an individual workflow step.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusRunning    StepStatus = "running"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
	StepStatusRolledBack StepStatus = "rolled_back"
)

// StepType identifies one step of the release workflow.
type StepType string

const (
	StepTypeResolveVersion  StepType = "resolve_version"
	StepTypeCreateBranch    StepType = "create_branch"
	StepTypeUpdateChangelog StepType = "update_changelog"
	StepTypeCommitChanges   StepType = "commit_changes"
	StepTypeCreateTag       StepType = "create_tag"
	StepTypePushBranch      StepType = "push_branch"
	StepTypePushTag         StepType = "push_tag"
	StepTypeCreateRelease   StepType = "create_release"
	StepTypeCreatePR        StepType = "create_pr"
)

// ReleaseState is the persisted state of a release workflow, kept so a
// failed run can be compensated later.
type ReleaseState struct {
	SessionID      string       `json:"session_id"`
	StartedAt      time.Time    `json:"started_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	Version        string       `json:"version"`
	TagName        string       `json:"tag_name"`
	Branch         string       `json:"branch"`
	OriginalCommit string       `json:"original_commit"`
	Steps          []StepRecord `json:"steps"`
	Status         WorkflowStatus `json:"status"`
	Error          string       `json:"error,omitempty"`
}

// StepRecord is one step of the workflow as persisted in the state file.
type StepRecord struct {
	ID           string         `json:"id"`
	Type         StepType       `json:"type"`
	Status       StepStatus     `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	RollbackData map[string]any `json:"rollback_data,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// NewReleaseState creates a fresh state for the given session.
func NewReleaseState(sessionID string) *ReleaseState {
	now := time.Now()
	return &ReleaseState{
		SessionID: sessionID,
		StartedAt: now,
		UpdatedAt: now,
		Steps:     []StepRecord{},
		Status:    WorkflowStatusPending,
	}
}

// AddStep registers a pending step record.
func (rs *ReleaseState) AddStep(stepType StepType) *StepRecord {
	step := StepRecord{
		ID:        fmt.Sprintf("%s-%d", stepType, time.Now().UnixNano()),
		Type:      stepType,
		Status:    StepStatusPending,
		StartedAt: time.Now(),
	}
	rs.Steps = append(rs.Steps, step)
	rs.UpdatedAt = time.Now()
	return &rs.Steps[len(rs.Steps)-1]
}

// CompletedSteps returns the successfully completed steps in reverse order,
// which is the order compensations must run in.
func (rs *ReleaseState) CompletedSteps() []StepRecord {
	var completed []StepRecord
	for i := len(rs.Steps) - 1; i >= 0; i-- {
		if rs.Steps[i].Status == StepStatusCompleted {
			completed = append(completed, rs.Steps[i])
		}
	}
	return completed
}

// MarkStepStarted flips the first pending record of the given type to running.
func (rs *ReleaseState) MarkStepStarted(stepType StepType) {
	for i := range rs.Steps {
		if rs.Steps[i].Type == stepType && rs.Steps[i].Status == StepStatusPending {
			rs.Steps[i].Status = StepStatusRunning
			rs.Steps[i].StartedAt = time.Now()
			rs.UpdatedAt = time.Now()
			break
		}
	}
}

// MarkStepCompleted records a successful step together with the data its
// compensation will need.
func (rs *ReleaseState) MarkStepCompleted(stepType StepType, rollbackData map[string]any) {
	now := time.Now()
	for i := range rs.Steps {
		if rs.Steps[i].Type == stepType && rs.Steps[i].Status == StepStatusRunning {
			rs.Steps[i].Status = StepStatusCompleted
			rs.Steps[i].CompletedAt = &now
			rs.Steps[i].RollbackData = rollbackData
			rs.UpdatedAt = now
			break
		}
	}
}

// MarkStepFailed records a failed step and marks the whole workflow failed.
func (rs *ReleaseState) MarkStepFailed(stepType StepType, err error) {
	now := time.Now()
	for i := range rs.Steps {
		if rs.Steps[i].Type == stepType && rs.Steps[i].Status == StepStatusRunning {
			rs.Steps[i].Status = StepStatusFailed
			rs.Steps[i].CompletedAt = &now
			if err != nil {
				rs.Steps[i].Error = err.Error()
			}
			break
		}
	}
	rs.Status = WorkflowStatusFailed
	if err != nil {
		rs.Error = err.Error()
	}
	rs.UpdatedAt = now
}

// MarkStepRolledBack records that a step's compensation has run.
func (rs *ReleaseState) MarkStepRolledBack(stepType StepType) {
	for i := range rs.Steps {
		if rs.Steps[i].Type == stepType && rs.Steps[i].Status == StepStatusCompleted {
			rs.Steps[i].Status = StepStatusRolledBack
			rs.UpdatedAt = time.Now()
			break
		}
	}
}
