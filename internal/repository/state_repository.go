package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/relkit/relkit/internal/domain"
	"github.com/spf13/afero"
)

const (
	// StateSchemaVersion is the schema version written into state files.
	StateSchemaVersion = "1.0.0"
	// StateFilePermissions is the mode for state files.
	StateFilePermissions = 0600
	// StateDirPermissions is the mode for the state directory.
	StateDirPermissions = 0700
	// LockTimeout bounds how long Save/Load wait for the file lock.
	LockTimeout = 30 * time.Second
	// LockRetryInterval is the polling interval while waiting for a lock.
	LockRetryInterval = 100 * time.Millisecond
)

// StateRepository persists release workflow state so a failed session can be
// rolled back later, possibly from a different process.
type StateRepository interface {
	Save(ctx context.Context, state *domain.ReleaseState) error
	Load(ctx context.Context, sessionID string) (*domain.ReleaseState, error)
	LoadLatest(ctx context.Context) (*domain.ReleaseState, error)
	Delete(ctx context.Context, sessionID string) error
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// StateMetadata describes the state file itself.
type StateMetadata struct {
	SchemaVersion string    `json:"schema_version"`
	Checksum      string    `json:"checksum"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StateWrapper is the on-disk envelope around the state.
type StateWrapper struct {
	Metadata StateMetadata        `json:"metadata"`
	State    *domain.ReleaseState `json:"state"`
}

// JSONStateRepository stores state as checksummed JSON files guarded by file
// locks, so concurrent job steps cannot corrupt a session.
type JSONStateRepository struct {
	fs       afero.Fs
	stateDir string
	mu       sync.Mutex
}

// NewJSONStateRepository creates a JSON-file based state repository.
func NewJSONStateRepository(fs afero.Fs, stateDir string) StateRepository {
	if stateDir == "" {
		stateDir = ".relkit-state"
	}
	return &JSONStateRepository{fs: fs, stateDir: stateDir}
}

// Save writes the state atomically under an exclusive lock.
func (r *JSONStateRepository) Save(ctx context.Context, state *domain.ReleaseState) error {
	if err := r.fs.MkdirAll(r.stateDir, StateDirPermissions); err != nil {
		return fmt.Errorf("failed to ensure state directory: %w", err)
	}
	filename := r.stateFilename(state.SessionID)
	unlock, err := r.lock(ctx, state.SessionID, (*flock.Flock).TryLock)
	if err != nil {
		return err
	}
	defer unlock()
	stateData, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	wrapper := StateWrapper{
		Metadata: StateMetadata{
			SchemaVersion: StateSchemaVersion,
			Checksum:      checksum(stateData),
			CreatedAt:     state.StartedAt,
			UpdatedAt:     time.Now(),
		},
		State: state,
	}
	data, err := json.MarshalIndent(wrapper, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state wrapper: %w", err)
	}
	// Atomic write via temp file and rename.
	tempFile := filename + ".tmp"
	if err := afero.WriteFile(r.fs, tempFile, data, StateFilePermissions); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := r.fs.Rename(tempFile, filename); err != nil {
		if removeErr := r.fs.Remove(tempFile); removeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove temp file: %v\n", removeErr)
		}
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return r.updateLatestLink(filename)
}

// Load reads and validates the state for one session under a shared lock.
func (r *JSONStateRepository) Load(ctx context.Context, sessionID string) (*domain.ReleaseState, error) {
	unlock, err := r.lock(ctx, sessionID, (*flock.Flock).TryRLock)
	if err != nil {
		return nil, err
	}
	defer unlock()
	data, err := afero.ReadFile(r.fs, r.stateFilename(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("state not found for session %s", sessionID)
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var wrapper StateWrapper
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state wrapper: %w", err)
	}
	if wrapper.Metadata.SchemaVersion != StateSchemaVersion {
		return nil, fmt.Errorf("incompatible schema version: expected %s, got %s",
			StateSchemaVersion, wrapper.Metadata.SchemaVersion)
	}
	stateData, err := json.Marshal(wrapper.State)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state for checksum validation: %w", err)
	}
	if wrapper.Metadata.Checksum != checksum(stateData) {
		return nil, fmt.Errorf("state checksum mismatch: data may be corrupted")
	}
	return wrapper.State, nil
}

// LoadLatest reads the most recently saved state.
func (r *JSONStateRepository) LoadLatest(ctx context.Context) (*domain.ReleaseState, error) {
	r.mu.Lock()
	data, err := afero.ReadFile(r.fs, r.latestLink())
	r.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no latest state found")
		}
		return nil, fmt.Errorf("failed to read latest link: %w", err)
	}
	sessionID := r.sessionIDFromFilename(string(data))
	if sessionID == "" {
		return nil, fmt.Errorf("invalid latest link target: %s", string(data))
	}
	return r.Load(ctx, sessionID)
}

// Delete removes a session's state and lock files.
func (r *JSONStateRepository) Delete(ctx context.Context, sessionID string) error {
	unlock, err := r.lock(ctx, sessionID, (*flock.Flock).TryLock)
	if err != nil {
		return err
	}
	defer unlock()
	if err := r.fs.Remove(r.stateFilename(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	if err := r.fs.Remove(r.lockFilename(sessionID)); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to remove lock file: %v\n", err)
	}
	return nil
}

// Exists checks whether a session's state file is present.
func (r *JSONStateRepository) Exists(_ context.Context, sessionID string) (bool, error) {
	_, err := r.fs.Stat(r.stateFilename(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check state file: %w", err)
	}
	return true, nil
}

// lock acquires the session lock with the given strategy, polling until the
// context or LockTimeout expires. The returned func releases the lock.
func (r *JSONStateRepository) lock(
	ctx context.Context,
	sessionID string,
	try func(*flock.Flock) (bool, error),
) (func(), error) {
	lock := flock.New(r.lockFilename(sessionID))
	lockCtx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()
	ticker := time.NewTicker(LockRetryInterval)
	defer ticker.Stop()
	for {
		locked, err := try(lock)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if locked {
			return func() {
				if unlockErr := lock.Unlock(); unlockErr != nil {
					fmt.Fprintf(os.Stderr, "warning: failed to unlock file: %v\n", unlockErr)
				}
			}, nil
		}
		select {
		case <-lockCtx.Done():
			return nil, fmt.Errorf("could not acquire lock within timeout: %w", lockCtx.Err())
		case <-ticker.C:
		}
	}
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func (r *JSONStateRepository) stateFilename(sessionID string) string {
	return filepath.Join(r.stateDir, fmt.Sprintf("state-%s.json", sessionID))
}

func (r *JSONStateRepository) lockFilename(sessionID string) string {
	return filepath.Join(r.stateDir, fmt.Sprintf(".state-%s.lock", sessionID))
}

func (r *JSONStateRepository) latestLink() string {
	return filepath.Join(r.stateDir, "latest.txt")
}

// updateLatestLink records the filename of the most recent state.
func (r *JSONStateRepository) updateLatestLink(target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	link := r.latestLink()
	tempLink := link + ".tmp"
	if err := afero.WriteFile(r.fs, tempLink, []byte(target), StateFilePermissions); err != nil {
		return fmt.Errorf("failed to write temp latest link: %w", err)
	}
	if err := r.fs.Rename(tempLink, link); err != nil {
		if removeErr := r.fs.Remove(tempLink); removeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove temp link: %v\n", removeErr)
		}
		return fmt.Errorf("failed to update latest link: %w", err)
	}
	return nil
}

// sessionIDFromFilename extracts the session ID from a state filename.
func (r *JSONStateRepository) sessionIDFromFilename(filename string) string {
	base := filepath.Base(filename)
	if len(base) > 11 && base[:6] == "state-" && base[len(base)-5:] == ".json" {
		return base[6 : len(base)-5]
	}
	return ""
}
