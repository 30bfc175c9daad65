package orchestrator

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Timeout and retry settings, overridable through the environment.
var (
	// ReleaseTimeout bounds the whole release workflow.
	ReleaseTimeout = getTimeoutOrDefault("RELKIT_RELEASE_TIMEOUT", 30*time.Minute, 5*time.Second)
	// RollbackTimeout bounds compensations; it runs on a detached context so
	// cancellation of the workflow cannot abort a rollback midway.
	RollbackTimeout = getTimeoutOrDefault("RELKIT_ROLLBACK_TIMEOUT", 10*time.Minute, 100*time.Millisecond)
	// DefaultRetryCount is the number of retries for remote operations.
	DefaultRetryCount = uint64(getRetryCountOrDefault("RELKIT_RETRY_COUNT", 3, 1))
	// DefaultRetryDelay is the initial delay for exponential backoff.
	DefaultRetryDelay = getTimeoutOrDefault("RELKIT_RETRY_DELAY", 1*time.Second, 100*time.Millisecond)
)

// isTestEnvironment detects a `go test` run so the defaults stay short.
func isTestEnvironment() bool {
	for _, arg := range os.Args {
		if strings.Contains(arg, ".test") || strings.Contains(arg, "go test") {
			return true
		}
	}
	return os.Getenv("GO_TEST") == "true" || os.Getenv("TEST_MODE") == "true"
}

func getTimeoutOrDefault(envVar string, prodDefault, testDefault time.Duration) time.Duration {
	if env := os.Getenv(envVar); env != "" {
		if duration, err := time.ParseDuration(env); err == nil {
			return duration
		}
	}
	if isTestEnvironment() {
		return testDefault
	}
	return prodDefault
}

func getRetryCountOrDefault(envVar string, prodDefault, testDefault int) int {
	if env := os.Getenv(envVar); env != "" {
		if count, err := strconv.Atoi(env); err == nil {
			return count
		}
	}
	if isTestEnvironment() {
		return testDefault
	}
	return prodDefault
}
