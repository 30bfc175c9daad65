package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/relkit/relkit/internal/domain"
	"github.com/spf13/viper"
)

// Config holds the recognized options of every command. In CI the values
// arrive as action inputs (INPUT_* environment variables); locally they can
// come from a .relkit.yaml file or RELKIT_* variables.
type Config struct {
	DefaultVersion string `mapstructure:"default_version"`
	VersionPrefix  string `mapstructure:"version_prefix"`
	TagPattern     string `mapstructure:"tag_pattern"`
	Pattern        string `mapstructure:"pattern"`
	Sort           string `mapstructure:"sort"`
	ChangelogFile  string `mapstructure:"changelog_file"`
	Remote         string `mapstructure:"remote"`
	GithubToken    string `mapstructure:"github_token"`
	GithubOwner    string `mapstructure:"github_owner"`
	GithubRepo     string `mapstructure:"github_repo"`
	GitUserName    string `mapstructure:"git_user_name"`
	GitUserEmail   string `mapstructure:"git_user_email"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DefaultVersion: "v0.1.0",
		VersionPrefix:  "v",
		TagPattern:     "v*",
		Sort:           "alphabetic",
		ChangelogFile:  "CHANGELOG.md",
		Remote:         "origin",
		GitUserName:    "github-actions[bot]",
		GitUserEmail:   "github-actions[bot]@users.noreply.github.com",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := domain.ParseVersion(c.DefaultVersion, c.VersionPrefix); err != nil {
		return fmt.Errorf("invalid default_version: %w", err)
	}
	if _, err := domain.ParseSortMode(c.Sort); err != nil {
		return fmt.Errorf("invalid sort: %w", err)
	}
	if c.TagPattern != "" {
		if err := domain.ValidatePattern(c.TagPattern); err != nil {
			return fmt.Errorf("invalid tag_pattern: %w", err)
		}
	}
	if c.Pattern != "" {
		if err := domain.ValidatePattern(c.Pattern); err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	}
	if c.ChangelogFile == "" {
		return fmt.Errorf("changelog_file cannot be empty")
	}
	if strings.Contains(c.ChangelogFile, "..") {
		return fmt.Errorf("changelog_file contains invalid path traversal")
	}
	// GitHub token is optional - only validate if provided
	if c.GithubToken != "" {
		if err := ValidateGitHubToken(c.GithubToken); err != nil {
			return fmt.Errorf("invalid github_token: %w", err)
		}
	}
	if c.GithubOwner != "" || c.GithubRepo != "" {
		if err := ValidateGitHubOwnerRepo(c.GithubOwner, c.GithubRepo); err != nil {
			return fmt.Errorf("invalid github configuration: %w", err)
		}
	}
	return nil
}

// ValidateForGitHubOperations validates that the GitHub side of the
// configuration is complete enough to call the API.
func (c *Config) ValidateForGitHubOperations() error {
	if c.GithubToken == "" {
		return fmt.Errorf("github_token is required for GitHub operations")
	}
	if c.GithubOwner == "" || c.GithubRepo == "" {
		return fmt.Errorf("github_owner and github_repo are required for GitHub operations")
	}
	return c.Validate()
}

// ValidateGitHubToken validates GitHub token format (exported for reuse).
func ValidateGitHubToken(token string) error {
	token = strings.TrimSpace(token)
	if len(token) < 40 {
		return fmt.Errorf("token too short: expected at least 40 characters")
	}
	classicPAT := regexp.MustCompile(`^[a-fA-F0-9]{40}$`)
	fineGrainedPAT := regexp.MustCompile(`^github_pat_[a-zA-Z0-9_]{82}$`)
	appToken := regexp.MustCompile(`^ghs_[a-zA-Z0-9]{36}$`)
	oauthToken := regexp.MustCompile(`^gho_[a-zA-Z0-9]{36}$`)
	if !classicPAT.MatchString(token) &&
		!fineGrainedPAT.MatchString(token) &&
		!appToken.MatchString(token) &&
		!oauthToken.MatchString(token) {
		return fmt.Errorf("invalid token format")
	}
	return nil
}

// ValidateGitHubOwnerRepo validates GitHub owner and repository names
// (exported for reuse).
func ValidateGitHubOwnerRepo(owner, repo string) error {
	if owner == "" {
		return fmt.Errorf("owner cannot be empty")
	}
	if repo == "" {
		return fmt.Errorf("repository cannot be empty")
	}
	validName := regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-_.]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)
	if !validName.MatchString(owner) {
		return fmt.Errorf("invalid owner format: %s", owner)
	}
	if len(owner) > 39 {
		return fmt.Errorf("owner too long: maximum 39 characters")
	}
	if !validName.MatchString(repo) {
		return fmt.Errorf("invalid repository format: %s", repo)
	}
	if len(repo) > 100 {
		return fmt.Errorf("repository too long: maximum 100 characters")
	}
	return nil
}

// LoadConfig reads configuration from file, environment and action inputs.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".relkit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("RELKIT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Actions pass declared inputs as INPUT_<NAME>; plain variables are the
	// local fallback. BindEnv checks the listed variables in order.
	binds := map[string][]string{
		"default_version": {"INPUT_DEFAULT_VERSION", "RELKIT_DEFAULT_VERSION"},
		"version_prefix":  {"INPUT_VERSION_PREFIX", "RELKIT_VERSION_PREFIX"},
		"tag_pattern":     {"INPUT_TAG_PATTERN", "RELKIT_TAG_PATTERN"},
		"pattern":         {"INPUT_PATTERN", "RELKIT_PATTERN"},
		"sort":            {"INPUT_SORT", "RELKIT_SORT"},
		"changelog_file":  {"INPUT_CHANGELOG_FILE", "RELKIT_CHANGELOG_FILE"},
		"remote":          {"INPUT_REMOTE", "RELKIT_REMOTE"},
		"github_token":    {"INPUT_GITHUB_TOKEN", "GITHUB_TOKEN", "RELKIT_GITHUB_TOKEN"},
		"github_owner":    {"RELKIT_GITHUB_OWNER"},
		"github_repo":     {"RELKIT_GITHUB_REPO"},
		"git_user_name":   {"INPUT_GIT_USER_NAME", "RELKIT_GIT_USER_NAME"},
		"git_user_email":  {"INPUT_GIT_USER_EMAIL", "RELKIT_GIT_USER_EMAIL"},
	}
	for key, envs := range binds {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s env: %w", key, err)
		}
	}
	defaults := DefaultConfig()
	v.SetDefault("default_version", defaults.DefaultVersion)
	v.SetDefault("version_prefix", defaults.VersionPrefix)
	v.SetDefault("tag_pattern", defaults.TagPattern)
	v.SetDefault("sort", defaults.Sort)
	v.SetDefault("changelog_file", defaults.ChangelogFile)
	v.SetDefault("remote", defaults.Remote)
	v.SetDefault("git_user_name", defaults.GitUserName)
	v.SetDefault("git_user_email", defaults.GitUserEmail)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := populateRepositoryDefaults(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// populateRepositoryDefaults fills owner and repo from the Actions
// environment, falling back to the origin remote of the repository in the
// working directory.
func populateRepositoryDefaults(cfg *Config) error {
	if cfg.GithubOwner == "" {
		cfg.GithubOwner = os.Getenv("GITHUB_REPOSITORY_OWNER")
	}
	if cfg.GithubRepo == "" {
		cfg.GithubRepo = os.Getenv("GITHUB_REPOSITORY_NAME")
	}
	if slug := os.Getenv("GITHUB_REPOSITORY"); slug != "" {
		if idx := strings.Index(slug, "/"); idx > 0 && idx < len(slug)-1 {
			if cfg.GithubOwner == "" {
				cfg.GithubOwner = slug[:idx]
			}
			if cfg.GithubRepo == "" {
				cfg.GithubRepo = slug[idx+1:]
			}
		}
	}
	if cfg.GithubOwner != "" && cfg.GithubRepo != "" {
		return nil
	}
	owner, repo, err := ownerRepoFromRemote(cfg.Remote)
	if err != nil {
		// Owner/repo stay optional outside GitHub operations.
		return nil
	}
	if cfg.GithubOwner == "" {
		cfg.GithubOwner = owner
	}
	if cfg.GithubRepo == "" {
		cfg.GithubRepo = repo
	}
	return nil
}

// ownerRepoFromRemote derives owner and repo from the URL of the named
// remote of the repository in the working directory.
func ownerRepoFromRemote(remoteName string) (string, string, error) {
	if remoteName == "" {
		remoteName = "origin"
	}
	repo, err := git.PlainOpen(".")
	if err != nil {
		return "", "", fmt.Errorf("failed to open git repository: %w", err)
	}
	remote, err := repo.Remote(remoteName)
	if err != nil {
		return "", "", fmt.Errorf("failed to get remote %s: %w", remoteName, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", "", fmt.Errorf("remote %s has no URL", remoteName)
	}
	return parseGitRemoteURL(urls[0])
}

// parseGitRemoteURL extracts owner and repo from https, ssh and plain path
// remote URLs.
func parseGitRemoteURL(url string) (string, string, error) {
	trimmed := strings.TrimSuffix(url, ".git")
	if idx := strings.LastIndex(trimmed, ":"); idx >= 0 && !strings.Contains(trimmed, "://") {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(trimmed, string(filepath.Separator))
	parts := strings.Split(filepath.ToSlash(trimmed), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("cannot derive owner/repo from remote URL %q", url)
	}
	owner := parts[len(parts)-2]
	repo := parts[len(parts)-1]
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("cannot derive owner/repo from remote URL %q", url)
	}
	return owner, repo, nil
}
