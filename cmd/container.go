package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/relkit/relkit/internal/config"
	"github.com/relkit/relkit/internal/logger"
	"github.com/relkit/relkit/internal/output"
	"github.com/relkit/relkit/internal/repository"
)

// container wires the shared dependencies of the commands. Git and GitHub
// clients are created lazily so commands that never touch them (version,
// changelog rendering against a path) work outside a repository.
type container struct {
	cfg *config.Config
	fs  repository.FileSystemRepository

	log     *zap.SugaredLogger
	gitRepo repository.GitRepository
	ghRepo  repository.GithubRepository
}

func newContainer() (*container, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &container{cfg: cfg, fs: repository.FileSystemRepository(afero.NewOsFs())}, nil
}

// logger builds the process logger on first use, after cobra has parsed the
// debug flag.
func (c *container) logger() *zap.SugaredLogger {
	if c.log == nil {
		log, err := logger.New(debugMode)
		if err != nil {
			log = logger.NewNop()
		}
		c.log = log
	}
	return c.log
}

func (c *container) git() (repository.GitRepository, error) {
	if c.gitRepo == nil {
		repo, err := repository.NewGitRepository(repository.GitOptions{
			Remote:    c.cfg.Remote,
			Token:     c.cfg.GithubToken,
			UserName:  c.cfg.GitUserName,
			UserEmail: c.cfg.GitUserEmail,
		})
		if err != nil {
			return nil, err
		}
		c.gitRepo = repo
	}
	return c.gitRepo, nil
}

func (c *container) github() (repository.GithubRepository, error) {
	if c.ghRepo != nil {
		return c.ghRepo, nil
	}
	if c.cfg.GithubToken == "" {
		c.ghRepo = repository.NewGithubNoopRepository(c.cfg.GithubOwner, c.cfg.GithubRepo)
		return c.ghRepo, nil
	}
	if err := c.cfg.ValidateForGitHubOperations(); err != nil {
		return nil, fmt.Errorf("github configuration incomplete: %w", err)
	}
	repo, err := repository.NewGithubRepository(c.cfg.GithubToken, c.cfg.GithubOwner, c.cfg.GithubRepo)
	if err != nil {
		return nil, err
	}
	c.ghRepo = repo
	return c.ghRepo, nil
}

func (c *container) stateRepo() repository.StateRepository {
	return repository.NewJSONStateRepository(c.fs, "")
}

func (c *container) outputs() *output.Writer {
	return output.NewWriter(c.fs)
}

// InitCommands initializes all commands with their dependencies.
func InitCommands() error {
	c, err := newContainer()
	if err != nil {
		return err
	}
	rootCmd.AddCommand(
		newVersionCmd(),
		newNextVersionCmd(c),
		newTagCmd(c),
		newBranchCmd(c),
		newChangelogCmd(c),
		newReleaseCmd(c),
	)
	return nil
}
