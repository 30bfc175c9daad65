package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/relkit/relkit/internal/domain"
)

// gitRepository is the go-git backed implementation of GitRepository.

type gitRepository struct {
	repo      *git.Repository
	remote    string
	token     string
	userName  string
	userEmail string
}

// GitOptions configures a GitRepository.
type GitOptions struct {
	Remote    string
	Token     string
	UserName  string
	UserEmail string
}

// NewGitRepository opens the repository in the working directory.
func NewGitRepository(opts GitOptions) (GitRepository, error) {
	repo, err := git.PlainOpenWithOptions(".", &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}
	return newGitRepository(repo, opts), nil
}

// newGitRepository wraps an already opened repository; tests use it with
// in-memory repositories.
func newGitRepository(repo *git.Repository, opts GitOptions) *gitRepository {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	return &gitRepository{
		repo:      repo,
		remote:    opts.Remote,
		token:     opts.Token,
		userName:  opts.UserName,
		userEmail: opts.UserEmail,
	}
}

// ListTags returns every tag with its creation timestamp and annotation
// message. For annotated tags the tagger time is the creation time; for
// lightweight tags the committer time of the target commit is used.
func (r *gitRepository) ListTags(_ context.Context) ([]domain.TagRecord, error) {
	tagRefs, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	var records []domain.TagRecord
	err = tagRefs.ForEach(func(ref *plumbing.Reference) error {
		record := domain.TagRecord{Name: ref.Name().Short()}
		if tagObj, tagErr := r.repo.TagObject(ref.Hash()); tagErr == nil {
			record.CreatedAt = tagObj.Tagger.When
			record.Annotation = strings.TrimSpace(tagObj.Message)
		} else if commit, commitErr := r.repo.CommitObject(ref.Hash()); commitErr == nil {
			record.CreatedAt = commit.Committer.When
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}
	return records, nil
}

// LatestTagMatching returns the name of the newest tag matching the glob
// pattern, preferring semantic-version order among parseable names. An empty
// string means no tag matched.
func (r *gitRepository) LatestTagMatching(ctx context.Context, pattern string) (string, error) {
	records, err := r.ListTags(ctx)
	if err != nil {
		return "", err
	}
	names, err := domain.FilterAndSort(records, pattern, domain.SortVersion)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", nil
	}
	// Version order places unparseable names last; walk backwards to find
	// the highest parseable version, else settle for the alphabetic maximum.
	for i := len(names) - 1; i >= 0; i-- {
		if _, err := domain.ParseTagVersion(names[i]); err == nil {
			return names[i], nil
		}
	}
	return names[len(names)-1], nil
}

// resolveTagCommit resolves a tag reference to its commit hash, handling
// both lightweight and annotated tags.
func (r *gitRepository) resolveTagCommit(tagRef *plumbing.Reference) (plumbing.Hash, error) {
	if commit, err := r.repo.CommitObject(tagRef.Hash()); err == nil {
		return commit.Hash, nil
	}
	if tagObj, err := r.repo.TagObject(tagRef.Hash()); err == nil {
		if commit, err := r.repo.CommitObject(tagObj.Target); err == nil {
			return commit.Hash, nil
		}
	}
	return plumbing.ZeroHash, fmt.Errorf("failed to resolve commit for tag %s", tagRef.Name().Short())
}

// walkFromHead iterates commits from HEAD until visit returns storer.ErrStop.
func (r *gitRepository) walkFromHead(visit func(c *object.Commit) error) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}
	commits, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return fmt.Errorf("failed to get commits: %w", err)
	}
	if err := commits.ForEach(visit); err != nil && err != storer.ErrStop {
		return fmt.Errorf("failed to iterate commits: %w", err)
	}
	return nil
}

// CommitsSinceTag returns the number of commits between the tag and HEAD.
func (r *gitRepository) CommitsSinceTag(_ context.Context, tag string) (int, error) {
	tagRef, err := r.repo.Tag(tag)
	if err != nil {
		return 0, fmt.Errorf("failed to get tag %s: %w", tag, err)
	}
	tagCommit, err := r.resolveTagCommit(tagRef)
	if err != nil {
		return 0, err
	}
	var count int
	err = r.walkFromHead(func(c *object.Commit) error {
		if c.Hash == tagCommit {
			return storer.ErrStop
		}
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// TotalCommits returns the number of commits reachable from HEAD.
func (r *gitRepository) TotalCommits(_ context.Context) (int, error) {
	var count int
	err := r.walkFromHead(func(_ *object.Commit) error {
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CommitSubjectsSince returns the first line of each commit message between
// the tag and HEAD, newest first. An empty tag means the whole history.
func (r *gitRepository) CommitSubjectsSince(_ context.Context, tag string) ([]string, error) {
	stopAt := plumbing.ZeroHash
	if tag != "" {
		tagRef, err := r.repo.Tag(tag)
		if err != nil {
			return nil, fmt.Errorf("failed to get tag %s: %w", tag, err)
		}
		stopAt, err = r.resolveTagCommit(tagRef)
		if err != nil {
			return nil, err
		}
	}
	var subjects []string
	err := r.walkFromHead(func(c *object.Commit) error {
		if c.Hash == stopAt {
			return storer.ErrStop
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		subjects = append(subjects, strings.TrimSpace(subject))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subjects, nil
}

// TagExists checks if a tag exists.
func (r *gitRepository) TagExists(_ context.Context, tag string) (bool, error) {
	_, err := r.repo.Tag(tag)
	if err == git.ErrTagNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check tag %s: %w", tag, err)
	}
	return true, nil
}

// CreateTag creates a tag at HEAD; a non-empty message produces an annotated
// tag, otherwise the tag is lightweight.
func (r *gitRepository) CreateTag(_ context.Context, tag, msg string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}
	var opts *git.CreateTagOptions
	if msg != "" {
		opts = &git.CreateTagOptions{
			Message: msg,
			Tagger: &object.Signature{
				Name:  r.userName,
				Email: r.userEmail,
				When:  time.Now(),
			},
		}
	}
	if _, err := r.repo.CreateTag(tag, head.Hash(), opts); err != nil {
		return fmt.Errorf("failed to create tag %s: %w", tag, err)
	}
	return nil
}

// DeleteTag removes a local tag.
func (r *gitRepository) DeleteTag(_ context.Context, tag string) error {
	if err := r.repo.DeleteTag(tag); err != nil {
		return fmt.Errorf("failed to delete tag %s: %w", tag, err)
	}
	return nil
}

// PushTag pushes a tag to the remote.
func (r *gitRepository) PushTag(ctx context.Context, tag string) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: r.remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("refs/tags/%s:refs/tags/%s", tag, tag))},
		Auth:       r.auth(),
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("failed to push tag %s: %w", tag, err)
	}
	return nil
}

// DeleteRemoteTag removes a tag from the remote.
func (r *gitRepository) DeleteRemoteTag(ctx context.Context, tag string) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: r.remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(":refs/tags/" + tag)},
		Auth:       r.auth(),
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("failed to delete remote tag %s: %w", tag, err)
	}
	return nil
}

// CreateBranch creates a new branch at HEAD.
func (r *gitRepository) CreateBranch(_ context.Context, name string) error {
	branchRef := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(branchRef, false); err == nil {
		return fmt.Errorf("branch %s already exists", name)
	}
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}
	ref := plumbing.NewHashReference(branchRef, head.Hash())
	return r.repo.Storer.SetReference(ref)
}

// DeleteBranch deletes a local branch.
func (r *gitRepository) DeleteBranch(_ context.Context, name string) error {
	if err := r.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(name)); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", name, err)
	}
	return nil
}

// DeleteRemoteBranch deletes a branch from the remote.
func (r *gitRepository) DeleteRemoteBranch(ctx context.Context, name string) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: r.remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(":refs/heads/" + name)},
		Auth:       r.auth(),
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("failed to delete remote branch %s: %w", name, err)
	}
	return nil
}

// ListLocalBranches returns all local branch names.
func (r *gitRepository) ListLocalBranches(_ context.Context) ([]string, error) {
	iter, err := r.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	var branches []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		branches = append(branches, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate branches: %w", err)
	}
	return branches, nil
}

// ListRemoteBranches returns all branch names on the remote.
func (r *gitRepository) ListRemoteBranches(_ context.Context) ([]string, error) {
	remote, err := r.repo.Remote(r.remote)
	if err != nil {
		return nil, fmt.Errorf("failed to get remote: %w", err)
	}
	refs, err := remote.List(&git.ListOptions{Auth: r.auth()})
	if err != nil {
		return nil, fmt.Errorf("failed to list remote refs: %w", err)
	}
	var branches []string
	for _, ref := range refs {
		if ref.Name().IsBranch() {
			branches = append(branches, ref.Name().Short())
		}
	}
	return branches, nil
}

// CheckoutBranch switches the worktree to the given branch.
func (r *gitRepository) CheckoutBranch(_ context.Context, name string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	return w.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
	})
}

// CurrentBranch returns the short name of the branch HEAD points at.
func (r *gitRepository) CurrentBranch(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return head.Name().Short(), nil
}

// PushBranch pushes a branch to the remote.
func (r *gitRepository) PushBranch(ctx context.Context, name string) error {
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: r.remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", name, name))},
		Auth:       r.auth(),
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("failed to push branch %s: %w", name, err)
	}
	return nil
}

// ConfigureUser sets the git user configuration.
func (r *gitRepository) ConfigureUser(_ context.Context, name, email string) error {
	cfg, err := r.repo.Config()
	if err != nil {
		return fmt.Errorf("failed to get config: %w", err)
	}
	cfg.User.Name = name
	cfg.User.Email = email
	return r.repo.Storer.SetConfig(cfg)
}

// AddFiles stages files matching the pattern. A pattern matching nothing is
// not an error, mirroring git add behaviour with --ignore-missing intent.
func (r *gitRepository) AddFiles(_ context.Context, pattern string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	err = w.AddGlob(pattern)
	if err != nil && err.Error() != "glob pattern did not match any files" {
		return fmt.Errorf("failed to add files with pattern %s: %w", pattern, err)
	}
	return nil
}

// Commit creates a commit with the configured user as author.
func (r *gitRepository) Commit(_ context.Context, message string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	opts := &git.CommitOptions{}
	if r.userName != "" {
		opts.Author = &object.Signature{
			Name:  r.userName,
			Email: r.userEmail,
			When:  time.Now(),
		}
	}
	if _, err := w.Commit(message, opts); err != nil {
		return fmt.Errorf("failed to create commit: %w", err)
	}
	return nil
}

// HeadCommit returns the SHA of the current HEAD commit.
func (r *gitRepository) HeadCommit(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

// ResetHard performs a hard reset to the given revision.
func (r *gitRepository) ResetHard(_ context.Context, ref string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return fmt.Errorf("failed to resolve revision %s: %w", ref, err)
	}
	if err := w.Reset(&git.ResetOptions{Commit: *hash, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", ref, err)
	}
	return nil
}

// auth returns token authentication for remote operations, or nil when no
// token is configured.
func (r *gitRepository) auth() *http.BasicAuth {
	if r.token == "" {
		return nil
	}
	// GitHub accepts any username with a token password over HTTPS.
	return &http.BasicAuth{Username: "x-access-token", Password: r.token}
}
