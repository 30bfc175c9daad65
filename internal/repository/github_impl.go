package repository

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v74/github"
	"github.com/relkit/relkit/internal/config"
	"golang.org/x/oauth2"
)

// githubRepository is the go-github backed implementation of
// GithubRepository.
type githubRepository struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGithubRepository creates a GithubRepository after validating the token
// and repository coordinates.
func NewGithubRepository(token, owner, repo string) (GithubRepository, error) {
	if err := config.ValidateGitHubToken(token); err != nil {
		return nil, fmt.Errorf("invalid GitHub token: %w", err)
	}
	if err := config.ValidateGitHubOwnerRepo(owner, repo); err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: strings.TrimSpace(token)},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	return &githubRepository{
		client: github.NewClient(tc),
		owner:  owner,
		repo:   repo,
	}, nil
}

// CreateRelease publishes a release for the given tag.
func (r *githubRepository) CreateRelease(
	ctx context.Context,
	tag, name, body string,
	prerelease bool,
) (string, error) {
	release, _, err := r.client.Repositories.CreateRelease(ctx, r.owner, r.repo, &github.RepositoryRelease{
		TagName:    github.Ptr(tag),
		Name:       github.Ptr(name),
		Body:       github.Ptr(body),
		Prerelease: github.Ptr(prerelease),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create release for tag %s: %w", tag, err)
	}
	return release.GetHTMLURL(), nil
}

// DeleteRelease removes the release published for the given tag.
func (r *githubRepository) DeleteRelease(ctx context.Context, tag string) error {
	release, resp, err := r.client.Repositories.GetReleaseByTag(ctx, r.owner, r.repo, tag)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to look up release for tag %s: %w", tag, err)
	}
	if _, err := r.client.Repositories.DeleteRelease(ctx, r.owner, r.repo, release.GetID()); err != nil {
		return fmt.Errorf("failed to delete release for tag %s: %w", tag, err)
	}
	return nil
}

// CreateOrUpdatePR creates a pull request, or updates the open PR that
// already exists for the same head and base.
func (r *githubRepository) CreateOrUpdatePR(
	ctx context.Context,
	head, base, title, body string,
	labels []string,
) error {
	prs, _, err := r.client.PullRequests.List(ctx, r.owner, r.repo, &github.PullRequestListOptions{
		Head:  fmt.Sprintf("%s:%s", r.owner, head),
		Base:  base,
		State: "open",
	})
	if err != nil {
		return fmt.Errorf("failed to list pull requests: %w", err)
	}
	if len(prs) > 0 {
		pr := prs[0]
		_, _, err = r.client.PullRequests.Edit(ctx, r.owner, r.repo, pr.GetNumber(), &github.PullRequest{
			Title: &title,
			Body:  &body,
		})
		if err != nil {
			return fmt.Errorf("failed to update pull request: %w", err)
		}
		return r.addLabels(ctx, pr.GetNumber(), labels)
	}
	pr, _, err := r.client.PullRequests.Create(ctx, r.owner, r.repo, &github.NewPullRequest{
		Title: &title,
		Body:  &body,
		Head:  &head,
		Base:  &base,
	})
	if err != nil {
		return fmt.Errorf("failed to create pull request: %w", err)
	}
	return r.addLabels(ctx, pr.GetNumber(), labels)
}

func (r *githubRepository) addLabels(ctx context.Context, prNumber int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	if _, _, err := r.client.Issues.AddLabelsToIssue(ctx, r.owner, r.repo, prNumber, labels); err != nil {
		return fmt.Errorf("failed to add labels: %w", err)
	}
	return nil
}
