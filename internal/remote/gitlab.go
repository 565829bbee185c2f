package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
	gitlab "gitlab.com/gitlab-org/api/client-go"
	"go.uber.org/zap"
)

// GitLabOptions configures a GitLabProvider.
type GitLabOptions struct {
	BaseURL         string // instance root, defaults to contract.DefaultGitLabURL
	Token           string
	HTTPClient      *http.Client
	IssueLookback   time.Duration
	ReleaseLookback time.Duration
}

// GitLabProvider opens repositories through the GitLab REST API.
type GitLabProvider struct {
	client *gitlab.Client
	hosts  []string
	opts   GitLabOptions
	log    *zap.Logger
	now    func() time.Time
}

var _ contract.RemoteProvider = &GitLabProvider{} // Compile-time check

// NewGitLabProvider creates a GitLabProvider for one instance.
func NewGitLabProvider(opts GitLabOptions, logger *zap.Logger) (*GitLabProvider, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = contract.DefaultGitLabURL
	}
	if opts.IssueLookback <= 0 {
		opts.IssueLookback = contract.DefaultIssueLookbackDays * 24 * time.Hour
	}
	if opts.ReleaseLookback <= 0 {
		opts.ReleaseLookback = contract.DefaultReleaseLookbackDays * 24 * time.Hour
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid gitlab url %q", opts.BaseURL)
	}

	log := contract.WithComponent(logger, "gitlab")
	if opts.Token == "" {
		log.Debug("no gitlab token configured, some signals may be unavailable")
	}
	clientOpts := []gitlab.ClientOptionFunc{gitlab.WithBaseURL(opts.BaseURL)}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, gitlab.WithHTTPClient(opts.HTTPClient))
	}
	client, err := gitlab.NewClient(opts.Token, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gitlab client: %w", err)
	}

	host := strings.ToLower(u.Host)
	hosts := []string{host}
	if host == "gitlab.com" {
		hosts = append(hosts, "www.gitlab.com")
	}
	return &GitLabProvider{client: client, hosts: hosts, opts: opts, log: log, now: time.Now}, nil
}

// Kind implements contract.RemoteProvider.
func (p *GitLabProvider) Kind() schema.ProviderKind { return schema.GitLabProvider }

// Supports implements contract.RemoteProvider.
func (p *GitLabProvider) Supports(host string) bool {
	return slices.Contains(p.hosts, strings.ToLower(host))
}

// Open fetches the project and returns a handle for its signals.
func (p *GitLabProvider) Open(ctx context.Context, ref schema.RepoRef) (contract.RemoteRepository, error) {
	project, _, err := p.client.Projects.GetProject(ref.FullName, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", ref.FullName, err)
	}
	repo := &gitLabRepository{provider: p, project: project}

	langs, _, err := p.client.Projects.GetProjectLanguages(project.ID, gitlab.WithContext(ctx))
	if err != nil {
		p.log.Debug("project languages unavailable", zap.String("repo", ref.FullName), zap.Error(err))
	} else if langs != nil {
		repo.language = primaryLanguage(*langs)
	}
	return repo, nil
}

// primaryLanguage picks the language with the largest share, ties broken by name.
func primaryLanguage(langs map[string]float32) string {
	best, share := "", float32(-1)
	for name, s := range langs {
		if s > share || (s == share && name < best) {
			best, share = name, s
		}
	}
	return best
}

// gitLabRepository computes the scored signals of one GitLab project.
type gitLabRepository struct {
	provider *GitLabProvider
	project  *gitlab.Project
	language string
}

func (r *gitLabRepository) Name() string     { return strings.ToLower(r.project.PathWithNamespace) }
func (r *gitLabRepository) URL() string      { return r.project.WebURL }
func (r *gitLabRepository) Language() string { return r.language }

func (r *gitLabRepository) client() *gitlab.Client { return r.provider.client }
func (r *gitLabRepository) now() time.Time         { return r.provider.now().UTC() }

// CreatedSince is the project age in months.
func (r *gitLabRepository) CreatedSince(context.Context) (int, error) {
	if r.project.CreatedAt == nil {
		return 0, nil
	}
	return monthsSince(r.now(), *r.project.CreatedAt), nil
}

// UpdatedSince is the number of months since the last project activity.
func (r *gitLabRepository) UpdatedSince(context.Context) (int, error) {
	if r.project.LastActivityAt == nil {
		return 0, nil
	}
	return monthsSince(r.now(), *r.project.LastActivityAt), nil
}

// ContributorCount counts repository contributors.
func (r *gitLabRepository) ContributorCount(ctx context.Context) (int, error) {
	total := 0
	opts := &gitlab.ListContributorsOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	for {
		contributors, resp, err := r.client().Repositories.Contributors(r.project.ID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return 0, err
		}
		total += len(contributors)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return total, nil
}

// OrgCount is not available on GitLab.
func (r *gitLabRepository) OrgCount(context.Context) (int, error) { return 0, nil }

// CommitFrequency is the average weekly commit count over the last year.
func (r *gitLabRepository) CommitFrequency(ctx context.Context) (float64, error) {
	since := r.now().AddDate(-1, 0, 0)
	total := 0
	opts := &gitlab.ListCommitsOptions{Since: &since, ListOptions: gitlab.ListOptions{PerPage: 100}}
	for {
		commits, resp, err := r.client().Commits.ListCommits(r.project.ID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return 0, err
		}
		total += len(commits)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return round1(float64(total) / 52), nil
}

// RecentReleasesCount counts releases created in the release lookback window.
func (r *gitLabRepository) RecentReleasesCount(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.provider.opts.ReleaseLookback)
	total := 0
	opts := &gitlab.ListReleasesOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	for {
		releases, resp, err := r.client().Releases.ListReleases(r.project.ID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return 0, err
		}
		for _, rel := range releases {
			if rel.CreatedAt != nil && rel.CreatedAt.After(cutoff) {
				total++
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return total, nil
}

// issues lists the issues updated in the lookback window. An empty state lists all.
func (r *gitLabRepository) issues(ctx context.Context, state string) ([]*gitlab.Issue, error) {
	since := r.now().Add(-r.provider.opts.IssueLookback)
	opts := &gitlab.ListProjectIssuesOptions{UpdatedAfter: &since, ListOptions: gitlab.ListOptions{PerPage: 100}}
	if state != "" {
		opts.State = gitlab.Ptr(state)
	}
	var all []*gitlab.Issue
	for {
		issues, resp, err := r.client().Issues.ListProjectIssues(r.project.ID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		all = append(all, issues...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// UpdatedIssuesCount counts issues updated in the issue lookback window.
func (r *gitLabRepository) UpdatedIssuesCount(ctx context.Context) (int, error) {
	issues, err := r.issues(ctx, "")
	return len(issues), err
}

// ClosedIssuesCount counts closed issues updated in the issue lookback window.
func (r *gitLabRepository) ClosedIssuesCount(ctx context.Context) (int, error) {
	issues, err := r.issues(ctx, "closed")
	return len(issues), err
}

// CommentFrequency is the average number of user notes per updated issue.
func (r *gitLabRepository) CommentFrequency(ctx context.Context) (float64, error) {
	issues, err := r.issues(ctx, "")
	if err != nil || len(issues) == 0 {
		return 0, err
	}
	notes := 0
	for _, is := range issues {
		notes += int(is.UserNotesCount)
	}
	return round1(float64(notes) / float64(len(issues))), nil
}

// DependentsCount is not available on GitLab.
func (r *gitLabRepository) DependentsCount(context.Context) (int, error) { return 0, nil }
