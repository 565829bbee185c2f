package remote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v76/github"
	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
	"go.uber.org/zap"
)

const (
	// topContributorCount bounds the contributors inspected for org_count.
	topContributorCount = 15

	// contributorCountCap is reported when GitHub refuses to list contributors of a huge repo.
	contributorCountCap = 5000

	// statsAttempts bounds polling while GitHub computes commit statistics.
	statsAttempts = 5
)

// GitHubOptions configures a GitHubProvider.
type GitHubOptions struct {
	BaseURL         string   // API root, defaults to contract.DefaultGitHubURL
	Hosts           []string // web hosts served, defaults to github.com
	Tokens          []string
	HTTPClient      *http.Client
	Retry           int // attempts for the first-commit lookup
	IssueLookback   time.Duration
	ReleaseLookback time.Duration
}

// GitHubProvider opens repositories through the GitHub REST API.
type GitHubProvider struct {
	pool  *TokenPool
	hosts []string
	opts  GitHubOptions
	log   *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

var _ contract.RemoteProvider = &GitHubProvider{} // Compile-time check

// NewGitHubProvider creates a GitHubProvider.
func NewGitHubProvider(opts GitHubOptions, logger *zap.Logger) (*GitHubProvider, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = contract.DefaultGitHubURL
	}
	if len(opts.Hosts) == 0 {
		opts.Hosts = []string{"github.com", "www.github.com"}
	}
	if opts.Retry < 1 {
		opts.Retry = contract.DefaultRetry
	}
	if opts.IssueLookback <= 0 {
		opts.IssueLookback = contract.DefaultIssueLookbackDays * 24 * time.Hour
	}
	if opts.ReleaseLookback <= 0 {
		opts.ReleaseLookback = contract.DefaultReleaseLookbackDays * 24 * time.Hour
	}
	pool, err := NewTokenPool(opts.HTTPClient, opts.BaseURL, opts.Tokens, logger)
	if err != nil {
		return nil, err
	}
	return &GitHubProvider{
		pool:  pool,
		hosts: opts.Hosts,
		opts:  opts,
		log:   contract.WithComponent(logger, "github"),
		now:   time.Now,
		sleep: sleepContext,
	}, nil
}

// Kind implements contract.RemoteProvider.
func (p *GitHubProvider) Kind() schema.ProviderKind { return schema.GitHubProvider }

// Supports implements contract.RemoteProvider.
func (p *GitHubProvider) Supports(host string) bool {
	return slices.Contains(p.hosts, strings.ToLower(host))
}

// Open fetches the repository metadata and returns a handle for its signals.
func (p *GitHubProvider) Open(ctx context.Context, ref schema.RepoRef) (contract.RemoteRepository, error) {
	if strings.Count(ref.FullName, "/") != 1 {
		return nil, contract.NewUnsupportedRepositoryURL(ref.URL)
	}
	client, err := p.pool.Client(ctx)
	if err != nil {
		return nil, err
	}
	repo, _, err := client.Repositories.Get(ctx, ref.Owner(), ref.Repo())
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", ref.FullName, err)
	}
	return &gitHubRepository{
		provider: p,
		client:   client,
		repo:     repo,
		owner:    repo.GetOwner().GetLogin(),
		name:     repo.GetName(),
	}, nil
}

// gitHubRepository computes the scored signals of one GitHub repository.
type gitHubRepository struct {
	provider *GitHubProvider
	client   *github.Client
	repo     *github.Repository
	owner    string
	name     string

	createdOnce sync.Once
	created     int
	createdErr  error
}

func (r *gitHubRepository) Name() string     { return strings.ToLower(r.repo.GetFullName()) }
func (r *gitHubRepository) URL() string      { return r.repo.GetHTMLURL() }
func (r *gitHubRepository) Language() string { return r.repo.GetLanguage() }

func (r *gitHubRepository) now() time.Time { return r.provider.now().UTC() }

// monthsSince rounds the age of t to 30-day months.
func monthsSince(now, t time.Time) int {
	days := math.Floor(now.Sub(t).Hours() / 24)
	return int(math.RoundToEven(days / 30))
}

// totalCount returns the item count of a paginated listing fetched with PerPage 1.
func totalCount(n int, resp *github.Response) int {
	if resp != nil && resp.LastPage > 0 {
		return resp.LastPage
	}
	return n
}

// CreatedSince is the age in months, taking commits older than the repository itself into account.
func (r *gitHubRepository) CreatedSince(ctx context.Context) (int, error) {
	r.createdOnce.Do(func() {
		r.created, r.createdErr = r.createdSince(ctx)
	})
	return r.created, r.createdErr
}

func (r *gitHubRepository) createdSince(ctx context.Context) (int, error) {
	creation := r.repo.GetCreatedAt().Time
	opts := &github.CommitsListOptions{Until: creation, ListOptions: github.ListOptions{PerPage: 1}}

	var lastErr error
	for i := range r.provider.opts.Retry {
		first, err := r.firstCommitBefore(ctx, opts)
		if err == nil {
			if !first.IsZero() && first.Before(creation) {
				creation = first
			}
			return monthsSince(r.now(), creation), nil
		}
		lastErr = err
		r.provider.log.Debug("first commit lookup failed",
			zap.String("repo", r.Name()), zap.Int("attempt", i+1), zap.Error(err))
		if err := r.provider.sleep(ctx, time.Duration(1<<i)*time.Second); err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("first commit of %s: %w", r.Name(), lastErr)
}

// firstCommitBefore returns the author date of the oldest commit matching opts, or zero time.
func (r *gitHubRepository) firstCommitBefore(ctx context.Context, opts *github.CommitsListOptions) (time.Time, error) {
	commits, resp, err := r.client.Repositories.ListCommits(ctx, r.owner, r.name, opts)
	if err != nil {
		return time.Time{}, err
	}
	count := totalCount(len(commits), resp)
	if count == 0 {
		return time.Time{}, nil
	}
	last := *opts
	last.Page = count
	commits, _, err = r.client.Repositories.ListCommits(ctx, r.owner, r.name, &last)
	if err != nil {
		return time.Time{}, err
	}
	if len(commits) == 0 {
		return time.Time{}, nil
	}
	return commits[0].GetCommit().GetAuthor().GetDate().Time, nil
}

// UpdatedSince is the number of months since the latest commit.
func (r *gitHubRepository) UpdatedSince(ctx context.Context) (int, error) {
	commits, _, err := r.client.Repositories.ListCommits(ctx, r.owner, r.name,
		&github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: 1}})
	if err != nil {
		return 0, err
	}
	if len(commits) == 0 {
		return 0, nil
	}
	return monthsSince(r.now(), commits[0].GetCommit().GetAuthor().GetDate().Time), nil
}

// ContributorCount counts contributors including anonymous ones.
func (r *gitHubRepository) ContributorCount(ctx context.Context) (int, error) {
	contributors, resp, err := r.client.Repositories.ListContributors(ctx, r.owner, r.name,
		&github.ListContributorsOptions{Anon: "true", ListOptions: github.ListOptions{PerPage: 1}})
	if err != nil {
		if tooLarge(err) {
			return contributorCountCap, nil
		}
		return 0, err
	}
	return totalCount(len(contributors), resp), nil
}

// tooLarge reports GitHub refusing to compute the contributor list.
func tooLarge(err error) bool {
	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return false
	}
	return ghErr.Response.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(ghErr.Message), "too large")
}

// OrgCount counts distinct companies among the top contributors.
func (r *gitHubRepository) OrgCount(ctx context.Context) (int, error) {
	contributors, _, err := r.client.Repositories.ListContributors(ctx, r.owner, r.name,
		&github.ListContributorsOptions{ListOptions: github.ListOptions{PerPage: topContributorCount}})
	if err != nil {
		if tooLarge(err) {
			return 0, nil
		}
		return 0, err
	}
	orgs := make(map[string]struct{})
	for _, c := range contributors {
		if c.GetLogin() == "" {
			continue
		}
		user, _, err := r.client.Users.Get(ctx, c.GetLogin())
		if err != nil {
			return 0, fmt.Errorf("get user %s: %w", c.GetLogin(), err)
		}
		if org := FilterOrgName(user.GetCompany()); org != "" {
			orgs[org] = struct{}{}
		}
	}
	return len(orgs), nil
}

var orgNameReplacer = strings.NewReplacer("inc.", "", "llc", "", "@", "", ",", "", "www.", "", "-", " ")

// FilterOrgName normalizes a company name so spelling variants collapse.
func FilterOrgName(org string) string {
	org = orgNameReplacer.Replace(strings.ToLower(org))
	return strings.Join(strings.Fields(org), " ")
}

// CommitFrequency is the average weekly commit count over the last year.
func (r *gitHubRepository) CommitFrequency(ctx context.Context) (float64, error) {
	var (
		weeks []*github.WeeklyCommitActivity
		err   error
	)
	for i := range statsAttempts {
		weeks, _, err = r.client.Repositories.ListCommitActivity(ctx, r.owner, r.name)
		var accepted *github.AcceptedError
		if !errors.As(err, &accepted) {
			break
		}
		// statistics are being computed in the background
		if err := r.provider.sleep(ctx, time.Duration(i+1)*time.Second); err != nil {
			return 0, err
		}
	}
	if err != nil {
		return 0, err
	}
	total := 0
	for _, w := range weeks {
		total += w.GetTotal()
	}
	return round1(float64(total) / 52), nil
}

// RecentReleasesCount counts releases in the lookback window, estimating from tags when there are none.
func (r *gitHubRepository) RecentReleasesCount(ctx context.Context) (int, error) {
	lookback := r.provider.opts.ReleaseLookback
	cutoff := r.now().Add(-lookback)

	total := 0
	opts := &github.ListOptions{PerPage: 100}
	for {
		releases, resp, err := r.client.Repositories.ListReleases(ctx, r.owner, r.name, opts)
		if err != nil {
			return 0, err
		}
		for _, rel := range releases {
			if rel.GetCreatedAt().After(cutoff) {
				total++
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	if total > 0 {
		return total, nil
	}

	months, err := r.CreatedSince(ctx)
	if err != nil {
		return 0, err
	}
	daysSinceCreation := months * 30
	if daysSinceCreation == 0 {
		return 0, nil
	}
	tags, resp, err := r.client.Repositories.ListTags(ctx, r.owner, r.name, &github.ListOptions{PerPage: 1})
	if err != nil {
		return 0, err
	}
	totalTags := totalCount(len(tags), resp)
	lookbackDays := lookback.Hours() / 24
	return int(math.RoundToEven(float64(totalTags) / float64(daysSinceCreation) * lookbackDays)), nil
}

func (r *gitHubRepository) issueCount(ctx context.Context, state string) (int, error) {
	since := r.now().Add(-r.provider.opts.IssueLookback)
	issues, resp, err := r.client.Issues.ListByRepo(ctx, r.owner, r.name, &github.IssueListByRepoOptions{
		State:       state,
		Since:       since,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return 0, err
	}
	return totalCount(len(issues), resp), nil
}

// UpdatedIssuesCount counts issues updated in the issue lookback window.
func (r *gitHubRepository) UpdatedIssuesCount(ctx context.Context) (int, error) {
	return r.issueCount(ctx, "all")
}

// ClosedIssuesCount counts closed issues updated in the issue lookback window.
func (r *gitHubRepository) ClosedIssuesCount(ctx context.Context) (int, error) {
	return r.issueCount(ctx, "closed")
}

// CommentFrequency is the average number of comments per updated issue.
func (r *gitHubRepository) CommentFrequency(ctx context.Context) (float64, error) {
	issues, err := r.issueCount(ctx, "all")
	if err != nil || issues == 0 {
		return 0, err
	}
	since := r.now().Add(-r.provider.opts.IssueLookback)
	comments, resp, err := r.client.Issues.ListComments(ctx, r.owner, r.name, 0, &github.IssueListCommentsOptions{
		Since:       &since,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return 0, err
	}
	return round1(float64(totalCount(len(comments), resp)) / float64(issues)), nil
}

// DependentsCount approximates dependents by the commits mentioning the repository.
func (r *gitHubRepository) DependentsCount(ctx context.Context) (int, error) {
	result, _, err := r.client.Search.Commits(ctx, fmt.Sprintf("%q", r.repo.GetFullName()),
		&github.SearchOptions{ListOptions: github.ListOptions{PerPage: 1}})
	if err != nil {
		return 0, err
	}
	return result.GetTotal(), nil
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
