package core

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/huangsam/reposcore/core/collect"
	"github.com/huangsam/reposcore/core/githistory"
	"github.com/huangsam/reposcore/internal/checkout"
	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/internal/remote"
	"go.uber.org/zap"
)

// Environment holds the collaborators built from one configuration.
type Environment struct {
	Scorer    *RepoScorer
	Resolver  *remote.Resolver
	Checkouts *checkout.Provider
	Since     string // start of the local history window
}

// BuildEnvironment wires providers, checkouts and git history for cfg.
// The remote signal cache comes from mgr when one is configured.
func BuildEnvironment(cfg *contract.Config, mgr contract.CacheManager, now time.Time) (*Environment, error) {
	logger := contract.Logger()
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	gh, err := remote.NewGitHubProvider(remote.GitHubOptions{
		BaseURL:         cfg.GitHubURL,
		Hosts:           gitHubHosts(cfg.GitHubURL),
		Tokens:          cfg.GitHubTokens,
		HTTPClient:      httpClient,
		Retry:           cfg.Retry,
		IssueLookback:   cfg.IssueLookback,
		ReleaseLookback: cfg.ReleaseLookback,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("github provider: %w", err)
	}
	gl, err := remote.NewGitLabProvider(remote.GitLabOptions{
		BaseURL:         cfg.GitLabURL,
		Token:           cfg.GitLabToken,
		HTTPClient:      httpClient,
		IssueLookback:   cfg.IssueLookback,
		ReleaseLookback: cfg.ReleaseLookback,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("gitlab provider: %w", err)
	}
	resolver := remote.NewResolver(gh, gl)

	git := contract.NewLocalGitClientWithTimeout(cfg.GitTimeout)
	checkouts := checkout.NewProvider(cfg.ReposLocation, git, cfg.History, logger)
	since := contract.SinceDate(now)
	analyzer := githistory.NewAnalyzer(git, since, cfg.History, logger)

	opts := ScorerOptions{
		Opener:    resolver,
		Checkouts: checkouts,
		Local: func(co githistory.Checkout) collect.LocalHistory {
			return analyzer.For(co)
		},
		Weights:               cfg.Weights,
		CommitFrequencySource: cfg.CommitFrequencySource,
		CacheTTL:              cfg.CacheTTL,
	}
	if mgr != nil {
		opts.Cache = mgr.GetSignalStore()
	}

	logger.Debug("scoring environment ready",
		zap.String("repos_location", cfg.ReposLocation),
		zap.String("since", since),
		zap.Int("github_tokens", len(cfg.GitHubTokens)))

	return &Environment{
		Scorer:    NewRepoScorer(opts, logger),
		Resolver:  resolver,
		Checkouts: checkouts,
		Since:     since,
	}, nil
}

// gitHubHosts returns the web hosts served by the API at apiURL.
// GitHub Enterprise serves its API under the web host; nil selects the github.com defaults.
func gitHubHosts(apiURL string) []string {
	if apiURL == "" || apiURL == contract.DefaultGitHubURL {
		return nil
	}
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return nil
	}
	host := strings.ToLower(u.Host)
	if web, ok := strings.CutPrefix(host, "api."); ok {
		return []string{web, host}
	}
	return []string{host}
}
