package core

import (
	"context"
	"sync"
	"time"

	"github.com/huangsam/reposcore/core/collect"
	"github.com/huangsam/reposcore/core/githistory"
	"github.com/huangsam/reposcore/core/score"
	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/internal/remote"
	"github.com/huangsam/reposcore/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RepoOpener opens a repository URL on its hosting service.
// *remote.Resolver satisfies it.
type RepoOpener interface {
	Open(ctx context.Context, raw string) (contract.RemoteRepository, schema.RepoRef, error)
}

// LocalFactory binds local git history to one checkout.
type LocalFactory func(co githistory.Checkout) collect.LocalHistory

// ScorerOptions holds the collaborators of a RepoScorer.
type ScorerOptions struct {
	Opener    RepoOpener
	Checkouts contract.CheckoutProvider
	Local     LocalFactory
	Weights   schema.WeightConfig

	CommitFrequencySource schema.SignalSource
	MaxConcurrency        int

	Cache    contract.CacheStore // optional remote signal cache
	CacheTTL time.Duration
}

// RepoScorer scores single repositories and remembers successful results.
// Concurrent requests for the same URL share one computation.
type RepoScorer struct {
	opener    RepoOpener
	checkouts contract.CheckoutProvider
	local     LocalFactory
	collector *collect.Collector
	engine    *score.Engine
	source    schema.SignalSource
	cache     contract.CacheStore
	cacheTTL  time.Duration
	log       *zap.Logger

	mu     sync.Mutex
	memo   map[string]schema.ScoreResult
	flight singleflight.Group
}

// NewRepoScorer creates a RepoScorer from its collaborators.
func NewRepoScorer(opts ScorerOptions, logger *zap.Logger) *RepoScorer {
	weights := opts.Weights
	if weights == nil {
		weights = schema.DefaultWeights()
	}
	return &RepoScorer{
		opener:    opts.Opener,
		checkouts: opts.Checkouts,
		local:     opts.Local,
		collector: collect.NewCollector(opts.MaxConcurrency, logger),
		engine:    score.NewEngine(weights),
		source:    opts.CommitFrequencySource,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		log:       contract.WithComponent(logger, "scorer"),
		memo:      make(map[string]schema.ScoreResult),
	}
}

// Weights returns the weights used for scoring.
func (s *RepoScorer) Weights() schema.WeightConfig {
	return s.engine.Weights()
}

// Score returns the result for one repository URL. URLs are memoized by their
// normalized form; failures are not remembered.
func (s *RepoScorer) Score(ctx context.Context, rawURL string) (schema.ScoreResult, error) {
	ref, err := remote.ParseURL(rawURL)
	if err != nil {
		return schema.ScoreResult{}, err
	}
	key := ref.URL

	if res, ok := s.lookup(key); ok {
		s.log.Debug("memo hit", zap.String("url", key))
		return res, nil
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		if res, ok := s.lookup(key); ok {
			return res, nil
		}
		res, err := s.compute(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.memo[key] = res
		s.mu.Unlock()
		return res, nil
	})
	if err != nil {
		return schema.ScoreResult{}, err
	}
	return v.(schema.ScoreResult), nil
}

// Forget drops the memoized result for a URL.
func (s *RepoScorer) Forget(rawURL string) {
	ref, err := remote.ParseURL(rawURL)
	if err != nil {
		return
	}
	s.mu.Lock()
	delete(s.memo, ref.URL)
	s.mu.Unlock()
}

func (s *RepoScorer) lookup(key string) (schema.ScoreResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.memo[key]
	return res, ok
}

func (s *RepoScorer) compute(ctx context.Context, rawURL string) (schema.ScoreResult, error) {
	repo, ref, err := s.opener.Open(ctx, rawURL)
	if err != nil {
		return schema.ScoreResult{}, err
	}
	repoURL := repo.URL()
	if repoURL == "" {
		repoURL = ref.URL
	}
	repo = remote.WithCache(repo, s.cache, s.cacheTTL, s.log)

	name := repo.Name()
	path, err := s.checkouts.Locate(ctx, name)
	if err != nil {
		return schema.ScoreResult{}, err
	}

	h := &collect.Handle{
		Name:                  name,
		URL:                   repoURL,
		Language:              repo.Language(),
		Remote:                repo,
		Local:                 s.local(githistory.Checkout{Name: name, Path: path, Language: repo.Language()}),
		CommitFrequencySource: s.source,
	}
	record, err := s.collector.Collect(ctx, h)
	if err != nil {
		return schema.ScoreResult{}, err
	}
	res, err := s.engine.Result(h.Name, h.URL, h.Language, record)
	if err != nil {
		return schema.ScoreResult{}, err
	}
	s.log.Debug("scored repository", zap.String("repo", name), zap.Float64("score", res.CriticalityScore))
	return res, nil
}
