// Package collect gathers the full signal record for one repository.
package collect

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency allows every signal to be fetched at once.
const DefaultMaxConcurrency = 15

// Accessor lazily produces one signal value.
type Accessor func(ctx context.Context) (any, error)

// LocalHistory reports the supplementary signals of one local checkout.
type LocalHistory interface {
	CodeLineChange(ctx context.Context) (string, error)
	CodeEffort(ctx context.Context) (float64, error)
	CoreLineChange(ctx context.Context) (string, error)
	CoreEffort(ctx context.Context) (float64, error)
	ActiveContributorCount(ctx context.Context) (int, error)
	CommitFrequency(ctx context.Context) (float64, error)
}

// Handle is a repository with its remote and local capabilities.
type Handle struct {
	Name     string
	URL      string
	Language string

	Remote contract.RemoteRepository
	Local  LocalHistory

	// CommitFrequencySource selects where commit_frequency comes from.
	CommitFrequencySource schema.SignalSource
}

var errNoAccessor = errors.New("no accessor")

// Collector runs signal accessors concurrently.
type Collector struct {
	MaxConcurrency int
	log            *zap.Logger
}

// NewCollector creates a Collector. A non-positive limit uses DefaultMaxConcurrency.
func NewCollector(maxConcurrency int, logger *zap.Logger) *Collector {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Collector{MaxConcurrency: maxConcurrency, log: contract.WithComponent(logger, "collect")}
}

// Collect builds the accessors for h and returns its record in canonical order.
func (c *Collector) Collect(ctx context.Context, h *Handle) (schema.SignalRecord, error) {
	if h == nil {
		return nil, contract.NewSignalCollectionFailure("", "", errors.New("nil handle"))
	}
	accessors, err := Accessors(h)
	if err != nil {
		return nil, err
	}
	return c.collect(ctx, h.Name, accessors)
}

// CollectAccessors runs the given accessors and returns their values in canonical order.
func (c *Collector) CollectAccessors(ctx context.Context, accessors map[schema.SignalName]Accessor) (schema.SignalRecord, error) {
	return c.collect(ctx, "", accessors)
}

func (c *Collector) collect(ctx context.Context, repo string, accessors map[schema.SignalName]Accessor) (schema.SignalRecord, error) {
	for _, name := range schema.CanonicalSignals {
		if accessors[name] == nil {
			return nil, contract.NewSignalCollectionFailure(repo, string(name), errNoAccessor)
		}
	}

	record := make(schema.SignalRecord, len(schema.CanonicalSignals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.MaxConcurrency)
	for i, name := range schema.CanonicalSignals {
		fetch := accessors[name]
		g.Go(func() error {
			v, err := fetch(gctx)
			if err != nil {
				return contract.NewSignalCollectionFailure(repo, string(name), err)
			}
			record[i] = schema.Signal{Name: name, Value: v}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.log.Debug("signal collection failed", zap.String("repo", repo), zap.Error(err))
		return nil, err
	}
	return record, nil
}

// Accessors maps every canonical signal to its source on h.
func Accessors(h *Handle) (map[schema.SignalName]Accessor, error) {
	if h.Remote == nil {
		return nil, contract.NewSignalCollectionFailure(h.Name, "", errors.New("remote capability missing"))
	}
	if h.Local == nil {
		return nil, contract.NewSignalCollectionFailure(h.Name, "", errors.New("local capability missing"))
	}
	r, l := h.Remote, h.Local

	accessors := map[schema.SignalName]Accessor{
		schema.CreatedSince:        wrap(r.CreatedSince),
		schema.UpdatedSince:        wrap(r.UpdatedSince),
		schema.ContributorCount:    wrap(r.ContributorCount),
		schema.OrgCount:            wrap(r.OrgCount),
		schema.CommitFrequency:     wrap(r.CommitFrequency),
		schema.RecentReleasesCount: wrap(r.RecentReleasesCount),
		schema.UpdatedIssuesCount:  wrap(r.UpdatedIssuesCount),
		schema.ClosedIssuesCount:   wrap(r.ClosedIssuesCount),
		schema.CommentFrequency:    wrap(r.CommentFrequency),
		schema.DependentsCount:     wrap(r.DependentsCount),

		schema.CodeLineChangeRecentYear:         wrap(l.CodeLineChange),
		schema.CodeEffort:                       wrap(l.CodeEffort),
		schema.CoreLineChangeRecentYear:         wrap(l.CoreLineChange),
		schema.CoreEffort:                       wrap(l.CoreEffort),
		schema.ActiveContributorCountRecentYear: wrap(l.ActiveContributorCount),
	}

	switch h.CommitFrequencySource {
	case schema.LocalSource:
		accessors[schema.CommitFrequency] = wrap(l.CommitFrequency)
	case schema.RemoteSource, "":
	default:
		return nil, contract.NewSignalCollectionFailure(h.Name, string(schema.CommitFrequency),
			fmt.Errorf("unknown commit frequency source %q", h.CommitFrequencySource))
	}
	return accessors, nil
}

func wrap[T any](fn func(context.Context) (T, error)) Accessor {
	return func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}
