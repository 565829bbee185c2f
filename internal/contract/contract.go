// Package contract provides interfaces and shared utilities for the reposcore internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/reposcore/schema"
)

// GitClient defines the git operations needed for history analysis and checkout upkeep.
// This allows the core analysis logic to be tested without needing a real git executable.
type GitClient interface {
	// --- Generic / Low-Level ---

	// Run executes a git command and returns its output.
	// Its use should be minimized in favor of the explicit methods below.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// GetRepoRoot returns the absolute path to the root of the Git repository
	// containing the given context path.
	GetRepoRoot(ctx context.Context, contextPath string) (string, error)

	// --- History Logs ---

	// GetShortStatLog returns `log --shortstat --oneline` output since the date, limited to the glob.
	GetShortStatLog(ctx context.Context, repoPath string, since string, glob string) ([]byte, error)

	// GetAuthorLog returns one JSON author record per commit since the date.
	GetAuthorLog(ctx context.Context, repoPath string, since string) ([]byte, error)

	// CountCommits returns the number of non-merge commits since the date.
	CountCommits(ctx context.Context, repoPath string, since string) (int, error)

	// ListSubmodulePaths returns the submodule paths declared in .gitmodules.
	ListSubmodulePaths(ctx context.Context, repoPath string) ([]string, error)

	// --- Checkout Upkeep ---

	// Clone clones the repository url into dest.
	Clone(ctx context.Context, url string, dest string) error

	// Pull fast-forwards the checkout.
	Pull(ctx context.Context, repoPath string) error

	// UpdateSubmodules runs `submodule update`, initializing when init is set.
	UpdateSubmodules(ctx context.Context, repoPath string, init bool, paths ...string) error
}

// RemoteRepository is a repository on a hosting service that can report the scored signals.
type RemoteRepository interface {
	Name() string     // canonical full name, lowercased
	URL() string      // web URL
	Language() string // primary language, may be empty

	CreatedSince(ctx context.Context) (int, error)
	UpdatedSince(ctx context.Context) (int, error)
	ContributorCount(ctx context.Context) (int, error)
	OrgCount(ctx context.Context) (int, error)
	CommitFrequency(ctx context.Context) (float64, error)
	RecentReleasesCount(ctx context.Context) (int, error)
	UpdatedIssuesCount(ctx context.Context) (int, error)
	ClosedIssuesCount(ctx context.Context) (int, error)
	CommentFrequency(ctx context.Context) (float64, error)
	DependentsCount(ctx context.Context) (int, error)
}

// RemoteProvider opens repositories on one hosting service.
type RemoteProvider interface {
	Kind() schema.ProviderKind
	Supports(host string) bool
	Open(ctx context.Context, ref schema.RepoRef) (RemoteRepository, error)
}

// CheckoutProvider resolves a repository name to a local checkout.
type CheckoutProvider interface {
	// Locate returns the local path for the full name, or a RepositoryNotFoundLocally error.
	Locate(ctx context.Context, fullName string) (string, error)
}

// CacheManager defines the interface for managing cache stores.
// This allows the cache layer to be mocked for testing.
type CacheManager interface {
	GetSignalStore() CacheStore
	GetRunStore() RunStore
}

// CacheStore defines the interface for cache data storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// RunStore defines the interface for tracking score runs and their results.
type RunStore interface {
	// BeginRun creates a new score run and returns its ID
	BeginRun(startTime time.Time, configParams map[string]any) (int64, error)

	// EndRun updates the run with completion data
	EndRun(runID int64, endTime time.Time, totalRepos, totalFailed int) error

	// RecordResult stores one scored repository for the run
	RecordResult(runID int64, result schema.ScoreResult) error

	// GetHistory returns the most recent results for a repository URL, newest first
	GetHistory(repoURL string, limit int) ([]schema.ResultRecord, error)

	// GetAllRuns retrieves all score runs, oldest first
	GetAllRuns() ([]schema.RunRecord, error)

	// GetAllResults retrieves all recorded results ordered by run and URL
	GetAllResults() ([]schema.ResultRecord, error)

	// GetStatus returns status information about the run store
	GetStatus() (schema.RunStatus, error)

	// Close closes the underlying connection
	Close() error
}
