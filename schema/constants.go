package schema

// Custom string types for type safety.
type (
	// SignalName identifies one signal of a SignalRecord.
	SignalName string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for caching and run history.
	DatabaseBackend string

	// ProviderKind represents the hosting service of a repository.
	ProviderKind string

	// SignalSource decides where commit_frequency is collected from.
	SignalSource string
)

// Identity fields that lead every output row.
const (
	FieldName     = "name"
	FieldURL      = "url"
	FieldLanguage = "language"
	FieldScore    = "criticality_score"
	FieldTime     = "created_at"
)

// Scored signals, in canonical order.
const (
	CreatedSince        SignalName = "created_since"
	UpdatedSince        SignalName = "updated_since"
	ContributorCount    SignalName = "contributor_count"
	OrgCount            SignalName = "org_count"
	CommitFrequency     SignalName = "commit_frequency"
	RecentReleasesCount SignalName = "recent_releases_count"
	UpdatedIssuesCount  SignalName = "updated_issues_count"
	ClosedIssuesCount   SignalName = "closed_issues_count"
	CommentFrequency    SignalName = "comment_frequency"
	DependentsCount     SignalName = "dependents_count"
)

// Supplementary signals, in canonical order. They are reported but never scored.
const (
	CodeLineChangeRecentYear         SignalName = "code_line_change_recent_year"
	CodeEffort                       SignalName = "code_effort"
	CoreLineChangeRecentYear         SignalName = "core_line_change_recent_year"
	CoreEffort                       SignalName = "core_effort"
	ActiveContributorCountRecentYear SignalName = "activity_contributor_count_recent_year"
)

// All output modes supported.
const (
	CSVOut     OutputMode = "csv" // default
	TextOut    OutputMode = "text"
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All repository hosts supported.
const (
	GitHubProvider ProviderKind = "github"
	GitLabProvider ProviderKind = "gitlab"
)

// All commit_frequency sources supported.
const (
	RemoteSource SignalSource = "remote" // default
	LocalSource  SignalSource = "local"
)

// ScoredSignals lists the ten signals that participate in the score.
var ScoredSignals = []SignalName{
	CreatedSince,
	UpdatedSince,
	ContributorCount,
	OrgCount,
	CommitFrequency,
	RecentReleasesCount,
	UpdatedIssuesCount,
	ClosedIssuesCount,
	CommentFrequency,
	DependentsCount,
}

// SupplementarySignals lists the five locally computed signals.
var SupplementarySignals = []SignalName{
	CodeLineChangeRecentYear,
	CodeEffort,
	CoreLineChangeRecentYear,
	CoreEffort,
	ActiveContributorCountRecentYear,
}

// CanonicalSignals is the fixed collection order: scored signals then supplementary ones.
var CanonicalSignals = append(append([]SignalName{}, ScoredSignals...), SupplementarySignals...)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:     {},
	TextOut:    {},
	JSONOut:    {},
	ParquetOut: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidSignalSources lists all valid commit_frequency sources.
var ValidSignalSources = map[SignalSource]struct{}{
	RemoteSource: {},
	LocalSource:  {},
}

// IsScored reports whether the signal participates in the score.
func IsScored(name SignalName) bool {
	for _, s := range ScoredSignals {
		if s == name {
			return true
		}
	}
	return false
}

// CanonicalIndex returns the position of a signal in CanonicalSignals, or -1.
func CanonicalIndex(name SignalName) int {
	for i, s := range CanonicalSignals {
		if s == name {
			return i
		}
	}
	return -1
}

// CanonicalHeader returns the full list of output field names in canonical order.
func CanonicalHeader() []string {
	header := make([]string, 0, len(CanonicalSignals)+4)
	header = append(header, FieldName, FieldURL, FieldLanguage)
	for _, s := range CanonicalSignals {
		header = append(header, string(s))
	}
	return append(header, FieldScore)
}
