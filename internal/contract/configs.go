package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/huangsam/reposcore/schema"
)

// Default values for configuration.
const (
	DefaultRetry               = 3
	DefaultRetryBackoff        = "0s"
	DefaultGitTimeout          = "10m"
	DefaultHTTPTimeout         = "30s"
	DefaultCacheTTL            = "24h"
	DefaultIssueLookbackDays   = 90
	DefaultReleaseLookbackDays = 365
	DefaultEffortDivisor       = 5280
	DefaultActiveThreshold     = 20
	DefaultGitHubURL           = "https://api.github.com/"
	DefaultGitLabURL           = "https://gitlab.com"
	DefaultLogLevel            = "warn"
	MaxRetry                   = 20
)

// CacheGranularity truncates the run timestamp for the created_at column.
const CacheGranularity = time.Hour

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateFormat is the window start representation passed to git.
var DateFormat = time.DateOnly

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// ProcessProfilingConfig enables profiling when a file prefix is given.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	profilePrefix = strings.TrimSpace(profilePrefix)
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}

// AuthorFix is one literal replacement applied to raw author log lines.
type AuthorFix struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

// HistoryConfig holds the local git history tuning.
type HistoryConfig struct {
	EffortDivisor              float64
	ActiveContributorThreshold int
	LanguageExtensions         map[string][]string
	SubmoduleRepos             []string
	BrokenSubmodules           map[string][]string
	AuthorFixes                []AuthorFix
}

// DefaultHistoryConfig returns the stock history tuning.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		EffortDivisor:              DefaultEffortDivisor,
		ActiveContributorThreshold: DefaultActiveThreshold,
		LanguageExtensions: map[string][]string{
			"C":      {"c", "h"},
			"C++":    {"cc", "c", "cpp", "h", "cxx", "hxx"},
			"Java":   {"java", "scala"},
			"Go":     {"go"},
			"Python": {"py", "cfg"},
			"Scala":  {"java", "scala"},
		},
		SubmoduleRepos: []string{"openstack/openstack"},
		BrokenSubmodules: map[string][]string{
			"openstack/openstack": {"openstack-tempest-skiplist", "whitebox-tempest-plugin", "xstatic-graphlib"},
		},
		AuthorFixes: []AuthorFix{
			{From: `\`, To: ""},
			{From: `freedom"`, To: "freedom"},
			{From: `"henyxia"`, To: "henyxia"},
			{From: `"Tempa Kyouran"`, To: "Tempa Kyouran"},
			{From: `"TBBle"`, To: "TBBle"},
		},
	}
}

// Config holds the runtime configuration for scoring.
// This struct remains the "final, validated" config.
type Config struct {
	ProjectList   string // path to the URL list for the score command
	ReposLocation string // base directory of local checkouts

	Retry        int
	RetryBackoff time.Duration
	Workers      int

	Output     schema.OutputMode
	OutputFile string
	Stream     bool
	Detail     bool
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool
	WithTime   bool

	AutoUpdate            bool
	CommitFrequencySource schema.SignalSource
	GitTimeout            time.Duration
	HTTPTimeout           time.Duration

	GitHubURL    string
	GitHubTokens []string // Please use env var as this is plaintext
	GitLabURL    string
	GitLabToken  string // Please use env var as this is plaintext

	IssueLookback   time.Duration
	ReleaseLookback time.Duration

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext
	CacheTTL       time.Duration

	RunsBackend   schema.DatabaseBackend
	RunsDBConnect string // Please use env var as this is plaintext

	LogLevel string

	// Weights is the final weight config computed from defaults + overrides
	Weights schema.WeightConfig

	History HistoryConfig
}

// HistoryRawInput holds history tuning from the YAML config file.
type HistoryRawInput struct {
	EffortDivisor              *float64            `mapstructure:"effort-divisor"`
	ActiveContributorThreshold *int                `mapstructure:"active-contributor-threshold"`
	LanguageExtensions         map[string][]string `mapstructure:"language-extensions"`
	SubmoduleRepos             []string            `mapstructure:"submodule-repos"`
	BrokenSubmodules           map[string][]string `mapstructure:"broken-submodules"`
	AuthorFixes                []AuthorFix         `mapstructure:"author-fixes"`
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	ProjectList string

	// --- Fields from rootCmd.PersistentFlags() ---
	ReposLocation         string `mapstructure:"repos-location"`
	Retry                 int    `mapstructure:"retry"`
	RetryBackoff          string `mapstructure:"retry-backoff"`
	Workers               int    `mapstructure:"workers"`
	Output                string `mapstructure:"output"`
	OutputFile            string `mapstructure:"output-file"`
	Detail                bool   `mapstructure:"detail"`
	Width                 int    `mapstructure:"width"`
	Color                 string `mapstructure:"color"`
	AutoUpdate            bool   `mapstructure:"auto-update"`
	CommitFrequencySource string `mapstructure:"commit-frequency-source"`
	GitTimeout            string `mapstructure:"git-timeout"`
	HTTPTimeout           string `mapstructure:"http-timeout"`
	GitHubURL             string `mapstructure:"github-url"`
	GitHubTokens          string `mapstructure:"github-tokens"`
	GitLabURL             string `mapstructure:"gitlab-url"`
	GitLabToken           string `mapstructure:"gitlab-token"`
	IssueLookbackDays     int    `mapstructure:"issue-lookback-days"`
	ReleaseLookbackDays   int    `mapstructure:"release-lookback-days"`
	CacheBackend          string `mapstructure:"cache-backend"`
	CacheDBConnect        string `mapstructure:"cache-db-connect"`
	CacheTTL              string `mapstructure:"cache-ttl"`
	RunsBackend           string `mapstructure:"runs-backend"`
	RunsDBConnect         string `mapstructure:"runs-db-connect"`
	LogLevel              string `mapstructure:"log-level"`

	// --- Fields from scoreCmd.Flags() ---
	Stream   bool `mapstructure:"stream"`
	WithTime bool `mapstructure:"with-time"`

	// --- Custom weights and thresholds from config file ---
	Weight    map[string]float64 `mapstructure:"weight"`
	Threshold map[string]float64 `mapstructure:"threshold"`

	// --- History tuning from config file ---
	History HistoryRawInput `mapstructure:"history"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.GitHubTokens = append([]string(nil), c.GitHubTokens...)
	if c.Weights != nil {
		clone.Weights = c.Weights.Clone()
	}
	clone.History = c.History.clone()
	return &clone
}

func (h HistoryConfig) clone() HistoryConfig {
	out := h
	out.SubmoduleRepos = append([]string(nil), h.SubmoduleRepos...)
	out.AuthorFixes = append([]AuthorFix(nil), h.AuthorFixes...)
	if h.LanguageExtensions != nil {
		out.LanguageExtensions = make(map[string][]string, len(h.LanguageExtensions))
		for k, v := range h.LanguageExtensions {
			out.LanguageExtensions[k] = append([]string(nil), v...)
		}
	}
	if h.BrokenSubmodules != nil {
		out.BrokenSubmodules = make(map[string][]string, len(h.BrokenSubmodules))
		for k, v := range h.BrokenSubmodules {
			out.BrokenSubmodules[k] = append([]string(nil), v...)
		}
	}
	return out
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processDurations(cfg, input); err != nil {
		return err
	}
	if err := processRemotes(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := processWeights(cfg, input); err != nil {
		return err
	}
	if err := processHistory(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates cache and run store backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	// --- Runs Backend Validation ---
	cfg.RunsBackend = schema.DatabaseBackend(strings.ToLower(input.RunsBackend))
	if cfg.RunsBackend == "" {
		cfg.RunsBackend = schema.NoneBackend
		return nil
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.RunsBackend]; !ok {
		return fmt.Errorf("invalid runs backend '%s'. must be sqlite, mysql, postgresql, none", input.RunsBackend)
	}
	cfg.RunsDBConnect = input.RunsDBConnect
	if err := ValidateDatabaseConnectionString(cfg.RunsBackend, cfg.RunsDBConnect); err != nil {
		return err
	}

	// For SQLite, resolve to actual file paths to catch default path conflicts
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.RunsBackend == schema.SQLiteBackend {
		cacheDBPath := cfg.CacheDBConnect
		if cacheDBPath == "" {
			cacheDBPath = GetCacheDBFilePath()
		}
		runsDBPath := cfg.RunsDBConnect
		if runsDBPath == "" {
			runsDBPath = GetRunsDBFilePath()
		}
		if cacheDBPath == runsDBPath {
			return fmt.Errorf("cache and runs storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}
	return nil
}

// validateSimpleInputs processes and validates scalar fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.ProjectList = input.ProjectList
	cfg.OutputFile = input.OutputFile
	cfg.Detail = input.Detail
	cfg.Width = input.Width
	cfg.Stream = input.Stream
	cfg.WithTime = input.WithTime
	cfg.AutoUpdate = input.AutoUpdate

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// --- 1. Repos Location ---
	location := strings.TrimSpace(input.ReposLocation)
	if location == "" {
		return fmt.Errorf("repos-location must not be empty")
	}
	if strings.HasPrefix(location, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			location = filepath.Join(home, location[2:])
		}
	}
	cfg.ReposLocation = filepath.Clean(location)

	// --- 2. Retry and Workers ---
	if input.Retry < 1 || input.Retry > MaxRetry {
		return fmt.Errorf("retry must be between 1 and %d (received %d)", MaxRetry, input.Retry)
	}
	cfg.Retry = input.Retry

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	// --- 3. Output ---
	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}

	// --- 4. Commit frequency source ---
	cfg.CommitFrequencySource = schema.SignalSource(strings.ToLower(input.CommitFrequencySource))
	if cfg.CommitFrequencySource == "" {
		cfg.CommitFrequencySource = schema.RemoteSource
	}
	if _, ok := schema.ValidSignalSources[cfg.CommitFrequencySource]; !ok {
		return fmt.Errorf("invalid commit-frequency-source '%s'. must be remote or local", input.CommitFrequencySource)
	}

	// --- 5. Lookbacks ---
	if input.IssueLookbackDays < 1 {
		return fmt.Errorf("issue-lookback-days must be at least 1 (received %d)", input.IssueLookbackDays)
	}
	if input.ReleaseLookbackDays < 1 {
		return fmt.Errorf("release-lookback-days must be at least 1 (received %d)", input.ReleaseLookbackDays)
	}
	cfg.IssueLookback = time.Duration(input.IssueLookbackDays) * 24 * time.Hour
	cfg.ReleaseLookback = time.Duration(input.ReleaseLookbackDays) * 24 * time.Hour

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(input.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	return nil
}

// processDurations parses every duration string.
func processDurations(cfg *Config, input *ConfigRawInput) error {
	parse := func(flag, value, fallback string) (time.Duration, error) {
		if strings.TrimSpace(value) == "" {
			value = fallback
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid --%s value '%s': %w", flag, value, err)
		}
		if d < 0 {
			return 0, fmt.Errorf("--%s must not be negative (received %s)", flag, value)
		}
		return d, nil
	}

	var err error
	if cfg.RetryBackoff, err = parse("retry-backoff", input.RetryBackoff, DefaultRetryBackoff); err != nil {
		return err
	}
	if cfg.GitTimeout, err = parse("git-timeout", input.GitTimeout, DefaultGitTimeout); err != nil {
		return err
	}
	if cfg.HTTPTimeout, err = parse("http-timeout", input.HTTPTimeout, DefaultHTTPTimeout); err != nil {
		return err
	}
	if cfg.CacheTTL, err = parse("cache-ttl", input.CacheTTL, DefaultCacheTTL); err != nil {
		return err
	}
	return nil
}

// processRemotes handles hosting service endpoints and tokens.
func processRemotes(cfg *Config, input *ConfigRawInput) error {
	cfg.GitHubURL = strings.TrimSpace(input.GitHubURL)
	if cfg.GitHubURL == "" {
		cfg.GitHubURL = DefaultGitHubURL
	}
	if !strings.HasSuffix(cfg.GitHubURL, "/") {
		cfg.GitHubURL += "/"
	}
	cfg.GitLabURL = strings.TrimRight(strings.TrimSpace(input.GitLabURL), "/")
	if cfg.GitLabURL == "" {
		cfg.GitLabURL = DefaultGitLabURL
	}

	cfg.GitHubTokens = SplitTokens(input.GitHubTokens)
	cfg.GitLabToken = strings.TrimSpace(input.GitLabToken)
	return nil
}

// SplitTokens splits a comma-separated token list, dropping blanks.
func SplitTokens(raw string) []string {
	tokens := []string{}
	for part := range strings.SplitSeq(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// processWeights merges `weight.<signal>_weight` and `threshold.<signal>_threshold`
// overrides into the default weight config and validates the result.
func processWeights(cfg *Config, input *ConfigRawInput) error {
	weights := schema.DefaultWeights()

	apply := func(section string, raw map[string]float64, set func(*schema.SignalWeight, float64)) error {
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			name := schema.SignalName(strings.TrimSuffix(strings.ToLower(key), "_"+section))
			if !schema.IsScored(name) {
				return fmt.Errorf("unknown %s key '%s'", section, key)
			}
			sw := weights[name]
			set(&sw, raw[key])
			weights[name] = sw
		}
		return nil
	}

	if err := apply("weight", input.Weight, func(sw *schema.SignalWeight, v float64) { sw.Weight = v }); err != nil {
		return err
	}
	if err := apply("threshold", input.Threshold, func(sw *schema.SignalWeight, v float64) { sw.Threshold = v }); err != nil {
		return err
	}
	if err := weights.Validate(); err != nil {
		return fmt.Errorf("invalid weight config: %w", err)
	}
	cfg.Weights = weights
	return nil
}

// processHistory merges history tuning overrides into the defaults.
func processHistory(cfg *Config, input *ConfigRawInput) error {
	history := DefaultHistoryConfig()
	raw := input.History

	if raw.EffortDivisor != nil {
		if *raw.EffortDivisor <= 0 {
			return fmt.Errorf("history.effort-divisor must be positive (received %g)", *raw.EffortDivisor)
		}
		history.EffortDivisor = *raw.EffortDivisor
	}
	if raw.ActiveContributorThreshold != nil {
		if *raw.ActiveContributorThreshold < 1 {
			return fmt.Errorf("history.active-contributor-threshold must be at least 1 (received %d)", *raw.ActiveContributorThreshold)
		}
		history.ActiveContributorThreshold = *raw.ActiveContributorThreshold
	}
	if raw.LanguageExtensions != nil {
		history.LanguageExtensions = raw.LanguageExtensions
	}
	if raw.SubmoduleRepos != nil {
		history.SubmoduleRepos = lowerAll(raw.SubmoduleRepos)
	}
	if raw.BrokenSubmodules != nil {
		history.BrokenSubmodules = make(map[string][]string, len(raw.BrokenSubmodules))
		for repo, paths := range raw.BrokenSubmodules {
			history.BrokenSubmodules[strings.ToLower(repo)] = lowerAll(paths)
		}
	}
	if raw.AuthorFixes != nil {
		for _, fix := range raw.AuthorFixes {
			if fix.From == "" {
				return fmt.Errorf("history.author-fixes entries need a non-empty 'from'")
			}
		}
		history.AuthorFixes = raw.AuthorFixes
	}
	cfg.History = history
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// SinceDate returns the window start: one year before now, same month and day.
func SinceDate(now time.Time) string {
	return fmt.Sprintf("%04d-%s", now.Year()-1, now.Format("01-02"))
}
