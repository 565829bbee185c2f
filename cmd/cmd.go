// Package cmd defines the command-line interface for reposcore.
package cmd

import (
	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(repoCmd)
	rootCmd.AddCommand(signalsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(runsCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsClearCmd)
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsMigrateCmd)
	runsCmd.AddCommand(runsHistoryCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("repos-location", "repos", "Base directory holding local repository checkouts")
	rootCmd.PersistentFlags().Int("retry", contract.DefaultRetry, "Attempts per repository before it is reported as failed")
	rootCmd.PersistentFlags().String("retry-backoff", contract.DefaultRetryBackoff, "Wait between attempts, doubled after each failure (e.g. 2s)")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().String("output", string(schema.CSVOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Bool("detail", false, "Print every scored signal in text output")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "auto", "Enable colored labels in output (yes/no/true/false/1/0/auto)")
	rootCmd.PersistentFlags().Bool("auto-update", false, "Clone or pull every checkout before scoring")
	rootCmd.PersistentFlags().String("commit-frequency-source", string(schema.RemoteSource), "Source of commit_frequency: remote or local")
	rootCmd.PersistentFlags().String("git-timeout", contract.DefaultGitTimeout, "Timeout of a single git command")
	rootCmd.PersistentFlags().String("http-timeout", contract.DefaultHTTPTimeout, "Timeout of a single forge API request")
	rootCmd.PersistentFlags().String("github-url", contract.DefaultGitHubURL, "GitHub API base URL (set for GitHub Enterprise)")
	rootCmd.PersistentFlags().String("gitlab-url", contract.DefaultGitLabURL, "GitLab base URL")
	rootCmd.PersistentFlags().Int("issue-lookback-days", contract.DefaultIssueLookbackDays, "Window in days for issue signals")
	rootCmd.PersistentFlags().Int("release-lookback-days", contract.DefaultReleaseLookbackDays, "Window in days for the release count")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("cache-ttl", contract.DefaultCacheTTL, "How long cached remote signals stay fresh")
	rootCmd.PersistentFlags().String("runs-backend", "", "Score run tracking backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("runs-db-connect", "", "Database connection string for run tracking (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of scoreCmd to Viper
	scoreCmd.Flags().Bool("stream", false, "Write each result as CSV as soon as it is ready")
	scoreCmd.Flags().Bool("with-time", false, "Add a created_at column holding the run start")
	if err := viper.BindPFlags(scoreCmd.Flags()); err != nil {
		contract.LogFatal("Error binding score flags", err)
	}

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}

	// Bind all flags of runsHistoryCmd to Viper
	runsHistoryCmd.Flags().Int("limit", 10, "Maximum number of records to show")
	if err := viper.BindPFlags(runsHistoryCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs history flags", err)
	}
}
