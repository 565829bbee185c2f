package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/reposcore/core"
	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/internal/iocache"
	"github.com/huangsam/reposcore/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runsBackendConfig reads and validates the run store settings.
func runsBackendConfig() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}

	backendStr := viper.GetString("runs-backend")
	connStr := viper.GetString("runs-db-connect")

	// Handle empty backend as NoneBackend
	backend := schema.NoneBackend
	if backendStr != "" {
		backend = schema.DatabaseBackend(backendStr)
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", "", fmt.Errorf("invalid runs backend '%s'. must be sqlite, mysql, postgresql, none", backendStr)
	}

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// runsSetup loads minimal configuration needed for run store operations.
func runsSetup() error {
	backend, connStr, err := runsBackendConfig()
	if err != nil {
		return err
	}

	// Initialize stores with the loaded config (no signal cache for runs commands)
	if err := iocache.InitCaching("", "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize run store: %w", err)
	}

	cfg.RunsBackend = backend
	cfg.RunsDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")

	return nil
}

// runsSetupWrapper wraps runsSetup to provide PreRunE for runs commands.
func runsSetupWrapper(_ *cobra.Command, _ []string) error {
	return runsSetup()
}

// runsMigrateSetup reads the run store settings without creating any tables,
// so migrations can start from a fresh database.
func runsMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := runsBackendConfig()
	if err != nil {
		return err
	}
	cfg.RunsBackend = backend
	cfg.RunsDBConnect = connStr
	return nil
}

// runsCmd focused on score run tracking.
//
// Note: Most runs subcommands use minimal initialization (runsSetup) instead of
// the full sharedSetup used by the scoring commands.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage recorded score runs and exports",
	Long: `Manage the history of score runs.

When --runs-backend is set, reposcore records every score run, storing:
- Run metadata (start and end time, configuration, repository counts)
- The score and all signals of each repository

Subcommands:
  status  - Show run tracking statistics
  clear   - Remove all recorded runs
  export  - Write runs and results to Parquet files
  migrate - Apply or roll back schema migrations
  history - Show the recorded scores of one repository

Examples:
  # Record runs in the default SQLite database
  reposcore score projects.txt --runs-backend sqlite

  # Show how a repository scored over time
  reposcore runs history https://github.com/kubernetes/kubernetes --runs-backend sqlite`,
}

// runsClearCmd clears the run store.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded score runs",
	Long: `Delete all recorded score runs and results.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the run tables

Examples:
  reposcore runs clear --runs-backend sqlite`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		iocache.CloseCaching()
		path := sqlitePath(cfg.RunsDBConnect, iocache.GetRunsDBFilePath())
		if err := iocache.ClearRuns(cfg.RunsBackend, path, cfg.RunsDBConnect); err != nil {
			contract.LogFatal("Failed to clear score runs", err)
		}
		fmt.Println("Score runs cleared successfully.")
	},
}

// runsStatusCmd shows run store status.
var runsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run tracking statistics",
	Long: `Show detailed information about score run tracking.

Displays:
- Backend type and connection status
- Number of recorded runs and the last run time
- Row counts per table

Examples:
  reposcore runs status --runs-backend sqlite`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := iocache.Manager.GetRunStore().GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get run status", err)
		}
		iocache.PrintRunStatus(os.Stdout, status)
	},
}

// runsExportCmd exports run data to Parquet files.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded runs to Parquet for analytics tools",
	Long: `Export all recorded score runs to Parquet format.

Writes two files next to --output-file:
- <output-file>.runs.parquet    - metadata about each run
- <output-file>.results.parquet - the score and signals of each repository

Requires: --output-file parameter

Examples:
  reposcore runs export --runs-backend sqlite --output-file scores
  duckdb -c "SELECT * FROM read_parquet('scores.results.parquet') LIMIT 10"`,
	PreRunE: runsSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ExecuteRunsExport(os.Stdout, iocache.Manager.GetRunStore(), cfg.OutputFile); err != nil {
			contract.LogFatal("Failed to export score runs", err)
		}
	},
}

// runsMigrateCmd runs database migrations for the run store.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the run tracking store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  reposcore runs migrate --runs-backend sqlite

  # Rollback to initial state
  reposcore runs migrate --runs-backend sqlite --target-version 0`,
	PreRunE: runsMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateRuns(cfg.RunsBackend, cfg.RunsDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}

// runsHistoryCmd prints the recorded scores of one repository.
var runsHistoryCmd = &cobra.Command{
	Use:   "history <repo-url>",
	Short: "Show the recorded scores of one repository",
	Long: `List the recorded scores of one repository, newest first.

Honors --output (text, csv or json) and --output-file.

Examples:
  reposcore runs history https://github.com/golang/go --runs-backend sqlite --limit 5`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, args []string) error {
		return core.ExecuteHistory(cfg, cacheManager, args[0], viper.GetInt("limit"))
	},
}
