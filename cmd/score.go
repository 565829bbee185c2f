package cmd

import (
	"github.com/huangsam/reposcore/core"
	"github.com/spf13/cobra"
)

// scoreCmd scores every repository of a project list.
var scoreCmd = &cobra.Command{
	Use:   "score <project-list>",
	Short: "Score every repository listed in a file",
	Long: `Compute the criticality score of every repository URL in a project list.

The project list holds one GitHub or GitLab URL per line. Blank lines and
lines starting with # are skipped, and "-" reads the list from stdin.

Each repository is retried --retry times. Repositories that still fail are
summarized on stderr and the rest are ranked by score, highest first.

Tokens are read from GITHUB_AUTH_TOKEN (comma-separated for rotation) and
GITLAB_AUTH_TOKEN.

Examples:
  # Score a list and write CSV to a file
  reposcore score projects.txt --output-file scores.csv

  # Stream rows as they finish
  cat projects.txt | reposcore score - --stream --workers 8

  # Use local checkouts for commit_frequency and refresh them first
  reposcore score projects.txt --commit-frequency-source local --auto-update`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteScore(rootCtx, cfg, cacheManager)
	},
}

// repoCmd scores a single repository.
var repoCmd = &cobra.Command{
	Use:   "repo <repo-url>",
	Short: "Score one repository",
	Long: `Compute the criticality score of a single repository.

Examples:
  reposcore repo https://github.com/kubernetes/kubernetes --output text --detail
  reposcore repo https://gitlab.com/gitlab-org/gitlab --output json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, args []string) error {
		return core.ExecuteRepoScore(rootCtx, cfg, cacheManager, args[0])
	},
}

// signalsCmd lists the signal definitions.
var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "List signals with their weights and thresholds",
	Long: `Print every signal with its weight, threshold and description.

Weights and thresholds reflect the weight and threshold sections of the
config file.

Examples:
  reposcore signals --output text`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteSignals(cfg)
	},
}
