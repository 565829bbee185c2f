// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"
	"time"

	"github.com/huangsam/reposcore/core"
	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Scorer scores repositories for the tool handlers. *core.RepoScorer satisfies it.
type Scorer interface {
	Score(ctx context.Context, url string) (schema.ScoreResult, error)
	Weights() schema.WeightConfig
}

// NewMCPServer initializes and configures the reposcore MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager, scorer Scorer) *server.MCPServer {
	s := server.NewMCPServer(
		"Repository Criticality Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
		scorer:  scorer,
	}

	// --- 1. Tool: get_repository_score ---
	s.AddTool(mcp.NewTool("get_repository_score",
		mcp.WithDescription("Compute the criticality score of one GitHub or GitLab repository, with all of its signals."),
		mcp.WithString("url", mcp.Description("Repository URL, e.g. https://github.com/kubernetes/kubernetes."), mcp.Required()),
	), h.handleGetRepositoryScore)

	// --- 2. Tool: score_repositories ---
	s.AddTool(mcp.NewTool("score_repositories",
		mcp.WithDescription("Score several repositories and rank them by criticality. Repositories that fail are listed separately."),
		mcp.WithString("urls", mcp.Description("Repository URLs separated by commas, spaces or newlines."), mcp.Required()),
		mcp.WithNumber("workers", mcp.Description("Number of repositories scored in parallel.")),
	), h.handleScoreRepositories)

	// --- 3. Tool: list_signals ---
	s.AddTool(mcp.NewTool("list_signals",
		mcp.WithDescription("List the criticality signals with their weights, thresholds and descriptions."),
		mcp.WithString("kind", mcp.Description("Which signals to list. Defaults to 'all'."), mcp.Enum("all", "scored", "supplementary")),
	), h.handleListSignals)

	// --- 4. Tool: get_score_history ---
	s.AddTool(mcp.NewTool("get_score_history",
		mcp.WithDescription("Show previously recorded scores of a repository, newest first. Requires run tracking."),
		mcp.WithString("url", mcp.Description("Repository URL."), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records returned.")),
	), h.handleGetScoreHistory)

	return s
}

// StartMCPServer starts the reposcore MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	env, err := core.BuildEnvironment(baseCfg, mgr, time.Now())
	if err != nil {
		return err
	}
	s := NewMCPServer(baseCfg, mgr, env.Scorer)
	return server.ServeStdio(s)
}
