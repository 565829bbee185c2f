package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/huangsam/reposcore/core"
	"github.com/huangsam/reposcore/core/batch"
	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/internal/outwriter"
	"github.com/huangsam/reposcore/internal/remote"
	"github.com/huangsam/reposcore/schema"
	"github.com/mark3labs/mcp-go/mcp"
)

// maxBatchURLs bounds one score_repositories call.
const maxBatchURLs = 100

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
	scorer  Scorer
}

// batchResponse is the JSON shape of score_repositories.
type batchResponse struct {
	Total    int                   `json:"total"`
	Results  []schema.RankedResult `json:"results"`
	Failures []schema.Failure      `json:"failures"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetRepositoryScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := strings.TrimSpace(request.GetString("url", ""))
	if url == "" {
		return mcp.NewToolResultError("url is required"), nil
	}
	if _, err := remote.ParseURL(url); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid repository url: %v", err)), nil
	}

	res, err := h.scorer.Score(core.WithSuppressHeader(ctx), url)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scoring failed: %v", err)), nil
	}
	return jsonResult(schema.RankResults([]schema.ScoreResult{res})[0])
}

func (h *toolHandler) handleScoreRepositories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	urls := splitURLs(request.GetString("urls", ""))
	if len(urls) == 0 {
		return mcp.NewToolResultError("urls is required"), nil
	}
	if len(urls) > maxBatchURLs {
		return mcp.NewToolResultError(fmt.Sprintf("too many urls: %d (max %d)", len(urls), maxBatchURLs)), nil
	}

	runner := batch.NewRunner(h.scorer.Score, contract.Logger())
	if h.baseCfg.Workers > 0 {
		runner.Workers = h.baseCfg.Workers
	}
	if w := request.GetInt("workers", 0); w > 0 {
		runner.Workers = w
	}
	if h.baseCfg.Retry > 0 {
		runner.RetryCount = h.baseCfg.Retry
	}
	runner.RetryBackoff = h.baseCfg.RetryBackoff

	report, err := runner.Run(core.WithSuppressHeader(ctx), urls)
	if report == nil {
		return mcp.NewToolResultError(fmt.Sprintf("scoring aborted: %v", err)), nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return mcp.NewToolResultError(fmt.Sprintf("scoring failed: %v", err)), nil
	}
	return jsonResult(batchResponse{
		Total:    report.Total,
		Results:  schema.RankResults(report.Results),
		Failures: report.Failures,
	})
}

func (h *toolHandler) handleListSignals(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := request.GetString("kind", "all")
	infos := schema.DescribeSignals(h.scorer.Weights())

	var out []schema.SignalInfo
	for _, info := range infos {
		switch kind {
		case "all":
		case "scored":
			if !info.Scored {
				continue
			}
		case "supplementary":
			if info.Scored {
				continue
			}
		default:
			return mcp.NewToolResultError(fmt.Sprintf("invalid kind %q", kind)), nil
		}
		out = append(out, info)
	}
	return jsonResult(out)
}

func (h *toolHandler) handleGetScoreHistory(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := strings.TrimSpace(request.GetString("url", ""))
	if url == "" {
		return mcp.NewToolResultError("url is required"), nil
	}
	ref, err := remote.ParseURL(url)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid repository url: %v", err)), nil
	}
	if h.mgr == nil || h.mgr.GetRunStore() == nil {
		return mcp.NewToolResultError("run tracking is disabled, start the server with --runs-backend"), nil
	}

	limit := request.GetInt("limit", core.DefaultHistoryLimit)
	if limit <= 0 {
		limit = core.DefaultHistoryLimit
	}
	records, err := h.mgr.GetRunStore().GetHistory(ref.URL, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read history: %v", err)), nil
	}
	return jsonResult(outwriter.NewHistoryEntries(records))
}

// splitURLs splits on commas and whitespace and drops duplicates.
func splitURLs(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	return batch.Dedupe(fields)
}
