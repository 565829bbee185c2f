package mcp_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/internal/iocache"
	mcp_internal "github.com/huangsam/reposcore/internal/mcp"
	"github.com/huangsam/reposcore/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScorer serves fixed scores by URL and fails for anything else.
type fakeScorer struct {
	scores map[string]float64
}

func (f *fakeScorer) Score(_ context.Context, url string) (schema.ScoreResult, error) {
	s, ok := f.scores[url]
	if !ok {
		return schema.ScoreResult{}, contract.NewUnsupportedRepositoryURL(url)
	}
	return schema.ScoreResult{Name: url[len("https://github.com/"):], URL: url, Language: "Go", CriticalityScore: s}, nil
}

func (f *fakeScorer) Weights() schema.WeightConfig { return schema.DefaultWeights() }

func newTestServer(mgr contract.CacheManager) *server.MCPServer {
	scorer := &fakeScorer{scores: map[string]float64{
		"https://github.com/acme/low":  0.2,
		"https://github.com/acme/high": 0.8,
	}}
	return mcp_internal.NewMCPServer(&contract.Config{Workers: 2, Retry: 1}, mgr, scorer)
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	require.NotNil(t, tool, "Tool %s should exist", name)

	req := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	require.NotNil(t, res)
	return res
}

func resultText(res *mcp.CallToolResult) string {
	return res.Content[0].(mcp.TextContent).Text
}

func TestMCPServerHandlers_ValidationErrors(t *testing.T) {
	mgr := &iocache.MockCacheManager{}
	mgr.On("GetRunStore").Return(nil)
	s := newTestServer(mgr)

	t.Run("get_repository_score missing url", func(t *testing.T) {
		res := callTool(t, s, "get_repository_score", map[string]any{"url": ""})
		assert.True(t, res.IsError, "The response should indicate an error state")
		assert.Contains(t, resultText(res), "url is required")
	})

	t.Run("get_repository_score invalid url", func(t *testing.T) {
		res := callTool(t, s, "get_repository_score", map[string]any{"url": "ftp://example.com/a/b"})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(res), "invalid repository url")
	})

	t.Run("score_repositories missing urls", func(t *testing.T) {
		res := callTool(t, s, "score_repositories", map[string]any{"urls": " , "})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(res), "urls is required")
	})

	t.Run("list_signals invalid kind", func(t *testing.T) {
		res := callTool(t, s, "list_signals", map[string]any{"kind": "everything"})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(res), "invalid kind")
	})

	t.Run("get_score_history without run store", func(t *testing.T) {
		res := callTool(t, s, "get_score_history", map[string]any{"url": "https://github.com/acme/low"})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(res), "run tracking is disabled")
	})
}

func TestMCPServerGetRepositoryScore(t *testing.T) {
	s := newTestServer(nil)

	res := callTool(t, s, "get_repository_score", map[string]any{"url": "https://github.com/acme/high"})
	require.False(t, res.IsError, resultText(res))

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &got))
	assert.Equal(t, "https://github.com/acme/high", got[schema.FieldURL])
	assert.Equal(t, 0.8, got[schema.FieldScore])
	assert.Equal(t, schema.GetPlainLabel(0.8), got["label"])

	res = callTool(t, s, "get_repository_score", map[string]any{"url": "https://github.com/acme/unknown"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "scoring failed")
}

func TestMCPServerScoreRepositories(t *testing.T) {
	s := newTestServer(nil)

	res := callTool(t, s, "score_repositories", map[string]any{
		"urls":    "https://github.com/acme/low, https://github.com/acme/high\nhttps://github.com/acme/missing https://github.com/acme/low",
		"workers": 3.0,
	})
	require.False(t, res.IsError, resultText(res))

	var got struct {
		Total    int              `json:"total"`
		Results  []map[string]any `json:"results"`
		Failures []schema.Failure `json:"failures"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &got))
	assert.Equal(t, 3, got.Total)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "https://github.com/acme/high", got.Results[0][schema.FieldURL])
	assert.Equal(t, 1.0, got.Results[0]["rank"])
	require.Len(t, got.Failures, 1)
	assert.Equal(t, "https://github.com/acme/missing", got.Failures[0].URL)
	assert.Equal(t, string(contract.CodeUnsupportedRepositoryURL), got.Failures[0].Code)
}

func TestMCPServerListSignals(t *testing.T) {
	s := newTestServer(nil)

	tests := []struct {
		kind string
		want int
	}{
		{"", len(schema.CanonicalSignals)},
		{"all", len(schema.CanonicalSignals)},
		{"scored", len(schema.ScoredSignals)},
		{"supplementary", len(schema.SupplementarySignals)},
	}
	for _, tt := range tests {
		t.Run("kind="+tt.kind, func(t *testing.T) {
			args := map[string]any{}
			if tt.kind != "" {
				args["kind"] = tt.kind
			}
			res := callTool(t, s, "list_signals", args)
			require.False(t, res.IsError, resultText(res))

			var infos []schema.SignalInfo
			require.NoError(t, json.Unmarshal([]byte(resultText(res)), &infos))
			assert.Len(t, infos, tt.want)
		})
	}
}

func TestMCPServerGetScoreHistory(t *testing.T) {
	recorded := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	runs := &iocache.MockRunStore{}
	runs.On("GetHistory", "https://github.com/acme/high", 3).Return([]schema.ResultRecord{
		{RunID: 9, RepoURL: "https://github.com/acme/high", Name: "acme/high", CriticalityScore: 0.8, Signals: `{"org_count":2}`, RecordedAt: recorded},
		{RunID: 4, RepoURL: "https://github.com/acme/high", Name: "acme/high", CriticalityScore: 0.7, Signals: "not json", RecordedAt: recorded.Add(-time.Hour)},
	}, nil)
	mgr := &iocache.MockCacheManager{}
	mgr.On("GetRunStore").Return(runs)

	s := newTestServer(mgr)
	res := callTool(t, s, "get_score_history", map[string]any{"url": "github.com/acme/high.git", "limit": 3.0})
	require.False(t, res.IsError, resultText(res))

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, 9.0, entries[0]["run_id"])
	assert.Equal(t, map[string]any{"org_count": 2.0}, entries[0]["signals"])
	assert.Nil(t, entries[1]["signals"])
	runs.AssertExpectations(t)
}
