package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

type fakeGitHub struct {
	server   *httptest.Server
	releases string
	tags     int
	sleeps   atomic.Int32
}

func (f *fakeGitHub) lastPage(w http.ResponseWriter, r *http.Request, n int, body string) {
	w.Header().Set("Link", fmt.Sprintf(`<%s%s?page=%d>; rel="last"`, f.server.URL, r.URL.Path, n))
	fmt.Fprint(w, body)
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{
		releases: `[{"created_at":"2026-09-01T00:00:00Z"},{"created_at":"2024-01-01T00:00:00Z"}]`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"resources":{"core":{"limit":5000,"remaining":4000,"reset":%d}}}`, fixedNow.Add(time.Hour).Unix())
	})
	mux.HandleFunc("/repos/Owner/Repo", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"Repo","full_name":"Owner/Repo","owner":{"login":"Owner"},
			"html_url":"https://github.com/Owner/Repo","language":"Go","created_at":"2020-10-18T00:00:00Z"}`)
	})
	mux.HandleFunc("/repos/Owner/Repo/commits", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("until") != "" && q.Get("page") == "3":
			fmt.Fprint(w, `[{"commit":{"author":{"date":"2016-10-18T00:00:00Z"}}}]`)
		case q.Get("until") != "":
			f.lastPage(w, r, 3, `[{"commit":{"author":{"date":"2019-01-01T00:00:00Z"}}}]`)
		default:
			fmt.Fprint(w, `[{"commit":{"author":{"date":"2026-08-19T00:00:00Z"}}}]`)
		}
	})
	mux.HandleFunc("/repos/Owner/Repo/contributors", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("anon") == "true" {
			f.lastPage(w, r, 250, `[{"login":"a"}]`)
			return
		}
		fmt.Fprint(w, `[{"login":"a"},{"login":"b"},{"login":"c"},{"login":"d"}]`)
	})
	companies := map[string]string{"a": "@Google Inc.", "b": "google", "c": "", "d": "Red-Hat"}
	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		login := strings.TrimPrefix(r.URL.Path, "/users/")
		fmt.Fprintf(w, `{"login":%q,"company":%q}`, login, companies[login])
	})
	var statsCalls atomic.Int32
	mux.HandleFunc("/repos/Owner/Repo/stats/commit_activity", func(w http.ResponseWriter, r *http.Request) {
		if statsCalls.Add(1) == 1 {
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `[{"total":26},{"total":26}]`)
	})
	mux.HandleFunc("/repos/Owner/Repo/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, f.releases)
	})
	mux.HandleFunc("/repos/Owner/Repo/tags", func(w http.ResponseWriter, r *http.Request) {
		f.lastPage(w, r, f.tags, `[{"name":"v1"}]`)
	})
	mux.HandleFunc("/repos/Owner/Repo/issues", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") == "closed" {
			f.lastPage(w, r, 40, `[{"number":1}]`)
			return
		}
		f.lastPage(w, r, 80, `[{"number":1}]`)
	})
	mux.HandleFunc("/repos/Owner/Repo/issues/comments", func(w http.ResponseWriter, r *http.Request) {
		f.lastPage(w, r, 184, `[{"id":1}]`)
	})
	mux.HandleFunc("/search/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"Owner/Repo"`, r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"total_count":900,"items":[]}`)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGitHub) provider(t *testing.T) *GitHubProvider {
	t.Helper()
	p, err := NewGitHubProvider(GitHubOptions{
		BaseURL:    f.server.URL,
		Tokens:     []string{"tok"},
		HTTPClient: f.server.Client(),
	}, zap.NewNop())
	require.NoError(t, err)
	p.now = func() time.Time { return fixedNow }
	p.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps.Add(1)
		return nil
	}
	return p
}

func TestGitHubProviderSignals(t *testing.T) {
	f := newFakeGitHub(t)
	p := f.provider(t)
	ctx := context.Background()

	assert.True(t, p.Supports("GitHub.com"))
	assert.False(t, p.Supports("gitlab.com"))
	assert.Equal(t, schema.GitHubProvider, p.Kind())

	repo, err := p.Open(ctx, schema.RepoRef{URL: "https://github.com/owner/repo", FullName: "Owner/Repo"})
	require.NoError(t, err)
	assert.Equal(t, "owner/repo", repo.Name())
	assert.Equal(t, "https://github.com/Owner/Repo", repo.URL())
	assert.Equal(t, "Go", repo.Language())

	ints := []struct {
		name     string
		fn       func(context.Context) (int, error)
		expected int
	}{
		{"created_since uses first commit", repo.CreatedSince, 122},
		{"updated_since", repo.UpdatedSince, 2},
		{"contributor_count", repo.ContributorCount, 250},
		{"org_count", repo.OrgCount, 2},
		{"recent_releases_count", repo.RecentReleasesCount, 1},
		{"updated_issues_count", repo.UpdatedIssuesCount, 80},
		{"closed_issues_count", repo.ClosedIssuesCount, 40},
		{"dependents_count", repo.DependentsCount, 900},
	}
	for _, tt := range ints {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	freq, err := repo.CommitFrequency(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, freq)
	assert.GreaterOrEqual(t, f.sleeps.Load(), int32(1))

	comments, err := repo.CommentFrequency(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.3, comments)
}

func TestGitHubReleasesEstimatedFromTags(t *testing.T) {
	f := newFakeGitHub(t)
	f.releases = `[{"created_at":"2020-01-01T00:00:00Z"}]`
	f.tags = 30
	p := f.provider(t)

	repo, err := p.Open(context.Background(), schema.RepoRef{FullName: "Owner/Repo"})
	require.NoError(t, err)

	n, err := repo.RecentReleasesCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n) // 30 tags over 122 months, scaled to one year
}

func TestGitHubOpenRejectsNestedPaths(t *testing.T) {
	f := newFakeGitHub(t)
	_, err := f.provider(t).Open(context.Background(), schema.RepoRef{URL: "https://github.com/a/b/c", FullName: "a/b/c"})
	assert.ErrorIs(t, err, contract.ErrUnsupportedRepositoryURL)
}

func TestGitHubContributorListTooLarge(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"resources":{"core":{"limit":5000,"remaining":4000,"reset":0}}}`)
	})
	mux.HandleFunc("/repos/torvalds/linux", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"linux","full_name":"torvalds/linux","owner":{"login":"torvalds"}}`)
	})
	mux.HandleFunc("/repos/torvalds/linux/contributors", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"The history or contributor list is too large to list contributors for this repository via the API."}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p, err := NewGitHubProvider(GitHubOptions{BaseURL: server.URL, HTTPClient: server.Client()}, zap.NewNop())
	require.NoError(t, err)
	repo, err := p.Open(context.Background(), schema.RepoRef{FullName: "torvalds/linux"})
	require.NoError(t, err)

	n, err := repo.ContributorCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, contributorCountCap, n)
}

func TestFilterOrgName(t *testing.T) {
	tests := map[string]string{
		"@Google Inc.":    "google",
		"Red-Hat":         "red hat",
		"www.example.com": "example.com",
		"  Acme, LLC ":    "acme",
		"":                "",
	}
	for in, expected := range tests {
		assert.Equal(t, expected, FilterOrgName(in), in)
	}
}

func TestMonthsSince(t *testing.T) {
	assert.Equal(t, 0, monthsSince(fixedNow, fixedNow))
	assert.Equal(t, 2, monthsSince(fixedNow, fixedNow.AddDate(0, 0, -60)))
	assert.Equal(t, 122, monthsSince(fixedNow, time.Date(2016, 10, 18, 0, 0, 0, 0, time.UTC)))
}
