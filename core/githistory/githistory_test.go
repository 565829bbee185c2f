package githistory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSince = "2025-10-18"

const cannedShortStat = `a1b2c3d add feature
 3 files changed, 10 insertions(+), 2 deletions(-)
e4f5a6b drop dead code
 1 file changed, 5 deletions(-)
`

func newTestAnalyzer(client contract.GitClient) *Analyzer {
	return NewAnalyzer(client, testSince, contract.DefaultHistoryConfig(), zap.NewNop())
}

func TestParseShortStat(t *testing.T) {
	tests := []struct {
		name     string
		out      string
		expected LineChange
	}{
		{"canned plural and singular", cannedShortStat, LineChange{Additions: 10, Deletions: 7}},
		{"singular insertion", " 1 file changed, 1 insertion(+)\n", LineChange{Additions: 1}},
		{"singular deletion", " 2 files changed, 1 deletion(-)\n", LineChange{Deletions: 1}},
		{"no summary lines", "abc123 10 insertions mentioned in subject\n", LineChange{}},
		{"empty", "", LineChange{}},
		{"garbage segments", " 1 file changed, many insertions(+), 4 deletions(-)\n", LineChange{Deletions: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseShortStat([]byte(tt.out)))
		})
	}
}

func TestLineChangeSince(t *testing.T) {
	dir := t.TempDir()
	client := new(contract.MockGitClient)
	client.On("GetShortStatLog", mock.Anything, dir, testSince, "*").Return([]byte(cannedShortStat), nil).Once()

	a := newTestAnalyzer(client)
	co := Checkout{Name: "example/repo", Path: dir, Language: "Go"}

	lc, err := a.LineChangeSince(context.Background(), co, "*")
	require.NoError(t, err)
	assert.Equal(t, LineChange{Additions: 10, Deletions: 7}, lc)

	// memoized: the second call does not reach git
	lc, err = a.LineChangeSince(context.Background(), co, "*")
	require.NoError(t, err)
	assert.Equal(t, LineChange{Additions: 10, Deletions: 7}, lc)
	client.AssertNumberOfCalls(t, "GetShortStatLog", 1)
}

func TestLineChangeSinceMissingCheckout(t *testing.T) {
	client := new(contract.MockGitClient)
	a := newTestAnalyzer(client)

	_, err := a.LineChangeSince(context.Background(), Checkout{Name: "a/b", Path: "/nonexistent/reposcore/a/b"}, "*")
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrRepositoryNotFoundLocally)
	client.AssertNotCalled(t, "GetShortStatLog", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLineChangeSingleFlight(t *testing.T) {
	dir := t.TempDir()
	client := new(contract.MockGitClient)
	client.On("GetShortStatLog", mock.Anything, dir, testSince, "*.go").
		WaitUntil(time.After(50*time.Millisecond)).
		Return([]byte(cannedShortStat), nil).
		Once()

	a := newTestAnalyzer(client)
	co := Checkout{Name: "example/repo", Path: dir}

	const callers = 16
	results := make([]LineChange, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Go(func() {
			results[i], errs[i] = a.LineChangeSince(context.Background(), co, "*.go")
		})
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, LineChange{Additions: 10, Deletions: 7}, results[i])
	}
	client.AssertNumberOfCalls(t, "GetShortStatLog", 1)
}

func TestLineChangeFailureNotMemoized(t *testing.T) {
	dir := t.TempDir()
	client := new(contract.MockGitClient)
	client.On("GetShortStatLog", mock.Anything, dir, testSince, "*").Return(nil, errors.New("index.lock exists")).Once()
	client.On("GetShortStatLog", mock.Anything, dir, testSince, "*").Return([]byte(cannedShortStat), nil).Once()

	a := newTestAnalyzer(client)
	co := Checkout{Name: "example/repo", Path: dir}

	_, err := a.LineChangeSince(context.Background(), co, "*")
	require.Error(t, err)

	lc, err := a.LineChangeSince(context.Background(), co, "*")
	require.NoError(t, err)
	assert.Equal(t, 10, lc.Additions)
	client.AssertNumberOfCalls(t, "GetShortStatLog", 2)
}

// makeSubmoduleTree lays out an umbrella checkout with submodule directories.
func makeSubmoduleTree(t *testing.T, subs ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, sub := range subs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, sub), 0o755))
	}
	return root
}

func TestLineChangeSubmodules(t *testing.T) {
	root := makeSubmoduleTree(t, "nova", "neutron", "xstatic-graphlib")
	client := new(contract.MockGitClient)
	client.On("GetShortStatLog", mock.Anything, root, testSince, "*").Return([]byte(" 1 file changed, 1 insertion(+)\n"), nil)
	client.On("ListSubmodulePaths", mock.Anything, root).Return([]string{"Nova", "neutron", "xstatic-graphlib"}, nil)
	client.On("GetShortStatLog", mock.Anything, filepath.Join(root, "nova"), testSince, "*").Return([]byte(" 2 files changed, 20 insertions(+), 3 deletions(-)\n"), nil)
	client.On("GetShortStatLog", mock.Anything, filepath.Join(root, "neutron"), testSince, "*").Return([]byte(" 1 file changed, 5 deletions(-)\n"), nil)
	client.On("GetShortStatLog", mock.Anything, filepath.Join(root, "xstatic-graphlib"), testSince, "*").
		Return([]byte(" 40 files changed, 9000 insertions(+), 700 deletions(-)\n"), nil).Maybe()

	a := newTestAnalyzer(client)
	co := Checkout{Name: "OpenStack/OpenStack", Path: root}

	lc, err := a.LineChangeSince(context.Background(), co, "*")
	require.NoError(t, err)
	assert.Equal(t, LineChange{Additions: 21, Deletions: 8}, lc)

	// the broken submodule is checked out with history but contributes nothing
	client.AssertNotCalled(t, "GetShortStatLog", mock.Anything, filepath.Join(root, "xstatic-graphlib"), testSince, "*")
	client.AssertNumberOfCalls(t, "GetShortStatLog", 3)
}

func TestLineChangeSubmoduleMissing(t *testing.T) {
	root := makeSubmoduleTree(t)
	client := new(contract.MockGitClient)
	client.On("GetShortStatLog", mock.Anything, root, testSince, "*").Return([]byte(""), nil)
	client.On("ListSubmodulePaths", mock.Anything, root).Return([]string{"nova"}, nil)

	a := newTestAnalyzer(client)
	_, err := a.LineChangeSince(context.Background(), Checkout{Name: "openstack/openstack", Path: root}, "*")
	assert.ErrorIs(t, err, contract.ErrRepositoryNotFoundLocally)
}

func TestLineChangeNoSubmodulesForOtherRepos(t *testing.T) {
	dir := t.TempDir()
	client := new(contract.MockGitClient)
	client.On("GetShortStatLog", mock.Anything, dir, testSince, "*").Return([]byte(cannedShortStat), nil)

	a := newTestAnalyzer(client)
	_, err := a.LineChangeSince(context.Background(), Checkout{Name: "kubernetes/kubernetes", Path: dir}, "*")
	require.NoError(t, err)
	client.AssertNotCalled(t, "ListSubmodulePaths", mock.Anything, mock.Anything)
}

func TestCodeLineChangeAndEffort(t *testing.T) {
	dir := t.TempDir()
	client := new(contract.MockGitClient)
	client.On("GetShortStatLog", mock.Anything, dir, testSince, "*").
		Return([]byte(" 9 files changed, 15840 insertions(+), 42 deletions(-)\n"), nil).Once()

	a := newTestAnalyzer(client)
	co := Checkout{Name: "a/b", Path: dir}

	text, err := a.CodeLineChange(context.Background(), co)
	require.NoError(t, err)
	assert.Equal(t, "+15840, -42", text)

	effort, err := a.CodeEffort(context.Background(), co)
	require.NoError(t, err)
	assert.Equal(t, 3.0, effort)
}

func TestCoreLineChange(t *testing.T) {
	dir := t.TempDir()
	client := new(contract.MockGitClient)
	client.On("GetShortStatLog", mock.Anything, dir, testSince, "*.py").Return([]byte(" 4 files changed, 100 insertions(+), 20 deletions(-)\n"), nil)
	client.On("GetShortStatLog", mock.Anything, dir, testSince, "*.cfg").Return([]byte(""), nil)

	a := newTestAnalyzer(client)
	co := Checkout{Name: "a/b", Path: dir, Language: "Python"}

	cc, err := a.CoreLineChange(context.Background(), co)
	require.NoError(t, err)
	assert.Equal(t, LineChange{Additions: 100, Deletions: 20}, cc.LineChange)
	assert.Equal(t, "py: +100, -20", cc.Breakdown)
	assert.Equal(t, "+100, -20 (py: +100, -20)", cc.String())

	effort, err := a.CoreEffort(context.Background(), co)
	require.NoError(t, err)
	assert.Equal(t, 0.0, effort)
}

func TestCoreLineChangeBreakdownOrder(t *testing.T) {
	dir := t.TempDir()
	client := new(contract.MockGitClient)
	for _, ext := range []string{"cc", "c", "cpp", "h", "cxx", "hxx"} {
		out := ""
		switch ext {
		case "h":
			out = " 1 file changed, 2 insertions(+)\n"
		case "cc":
			out = " 1 file changed, 3 insertions(+), 1 deletion(-)\n"
		}
		client.On("GetShortStatLog", mock.Anything, dir, testSince, "*."+ext).Return([]byte(out), nil)
	}

	a := newTestAnalyzer(client)
	cc, err := a.CoreLineChange(context.Background(), Checkout{Name: "a/b", Path: dir, Language: "C++"})
	require.NoError(t, err)
	assert.Equal(t, "+5, -1 (cc: +3, -1 h: +2, -0)", cc.String())
}

func TestCoreLineChangeUnmappedLanguage(t *testing.T) {
	dir := t.TempDir()
	client := new(contract.MockGitClient)
	client.On("GetShortStatLog", mock.Anything, dir, testSince, "*").Return([]byte(" 1 file changed, 7 insertions(+)\n"), nil).Once()

	a := newTestAnalyzer(client)
	co := Checkout{Name: "a/b", Path: dir, Language: "Haskell"}

	cc, err := a.CoreLineChange(context.Background(), co)
	require.NoError(t, err)
	assert.Equal(t, "+7, -0 (*: +7, -0)", cc.String())

	// shares the memo entry with CodeLineChange
	_, err = a.CodeLineChange(context.Background(), co)
	require.NoError(t, err)
	client.AssertNumberOfCalls(t, "GetShortStatLog", 1)
}

func authorLines(name, email string, n int) string {
	var out string
	for range n {
		out += `{"name":"` + name + `","email":"` + email + `"}` + "\n"
	}
	return out
}

func TestActiveContributorCount(t *testing.T) {
	dir := t.TempDir()
	log := authorLines("Ada Lovelace", "ada@example.com", 15) +
		authorLines(" Ada Lovelace ", "ada@work.example.com", 5) + // same trimmed name
		authorLines("", "bot@example.com", 20) + // email fallback
		authorLines("Grace Hopper", "grace@example.com", 19) + // below threshold
		`{"name":"\"TBBle\"","email":"tbble@example.com"}` + "\n"

	client := new(contract.MockGitClient)
	client.On("GetAuthorLog", mock.Anything, dir, testSince).Return([]byte(log), nil)

	a := newTestAnalyzer(client)
	n, err := a.ActiveContributorCount(context.Background(), Checkout{Name: "a/b", Path: dir})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestActiveContributorCountAuthorFixes(t *testing.T) {
	dir := t.TempDir()
	// raw lines as git renders names containing quotes
	log := `{"name":""TBBle"","email":"t@example.com"}` + "\n" +
		`{"name":"freedom"","email":"f@example.com"}` + "\n" +
		`{"name":"back\slash","email":"b@example.com"}` + "\n"

	client := new(contract.MockGitClient)
	client.On("GetAuthorLog", mock.Anything, dir, testSince).Return([]byte(log), nil)

	opts := contract.DefaultHistoryConfig()
	opts.ActiveContributorThreshold = 1
	a := NewAnalyzer(client, testSince, opts, zap.NewNop())

	n, err := a.ActiveContributorCount(context.Background(), Checkout{Name: "a/b", Path: dir})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestActiveContributorCountMalformed(t *testing.T) {
	dir := t.TempDir()
	client := new(contract.MockGitClient)
	client.On("GetAuthorLog", mock.Anything, dir, testSince).Return([]byte(`{"name":"Unclosed "Quote","email":"x"}`), nil)

	a := newTestAnalyzer(client)
	_, err := a.ActiveContributorCount(context.Background(), Checkout{Name: "a/b", Path: dir})
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrMalformedAuthorRecord)
}

func TestCommitFrequency(t *testing.T) {
	dir := t.TempDir()
	client := new(contract.MockGitClient)
	client.On("CountCommits", mock.Anything, dir, testSince).Return(130, nil)

	a := newTestAnalyzer(client)
	freq, err := a.CommitFrequency(context.Background(), Checkout{Name: "a/b", Path: dir})
	require.NoError(t, err)
	assert.Equal(t, 2.5, freq)

	_, err = a.CommitFrequency(context.Background(), Checkout{Name: "a/b", Path: filepath.Join(dir, "missing")})
	assert.ErrorIs(t, err, contract.ErrRepositoryNotFoundLocally)
}

func TestRepoHistoryBinding(t *testing.T) {
	dir := t.TempDir()
	client := new(contract.MockGitClient)
	client.On("GetShortStatLog", mock.Anything, dir, testSince, mock.Anything).Return([]byte(cannedShortStat), nil)
	client.On("GetAuthorLog", mock.Anything, dir, testSince).Return([]byte(authorLines("Ada", "a@x", 20)), nil)
	client.On("CountCommits", mock.Anything, dir, testSince).Return(52, nil)

	h := newTestAnalyzer(client).For(Checkout{Name: "a/b", Path: dir, Language: "Go"})
	ctx := context.Background()

	code, err := h.CodeLineChange(ctx)
	require.NoError(t, err)
	assert.Equal(t, "+10, -7", code)

	core, err := h.CoreLineChange(ctx)
	require.NoError(t, err)
	assert.Equal(t, "+10, -7 (go: +10, -7)", core)

	active, err := h.ActiveContributorCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	freq, err := h.CommitFrequency(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, freq)

	effort, err := h.CoreEffort(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, effort)

	effort, err = h.CodeEffort(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, effort)
	assert.Equal(t, "a/b", h.Checkout().Name)
}
