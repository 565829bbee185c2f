// Package githistory computes time-windowed statistics from local git checkouts.
package githistory

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/huangsam/reposcore/internal/contract"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Options tunes the analyzer.
type Options = contract.HistoryConfig

// Checkout identifies a local clone of a repository.
type Checkout struct {
	Name     string // canonical full name, e.g. openstack/openstack
	Path     string // absolute path of the working tree
	Language string // primary language, selects the core extensions
}

// LineChange is the number of inserted and deleted lines in the window.
type LineChange struct {
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

func (l LineChange) String() string {
	return fmt.Sprintf("+%d, -%d", l.Additions, l.Deletions)
}

// Add returns the sum of both changes.
func (l LineChange) Add(o LineChange) LineChange {
	return LineChange{Additions: l.Additions + o.Additions, Deletions: l.Deletions + o.Deletions}
}

// CoreChange is the line change restricted to the language's source files.
type CoreChange struct {
	LineChange
	Breakdown string // "ext: +A, -D" groups with non-zero change, space joined
}

func (c CoreChange) String() string {
	return fmt.Sprintf("%s (%s)", c.LineChange, c.Breakdown)
}

// lineKey identifies one memoized line-change computation.
type lineKey struct {
	path string
	glob string
}

// flightKey is the singleflight key for k. NUL cannot appear in a path, so the encoding is injective.
func (k lineKey) flightKey() string {
	return k.path + "\x00" + k.glob
}

// Analyzer computes git history statistics. It is safe for concurrent use.
// Line-change results are memoized per (path, glob) for the Analyzer's lifetime.
type Analyzer struct {
	client contract.GitClient
	since  string
	opts   Options
	log    *zap.Logger

	mu     sync.Mutex
	memo   map[lineKey]LineChange
	flight singleflight.Group
}

// NewAnalyzer creates an Analyzer for the window starting at since (YYYY-MM-DD).
func NewAnalyzer(client contract.GitClient, since string, opts Options, logger *zap.Logger) *Analyzer {
	if opts.EffortDivisor <= 0 {
		opts.EffortDivisor = contract.DefaultEffortDivisor
	}
	if opts.ActiveContributorThreshold <= 0 {
		opts.ActiveContributorThreshold = contract.DefaultActiveThreshold
	}
	return &Analyzer{
		client: client,
		since:  since,
		opts:   opts,
		log:    contract.WithComponent(logger, "githistory"),
		memo:   make(map[lineKey]LineChange),
	}
}

// Since returns the window start.
func (a *Analyzer) Since() string {
	return a.since
}

// checkPath fails with RepositoryNotFoundLocally when the checkout is missing.
func checkPath(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return contract.NewRepositoryNotFoundLocally(path)
	}
	return nil
}

// LineChangeSince returns the lines added and deleted since the window start for files matching glob.
// For repositories listed in SubmoduleRepos, submodules not marked broken are included.
func (a *Analyzer) LineChangeSince(ctx context.Context, co Checkout, glob string) (LineChange, error) {
	if err := checkPath(co.Path); err != nil {
		return LineChange{}, err
	}
	return a.lineChange(ctx, strings.ToLower(co.Name), co.Path, glob)
}

func (a *Analyzer) lineChange(ctx context.Context, name, path, glob string) (LineChange, error) {
	key := lineKey{path: path, glob: glob}
	if lc, ok := a.lookup(key); ok {
		return lc, nil
	}

	v, err, shared := a.flight.Do(key.flightKey(), func() (any, error) {
		if lc, ok := a.lookup(key); ok {
			return lc, nil
		}
		lc, err := a.computeLineChange(ctx, name, path, glob)
		if err != nil {
			return LineChange{}, err
		}
		a.mu.Lock()
		a.memo[key] = lc
		a.mu.Unlock()
		return lc, nil
	})
	if err != nil {
		return LineChange{}, err
	}
	if shared {
		a.log.Debug("collapsed line change", zap.String("path", path), zap.String("glob", glob))
	}
	return v.(LineChange), nil
}

func (a *Analyzer) lookup(key lineKey) (LineChange, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	lc, ok := a.memo[key]
	return lc, ok
}

func (a *Analyzer) computeLineChange(ctx context.Context, name, path, glob string) (LineChange, error) {
	out, err := a.client.GetShortStatLog(ctx, path, a.since, glob)
	if err != nil {
		return LineChange{}, fmt.Errorf("shortstat log for %s: %w", path, err)
	}
	total := ParseShortStat(out)

	if !slices.Contains(a.opts.SubmoduleRepos, name) {
		return total, nil
	}

	subs, err := a.client.ListSubmodulePaths(ctx, path)
	if err != nil {
		return LineChange{}, fmt.Errorf("list submodules of %s: %w", path, err)
	}
	broken := a.opts.BrokenSubmodules[name]

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, sub := range subs {
		subName := strings.ToLower(sub)
		if slices.Contains(broken, subName) {
			a.log.Debug("skipping broken submodule", zap.String("repo", name), zap.String("submodule", subName))
			continue
		}
		subPath := filepath.Join(path, subName)
		g.Go(func() error {
			if err := checkPath(subPath); err != nil {
				return err
			}
			lc, err := a.lineChange(ctx, subName, subPath, glob)
			if err != nil {
				return err
			}
			mu.Lock()
			total = total.Add(lc)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LineChange{}, err
	}
	return total, nil
}

// ParseShortStat sums insertions and deletions over `--shortstat` summary lines.
// Only lines mentioning "file changed" or "files changed" are counted.
func ParseShortStat(out []byte) LineChange {
	var total LineChange
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "file changed") && !strings.Contains(line, "files changed") {
			continue
		}
		for seg := range strings.SplitSeq(line, ",") {
			seg = strings.TrimSpace(seg)
			count, rest, ok := strings.Cut(seg, " ")
			if !ok {
				continue
			}
			n, err := strconv.Atoi(count)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(rest, "insertion"):
				total.Additions += n
			case strings.HasPrefix(rest, "deletion"):
				total.Deletions += n
			}
		}
	}
	return total
}

// CodeLineChange formats the whole-tree line change as "+A, -D".
func (a *Analyzer) CodeLineChange(ctx context.Context, co Checkout) (string, error) {
	lc, err := a.LineChangeSince(ctx, co, "*")
	if err != nil {
		return "", err
	}
	return lc.String(), nil
}

// CodeEffort estimates person-months from whole-tree additions.
func (a *Analyzer) CodeEffort(ctx context.Context, co Checkout) (float64, error) {
	lc, err := a.LineChangeSince(ctx, co, "*")
	if err != nil {
		return 0, err
	}
	return round1(float64(lc.Additions) / a.opts.EffortDivisor), nil
}

// coreGroups returns the (label, glob) pairs for the language in mapping order.
func (a *Analyzer) coreGroups(language string) ([]string, []string) {
	exts, ok := a.opts.LanguageExtensions[language]
	if !ok || len(exts) == 0 {
		return []string{"*"}, []string{"*"}
	}
	labels := make([]string, 0, len(exts))
	globs := make([]string, 0, len(exts))
	for _, ext := range exts {
		if slices.Contains(labels, ext) {
			continue
		}
		labels = append(labels, ext)
		globs = append(globs, "*."+ext)
	}
	return labels, globs
}

// CoreLineChange sums the line change over the language's source extensions.
func (a *Analyzer) CoreLineChange(ctx context.Context, co Checkout) (CoreChange, error) {
	if err := checkPath(co.Path); err != nil {
		return CoreChange{}, err
	}
	labels, globs := a.coreGroups(co.Language)
	changes := make([]LineChange, len(globs))

	g, gctx := errgroup.WithContext(ctx)
	for i, glob := range globs {
		g.Go(func() error {
			lc, err := a.LineChangeSince(gctx, co, glob)
			if err != nil {
				return err
			}
			changes[i] = lc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CoreChange{}, err
	}

	var (
		result CoreChange
		parts  []string
	)
	for i, lc := range changes {
		if lc.Additions == 0 && lc.Deletions == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", labels[i], lc))
		result.LineChange = result.LineChange.Add(lc)
	}
	result.Breakdown = strings.Join(parts, " ")
	return result, nil
}

// CoreEffort estimates person-months from core additions.
func (a *Analyzer) CoreEffort(ctx context.Context, co Checkout) (float64, error) {
	cc, err := a.CoreLineChange(ctx, co)
	if err != nil {
		return 0, err
	}
	return round1(float64(cc.Additions) / a.opts.EffortDivisor), nil
}

type authorRecord struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ActiveContributorCount counts authors with at least ActiveContributorThreshold commits in the window.
func (a *Analyzer) ActiveContributorCount(ctx context.Context, co Checkout) (int, error) {
	if err := checkPath(co.Path); err != nil {
		return 0, err
	}
	out, err := a.client.GetAuthorLog(ctx, co.Path, a.since)
	if err != nil {
		return 0, fmt.Errorf("author log for %s: %w", co.Path, err)
	}
	counts, err := a.countAuthors(co.Name, out)
	if err != nil {
		return 0, err
	}
	active := 0
	for _, n := range counts {
		if n >= a.opts.ActiveContributorThreshold {
			active++
		}
	}
	return active, nil
}

// countAuthors reconciles author records by trimmed name, falling back to email.
func (a *Analyzer) countAuthors(repo string, out []byte) (map[string]int, error) {
	counts := make(map[string]int)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}
		line := a.fixAuthorLine(raw)
		var rec authorRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, contract.NewMalformedAuthorRecord(repo, raw, err)
		}
		id := strings.TrimSpace(rec.Name)
		if id == "" {
			id = strings.ToLower(strings.TrimSpace(rec.Email))
		}
		if id == "" {
			continue
		}
		counts[id]++
	}
	if err := scanner.Err(); err != nil {
		return nil, contract.NewMalformedAuthorRecord(repo, "", err)
	}
	return counts, nil
}

func (a *Analyzer) fixAuthorLine(line string) string {
	for _, fix := range a.opts.AuthorFixes {
		line = strings.ReplaceAll(line, fix.From, fix.To)
	}
	return line
}

// CommitFrequency is the weekly average of non-merge commits over the window.
func (a *Analyzer) CommitFrequency(ctx context.Context, co Checkout) (float64, error) {
	if err := checkPath(co.Path); err != nil {
		return 0, err
	}
	n, err := a.client.CountCommits(ctx, co.Path, a.since)
	if err != nil {
		return 0, fmt.Errorf("count commits for %s: %w", co.Path, err)
	}
	return round1(float64(n) / 52), nil
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
