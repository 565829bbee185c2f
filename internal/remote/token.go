package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v76/github"
	"github.com/huangsam/reposcore/internal/contract"
	"go.uber.org/zap"
)

// nearExpiryRemaining is the core quota below which a token is rotated out.
const nearExpiryRemaining = 50

// TokenPool rotates GitHub clients across tokens as their rate limits run low.
type TokenPool struct {
	clients []*github.Client
	log     *zap.Logger

	mu      sync.Mutex
	current int // index of the last client handed out, -1 before first use

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGitHubClient creates a client for the API at baseURL, authenticated when token is set.
func NewGitHubClient(httpClient *http.Client, baseURL, token string) (*github.Client, error) {
	c := github.NewClient(httpClient)
	if token != "" {
		c = c.WithAuthToken(token)
	}
	if baseURL != "" && baseURL != contract.DefaultGitHubURL {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github url %q: %w", baseURL, err)
		}
		c.BaseURL = u
	}
	return c, nil
}

// NewTokenPool creates a pool with one client per token. Without tokens the pool holds one
// unauthenticated client.
func NewTokenPool(httpClient *http.Client, baseURL string, tokens []string, logger *zap.Logger) (*TokenPool, error) {
	log := contract.WithComponent(logger, "github")
	if len(tokens) == 0 {
		log.Warn("no github token configured, using unauthenticated requests")
		tokens = []string{""}
	}
	pool := &TokenPool{log: log, current: -1, now: time.Now, sleep: sleepContext}
	for _, tok := range tokens {
		c, err := NewGitHubClient(httpClient, baseURL, tok)
		if err != nil {
			return nil, err
		}
		pool.clients = append(pool.clients, c)
	}
	return pool, nil
}

// Size returns the number of clients in the pool.
func (p *TokenPool) Size() int { return len(p.clients) }

// tokenInfo reports whether the client is near its core limit and how long until reset.
func (p *TokenPool) tokenInfo(ctx context.Context, c *github.Client) (bool, time.Duration, error) {
	limits, _, err := c.RateLimit.Get(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("rate limit: %w", err)
	}
	core := limits.GetCore()
	if core == nil {
		return false, 0, nil
	}
	wait := max(0, core.Reset.Sub(p.now()))
	return core.Remaining < nearExpiryRemaining, wait, nil
}

// Client returns a client with quota left. The last handed-out client is reused while it has quota.
// When every token is near its limit, Client sleeps until the earliest reset
// and hands out the token that resets first.
func (p *TokenPool) Client(ctx context.Context) (*github.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current >= 0 {
		near, _, err := p.tokenInfo(ctx, p.clients[p.current])
		if err == nil && !near {
			return p.clients[p.current], nil
		}
	}

	var (
		minWait time.Duration
		soonest = -1
		errs    []error
	)
	for i, c := range p.clients {
		near, wait, err := p.tokenInfo(ctx, c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if soonest < 0 || wait < minWait {
			minWait = wait
			soonest = i
		}
		if !near {
			p.current = i
			return c, nil
		}
	}
	if len(errs) == len(p.clients) {
		return nil, errors.Join(errs...)
	}

	p.log.Warn("rate limit exceeded, sleeping till reset",
		zap.Float64("minutes", float64(minWait.Round(6*time.Second))/float64(time.Minute)))
	if err := p.sleep(ctx, minWait); err != nil {
		return nil, err
	}
	p.current = soonest
	return p.clients[p.current], nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
