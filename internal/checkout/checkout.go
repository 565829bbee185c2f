// Package checkout maps repositories to local git clones under a base directory.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
	"go.uber.org/zap"
)

// Provider resolves full names to <root>/<owner>/<name> and keeps those clones current.
type Provider struct {
	root    string
	client  contract.GitClient
	history contract.HistoryConfig
	log     *zap.Logger

	removeAll func(path string) error
}

var _ contract.CheckoutProvider = (*Provider)(nil)

// NewProvider creates a checkout provider rooted at root.
func NewProvider(root string, client contract.GitClient, history contract.HistoryConfig, logger *zap.Logger) *Provider {
	return &Provider{
		root:      root,
		client:    client,
		history:   history,
		log:       contract.WithComponent(logger, "checkout"),
		removeAll: os.RemoveAll,
	}
}

// Root returns the base directory of the checkouts.
func (p *Provider) Root() string { return p.root }

// Path returns where the checkout of fullName lives, whether or not it exists.
func (p *Provider) Path(fullName string) string {
	return filepath.Join(p.root, filepath.FromSlash(strings.ToLower(fullName)))
}

// Locate implements contract.CheckoutProvider.
func (p *Provider) Locate(_ context.Context, fullName string) (string, error) {
	path := p.Path(fullName)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", contract.NewRepositoryNotFoundLocally(path)
	}
	return path, nil
}

// Sync clones the repository when it is missing and pulls it otherwise.
// A failed pull removes the checkout and clones it again.
func (p *Provider) Sync(ctx context.Context, ref schema.RepoRef) (string, error) {
	name := strings.ToLower(ref.FullName)
	path := p.Path(name)
	log := p.log.With(zap.String("repo", name), zap.String("path", path))

	if _, err := os.Stat(filepath.Join(path, ".git")); errors.Is(err, os.ErrNotExist) {
		log.Info("Cloning checkout")
		return path, p.clone(ctx, ref, path)
	}

	log.Info("Updating checkout")
	if err := p.update(ctx, name, path); err != nil {
		if ctx.Err() != nil {
			return path, ctx.Err()
		}
		log.Warn("Updating failed, re-cloning", zap.Error(err))
		if err := p.removeAll(path); err != nil {
			return path, fmt.Errorf("remove checkout %s: %w", path, err)
		}
		return path, p.clone(ctx, ref, path)
	}
	return path, nil
}

// SyncAll runs Sync for every ref in order and returns the joined errors.
func (p *Provider) SyncAll(ctx context.Context, refs []schema.RepoRef) error {
	var errs []error
	for _, ref := range refs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := p.Sync(ctx, ref); err != nil {
			p.log.Warn("Checkout sync failed", zap.String("repo", ref.FullName), zap.Error(err))
			errs = append(errs, fmt.Errorf("sync %s: %w", ref.FullName, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Provider) clone(ctx context.Context, ref schema.RepoRef, path string) error {
	if err := p.client.Clone(ctx, ref.URL, path); err != nil {
		return fmt.Errorf("clone %s: %w", ref.URL, err)
	}
	return p.submodules(ctx, strings.ToLower(ref.FullName), path, true)
}

func (p *Provider) update(ctx context.Context, name, path string) error {
	if err := p.client.Pull(ctx, path); err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	return p.submodules(ctx, name, path, false)
}

// submodules updates the usable submodules of repositories that aggregate their code in them.
func (p *Provider) submodules(ctx context.Context, name, path string, init bool) error {
	if !slices.Contains(p.history.SubmoduleRepos, name) {
		return nil
	}
	paths, err := p.client.ListSubmodulePaths(ctx, path)
	if err != nil {
		return fmt.Errorf("list submodules: %w", err)
	}
	broken := p.history.BrokenSubmodules[name]
	usable := slices.DeleteFunc(paths, func(sub string) bool {
		return slices.Contains(broken, strings.ToLower(sub))
	})
	if len(usable) == 0 {
		return nil
	}
	if err := p.client.UpdateSubmodules(ctx, path, init, usable...); err != nil {
		return fmt.Errorf("update submodules: %w", err)
	}
	return nil
}
