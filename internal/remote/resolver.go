// Package remote talks to repository hosting services.
package remote

import (
	"context"
	"net/url"
	"strings"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
)

// ParseURL normalizes a repository URL into a RepoRef. A missing scheme defaults to https.
// The provider is left empty; Resolver fills it in.
func ParseURL(raw string) (schema.RepoRef, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return schema.RepoRef{}, contract.NewUnsupportedRepositoryURL(raw)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return schema.RepoRef{}, contract.NewUnsupportedRepositoryURL(raw)
	}

	path := strings.Trim(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return schema.RepoRef{}, contract.NewUnsupportedRepositoryURL(raw)
	}
	for _, p := range parts {
		if p == "" {
			return schema.RepoRef{}, contract.NewUnsupportedRepositoryURL(raw)
		}
	}

	host := strings.ToLower(u.Host)
	base := u.Scheme + "://" + host
	return schema.RepoRef{
		URL:      base + "/" + path,
		Host:     host,
		BaseURL:  base,
		FullName: path,
	}, nil
}

// Resolver picks the provider for a repository URL.
type Resolver struct {
	providers []contract.RemoteProvider
}

// NewResolver creates a Resolver trying providers in order.
func NewResolver(providers ...contract.RemoteProvider) *Resolver {
	return &Resolver{providers: providers}
}

// Resolve parses the URL and finds the provider serving its host.
func (r *Resolver) Resolve(raw string) (schema.RepoRef, contract.RemoteProvider, error) {
	ref, err := ParseURL(raw)
	if err != nil {
		return ref, nil, err
	}
	for _, p := range r.providers {
		if p.Supports(ref.Host) {
			ref.Provider = p.Kind()
			return ref, p, nil
		}
	}
	return ref, nil, contract.NewUnsupportedRepositoryURL(raw)
}

// Open resolves the URL and opens the repository on its provider.
func (r *Resolver) Open(ctx context.Context, raw string) (contract.RemoteRepository, schema.RepoRef, error) {
	ref, p, err := r.Resolve(raw)
	if err != nil {
		return nil, ref, err
	}
	repo, err := p.Open(ctx, ref)
	if err != nil {
		return nil, ref, err
	}
	return repo, ref, nil
}
