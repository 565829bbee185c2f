package githistory

import "context"

// RepoHistory binds an Analyzer to one checkout.
type RepoHistory struct {
	analyzer *Analyzer
	checkout Checkout
}

// For binds the analyzer to a checkout.
func (a *Analyzer) For(co Checkout) *RepoHistory {
	return &RepoHistory{analyzer: a, checkout: co}
}

// Checkout returns the bound checkout.
func (r *RepoHistory) Checkout() Checkout { return r.checkout }

func (r *RepoHistory) CodeLineChange(ctx context.Context) (string, error) {
	return r.analyzer.CodeLineChange(ctx, r.checkout)
}

func (r *RepoHistory) CodeEffort(ctx context.Context) (float64, error) {
	return r.analyzer.CodeEffort(ctx, r.checkout)
}

func (r *RepoHistory) CoreLineChange(ctx context.Context) (string, error) {
	cc, err := r.analyzer.CoreLineChange(ctx, r.checkout)
	if err != nil {
		return "", err
	}
	return cc.String(), nil
}

func (r *RepoHistory) CoreEffort(ctx context.Context) (float64, error) {
	return r.analyzer.CoreEffort(ctx, r.checkout)
}

func (r *RepoHistory) ActiveContributorCount(ctx context.Context) (int, error) {
	return r.analyzer.ActiveContributorCount(ctx, r.checkout)
}

func (r *RepoHistory) CommitFrequency(ctx context.Context) (float64, error) {
	return r.analyzer.CommitFrequency(ctx, r.checkout)
}
