package core

import (
	"context"

	"github.com/huangsam/reposcore/internal/contract"
	"github.com/huangsam/reposcore/schema"
	"github.com/stretchr/testify/mock"
)

// fakeLocal reports fixed local history values.
type fakeLocal struct {
	err error
}

func (f fakeLocal) CodeLineChange(context.Context) (string, error) { return "+120, -30", f.err }
func (f fakeLocal) CodeEffort(context.Context) (float64, error)    { return 0.03, f.err }
func (f fakeLocal) CoreLineChange(context.Context) (string, error) {
	return "+80, -10 (go: +80, -10)", f.err
}
func (f fakeLocal) CoreEffort(context.Context) (float64, error)          { return 0.02, f.err }
func (f fakeLocal) ActiveContributorCount(context.Context) (int, error) { return 4, f.err }
func (f fakeLocal) CommitFrequency(context.Context) (float64, error)    { return 2.5, f.err }

var intSignalMethods = []string{
	"CreatedSince", "UpdatedSince", "ContributorCount", "OrgCount",
	"RecentReleasesCount", "UpdatedIssuesCount", "ClosedIssuesCount", "DependentsCount",
}

// newMockRepo returns a remote repository reporting the same count for every signal.
func newMockRepo(name, url, language string, count int) *contract.MockRemoteRepository {
	repo := &contract.MockRemoteRepository{}
	repo.On("Name").Return(name)
	repo.On("URL").Return(url)
	repo.On("Language").Return(language)
	for _, m := range intSignalMethods {
		repo.On(m, mock.Anything).Return(count, nil)
	}
	repo.On("CommitFrequency", mock.Anything).Return(float64(count)/10, nil)
	repo.On("CommentFrequency", mock.Anything).Return(1.5, nil)
	return repo
}

// newMockProvider returns a GitHub provider mock serving every host.
func newMockProvider() *contract.MockRemoteProvider {
	provider := &contract.MockRemoteProvider{}
	provider.On("Kind").Return(schema.GitHubProvider)
	provider.On("Supports", mock.Anything).Return(true)
	return provider
}

// sampleResult builds a complete result for url.
func sampleResult(url string, score float64) schema.ScoreResult {
	record := make(schema.SignalRecord, 0, len(schema.CanonicalSignals))
	for i, s := range schema.CanonicalSignals {
		record = append(record, schema.Signal{Name: s, Value: i})
	}
	return schema.ScoreResult{
		Name:             url[len("https://github.com/"):],
		URL:              url,
		Language:         "Go",
		Signals:          record,
		CriticalityScore: score,
	}
}
