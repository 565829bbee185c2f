package contract

import (
	"context"

	"github.com/huangsam/reposcore/schema"
	"github.com/stretchr/testify/mock"
)

// MockRemoteRepository is a mock type for the RemoteRepository type.
type MockRemoteRepository struct {
	mock.Mock
}

var _ RemoteRepository = &MockRemoteRepository{} // Compile-time check

func (m *MockRemoteRepository) Name() string {
	return m.Called().String(0)
}

func (m *MockRemoteRepository) URL() string {
	return m.Called().String(0)
}

func (m *MockRemoteRepository) Language() string {
	return m.Called().String(0)
}

func (m *MockRemoteRepository) intCall(ctx context.Context, method string) (int, error) {
	ret := m.MethodCalled(method, ctx)
	n, _ := ret.Get(0).(int)
	return n, ret.Error(1)
}

func (m *MockRemoteRepository) floatCall(ctx context.Context, method string) (float64, error) {
	ret := m.MethodCalled(method, ctx)
	f, _ := ret.Get(0).(float64)
	return f, ret.Error(1)
}

// CreatedSince implements the RemoteRepository interface.
func (m *MockRemoteRepository) CreatedSince(ctx context.Context) (int, error) {
	return m.intCall(ctx, "CreatedSince")
}

// UpdatedSince implements the RemoteRepository interface.
func (m *MockRemoteRepository) UpdatedSince(ctx context.Context) (int, error) {
	return m.intCall(ctx, "UpdatedSince")
}

// ContributorCount implements the RemoteRepository interface.
func (m *MockRemoteRepository) ContributorCount(ctx context.Context) (int, error) {
	return m.intCall(ctx, "ContributorCount")
}

// OrgCount implements the RemoteRepository interface.
func (m *MockRemoteRepository) OrgCount(ctx context.Context) (int, error) {
	return m.intCall(ctx, "OrgCount")
}

// CommitFrequency implements the RemoteRepository interface.
func (m *MockRemoteRepository) CommitFrequency(ctx context.Context) (float64, error) {
	return m.floatCall(ctx, "CommitFrequency")
}

// RecentReleasesCount implements the RemoteRepository interface.
func (m *MockRemoteRepository) RecentReleasesCount(ctx context.Context) (int, error) {
	return m.intCall(ctx, "RecentReleasesCount")
}

// UpdatedIssuesCount implements the RemoteRepository interface.
func (m *MockRemoteRepository) UpdatedIssuesCount(ctx context.Context) (int, error) {
	return m.intCall(ctx, "UpdatedIssuesCount")
}

// ClosedIssuesCount implements the RemoteRepository interface.
func (m *MockRemoteRepository) ClosedIssuesCount(ctx context.Context) (int, error) {
	return m.intCall(ctx, "ClosedIssuesCount")
}

// CommentFrequency implements the RemoteRepository interface.
func (m *MockRemoteRepository) CommentFrequency(ctx context.Context) (float64, error) {
	return m.floatCall(ctx, "CommentFrequency")
}

// DependentsCount implements the RemoteRepository interface.
func (m *MockRemoteRepository) DependentsCount(ctx context.Context) (int, error) {
	return m.intCall(ctx, "DependentsCount")
}

// MockRemoteProvider is a mock type for the RemoteProvider type.
type MockRemoteProvider struct {
	mock.Mock
}

var _ RemoteProvider = &MockRemoteProvider{} // Compile-time check

// Kind implements the RemoteProvider interface.
func (m *MockRemoteProvider) Kind() schema.ProviderKind {
	return m.Called().Get(0).(schema.ProviderKind)
}

// Supports implements the RemoteProvider interface.
func (m *MockRemoteProvider) Supports(host string) bool {
	return m.Called(host).Bool(0)
}

// Open implements the RemoteProvider interface.
func (m *MockRemoteProvider) Open(ctx context.Context, ref schema.RepoRef) (RemoteRepository, error) {
	ret := m.Called(ctx, ref)
	repo, _ := ret.Get(0).(RemoteRepository)
	return repo, ret.Error(1)
}

// MockCheckoutProvider is a mock type for the CheckoutProvider type.
type MockCheckoutProvider struct {
	mock.Mock
}

var _ CheckoutProvider = &MockCheckoutProvider{} // Compile-time check

// Locate implements the CheckoutProvider interface.
func (m *MockCheckoutProvider) Locate(ctx context.Context, fullName string) (string, error) {
	ret := m.Called(ctx, fullName)
	return ret.String(0), ret.Error(1)
}
