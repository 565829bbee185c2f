package contract

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockGitClient is an autogenerated mock type for the GitClient type.
type MockGitClient struct {
	mock.Mock
}

var _ GitClient = &MockGitClient{} // Compile-time check

// Run implements the GitClient interface.
func (m *MockGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	var mockArgs []any
	mockArgs = append(mockArgs, ctx, repoPath)
	for _, arg := range args {
		mockArgs = append(mockArgs, arg)
	}
	ret := m.Called(mockArgs...)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// GetRepoRoot implements the GitClient interface.
func (m *MockGitClient) GetRepoRoot(ctx context.Context, contextPath string) (string, error) {
	ret := m.Called(ctx, contextPath)
	root, _ := ret.Get(0).(string)
	return root, ret.Error(1)
}

// GetShortStatLog implements the GitClient interface.
func (m *MockGitClient) GetShortStatLog(ctx context.Context, repoPath string, since string, glob string) ([]byte, error) {
	ret := m.Called(ctx, repoPath, since, glob)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// GetAuthorLog implements the GitClient interface.
func (m *MockGitClient) GetAuthorLog(ctx context.Context, repoPath string, since string) ([]byte, error) {
	ret := m.Called(ctx, repoPath, since)
	output, _ := ret.Get(0).([]byte)
	return output, ret.Error(1)
}

// CountCommits implements the GitClient interface.
func (m *MockGitClient) CountCommits(ctx context.Context, repoPath string, since string) (int, error) {
	ret := m.Called(ctx, repoPath, since)
	n, _ := ret.Get(0).(int)
	return n, ret.Error(1)
}

// ListSubmodulePaths implements the GitClient interface.
func (m *MockGitClient) ListSubmodulePaths(ctx context.Context, repoPath string) ([]string, error) {
	ret := m.Called(ctx, repoPath)
	paths, _ := ret.Get(0).([]string)
	return paths, ret.Error(1)
}

// Clone implements the GitClient interface.
func (m *MockGitClient) Clone(ctx context.Context, url string, dest string) error {
	return m.Called(ctx, url, dest).Error(0)
}

// Pull implements the GitClient interface.
func (m *MockGitClient) Pull(ctx context.Context, repoPath string) error {
	return m.Called(ctx, repoPath).Error(0)
}

// UpdateSubmodules implements the GitClient interface.
func (m *MockGitClient) UpdateSubmodules(ctx context.Context, repoPath string, init bool, paths ...string) error {
	return m.Called(ctx, repoPath, init, paths).Error(0)
}
