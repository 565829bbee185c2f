package contract

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// AuthorLogFormat renders one JSON author record per commit.
const AuthorLogFormat = `--pretty=format:{"name":"%an","email":"%ae"}`

// LocalGitClient implements the GitClient interface by executing the
// local 'git' binary installed on the machine.
type LocalGitClient struct {
	// Timeout bounds every git invocation. Zero means no limit.
	Timeout time.Duration
}

var _ GitClient = &LocalGitClient{} // Compile-time check

// NewLocalGitClient creates a new instance of the local Git client.
func NewLocalGitClient() *LocalGitClient {
	return &LocalGitClient{}
}

// NewLocalGitClientWithTimeout creates a local Git client whose commands are bounded by timeout.
func NewLocalGitClientWithTimeout(timeout time.Duration) *LocalGitClient {
	return &LocalGitClient{Timeout: timeout}
}

// Run executes a git command inside repoPath and returns its stdout.
func (c *LocalGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	return c.exec(ctx, append([]string{"-C", repoPath}, args...)...)
}

func (c *LocalGitClient) exec(ctx context.Context, args ...string) ([]byte, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.TrimSpace(string(exitErr.Stderr))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("git command interrupted: %w", ctxErr)
		}
		return nil, fmt.Errorf("git command failed: %s: %w", stderr, err)
	} else if err != nil {
		return nil, fmt.Errorf("git command failed: %w. Ensure Git is installed and available on your PATH", err)
	}
	return out, nil
}

// GetRepoRoot implements the GitClient interface.
func (c *LocalGitClient) GetRepoRoot(ctx context.Context, contextPath string) (string, error) {
	out, err := c.Run(ctx, contextPath, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// GetShortStatLog implements the GitClient interface.
func (c *LocalGitClient) GetShortStatLog(ctx context.Context, repoPath string, since string, glob string) ([]byte, error) {
	args := []string{
		"log",
		"--since=" + since,
		"--shortstat",
		"--oneline",
		"--",
		glob,
	}
	return c.Run(ctx, repoPath, args...)
}

// GetAuthorLog implements the GitClient interface.
func (c *LocalGitClient) GetAuthorLog(ctx context.Context, repoPath string, since string) ([]byte, error) {
	return c.Run(ctx, repoPath, "log", "--since="+since, AuthorLogFormat)
}

// CountCommits implements the GitClient interface.
func (c *LocalGitClient) CountCommits(ctx context.Context, repoPath string, since string) (int, error) {
	out, err := c.Run(ctx, repoPath, "rev-list", "--count", "--no-merges", "--since="+since, "HEAD")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("unexpected rev-list output %q: %w", out, err)
	}
	return n, nil
}

// ListSubmodulePaths implements the GitClient interface.
func (c *LocalGitClient) ListSubmodulePaths(ctx context.Context, repoPath string) ([]string, error) {
	if _, err := os.Stat(filepath.Join(repoPath, ".gitmodules")); errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	out, err := c.Run(ctx, repoPath, "config", "--file", ".gitmodules", "--get-regexp", `^submodule\..*\.path$`)
	if err != nil {
		return nil, err
	}
	return ParseSubmodulePaths(out), nil
}

// ParseSubmodulePaths extracts the values of `git config --get-regexp` path entries.
func ParseSubmodulePaths(out []byte) []string {
	paths := []string{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		_, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if !ok {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			paths = append(paths, value)
		}
	}
	return paths
}

// Clone implements the GitClient interface.
func (c *LocalGitClient) Clone(ctx context.Context, url string, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create checkout parent: %w", err)
	}
	_, err := c.exec(ctx, "clone", "--quiet", url, dest)
	return err
}

// Pull implements the GitClient interface.
func (c *LocalGitClient) Pull(ctx context.Context, repoPath string) error {
	_, err := c.Run(ctx, repoPath, "pull", "--quiet")
	return err
}

// UpdateSubmodules implements the GitClient interface.
func (c *LocalGitClient) UpdateSubmodules(ctx context.Context, repoPath string, init bool, paths ...string) error {
	args := []string{"submodule", "update"}
	if init {
		args = append(args, "--init")
	}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	_, err := c.Run(ctx, repoPath, args...)
	return err
}
