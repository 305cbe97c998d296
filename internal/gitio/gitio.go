// Package gitio wraps the git subprocess interface the comparator needs:
// fetching, ref resolution, and materializing a ref's migration files into a
// temporary tree so the adapters can parse them. The analysis engine never
// calls git; this package hands it already-loaded record sets.
package gitio

import (
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

	"github.com/cenkalti/backoff/v4"
)

// DefaultTimeout bounds each git subprocess.
const DefaultTimeout = 30 * time.Second

// Error wraps a failed git invocation.
type Error struct {
	Args     []string
	Stderr   string
	ExitCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("git %s failed (rc=%d): %s",
		strings.Join(e.Args, " "), e.ExitCode, strings.TrimSpace(e.Stderr))
}

// Client runs git commands in one repository.
type Client struct {
	Dir     string
	Timeout time.Duration
}

// NewClient creates a client rooted at dir ("" means the working directory).
func NewClient(dir string) *Client {
	return &Client{Dir: dir, Timeout: DefaultTimeout}
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return "", &Error{Args: args, Stderr: stderr.String(), ExitCode: exitCode}
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

// IsRepo reports whether Dir is inside a git work tree.
func (c *Client) IsRepo(ctx context.Context) bool {
	_, err := c.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// Fetch updates the remote's refs, retrying transient failures with
// exponential backoff (network flaps are common in CI).
func (c *Client) Fetch(ctx context.Context, remote string) error {
	if remote == "" {
		remote = "origin"
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(func() error {
		_, err := c.run(ctx, "fetch", "--quiet", remote)
		return err
	}, policy)
}

// CurrentBranch returns the checked-out branch name.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	return c.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

// MergeBase returns the common ancestor of two refs, or "" when the refs
// share no history.
func (c *Client) MergeBase(ctx context.Context, a, b string) (string, error) {
	out, err := c.run(ctx, "merge-base", a, b)
	if err != nil {
		var gerr *Error
		if errors.As(err, &gerr) && gerr.ExitCode == 1 {
			return "", nil
		}
		return "", err
	}
	return out, nil
}

// CommitsBetween counts commits reachable from head but not base.
func (c *Client) CommitsBetween(ctx context.Context, base, head string) (int, error) {
	out, err := c.run(ctx, "rev-list", "--count", base+".."+head)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("unexpected rev-list output %q: %w", out, err)
	}
	return n, nil
}

// BranchStatus is the commit-level relation of the checked-out branch to a
// target ref. It complements the record-set comparison: the comparator sees
// migrations, this sees commits.
type BranchStatus struct {
	Branch        string   `json:"branch"`
	MergeBase     string   `json:"merge_base,omitempty"`
	CommitsAhead  int      `json:"commits_ahead"`
	CommitsBehind int      `json:"commits_behind"`
	ChangedFiles  []string `json:"changed_files,omitempty"`
}

// BranchStatus compares HEAD against target at the commit level: current
// branch name, merge base, commits ahead/behind, and the paths that differ
// between the two tips. Refs with no shared history report only the branch
// name.
func (c *Client) BranchStatus(ctx context.Context, target string) (*BranchStatus, error) {
	branch, err := c.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	st := &BranchStatus{Branch: branch}

	base, err := c.MergeBase(ctx, target, "HEAD")
	if err != nil {
		return nil, err
	}
	if base == "" {
		return st, nil
	}
	st.MergeBase = base

	if st.CommitsBehind, err = c.CommitsBetween(ctx, "HEAD", target); err != nil {
		return nil, err
	}
	if st.CommitsAhead, err = c.CommitsBetween(ctx, target, "HEAD"); err != nil {
		return nil, err
	}
	if st.ChangedFiles, err = c.ChangedFiles(ctx, target, "HEAD"); err != nil {
		return nil, err
	}
	return st, nil
}

// ChangedFiles lists paths that differ between two refs.
func (c *Client) ChangedFiles(ctx context.Context, a, b string) ([]string, error) {
	out, err := c.run(ctx, "diff", "--name-only", a, b)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// ListTree lists every file under dir at ref.
func (c *Client) ListTree(ctx context.Context, ref, dir string) ([]string, error) {
	args := []string{"ls-tree", "-r", "--name-only", ref}
	if dir != "" && dir != "." {
		args = append(args, "--", dir)
	}
	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// ShowFile returns the blob contents of path at ref.
func (c *Client) ShowFile(ctx context.Context, ref, path string) ([]byte, error) {
	out, err := c.run(ctx, "show", ref+":"+path)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// MaterializeRef copies the migration-relevant files (.py, .sql) under dirs
// at ref into a temporary tree and returns its path plus a cleanup func.
// Adapters can then parse the ref's migration state exactly as they would a
// working tree.
func (c *Client) MaterializeRef(ctx context.Context, ref string, dirs []string) (string, func(), error) {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	tmp, err := os.MkdirTemp("", "miq-ref-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmp) }

	for _, dir := range dirs {
		files, err := c.ListTree(ctx, ref, dir)
		if err != nil {
			cleanup()
			return "", nil, fmt.Errorf("list %s at %s: %w", dir, ref, err)
		}
		for _, f := range files {
			ext := strings.ToLower(filepath.Ext(f))
			if ext != ".py" && ext != ".sql" {
				continue
			}
			data, err := c.ShowFile(ctx, ref, f)
			if err != nil {
				cleanup()
				return "", nil, fmt.Errorf("show %s at %s: %w", f, ref, err)
			}
			dst := filepath.Join(tmp, filepath.FromSlash(f))
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				cleanup()
				return "", nil, err
			}
			if err := os.WriteFile(dst, data, 0o644); err != nil {
				cleanup()
				return "", nil, err
			}
		}
	}
	return tmp, cleanup, nil
}
