// Package gitx wraps the git CLI for the repo operations the browser
// and actions need.
package gitx

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes a git command in dir and returns its stdout. Injected
// so tests can fake git without a repository.
type Runner func(ctx context.Context, dir string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	return cmd.Output()
}

// Git runs git commands rooted at one repository.
type Git struct {
	root string
	run  Runner
}

// Open locates the repository containing dir.
func Open(ctx context.Context, dir string) (*Git, error) {
	out, err := defaultRunner(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, gitError("git rev-parse", err)
	}
	return &Git{root: strings.TrimSpace(string(out)), run: defaultRunner}, nil
}

// New returns a Git rooted at an already-known repository root.
func New(root string) *Git {
	return &Git{root: root, run: defaultRunner}
}

// NewWithRunner returns a Git that executes through the given runner.
func NewWithRunner(root string, run Runner) *Git {
	return &Git{root: root, run: run}
}

// Root returns the repository's top-level directory.
func (g *Git) Root() string { return g.root }

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, g.root, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", gitError("git rev-parse", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// LocalBranches returns all local branch names.
func (g *Git) LocalBranches(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, g.root, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, gitError("git for-each-ref", err)
	}
	var branches []string
	for line := range strings.Lines(string(out)) {
		if b := strings.TrimSpace(line); b != "" {
			branches = append(branches, b)
		}
	}
	return branches, nil
}

// BranchExists reports whether a local branch exists.
func (g *Git) BranchExists(ctx context.Context, branch string) bool {
	_, err := g.run(ctx, g.root, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func (g *Git) HasStagedChanges(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, g.root, "diff", "--cached", "--name-only")
	if err != nil {
		return false, gitError("git diff --cached", err)
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// IsClean reports whether the working tree has no pending changes.
func (g *Git) IsClean(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, g.root, "status", "--porcelain")
	if err != nil {
		return false, gitError("git status", err)
	}
	return strings.TrimSpace(string(out)) == "", nil
}

// Commit records the staged changes with the given message.
func (g *Git) Commit(ctx context.Context, message string) error {
	if _, err := g.run(ctx, g.root, "commit", "-m", message); err != nil {
		return gitError("git commit", err)
	}
	return nil
}

// CheckoutOrCreate switches to branch, creating it from the remote base
// branch when it does not exist yet. The base is refreshed from origin
// first so new branches start from current history.
func (g *Git) CheckoutOrCreate(ctx context.Context, branch, base string) error {
	if g.BranchExists(ctx, branch) {
		if _, err := g.run(ctx, g.root, "checkout", branch); err != nil {
			return gitError("git checkout", err)
		}
		return nil
	}

	if _, err := g.run(ctx, g.root, "fetch", "origin", base); err != nil {
		return gitError("git fetch", err)
	}
	if _, err := g.run(ctx, g.root, "checkout", "-b", branch, "origin/"+base); err != nil {
		return gitError("git checkout -b", err)
	}
	return nil
}

// Push publishes the branch to origin, setting the upstream.
func (g *Git) Push(ctx context.Context, branch string) error {
	if _, err := g.run(ctx, g.root, "push", "-u", "origin", branch); err != nil {
		return gitError("git push", err)
	}
	return nil
}

// DeleteBranch force-deletes a local branch.
func (g *Git) DeleteBranch(ctx context.Context, branch string) error {
	if _, err := g.run(ctx, g.root, "branch", "-D", branch); err != nil {
		return gitError("git branch -D", err)
	}
	return nil
}

// LogSince returns the one-line log of commits on HEAD that are not on
// origin/base.
func (g *Git) LogSince(ctx context.Context, base string) (string, error) {
	out, err := g.run(ctx, g.root, "log", "--oneline", "origin/"+base+"..HEAD")
	if err != nil {
		return "", gitError("git log", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// DiffSince returns the full diff of HEAD against the merge base with
// origin/base.
func (g *Git) DiffSince(ctx context.Context, base string) (string, error) {
	out, err := g.run(ctx, g.root, "diff", "origin/"+base+"...HEAD")
	if err != nil {
		return "", gitError("git diff", err)
	}
	return string(out), nil
}

// DefaultBranch returns the repo's default remote branch. Falls back to
// the given default if it cannot be determined.
func (g *Git) DefaultBranch(ctx context.Context, fallback string) string {
	out, err := g.run(ctx, g.root, "symbolic-ref", "--short", "refs/remotes/origin/HEAD")
	if err == nil {
		// output is "origin/main", strip the remote prefix
		ref := strings.TrimSpace(string(out))
		if _, after, ok := strings.Cut(ref, "/"); ok {
			return after
		}
	}
	return fallback
}

// gitError prefers git's stderr over Go's generic exit message.
func gitError(verb string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%s: %s", verb, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return fmt.Errorf("%s: %w", verb, err)
}
