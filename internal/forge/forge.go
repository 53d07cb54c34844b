// Package forge reads and creates pull requests through the gh and glab
// CLIs. A missing CLI or an absent PR is a valid empty state, never an
// error.
package forge

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"taskdeck/internal/model"
)

// Runner executes a forge CLI command and returns its stdout. Injected
// so tests can fake gh/glab without the binaries installed.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

func defaultRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.Output()
}

// Forge abstracts PR operations over GitHub and GitLab.
type Forge interface {
	Kind() string // "github" | "gitlab"

	// ListStatuses returns the status of every open PR in the repo,
	// keyed by head branch. A missing CLI yields an empty list.
	ListStatuses(ctx context.Context) ([]model.PRStatus, error)

	// FetchStatus returns the PR status for one branch. When no PR
	// exists the result has ReviewNone and no error.
	FetchStatus(ctx context.Context, branch string) (model.PRStatus, error)

	// CreatePR opens a PR for the branch and returns its URL. If a PR
	// already exists the error is a *PRExistsError carrying the
	// existing URL.
	CreatePR(ctx context.Context, opts CreateOpts) (string, error)
}

// CreateOpts are the parameters for creating a PR/MR.
type CreateOpts struct {
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
	Draft      bool
}

// PRExistsError reports that a PR already exists for the branch.
// Callers treat it as success with the existing URL.
type PRExistsError struct {
	Branch string
	URL    string
}

func (e *PRExistsError) Error() string {
	return fmt.Sprintf("pull request already exists for %s: %s", e.Branch, e.URL)
}

// Detect returns the appropriate Forge for the repo at repoRoot,
// or nil if the remote is unrecognised or no remote exists.
func Detect(repoRoot string) Forge {
	out, err := exec.Command("git", "-C", repoRoot, "remote", "get-url", "origin").Output()
	if err != nil {
		return nil
	}
	remote := strings.ToLower(strings.TrimSpace(string(out)))

	switch {
	case strings.Contains(remote, "github.com"):
		return NewGitHub(repoRoot)
	case strings.Contains(remote, "gitlab"):
		return NewGitLab(repoRoot)
	default:
		// Last-resort probe: if glab is configured for this repo, treat as GitLab.
		probe := exec.Command("glab", "repo", "view")
		probe.Dir = repoRoot
		if probe.Run() == nil {
			return NewGitLab(repoRoot)
		}
		return nil
	}
}

// noPR is the empty state returned when a branch has no pull request.
func noPR(branch string) model.PRStatus {
	return model.PRStatus{
		Branch: branch,
		Review: model.ReviewNone,
		CI:     model.CIUnknown,
	}
}

// cliMissing reports whether err means the forge CLI is not installed.
func cliMissing(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

func trimOutput(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "…"
	}
	return s
}

// cmdError prefers the command's stderr over Go's generic exit message.
func cmdError(verb string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%s: %s", verb, trimOutput(exitErr.Stderr))
	}
	return fmt.Errorf("%s: %w", verb, err)
}
