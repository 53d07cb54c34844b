// Package action runs the write-side workflows: switching branches,
// committing, opening PRs and creating tasks. Local steps happen before
// remote ones, and a branch created by an action is rolled back when
// the remote side fails.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskdeck/internal/cache"
	"taskdeck/internal/config"
	"taskdeck/internal/forge"
	"taskdeck/internal/gitx"
	"taskdeck/internal/model"
	"taskdeck/internal/resolver"
	"taskdeck/internal/tracker"
)

// ErrNoStagedChanges is returned by CommitStaged when the index is empty.
var ErrNoStagedChanges = errors.New("no staged changes to commit")

// Cache keys shared with the browser's refresh path.
const (
	TasksCacheKey = "tasks"
	PRsCacheKey   = "prs"
)

// Executor wires the git, forge and tracker clients behind the
// browser's actions.
type Executor struct {
	git   *gitx.Git
	forge forge.Forge
	trk   tracker.Tracker
	store *cache.Store
	res   *resolver.Resolver
	cfg   *config.Config
}

func NewExecutor(git *gitx.Git, f forge.Forge, trk tracker.Tracker, store *cache.Store, res *resolver.Resolver, cfg *config.Config) *Executor {
	return &Executor{git: git, forge: f, trk: trk, store: store, res: res, cfg: cfg}
}

// SwitchBranch checks out the branch for a task, creating it from the
// default branch when no local branch carries the task's key. Returns
// the branch name and whether it was created.
func (e *Executor) SwitchBranch(ctx context.Context, task model.TaskRecord) (string, bool, error) {
	branch, err := e.branchFor(ctx, task)
	if err != nil {
		return "", false, err
	}

	created := !e.git.BranchExists(ctx, branch)
	if err := e.git.CheckoutOrCreate(ctx, branch, e.baseBranch(ctx)); err != nil {
		return "", false, err
	}
	return branch, created, nil
}

// CommitStaged records the staged changes with the task's key and
// title as the message. Returns ErrNoStagedChanges when the index is
// empty.
func (e *Executor) CommitStaged(ctx context.Context, task model.TaskRecord) (string, error) {
	staged, err := e.git.HasStagedChanges(ctx)
	if err != nil {
		return "", err
	}
	if !staged {
		return "", ErrNoStagedChanges
	}

	message := CommitMessage(task)
	if err := e.git.Commit(ctx, message); err != nil {
		return "", err
	}
	return message, nil
}

// PRResult is the outcome of CreatePR.
type PRResult struct {
	URL    string
	Branch string
	// Existed is true when a PR was already open for the branch; the
	// URL then points at the existing PR.
	Existed bool
}

// CreatePR pushes the task's branch and opens a PR against the default
// branch, creating the branch first when none exists. If the remote
// side then fails, a branch this call created is rolled back so a
// retry starts clean. An already-open PR is not an error. An empty
// body defaults to the task link and description.
func (e *Executor) CreatePR(ctx context.Context, task model.TaskRecord, body string, draft bool) (PRResult, error) {
	branch, created, err := e.SwitchBranch(ctx, task)
	if err != nil {
		return PRResult{}, err
	}

	rollback := func() {
		if !created {
			return
		}
		base := e.baseBranch(ctx)
		if err := e.git.CheckoutOrCreate(ctx, base, base); err != nil {
			return
		}
		_ = e.git.DeleteBranch(ctx, branch)
	}

	if err := e.git.Push(ctx, branch); err != nil {
		rollback()
		return PRResult{}, fmt.Errorf("push %s: %w", branch, err)
	}

	if body == "" {
		body = prBody(task)
	}

	url, err := e.forge.CreatePR(ctx, forge.CreateOpts{
		Title:      CommitMessage(task),
		Body:       body,
		HeadBranch: branch,
		BaseBranch: e.baseBranch(ctx),
		Draft:      draft,
	})
	if err != nil {
		var exists *forge.PRExistsError
		if errors.As(err, &exists) {
			return PRResult{URL: exists.URL, Branch: branch, Existed: true}, nil
		}
		rollback()
		return PRResult{}, err
	}

	_ = e.store.Invalidate(PRsCacheKey)
	return PRResult{URL: url, Branch: branch}, nil
}

// NewTask creates a tracker task assigned to the current user and
// invalidates the task cache so the browser picks it up.
func (e *Executor) NewTask(ctx context.Context, title, description string) (model.TaskRecord, error) {
	task, err := e.trk.CreateTask(ctx, title, description)
	if err != nil {
		return model.TaskRecord{}, err
	}
	_ = e.store.Invalidate(TasksCacheKey)
	return task, nil
}

// prBody is the default PR description: the task link followed by its
// description.
func prBody(task model.TaskRecord) string {
	var b strings.Builder
	if task.URL != "" {
		fmt.Fprintf(&b, "Task: %s\n", task.URL)
	}
	if task.Description != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(task.Description)
	}
	return b.String()
}

// CommitMessage is the task-keyed commit and PR title, e.g.
// "PROJ-42: Add login flow".
func CommitMessage(task model.TaskRecord) string {
	return fmt.Sprintf("%s: %s", task.Key.Canonical(), task.Title)
}

// branchFor returns the task's existing local branch, or a fresh name
// from the branch template when none carries its key.
func (e *Executor) branchFor(ctx context.Context, task model.TaskRecord) (string, error) {
	branches, err := e.git.LocalBranches(ctx)
	if err != nil {
		return "", err
	}
	for _, branch := range branches {
		key, err := e.res.Resolve(branch, "")
		if err == nil && key.Equal(task.Key) {
			return branch, nil
		}
	}
	return resolver.BranchFor(e.cfg.BranchType, task.Key, task.Title), nil
}

func (e *Executor) baseBranch(ctx context.Context) string {
	return e.git.DefaultBranch(ctx, e.cfg.DefaultBranch)
}
