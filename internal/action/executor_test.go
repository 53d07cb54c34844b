package action

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdeck/internal/cache"
	"taskdeck/internal/config"
	"taskdeck/internal/forge"
	"taskdeck/internal/gitx"
	"taskdeck/internal/model"
	"taskdeck/internal/resolver"
	"taskdeck/internal/tracker"
)

// fakeGit answers git invocations and records them.
type fakeGit struct {
	calls    [][]string
	branches string // for-each-ref output
	staged   bool
	pushErr  error
}

func (f *fakeGit) run(_ context.Context, _ string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	switch args[0] {
	case "for-each-ref":
		return []byte(f.branches), nil
	case "rev-parse":
		if len(args) > 1 && args[1] == "--verify" {
			branch := strings.TrimPrefix(args[len(args)-1], "refs/heads/")
			if strings.Contains(f.branches, branch) {
				return nil, nil
			}
			return nil, errors.New("not a ref")
		}
		return []byte("develop\n"), nil
	case "diff":
		if f.staged {
			return []byte("internal/login/login.go\n"), nil
		}
		return nil, nil
	case "push":
		return nil, f.pushErr
	case "symbolic-ref":
		return nil, errors.New("no origin/HEAD")
	}
	return nil, nil
}

func (f *fakeGit) called(prefix ...string) bool {
	for _, call := range f.calls {
		if len(call) < len(prefix) {
			continue
		}
		match := true
		for i, p := range prefix {
			if call[i] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// fakeForge records CreatePR calls.
type fakeForge struct {
	createErr error
	createURL string
	created   []forge.CreateOpts
	statuses  []model.PRStatus
}

func (f *fakeForge) Kind() string { return "fake" }

func (f *fakeForge) ListStatuses(context.Context) ([]model.PRStatus, error) {
	return f.statuses, nil
}

func (f *fakeForge) FetchStatus(_ context.Context, branch string) (model.PRStatus, error) {
	for _, st := range f.statuses {
		if st.Branch == branch {
			return st, nil
		}
	}
	return model.PRStatus{Branch: branch, Review: model.ReviewNone, CI: model.CIUnknown}, nil
}

func (f *fakeForge) CreatePR(_ context.Context, opts forge.CreateOpts) (string, error) {
	f.created = append(f.created, opts)
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.createURL, nil
}

// fakeTracker only supports CreateTask.
type fakeTracker struct {
	createdTitle string
}

func (f *fakeTracker) Name() string { return "fake" }

func (f *fakeTracker) FetchTask(context.Context, model.TaskKey) (model.TaskRecord, error) {
	return model.TaskRecord{}, errors.New("not implemented")
}

func (f *fakeTracker) ListTasks(context.Context, tracker.Filter) iter.Seq2[model.TaskRecord, error] {
	return func(func(model.TaskRecord, error) bool) {}
}

func (f *fakeTracker) CreateTask(_ context.Context, title, description string) (model.TaskRecord, error) {
	f.createdTitle = title
	return model.TaskRecord{Key: "PROJ-99", Title: title, Status: model.StatusOpen}, nil
}

func (f *fakeTracker) Comments(context.Context, model.TaskKey) ([]tracker.Comment, error) {
	return nil, nil
}

func testExecutor(t *testing.T, g *fakeGit, f *fakeForge) *Executor {
	t.Helper()
	res, err := resolver.New("PROJ", "")
	require.NoError(t, err)
	cfg := &config.Config{
		Project:       "PROJ",
		DefaultBranch: "develop",
		BranchType:    "feature",
	}
	store := cache.NewStore(t.TempDir(), time.Hour)
	return NewExecutor(gitx.NewWithRunner("/repo", g.run), f, &fakeTracker{}, store, res, cfg)
}

func testTask() model.TaskRecord {
	return model.TaskRecord{Key: "PROJ-42", Title: "Add login flow", Status: model.StatusOpen}
}

func TestCommitMessage(t *testing.T) {
	assert.Equal(t, "PROJ-42: Add login flow", CommitMessage(testTask()))
	assert.Equal(t, "PROJ-42: Add login flow", CommitMessage(model.TaskRecord{Key: "proj-42", Title: "Add login flow"}))
}

func TestCommitStaged(t *testing.T) {
	g := &fakeGit{staged: true}
	e := testExecutor(t, g, &fakeForge{})

	msg, err := e.CommitStaged(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, "PROJ-42: Add login flow", msg)
	assert.True(t, g.called("commit", "-m", "PROJ-42: Add login flow"))
}

func TestCommitStagedEmptyIndex(t *testing.T) {
	g := &fakeGit{staged: false}
	e := testExecutor(t, g, &fakeForge{})

	_, err := e.CommitStaged(context.Background(), testTask())
	assert.ErrorIs(t, err, ErrNoStagedChanges)
	assert.False(t, g.called("commit"))
}

func TestSwitchBranchReusesExisting(t *testing.T) {
	g := &fakeGit{branches: "develop\nfeature/proj-42-old-name\n"}
	e := testExecutor(t, g, &fakeForge{})

	branch, created, err := e.SwitchBranch(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, "feature/proj-42-old-name", branch)
	assert.False(t, created, "an existing branch with the key must be reused")
	assert.True(t, g.called("checkout", "feature/proj-42-old-name"))
}

func TestSwitchBranchCreatesFromTemplate(t *testing.T) {
	g := &fakeGit{branches: "develop\n"}
	e := testExecutor(t, g, &fakeForge{})

	branch, created, err := e.SwitchBranch(context.Background(), testTask())
	require.NoError(t, err)
	assert.Equal(t, "feature/proj-42-add-login-flow", branch)
	assert.True(t, created)
	assert.True(t, g.called("fetch", "origin", "develop"))
	assert.True(t, g.called("checkout", "-b", "feature/proj-42-add-login-flow", "origin/develop"))
}

func TestCreatePR(t *testing.T) {
	g := &fakeGit{branches: "develop\nfeature/proj-42-add-login-flow\n"}
	f := &fakeForge{createURL: "https://github.com/acme/repo/pull/5"}
	e := testExecutor(t, g, f)

	res, err := e.CreatePR(context.Background(), testTask(), "Closes PROJ-42", false)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/repo/pull/5", res.URL)
	assert.False(t, res.Existed)
	assert.True(t, g.called("push", "-u", "origin", "feature/proj-42-add-login-flow"))

	require.Len(t, f.created, 1)
	assert.Equal(t, "PROJ-42: Add login flow", f.created[0].Title)
	assert.Equal(t, "develop", f.created[0].BaseBranch)
}

func TestCreatePRDefaultBody(t *testing.T) {
	g := &fakeGit{branches: "develop\nfeature/proj-42-add-login-flow\n"}
	f := &fakeForge{createURL: "u"}
	e := testExecutor(t, g, f)

	task := testTask()
	task.URL = "https://acme.atlassian.net/browse/PROJ-42"
	task.Description = "Users should be able to log in."

	_, err := e.CreatePR(context.Background(), task, "", false)
	require.NoError(t, err)
	require.Len(t, f.created, 1)
	assert.Contains(t, f.created[0].Body, task.URL)
	assert.Contains(t, f.created[0].Body, task.Description)

	// An explicit body is passed through untouched.
	_, err = e.CreatePR(context.Background(), task, "custom body", false)
	require.NoError(t, err)
	assert.Equal(t, "custom body", f.created[1].Body)
}

func TestCreatePRAlreadyExists(t *testing.T) {
	g := &fakeGit{branches: "develop\nfeature/proj-42-add-login-flow\n"}
	f := &fakeForge{createErr: &forge.PRExistsError{
		Branch: "feature/proj-42-add-login-flow",
		URL:    "https://github.com/acme/repo/pull/2",
	}}
	e := testExecutor(t, g, f)

	res, err := e.CreatePR(context.Background(), testTask(), "", false)
	require.NoError(t, err, "an already-open PR is not a failure")
	assert.True(t, res.Existed)
	assert.Equal(t, "https://github.com/acme/repo/pull/2", res.URL)
}

func TestCreatePRRollsBackCreatedBranchOnPushFailure(t *testing.T) {
	g := &fakeGit{branches: "develop\n", pushErr: errors.New("remote rejected")}
	e := testExecutor(t, g, &fakeForge{})

	_, err := e.CreatePR(context.Background(), testTask(), "", false)
	require.Error(t, err)
	assert.True(t, g.called("branch", "-D", "feature/proj-42-add-login-flow"),
		"a branch created by the action must be rolled back when the remote fails")
}

func TestCreatePRKeepsPreexistingBranchOnFailure(t *testing.T) {
	g := &fakeGit{
		branches: "develop\nfeature/proj-42-add-login-flow\n",
		pushErr:  errors.New("remote rejected"),
	}
	e := testExecutor(t, g, &fakeForge{})

	_, err := e.CreatePR(context.Background(), testTask(), "", false)
	require.Error(t, err)
	assert.False(t, g.called("branch", "-D"),
		"a branch that predates the action must survive a remote failure")
}

func TestNewTask(t *testing.T) {
	e := testExecutor(t, &fakeGit{}, &fakeForge{})

	task, err := e.NewTask(context.Background(), "New thing", "details")
	require.NoError(t, err)
	assert.Equal(t, model.TaskKey("PROJ-99"), task.Key)
}
