package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdeck/internal/model"
	"taskdeck/internal/resolver"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	res, err := resolver.New("PROJ", "")
	require.NoError(t, err)
	return New(res)
}

func task(key string, status model.TaskStatus, updated time.Time) model.TaskRecord {
	return model.TaskRecord{
		Key:       model.TaskKey(key),
		Title:     "Task " + key,
		Status:    status,
		UpdatedAt: updated,
	}
}

func TestMergeJoinsOnKey(t *testing.T) {
	e := testEngine(t)
	now := time.Now()

	views := e.Merge(Inputs{
		Tasks: []model.TaskRecord{
			task("PROJ-1", model.StatusInProgress, now),
			task("PROJ-2", model.StatusOpen, now.Add(-time.Hour)),
		},
		PRs: []model.PRStatus{
			{Branch: "feature/proj-1-thing", Review: model.ReviewApproved, CI: model.CIPassing, URL: "u1"},
		},
		Branches: []string{"feature/proj-1-thing", "develop"},
	})

	require.Len(t, views, 2)

	assert.Equal(t, model.TaskKey("PROJ-1"), views[0].Key)
	assert.Equal(t, "feature/proj-1-thing", views[0].Branch)
	assert.Equal(t, model.ReviewApproved, views[0].PR.Review)
	assert.False(t, views[0].TaskUnknown)

	assert.Equal(t, model.TaskKey("PROJ-2"), views[1].Key)
	assert.Empty(t, views[1].Branch)
	assert.False(t, views[1].PR.HasPR())
}

func TestMergeOrdering(t *testing.T) {
	e := testEngine(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	views := e.Merge(Inputs{
		Tasks: []model.TaskRecord{
			task("PROJ-C", model.StatusDone, base.Add(1*time.Hour)),
			task("PROJ-A", model.StatusInReview, base.Add(3*time.Hour)),
			task("PROJ-B", model.StatusOpen, base.Add(5*time.Hour)),
		},
	})

	keys := make([]model.TaskKey, len(views))
	for i, v := range views {
		keys[i] = v.Key
	}
	// Active work sorts before open work even when updated earlier.
	assert.Equal(t, []model.TaskKey{"PROJ-A", "PROJ-B", "PROJ-C"}, keys)
}

func TestMergeOrderingTies(t *testing.T) {
	e := testEngine(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	views := e.Merge(Inputs{
		Tasks: []model.TaskRecord{
			task("PROJ-2", model.StatusOpen, base),
			task("PROJ-10", model.StatusOpen, base),
			task("PROJ-3", model.StatusOpen, base.Add(time.Hour)),
		},
	})

	// Newer first, then key ascending for equal timestamps.
	assert.Equal(t, model.TaskKey("PROJ-3"), views[0].Key)
	assert.Equal(t, model.TaskKey("PROJ-10"), views[1].Key)
	assert.Equal(t, model.TaskKey("PROJ-2"), views[2].Key)
}

func TestMergeOrphanPR(t *testing.T) {
	e := testEngine(t)

	views := e.Merge(Inputs{
		PRs: []model.PRStatus{
			{Branch: "feature/proj-9-orphan", Review: model.ReviewPending, CI: model.CIRunning, URL: "u9"},
		},
	})

	require.Len(t, views, 1)
	assert.Equal(t, model.TaskKey("PROJ-9"), views[0].Key)
	assert.True(t, views[0].TaskUnknown, "a PR without a tracker task keeps an unknown task half")
	assert.Equal(t, "feature/proj-9-orphan", views[0].Branch)
	assert.True(t, views[0].PR.HasPR())
}

func TestMergeStaleFlags(t *testing.T) {
	e := testEngine(t)

	views := e.Merge(Inputs{
		Tasks:      []model.TaskRecord{task("PROJ-1", model.StatusOpen, time.Now())},
		TasksStale: true,
		PRs: []model.PRStatus{
			{Branch: "feature/proj-1-x", Review: model.ReviewPending, URL: "u"},
		},
		PRsStale: true,
	})

	require.Len(t, views, 1)
	assert.True(t, views[0].TaskStale)
	assert.True(t, views[0].PRStale)
}

func TestMergeUnknownSources(t *testing.T) {
	e := testEngine(t)

	views := e.Merge(Inputs{
		TasksUnknown: true,
		PRsUnknown:   true,
		Branches:     []string{"feature/proj-4-only-local"},
	})

	require.Len(t, views, 1)
	assert.True(t, views[0].TaskUnknown)
	assert.True(t, views[0].PRUnknown)
	assert.Equal(t, model.TaskKey("PROJ-4"), views[0].Key)
}

func TestMergeIgnoresKeylessBranches(t *testing.T) {
	e := testEngine(t)

	views := e.Merge(Inputs{
		Branches: []string{"develop", "main", "experiment"},
	})
	assert.Empty(t, views)
}
