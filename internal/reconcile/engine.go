// Package reconcile merges tracker tasks, PR statuses and local
// branches into the per-task views the browser renders.
package reconcile

import (
	"slices"

	"taskdeck/internal/model"
	"taskdeck/internal/resolver"
)

// Inputs are the three sources merged into one listing. The stale and
// unknown flags describe each source as a whole: stale means it was
// served from an expired cache after a failed refetch, unknown means it
// could not be fetched at all.
type Inputs struct {
	Tasks        []model.TaskRecord
	TasksStale   bool
	TasksUnknown bool

	PRs        []model.PRStatus
	PRsStale   bool
	PRsUnknown bool

	Branches []string
}

// Engine joins the sources on task key.
type Engine struct {
	res *resolver.Resolver
}

func New(res *resolver.Resolver) *Engine {
	return &Engine{res: res}
}

// Merge builds one view per task key seen in any source and returns
// them in the browser's display order. A task with no branch or PR
// keeps empty halves; a branch or PR whose key has no tracker task gets
// a view with the task half marked unknown. Branches that carry no task
// key are ignored. The order is deterministic: active statuses first,
// then by last update descending, then by key.
func (e *Engine) Merge(in Inputs) []model.ReconciledView {
	views := make(map[model.TaskKey]*model.ReconciledView)

	view := func(key model.TaskKey) *model.ReconciledView {
		key = key.Canonical()
		v, ok := views[key]
		if !ok {
			v = &model.ReconciledView{
				Key: key,
				Task: model.TaskRecord{
					Key:    key,
					Status: model.StatusUnknown,
				},
				PR:          model.PRStatus{Review: model.ReviewNone, CI: model.CIUnknown},
				TaskUnknown: true,
				PRUnknown:   in.PRsUnknown,
			}
			views[key] = v
		}
		return v
	}

	for _, task := range in.Tasks {
		v := view(task.Key)
		v.Task = task
		v.TaskStale = in.TasksStale
		v.TaskUnknown = false
	}

	for _, branch := range in.Branches {
		key, err := e.res.Resolve(branch, "")
		if err != nil {
			continue
		}
		view(key).Branch = branch
	}

	for _, pr := range in.PRs {
		key, err := e.res.Resolve(pr.Branch, "")
		if err != nil {
			continue
		}
		v := view(key)
		v.PR = pr
		v.PRStale = in.PRsStale
		v.PRUnknown = false
		if v.Branch == "" {
			v.Branch = pr.Branch
		}
	}

	// A wholly missing task source marks every view's task half, even
	// ones synthesized from branches.
	if in.TasksUnknown {
		for _, v := range views {
			v.TaskUnknown = true
		}
	}

	out := make([]model.ReconciledView, 0, len(views))
	for _, v := range views {
		out = append(out, *v)
	}
	slices.SortFunc(out, func(a, b model.ReconciledView) int {
		if a.Less(b) {
			return -1
		}
		if b.Less(a) {
			return 1
		}
		return 0
	})
	return out
}
