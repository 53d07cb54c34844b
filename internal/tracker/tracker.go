// Package tracker defines the capability interface over issue trackers.
// Each backend (Jira REST, Linear GraphQL) provides an implementation;
// everything above this package is backend-agnostic.
package tracker

import (
	"context"
	"iter"

	"taskdeck/internal/model"
)

// Filter narrows ListTasks results.
type Filter struct {
	// AssigneeSelf limits results to tasks assigned to the
	// authenticated user.
	AssigneeSelf bool
	// ExcludeDone drops completed/cancelled tasks.
	ExcludeDone bool
}

// Comment is a task comment, fed into agent prompt context.
type Comment struct {
	Author  string
	Created string
	Body    string
}

// Tracker is the capability interface all backends satisfy.
type Tracker interface {
	// Name is the lowercase backend identifier ("jira", "linear").
	Name() string

	// FetchTask retrieves one task by key.
	FetchTask(ctx context.Context, key model.TaskKey) (model.TaskRecord, error)

	// ListTasks returns a lazy, finite, restartable sequence of tasks
	// matching the filter. Re-ranging the sequence re-issues the query.
	ListTasks(ctx context.Context, f Filter) iter.Seq2[model.TaskRecord, error]

	// CreateTask creates a task assigned to the authenticated user.
	CreateTask(ctx context.Context, title, description string) (model.TaskRecord, error)

	// Comments returns the task's comments, oldest first.
	Comments(ctx context.Context, key model.TaskKey) ([]Comment, error)
}
