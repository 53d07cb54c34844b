package model

import (
	"strings"
	"time"
)

// TaskKey is the canonical short identifier for a tracker task, e.g. "PROJ-123".
// The canonical form is upper-case; comparison is case-insensitive.
type TaskKey string

// Canonical returns the upper-cased canonical form of the key.
func (k TaskKey) Canonical() TaskKey {
	return TaskKey(strings.ToUpper(string(k)))
}

// Equal reports whether two keys name the same task.
func (k TaskKey) Equal(other TaskKey) bool {
	return strings.EqualFold(string(k), string(other))
}

func (k TaskKey) String() string { return string(k) }

// TaskStatus is the unified task state across tracker backends.
type TaskStatus string

const (
	StatusOpen       TaskStatus = "open"
	StatusInProgress TaskStatus = "in-progress"
	StatusInReview   TaskStatus = "in-review"
	StatusDone       TaskStatus = "done"
	StatusUnknown    TaskStatus = "unknown"
)

// sortRank orders statuses for the browser listing: active work first,
// then open, then done/unknown.
func (s TaskStatus) sortRank() int {
	switch s {
	case StatusInProgress, StatusInReview:
		return 0
	case StatusOpen:
		return 1
	default:
		return 2
	}
}

// TaskRecord is a tracker task as last fetched. Owned by the tracker client,
// cached by the state cache, read-only everywhere else.
type TaskRecord struct {
	Key         TaskKey    `json:"key"`
	Title       string     `json:"title"`
	Status      TaskStatus `json:"status"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	UpdatedAt   time.Time  `json:"updated_at"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// ReviewState is the rolled-up review decision on a pull request.
type ReviewState string

const (
	ReviewApproved         ReviewState = "approved"
	ReviewChangesRequested ReviewState = "changes-requested"
	ReviewPending          ReviewState = "pending"
	// ReviewNone means no PR exists for the branch. A valid terminal
	// state, never an error.
	ReviewNone ReviewState = "none"
)

// CIState is the rolled-up CI status on a pull request.
type CIState string

const (
	CIPassing CIState = "passing"
	CIFailing CIState = "failing"
	CIRunning CIState = "running"
	CIUnknown CIState = "unknown"
)

// PRStatus is the pull-request state for a branch as last fetched.
// Keyed by branch name, not task key.
type PRStatus struct {
	Branch    string      `json:"branch"`
	Review    ReviewState `json:"review"`
	CI        CIState     `json:"ci"`
	URL       string      `json:"url"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// HasPR reports whether a pull request exists for the branch.
func (p PRStatus) HasPR() bool { return p.Review != ReviewNone }

// ReconciledView is the merged per-task view consumed by the browser.
// Computed on demand, never persisted. Missing halves are marked unknown
// or stale rather than silently omitted.
type ReconciledView struct {
	Key    TaskKey
	Task   TaskRecord
	PR     PRStatus
	Branch string // local branch for the task, empty if not started

	// TaskStale/PRStale flag halves served from an expired cache entry
	// after a failed refetch.
	TaskStale bool
	PRStale   bool
	// TaskUnknown/PRUnknown flag halves that could not be fetched and
	// have no cached value at all.
	TaskUnknown bool
	PRUnknown   bool
}

// Less orders views for the browser listing: in-progress/in-review before
// open before done, ties by last-updated descending, then key ascending.
// A deterministic total order.
func (v ReconciledView) Less(other ReconciledView) bool {
	a, b := v.Task.Status.sortRank(), other.Task.Status.sortRank()
	if a != b {
		return a < b
	}
	if !v.Task.UpdatedAt.Equal(other.Task.UpdatedAt) {
		return v.Task.UpdatedAt.After(other.Task.UpdatedAt)
	}
	return v.Key.Canonical() < other.Key.Canonical()
}
