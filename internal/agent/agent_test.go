package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"taskdeck/internal/model"
	"taskdeck/internal/tracker"
)

func TestTaskContext(t *testing.T) {
	task := model.TaskRecord{
		Key:         "proj-42",
		Title:       "Add login flow",
		Description: "Users should be able to log in.",
	}
	comments := []tracker.Comment{
		{Author: "Alice", Body: "Remember the rate limiter."},
	}

	got := TaskContext(task, comments)
	assert.Contains(t, got, "**Task:** PROJ-42")
	assert.Contains(t, got, "**Summary:** Add login flow")
	assert.Contains(t, got, "Users should be able to log in.")
	assert.Contains(t, got, "Alice: Remember the rate limiter.")
}

func TestTaskContextWithoutDescription(t *testing.T) {
	got := TaskContext(model.TaskRecord{Key: "PROJ-1", Title: "Title only"}, nil)
	assert.NotContains(t, got, "**Description:**")
	assert.NotContains(t, got, "**Comments:**")
}

func TestPromptsEmbedContext(t *testing.T) {
	ctx := TaskContext(model.TaskRecord{Key: "PROJ-7", Title: "Fix sync"}, nil)

	assert.Contains(t, ImplementPrompt(ctx), "PROJ-7")
	assert.Contains(t, ReviewPrompt(ctx, "abc123 PROJ-7: Fix sync", "+ fixed", "develop"), "origin/develop")
	assert.Contains(t, AddressPrompt(ctx), "unresolved comments")
}

func TestReviewPromptEmptyBranch(t *testing.T) {
	got := ReviewPrompt("", "", "", "develop")
	assert.Contains(t, got, "No commits yet on this branch")
	assert.Contains(t, got, "No changes yet")
}
