package linear

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdeck/internal/model"
	"taskdeck/internal/tracker"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("lin_api_test", "team-1")
	c.Endpoint = srv.URL
	return c
}

func issueNodeJSON(identifier, title, stateName, stateType, updated string) map[string]any {
	return map[string]any{
		"identifier":  identifier,
		"title":       title,
		"description": "Do the thing.",
		"url":         "https://linear.app/acme/issue/" + identifier,
		"state":       map[string]any{"name": stateName, "type": stateType},
		"updatedAt":   updated,
	}
}

func respond(w http.ResponseWriter, data map[string]any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func TestFetchTask(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lin_api_test", r.Header.Get("Authorization"))

		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ENG-7", req.Variables["id"])

		respond(w, map[string]any{
			"issue": issueNodeJSON("ENG-7", "Fix flaky sync", "In Progress", "started", "2024-03-01T10:00:00Z"),
		})
	}))

	rec, err := c.FetchTask(context.Background(), "eng-7")
	require.NoError(t, err)
	assert.Equal(t, model.TaskKey("ENG-7"), rec.Key)
	assert.Equal(t, "Fix flaky sync", rec.Title)
	assert.Equal(t, model.StatusInProgress, rec.Status)
	assert.Equal(t, "Do the thing.", rec.Description)
}

func TestFetchTaskNotFound(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]any{"issue": nil})
	}))

	_, err := c.FetchTask(context.Background(), "ENG-404")
	assert.True(t, tracker.IsNotFound(err))
}

func TestFetchTaskAuthError(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{
				"message":    "Authentication required",
				"extensions": map[string]any{"code": "AUTHENTICATION_ERROR"},
			}},
		})
	}))

	_, err := c.FetchTask(context.Background(), "ENG-1")
	assert.True(t, tracker.IsAuth(err))
	assert.Equal(t, int32(1), calls.Load(), "auth failures must not be retried")
}

func TestFetchTaskRateLimitedRetries(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		respond(w, map[string]any{
			"issue": issueNodeJSON("ENG-2", "Retry me", "Todo", "unstarted", "2024-03-01T10:00:00Z"),
		})
	}))

	rec, err := c.FetchTask(context.Background(), "ENG-2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOpen, rec.Status)
	assert.Equal(t, int32(2), calls.Load())
}

func TestListTasksPaginates(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		filter, ok := req.Variables["filter"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, filter, "assignee")
		assert.Contains(t, filter, "state")

		if calls.Add(1) == 1 {
			respond(w, map[string]any{
				"issues": map[string]any{
					"nodes": []any{issueNodeJSON("ENG-1", "First", "In Review", "started", "2024-03-02T10:00:00Z")},
					"pageInfo": map[string]any{
						"hasNextPage": true,
						"endCursor":   "cursor-1",
					},
				},
			})
			return
		}
		assert.Equal(t, "cursor-1", req.Variables["after"])
		respond(w, map[string]any{
			"issues": map[string]any{
				"nodes":    []any{issueNodeJSON("ENG-2", "Second", "Todo", "unstarted", "2024-03-01T10:00:00Z")},
				"pageInfo": map[string]any{"hasNextPage": false},
			},
		})
	}))

	var got []model.TaskRecord
	for rec, err := range c.ListTasks(context.Background(), tracker.Filter{AssigneeSelf: true, ExcludeDone: true}) {
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.Len(t, got, 2)
	assert.Equal(t, model.TaskKey("ENG-1"), got[0].Key)
	assert.Equal(t, model.StatusInReview, got[0].Status)
	assert.Equal(t, model.TaskKey("ENG-2"), got[1].Key)
}

func TestCreateTask(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if _, isViewer := req.Variables["input"]; !isViewer {
			respond(w, map[string]any{"viewer": map[string]any{"id": "user-1"}})
			return
		}
		input := req.Variables["input"].(map[string]any)
		assert.Equal(t, "team-1", input["teamId"])
		assert.Equal(t, "user-1", input["assigneeId"])
		assert.Equal(t, "New thing", input["title"])

		respond(w, map[string]any{
			"issueCreate": map[string]any{
				"success": true,
				"issue":   issueNodeJSON("ENG-9", "New thing", "Todo", "unstarted", "2024-03-03T10:00:00Z"),
			},
		})
	}))

	rec, err := c.CreateTask(context.Background(), "New thing", "details")
	require.NoError(t, err)
	assert.Equal(t, model.TaskKey("ENG-9"), rec.Key)
	assert.Equal(t, model.StatusOpen, rec.Status)
}

func TestMapState(t *testing.T) {
	assert.Equal(t, model.StatusOpen, mapState("Backlog", "backlog"))
	assert.Equal(t, model.StatusOpen, mapState("Todo", "unstarted"))
	assert.Equal(t, model.StatusInProgress, mapState("In Progress", "started"))
	assert.Equal(t, model.StatusInReview, mapState("In Review", "started"))
	assert.Equal(t, model.StatusDone, mapState("Done", "completed"))
	assert.Equal(t, model.StatusDone, mapState("Canceled", "canceled"))
	assert.Equal(t, model.StatusUnknown, mapState("Weird", "mystery"))
}
