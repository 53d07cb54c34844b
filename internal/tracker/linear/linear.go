// Package linear implements the tracker capability over the Linear
// GraphQL API.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"taskdeck/internal/config"
	"taskdeck/internal/model"
	"taskdeck/internal/tracker"
)

func init() {
	tracker.Register("linear", func(cfg *config.Config) (tracker.Tracker, error) {
		return NewClient(cfg.APIToken, cfg.TeamID), nil
	})
}

const (
	apiURL         = "https://api.linear.app/graphql"
	defaultTimeout = 30 * time.Second
	pageSize       = 50
)

// Client provides authenticated access to the Linear GraphQL API.
type Client struct {
	APIKey     string
	TeamID     string
	HTTPClient *http.Client

	// Endpoint may be overridden in tests.
	Endpoint string
}

// NewClient creates a Linear client for the given API key and team.
func NewClient(apiKey, teamID string) *Client {
	return &Client{
		APIKey: apiKey,
		TeamID: teamID,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		Endpoint: apiURL,
	}
}

func (c *Client) Name() string { return "linear" }

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// issueNode mirrors the fields we select on the Issue type.
type issueNode struct {
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	State       struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"state"`
	UpdatedAt string `json:"updatedAt"`
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

const issueFields = `
  identifier
  title
  description
  url
  state {
    name
    type
  }
  updatedAt`

var queryIssue = fmt.Sprintf(`
query Issue($id: String!) {
  issue(id: $id) {%s
  }
}`, issueFields)

var queryAssignedIssues = fmt.Sprintf(`
query AssignedIssues($filter: IssueFilter, $first: Int!, $after: String) {
  issues(
    filter: $filter
    first: $first
    after: $after
    orderBy: updatedAt
  ) {
    nodes {%s
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`, issueFields)

var mutationCreateIssue = fmt.Sprintf(`
mutation CreateIssue($input: IssueCreateInput!) {
  issueCreate(input: $input) {
    success
    issue {%s
    }
  }
}`, issueFields)

const queryComments = `
query IssueComments($id: String!) {
  issue(id: $id) {
    comments {
      nodes {
        body
        createdAt
        user {
          displayName
        }
      }
    }
  }
}`

const queryViewer = `
query Viewer {
  viewer {
    id
  }
}`

// FetchTask retrieves a single issue by its human identifier.
func (c *Client) FetchTask(ctx context.Context, key model.TaskKey) (model.TaskRecord, error) {
	key = key.Canonical()
	op := fmt.Sprintf("fetch task %s", key)

	var result struct {
		Issue *issueNode `json:"issue"`
	}
	err := tracker.Retry(ctx, func() error {
		return c.execute(ctx, op, queryIssue, map[string]any{"id": key.String()}, &result)
	})
	if err != nil {
		return model.TaskRecord{}, err
	}
	if result.Issue == nil {
		return model.TaskRecord{}, tracker.Errf(tracker.KindNotFound, op, "no issue %s", key)
	}
	return toRecord(result.Issue), nil
}

// ListTasks pages through issues assigned to the authenticated user.
// The sequence is lazy and restartable: re-ranging re-issues the query
// from the first page.
func (c *Client) ListTasks(ctx context.Context, f tracker.Filter) iter.Seq2[model.TaskRecord, error] {
	return func(yield func(model.TaskRecord, error) bool) {
		cursor := ""
		for {
			page, err := c.issuesPage(ctx, f, cursor)
			if err != nil {
				yield(model.TaskRecord{}, err)
				return
			}
			for i := range page.Nodes {
				if !yield(toRecord(&page.Nodes[i]), nil) {
					return
				}
			}
			if !page.PageInfo.HasNextPage {
				return
			}
			cursor = page.PageInfo.EndCursor
		}
	}
}

type issuePage struct {
	Nodes    []issueNode `json:"nodes"`
	PageInfo pageInfo    `json:"pageInfo"`
}

func (c *Client) issuesPage(ctx context.Context, f tracker.Filter, cursor string) (*issuePage, error) {
	op := "list tasks"

	filter := map[string]any{}
	if c.TeamID != "" {
		filter["team"] = map[string]any{"id": map[string]any{"eq": c.TeamID}}
	}
	if f.AssigneeSelf {
		filter["assignee"] = map[string]any{"isMe": map[string]any{"eq": true}}
	}
	if f.ExcludeDone {
		filter["state"] = map[string]any{
			"type": map[string]any{"nin": []string{"completed", "canceled"}},
		}
	}

	variables := map[string]any{
		"filter": filter,
		"first":  pageSize,
	}
	if cursor != "" {
		variables["after"] = cursor
	}

	var result struct {
		Issues issuePage `json:"issues"`
	}
	err := tracker.Retry(ctx, func() error {
		return c.execute(ctx, op, queryAssignedIssues, variables, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result.Issues, nil
}

// CreateTask creates an issue in the configured team, assigned to the
// authenticated user.
func (c *Client) CreateTask(ctx context.Context, title, description string) (model.TaskRecord, error) {
	op := "create task"

	viewerID, err := c.viewerID(ctx)
	if err != nil {
		return model.TaskRecord{}, err
	}

	input := map[string]any{
		"teamId":     c.TeamID,
		"title":      title,
		"assigneeId": viewerID,
	}
	if description != "" {
		input["description"] = description
	}

	var result struct {
		IssueCreate struct {
			Success bool       `json:"success"`
			Issue   *issueNode `json:"issue"`
		} `json:"issueCreate"`
	}
	err = tracker.Retry(ctx, func() error {
		return c.execute(ctx, op, mutationCreateIssue, map[string]any{"input": input}, &result)
	})
	if err != nil {
		return model.TaskRecord{}, err
	}
	if !result.IssueCreate.Success || result.IssueCreate.Issue == nil {
		return model.TaskRecord{}, tracker.Errf(tracker.KindMalformed, op, "issueCreate did not return an issue")
	}
	return toRecord(result.IssueCreate.Issue), nil
}

// Comments returns the issue's comments, oldest first.
func (c *Client) Comments(ctx context.Context, key model.TaskKey) ([]tracker.Comment, error) {
	key = key.Canonical()
	op := fmt.Sprintf("fetch comments for %s", key)

	var result struct {
		Issue *struct {
			Comments struct {
				Nodes []struct {
					Body      string `json:"body"`
					CreatedAt string `json:"createdAt"`
					User      *struct {
						DisplayName string `json:"displayName"`
					} `json:"user"`
				} `json:"nodes"`
			} `json:"comments"`
		} `json:"issue"`
	}
	err := tracker.Retry(ctx, func() error {
		return c.execute(ctx, op, queryComments, map[string]any{"id": key.String()}, &result)
	})
	if err != nil {
		return nil, err
	}
	if result.Issue == nil {
		return nil, tracker.Errf(tracker.KindNotFound, op, "no issue %s", key)
	}

	comments := make([]tracker.Comment, 0, len(result.Issue.Comments.Nodes))
	for _, lc := range result.Issue.Comments.Nodes {
		author := ""
		if lc.User != nil {
			author = lc.User.DisplayName
		}
		comments = append(comments, tracker.Comment{
			Author:  author,
			Created: lc.CreatedAt,
			Body:    lc.Body,
		})
	}
	return comments, nil
}

// viewerID resolves the authenticated user's ID.
func (c *Client) viewerID(ctx context.Context) (string, error) {
	op := "resolve viewer"

	var result struct {
		Viewer struct {
			ID string `json:"id"`
		} `json:"viewer"`
	}
	err := tracker.Retry(ctx, func() error {
		return c.execute(ctx, op, queryViewer, nil, &result)
	})
	if err != nil {
		return "", err
	}
	if result.Viewer.ID == "" {
		return "", tracker.Errf(tracker.KindMalformed, op, "empty viewer id in response")
	}
	return result.Viewer.ID, nil
}

func toRecord(n *issueNode) model.TaskRecord {
	rec := model.TaskRecord{
		Key:         model.TaskKey(n.Identifier).Canonical(),
		Title:       n.Title,
		Status:      mapState(n.State.Name, n.State.Type),
		Description: n.Description,
		URL:         n.URL,
		FetchedAt:   time.Now(),
	}
	if t, err := time.Parse(time.RFC3339, n.UpdatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return rec
}

// mapState folds Linear's workflow state types into the unified status
// enum. Started states whose name mentions review count as in review.
func mapState(name, stateType string) model.TaskStatus {
	switch stateType {
	case "backlog", "unstarted", "triage":
		return model.StatusOpen
	case "started":
		if strings.Contains(strings.ToLower(name), "review") {
			return model.StatusInReview
		}
		return model.StatusInProgress
	case "completed", "canceled":
		return model.StatusDone
	default:
		return model.StatusUnknown
	}
}

// execute runs one GraphQL request and classifies failures.
func (c *Client) execute(ctx context.Context, op, query string, variables map[string]any, result any) error {
	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return tracker.Errf(tracker.KindMalformed, op, "marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return tracker.Errf(tracker.KindMalformed, op, "create request: %w", err)
	}
	// Linear personal API keys go in the Authorization header as-is,
	// without a Bearer prefix.
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return tracker.Errf(tracker.KindNetwork, op, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return tracker.Errf(tracker.KindNetwork, op, "read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return tracker.Errf(tracker.KindAuth, op, "linear returned %d: check LINEAR_API_KEY", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return tracker.Errf(tracker.KindRateLimited, op, "linear returned 429")
	case resp.StatusCode >= 500:
		return tracker.Errf(tracker.KindNetwork, op, "linear returned %d: %s", resp.StatusCode, string(respBody))
	case resp.StatusCode != http.StatusOK:
		return tracker.Errf(tracker.KindMalformed, op, "linear returned %d: %s", resp.StatusCode, string(respBody))
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return tracker.Errf(tracker.KindMalformed, op, "parse response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return classifyGraphQLError(op, gqlResp.Errors[0])
	}
	if result != nil {
		if err := json.Unmarshal(gqlResp.Data, result); err != nil {
			return tracker.Errf(tracker.KindMalformed, op, "parse data: %w", err)
		}
	}
	return nil
}

// classifyGraphQLError maps Linear's error extension codes onto the
// error taxonomy. Unknown codes are treated as malformed responses
// since the request itself succeeded.
func classifyGraphQLError(op string, gqlErr graphQLError) error {
	switch gqlErr.Extensions.Code {
	case "AUTHENTICATION_ERROR", "FORBIDDEN":
		return tracker.Errf(tracker.KindAuth, op, "linear: %s", gqlErr.Message)
	case "RATELIMITED":
		return tracker.Errf(tracker.KindRateLimited, op, "linear: %s", gqlErr.Message)
	default:
		msg := strings.ToLower(gqlErr.Message)
		if strings.Contains(msg, "not found") || strings.Contains(msg, "could not find") {
			return tracker.Errf(tracker.KindNotFound, op, "linear: %s", gqlErr.Message)
		}
		return tracker.Errf(tracker.KindMalformed, op, "linear: %s", gqlErr.Message)
	}
}
