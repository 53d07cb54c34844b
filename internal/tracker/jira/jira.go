// Package jira implements the tracker capability over the Jira REST v3
// API.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskdeck/internal/config"
	"taskdeck/internal/model"
	"taskdeck/internal/tracker"
)

func init() {
	tracker.Register("jira", func(cfg *config.Config) (tracker.Tracker, error) {
		return NewClient(cfg.BaseURL, cfg.Email, cfg.APIToken, cfg.Project), nil
	})
}

// Statuses treated as complete when listing work to do.
var doneStatuses = []string{"Done", "Resolved", "Closed", "Cancelled"}

const (
	defaultTimeout = 30 * time.Second
	pageSize       = 50
	searchFields   = "summary,description,status,updated"
)

// Client provides authenticated HTTP access to a Jira site.
type Client struct {
	BaseURL    string
	Email      string
	APIToken   string
	Project    string
	HTTPClient *http.Client
}

// NewClient creates a Jira client for the given site and credentials.
func NewClient(baseURL, email, apiToken, project string) *Client {
	return &Client{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		Email:    email,
		APIToken: apiToken,
		Project:  project,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

func (c *Client) Name() string { return "jira" }

// issue mirrors the fields we request from the issue and search
// endpoints.
type issue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string          `json:"summary"`
		Description json.RawMessage `json:"description"` // ADF or plain text
		Status      *statusField    `json:"status"`
		Updated     string          `json:"updated"`
	} `json:"fields"`
}

type statusField struct {
	Name           string `json:"name"`
	StatusCategory *struct {
		Key string `json:"key"` // "new", "indeterminate", "done"
	} `json:"statusCategory"`
}

// category returns the status category key, or "" when absent.
func (s *statusField) category() string {
	if s.StatusCategory == nil {
		return ""
	}
	return s.StatusCategory.Key
}

type searchResult struct {
	StartAt int     `json:"startAt"`
	Total   int     `json:"total"`
	Issues  []issue `json:"issues"`
}

// FetchTask retrieves a single issue by key.
func (c *Client) FetchTask(ctx context.Context, key model.TaskKey) (model.TaskRecord, error) {
	key = key.Canonical()
	op := fmt.Sprintf("fetch task %s", key)
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s?fields=%s", c.BaseURL, url.PathEscape(key.String()), searchFields)

	var is issue
	err := tracker.Retry(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil, op)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &is); err != nil {
			return tracker.Errf(tracker.KindMalformed, op, "parse issue response: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.TaskRecord{}, err
	}
	return c.toRecord(&is), nil
}

// ListTasks pages through a JQL search. The sequence is lazy and
// restartable: re-ranging re-issues the query from the first page.
func (c *Client) ListTasks(ctx context.Context, f tracker.Filter) iter.Seq2[model.TaskRecord, error] {
	return func(yield func(model.TaskRecord, error) bool) {
		startAt := 0
		for {
			page, err := c.searchPage(ctx, f, startAt)
			if err != nil {
				yield(model.TaskRecord{}, err)
				return
			}
			for i := range page.Issues {
				if !yield(c.toRecord(&page.Issues[i]), nil) {
					return
				}
			}
			startAt += len(page.Issues)
			if len(page.Issues) == 0 || startAt >= page.Total {
				return
			}
		}
	}
}

func (c *Client) searchPage(ctx context.Context, f tracker.Filter, startAt int) (*searchResult, error) {
	op := "list tasks"

	clauses := []string{fmt.Sprintf("project = %q", c.Project)}
	if f.AssigneeSelf {
		clauses = append(clauses, "assignee = currentUser()")
	}
	if f.ExcludeDone {
		for _, s := range doneStatuses {
			clauses = append(clauses, fmt.Sprintf("status != %q", s))
		}
	}
	jql := strings.Join(clauses, " AND ") + " ORDER BY updated DESC"

	params := url.Values{
		"jql":        {jql},
		"fields":     {searchFields},
		"startAt":    {fmt.Sprintf("%d", startAt)},
		"maxResults": {fmt.Sprintf("%d", pageSize)},
	}
	apiURL := fmt.Sprintf("%s/rest/api/3/search?%s", c.BaseURL, params.Encode())

	var result searchResult
	err := tracker.Retry(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil, op)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return tracker.Errf(tracker.KindMalformed, op, "parse search response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateTask creates an issue assigned to the authenticated user.
func (c *Client) CreateTask(ctx context.Context, title, description string) (model.TaskRecord, error) {
	op := "create task"

	accountID, err := c.myAccountID(ctx)
	if err != nil {
		return model.TaskRecord{}, err
	}

	fields := map[string]any{
		"project":   map[string]any{"key": c.Project},
		"summary":   title,
		"issuetype": map[string]any{"name": "Task"},
		"assignee":  map[string]any{"accountId": accountID},
	}
	if description != "" {
		fields["description"] = json.RawMessage(plainTextToADF(description))
	}
	payload, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return model.TaskRecord{}, tracker.Errf(tracker.KindMalformed, op, "marshal create request: %w", err)
	}

	apiURL := c.BaseURL + "/rest/api/3/issue"
	var created struct {
		Key string `json:"key"`
	}
	err = tracker.Retry(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodPost, apiURL, payload, op)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &created); err != nil {
			return tracker.Errf(tracker.KindMalformed, op, "parse create response: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.TaskRecord{}, err
	}

	// The create response only carries id/key/self; fetch the full issue.
	return c.FetchTask(ctx, model.TaskKey(created.Key))
}

// Comments returns the issue's comments, oldest first.
func (c *Client) Comments(ctx context.Context, key model.TaskKey) ([]tracker.Comment, error) {
	op := fmt.Sprintf("fetch comments for %s", key)
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/comment", c.BaseURL, url.PathEscape(key.String()))

	var result struct {
		Comments []struct {
			Author struct {
				DisplayName string `json:"displayName"`
			} `json:"author"`
			Created string          `json:"created"`
			Body    json.RawMessage `json:"body"`
		} `json:"comments"`
	}
	err := tracker.Retry(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil, op)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return tracker.Errf(tracker.KindMalformed, op, "parse comments response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	comments := make([]tracker.Comment, 0, len(result.Comments))
	for _, jc := range result.Comments {
		comments = append(comments, tracker.Comment{
			Author:  jc.Author.DisplayName,
			Created: jc.Created,
			Body:    adfToPlainText(jc.Body),
		})
	}
	return comments, nil
}

// myAccountID resolves the authenticated user's account ID.
func (c *Client) myAccountID(ctx context.Context) (string, error) {
	op := "resolve account"
	apiURL := c.BaseURL + "/rest/api/3/myself"

	var me struct {
		AccountID string `json:"accountId"`
	}
	err := tracker.Retry(ctx, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil, op)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &me); err != nil {
			return tracker.Errf(tracker.KindMalformed, op, "parse myself response: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if me.AccountID == "" {
		return "", tracker.Errf(tracker.KindMalformed, op, "empty accountId in response")
	}
	return me.AccountID, nil
}

func (c *Client) toRecord(is *issue) model.TaskRecord {
	rec := model.TaskRecord{
		Key:         model.TaskKey(is.Key).Canonical(),
		Title:       is.Fields.Summary,
		Status:      model.StatusUnknown,
		Description: adfToPlainText(is.Fields.Description),
		URL:         fmt.Sprintf("%s/browse/%s", c.BaseURL, is.Key),
		FetchedAt:   time.Now(),
	}
	if is.Fields.Status != nil {
		rec.Status = mapStatus(is.Fields.Status.Name, is.Fields.Status.category())
	}
	if t, err := parseTimestamp(is.Fields.Updated); err == nil {
		rec.UpdatedAt = t
	}
	return rec
}

// mapStatus folds Jira's free-form workflow states into the unified
// status enum. The status name wins for review states; otherwise the
// status category decides.
func mapStatus(name, category string) model.TaskStatus {
	if strings.Contains(strings.ToLower(name), "review") {
		return model.StatusInReview
	}
	switch category {
	case "new":
		return model.StatusOpen
	case "indeterminate":
		return model.StatusInProgress
	case "done":
		return model.StatusDone
	default:
		return model.StatusUnknown
	}
}

// parseTimestamp parses Jira's RFC3339-with-offset timestamps, which use
// a numeric zone without a colon.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range []string{"2006-01-02T15:04:05.000-0700", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// doRequest executes one authenticated request and classifies failures.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body []byte, op string) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, tracker.Errf(tracker.KindMalformed, op, "create request: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.Email + ":" + c.APIToken))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, tracker.Errf(tracker.KindNetwork, op, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tracker.Errf(tracker.KindNetwork, op, "read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, tracker.Errf(tracker.KindAuth, op, "jira returned %d: check JIRA_EMAIL and JIRA_API_KEY", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, tracker.Errf(tracker.KindNotFound, op, "jira returned 404")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, tracker.Errf(tracker.KindRateLimited, op, "jira returned 429")
	case resp.StatusCode >= 500:
		return nil, tracker.Errf(tracker.KindNetwork, op, "jira returned %d: %s", resp.StatusCode, string(respBody))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, tracker.Errf(tracker.KindMalformed, op, "jira returned %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
