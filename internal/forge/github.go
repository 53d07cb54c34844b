package forge

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"taskdeck/internal/model"
)

const ghFields = "number,title,state,url,isDraft,headRefName,reviews,statusCheckRollup"

type gitHub struct {
	repoRoot string
	run      Runner
}

// NewGitHub returns a Forge backed by the gh CLI.
func NewGitHub(repoRoot string) Forge {
	return &gitHub{repoRoot: repoRoot, run: defaultRunner}
}

func (g *gitHub) Kind() string { return "github" }

// ghPR mirrors the fields we care about from gh's JSON output.
type ghPR struct {
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	State       string     `json:"state"` // "OPEN", "MERGED", "CLOSED"
	URL         string     `json:"url"`
	IsDraft     bool       `json:"isDraft"`
	HeadRefName string     `json:"headRefName"`
	Reviews     []ghReview `json:"reviews"`
	// statusCheckRollup enumerates every check; entries are either
	// CheckRun (status/conclusion) or StatusContext (state) shaped.
	StatusCheckRollup []ghCheck `json:"statusCheckRollup"`
}

type ghReview struct {
	Author struct {
		Login string `json:"login"`
	} `json:"author"`
	State       string    `json:"state"` // "APPROVED", "CHANGES_REQUESTED", "COMMENTED", ...
	SubmittedAt time.Time `json:"submittedAt"`
}

type ghCheck struct {
	Status     string `json:"status"`     // CheckRun: "COMPLETED", "IN_PROGRESS", "QUEUED"
	Conclusion string `json:"conclusion"` // CheckRun: "SUCCESS", "FAILURE", ...
	State      string `json:"state"`      // StatusContext: "SUCCESS", "FAILURE", "PENDING"
}

func (g *gitHub) ListStatuses(ctx context.Context) ([]model.PRStatus, error) {
	out, err := g.run(ctx, g.repoRoot,
		"gh", "pr", "list",
		"--state", "open",
		"--limit", "100",
		"--json", ghFields,
	)
	if err != nil {
		if cliMissing(err) {
			return nil, nil
		}
		return nil, cmdError("gh pr list", err)
	}

	var prs []ghPR
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, cmdError("gh pr list", err)
	}

	statuses := make([]model.PRStatus, 0, len(prs))
	for i := range prs {
		statuses = append(statuses, ghStatus(&prs[i]))
	}
	return statuses, nil
}

func (g *gitHub) FetchStatus(ctx context.Context, branch string) (model.PRStatus, error) {
	out, err := g.run(ctx, g.repoRoot,
		"gh", "pr", "list",
		"--head", branch,
		"--state", "open",
		"--json", ghFields,
	)
	if err != nil {
		if cliMissing(err) {
			return noPR(branch), nil
		}
		return model.PRStatus{}, cmdError("gh pr list", err)
	}

	var prs []ghPR
	if err := json.Unmarshal(out, &prs); err != nil {
		return model.PRStatus{}, cmdError("gh pr list", err)
	}
	if len(prs) == 0 {
		return noPR(branch), nil
	}
	return ghStatus(&prs[0]), nil
}

func (g *gitHub) CreatePR(ctx context.Context, opts CreateOpts) (string, error) {
	existing, err := g.FetchStatus(ctx, opts.HeadBranch)
	if err != nil {
		return "", err
	}
	if existing.HasPR() {
		return "", &PRExistsError{Branch: opts.HeadBranch, URL: existing.URL}
	}

	args := []string{
		"pr", "create",
		"--title", opts.Title,
		"--body", opts.Body,
		"--head", opts.HeadBranch,
		"--base", opts.BaseBranch,
	}
	if opts.Draft {
		args = append(args, "--draft")
	}

	out, err := g.run(ctx, g.repoRoot, "gh", args...)
	if err != nil {
		return "", cmdError("gh pr create", err)
	}
	// gh prints the new PR's URL on the last line of stdout.
	lines := strings.Fields(strings.TrimSpace(string(out)))
	if len(lines) > 0 {
		return lines[len(lines)-1], nil
	}
	return "", nil
}

func ghStatus(pr *ghPR) model.PRStatus {
	return model.PRStatus{
		Branch:    pr.HeadRefName,
		Review:    rollupReviews(pr.Reviews, pr.IsDraft),
		CI:        rollupChecks(pr.StatusCheckRollup),
		URL:       pr.URL,
		FetchedAt: time.Now(),
	}
}

// rollupReviews reduces a PR's review history to one state. Only the
// latest review per reviewer counts; a standing change request wins
// over any approval, and one approval is enough otherwise.
func rollupReviews(reviews []ghReview, draft bool) model.ReviewState {
	sorted := make([]ghReview, len(reviews))
	copy(sorted, reviews)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SubmittedAt.Before(sorted[j].SubmittedAt)
	})

	latest := make(map[string]string)
	for _, r := range sorted {
		switch r.State {
		case "APPROVED", "CHANGES_REQUESTED":
			latest[r.Author.Login] = r.State
		case "DISMISSED":
			delete(latest, r.Author.Login)
		}
	}

	approved := false
	for _, state := range latest {
		if state == "CHANGES_REQUESTED" {
			return model.ReviewChangesRequested
		}
		if state == "APPROVED" {
			approved = true
		}
	}
	if approved && !draft {
		return model.ReviewApproved
	}
	return model.ReviewPending
}

// rollupChecks reduces the check list to one CI state: any failure
// fails the branch, otherwise any unfinished check means running.
func rollupChecks(checks []ghCheck) model.CIState {
	if len(checks) == 0 {
		return model.CIUnknown
	}
	running := false
	for _, c := range checks {
		switch {
		case c.Conclusion == "FAILURE" || c.Conclusion == "ERROR" || c.State == "FAILURE" || c.State == "ERROR":
			return model.CIFailing
		case c.Status == "IN_PROGRESS" || c.Status == "QUEUED" || c.State == "PENDING":
			running = true
		}
	}
	if running {
		return model.CIRunning
	}
	return model.CIPassing
}
