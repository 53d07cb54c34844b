package forge

import (
	"context"
	"encoding/json"
	"time"

	"taskdeck/internal/model"
)

type gitLab struct {
	repoRoot string
	run      Runner
}

// NewGitLab returns a Forge backed by the glab CLI.
func NewGitLab(repoRoot string) Forge {
	return &gitLab{repoRoot: repoRoot, run: defaultRunner}
}

func (g *gitLab) Kind() string { return "gitlab" }

// glabMR mirrors the fields we care about from glab's JSON output.
type glabMR struct {
	IID          int    `json:"iid"`
	Title        string `json:"title"`
	State        string `json:"state"` // "opened", "merged", "closed"
	WebURL       string `json:"web_url"`
	Draft        bool   `json:"draft"`
	SourceBranch string `json:"source_branch"`
	Pipeline     *struct {
		Status string `json:"status"` // "success", "failed", "running", "pending"
	} `json:"pipeline"`
	BlockingDiscussionsResolved *bool `json:"blocking_discussions_resolved"`
	Upvotes                     int   `json:"upvotes"`
}

func (g *gitLab) ListStatuses(ctx context.Context) ([]model.PRStatus, error) {
	out, err := g.run(ctx, g.repoRoot, "glab", "mr", "list", "-F", "json")
	if err != nil {
		if cliMissing(err) {
			return nil, nil
		}
		return nil, cmdError("glab mr list", err)
	}

	var mrs []glabMR
	if err := json.Unmarshal(out, &mrs); err != nil {
		return nil, cmdError("glab mr list", err)
	}

	statuses := make([]model.PRStatus, 0, len(mrs))
	for i := range mrs {
		if mrs[i].State != "opened" {
			continue
		}
		statuses = append(statuses, glabStatus(&mrs[i]))
	}
	return statuses, nil
}

func (g *gitLab) FetchStatus(ctx context.Context, branch string) (model.PRStatus, error) {
	out, err := g.run(ctx, g.repoRoot,
		"glab", "mr", "list",
		"--source-branch", branch,
		"-F", "json",
	)
	if err != nil {
		if cliMissing(err) {
			return noPR(branch), nil
		}
		return model.PRStatus{}, cmdError("glab mr list", err)
	}

	var mrs []glabMR
	if err := json.Unmarshal(out, &mrs); err != nil {
		return model.PRStatus{}, cmdError("glab mr list", err)
	}
	for i := range mrs {
		if mrs[i].State == "opened" {
			return glabStatus(&mrs[i]), nil
		}
	}
	return noPR(branch), nil
}

func (g *gitLab) CreatePR(ctx context.Context, opts CreateOpts) (string, error) {
	existing, err := g.FetchStatus(ctx, opts.HeadBranch)
	if err != nil {
		return "", err
	}
	if existing.HasPR() {
		return "", &PRExistsError{Branch: opts.HeadBranch, URL: existing.URL}
	}

	args := []string{
		"mr", "create",
		"--title", opts.Title,
		"--description", opts.Body,
		"--source-branch", opts.HeadBranch,
		"--target-branch", opts.BaseBranch,
		"--yes", // non-interactive
	}
	if opts.Draft {
		args = append(args, "--draft")
	}

	if _, err := g.run(ctx, g.repoRoot, "glab", args...); err != nil {
		return "", cmdError("glab mr create", err)
	}

	// glab mr create does not emit structured output; re-fetch for the URL.
	created, err := g.FetchStatus(ctx, opts.HeadBranch)
	if err != nil {
		return "", nil
	}
	return created.URL, nil
}

func glabStatus(mr *glabMR) model.PRStatus {
	st := model.PRStatus{
		Branch:    mr.SourceBranch,
		Review:    model.ReviewPending,
		CI:        model.CIUnknown,
		URL:       mr.WebURL,
		FetchedAt: time.Now(),
	}
	// GitLab has no per-reviewer decision in list output; unresolved
	// blocking discussions stand in for a change request, approvals
	// show up as upvotes.
	if mr.BlockingDiscussionsResolved != nil && !*mr.BlockingDiscussionsResolved {
		st.Review = model.ReviewChangesRequested
	} else if mr.Upvotes > 0 && !mr.Draft {
		st.Review = model.ReviewApproved
	}
	if mr.Pipeline != nil {
		switch mr.Pipeline.Status {
		case "success":
			st.CI = model.CIPassing
		case "failed":
			st.CI = model.CIFailing
		case "running", "pending", "created":
			st.CI = model.CIRunning
		}
	}
	return st
}
