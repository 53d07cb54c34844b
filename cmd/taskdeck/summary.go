package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"taskdeck/internal/model"
	"taskdeck/internal/tracker"
)

var (
	sumHeadStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	sumLabelStyle = lipgloss.NewStyle().Faint(true)
	sumDimStyle   = lipgloss.NewStyle().Faint(true)
)

var summaryCmd = &cobra.Command{
	Use:   "summary [key]",
	Short: "Show the task, its comments and PR status for the current branch",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		task, err := a.currentTask(ctx, keyArg(args))
		if err != nil {
			return err
		}

		row := func(lbl, val string) {
			fmt.Println(sumLabelStyle.Render(lbl) + val)
		}

		fmt.Println(sumHeadStyle.Render(task.Key.String()) + "  " + task.Title)
		fmt.Println()
		row("Status   ", string(task.Status))
		if !task.UpdatedAt.IsZero() {
			row("Updated  ", humanize.Time(task.UpdatedAt))
		}
		if task.URL != "" {
			row("URL      ", task.URL)
		}

		if task.Description != "" {
			fmt.Println()
			fmt.Println(strings.TrimSpace(task.Description))
		}

		comments, err := a.trk.Comments(ctx, task.Key)
		if err == nil && len(comments) > 0 {
			fmt.Println()
			fmt.Println(sumHeadStyle.Render("Comments"))
			for _, c := range comments {
				fmt.Printf("- %s: %s\n", c.Author, strings.TrimSpace(c.Body))
			}
		}
		if err != nil && !tracker.IsNotFound(err) {
			fmt.Println(sumDimStyle.Render("comments unavailable: " + err.Error()))
		}

		branch, err := a.git.CurrentBranch(ctx)
		if err != nil {
			return err
		}
		pr, err := a.fge.FetchStatus(ctx, branch)
		if err != nil {
			fmt.Println(sumDimStyle.Render("PR status unavailable: " + err.Error()))
			return nil
		}

		fmt.Println()
		if !pr.HasPR() {
			fmt.Println(sumDimStyle.Render("No PR for " + branch))
			return nil
		}
		fmt.Println(sumHeadStyle.Render("Pull request"))
		row("Review   ", reviewText(pr.Review))
		row("CI       ", string(pr.CI))
		row("URL      ", pr.URL)
		return nil
	},
}

func reviewText(r model.ReviewState) string {
	switch r {
	case model.ReviewApproved:
		return "approved"
	case model.ReviewChangesRequested:
		return "changes requested"
	case model.ReviewPending:
		return "awaiting review"
	default:
		return "none"
	}
}
