package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"taskdeck/internal/tui"

	// Tracker backends register themselves.
	_ "taskdeck/internal/tracker/jira"
	_ "taskdeck/internal/tracker/linear"
)

var rootCmd = &cobra.Command{
	Use:   "taskdeck",
	Short: "taskdeck - tracker tasks, branches and PRs in one view",
	Long: `A terminal dashboard that joins your issue tracker, local git branches
and pull requests on the task key, with actions to branch, commit and
open PRs without leaving the keyboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		p := tea.NewProgram(tui.New(a.deps()), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run browser: %w", err)
		}
		return nil
	},
}

func main() {
	rootCmd.AddCommand(
		commitCmd,
		prCmd,
		summaryCmd,
		newCmd,
		implementCmd,
		reviewCmd,
		addressCmd,
	)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
