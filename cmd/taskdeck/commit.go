package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"taskdeck/internal/action"
)

var commitCmd = &cobra.Command{
	Use:   "commit [key]",
	Short: "Commit staged changes with the task's key and title",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		task, err := a.currentTask(cmd.Context(), keyArg(args))
		if err != nil {
			return err
		}

		message, err := a.actions.CommitStaged(cmd.Context(), task)
		if errors.Is(err, action.ErrNoStagedChanges) {
			return fmt.Errorf("nothing staged; stage your changes first (git add)")
		}
		if err != nil {
			return err
		}

		fmt.Printf("committed: %s\n", message)
		return nil
	},
}
