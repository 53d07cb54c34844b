package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var prDraft bool

var prCmd = &cobra.Command{
	Use:   "pr [key]",
	Short: "Push the task's branch and open a pull request",
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

		res, err := a.actions.CreatePR(cmd.Context(), task, "", prDraft)
		if err != nil {
			return err
		}

		if res.Existed {
			fmt.Printf("PR already open: %s\n", res.URL)
			return nil
		}
		fmt.Printf("opened: %s\n", res.URL)
		return nil
	},
}

func init() {
	prCmd.Flags().BoolVar(&prDraft, "draft", false, "Open the PR as a draft")
}
