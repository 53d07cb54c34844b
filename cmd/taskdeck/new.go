package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var newDescription string

var newCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a tracker task assigned to you",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		title := strings.Join(args, " ")
		task, err := a.actions.NewTask(cmd.Context(), title, newDescription)
		if err != nil {
			return err
		}

		fmt.Printf("created %s: %s\n", task.Key, task.Title)
		if task.URL != "" {
			fmt.Println(task.URL)
		}
		return nil
	},
}

func init() {
	newCmd.Flags().StringVarP(&newDescription, "description", "d", "", "Task description")
}
