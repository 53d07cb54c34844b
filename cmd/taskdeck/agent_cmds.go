package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskdeck/internal/agent"
	"taskdeck/internal/tracker"
)

var implementCmd = &cobra.Command{
	Use:   "implement [key]",
	Short: "Work on the task with the configured coding agent",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd, args, func(a *app, taskContext string) (string, error) {
			clean, err := a.git.IsClean(cmd.Context())
			if err != nil {
				return "", err
			}
			if !clean {
				return "", fmt.Errorf("uncommitted changes; commit or stash before starting the agent")
			}
			return agent.ImplementPrompt(taskContext), nil
		})
	},
}

var reviewCmd = &cobra.Command{
	Use:   "review [key]",
	Short: "Review all work on the current branch with the agent",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd, args, func(a *app, taskContext string) (string, error) {
			ctx := cmd.Context()
			clean, err := a.git.IsClean(ctx)
			if err != nil {
				return "", err
			}
			if !clean {
				return "", fmt.Errorf("uncommitted changes; commit or stash before reviewing")
			}

			base := a.git.DefaultBranch(ctx, a.cfg.DefaultBranch)
			commits, err := a.git.LogSince(ctx, base)
			if err != nil {
				return "", err
			}
			if commits == "" {
				return "", fmt.Errorf("no commits on this branch to review")
			}
			diff, err := a.git.DiffSince(ctx, base)
			if err != nil {
				return "", err
			}
			return agent.ReviewPrompt(taskContext, commits, diff, base), nil
		})
	},
}

var addressCmd = &cobra.Command{
	Use:   "address [key]",
	Short: "Address unresolved PR review comments with the agent",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd, args, func(a *app, taskContext string) (string, error) {
			return agent.AddressPrompt(taskContext), nil
		})
	},
}

// runAgent fetches the task context, builds the prompt and hands the
// terminal to the agent.
func runAgent(cmd *cobra.Command, args []string, build func(a *app, taskContext string) (string, error)) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	if a.cfg.AgentCommand == "" {
		return fmt.Errorf("no agent configured: set agent-command in .taskdeck.yaml")
	}
	ctx := cmd.Context()

	task, err := a.currentTask(ctx, keyArg(args))
	if err != nil {
		return err
	}

	comments, err := a.trk.Comments(ctx, task.Key)
	if err != nil && !tracker.IsNotFound(err) {
		return err
	}

	prompt, err := build(a, agent.TaskContext(task, comments))
	if err != nil {
		return err
	}
	return a.agent.Run(ctx, prompt)
}
