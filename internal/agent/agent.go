// Package agent runs the configured coding agent as a subprocess with
// task-aware prompts. The agent command is opaque: anything that takes
// a prompt as its final argument works.
package agent

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"taskdeck/internal/model"
	"taskdeck/internal/tracker"
)

// Session launches agent runs for one repository.
type Session struct {
	command  string
	repoRoot string
}

func NewSession(command, repoRoot string) *Session {
	return &Session{command: command, repoRoot: repoRoot}
}

// Command builds the agent invocation with the prompt appended to the
// configured command line. The caller decides how to run it.
func (s *Session) Command(ctx context.Context, prompt string) (*exec.Cmd, error) {
	parts := strings.Fields(s.command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("no agent command configured")
	}
	cmd := exec.CommandContext(ctx, parts[0], append(parts[1:], prompt)...)
	cmd.Dir = s.repoRoot
	return cmd, nil
}

// Run executes the agent with the terminal attached so the user can
// steer it; the call blocks until the agent exits.
func (s *Session) Run(ctx context.Context, prompt string) error {
	cmd, err := s.Command(ctx, prompt)
	if err != nil {
		return err
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("agent exited: %w", err)
	}
	return nil
}

// TaskContext formats a task and its comments for inclusion in prompts.
func TaskContext(task model.TaskRecord, comments []tracker.Comment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Task:** %s\n**Summary:** %s\n\n", task.Key.Canonical(), task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "**Description:**\n%s\n\n", task.Description)
	}
	if len(comments) > 0 {
		b.WriteString("**Comments:**\n")
		for _, c := range comments {
			fmt.Fprintf(&b, "- %s: %s\n", c.Author, c.Body)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ImplementPrompt asks the agent to implement the task collaboratively,
// presenting a plan before changing anything.
func ImplementPrompt(taskContext string) string {
	return fmt.Sprintf(`Let's work together to implement the following task:

%s
**WORKING APPROACH:**
1. Study the task requirements carefully
2. Analyze the codebase to understand relevant patterns, conventions, and architecture
3. Before making any changes, present your analysis and proposed approach to me
4. Wait for my approval before proceeding
5. Make changes incrementally based on my feedback
6. Ask for clarification whenever requirements are unclear

**RULES:**
- Do not make code changes without consulting me first
- Match existing patterns, naming conventions, and code style
- Choose the simplest solution that solves the problem
- Focus strictly on the task's requirements, no speculative features
- Do not refactor unrelated code or touch files outside the task's scope

Start by analyzing the task and discussing the approach with me.`, taskContext)
}

// ReviewPrompt asks the agent to review all work on the branch,
// committing fixes only when it finds real problems.
func ReviewPrompt(taskContext, commits, diff, baseBranch string) string {
	if commits == "" {
		commits = "No commits yet on this branch"
	}
	if diff == "" {
		diff = "No changes yet"
	}
	return fmt.Sprintf(`Let's perform a thorough code review of all work done on this branch.

%s**BRANCH COMMITS:**
%s

**ALL CHANGES ON THIS BRANCH (compared to origin/%s):**
`+"```diff\n%s\n```"+`

**REVIEW PROCESS:**
1. Review the commits and the complete diff above
2. Check each modified file for bugs, missed edge cases, error handling,
   consistency with the surrounding code, and test coverage
3. Only make changes if there are actual issues; do not invent problems
4. If the code is good as-is, say so and do not commit anything
5. If you fix real issues, stage them and commit with a message starting
   with "review: " and a brief summary of what was fixed

Provide a concise summary of your review and any changes made.`, taskContext, commits, baseBranch, diff)
}

// AddressPrompt asks the agent to work through unresolved PR review
// comments.
func AddressPrompt(taskContext string) string {
	return fmt.Sprintf(`Let's systematically address feedback from the PR review.

%s**WORKFLOW:**
1. Use 'gh pr view --json title,number,url' to identify the current PR
2. Use 'gh api' to fetch the review comments with their resolved status
3. Filter for unresolved comments only
4. For each unresolved comment: understand the requested change, locate
   the relevant code, implement the fix, and verify nothing broke
5. Commit the fixes with a message describing what was addressed

Only change what the comments ask for; leave the rest of the branch alone.`, taskContext)
}
