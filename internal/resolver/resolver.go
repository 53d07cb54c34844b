// Package resolver maps git branch names to tracker task keys. All the
// branch-name pattern assumptions live here, and nowhere else.
package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"taskdeck/internal/model"
)

// ErrNoKeyFound reports that no task key could be derived from a branch
// name. Expected on branches like "main" or "develop"; user-correctable,
// never a crash.
type ErrNoKeyFound struct {
	Branch string
}

func (e *ErrNoKeyFound) Error() string {
	return fmt.Sprintf("no task key found in branch %q", e.Branch)
}

// Resolver extracts task keys from branch names using a configured key
// grammar. Pure: no I/O, deterministic.
type Resolver struct {
	pattern *regexp.Regexp
}

// New builds a resolver for the given project prefix (e.g. "PROJ").
// A non-empty patternOverride replaces the default grammar entirely.
func New(project, patternOverride string) (*Resolver, error) {
	expr := patternOverride
	if expr == "" {
		expr = fmt.Sprintf(`(?i)\b(%s-\d+)\b`, regexp.QuoteMeta(project))
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile key pattern %q: %w", expr, err)
	}
	return &Resolver{pattern: re}, nil
}

// Resolve returns the task key for a branch. An explicit key, when given
// and well-formed, wins over anything embedded in the branch name.
func (r *Resolver) Resolve(branch, explicitKey string) (model.TaskKey, error) {
	if explicitKey != "" {
		if m := r.pattern.FindString(explicitKey); strings.EqualFold(m, explicitKey) && m != "" {
			return model.TaskKey(explicitKey).Canonical(), nil
		}
		return "", &ErrNoKeyFound{Branch: explicitKey}
	}

	if m := r.pattern.FindString(branch); m != "" {
		return model.TaskKey(m).Canonical(), nil
	}
	return "", &ErrNoKeyFound{Branch: branch}
}

// BranchFor renders the deterministic branch template
// <type>/<key>-<slug(title)> for a task. An empty title yields the bare
// <type>/<key> form the original tool used.
func BranchFor(branchType string, key model.TaskKey, title string) string {
	k := strings.ToLower(key.String())
	if s := Slug(title); s != "" {
		return fmt.Sprintf("%s/%s-%s", branchType, k, s)
	}
	return fmt.Sprintf("%s/%s", branchType, k)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug normalises a task title into a branch-safe slug.
func Slug(title string) string {
	s := strings.ToLower(title)
	s = nonSlug.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	const maxLen = 48
	if len(s) > maxLen {
		s = strings.Trim(s[:maxLen], "-")
	}
	return s
}
