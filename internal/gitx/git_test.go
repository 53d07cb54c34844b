package gitx

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptRunner answers git invocations from a lookup on the subcommand.
type scriptRunner struct {
	calls     [][]string
	responses map[string]struct {
		out string
		err error
	}
}

func newScriptRunner() *scriptRunner {
	return &scriptRunner{responses: map[string]struct {
		out string
		err error
	}{}}
}

func (s *scriptRunner) on(subcommand, out string, err error) {
	s.responses[subcommand] = struct {
		out string
		err error
	}{out, err}
}

func (s *scriptRunner) run(_ context.Context, _ string, args ...string) ([]byte, error) {
	s.calls = append(s.calls, args)
	if r, ok := s.responses[args[0]]; ok {
		return []byte(r.out), r.err
	}
	return nil, nil
}

func (s *scriptRunner) called(args ...string) bool {
	for _, call := range s.calls {
		if strings.Join(call, " ") == strings.Join(args, " ") {
			return true
		}
	}
	return false
}

func testGit(s *scriptRunner) *Git {
	return &Git{root: "/repo", run: s.run}
}

func TestCurrentBranch(t *testing.T) {
	s := newScriptRunner()
	s.on("rev-parse", "feature/proj-1-x\n", nil)

	branch, err := testGit(s).CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "feature/proj-1-x", branch)
}

func TestLocalBranches(t *testing.T) {
	s := newScriptRunner()
	s.on("for-each-ref", "develop\nfeature/proj-1-x\nfeature/proj-2-y\n", nil)

	branches, err := testGit(s).LocalBranches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"develop", "feature/proj-1-x", "feature/proj-2-y"}, branches)
}

func TestCheckoutExistingBranch(t *testing.T) {
	s := newScriptRunner()
	// rev-parse --verify succeeds, so the branch exists.
	err := testGit(s).CheckoutOrCreate(context.Background(), "feature/proj-1-x", "develop")
	require.NoError(t, err)

	assert.True(t, s.called("checkout", "feature/proj-1-x"))
	assert.False(t, s.called("fetch", "origin", "develop"), "existing branches must not refetch the base")
}

func TestCheckoutCreatesFromUpdatedBase(t *testing.T) {
	s := newScriptRunner()
	s.on("rev-parse", "", assert.AnError) // branch does not exist

	err := testGit(s).CheckoutOrCreate(context.Background(), "feature/proj-2-y", "develop")
	require.NoError(t, err)

	assert.True(t, s.called("fetch", "origin", "develop"))
	assert.True(t, s.called("checkout", "-b", "feature/proj-2-y", "origin/develop"))
}

func TestIsClean(t *testing.T) {
	s := newScriptRunner()
	s.on("status", " M internal/gitx/git.go\n", nil)
	clean, err := testGit(s).IsClean(context.Background())
	require.NoError(t, err)
	assert.False(t, clean)

	s.on("status", "\n", nil)
	clean, err = testGit(s).IsClean(context.Background())
	require.NoError(t, err)
	assert.True(t, clean)
}

func TestDefaultBranch(t *testing.T) {
	s := newScriptRunner()
	s.on("symbolic-ref", "origin/main\n", nil)
	assert.Equal(t, "main", testGit(s).DefaultBranch(context.Background(), "develop"))

	s.on("symbolic-ref", "", assert.AnError)
	assert.Equal(t, "develop", testGit(s).DefaultBranch(context.Background(), "develop"))
}
