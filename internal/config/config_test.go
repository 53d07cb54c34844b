package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromJiraEnv(t *testing.T) {
	t.Setenv("JIRA_URL", "https://acme.atlassian.net/")
	t.Setenv("JIRA_EMAIL", "dev@acme.com")
	t.Setenv("JIRA_API_KEY", "secret")
	t.Setenv("JIRA_PROJECT_KEY", "proj")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, BackendJira, cfg.Backend)
	assert.Equal(t, "https://acme.atlassian.net", cfg.BaseURL, "trailing slash must be stripped")
	assert.Equal(t, "PROJ", cfg.Project, "project key is upper-cased")
	assert.Equal(t, "develop", cfg.DefaultBranch)
	assert.Equal(t, "feature", cfg.BranchType)
	assert.Equal(t, defaultCacheTTLSeconds, cfg.CacheTTLSeconds)
}

func TestLoadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `backend: linear
api-token: lin_api_x
team-id: team-uuid
project: eng
default-branch: main
agent-command: "claude --dangerously-skip-permissions -p"
cache-ttl-seconds: 600
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".taskdeck.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, BackendLinear, cfg.Backend)
	assert.Equal(t, "ENG", cfg.Project)
	assert.Equal(t, "main", cfg.DefaultBranch)
	assert.Equal(t, 600, cfg.CacheTTLSeconds)
	assert.NotEmpty(t, cfg.AgentCommand)
}

func TestLoadJiraMissingCredentials(t *testing.T) {
	t.Setenv("JIRA_URL", "https://acme.atlassian.net")
	t.Setenv("JIRA_PROJECT_KEY", "PROJ")

	_, err := Load(t.TempDir())
	assert.ErrorContains(t, err, "JIRA_EMAIL")
}

func TestLoadLinearMissingTeam(t *testing.T) {
	dir := t.TempDir()
	yaml := "backend: linear\napi-token: x\nproject: ENG\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".taskdeck.yaml"), []byte(yaml), 0o644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "team-id")
}

func TestLoadUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".taskdeck.yaml"), []byte("backend: asana\n"), 0o644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "unknown tracker backend")
}
