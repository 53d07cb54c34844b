// Package config loads taskdeck configuration once at startup into an
// immutable value. Components receive it by reference and never re-read
// the environment afterwards.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Backend selects which tracker implementation to use.
type Backend string

const (
	BackendJira   Backend = "jira"
	BackendLinear Backend = "linear"
)

// Config is the immutable runtime configuration.
type Config struct {
	Backend Backend

	// Tracker connection.
	BaseURL  string // Jira site URL; ignored for Linear
	Email    string // Jira basic-auth user
	APIToken string
	Project  string // Jira project key or Linear team key, e.g. "PROJ"
	TeamID   string // Linear team UUID

	// KeyPattern overrides the task-key regexp. Empty means the default
	// grammar anchored to Project.
	KeyPattern string

	// Git conventions.
	DefaultBranch string // base for new branches, e.g. "develop" or "main"
	BranchType    string // branch template prefix, e.g. "feature"

	// AgentCommand is the AI coding agent command line; the task prompt
	// is appended as the final argument. Empty disables agent commands.
	AgentCommand string

	// CacheTTLSeconds is the freshness window for cached records.
	CacheTTLSeconds int
}

const defaultCacheTTLSeconds = 86400 // one day, matching the browser's refresh habits

// Load reads .taskdeck.yaml from the repository root (if present) and the
// environment, and returns the resolved configuration.
func Load(repoRoot string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".taskdeck")
	v.SetConfigType("yaml")
	if repoRoot != "" {
		v.AddConfigPath(repoRoot)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("taskdeck")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	// The original tool configured Jira through bare JIRA_* variables;
	// honor those spellings too.
	_ = v.BindEnv("base-url", "TASKDECK_BASE_URL", "JIRA_URL")
	_ = v.BindEnv("email", "TASKDECK_EMAIL", "JIRA_EMAIL")
	_ = v.BindEnv("api-token", "TASKDECK_API_TOKEN", "JIRA_API_KEY", "LINEAR_API_KEY")
	_ = v.BindEnv("project", "TASKDECK_PROJECT", "JIRA_PROJECT_KEY")
	_ = v.BindEnv("team-id", "TASKDECK_TEAM_ID", "LINEAR_TEAM_ID")

	v.SetDefault("backend", string(BackendJira))
	v.SetDefault("default-branch", "develop")
	v.SetDefault("branch-type", "feature")
	v.SetDefault("cache-ttl-seconds", defaultCacheTTLSeconds)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars alone can configure us.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Backend:         Backend(strings.ToLower(v.GetString("backend"))),
		BaseURL:         strings.TrimSuffix(v.GetString("base-url"), "/"),
		Email:           v.GetString("email"),
		APIToken:        v.GetString("api-token"),
		Project:         strings.ToUpper(v.GetString("project")),
		TeamID:          v.GetString("team-id"),
		KeyPattern:      v.GetString("key-pattern"),
		DefaultBranch:   v.GetString("default-branch"),
		BranchType:      v.GetString("branch-type"),
		AgentCommand:    v.GetString("agent-command"),
		CacheTTLSeconds: v.GetInt("cache-ttl-seconds"),
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendJira:
		if c.BaseURL == "" {
			return fmt.Errorf("missing tracker URL: set base-url or JIRA_URL (e.g. https://yourcompany.atlassian.net)")
		}
		if c.Email == "" || c.APIToken == "" {
			return fmt.Errorf("missing Jira credentials: set email/api-token or JIRA_EMAIL and JIRA_API_KEY")
		}
	case BackendLinear:
		if c.APIToken == "" {
			return fmt.Errorf("missing Linear credentials: set api-token or LINEAR_API_KEY")
		}
		if c.TeamID == "" {
			return fmt.Errorf("missing Linear team: set team-id or LINEAR_TEAM_ID")
		}
	default:
		return fmt.Errorf("unknown tracker backend %q (want jira or linear)", c.Backend)
	}
	if c.Project == "" {
		return fmt.Errorf("missing project key: set project or JIRA_PROJECT_KEY (e.g. PROJ)")
	}
	return nil
}
