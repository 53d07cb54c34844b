package main

import (
	"context"
	"fmt"
	"time"

	"taskdeck/internal/action"
	"taskdeck/internal/agent"
	"taskdeck/internal/cache"
	"taskdeck/internal/config"
	"taskdeck/internal/forge"
	"taskdeck/internal/gitx"
	"taskdeck/internal/model"
	"taskdeck/internal/reconcile"
	"taskdeck/internal/resolver"
	"taskdeck/internal/tracker"
	"taskdeck/internal/tui"
)

// app holds the wired clients shared by every command. Everything is
// built once from the repo root and the loaded config.
type app struct {
	cfg     *config.Config
	git     *gitx.Git
	trk     tracker.Tracker
	fge     forge.Forge
	store   *cache.Store
	res     *resolver.Resolver
	actions *action.Executor
	agent   *agent.Session
}

func newApp(ctx context.Context) (*app, error) {
	git, err := gitx.Open(ctx, ".")
	if err != nil {
		return nil, fmt.Errorf("not in a git repository: %w", err)
	}

	cfg, err := config.Load(git.Root())
	if err != nil {
		return nil, err
	}

	trk, err := tracker.New(cfg)
	if err != nil {
		return nil, err
	}

	res, err := resolver.New(cfg.Project, cfg.KeyPattern)
	if err != nil {
		return nil, err
	}

	fge := forge.Detect(git.Root())
	if fge == nil {
		fge = forge.NewGitHub(git.Root())
	}

	store := cache.NewStore(git.Root(), time.Duration(cfg.CacheTTLSeconds)*time.Second)

	a := &app{
		cfg:   cfg,
		git:   git,
		trk:   trk,
		fge:   fge,
		store: store,
		res:   res,
		agent: agent.NewSession(cfg.AgentCommand, git.Root()),
	}
	a.actions = action.NewExecutor(git, fge, trk, store, res, cfg)
	return a, nil
}

func (a *app) deps() tui.Deps {
	return tui.Deps{
		Cfg:     a.cfg,
		Git:     a.git,
		Forge:   a.fge,
		Tracker: a.trk,
		Store:   a.store,
		Engine:  reconcile.New(a.res),
		Actions: a.actions,
		Agent:   a.agent,
	}
}

// currentTask resolves the task for the current branch, or for an
// explicit key argument, and fetches it through the cache.
func (a *app) currentTask(ctx context.Context, explicitKey string) (model.TaskRecord, error) {
	branch, err := a.git.CurrentBranch(ctx)
	if err != nil {
		return model.TaskRecord{}, err
	}

	key, err := a.res.Resolve(branch, explicitKey)
	if err != nil {
		return model.TaskRecord{}, err
	}

	task, _, err := cache.GetOrFetch(ctx, a.store, "task-"+key.String(),
		func(ctx context.Context) (model.TaskRecord, error) {
			return a.trk.FetchTask(ctx, key)
		})
	return task, err
}

// keyArg returns the optional positional key argument.
func keyArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
