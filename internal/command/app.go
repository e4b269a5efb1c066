package command

import (
	"context"
	"errors"
	"strings"

	"github.com/urfave/cli/v2"

	"taskpilot/cli/internal/config"
)

type Deps struct {
	LoadConfig   func() config.Config
	RunServe     func(context.Context, config.Config) error
	RunBot       func(context.Context, config.Config) error
	RunWeb       func(context.Context, config.Config) error
	RunOnce      func(context.Context, config.Config, string) error
	RunMigrateUp func(context.Context, config.Config) error
}

func BuildApp(deps Deps) *cli.App {
	return &cli.App{
		Name:  "taskpilot",
		Usage: "natural-language task assistant",
		Action: func(ctx *cli.Context) error {
			cfg := loadConfig(deps)
			return runServeByConfig(ctx.Context, deps, cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the assistant",
				Action: func(ctx *cli.Context) error {
					cfg := loadConfig(deps)
					return runServeByConfig(ctx.Context, deps, cfg)
				},
				Subcommands: []*cli.Command{
					{
						Name:  "bot",
						Usage: "start the chat bot only",
						Action: func(ctx *cli.Context) error {
							cfg := loadConfig(deps)
							cfg.Mode = "bot"
							return runBot(ctx.Context, deps, cfg)
						},
					},
					{
						Name:  "web",
						Usage: "start the local web API only",
						Action: func(ctx *cli.Context) error {
							cfg := loadConfig(deps)
							cfg.Mode = "web"
							return runWeb(ctx.Context, deps, cfg)
						},
					},
				},
			},
			{
				Name:      "run",
				Usage:     "execute one command and exit",
				ArgsUsage: "<text>",
				Action: func(ctx *cli.Context) error {
					text := strings.TrimSpace(strings.Join(ctx.Args().Slice(), " "))
					if text == "" {
						return errors.New("command text is required")
					}
					cfg := loadConfig(deps)
					return runOnce(ctx.Context, deps, cfg, text)
				},
			},
			{
				Name:  "migrate",
				Usage: "run database migration",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply pending migrations",
						Action: func(ctx *cli.Context) error {
							cfg := loadConfig(deps)
							return runMigrateUp(ctx.Context, deps, cfg)
						},
					},
				},
			},
		},
	}
}

func loadConfig(deps Deps) config.Config {
	if deps.LoadConfig != nil {
		return deps.LoadConfig()
	}
	return config.LoadConfig()
}

func runServeByConfig(ctx context.Context, deps Deps, cfg config.Config) error {
	switch strings.TrimSpace(strings.ToLower(cfg.Mode)) {
	case "bot":
		return runBot(ctx, deps, cfg)
	case "web":
		return runWeb(ctx, deps, cfg)
	}
	return runServe(ctx, deps, cfg)
}

func runServe(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunServe == nil {
		return errors.New("serve runner is not configured")
	}
	return deps.RunServe(ctx, cfg)
}

func runBot(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunBot == nil {
		return errors.New("bot runner is not configured")
	}
	return deps.RunBot(ctx, cfg)
}

func runWeb(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunWeb == nil {
		return errors.New("web runner is not configured")
	}
	return deps.RunWeb(ctx, cfg)
}

func runOnce(ctx context.Context, deps Deps, cfg config.Config, text string) error {
	if deps.RunOnce == nil {
		return errors.New("one-shot runner is not configured")
	}
	return deps.RunOnce(ctx, cfg, text)
}

func runMigrateUp(ctx context.Context, deps Deps, cfg config.Config) error {
	if deps.RunMigrateUp == nil {
		return errors.New("migrate up runner is not configured")
	}
	return deps.RunMigrateUp(ctx, cfg)
}
