package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"taskpilot/cli/internal/bot"
	"taskpilot/cli/internal/command"
	"taskpilot/cli/internal/config"
	"taskpilot/cli/internal/db"
	"taskpilot/cli/internal/global"
	"taskpilot/cli/internal/historydb"
	"taskpilot/cli/internal/lifecycle"
	"taskpilot/cli/internal/logging"
	"taskpilot/cli/internal/manager"
	"taskpilot/cli/internal/parser"
	"taskpilot/cli/internal/projectdir"
	"taskpilot/cli/internal/resolve"
	"taskpilot/cli/internal/router"
	"taskpilot/cli/internal/taskcache"
	"taskpilot/cli/internal/taskstore"
	"taskpilot/cli/internal/telegram"
	"taskpilot/cli/internal/voice"
	"taskpilot/cli/internal/webapi"
)

var version = "dev"
var buildTime = "unknown"

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		LoadConfig: config.LoadConfig,
		RunServe: func(ctx context.Context, cfg config.Config) error {
			return runServe(ctx, cfg, true, true)
		},
		RunBot: func(ctx context.Context, cfg config.Config) error {
			return runServe(ctx, cfg, true, false)
		},
		RunWeb: func(ctx context.Context, cfg config.Config) error {
			return runServe(ctx, cfg, false, true)
		},
		RunOnce:      runOnce,
		RunMigrateUp: runMigrateUp,
	})

	if err := app.RunContext(rootCtx, os.Args); err != nil {
		logging.NewLogger(logging.Options{Level: "error", Writer: os.Stderr, Component: "taskpilot"}).Error("taskpilot failed", "err", err)
		os.Exit(1)
	}
}

// pipeline holds everything the transports share.
type pipeline struct {
	bot     *bot.Bot
	lister  *manager.Lister
	dir     *projectdir.Directory
	history *historydb.Store
	chat    *telegram.Client
}

func buildPipeline(cfg config.Config) (*pipeline, error) {
	lg := logging.NewLogger(logging.Options{Level: cfg.ListenLogLevel, Writer: os.Stderr, Component: "taskpilot"})

	configDir, err := global.DefaultConfigDir()
	if err != nil {
		return nil, err
	}
	settings, err := global.NewConfigStore(configDir).LoadOrInit()
	if err != nil {
		return nil, err
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(configDir, "taskpilot.db")
	}
	gdb, err := db.OpenSQLiteWithMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	history, err := historydb.NewStore(gdb)
	if err != nil {
		return nil, err
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = configDir
	}
	cache := taskcache.NewStore(filepath.Join(cacheDir, "tasks_cache.json"), lg.With("module", "taskcache"))

	api := taskstore.NewClient(taskstore.ClientOptions{
		BaseURL: cfg.TickTickBaseURL,
		Token:   cfg.TickTickToken,
		Timeout: cfg.HTTPTimeout,
		Logger:  lg.With("module", "taskstore"),
	})
	dir := projectdir.NewDirectory(api, cfg.ProjectCacheTTL, lg.With("module", "projectdir"))
	resolver := resolve.NewResolver(cache, dir, api, lg.With("module", "resolve"))

	deps := manager.Deps{
		API:           api,
		Cache:         cache,
		Dir:           dir,
		Resolver:      resolver,
		Settings:      settings,
		Logger:        lg.With("module", "manager"),
		TZOffsetHours: cfg.TimezoneOffsetHours,
	}

	cmdParser := parser.New(parser.Config{
		BaseURL: cfg.OpenAIEndpoint,
		Model:   cfg.OpenAIModel,
		APIKey:  cfg.OpenAIAPIKey,
	}, dir, nil, lg.With("module", "parser"))

	transcriber := voice.New(voice.Config{
		BaseURL: cfg.OpenAIEndpoint,
		APIKey:  cfg.OpenAIAPIKey,
	}, nil, lg.With("module", "voice"))

	var chat *telegram.Client
	if cfg.TelegramBotToken != "" {
		chat = telegram.NewClient(telegram.ClientOptions{
			Token:  cfg.TelegramBotToken,
			Logger: lg.With("module", "telegram"),
		})
	}

	tasks := manager.NewTaskManager(deps)
	opts := bot.Options{
		Parser:        cmdParser,
		Router:        router.New(deps, history),
		Batch:         manager.NewBatchProcessor(deps, tasks),
		Voice:         transcriber,
		History:       history,
		AllowedIDs:    cfg.TelegramAllowedIDs,
		TZOffsetHours: cfg.TimezoneOffsetHours,
		Logger:        lg.With("module", "bot"),
	}
	if chat != nil {
		opts.Chat = chat
	}
	b := bot.New(opts)

	return &pipeline{
		bot:     b,
		lister:  manager.NewLister(deps),
		dir:     dir,
		history: history,
		chat:    chat,
	}, nil
}

func runServe(ctx context.Context, cfg config.Config, withBot, withWeb bool) error {
	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	mgr := lifecycle.NewManager()

	if withBot {
		if p.chat == nil {
			return errors.New("TASKPILOT_TELEGRAM_BOT_TOKEN is required for bot mode")
		}
		mgr.AddRun("bot-poll-loop", func(runCtx context.Context) error {
			return p.bot.Run(runCtx)
		})
	}

	if withWeb {
		server := webapi.NewServer(webapi.Deps{
			Executor: p.bot,
			Tasks:    p.lister,
			Projects: p.dir,
			History:  p.history,
		})
		addr := fmt.Sprintf("%s:%d", cfg.LocalHost, cfg.LocalPort)
		fmt.Fprintf(os.Stdout, "taskpilot web server listening at http://%s (version=%s built=%s)\n", addr, version, buildTime)

		httpServer := &http.Server{Addr: addr, Handler: server.Handler()}
		mgr.AddRun("http-server", func(runCtx context.Context) error {
			go func() {
				<-runCtx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			}()
			err := httpServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	mgr.AddShutdown("close-history-store", func(context.Context) error {
		return p.history.Close()
	})
	return mgr.StartAndWait(ctx)
}

func runOnce(ctx context.Context, cfg config.Config, text string) error {
	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	reply := p.bot.HandleText(ctx, 0, "cli", text)
	fmt.Fprintln(os.Stdout, reply)
	return nil
}

func runMigrateUp(_ context.Context, cfg config.Config) error {
	dbPath := cfg.DBPath
	if dbPath == "" {
		configDir, err := global.DefaultConfigDir()
		if err != nil {
			return err
		}
		dbPath = filepath.Join(configDir, "taskpilot.db")
	}
	_, err := db.OpenSQLiteWithMigrations(dbPath)
	return err
}
