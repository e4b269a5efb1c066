package command

import (
	"context"
	"testing"

	"taskpilot/cli/internal/config"
)

func TestBuildApp_DefaultCommandIsServe(t *testing.T) {
	serveCalled := 0
	botCalled := 0
	migrateCalled := 0
	app := BuildApp(Deps{
		LoadConfig: func() config.Config {
			return config.Config{Mode: ""}
		},
		RunServe: func(context.Context, config.Config) error {
			serveCalled++
			return nil
		},
		RunBot: func(context.Context, config.Config) error {
			botCalled++
			return nil
		},
		RunMigrateUp: func(context.Context, config.Config) error {
			migrateCalled++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"taskpilot"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if serveCalled != 1 || botCalled != 0 || migrateCalled != 0 {
		t.Fatalf("unexpected call count serve=%d bot=%d migrate=%d", serveCalled, botCalled, migrateCalled)
	}
}

func TestBuildApp_ModeFromConfig(t *testing.T) {
	serveCalled := 0
	botCalled := 0
	app := BuildApp(Deps{
		LoadConfig: func() config.Config {
			return config.Config{Mode: "bot"}
		},
		RunServe: func(context.Context, config.Config) error {
			serveCalled++
			return nil
		},
		RunBot: func(context.Context, config.Config) error {
			botCalled++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"taskpilot", "serve"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if serveCalled != 0 || botCalled != 1 {
		t.Fatalf("unexpected call count serve=%d bot=%d", serveCalled, botCalled)
	}
}

func TestBuildApp_ServeWebSubcommand(t *testing.T) {
	webCalled := 0
	app := BuildApp(Deps{
		LoadConfig: func() config.Config { return config.Config{} },
		RunServe:   func(context.Context, config.Config) error { return nil },
		RunWeb: func(_ context.Context, cfg config.Config) error {
			if cfg.Mode != "web" {
				t.Errorf("mode not forced to web: %q", cfg.Mode)
			}
			webCalled++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"taskpilot", "serve", "web"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if webCalled != 1 {
		t.Fatalf("expected web runner called once, got %d", webCalled)
	}
}

func TestBuildApp_RunOnce(t *testing.T) {
	var got string
	app := BuildApp(Deps{
		LoadConfig: func() config.Config { return config.Config{} },
		RunOnce: func(_ context.Context, _ config.Config, text string) error {
			got = text
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"taskpilot", "run", "buy", "milk"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got != "buy milk" {
		t.Fatalf("args not joined: %q", got)
	}

	if err := app.RunContext(context.Background(), []string{"taskpilot", "run"}); err == nil {
		t.Fatal("empty text should fail")
	}
}

func TestBuildApp_MigrateUpCommand(t *testing.T) {
	migrateCalled := 0
	app := BuildApp(Deps{
		LoadConfig: func() config.Config { return config.Config{} },
		RunServe:   func(context.Context, config.Config) error { return nil },
		RunMigrateUp: func(context.Context, config.Config) error {
			migrateCalled++
			return nil
		},
	})
	if err := app.RunContext(context.Background(), []string{"taskpilot", "migrate", "up"}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if migrateCalled != 1 {
		t.Fatalf("expected migrate command called once, got %d", migrateCalled)
	}
}
