package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"taskpilot/cli/internal/global"
	"taskpilot/cli/internal/logging"
	"taskpilot/cli/internal/manager"
	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/projectdir"
	"taskpilot/cli/internal/resolve"
	"taskpilot/cli/internal/router"
	"taskpilot/cli/internal/taskcache"
	"taskpilot/cli/internal/taskstore"
	"taskpilot/cli/internal/telegram"
)

type trivialAPI struct {
	mu     sync.Mutex
	tasks  map[string]taskstore.Task
	nextID int
}

func (a *trivialAPI) ListProjects(ctx context.Context) ([]taskstore.Project, error) {
	return []taskstore.Project{{ID: "p1", Name: "Work"}}, nil
}

func (a *trivialAPI) ListTasks(ctx context.Context, projectID string) ([]taskstore.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []taskstore.Task
	for _, t := range a.tasks {
		if t.ProjectID == projectID && t.Status == taskstore.StatusIncomplete {
			out = append(out, t)
		}
	}
	return out, nil
}

func (a *trivialAPI) GetTask(ctx context.Context, projectID, taskID string) (taskstore.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.tasks[taskID]; ok {
		return t, nil
	}
	return taskstore.Task{}, &taskstore.APIError{Status: 404, Body: "not found"}
}

func (a *trivialAPI) CreateTask(ctx context.Context, payload map[string]any) (taskstore.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	t := taskstore.Task{ID: fmt.Sprintf("63f1a40%d0000000000000000", a.nextID), ProjectID: "p1"}
	if s, ok := payload["title"].(string); ok {
		t.Title = s
	}
	a.tasks[t.ID] = t
	return t, nil
}

func (a *trivialAPI) UpdateTaskRaw(ctx context.Context, taskID string, payload map[string]any) (taskstore.Task, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tasks[taskID]
	if !ok {
		return taskstore.Task{}, &taskstore.APIError{Status: 404, Body: "not found"}
	}
	if s, ok := payload["dueDate"].(string); ok {
		t.DueDate = s
	}
	a.tasks[taskID] = t
	return t, nil
}

func (a *trivialAPI) CompleteTask(ctx context.Context, projectID, taskID string) error { return nil }
func (a *trivialAPI) DeleteTask(ctx context.Context, projectID, taskID string) error   { return nil }
func (a *trivialAPI) CreateProject(ctx context.Context, name string) (taskstore.Project, error) {
	return taskstore.Project{ID: "pX", Name: name}, nil
}
func (a *trivialAPI) DeleteProject(ctx context.Context, projectID string) error { return nil }

type scriptedParser struct {
	cmds []model.Command
	err  error
	last string
}

func (p *scriptedParser) Parse(ctx context.Context, text string) ([]model.Command, error) {
	p.last = text
	if p.err != nil {
		return nil, p.err
	}
	return p.cmds, nil
}

type memHistory struct {
	mu      sync.Mutex
	entries []model.Result
}

func (h *memHistory) Record(chatID int64, source, userText string, res model.Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, res)
	return nil
}

func newBot(t *testing.T, p CommandParser) (*Bot, *trivialAPI, *memHistory) {
	t.Helper()
	api := &trivialAPI{tasks: map[string]taskstore.Task{}}
	cache := taskcache.NewStore(filepath.Join(t.TempDir(), "tasks.json"), logging.NewNop())
	dir := projectdir.NewDirectory(api, time.Hour, logging.NewNop())
	deps := manager.Deps{
		API:           api,
		Cache:         cache,
		Dir:           dir,
		Resolver:      resolve.NewResolver(cache, dir, api, logging.NewNop()),
		Settings:      global.GlobalConfig{MergeUpdates: true},
		Logger:        logging.NewNop(),
		TZOffsetHours: 3,
		Now:           func() time.Time { return time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC) },
	}
	history := &memHistory{}
	b := New(Options{
		Parser:        p,
		Router:        router.New(deps, nil),
		Batch:         manager.NewBatchProcessor(deps, manager.NewTaskManager(deps)),
		History:       history,
		AllowedIDs:    []int64{42},
		TZOffsetHours: 3,
		Logger:        logging.NewNop(),
		Now:           deps.Now,
	})
	return b, api, history
}

func TestHandleText_ParsesRoutesRecords(t *testing.T) {
	parser := &scriptedParser{cmds: []model.Command{{Action: model.ActionCreateTask, Title: "Buy milk", ProjectName: "Work"}}}
	b, api, history := newBot(t, parser)

	reply := b.HandleText(context.Background(), 42, "telegram", "buy milk")
	if !strings.Contains(reply, "Buy milk") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	if len(api.tasks) != 1 {
		t.Fatalf("task not created, %d tasks", len(api.tasks))
	}
	if len(history.entries) != 1 || !history.entries[0].OK {
		t.Fatalf("history not recorded: %+v", history.entries)
	}
}

func TestHandleText_EmptyAndOversized(t *testing.T) {
	b, _, _ := newBot(t, &scriptedParser{})
	if reply := b.HandleText(context.Background(), 42, "telegram", "   "); !strings.Contains(reply, "empty or too long") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	if reply := b.HandleText(context.Background(), 42, "telegram", strings.Repeat("a", MaxCommandLen+1)); !strings.Contains(reply, "empty or too long") {
		t.Fatalf("unexpected reply: %s", reply)
	}
}

func TestHandleText_ParseErrorBecomesReply(t *testing.T) {
	parser := &scriptedParser{err: fmt.Errorf("no JSON object in reply")}
	b, _, history := newBot(t, parser)

	reply := b.HandleText(context.Background(), 42, "telegram", "gibberish")
	if !strings.Contains(reply, "Could not understand") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	if len(history.entries) != 1 || history.entries[0].Err == "" {
		t.Fatalf("failed parse must be recorded: %+v", history.entries)
	}
}

type panickyParser struct{}

func (panickyParser) Parse(ctx context.Context, text string) ([]model.Command, error) {
	panic("boom")
}

func TestHandleText_RecoversFromPanic(t *testing.T) {
	b, _, _ := newBot(t, panickyParser{})
	reply := b.HandleText(context.Background(), 42, "telegram", "explode")
	if !strings.Contains(reply, "Something went wrong") {
		t.Fatalf("panic not converted to reply: %s", reply)
	}
}

func TestOverdueShortcut_BypassesParser(t *testing.T) {
	parser := &scriptedParser{err: fmt.Errorf("parser must not be called")}
	b, api, _ := newBot(t, parser)
	api.tasks["63f1a4010000000000000001"] = taskstore.Task{
		ID: "63f1a4010000000000000001", ProjectID: "p1", Title: "Late",
		DueDate: "2026-03-01T09:00:00+0000",
	}

	reply := b.HandleText(context.Background(), 42, "telegram", "перенеси просроченные задачи на завтра")
	if strings.Contains(reply, "parser must not be called") {
		t.Fatalf("shortcut should bypass the parser: %s", reply)
	}
	if !strings.Contains(reply, "1 of 1") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	// Tomorrow at local midnight (UTC+3) in wire form.
	if got := api.tasks["63f1a4010000000000000001"].DueDate; got != "2026-03-05T21:00:00+0000" {
		t.Fatalf("task not rescheduled to tomorrow: %s", got)
	}
}

func TestAllowed(t *testing.T) {
	b, _, _ := newBot(t, &scriptedParser{})
	if !b.Allowed(42) || b.Allowed(7) {
		t.Fatal("allow list not enforced")
	}
	open := New(Options{Logger: logging.NewNop()})
	if !open.Allowed(7) {
		t.Fatal("empty allow list should admit everyone")
	}
}

type scriptedChat struct {
	mu      sync.Mutex
	updates [][]telegram.Update
	sent    []string
	cancel  context.CancelFunc
}

func (c *scriptedChat) GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]telegram.Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.updates) == 0 {
		c.cancel()
		return nil, ctx.Err()
	}
	batch := c.updates[0]
	c.updates = c.updates[1:]
	return batch, nil
}

func (c *scriptedChat) SendMessage(ctx context.Context, chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func (c *scriptedChat) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	return []byte("audio"), nil
}

func TestRun_DispatchesAndFiltersSenders(t *testing.T) {
	parser := &scriptedParser{cmds: []model.Command{{Action: model.ActionCreateTask, Title: "From chat"}}}
	b, _, _ := newBot(t, parser)

	ctx, cancel := context.WithCancel(context.Background())
	chat := &scriptedChat{
		cancel: cancel,
		updates: [][]telegram.Update{{
			{UpdateID: 1, Message: &telegram.Message{From: &telegram.User{ID: 42}, Chat: telegram.Chat{ID: 42}, Text: "create"}},
			{UpdateID: 2, Message: &telegram.Message{From: &telegram.User{ID: 666}, Chat: telegram.Chat{ID: 666}, Text: "create"}},
		}},
	}
	b.opts.Chat = chat

	if err := b.Run(ctx); err == nil {
		t.Fatal("expected context cancellation to end the loop")
	}
	if len(chat.sent) != 1 {
		t.Fatalf("only the allowed sender should get a reply, sent=%v", chat.sent)
	}
}
