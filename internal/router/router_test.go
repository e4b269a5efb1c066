package router

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
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
	"taskpilot/cli/internal/taskcache"
	"taskpilot/cli/internal/taskstore"
)

type memAPI struct {
	mu          sync.Mutex
	projects    []taskstore.Project
	tasks       map[string]taskstore.Task
	nextID      int
	updateCalls []map[string]any
}

func newMemAPI() *memAPI {
	return &memAPI{
		projects: []taskstore.Project{{ID: "p1", Name: "Work"}},
		tasks:    map[string]taskstore.Task{},
	}
}

func (m *memAPI) ListProjects(ctx context.Context) ([]taskstore.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]taskstore.Project, len(m.projects))
	copy(out, m.projects)
	return out, nil
}

func (m *memAPI) ListTasks(ctx context.Context, projectID string) ([]taskstore.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []taskstore.Task
	for _, t := range m.tasks {
		if t.ProjectID == projectID && t.Status == taskstore.StatusIncomplete {
			out = append(out, t)
		}
	}
	taskstore.SortNewestFirst(out)
	return out, nil
}

func (m *memAPI) GetTask(ctx context.Context, projectID, taskID string) (taskstore.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.ProjectID != projectID {
		return taskstore.Task{}, &taskstore.APIError{Status: 404, Body: "not found"}
	}
	return t, nil
}

func (m *memAPI) CreateTask(ctx context.Context, payload map[string]any) (taskstore.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := taskstore.Task{ID: fmt.Sprintf("63f1a40%d0000000000000000", m.nextID)}
	if s, ok := payload["title"].(string); ok {
		t.Title = s
	}
	if s, ok := payload["projectId"].(string); ok {
		t.ProjectID = s
	}
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memAPI) UpdateTaskRaw(ctx context.Context, taskID string, payload map[string]any) (taskstore.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[string]any, len(payload))
	for k, v := range payload {
		copied[k] = v
	}
	m.updateCalls = append(m.updateCalls, copied)

	t, ok := m.tasks[taskID]
	if !ok {
		return taskstore.Task{}, &taskstore.APIError{Status: 404, Body: "not found"}
	}
	if s, ok := payload["title"].(string); ok {
		t.Title = s
	}
	if s, ok := payload["content"].(string); ok {
		t.Content = s
	}
	if tags, ok := payload["tags"].([]string); ok {
		t.Tags = tags
	}
	m.tasks[taskID] = t
	return t, nil
}

func (m *memAPI) CompleteTask(ctx context.Context, projectID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return &taskstore.APIError{Status: 404, Body: "not found"}
	}
	t.Status = taskstore.StatusCompleted
	m.tasks[taskID] = t
	return nil
}

func (m *memAPI) DeleteTask(ctx context.Context, projectID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	return nil
}

func (m *memAPI) CreateProject(ctx context.Context, name string) (taskstore.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := taskstore.Project{ID: "pX", Name: name}
	m.projects = append(m.projects, p)
	return p, nil
}

func (m *memAPI) DeleteProject(ctx context.Context, projectID string) error {
	return nil
}

func newRouter(t *testing.T) (*Router, *memAPI) {
	t.Helper()
	api := newMemAPI()
	cache := taskcache.NewStore(filepath.Join(t.TempDir(), "tasks.json"), logging.NewNop())
	dir := projectdir.NewDirectory(api, time.Hour, logging.NewNop())
	deps := manager.Deps{
		API:      api,
		Cache:    cache,
		Dir:      dir,
		Resolver: resolve.NewResolver(cache, dir, api, logging.NewNop()),
		Settings: global.GlobalConfig{MergeUpdates: true},
		Logger:   logging.NewNop(),
	}
	return New(deps, nil), api
}

func TestExecute_CompositeContinuesPastFailures(t *testing.T) {
	r, api := newRouter(t)

	results := r.Execute(context.Background(), []model.Command{
		{Action: model.ActionCreateTask, Title: "First", ProjectName: "Work"},
		{Action: model.ActionCompleteTask, Title: "does not exist"},
		{Action: model.ActionCreateTask, Title: "Second", ProjectName: "Work"},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].OK || results[1].OK || !results[2].OK {
		t.Fatalf("unexpected outcomes: %+v", results)
	}
	if results[1].Err == "" {
		t.Fatal("failed action must carry its error")
	}
	if len(api.tasks) != 2 {
		t.Fatalf("both creates should land, got %d tasks", len(api.tasks))
	}
}

func TestExecute_MergesUpdateGroupIntoOneRemoteCall(t *testing.T) {
	r, api := newRouter(t)
	api.tasks["63f1a4010000000000000001"] = taskstore.Task{
		ID: "63f1a4010000000000000001", ProjectID: "p1", Title: "Ship release",
		Tags: []string{"home"}, Content: "note",
	}

	results := r.Execute(context.Background(), []model.Command{
		{Action: model.ActionUpdateTask, Title: "Ship release", Modifiers: []model.FieldModifier{
			{Field: "tags", Strategy: model.StrategyMerge, Value: []string{"urgent"}},
		}},
		{Action: model.ActionUpdateTask, Title: "Ship release", Modifiers: []model.FieldModifier{
			{Field: "notes", Strategy: model.StrategyAppend, Value: "ping"},
		}},
	})
	if len(results) != 1 || !results[0].OK {
		t.Fatalf("merged group should yield one result: %+v", results)
	}
	if len(api.updateCalls) != 1 {
		t.Fatalf("want exactly 1 remote update call, got %d", len(api.updateCalls))
	}
	call := api.updateCalls[0]
	tags, _ := call["tags"].([]string)
	if !reflect.DeepEqual(tags, []string{"home", "urgent"}) {
		t.Fatalf("tags not a union: %v", call["tags"])
	}
	if call["content"] != "note\n\nping" {
		t.Fatalf("notes not appended: %v", call["content"])
	}
}

func TestExecute_UpdateGroupSplitsPerResolvedTask(t *testing.T) {
	r, api := newRouter(t)
	api.tasks["63f1a4010000000000000001"] = taskstore.Task{ID: "63f1a4010000000000000001", ProjectID: "p1", Title: "Alpha"}
	api.tasks["63f1a4020000000000000002"] = taskstore.Task{ID: "63f1a4020000000000000002", ProjectID: "p1", Title: "Beta"}

	results := r.Execute(context.Background(), []model.Command{
		{Action: model.ActionUpdateTask, Title: "Alpha", Modifications: map[string]any{"title": "Alpha 2"}},
		{Action: model.ActionCreateTask, Title: "Gamma", ProjectName: "Work"},
		{Action: model.ActionUpdateTask, Title: "Beta", Modifications: map[string]any{"priority": 3}},
		{Action: model.ActionUpdateTask, Title: "Alpha 2", Modifiers: []model.FieldModifier{
			{Field: "notes", Strategy: model.StrategyAppend, Value: "ping"},
		}},
	})
	// Two distinct update targets plus the create: the update on "Alpha 2"
	// resolves to the same task as the rename and merges into its call.
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %+v", results)
	}
	if len(api.updateCalls) != 2 {
		t.Fatalf("want one merged call per task, got %d", len(api.updateCalls))
	}
	if got := api.tasks["63f1a4010000000000000001"]; got.Title != "Alpha 2" || got.Content != "ping" {
		t.Fatalf("merged update not applied: %+v", got)
	}
}

func TestExecute_UpdateGroupReportsUnresolvedTargets(t *testing.T) {
	r, api := newRouter(t)
	api.tasks["63f1a4010000000000000001"] = taskstore.Task{ID: "63f1a4010000000000000001", ProjectID: "p1", Title: "Alpha"}

	results := r.Execute(context.Background(), []model.Command{
		{Action: model.ActionUpdateTask, Title: "Alpha", Modifications: map[string]any{"title": "Alpha 2"}},
		{Action: model.ActionUpdateTask, Title: "no such task", Modifications: map[string]any{"title": "x"}},
	})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %+v", results)
	}
	var okCount, errCount int
	for _, res := range results {
		if res.OK {
			okCount++
		} else if res.Err != "" {
			errCount++
		}
	}
	if okCount != 1 || errCount != 1 {
		t.Fatalf("expected one success and one captured failure: %+v", results)
	}
}

func TestExecute_RejectsInvalidCommand(t *testing.T) {
	r, _ := newRouter(t)

	results := r.Execute(context.Background(), []model.Command{
		{Action: "fly_to_moon", Title: "x"},
	})
	if results[0].OK || results[0].Err == "" {
		t.Fatalf("invalid action should fail validation: %+v", results[0])
	}
}

func TestDispatch_ListFormatsTasks(t *testing.T) {
	r, api := newRouter(t)
	api.tasks["63f1a4010000000000000001"] = taskstore.Task{
		ID: "63f1a4010000000000000001", ProjectID: "p1", Title: "Ship release",
		Tags: []string{"urgent"}, DueDate: "2026-03-06T15:00:00+0000",
	}

	res, err := r.Dispatch(context.Background(), model.Command{Action: model.ActionListTasks, ProjectName: "Work"})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if !strings.Contains(res.Message, "1 open tasks") || !strings.Contains(res.Message, "Ship release") {
		t.Fatalf("unexpected listing: %s", res.Message)
	}
	if !strings.Contains(res.Message, "[urgent]") {
		t.Fatalf("tags missing from listing: %s", res.Message)
	}
}

func TestFormatResults(t *testing.T) {
	single := FormatResults([]model.Result{{Action: model.ActionCreateTask, OK: true, Message: "Created \"x\""}})
	if single != "Created \"x\"" {
		t.Fatalf("single result should be the bare message, got %q", single)
	}

	mixed := FormatResults([]model.Result{
		{Action: model.ActionCreateTask, OK: true, Message: "Created \"x\""},
		{Action: model.ActionDeleteTask, Err: "task not found"},
	})
	if !strings.Contains(mixed, "Done 1 of 2 actions") {
		t.Fatalf("missing count header: %q", mixed)
	}
	if !strings.Contains(mixed, "delete_task failed: task not found") {
		t.Fatalf("missing failure line: %q", mixed)
	}
	if !strings.Contains(mixed, "retry") {
		t.Fatalf("missing retry hint: %q", mixed)
	}
}
