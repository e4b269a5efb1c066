package manager

import (
	"context"
	"fmt"
	"strings"

	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/modify"
	"taskpilot/cli/internal/taskcache"
	"taskpilot/cli/internal/taskstore"
)

// TaskManager executes the per-task lifecycle actions.
type TaskManager struct {
	deps Deps
}

func NewTaskManager(deps Deps) *TaskManager {
	deps.normalize()
	return &TaskManager{deps: deps}
}

func (m *TaskManager) Create(ctx context.Context, cmd model.Command) (model.Result, error) {
	res := model.Result{Action: cmd.Action}

	projectRef := cmd.ProjectName
	if projectRef == "" {
		projectRef = cmd.ProjectID
	}
	if projectRef == "" {
		projectRef = m.deps.Settings.DefaultProject
	}
	project, err := m.deps.Resolver.ResolveProject(ctx, projectRef)
	if err != nil {
		return res, err
	}

	payload := map[string]any{
		"title":     cmd.Title,
		"projectId": project.ID,
	}
	if cmd.DueDate != "" {
		payload["dueDate"] = cmd.DueDate
	}
	if cmd.Priority != 0 {
		payload["priority"] = cmd.Priority
	}
	if len(cmd.Tags) > 0 {
		payload["tags"] = cmd.Tags
	}
	if cmd.Note != "" {
		payload["content"] = cmd.Note
	}
	if err := m.deps.convertPayloadDates(payload); err != nil {
		return res, err
	}

	task, err := m.deps.API.CreateTask(ctx, payload)
	if err != nil {
		return res, err
	}
	if task.ProjectID == "" {
		task.ProjectID = project.ID
	}
	m.deps.Cache.Put(taskcache.FromTask(task))

	res.OK = true
	res.TaskID = task.ID
	res.ProjectID = task.ProjectID
	res.Message = fmt.Sprintf("Created %q in %s", task.Title, project.Name)
	return res, nil
}

func (m *TaskManager) Update(ctx context.Context, cmd model.Command) (model.Result, error) {
	res := model.Result{Action: cmd.Action}

	entry, warnings, err := m.deps.Resolver.ResolveTask(ctx, cmd)
	if err != nil {
		return res, err
	}
	res.Warnings = warnings

	projectID, err := m.deps.Resolver.ProjectIDForTask(ctx, entry.ID, cmd.ProjectID)
	if err != nil {
		return res, err
	}

	existing := m.remoteOrCached(ctx, projectID, entry)

	mods, modifiers := UpdateChanges(cmd)
	payload, err := modify.BuildPayload(existing, mods, modifiers)
	if err != nil {
		return res, err
	}
	if err := m.deps.convertPayloadDates(payload); err != nil {
		return res, err
	}

	updated, err := m.deps.API.UpdateTaskRaw(ctx, entry.ID, payload)
	if err != nil {
		return res, err
	}
	m.cacheAfterUpdate(entry, existing, updated, payload)

	res.OK = true
	res.TaskID = entry.ID
	res.ProjectID = projectID
	res.Message = fmt.Sprintf("Updated %q", pickTitle(updated, existing, entry))
	return res, nil
}

func (m *TaskManager) Delete(ctx context.Context, cmd model.Command) (model.Result, error) {
	res := model.Result{Action: cmd.Action}

	entry, warnings, err := m.deps.Resolver.ResolveTask(ctx, cmd)
	if err != nil {
		return res, err
	}
	res.Warnings = warnings

	if entry.Deleted() {
		res.OK = true
		res.TaskID = entry.ID
		res.Message = fmt.Sprintf("%q was already deleted", entry.Title)
		return res, nil
	}

	projectID, err := m.deps.Resolver.ProjectIDForTask(ctx, entry.ID, cmd.ProjectID)
	if err != nil {
		return res, err
	}
	if err := m.deps.API.DeleteTask(ctx, projectID, entry.ID); err != nil {
		return res, err
	}
	// The entry stays, marked deleted, so a repeated delete can answer
	// gracefully instead of "not found".
	m.deps.Cache.MarkStatus(entry.ID, taskcache.StatusDeleted)

	res.OK = true
	res.TaskID = entry.ID
	res.ProjectID = projectID
	res.Message = fmt.Sprintf("Deleted %q", entry.Title)
	return res, nil
}

func (m *TaskManager) Complete(ctx context.Context, cmd model.Command) (model.Result, error) {
	res := model.Result{Action: cmd.Action}

	entry, warnings, err := m.deps.Resolver.ResolveTask(ctx, cmd)
	if err != nil {
		return res, err
	}
	res.Warnings = warnings

	projectID, err := m.deps.Resolver.ProjectIDForTask(ctx, entry.ID, cmd.ProjectID)
	if err != nil {
		return res, err
	}
	if err := m.deps.API.CompleteTask(ctx, projectID, entry.ID); err != nil {
		return res, err
	}
	// Completed tasks disappear from remote listings, so the cache entry is
	// the only place their identity survives. Mark it, never drop it.
	m.deps.Cache.MarkStatus(entry.ID, taskcache.StatusCompleted)

	res.OK = true
	res.TaskID = entry.ID
	res.ProjectID = projectID
	res.Message = fmt.Sprintf("Completed %q", entry.Title)
	return res, nil
}

// Move relocates a task. The direct path is a plain update of projectId,
// verified after a short delay because the remote applies moves
// asynchronously. When verification fails the task is recreated in the
// destination and the original is deleted; the new task carries a
// back-reference to the old id and callers are told about the id change.
func (m *TaskManager) Move(ctx context.Context, cmd model.Command) (model.Result, error) {
	res := model.Result{Action: cmd.Action}

	entry, warnings, err := m.deps.Resolver.ResolveTask(ctx, cmd)
	if err != nil {
		return res, err
	}
	res.Warnings = warnings

	sourceID, err := m.deps.Resolver.ProjectIDForTask(ctx, entry.ID, cmd.ProjectID)
	if err != nil {
		return res, err
	}
	dest, err := m.deps.Resolver.ResolveProject(ctx, cmd.TargetProjectName)
	if err != nil {
		return res, err
	}
	if dest.ID == sourceID {
		res.OK = true
		res.TaskID = entry.ID
		res.ProjectID = dest.ID
		res.Message = fmt.Sprintf("%q is already in %s", entry.Title, dest.Name)
		return res, nil
	}

	full := m.remoteOrCached(ctx, sourceID, entry)

	_, updateErr := m.deps.API.UpdateTaskRaw(ctx, entry.ID, map[string]any{"projectId": dest.ID})
	if updateErr == nil && m.verifyMove(ctx, dest.ID, entry.ID) {
		moved := full
		moved.ProjectID = dest.ID
		m.deps.Cache.Put(taskcache.FromTask(moved))
		res.OK = true
		res.TaskID = entry.ID
		res.ProjectID = dest.ID
		res.Message = fmt.Sprintf("Moved %q to %s", entry.Title, dest.Name)
		return res, nil
	}
	if updateErr != nil {
		m.deps.Logger.Warn("direct move failed, recreating", "task", entry.ID, "err", updateErr)
	} else {
		m.deps.Logger.Warn("move did not verify, recreating", "task", entry.ID, "dest", dest.ID)
	}

	payload := map[string]any{
		"title":     full.Title,
		"projectId": dest.ID,
		"content":   appendBackReference(full.Content, entry.ID),
	}
	if full.DueDate != "" {
		payload["dueDate"] = full.DueDate
	}
	if full.StartDate != "" {
		payload["startDate"] = full.StartDate
	}
	if full.Priority != 0 {
		payload["priority"] = full.Priority
	}
	if len(full.Tags) > 0 {
		payload["tags"] = full.Tags
	}
	if len(full.Reminders) > 0 {
		payload["reminders"] = full.Reminders
	}
	if full.RepeatFlag != "" {
		payload["repeatFlag"] = full.RepeatFlag
	}

	created, err := m.deps.API.CreateTask(ctx, payload)
	if err != nil {
		return res, fmt.Errorf("move fallback failed: %w", err)
	}
	if created.ProjectID == "" {
		created.ProjectID = dest.ID
	}
	if err := m.deps.API.DeleteTask(ctx, sourceID, entry.ID); err != nil {
		m.deps.Logger.Warn("original task not deleted after recreate", "task", entry.ID, "err", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("original task %s could not be deleted", entry.ID))
	}
	m.deps.Cache.Remove(entry.ID)
	recreated := taskcache.FromTask(created)
	recreated.OriginalID = entry.ID
	m.deps.Cache.Put(recreated)

	res.OK = true
	res.TaskID = created.ID
	res.ProjectID = dest.ID
	res.Message = fmt.Sprintf("Moved %q to %s (task id changed: %s)", full.Title, dest.Name, created.ID)
	return res, nil
}

func (m *TaskManager) verifyMove(ctx context.Context, destID, taskID string) bool {
	select {
	case <-ctx.Done():
		return false
	case <-timeAfter(m.deps.MoveVerifyDelay):
	}
	if _, err := m.deps.API.GetTask(ctx, destID, taskID); err == nil {
		return true
	}
	tasks, err := m.deps.API.ListTasks(ctx, destID)
	if err != nil {
		return false
	}
	for _, t := range tasks {
		if t.ID == taskID {
			return true
		}
	}
	return false
}

// remoteOrCached prefers fresh remote state for merging, degrading to the
// cache snapshot when the fetch fails.
func (m *TaskManager) remoteOrCached(ctx context.Context, projectID string, entry taskcache.Entry) taskstore.Task {
	if t, err := m.deps.API.GetTask(ctx, projectID, entry.ID); err == nil && t.ID != "" {
		return t
	}
	return taskstore.Task{
		ID:         entry.ID,
		ProjectID:  projectID,
		Title:      entry.Title,
		Content:    entry.Content,
		Tags:       entry.Tags,
		DueDate:    entry.DueDate,
		StartDate:  entry.StartDate,
		Priority:   entry.Priority,
		Reminders:  entry.Reminders,
		RepeatFlag: entry.RepeatFlag,
	}
}

func (m *TaskManager) cacheAfterUpdate(entry taskcache.Entry, existing, updated taskstore.Task, payload map[string]any) {
	if updated.ID != "" {
		m.deps.Cache.Put(taskcache.FromTask(updated))
		return
	}
	// Empty update response; fold the payload into the last known state.
	next := existing
	if v, ok := payload["title"].(string); ok && v != "" {
		next.Title = v
	}
	if v, ok := payload["content"].(string); ok {
		next.Content = v
	}
	if v, ok := payload["tags"].([]string); ok {
		next.Tags = v
	}
	if v, ok := payload["reminders"].([]string); ok {
		next.Reminders = v
	}
	if v, present := payload["dueDate"]; present {
		if v == nil {
			next.DueDate = ""
		} else if s, ok := v.(string); ok {
			next.DueDate = s
		}
	}
	if v, present := payload["startDate"]; present {
		if v == nil {
			next.StartDate = ""
		} else if s, ok := v.(string); ok {
			next.StartDate = s
		}
	}
	if v, ok := payload["projectId"].(string); ok && v != "" {
		next.ProjectID = v
	}
	next.ID = entry.ID
	m.deps.Cache.Put(taskcache.FromTask(next))
}

// UpdateChanges extracts the field changes an update command carries. Bare
// commands with only scalar fields still translate into modifications, so
// merged group updates and single updates take the same engine path.
func UpdateChanges(cmd model.Command) (map[string]any, []model.FieldModifier) {
	if len(cmd.Modifications) > 0 || len(cmd.Modifiers) > 0 {
		return cmd.Modifications, cmd.Modifiers
	}
	mods := map[string]any{}
	var modifiers []model.FieldModifier
	if cmd.DueDate != "" {
		mods["due_date"] = cmd.DueDate
	}
	if cmd.Priority != 0 {
		mods["priority"] = cmd.Priority
	}
	if cmd.Note != "" {
		modifiers = append(modifiers, model.FieldModifier{Field: "notes", Strategy: model.StrategyAppend, Value: cmd.Note})
	}
	return mods, modifiers
}

func appendBackReference(content, oldID string) string {
	ref := "original_task_id: " + oldID
	content = strings.TrimRight(content, "\n")
	if content == "" {
		return ref
	}
	return content + "\n\n" + ref
}

func pickTitle(candidates ...any) string {
	for _, c := range candidates {
		switch v := c.(type) {
		case taskstore.Task:
			if v.Title != "" {
				return v.Title
			}
		case taskcache.Entry:
			if v.Title != "" {
				return v.Title
			}
		}
	}
	return "task"
}
