package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/modify"
	"taskpilot/cli/internal/taskstore"
)

// TagManager, NoteManager and ReminderManager all follow the same shape:
// resolve the task, fold the change into one payload, send one update.

type TagManager struct {
	tasks *TaskManager
}

func NewTagManager(tasks *TaskManager) *TagManager {
	return &TagManager{tasks: tasks}
}

func (m *TagManager) AddTags(ctx context.Context, cmd model.Command) (model.Result, error) {
	return m.tasks.applyModifiers(ctx, cmd, []model.FieldModifier{
		{Field: "tags", Strategy: model.StrategyMerge, Value: cmd.Tags},
	}, fmt.Sprintf("Tagged with %s", strings.Join(cmd.Tags, ", ")))
}

type NoteManager struct {
	tasks *TaskManager
}

func NewNoteManager(tasks *TaskManager) *NoteManager {
	return &NoteManager{tasks: tasks}
}

func (m *NoteManager) AddNote(ctx context.Context, cmd model.Command) (model.Result, error) {
	if strings.TrimSpace(cmd.Note) == "" {
		return model.Result{Action: cmd.Action}, fmt.Errorf("note text required")
	}
	return m.tasks.applyModifiers(ctx, cmd, []model.FieldModifier{
		{Field: "notes", Strategy: model.StrategyAppend, Value: cmd.Note},
	}, "Note added")
}

type ReminderManager struct {
	tasks *TaskManager
}

func NewReminderManager(tasks *TaskManager) *ReminderManager {
	return &ReminderManager{tasks: tasks}
}

// SetReminder merges one more trigger into the task's reminder set. The
// reminder moment is either an explicit time (cmd.DueDate) or the configured
// default lead before the task's due date.
func (m *ReminderManager) SetReminder(ctx context.Context, cmd model.Command) (model.Result, error) {
	deps := &m.tasks.deps
	res := model.Result{Action: cmd.Action}

	entry, warnings, err := deps.Resolver.ResolveTask(ctx, cmd)
	if err != nil {
		return res, err
	}
	res.Warnings = warnings

	var before time.Duration
	switch {
	case cmd.DueDate != "":
		at, err := taskstore.ParseUserDate(cmd.DueDate, deps.TZOffsetHours)
		if err != nil {
			return res, fmt.Errorf("bad reminder time: %w", err)
		}
		before = at.Sub(deps.Now())
	case cmd.ReminderMinutes > 0:
		before = time.Duration(cmd.ReminderMinutes) * time.Minute
	default:
		before = time.Duration(deps.Settings.Defaults.ReminderMinutes) * time.Minute
	}
	trigger := taskstore.BuildTrigger(before)

	cmd.TaskID = entry.ID
	modRes, err := m.tasks.applyModifiers(ctx, cmd, []model.FieldModifier{
		{Field: "reminders", Strategy: model.StrategyMerge, Value: []string{trigger}},
	}, "Reminder set")
	modRes.Warnings = append(res.Warnings, modRes.Warnings...)
	return modRes, err
}

// applyModifiers is the shared single-update path used by the field-level
// managers.
func (m *TaskManager) applyModifiers(ctx context.Context, cmd model.Command, modifiers []model.FieldModifier, okMessage string) (model.Result, error) {
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

	payload, err := modify.BuildPayload(existing, nil, modifiers)
	if err != nil {
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
	res.Message = fmt.Sprintf("%s for %q", okMessage, pickTitle(updated, existing, entry))
	return res, nil
}
