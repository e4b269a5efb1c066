package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/taskcache"
	"taskpilot/cli/internal/taskstore"
)

// BatchProcessor runs one action across many tasks. Each task still gets a
// single merged update; the batch is sequential so remote throttling stays
// predictable.
type BatchProcessor struct {
	deps  Deps
	tasks *TaskManager
}

func NewBatchProcessor(deps Deps, tasks *TaskManager) *BatchProcessor {
	deps.normalize()
	return &BatchProcessor{deps: deps, tasks: tasks}
}

// BulkMove relocates every incomplete task of the source project into the
// destination.
func (b *BatchProcessor) BulkMove(ctx context.Context, cmd model.Command) (model.Result, error) {
	res := model.Result{Action: cmd.Action}

	source, err := b.deps.Resolver.ResolveProject(ctx, cmd.ProjectName)
	if err != nil {
		return res, err
	}
	dest, err := b.deps.Resolver.ResolveProject(ctx, cmd.TargetProjectName)
	if err != nil {
		return res, err
	}
	if source.ID == dest.ID {
		return res, fmt.Errorf("source and destination are the same project")
	}

	tasks, err := b.deps.API.ListTasks(ctx, source.ID)
	if err != nil {
		return res, err
	}

	moved := 0
	for _, t := range tasks {
		moveCmd := model.Command{
			Action:            model.ActionMoveTask,
			TaskID:            t.ID,
			ProjectID:         source.ID,
			TargetProjectName: dest.ID,
		}
		b.deps.Cache.Upsert(taskcache.Entry{ID: t.ID, Title: t.Title, ProjectID: source.ID})
		one, err := b.tasks.Move(ctx, moveCmd)
		if err != nil {
			b.deps.Logger.Warn("bulk move: task failed", "task", t.ID, "err", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("%q: %v", t.Title, err))
			continue
		}
		res.Warnings = append(res.Warnings, one.Warnings...)
		moved++
	}

	res.OK = true
	res.ProjectID = dest.ID
	res.Message = fmt.Sprintf("Moved %d of %d tasks from %s to %s", moved, len(tasks), source.Name, dest.Name)
	return res, nil
}

// BulkAddTags tags every incomplete task of a project.
func (b *BatchProcessor) BulkAddTags(ctx context.Context, cmd model.Command) (model.Result, error) {
	res := model.Result{Action: cmd.Action}

	project, err := b.deps.Resolver.ResolveProject(ctx, cmd.ProjectName)
	if err != nil {
		return res, err
	}
	tasks, err := b.deps.API.ListTasks(ctx, project.ID)
	if err != nil {
		return res, err
	}

	tagged := 0
	for _, t := range tasks {
		b.deps.Cache.Put(taskcache.FromTask(t))
		one, err := b.tasks.applyModifiers(ctx, model.Command{
			Action:    model.ActionAddTags,
			TaskID:    t.ID,
			ProjectID: project.ID,
		}, []model.FieldModifier{
			{Field: "tags", Strategy: model.StrategyMerge, Value: cmd.Tags},
		}, "Tagged")
		if err != nil {
			b.deps.Logger.Warn("bulk tag: task failed", "task", t.ID, "err", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("%q: %v", t.Title, err))
			continue
		}
		res.Warnings = append(res.Warnings, one.Warnings...)
		tagged++
	}

	res.OK = true
	res.ProjectID = project.ID
	res.Message = fmt.Sprintf("Tagged %d of %d tasks in %s with %s", tagged, len(tasks), project.Name, strings.Join(cmd.Tags, ", "))
	return res, nil
}

// RescheduleOverdue moves every overdue task's due date to the given day.
// This backs the keyword shortcut that skips the language model entirely.
func (b *BatchProcessor) RescheduleOverdue(ctx context.Context, toDate string) (model.Result, error) {
	res := model.Result{Action: model.ActionBulkMove}

	wire, err := b.deps.wireDate(toDate)
	if err != nil {
		return res, err
	}
	now := b.deps.Now()

	projects, err := b.deps.Dir.Projects(ctx)
	if err != nil {
		return res, err
	}

	total, updated := 0, 0
	for _, p := range projects {
		tasks, err := b.deps.API.ListTasks(ctx, p.ID)
		if err != nil {
			b.deps.Logger.Warn("overdue scan failed", "project", p.ID, "err", err)
			continue
		}
		for _, t := range tasks {
			if !isOverdue(t, now) {
				continue
			}
			total++
			payload := map[string]any{"dueDate": wire, "projectId": p.ID}
			if _, err := b.deps.API.UpdateTaskRaw(ctx, t.ID, payload); err != nil {
				b.deps.Logger.Warn("overdue reschedule failed", "task", t.ID, "err", err)
				res.Warnings = append(res.Warnings, fmt.Sprintf("%q: %v", t.Title, err))
				continue
			}
			t.DueDate = wire
			b.deps.Cache.Put(taskcache.FromTask(t))
			updated++
		}
	}

	res.OK = true
	res.Message = fmt.Sprintf("Rescheduled %d of %d overdue tasks", updated, total)
	return res, nil
}

func isOverdue(t taskstore.Task, now time.Time) bool {
	if t.DueDate == "" {
		return false
	}
	due, err := taskstore.ParseWireDate(t.DueDate)
	if err != nil {
		return false
	}
	return due.Before(now)
}
