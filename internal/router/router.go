// Package router fans parsed commands out to the action managers and folds
// the per-action outcomes back into one reply.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"taskpilot/cli/internal/manager"
	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/taskstore"
)

type Router struct {
	lg   *slog.Logger
	deps manager.Deps

	tasks     *manager.TaskManager
	tags      *manager.TagManager
	notes     *manager.NoteManager
	reminders *manager.ReminderManager
	recurring *manager.RecurringManager
	batch     *manager.BatchProcessor
	projects  *manager.ProjectManager
	lister    *manager.Lister
	analytics *manager.Analytics
}

func New(deps manager.Deps, history manager.ActionHistory) *Router {
	lg := deps.Logger
	if lg == nil {
		lg = slog.Default()
	}
	tasks := manager.NewTaskManager(deps)
	return &Router{
		lg:        lg,
		deps:      deps,
		tasks:     tasks,
		tags:      manager.NewTagManager(tasks),
		notes:     manager.NewNoteManager(tasks),
		reminders: manager.NewReminderManager(tasks),
		recurring: manager.NewRecurringManager(deps),
		batch:     manager.NewBatchProcessor(deps, tasks),
		projects:  manager.NewProjectManager(deps),
		lister:    manager.NewLister(deps),
		analytics: manager.NewAnalytics(deps, history),
	}
}

// Execute buckets a composite command list by action type, in the order the
// types first appear, and runs the groups strictly sequentially. Failures
// are captured per action so one bad operation never aborts the rest of the
// batch.
func (r *Router) Execute(ctx context.Context, cmds []model.Command) []model.Result {
	results := make([]model.Result, 0, len(cmds))
	for _, g := range groupByAction(cmds) {
		if g.action == model.ActionUpdateTask && len(g.cmds) > 1 {
			results = append(results, r.executeUpdateGroup(ctx, g.cmds)...)
			continue
		}
		for _, cmd := range g.cmds {
			results = append(results, r.executeOne(ctx, cmd))
		}
	}
	return results
}

type commandGroup struct {
	action model.ActionType
	cmds   []model.Command
}

func groupByAction(cmds []model.Command) []commandGroup {
	var groups []commandGroup
	index := map[model.ActionType]int{}
	for _, cmd := range cmds {
		if i, ok := index[cmd.Action]; ok {
			groups[i].cmds = append(groups[i].cmds, cmd)
			continue
		}
		index[cmd.Action] = len(groups)
		groups = append(groups, commandGroup{action: cmd.Action, cmds: []model.Command{cmd}})
	}
	return groups
}

// executeUpdateGroup resolves every update target up front and folds the
// modifications landing on the same task into one command, so each task
// receives exactly one remote update no matter how many operations touched
// it. Updates on distinct tasks still get one merged call each.
func (r *Router) executeUpdateGroup(ctx context.Context, cmds []model.Command) []model.Result {
	type target struct {
		cmd      model.Command
		warnings []string
	}
	var order []string
	targets := map[string]*target{}
	var failed []model.Result

	for _, cmd := range cmds {
		if err := cmd.Validate(); err != nil {
			failed = append(failed, model.Result{Action: cmd.Action, Err: err.Error()})
			continue
		}
		entry, warnings, err := r.deps.Resolver.ResolveTask(ctx, cmd)
		if err != nil {
			r.lg.Warn("update target not resolved", "err", err)
			failed = append(failed, model.Result{Action: cmd.Action, Warnings: warnings, Err: err.Error()})
			continue
		}
		tg, ok := targets[entry.ID]
		if !ok {
			tg = &target{cmd: model.Command{
				Action:    model.ActionUpdateTask,
				TaskID:    entry.ID,
				ProjectID: cmd.ProjectID,
			}}
			targets[entry.ID] = tg
			order = append(order, entry.ID)
		}
		tg.warnings = append(tg.warnings, warnings...)
		mods, modifiers := manager.UpdateChanges(cmd)
		for field, value := range mods {
			if tg.cmd.Modifications == nil {
				tg.cmd.Modifications = map[string]any{}
			}
			tg.cmd.Modifications[field] = value
		}
		tg.cmd.Modifiers = append(tg.cmd.Modifiers, modifiers...)
	}

	results := make([]model.Result, 0, len(order)+len(failed))
	for _, id := range order {
		tg := targets[id]
		res := r.executeOne(ctx, tg.cmd)
		res.Warnings = append(tg.warnings, res.Warnings...)
		results = append(results, res)
	}
	return append(results, failed...)
}

func (r *Router) executeOne(ctx context.Context, cmd model.Command) model.Result {
	if err := cmd.Validate(); err != nil {
		return model.Result{Action: cmd.Action, Err: err.Error()}
	}
	res, err := r.Dispatch(ctx, cmd)
	if err != nil {
		r.lg.Warn("action failed", "action", cmd.Action, "err", err)
		res.OK = false
		res.Err = err.Error()
	}
	return res
}

// Dispatch routes a single validated command to its manager.
func (r *Router) Dispatch(ctx context.Context, cmd model.Command) (model.Result, error) {
	switch cmd.Action {
	case model.ActionCreateTask:
		return r.tasks.Create(ctx, cmd)
	case model.ActionUpdateTask:
		return r.tasks.Update(ctx, cmd)
	case model.ActionDeleteTask:
		return r.tasks.Delete(ctx, cmd)
	case model.ActionCompleteTask:
		return r.tasks.Complete(ctx, cmd)
	case model.ActionMoveTask:
		return r.tasks.Move(ctx, cmd)
	case model.ActionAddTags:
		return r.tags.AddTags(ctx, cmd)
	case model.ActionAddNote:
		return r.notes.AddNote(ctx, cmd)
	case model.ActionCreateRecurring:
		return r.recurring.Create(ctx, cmd)
	case model.ActionSetReminder:
		return r.reminders.SetReminder(ctx, cmd)
	case model.ActionGetAnalytics:
		return r.analytics.Summarize(ctx)
	case model.ActionOptimize:
		return r.analytics.Optimize(ctx)
	case model.ActionBulkMove:
		return r.batch.BulkMove(ctx, cmd)
	case model.ActionBulkAddTags:
		return r.batch.BulkAddTags(ctx, cmd)
	case model.ActionListTasks:
		return r.listTasks(ctx, cmd)
	case model.ActionCreateProject:
		return r.projects.Create(ctx, cmd)
	case model.ActionDeleteProject:
		return r.projects.Delete(ctx, cmd)
	}
	return model.Result{Action: cmd.Action}, fmt.Errorf("unknown action %q", cmd.Action)
}

func (r *Router) listTasks(ctx context.Context, cmd model.Command) (model.Result, error) {
	tasks, res, err := r.lister.List(ctx, cmd)
	if err != nil {
		return res, err
	}
	res.Message = formatTaskList(tasks)
	return res, nil
}

func formatTaskList(tasks []taskstore.Task) string {
	if len(tasks) == 0 {
		return "No open tasks"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d open tasks\n", len(tasks))
	for _, t := range tasks {
		b.WriteString("• ")
		b.WriteString(t.Title)
		if t.DueDate != "" {
			if due, err := taskstore.ParseWireDate(t.DueDate); err == nil {
				fmt.Fprintf(&b, " (due %s)", due.Format("Jan 2 15:04"))
			}
		}
		if len(t.Tags) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(t.Tags, ", "))
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatResults folds a batch of outcomes into a single reply: a count
// header, one bullet per action, and a retry hint when some actions failed.
func FormatResults(results []model.Result) string {
	if len(results) == 0 {
		return "Nothing to do"
	}
	if len(results) == 1 {
		return formatOne(results[0])
	}

	failed := 0
	var b strings.Builder
	for _, res := range results {
		if !res.OK {
			failed++
		}
		b.WriteString("• ")
		b.WriteString(formatOne(res))
		b.WriteByte('\n')
	}

	header := fmt.Sprintf("Done %d of %d actions\n", len(results)-failed, len(results))
	out := header + strings.TrimRight(b.String(), "\n")
	if failed > 0 {
		out += "\n\nSome actions failed, you can retry just those."
	}
	return out
}

func formatOne(res model.Result) string {
	var line string
	if res.OK {
		line = res.Message
		if line == "" {
			line = fmt.Sprintf("%s done", res.Action)
		}
	} else {
		reason := res.Err
		if reason == "" {
			reason = "unknown error"
		}
		line = fmt.Sprintf("%s failed: %s", res.Action, reason)
	}
	for _, w := range res.Warnings {
		line += "\n  ⚠ " + w
	}
	return line
}
