package manager

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/taskstore"
)

// ActionHistory is the slice of the history store analytics needs.
type ActionHistory interface {
	ActionCounts(since time.Time) (map[string]int, error)
}

type Analytics struct {
	deps    Deps
	history ActionHistory
}

func NewAnalytics(deps Deps, history ActionHistory) *Analytics {
	deps.normalize()
	return &Analytics{deps: deps, history: history}
}

type projectStat struct {
	Name     string
	Total    int
	Overdue  int
	DueToday int
}

// Summarize walks every project and reports load, overdue pressure and the
// last week of command activity.
func (a *Analytics) Summarize(ctx context.Context) (model.Result, error) {
	res := model.Result{Action: model.ActionGetAnalytics}

	projects, err := a.deps.Dir.Projects(ctx)
	if err != nil {
		return res, err
	}
	now := a.deps.Now()
	dayStart := now.Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	var stats []projectStat
	totalTasks, totalOverdue := 0, 0
	for _, p := range projects {
		tasks, err := a.deps.API.ListTasks(ctx, p.ID)
		if err != nil {
			a.deps.Logger.Warn("analytics scan failed", "project", p.ID, "err", err)
			continue
		}
		st := projectStat{Name: p.Name, Total: len(tasks)}
		for _, t := range tasks {
			if t.DueDate == "" {
				continue
			}
			due, err := taskstore.ParseWireDate(t.DueDate)
			if err != nil {
				continue
			}
			if due.Before(now) {
				st.Overdue++
			} else if !due.Before(dayStart) && due.Before(dayEnd) {
				st.DueToday++
			}
		}
		totalTasks += st.Total
		totalOverdue += st.Overdue
		if st.Total > 0 {
			stats = append(stats, st)
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Total > stats[j].Total })

	var b strings.Builder
	fmt.Fprintf(&b, "Open tasks: %d (%d overdue)\n", totalTasks, totalOverdue)
	for _, st := range stats {
		fmt.Fprintf(&b, "- %s: %d open", st.Name, st.Total)
		if st.Overdue > 0 {
			fmt.Fprintf(&b, ", %d overdue", st.Overdue)
		}
		if st.DueToday > 0 {
			fmt.Fprintf(&b, ", %d due today", st.DueToday)
		}
		b.WriteString("\n")
	}

	if a.history != nil {
		if counts, err := a.history.ActionCounts(now.Add(-7 * 24 * time.Hour)); err == nil && len(counts) > 0 {
			actions := make([]string, 0, len(counts))
			for action := range counts {
				actions = append(actions, action)
			}
			sort.Strings(actions)
			b.WriteString("Last 7 days:\n")
			for _, action := range actions {
				fmt.Fprintf(&b, "- %s: %d\n", action, counts[action])
			}
		}
	}

	res.OK = true
	res.Message = strings.TrimRight(b.String(), "\n")
	return res, nil
}

// Optimize spreads overdue tasks over the next days, oldest first, one day
// per task up to a week out. Each task gets a single update.
func (a *Analytics) Optimize(ctx context.Context) (model.Result, error) {
	res := model.Result{Action: model.ActionOptimize}

	projects, err := a.deps.Dir.Projects(ctx)
	if err != nil {
		return res, err
	}
	now := a.deps.Now()

	type overdueTask struct {
		task taskstore.Task
		due  time.Time
	}
	var overdue []overdueTask
	for _, p := range projects {
		tasks, err := a.deps.API.ListTasks(ctx, p.ID)
		if err != nil {
			continue
		}
		for _, t := range tasks {
			if t.DueDate == "" {
				continue
			}
			due, err := taskstore.ParseWireDate(t.DueDate)
			if err != nil || !due.Before(now) {
				continue
			}
			overdue = append(overdue, overdueTask{task: t, due: due})
		}
	}
	if len(overdue) == 0 {
		res.OK = true
		res.Message = "Nothing overdue; schedule looks fine"
		return res, nil
	}
	sort.Slice(overdue, func(i, j int) bool { return overdue[i].due.Before(overdue[j].due) })

	rescheduled := 0
	for i, ot := range overdue {
		day := i % 7
		newDue := now.Truncate(24*time.Hour).AddDate(0, 0, day+1).Add(9 * time.Hour)
		payload := map[string]any{
			"dueDate":   taskstore.FormatWireDate(newDue),
			"projectId": ot.task.ProjectID,
		}
		if _, err := a.deps.API.UpdateTaskRaw(ctx, ot.task.ID, payload); err != nil {
			a.deps.Logger.Warn("optimize reschedule failed", "task", ot.task.ID, "err", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("%q: %v", ot.task.Title, err))
			continue
		}
		rescheduled++
	}

	res.OK = true
	res.Message = fmt.Sprintf("Rescheduled %d overdue tasks across the next week", rescheduled)
	return res, nil
}
