package manager

import (
	"context"
	"fmt"

	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/taskcache"
	"taskpilot/cli/internal/taskstore"
)

type RecurringManager struct {
	deps Deps
}

func NewRecurringManager(deps Deps) *RecurringManager {
	deps.normalize()
	return &RecurringManager{deps: deps}
}

// Create builds a repeating task. The remote API requires a start date for
// any repeatFlag, so one is always present: the due date when given,
// otherwise now.
func (m *RecurringManager) Create(ctx context.Context, cmd model.Command) (model.Result, error) {
	res := model.Result{Action: cmd.Action}

	frequency := cmd.Frequency
	if frequency == "" {
		frequency = m.deps.Settings.Defaults.RecurringFrequency
	}
	repeatFlag, err := taskstore.BuildRepeatFlag(frequency, cmd.Interval)
	if err != nil {
		return res, err
	}

	projectRef := cmd.ProjectName
	if projectRef == "" {
		projectRef = m.deps.Settings.DefaultProject
	}
	project, err := m.deps.Resolver.ResolveProject(ctx, projectRef)
	if err != nil {
		return res, err
	}

	var startDate string
	if cmd.DueDate != "" {
		startDate, err = m.deps.wireDate(cmd.DueDate)
		if err != nil {
			return res, err
		}
	} else {
		startDate = taskstore.FormatWireDate(m.deps.Now())
	}

	payload := map[string]any{
		"title":      cmd.Title,
		"projectId":  project.ID,
		"repeatFlag": repeatFlag,
		"startDate":  startDate,
	}
	if cmd.DueDate != "" {
		payload["dueDate"] = startDate
	}
	if len(cmd.Tags) > 0 {
		payload["tags"] = cmd.Tags
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
	res.Message = fmt.Sprintf("Created recurring task %q (%s)", cmd.Title, repeatFlag)
	return res, nil
}
