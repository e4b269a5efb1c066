package manager

import (
	"context"
	"fmt"
	"strings"

	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/taskcache"
	"taskpilot/cli/internal/taskstore"
)

// Lister answers list_tasks. The remote listing misses anything past the
// per-project cap, so cached entries the API did not return are merged in.
type Lister struct {
	deps Deps
}

func NewLister(deps Deps) *Lister {
	deps.normalize()
	return &Lister{deps: deps}
}

// List returns tasks for one project, or across every project when the
// command names none.
func (l *Lister) List(ctx context.Context, cmd model.Command) ([]taskstore.Task, model.Result, error) {
	res := model.Result{Action: cmd.Action}

	var projects []taskstore.Project
	if ref := strings.TrimSpace(cmd.ProjectName); ref != "" {
		p, err := l.deps.Resolver.ResolveProject(ctx, ref)
		if err != nil {
			return nil, res, err
		}
		projects = []taskstore.Project{p}
	} else {
		all, err := l.deps.Dir.Projects(ctx)
		if err != nil {
			return nil, res, err
		}
		projects = all
	}

	wanted := make(map[string]struct{}, len(projects))
	for _, p := range projects {
		wanted[p.ID] = struct{}{}
	}

	var tasks []taskstore.Task
	seen := map[string]struct{}{}
	for _, p := range projects {
		remote, err := l.deps.API.ListTasks(ctx, p.ID)
		if err != nil {
			l.deps.Logger.Warn("listing failed", "project", p.ID, "err", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("project %s unavailable", p.Name))
			continue
		}
		for _, t := range remote {
			seen[t.ID] = struct{}{}
			tasks = append(tasks, t)
			l.deps.Cache.Put(taskcache.FromTask(t))
		}
	}

	// Cached tasks the API did not return: completed elsewhere or beyond
	// the listing cap. Keep them visible rather than silently dropping;
	// only entries marked deleted stay hidden.
	for _, e := range l.deps.Cache.All() {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		if e.Deleted() {
			continue
		}
		if _, ok := wanted[e.ProjectID]; !ok {
			continue
		}
		tasks = append(tasks, taskstore.Task{
			ID:        e.ID,
			ProjectID: e.ProjectID,
			Title:     e.Title,
			Tags:      e.Tags,
			DueDate:   e.DueDate,
			Priority:  e.Priority,
		})
	}

	taskstore.SortNewestFirst(tasks)

	res.OK = true
	res.Message = fmt.Sprintf("%d tasks", len(tasks))
	return tasks, res, nil
}
