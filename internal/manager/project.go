package manager

import (
	"context"
	"fmt"
	"strings"

	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/taskstore"
)

type ProjectManager struct {
	deps Deps
}

func NewProjectManager(deps Deps) *ProjectManager {
	deps.normalize()
	return &ProjectManager{deps: deps}
}

func projectNameFrom(cmd model.Command) string {
	if name := strings.TrimSpace(cmd.ProjectName); name != "" {
		return name
	}
	return strings.TrimSpace(cmd.Title)
}

func (m *ProjectManager) Create(ctx context.Context, cmd model.Command) (model.Result, error) {
	res := model.Result{Action: cmd.Action}

	name := projectNameFrom(cmd)
	if existing, ok, err := m.deps.Dir.FindByName(ctx, name); err != nil {
		return res, err
	} else if ok {
		res.OK = true
		res.ProjectID = existing.ID
		res.Message = fmt.Sprintf("Project %q already exists", existing.Name)
		return res, nil
	}

	project, err := m.deps.API.CreateProject(ctx, name)
	if err != nil {
		return res, err
	}
	m.deps.Dir.Invalidate()

	res.OK = true
	res.ProjectID = project.ID
	res.Message = fmt.Sprintf("Created project %q", project.Name)
	return res, nil
}

func (m *ProjectManager) Delete(ctx context.Context, cmd model.Command) (model.Result, error) {
	res := model.Result{Action: cmd.Action}

	project, err := m.deps.Resolver.ResolveProject(ctx, projectNameFrom(cmd))
	if err != nil {
		return res, err
	}
	if project.ID == taskstore.InboxProjectID {
		return res, fmt.Errorf("the inbox cannot be deleted")
	}
	if err := m.deps.API.DeleteProject(ctx, project.ID); err != nil {
		return res, err
	}
	m.deps.Dir.Invalidate()

	// Cached tasks of a deleted project must never resolve again.
	for _, e := range m.deps.Cache.All() {
		if e.ProjectID == project.ID {
			m.deps.Cache.Remove(e.ID)
		}
	}

	res.OK = true
	res.ProjectID = project.ID
	res.Message = fmt.Sprintf("Deleted project %q", project.Name)
	return res, nil
}
