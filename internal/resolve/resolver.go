package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/projectdir"
	"taskpilot/cli/internal/taskcache"
	"taskpilot/cli/internal/taskstore"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrProjectNotFound = errors.New("project not found")
)

// Resolver turns the loose references a parsed command carries (titles,
// half-remembered names, echoed placeholders) into real remote identifiers.
// The local cache is consulted first; the remote store is scanned only when
// the cache has no answer.
type Resolver struct {
	cache *taskcache.Store
	dir   *projectdir.Directory
	api   taskstore.API
	lg    *slog.Logger
}

func NewResolver(cache *taskcache.Store, dir *projectdir.Directory, api taskstore.API, lg *slog.Logger) *Resolver {
	if lg == nil {
		lg = slog.Default()
	}
	return &Resolver{cache: cache, dir: dir, api: api, lg: lg}
}

// NormalizeTitle lowercases, trims and collapses interior whitespace. It is
// idempotent: normalizing twice gives the same string.
func NormalizeTitle(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// ResolveTask settles the task reference in cmd and returns the cache entry
// for it. Placeholder ids are recovered by extracting the embedded name and
// retrying by title.
func (r *Resolver) ResolveTask(ctx context.Context, cmd model.Command) (taskcache.Entry, []string, error) {
	var warnings []string

	taskID := strings.TrimSpace(cmd.TaskID)
	title := strings.TrimSpace(cmd.Title)

	if model.IsPlaceholderID(taskID) {
		name := model.ExtractPlaceholderName(taskID)
		r.lg.Warn("placeholder task id detected", "value", taskID, "recovered", name)
		warnings = append(warnings, fmt.Sprintf("ignored placeholder id %q", taskID))
		taskID = ""
		if title == "" {
			title = name
		}
	}

	if taskID != "" {
		if entry, ok := r.cache.Get(taskID); ok {
			return entry, warnings, nil
		}
		// An explicit id we have never seen; trust it but leave the entry
		// minimal so downstream can still fetch remote state.
		return taskcache.Entry{ID: taskID, Title: title}, warnings, nil
	}

	if title == "" {
		return taskcache.Entry{}, warnings, fmt.Errorf("%w: no task reference given", ErrTaskNotFound)
	}

	scope := r.projectScope(ctx, cmd)

	if entry, w, ok := r.findInCache(title, scope); ok {
		return entry, append(warnings, w...), nil
	}

	task, ok, err := r.scanRemote(ctx, title, scope)
	if err != nil {
		return taskcache.Entry{}, warnings, err
	}
	if ok {
		entry := taskcache.FromTask(task)
		r.cache.Put(entry)
		return entry, warnings, nil
	}

	// The remote listing only returns incomplete tasks, so a completed task
	// can only be identified through the cache.
	if entry, ok := r.completedInCache(title, scope); ok {
		return entry, warnings, nil
	}
	return taskcache.Entry{}, warnings, fmt.Errorf("%w: %q", ErrTaskNotFound, title)
}

// projectScope settles the command's project reference into a real project
// id. A reference that cannot be settled is logged and ignored so the
// lookup degrades to searching everywhere instead of failing outright.
func (r *Resolver) projectScope(ctx context.Context, cmd model.Command) string {
	if id := strings.TrimSpace(cmd.ProjectID); id != "" && !model.IsPlaceholderID(id) {
		return id
	}
	ref := strings.TrimSpace(cmd.ProjectName)
	if ref == "" {
		return ""
	}
	p, err := r.ResolveProject(ctx, ref)
	if err != nil {
		r.lg.Warn("project scope not settled, searching all projects", "ref", ref, "err", err)
		return ""
	}
	return p.ID
}

// findInCache matches the title against active cached entries, honoring the
// project scope when one is given. An exact normalized match wins outright,
// newest update first when several share the title. Otherwise substring
// matches in either direction are collected and the longest cached title is
// preferred, so an elided query like "Buy milk and" lands on
// "Buy milk and bread".
func (r *Resolver) findInCache(title, scope string) (taskcache.Entry, []string, bool) {
	query := NormalizeTitle(title)
	if query == "" {
		return taskcache.Entry{}, nil, false
	}

	var exact, partial []taskcache.Entry
	for _, e := range r.cache.All() {
		if !e.Active() {
			continue
		}
		if scope != "" && e.ProjectID != scope {
			continue
		}
		norm := NormalizeTitle(e.Title)
		if norm == query {
			exact = append(exact, e)
			continue
		}
		if strings.Contains(norm, query) || strings.Contains(query, norm) {
			partial = append(partial, e)
		}
	}
	if len(exact) > 0 {
		sort.SliceStable(exact, func(i, j int) bool {
			if !exact[i].UpdatedAt.Equal(exact[j].UpdatedAt) {
				return exact[i].UpdatedAt.After(exact[j].UpdatedAt)
			}
			return exact[i].ID < exact[j].ID
		})
		return exact[0], nil, true
	}
	if len(partial) == 0 {
		return taskcache.Entry{}, nil, false
	}

	sort.SliceStable(partial, func(i, j int) bool {
		ni, nj := NormalizeTitle(partial[i].Title), NormalizeTitle(partial[j].Title)
		if len(ni) != len(nj) {
			return len(ni) > len(nj)
		}
		if ni != nj {
			return ni < nj
		}
		return partial[i].ID < partial[j].ID
	})

	var warnings []string
	if len(partial) > 1 {
		r.lg.Warn("ambiguous task title", "query", title, "matches", len(partial), "picked", partial[0].Title)
		warnings = append(warnings, fmt.Sprintf("%d tasks matched %q, picked %q", len(partial), title, partial[0].Title))
	}
	return partial[0], warnings, true
}

// completedInCache is the last lookup stop: an exact match among completed
// cache entries, inside the scope when one is given.
func (r *Resolver) completedInCache(title, scope string) (taskcache.Entry, bool) {
	query := NormalizeTitle(title)
	done := r.cache.ListByStatus(taskcache.StatusCompleted, scope)
	sort.SliceStable(done, func(i, j int) bool {
		if !done[i].UpdatedAt.Equal(done[j].UpdatedAt) {
			return done[i].UpdatedAt.After(done[j].UpdatedAt)
		}
		return done[i].ID < done[j].ID
	})
	for _, e := range done {
		if NormalizeTitle(e.Title) == query {
			return e, true
		}
	}
	return taskcache.Entry{}, false
}

// scanRemote looks for the title in the scoped project, or in every project
// when the command is unscoped. Expensive, so it is strictly the fallback
// path.
func (r *Resolver) scanRemote(ctx context.Context, title, scope string) (taskstore.Task, bool, error) {
	query := NormalizeTitle(title)
	var projects []taskstore.Project
	if scope != "" {
		projects = []taskstore.Project{{ID: scope}}
	} else {
		all, err := r.dir.Projects(ctx)
		if err != nil {
			return taskstore.Task{}, false, err
		}
		projects = all
	}

	var best taskstore.Task
	var bestLen int
	found := false
	for _, p := range projects {
		tasks, err := r.api.ListTasks(ctx, p.ID)
		if err != nil {
			r.lg.Warn("project scan failed", "project", p.ID, "err", err)
			continue
		}
		for _, t := range tasks {
			norm := NormalizeTitle(t.Title)
			if norm == query {
				return t, true, nil
			}
			if strings.Contains(norm, query) || strings.Contains(query, norm) {
				if !found || len(norm) > bestLen {
					best, bestLen, found = t, len(norm), true
				}
			}
		}
	}
	return best, found, nil
}

// ResolveProject maps a human project reference to a directory entry. A
// placeholder value degrades to the embedded name; an empty reference means
// the inbox.
func (r *Resolver) ResolveProject(ctx context.Context, ref string) (taskstore.Project, error) {
	ref = strings.TrimSpace(ref)
	if model.IsPlaceholderID(ref) {
		name := model.ExtractPlaceholderName(ref)
		r.lg.Warn("placeholder project reference detected", "value", ref, "recovered", name)
		ref = name
	}
	if ref == "" {
		return taskstore.Project{ID: taskstore.InboxProjectID, Name: "Inbox"}, nil
	}
	if p, ok, err := r.dir.ByID(ctx, ref); err != nil {
		return taskstore.Project{}, err
	} else if ok {
		return p, nil
	}
	p, ok, err := r.dir.FindByName(ctx, ref)
	if err != nil {
		return taskstore.Project{}, err
	}
	if !ok {
		return taskstore.Project{}, fmt.Errorf("%w: %q", ErrProjectNotFound, ref)
	}
	return p, nil
}

// ProjectIDForTask finds the project a task lives in: explicit hint, then
// cache, then a remote scan. Failing all three is a hard error since every
// project-scoped endpoint needs the id.
func (r *Resolver) ProjectIDForTask(ctx context.Context, taskID, hint string) (string, error) {
	if hint = strings.TrimSpace(hint); hint != "" && !model.IsPlaceholderID(hint) {
		return hint, nil
	}
	if entry, ok := r.cache.Get(taskID); ok && entry.ProjectID != "" {
		return entry.ProjectID, nil
	}
	projects, err := r.dir.Projects(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range projects {
		tasks, err := r.api.ListTasks(ctx, p.ID)
		if err != nil {
			continue
		}
		for _, t := range tasks {
			if t.ID == taskID {
				r.cache.Upsert(taskcache.Entry{ID: taskID, ProjectID: p.ID, Title: t.Title})
				return p.ID, nil
			}
		}
	}
	return "", fmt.Errorf("%w: cannot determine project for task %s", ErrProjectNotFound, taskID)
}
