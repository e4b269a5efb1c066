package projectdir

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"taskpilot/cli/internal/taskstore"
)

// Directory caches the remote project list. The cache is replaced wholesale
// on refresh; individual entries are never patched, so it can not drift from
// the remote listing by more than the TTL.
type Directory struct {
	api taskstore.API
	ttl time.Duration
	lg  *slog.Logger
	now func() time.Time

	mu        sync.RWMutex
	projects  []taskstore.Project
	byID      map[string]taskstore.Project
	fetchedAt time.Time
}

func NewDirectory(api taskstore.API, ttl time.Duration, lg *slog.Logger) *Directory {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if lg == nil {
		lg = slog.Default()
	}
	return &Directory{api: api, ttl: ttl, lg: lg, now: time.Now}
}

// Projects returns the cached project list, refreshing it when stale. The
// inbox pseudo-project is always present; note-style and closed projects are
// filtered out.
func (d *Directory) Projects(ctx context.Context) ([]taskstore.Project, error) {
	d.mu.RLock()
	fresh := !d.fetchedAt.IsZero() && d.now().Sub(d.fetchedAt) < d.ttl
	if fresh {
		out := make([]taskstore.Project, len(d.projects))
		copy(out, d.projects)
		d.mu.RUnlock()
		return out, nil
	}
	d.mu.RUnlock()

	if err := d.Refresh(ctx); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]taskstore.Project, len(d.projects))
	copy(out, d.projects)
	return out, nil
}

// Refresh replaces the cache with the current remote listing.
func (d *Directory) Refresh(ctx context.Context) error {
	remote, err := d.api.ListProjects(ctx)
	if err != nil {
		return err
	}

	projects := make([]taskstore.Project, 0, len(remote)+1)
	projects = append(projects, taskstore.Project{ID: taskstore.InboxProjectID, Name: "Inbox"})
	for _, p := range remote {
		if p.Kind == taskstore.KindNote || p.Closed {
			continue
		}
		projects = append(projects, p)
	}

	byID := make(map[string]taskstore.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	d.mu.Lock()
	d.projects = projects
	d.byID = byID
	d.fetchedAt = d.now()
	d.mu.Unlock()

	d.lg.Debug("project directory refreshed", "count", len(projects))
	return nil
}

// Invalidate drops the cache so the next read refetches. Called after a
// project is created or deleted.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	d.fetchedAt = time.Time{}
	d.mu.Unlock()
}

// ByID looks a project up by its remote id.
func (d *Directory) ByID(ctx context.Context, id string) (taskstore.Project, bool, error) {
	if _, err := d.Projects(ctx); err != nil {
		return taskstore.Project{}, false, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byID[id]
	return p, ok, nil
}

// FindByName matches a project by name, ignoring emoji, case and surrounding
// whitespace. An exact normalized match wins; otherwise substring matches are
// considered and the shortest normalized name is preferred, on the theory
// that "Работа" should beat "Работа / Архив" for the query "работа".
func (d *Directory) FindByName(ctx context.Context, name string) (taskstore.Project, bool, error) {
	query := NormalizeName(name)
	if query == "" {
		return taskstore.Project{}, false, nil
	}
	projects, err := d.Projects(ctx)
	if err != nil {
		return taskstore.Project{}, false, err
	}

	var partial []taskstore.Project
	for _, p := range projects {
		norm := NormalizeName(p.Name)
		if norm == query {
			return p, true, nil
		}
		if strings.Contains(norm, query) || strings.Contains(query, norm) {
			partial = append(partial, p)
		}
	}
	if len(partial) == 0 {
		return taskstore.Project{}, false, nil
	}
	sort.SliceStable(partial, func(i, j int) bool {
		ni, nj := NormalizeName(partial[i].Name), NormalizeName(partial[j].Name)
		if len(ni) != len(nj) {
			return len(ni) < len(nj)
		}
		return ni < nj
	})
	if len(partial) > 1 {
		d.lg.Warn("ambiguous project name", "query", name, "matches", len(partial), "picked", partial[0].Name)
	}
	return partial[0], true, nil
}
