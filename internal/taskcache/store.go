package taskcache

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"taskpilot/cli/internal/taskstore"
)

// Entry statuses. Completed and deleted entries stay in the cache so that
// later commands can still name them by id; they are invisible to title
// lookup.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusDeleted   = "deleted"
)

// Entry is one locally remembered task. The cache is the first stop when a
// command refers to a task by title, so entries survive process restarts.
type Entry struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	ProjectID string   `json:"project_id,omitempty"`
	ColumnID  string   `json:"column_id,omitempty"`
	Status    string   `json:"status,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	DueDate   string   `json:"due_date,omitempty"`
	StartDate string   `json:"start_date,omitempty"`
	Content   string   `json:"content,omitempty"`
	Priority  int      `json:"priority,omitempty"`
	Reminders []string `json:"reminders,omitempty"`
	RepeatFlag string  `json:"repeat_flag,omitempty"`
	SortOrder  int64   `json:"sort_order,omitempty"`

	// OriginalID traces a task that had to be recreated under a new remote
	// id back to the id it replaced.
	OriginalID string `json:"original_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the entry may take part in title lookup. Entries
// written before the status field existed carry an empty status and count as
// active.
func (e Entry) Active() bool {
	return e.Status == "" || e.Status == StatusActive
}

func (e Entry) Completed() bool { return e.Status == StatusCompleted }
func (e Entry) Deleted() bool   { return e.Status == StatusDeleted }

// Store keeps entries in one JSON file keyed by task id. Reads reload the
// file first so concurrent processes observe each other's writes. A failing
// disk never fails a command: the store degrades to memory-only and keeps
// going.
type Store struct {
	path     string
	lg       *slog.Logger
	mu       sync.Mutex
	mem      map[string]Entry
	degraded bool
}

func NewStore(path string, lg *slog.Logger) *Store {
	if lg == nil {
		lg = slog.Default()
	}
	s := &Store{path: path, lg: lg, mem: map[string]Entry{}}
	s.mu.Lock()
	s.reloadLocked()
	s.mu.Unlock()
	return s
}

// FromTask builds a cache entry from a remote task.
func FromTask(t taskstore.Task) Entry {
	status := StatusActive
	if t.Status == taskstore.StatusCompleted {
		status = StatusCompleted
	}
	return Entry{
		ID:         t.ID,
		Title:      t.Title,
		ProjectID:  t.ProjectID,
		ColumnID:   t.ColumnID,
		Status:     status,
		Tags:       t.Tags,
		DueDate:    t.DueDate,
		StartDate:  t.StartDate,
		Content:    t.Content,
		Priority:   t.Priority,
		Reminders:  t.Reminders,
		RepeatFlag: t.RepeatFlag,
		SortOrder:  t.SortOrder,
	}
}

// Put replaces the stored entry wholesale. Timestamps and the original-id
// back-reference are managed here: both survive from an existing entry.
func (s *Store) Put(e Entry) {
	if e.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked()
	now := time.Now().UTC()
	if old, ok := s.mem[e.ID]; ok {
		if !old.CreatedAt.IsZero() {
			e.CreatedAt = old.CreatedAt
		}
		if e.OriginalID == "" {
			e.OriginalID = old.OriginalID
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	s.mem[e.ID] = e
	s.persistLocked()
}

// Upsert merges e into the stored entry: zero-valued fields keep whatever
// was already cached.
func (s *Store) Upsert(e Entry) {
	if e.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked()
	now := time.Now().UTC()
	old, existed := s.mem[e.ID]
	merged := old
	merged.ID = e.ID
	if e.Title != "" {
		merged.Title = e.Title
	}
	if e.ProjectID != "" {
		merged.ProjectID = e.ProjectID
	}
	if e.Tags != nil {
		merged.Tags = e.Tags
	}
	if e.DueDate != "" {
		merged.DueDate = e.DueDate
	}
	if e.StartDate != "" {
		merged.StartDate = e.StartDate
	}
	if e.Content != "" {
		merged.Content = e.Content
	}
	if e.Priority != 0 {
		merged.Priority = e.Priority
	}
	if e.Reminders != nil {
		merged.Reminders = e.Reminders
	}
	if e.RepeatFlag != "" {
		merged.RepeatFlag = e.RepeatFlag
	}
	if e.ColumnID != "" {
		merged.ColumnID = e.ColumnID
	}
	if e.Status != "" {
		merged.Status = e.Status
	}
	if e.SortOrder != 0 {
		merged.SortOrder = e.SortOrder
	}
	if e.OriginalID != "" {
		merged.OriginalID = e.OriginalID
	}
	if !existed || merged.CreatedAt.IsZero() {
		merged.CreatedAt = now
	}
	merged.UpdatedAt = now
	s.mem[e.ID] = merged
	s.persistLocked()
}

func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked()
	e, ok := s.mem[id]
	return e, ok
}

// All returns a snapshot of every cached entry.
func (s *Store) All() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked()
	out := make([]Entry, 0, len(s.mem))
	for _, e := range s.mem {
		out = append(out, e)
	}
	return out
}

// MarkStatus transitions an entry to completed or deleted. Both states are
// terminal for title lookup; the entry itself stays so id references keep
// working. A missing id only logs, a late cache write must never fail the
// command that triggered it.
func (s *Store) MarkStatus(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked()
	e, ok := s.mem[id]
	if !ok {
		s.lg.Warn("status change for unknown cache entry", "id", id, "status", status)
		return
	}
	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	s.mem[id] = e
	s.persistLocked()
}

// SetField patches one field on an existing entry. Unknown ids and unknown
// field names log and return; see MarkStatus for why this soft-fails.
func (s *Store) SetField(id, field string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked()
	e, ok := s.mem[id]
	if !ok {
		s.lg.Warn("field write for unknown cache entry", "id", id, "field", field)
		return
	}
	switch field {
	case "title":
		e.Title, _ = value.(string)
	case "project_id":
		e.ProjectID, _ = value.(string)
	case "column_id":
		e.ColumnID, _ = value.(string)
	case "status":
		e.Status, _ = value.(string)
	case "tags":
		e.Tags, _ = value.([]string)
	case "due_date":
		e.DueDate, _ = value.(string)
	case "start_date":
		e.StartDate, _ = value.(string)
	case "content", "notes":
		e.Content, _ = value.(string)
	case "priority":
		e.Priority, _ = value.(int)
	case "reminders":
		e.Reminders, _ = value.([]string)
	case "repeat_flag":
		e.RepeatFlag, _ = value.(string)
	case "sort_order":
		e.SortOrder, _ = value.(int64)
	case "original_id":
		e.OriginalID, _ = value.(string)
	default:
		s.lg.Warn("unknown cache field", "id", id, "field", field)
		return
	}
	e.UpdatedAt = time.Now().UTC()
	s.mem[id] = e
	s.persistLocked()
}

// ListByStatus returns the entries in the given status, optionally limited
// to one project. An empty status means active, including entries written
// before the status field existed.
func (s *Store) ListByStatus(status, projectID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked()
	var out []Entry
	for _, e := range s.mem {
		if status == "" || status == StatusActive {
			if !e.Active() {
				continue
			}
		} else if e.Status != status {
			continue
		}
		if projectID != "" && e.ProjectID != projectID {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Remove hard-deletes the entry. Reserved for tasks whose remote identity
// was destroyed, e.g. a move that had to recreate the task; a normal delete
// uses MarkStatus so lookups can still answer "already deleted".
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked()
	if _, ok := s.mem[id]; !ok {
		return
	}
	delete(s.mem, id)
	s.persistLocked()
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadLocked()
	return len(s.mem)
}

// Degraded reports whether the store has fallen back to memory-only mode.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *Store) reloadLocked() {
	if s.degraded {
		return
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.lg.Warn("task cache read failed, continuing in memory", "path", s.path, "err", err)
			s.degraded = true
		}
		return
	}
	var mem map[string]Entry
	if err := json.Unmarshal(b, &mem); err != nil {
		s.lg.Warn("task cache file corrupt, continuing in memory", "path", s.path, "err", err)
		s.degraded = true
		return
	}
	s.mem = mem
	if s.mem == nil {
		s.mem = map[string]Entry{}
	}
}

func (s *Store) persistLocked() {
	if s.degraded {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.lg.Warn("task cache persist failed, continuing in memory", "path", s.path, "err", err)
		s.degraded = true
		return
	}
	b, err := json.MarshalIndent(s.mem, "", "  ")
	if err != nil {
		s.lg.Warn("task cache persist failed, continuing in memory", "path", s.path, "err", err)
		s.degraded = true
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		s.lg.Warn("task cache persist failed, continuing in memory", "path", s.path, "err", err)
		s.degraded = true
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.lg.Warn("task cache persist failed, continuing in memory", "path", s.path, "err", err)
		s.degraded = true
	}
}
