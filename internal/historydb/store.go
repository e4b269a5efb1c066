package historydb

import (
	"errors"
	"strings"
	"time"

	dbmodel "taskpilot/cli/internal/db"
	"taskpilot/cli/internal/model"

	"gorm.io/gorm"
)

type Entry struct {
	ChatID    int64
	Source    string
	UserText  string
	Action    string
	TaskID    string
	ProjectID string
	OK        bool
	Message   string
	ErrorText string
	CreatedAt time.Time
}

type Store struct {
	db *gorm.DB
}

// NewStore uses the shared global DB. Caller must not close the db.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Store{db: db}, nil
}

// Record persists the outcome of one executed command.
func (s *Store) Record(chatID int64, source, userText string, res model.Result) error {
	if s == nil || s.db == nil {
		return errors.New("history store is not initialized")
	}
	row := dbmodel.CommandHistory{
		ChatID:    chatID,
		Source:    strings.TrimSpace(source),
		UserText:  userText,
		Action:    string(res.Action),
		TaskID:    res.TaskID,
		ProjectID: res.ProjectID,
		OK:        res.OK,
		Message:   res.Message,
		ErrorText: res.Err,
		CreatedAt: time.Now().UTC().Unix(),
	}
	return s.db.Create(&row).Error
}

// List returns the most recent entries for one chat, newest first. A zero
// chatID returns entries across all chats.
func (s *Store) List(chatID int64, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("history store is not initialized")
	}
	if limit <= 0 {
		limit = 20
	}
	q := s.db.Order("created_at DESC, id DESC").Limit(limit)
	if chatID != 0 {
		q = q.Where("chat_id = ?", chatID)
	}
	rows := make([]dbmodel.CommandHistory, 0, limit)
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			ChatID:    row.ChatID,
			Source:    row.Source,
			UserText:  row.UserText,
			Action:    row.Action,
			TaskID:    row.TaskID,
			ProjectID: row.ProjectID,
			OK:        row.OK,
			Message:   row.Message,
			ErrorText: row.ErrorText,
			CreatedAt: time.Unix(row.CreatedAt, 0).UTC(),
		})
	}
	return entries, nil
}

// ActionCounts aggregates executions per action since a cutoff. Feeds the
// analytics summary.
func (s *Store) ActionCounts(since time.Time) (map[string]int, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("history store is not initialized")
	}
	type row struct {
		Action string
		N      int
	}
	var rows []row
	err := s.db.Model(&dbmodel.CommandHistory{}).
		Select("action, count(*) as n").
		Where("created_at >= ?", since.UTC().Unix()).
		Group("action").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Action] = r.N
	}
	return out, nil
}

func (s *Store) Clear() error {
	if s == nil || s.db == nil {
		return errors.New("history store is not initialized")
	}
	return s.db.Where("1 = 1").Delete(&dbmodel.CommandHistory{}).Error
}

// Close is a no-op; DB is process-wide and must not be closed by the store.
func (s *Store) Close() error {
	return nil
}
