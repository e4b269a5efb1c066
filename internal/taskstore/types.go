package taskstore

// Wire types for the TickTick open API v1.

const (
	StatusIncomplete = 0
	StatusCompleted  = 2

	// KindNote marks note-style projects; they hold no actionable tasks.
	KindNote = "NOTE"

	// InboxProjectID is the pseudo-project the API uses for list-less tasks.
	InboxProjectID = "inbox"

	// MaxTasksPerProject is the hard cap the remote API applies to a single
	// project listing.
	MaxTasksPerProject = 99
)

type Task struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"projectId"`
	Title         string   `json:"title"`
	Content       string   `json:"content,omitempty"`
	Desc          string   `json:"desc,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Priority      int      `json:"priority,omitempty"`
	Status        int      `json:"status,omitempty"`
	StartDate     string   `json:"startDate,omitempty"`
	DueDate       string   `json:"dueDate,omitempty"`
	IsAllDay      bool     `json:"isAllDay,omitempty"`
	ColumnID      string   `json:"columnId,omitempty"`
	RepeatFlag    string   `json:"repeatFlag,omitempty"`
	Reminders     []string `json:"reminders,omitempty"`
	SortOrder     int64    `json:"sortOrder,omitempty"`
	CompletedTime string   `json:"completedTime,omitempty"`
}

type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind,omitempty"`
	Closed    bool   `json:"closed,omitempty"`
	GroupID   string `json:"groupId,omitempty"`
	ViewMode  string `json:"viewMode,omitempty"`
	SortOrder int64  `json:"sortOrder,omitempty"`
}

type projectData struct {
	Project Project `json:"project"`
	Tasks   []Task  `json:"tasks"`
}
