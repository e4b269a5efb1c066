package db

// CommandHistory is one executed command, kept for analytics and the
// /history surface. Raw user text is stored verbatim so misparses can be
// replayed later.
type CommandHistory struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ChatID    int64  `gorm:"column:chat_id;not null;default:0"`
	Source    string `gorm:"column:source;not null;default:''"`
	UserText  string `gorm:"column:user_text;not null;default:''"`
	Action    string `gorm:"column:action;not null;default:''"`
	TaskID    string `gorm:"column:task_id;not null;default:''"`
	ProjectID string `gorm:"column:project_id;not null;default:''"`
	OK        bool   `gorm:"column:ok;not null;default:false"`
	Message   string `gorm:"column:message;not null;default:''"`
	ErrorText string `gorm:"column:error_text;not null;default:''"`
	CreatedAt int64  `gorm:"column:created_at;not null;default:0"`
}

func (CommandHistory) TableName() string { return "command_history" }
