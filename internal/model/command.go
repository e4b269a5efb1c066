package model

import "strings"

// ActionType identifies one interpreted user intent. A single message can
// carry several commands, each with its own action.
type ActionType string

const (
	ActionCreateTask      ActionType = "create_task"
	ActionUpdateTask      ActionType = "update_task"
	ActionDeleteTask      ActionType = "delete_task"
	ActionCompleteTask    ActionType = "complete_task"
	ActionMoveTask        ActionType = "move_task"
	ActionAddTags         ActionType = "add_tags"
	ActionAddNote         ActionType = "add_note"
	ActionCreateRecurring ActionType = "create_recurring_task"
	ActionSetReminder     ActionType = "set_reminder"
	ActionGetAnalytics    ActionType = "get_analytics"
	ActionOptimize        ActionType = "optimize_schedule"
	ActionBulkMove        ActionType = "bulk_move"
	ActionBulkAddTags     ActionType = "bulk_add_tags"
	ActionListTasks       ActionType = "list_tasks"
	ActionCreateProject   ActionType = "create_project"
	ActionDeleteProject   ActionType = "delete_project"
)

// Strategy controls how a field modification combines with the current
// remote value.
type Strategy string

const (
	StrategyReplace Strategy = "replace"
	StrategyMerge   Strategy = "merge"
	StrategyAppend  Strategy = "append"
	StrategyRemove  Strategy = "remove"
)

// RemoveDateSentinel marks a date field for explicit removal. The outgoing
// payload carries a JSON null for the field instead of omitting it.
const RemoveDateSentinel = "__REMOVE_DATE__"

type FieldModifier struct {
	Field    string   `json:"field"`
	Strategy Strategy `json:"strategy"`
	Value    any      `json:"value"`
}

// Command is one unit of work produced by the parser. Identifier fields may
// hold human titles rather than real ids; the resolver settles them before
// execution.
type Command struct {
	Action            ActionType      `json:"action"`
	Title             string          `json:"title,omitempty"`
	TaskID            string          `json:"task_id,omitempty"`
	ProjectID         string          `json:"project_id,omitempty"`
	ProjectName       string          `json:"project_name,omitempty"`
	TargetProjectName string          `json:"target_project_name,omitempty"`
	Tags              []string        `json:"tags,omitempty"`
	Note              string          `json:"note,omitempty"`
	DueDate           string          `json:"due_date,omitempty"`
	Priority          int             `json:"priority,omitempty"`
	Frequency         string          `json:"frequency,omitempty"`
	Interval          int             `json:"interval,omitempty"`
	ReminderMinutes   int             `json:"reminder_minutes,omitempty"`
	Modifications     map[string]any  `json:"modifications,omitempty"`
	Modifiers         []FieldModifier `json:"modifiers,omitempty"`
}

// Result reports the outcome of one executed command.
type Result struct {
	Action    ActionType `json:"action"`
	OK        bool       `json:"ok"`
	Message   string     `json:"message,omitempty"`
	TaskID    string     `json:"task_id,omitempty"`
	ProjectID string     `json:"project_id,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
	Err       string     `json:"error,omitempty"`
}

func knownAction(a ActionType) bool {
	switch a {
	case ActionCreateTask, ActionUpdateTask, ActionDeleteTask, ActionCompleteTask,
		ActionMoveTask, ActionAddTags, ActionAddNote, ActionCreateRecurring,
		ActionSetReminder, ActionGetAnalytics, ActionOptimize, ActionBulkMove,
		ActionBulkAddTags, ActionListTasks, ActionCreateProject, ActionDeleteProject:
		return true
	}
	return false
}

// Validate checks structural requirements before the command reaches the
// router. It does not resolve identifiers.
func (c Command) Validate() error {
	if !knownAction(c.Action) {
		return &ValidationError{Field: "action", Reason: "unknown action " + string(c.Action)}
	}
	needsTarget := func() error {
		if strings.TrimSpace(c.TaskID) == "" && strings.TrimSpace(c.Title) == "" {
			return &ValidationError{Field: "title", Reason: "task reference required"}
		}
		return nil
	}
	switch c.Action {
	case ActionCreateTask, ActionCreateRecurring:
		if strings.TrimSpace(c.Title) == "" {
			return &ValidationError{Field: "title", Reason: "title required"}
		}
	case ActionUpdateTask, ActionDeleteTask, ActionCompleteTask, ActionAddNote, ActionSetReminder:
		return needsTarget()
	case ActionAddTags:
		if err := needsTarget(); err != nil {
			return err
		}
		if len(c.Tags) == 0 {
			return &ValidationError{Field: "tags", Reason: "at least one tag required"}
		}
	case ActionMoveTask:
		if err := needsTarget(); err != nil {
			return err
		}
		if strings.TrimSpace(c.TargetProjectName) == "" {
			return &ValidationError{Field: "target_project_name", Reason: "destination project required"}
		}
	case ActionBulkMove:
		if strings.TrimSpace(c.TargetProjectName) == "" {
			return &ValidationError{Field: "target_project_name", Reason: "destination project required"}
		}
	case ActionBulkAddTags:
		if len(c.Tags) == 0 {
			return &ValidationError{Field: "tags", Reason: "at least one tag required"}
		}
	case ActionCreateProject, ActionDeleteProject:
		if strings.TrimSpace(c.ProjectName) == "" && strings.TrimSpace(c.Title) == "" {
			return &ValidationError{Field: "project_name", Reason: "project name required"}
		}
	}
	return nil
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid command: " + e.Field + ": " + e.Reason
}
