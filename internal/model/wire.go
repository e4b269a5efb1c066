package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Wire types mirror the raw JSON the language model produces. They are
// decoded strictly at this boundary and converted into executable Commands;
// nothing downstream ever touches the raw shapes.

type Recurrence struct {
	Type     string `json:"type"`
	Interval int    `json:"interval"`
}

// TaskIdentifier names a task either by free-text title, by a real id, or by
// a contextual reference the model invented.
type TaskIdentifier struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// FieldModification is one field change with its combining strategy.
type FieldModification struct {
	Value    any      `json:"value"`
	Modifier Strategy `json:"modifier"`
}

// Operation is one step of a composite command.
type Operation struct {
	Type           ActionType                   `json:"type"`
	TaskIdentifier *TaskIdentifier              `json:"task_identifier"`
	Params         map[string]any               `json:"params"`
	Modifications  map[string]FieldModification `json:"modifications"`

	// RequiresCurrentData must be true when any modification needs the
	// pre-update value (merge, append, remove). Execution re-reads current
	// state regardless; the flag is validated so a contradictory reply is
	// rejected at the boundary instead of silently ignored.
	RequiresCurrentData *bool `json:"requires_current_data"`

	// DependsOn is declared ordering metadata; operations already run
	// strictly in list order, so it is accepted but carries no extra
	// scheduling.
	DependsOn string `json:"depends_on"`
}

// ParsedCommand is the model's reply: either a list of operations or a
// single flat action (the older reply shape, still produced for simple
// requests). Camel-cased keys follow the reply format the prompt asks for.
type ParsedCommand struct {
	Operations     []Operation     `json:"operations"`
	TaskIdentifier *TaskIdentifier `json:"task_identifier"`

	Action          ActionType  `json:"action"`
	Title           string      `json:"title"`
	TaskID          string      `json:"taskId"`
	ProjectID       string      `json:"projectId"`
	ProjectName     string      `json:"projectName"`
	TargetProjectID string      `json:"targetProjectId"`
	DueDate         string      `json:"dueDate"`
	Priority        int         `json:"priority"`
	Tags            []string    `json:"tags"`
	Notes           string      `json:"notes"`
	Recurrence      *Recurrence `json:"recurrence"`
	Reminder        string      `json:"reminder"`
	Error           string      `json:"error"`
}

func (p ParsedCommand) IsComposite() bool {
	return len(p.Operations) > 0
}

// knownFields is the set of task field names the model may modify, in either
// the prompt spelling or the remote API spelling.
var knownFields = map[string]struct{}{
	"title": {}, "notes": {}, "note": {}, "description": {}, "content": {},
	"due_date": {}, "dueDate": {}, "start_date": {}, "startDate": {},
	"priority": {}, "tags": {}, "reminders": {},
	"project_id": {}, "projectId": {},
	"repeat_flag": {}, "repeatFlag": {},
	"all_day": {}, "isAllDay": {},
}

func knownStrategy(s Strategy) bool {
	switch s {
	case "", StrategyReplace, StrategyMerge, StrategyAppend, StrategyRemove:
		return true
	}
	return false
}

// Commands converts the wire reply into executable commands, rejecting
// unknown actions, fields and modifiers outright.
func (p ParsedCommand) Commands() ([]Command, error) {
	if strings.TrimSpace(p.Error) != "" {
		return nil, fmt.Errorf("parser declined: %s", p.Error)
	}
	if p.IsComposite() {
		cmds := make([]Command, 0, len(p.Operations))
		for i, op := range p.Operations {
			cmd, err := p.operationCommand(op)
			if err != nil {
				return nil, fmt.Errorf("operation %d: %w", i+1, err)
			}
			cmds = append(cmds, cmd)
		}
		return cmds, nil
	}
	cmd, err := p.flatCommand()
	if err != nil {
		return nil, err
	}
	return []Command{cmd}, nil
}

func (p ParsedCommand) operationCommand(op Operation) (Command, error) {
	cmd := Command{Action: op.Type}
	if !knownAction(op.Type) {
		return cmd, fmt.Errorf("unknown action %q", op.Type)
	}

	ident := op.TaskIdentifier
	if ident == nil {
		ident = p.TaskIdentifier
	}
	applyIdentifier(&cmd, ident)

	for key, value := range op.Params {
		if err := applyParam(&cmd, key, value); err != nil {
			return cmd, err
		}
	}

	needsCurrent := false
	for field, fm := range op.Modifications {
		if _, ok := knownFields[field]; !ok {
			return cmd, fmt.Errorf("unknown field %q", field)
		}
		if !knownStrategy(fm.Modifier) {
			return cmd, fmt.Errorf("unknown modifier %q for field %q", fm.Modifier, field)
		}
		if fm.Modifier == "" || fm.Modifier == StrategyReplace {
			if cmd.Modifications == nil {
				cmd.Modifications = map[string]any{}
			}
			cmd.Modifications[field] = fm.Value
		} else {
			needsCurrent = true
			cmd.Modifiers = append(cmd.Modifiers, FieldModifier{Field: field, Strategy: fm.Modifier, Value: fm.Value})
		}
	}
	if needsCurrent && op.RequiresCurrentData != nil && !*op.RequiresCurrentData {
		return cmd, fmt.Errorf("requires_current_data must be true when modifications merge, append or remove")
	}

	sanitizeProjectRefs(&cmd)
	return cmd, nil
}

func (p ParsedCommand) flatCommand() (Command, error) {
	cmd := Command{
		Action:    p.Action,
		Title:     p.Title,
		TaskID:    p.TaskID,
		ProjectID: p.ProjectID,
		Tags:      p.Tags,
		Note:      p.Notes,
		DueDate:   p.DueDate,
		Priority:  p.Priority,
	}
	if !knownAction(p.Action) {
		return cmd, fmt.Errorf("unknown action %q", p.Action)
	}
	if p.ProjectName != "" {
		cmd.ProjectName = p.ProjectName
	}
	if p.TargetProjectID != "" {
		cmd.TargetProjectName = p.TargetProjectID
	}
	if p.Recurrence != nil {
		cmd.Frequency = p.Recurrence.Type
		cmd.Interval = p.Recurrence.Interval
	}
	if r := strings.TrimSpace(p.Reminder); r != "" {
		if minutes, err := strconv.Atoi(r); err == nil {
			cmd.ReminderMinutes = minutes
		} else if cmd.DueDate == "" {
			// A non-numeric reminder is an absolute moment.
			cmd.DueDate = r
		}
	}
	applyIdentifier(&cmd, p.TaskIdentifier)
	sanitizeProjectRefs(&cmd)
	return cmd, nil
}

func applyIdentifier(cmd *Command, ident *TaskIdentifier) {
	if ident == nil || strings.TrimSpace(ident.Value) == "" {
		return
	}
	switch ident.Type {
	case "id", "context":
		if cmd.TaskID == "" {
			cmd.TaskID = ident.Value
		}
	default:
		if cmd.Title == "" {
			cmd.Title = ident.Value
		}
	}
}

func applyParam(cmd *Command, key string, value any) error {
	switch key {
	case "title", "name":
		cmd.Title = asString(value)
	case "taskId", "task_id":
		cmd.TaskID = asString(value)
	case "projectId", "project_id":
		cmd.ProjectID = asString(value)
	case "projectName", "project_name", "project":
		cmd.ProjectName = asString(value)
	case "targetProjectId", "target_project_id", "targetProjectName", "target_project_name":
		cmd.TargetProjectName = asString(value)
	case "dueDate", "due_date":
		cmd.DueDate = asString(value)
	case "priority":
		cmd.Priority = asInt(value)
	case "tags":
		cmd.Tags = asStrings(value)
	case "notes", "note":
		cmd.Note = asString(value)
	case "frequency", "type":
		cmd.Frequency = asString(value)
	case "interval":
		cmd.Interval = asInt(value)
	case "reminder", "reminder_minutes", "reminderMinutes":
		cmd.ReminderMinutes = asInt(value)
	default:
		return fmt.Errorf("unknown parameter %q", key)
	}
	return nil
}

// sanitizeProjectRefs downgrades invented placeholder project ids into name
// references so the resolver can settle them against real projects.
func sanitizeProjectRefs(cmd *Command) {
	if IsPlaceholderID(cmd.ProjectID) {
		if name := ExtractPlaceholderName(cmd.ProjectID); name != "" && cmd.ProjectName == "" {
			cmd.ProjectName = name
		}
		cmd.ProjectID = ""
	}
	if IsPlaceholderID(cmd.TargetProjectName) {
		cmd.TargetProjectName = ExtractPlaceholderName(cmd.TargetProjectName)
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err == nil {
			return parsed
		}
	}
	return 0
}

func asStrings(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, x := range vv {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
