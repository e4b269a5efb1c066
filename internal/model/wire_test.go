package model

import (
	"encoding/json"
	"testing"
)

func TestCommands_FlatAction(t *testing.T) {
	raw := `{"action":"create_task","title":"Buy milk","projectId":"p1","dueDate":"2026-03-06 18:00","tags":["errand"],"priority":3}`
	var p ParsedCommand
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	cmds, err := p.Commands()
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("expected one command, got %d", len(cmds))
	}
	cmd := cmds[0]
	if cmd.Action != ActionCreateTask || cmd.Title != "Buy milk" || cmd.ProjectID != "p1" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if cmd.Priority != 3 || len(cmd.Tags) != 1 {
		t.Fatalf("fields lost in conversion: %+v", cmd)
	}
}

func TestCommands_CompositeSharedIdentifier(t *testing.T) {
	raw := `{
		"task_identifier": {"type": "title", "value": "Buy milk"},
		"operations": [
			{"type": "update_task", "modifications": {
				"tags": {"value": ["urgent"], "modifier": "merge"},
				"title": {"value": "Buy oat milk", "modifier": "replace"}
			}},
			{"type": "set_reminder", "params": {"reminder_minutes": 30}}
		]
	}`
	var p ParsedCommand
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !p.IsComposite() {
		t.Fatal("expected composite detection")
	}
	cmds, err := p.Commands()
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected two commands, got %d", len(cmds))
	}
	if cmds[0].Title != "Buy milk" || cmds[1].Title != "Buy milk" {
		t.Fatalf("shared identifier not propagated: %+v", cmds)
	}
	if cmds[0].Modifications["title"] != "Buy oat milk" {
		t.Fatalf("replace modification lost: %+v", cmds[0])
	}
	if len(cmds[0].Modifiers) != 1 || cmds[0].Modifiers[0].Strategy != StrategyMerge {
		t.Fatalf("merge modifier lost: %+v", cmds[0])
	}
	if cmds[1].ReminderMinutes != 30 {
		t.Fatalf("reminder params lost: %+v", cmds[1])
	}
}

func TestCommands_RejectsUnknownShapes(t *testing.T) {
	cases := []string{
		`{"action":"teleport_task","title":"x"}`,
		`{"operations":[{"type":"update_task","modifications":{"color":{"value":"red"}}}]}`,
		`{"operations":[{"type":"update_task","modifications":{"tags":{"value":["a"],"modifier":"squash"}}}]}`,
		`{"operations":[{"type":"create_task","params":{"urgency":"max"}}]}`,
	}
	for _, raw := range cases {
		var p ParsedCommand
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			t.Fatalf("decode failed for %s: %v", raw, err)
		}
		if _, err := p.Commands(); err == nil {
			t.Fatalf("expected rejection for %s", raw)
		}
	}
}

func TestCommands_RequiresCurrentDataValidated(t *testing.T) {
	// A contradictory flag is rejected; true or absent passes.
	raw := `{"operations":[{"type":"update_task","requires_current_data":false,
		"task_identifier":{"type":"title","value":"T"},
		"modifications":{"tags":{"value":["a"],"modifier":"merge"}}}]}`
	var p ParsedCommand
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if _, err := p.Commands(); err == nil {
		t.Fatal("merge with requires_current_data=false must be rejected")
	}

	raw = `{"operations":[
		{"type":"update_task","requires_current_data":true,"depends_on":"op-1",
		 "task_identifier":{"type":"title","value":"T"},
		 "modifications":{"tags":{"value":["a"],"modifier":"merge"}}}]}`
	var ok ParsedCommand
	if err := json.Unmarshal([]byte(raw), &ok); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	cmds, err := ok.Commands()
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if len(cmds) != 1 || len(cmds[0].Modifiers) != 1 {
		t.Fatalf("unexpected commands: %+v", cmds)
	}
}

func TestCommands_ParserError(t *testing.T) {
	p := ParsedCommand{Error: "could not understand"}
	if _, err := p.Commands(); err == nil {
		t.Fatal("parser error must surface")
	}
}

func TestCommands_SanitizesPlaceholderProjects(t *testing.T) {
	var p ParsedCommand
	raw := `{"action":"create_task","title":"Report","projectId":"WORK_PROJECT_ID_FROM_CONTEXT"}`
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	cmds, err := p.Commands()
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if cmds[0].ProjectID != "" {
		t.Fatalf("placeholder id must be dropped: %+v", cmds[0])
	}
	if cmds[0].ProjectName != "WORK" {
		t.Fatalf("embedded name not recovered: %+v", cmds[0])
	}
}

func TestCommands_RecurrenceAndMoveTarget(t *testing.T) {
	var p ParsedCommand
	raw := `{"action":"create_recurring_task","title":"Standup","recurrence":{"type":"weekly","interval":1}}`
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	cmds, err := p.Commands()
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if cmds[0].Frequency != "weekly" || cmds[0].Interval != 1 {
		t.Fatalf("recurrence lost: %+v", cmds[0])
	}

	var m ParsedCommand
	raw = `{"action":"move_task","title":"Report","targetProjectId":"TARGET_PROJECT_ID_FROM_CONTEXT"}`
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	cmds, err = m.Commands()
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if cmds[0].TargetProjectName != "TARGET" {
		t.Fatalf("placeholder target not recovered: %+v", cmds[0])
	}
}
