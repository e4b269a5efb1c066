package model

import "testing"

func TestValidate_RequiresKnownAction(t *testing.T) {
	err := Command{Action: "explode"}.Validate()
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestValidate_CreateNeedsTitle(t *testing.T) {
	if err := (Command{Action: ActionCreateTask}).Validate(); err == nil {
		t.Fatal("expected error for missing title")
	}
	if err := (Command{Action: ActionCreateTask, Title: "Buy milk"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_UpdateAcceptsIDOrTitle(t *testing.T) {
	if err := (Command{Action: ActionUpdateTask}).Validate(); err == nil {
		t.Fatal("expected error without task reference")
	}
	if err := (Command{Action: ActionUpdateTask, TaskID: "63f1a2"}).Validate(); err != nil {
		t.Fatalf("unexpected error with id: %v", err)
	}
	if err := (Command{Action: ActionUpdateTask, Title: "Buy milk"}).Validate(); err != nil {
		t.Fatalf("unexpected error with title: %v", err)
	}
}

func TestValidate_MoveNeedsDestination(t *testing.T) {
	cmd := Command{Action: ActionMoveTask, Title: "Buy milk"}
	if err := cmd.Validate(); err == nil {
		t.Fatal("expected error without destination")
	}
	cmd.TargetProjectName = "Groceries"
	if err := cmd.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_TagsRequired(t *testing.T) {
	if err := (Command{Action: ActionAddTags, Title: "Buy milk"}).Validate(); err == nil {
		t.Fatal("expected error without tags")
	}
	if err := (Command{Action: ActionBulkAddTags}).Validate(); err == nil {
		t.Fatal("expected error without tags for bulk")
	}
}

func TestIsPlaceholderID(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"WORK_PROJECT_ID_FROM_CONTEXT", true},
		{"ID_ПРОЕКТА_РАБОТА_ИЗ_КОНТЕКСТА", true},
		{"63f1a2b4c8d9e0f1a2b3c4d5", false},
		{"inbox", false},
		{"", false},
		{"TASKID", false},
		{"Mixed_Case_ID", false},
	}
	for _, tc := range cases {
		if got := IsPlaceholderID(tc.in); got != tc.want {
			t.Fatalf("IsPlaceholderID(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestExtractPlaceholderName(t *testing.T) {
	if got := ExtractPlaceholderName("ID_ПРОЕКТА_РАБОТА_ИЗ_КОНТЕКСТА"); got != "РАБОТА" {
		t.Fatalf("unexpected extracted name: %q", got)
	}
	if got := ExtractPlaceholderName("WORK_PROJECT_ID_FROM_CONTEXT"); got != "WORK" {
		t.Fatalf("unexpected extracted name: %q", got)
	}
	if got := ExtractPlaceholderName("ID_FROM_CONTEXT"); got != "" {
		t.Fatalf("expected empty name, got %q", got)
	}
	if got := ExtractPlaceholderName("not a placeholder"); got != "" {
		t.Fatalf("expected empty for non-placeholder, got %q", got)
	}
}
