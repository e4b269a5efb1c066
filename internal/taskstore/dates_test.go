package taskstore

import (
	"testing"
	"time"
)

func TestFormatWireDate_RendersUTCWithNumericOffset(t *testing.T) {
	local := time.Date(2026, 3, 5, 18, 30, 0, 0, time.FixedZone("local", 3*3600))
	got := FormatWireDate(local)
	if got != "2026-03-05T15:30:00+0000" {
		t.Fatalf("unexpected wire date: %s", got)
	}
}

func TestParseUserDate_AnchorsToOffset(t *testing.T) {
	got, err := ParseUserDate("2026-03-05 18:30", 3)
	if err != nil {
		t.Fatalf("ParseUserDate failed: %v", err)
	}
	if FormatWireDate(got) != "2026-03-05T15:30:00+0000" {
		t.Fatalf("unexpected conversion: %s", FormatWireDate(got))
	}
}

func TestParseWireDate_AcceptsBothOffsetForms(t *testing.T) {
	for _, s := range []string{"2019-11-13T03:00:00+0000", "2019-11-13T03:00:00+00:00", "2019-11-13T03:00:00Z"} {
		got, err := ParseWireDate(s)
		if err != nil {
			t.Fatalf("ParseWireDate(%q) failed: %v", s, err)
		}
		if !got.Equal(time.Date(2019, 11, 13, 3, 0, 0, 0, time.UTC)) {
			t.Fatalf("ParseWireDate(%q) = %s", s, got)
		}
	}
}

func TestBuildTrigger(t *testing.T) {
	if got := BuildTrigger(9 * time.Hour); got != "TRIGGER:P0DT9H0M0S" {
		t.Fatalf("unexpected trigger: %s", got)
	}
	if got := BuildTrigger(26*time.Hour + 15*time.Minute); got != "TRIGGER:P1DT2H15M0S" {
		t.Fatalf("unexpected trigger: %s", got)
	}
	if got := BuildTrigger(0); got != "TRIGGER:PT0S" {
		t.Fatalf("zero offset should collapse to at-time: %s", got)
	}
	if got := BuildTrigger(-time.Hour); got != "TRIGGER:PT0S" {
		t.Fatalf("negative offset should collapse to at-time: %s", got)
	}
}

func TestBuildRepeatFlag(t *testing.T) {
	got, err := BuildRepeatFlag("weekly", 2)
	if err != nil {
		t.Fatalf("BuildRepeatFlag failed: %v", err)
	}
	if got != "RRULE:FREQ=WEEKLY;INTERVAL=2" {
		t.Fatalf("unexpected rrule: %s", got)
	}
	if _, err := BuildRepeatFlag("hourly", 1); err == nil {
		t.Fatal("expected error for unsupported frequency")
	}
	got, err = BuildRepeatFlag("DAILY", 0)
	if err != nil {
		t.Fatalf("BuildRepeatFlag failed: %v", err)
	}
	if got != "RRULE:FREQ=DAILY;INTERVAL=1" {
		t.Fatalf("interval should floor at 1: %s", got)
	}
}

func TestSortNewestFirst_UsesIDTimestamp(t *testing.T) {
	tasks := []Task{
		{ID: "63f1a200aaaaaaaaaaaaaaaa"},
		{ID: "63f1a400aaaaaaaaaaaaaaaa"},
		{ID: "zzzz", SortOrder: 1},
		{ID: "63f1a300aaaaaaaaaaaaaaaa"},
	}
	SortNewestFirst(tasks)
	want := []string{"63f1a400aaaaaaaaaaaaaaaa", "63f1a300aaaaaaaaaaaaaaaa", "63f1a200aaaaaaaaaaaaaaaa", "zzzz"}
	for i, id := range want {
		if tasks[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, tasks[i].ID, id)
		}
	}
}
