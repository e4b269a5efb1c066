package modify

import (
	"fmt"
	"strings"

	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/taskstore"
)

// The engine folds every requested change into one payload so the remote
// task is updated with a single call, no matter how many fields moved.

// fieldAliases maps parser-facing names onto remote API field names.
var fieldAliases = map[string]string{
	"notes":       "content",
	"note":        "content",
	"description": "content",
	"project_id":  "projectId",
	"due_date":    "dueDate",
	"start_date":  "startDate",
	"repeat_flag": "repeatFlag",
	"all_day":     "isAllDay",
}

var dateFields = map[string]struct{}{
	"dueDate":   {},
	"startDate": {},
}

var setFields = map[string]struct{}{
	"tags":      {},
	"reminders": {},
}

func canonicalField(name string) string {
	key := strings.TrimSpace(name)
	if mapped, ok := fieldAliases[strings.ToLower(key)]; ok {
		return mapped
	}
	return key
}

// BuildPayload merges plain modifications and strategy-carrying modifiers
// against the current remote state and returns the single outgoing payload.
// A date set to the removal sentinel becomes an explicit null.
func BuildPayload(existing taskstore.Task, mods map[string]any, modifiers []model.FieldModifier) (map[string]any, error) {
	payload := map[string]any{}

	for field, value := range mods {
		applyReplace(payload, existing, canonicalField(field), value)
	}

	for _, m := range modifiers {
		field := canonicalField(m.Field)
		strategy := m.Strategy
		if strategy == "" {
			strategy = model.StrategyReplace
		}
		switch strategy {
		case model.StrategyReplace:
			applyReplace(payload, existing, field, m.Value)
		case model.StrategyMerge:
			if _, ok := setFields[field]; ok {
				payload[field] = unionStrings(currentSet(payload, existing, field), toStrings(m.Value))
				continue
			}
			// Generic fallback: both sides coerced to sequences and joined.
			payload[field] = append(toStrings(currentValue(payload, existing, field)), toStrings(m.Value)...)
		case model.StrategyAppend:
			if field == "content" {
				payload[field] = appendNote(currentContent(payload, existing), toString(m.Value))
				continue
			}
			// Generic fallback: plain string concatenation, no separator.
			payload[field] = toString(currentValue(payload, existing, field)) + toString(m.Value)
		case model.StrategyRemove:
			if _, isDate := dateFields[field]; isDate {
				payload[field] = nil
				continue
			}
			if _, ok := setFields[field]; ok {
				payload[field] = differenceStrings(currentSet(payload, existing, field), toStrings(m.Value))
				continue
			}
			payload[field] = ""
		default:
			return nil, fmt.Errorf("unknown strategy %q for field %q", m.Strategy, m.Field)
		}
	}

	if len(payload) == 0 {
		return nil, fmt.Errorf("nothing to modify")
	}

	// The update endpoint rejects payloads without a project id.
	if _, ok := payload["projectId"]; !ok && existing.ProjectID != "" {
		payload["projectId"] = existing.ProjectID
	}
	return payload, nil
}

func applyReplace(payload map[string]any, existing taskstore.Task, field string, value any) {
	if _, isDate := dateFields[field]; isDate {
		if s, ok := value.(string); ok && s == model.RemoveDateSentinel {
			payload[field] = nil
			return
		}
	}
	payload[field] = value
}

func currentContent(payload map[string]any, existing taskstore.Task) string {
	if v, ok := payload["content"]; ok {
		return toString(v)
	}
	return existing.Content
}

// currentValue reads the pending payload first so stacked modifiers on one
// field observe each other, then falls back to the remote snapshot.
func currentValue(payload map[string]any, existing taskstore.Task, field string) any {
	if v, ok := payload[field]; ok {
		return v
	}
	switch field {
	case "title":
		return existing.Title
	case "content":
		return existing.Content
	case "tags":
		return existing.Tags
	case "reminders":
		return existing.Reminders
	case "dueDate":
		return existing.DueDate
	case "startDate":
		return existing.StartDate
	case "repeatFlag":
		return existing.RepeatFlag
	case "projectId":
		return existing.ProjectID
	case "priority":
		return existing.Priority
	}
	return nil
}

func currentSet(payload map[string]any, existing taskstore.Task, field string) []string {
	if v, ok := payload[field]; ok {
		return toStrings(v)
	}
	switch field {
	case "tags":
		return existing.Tags
	case "reminders":
		return existing.Reminders
	}
	return nil
}

func appendNote(existing, addition string) string {
	existing = strings.TrimRight(existing, "\n")
	if existing == "" {
		return addition
	}
	if addition == "" {
		return existing
	}
	return existing + "\n\n" + addition
}

func unionStrings(base, add []string) []string {
	out := make([]string, 0, len(base)+len(add))
	seen := map[string]struct{}{}
	for _, s := range base {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, s := range add {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func differenceStrings(base, drop []string) []string {
	dropSet := make(map[string]struct{}, len(drop))
	for _, s := range drop {
		dropSet[s] = struct{}{}
	}
	out := make([]string, 0, len(base))
	for _, s := range base {
		if _, ok := dropSet[s]; ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func toStrings(v any) []string {
	switch vv := v.(type) {
	case nil:
		return nil
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			out = append(out, toString(item))
		}
		return out
	case string:
		if strings.TrimSpace(vv) == "" {
			return nil
		}
		return []string{vv}
	default:
		return []string{toString(v)}
	}
}
