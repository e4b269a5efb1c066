package model

import (
	"strings"
	"unicode"
)

// Language models occasionally echo an instruction placeholder instead of a
// real identifier, e.g. "WORK_PROJECT_ID_FROM_CONTEXT". Such values must
// never be sent to the remote API.

var placeholderStopTokens = map[string]struct{}{
	"ID": {}, "TASK": {}, "PROJECT": {}, "FROM": {}, "CONTEXT": {},
	"ИД": {}, "ЗАДАЧИ": {}, "ПРОЕКТА": {}, "ИЗ": {}, "КОНТЕКСТА": {},
}

// IsPlaceholderID reports whether v looks like an echoed placeholder rather
// than a real identifier. Real ids are lowercase hex; placeholders are
// upper-case words joined by underscores.
func IsPlaceholderID(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" || !strings.Contains(v, "_") {
		return false
	}
	hasLetter := false
	for _, r := range v {
		switch {
		case r == '_':
		case unicode.IsUpper(r):
			hasLetter = true
		default:
			return false
		}
	}
	return hasLetter
}

// ExtractPlaceholderName recovers the human name embedded in a placeholder,
// so the resolver can retry by name. Returns "" when nothing remains after
// dropping the scaffold words.
func ExtractPlaceholderName(v string) string {
	if !IsPlaceholderID(v) {
		return ""
	}
	var kept []string
	for _, tok := range strings.Split(strings.TrimSpace(v), "_") {
		if tok == "" {
			continue
		}
		if _, stop := placeholderStopTokens[tok]; stop {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, " ")
}
