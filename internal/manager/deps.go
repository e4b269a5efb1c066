package manager

import (
	"log/slog"
	"strings"
	"time"

	"taskpilot/cli/internal/global"
	"taskpilot/cli/internal/projectdir"
	"taskpilot/cli/internal/resolve"
	"taskpilot/cli/internal/taskcache"
	"taskpilot/cli/internal/taskstore"
)

// timeAfter is swappable so tests do not sleep through move verification.
var timeAfter = time.After

// Deps is the shared wiring for every action manager.
type Deps struct {
	API      taskstore.API
	Cache    *taskcache.Store
	Dir      *projectdir.Directory
	Resolver *resolve.Resolver
	Settings global.GlobalConfig
	Logger   *slog.Logger

	// TZOffsetHours anchors user-written dates that carry no zone.
	TZOffsetHours int

	// MoveVerifyDelay is how long to wait before checking that a moved task
	// actually landed in the destination project.
	MoveVerifyDelay time.Duration

	Now func() time.Time
}

func (d *Deps) normalize() {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MoveVerifyDelay == 0 {
		d.MoveVerifyDelay = 2 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
}

// wireDate converts a user-written date into the remote wire format. Values
// already in wire shape pass through untouched.
func (d *Deps) wireDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	t, err := taskstore.ParseUserDate(s, d.TZOffsetHours)
	if err != nil {
		return "", err
	}
	return taskstore.FormatWireDate(t), nil
}

// convertPayloadDates rewrites any user-shaped date strings in an outgoing
// payload. Explicit nulls stay as nulls.
func (d *Deps) convertPayloadDates(payload map[string]any) error {
	for _, field := range []string{"dueDate", "startDate"} {
		v, ok := payload[field]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		wire, err := d.wireDate(s)
		if err != nil {
			return err
		}
		payload[field] = wire
	}
	return nil
}
