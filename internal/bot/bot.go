// Package bot is the execution boundary between chat transports and the
// command pipeline: validate text, parse, route, record, reply.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskpilot/cli/internal/manager"
	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/router"
	"taskpilot/cli/internal/telegram"
)

// MaxCommandLen caps the accepted request size.
const MaxCommandLen = 4096

type CommandParser interface {
	Parse(ctx context.Context, text string) ([]model.Command, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

type History interface {
	Record(chatID int64, source, userText string, res model.Result) error
}

// ChatClient is the transport surface the poll loop needs.
type ChatClient interface {
	GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

type Options struct {
	Parser        CommandParser
	Router        *router.Router
	Batch         *manager.BatchProcessor
	Voice         Transcriber
	History       History
	Chat          ChatClient
	AllowedIDs    []int64
	TZOffsetHours int
	Logger        *slog.Logger
	Now           func() time.Time
}

type Bot struct {
	opts    Options
	allowed map[int64]struct{}
}

func New(opts Options) *Bot {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	allowed := make(map[int64]struct{}, len(opts.AllowedIDs))
	for _, id := range opts.AllowedIDs {
		allowed[id] = struct{}{}
	}
	return &Bot{opts: opts, allowed: allowed}
}

// Allowed reports whether a chat id may talk to the bot. An empty allow
// list means the bot is open.
func (b *Bot) Allowed(id int64) bool {
	if len(b.allowed) == 0 {
		return true
	}
	_, ok := b.allowed[id]
	return ok
}

// HandleText runs one text request end to end and returns the reply. It
// never panics outward; a broken pipeline degrades to a generic message.
func (b *Bot) HandleText(ctx context.Context, chatID int64, source, text string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			b.opts.Logger.Error("panic while handling command", "recovered", r)
			reply = "Something went wrong, please try again."
		}
	}()

	text = strings.TrimSpace(text)
	if text == "" || len([]rune(text)) > MaxCommandLen {
		return "Message is empty or too long."
	}

	if b.isOverdueMove(text) {
		return b.handleOverdueMove(ctx, chatID, source, text)
	}

	cmds, err := b.opts.Parser.Parse(ctx, text)
	if err != nil {
		b.opts.Logger.Warn("parse failed", "err", err)
		b.record(chatID, source, text, model.Result{Err: err.Error()})
		return fmt.Sprintf("Could not understand that: %v", err)
	}

	results := b.opts.Router.Execute(ctx, cmds)
	for _, res := range results {
		b.record(chatID, source, text, res)
	}
	return router.FormatResults(results)
}

// HandleVoice transcribes a voice note and feeds the text through the
// normal pipeline.
func (b *Bot) HandleVoice(ctx context.Context, chatID int64, source string, audio []byte) string {
	if b.opts.Voice == nil {
		return "Voice messages are not enabled."
	}
	text, err := b.opts.Voice.Transcribe(ctx, audio, "voice.ogg")
	if err != nil {
		b.opts.Logger.Warn("transcription failed", "err", err)
		return "Could not transcribe the voice message."
	}
	reply := b.HandleText(ctx, chatID, source, text)
	return fmt.Sprintf("Heard: %s\n\n%s", text, reply)
}

var overdueWords = []string{"просроченные", "просрочено", "overdue"}
var moveWords = []string{"перенеси", "перенести", "перенос", "move", "reschedule"}

// isOverdueMove detects "move the overdue tasks" style requests which are
// handled directly instead of going through the language model.
func (b *Bot) isOverdueMove(text string) bool {
	lower := strings.ToLower(text)
	return containsAny(lower, overdueWords) && containsAny(lower, moveWords)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func (b *Bot) handleOverdueMove(ctx context.Context, chatID int64, source, text string) string {
	lower := strings.ToLower(text)
	loc := time.FixedZone("local", b.opts.TZOffsetHours*3600)
	day := b.opts.Now().In(loc)
	switch {
	case strings.Contains(lower, "сегодня"), strings.Contains(lower, "today"):
	default:
		// Tomorrow unless the text says otherwise.
		day = day.AddDate(0, 0, 1)
	}

	res, err := b.opts.Batch.RescheduleOverdue(ctx, day.Format("2006-01-02"))
	if err != nil {
		b.opts.Logger.Warn("overdue move failed", "err", err)
		b.record(chatID, source, text, model.Result{Action: model.ActionBulkMove, Err: err.Error()})
		return fmt.Sprintf("Could not move overdue tasks: %v", err)
	}
	b.record(chatID, source, text, res)
	return router.FormatResults([]model.Result{res})
}

func (b *Bot) record(chatID int64, source, text string, res model.Result) {
	if b.opts.History == nil {
		return
	}
	if err := b.opts.History.Record(chatID, source, text, res); err != nil {
		b.opts.Logger.Warn("history write failed", "err", err)
	}
}

// Run long-polls the chat transport until the context ends.
func (b *Bot) Run(ctx context.Context) error {
	if b.opts.Chat == nil {
		return fmt.Errorf("no chat transport configured")
	}
	b.opts.Logger.Info("bot polling started")

	var offset int64
	for {
		updates, err := b.opts.Chat.GetUpdates(ctx, offset, 30*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.opts.Logger.Warn("poll failed", "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, u telegram.Update) {
	msg := u.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID
	if msg.From != nil && !b.Allowed(msg.From.ID) {
		b.opts.Logger.Warn("rejected sender", "user", msg.From.ID)
		return
	}

	var reply string
	switch {
	case msg.Voice != nil:
		audio, err := b.opts.Chat.DownloadFile(ctx, msg.Voice.FileID)
		if err != nil {
			b.opts.Logger.Warn("voice download failed", "err", err)
			reply = "Could not fetch the voice message."
		} else {
			reply = b.HandleVoice(ctx, chatID, "telegram", audio)
		}
	case msg.Text != "":
		reply = b.HandleText(ctx, chatID, "telegram", msg.Text)
	default:
		return
	}

	if err := b.opts.Chat.SendMessage(ctx, chatID, reply); err != nil {
		b.opts.Logger.Warn("reply failed", "chat", chatID, "err", err)
	}
}
