// Package parser turns free-form chat text into executable commands through
// a chat-completion model.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/projectdir"
)

const systemPrompt = `You convert task-management requests (English or Russian) into JSON.
Reply with ONLY a JSON object, no prose and no markdown fences.

For a single action reply:
  {"action": "<action>", "title": "...", "projectId": "...", "dueDate": "YYYY-MM-DD HH:MM", "priority": 0-5, "tags": [...], "notes": "..."}
Actions: create_task, update_task, delete_task, complete_task, move_task,
add_tags, add_note, create_recurring_task, set_reminder, get_analytics,
optimize_schedule, bulk_move, bulk_add_tags, list_tasks, create_project,
delete_project.

For a request that changes several fields or chains several actions reply:
  {"task_identifier": {"type": "title", "value": "..."},
   "operations": [{"type": "<action>", "params": {...}, "requires_current_data": true|false,
                   "modifications": {"<field>": {"value": ..., "modifier": "replace|merge|append|remove"}}}]}
Use "merge" when adding tags or reminders, "append" when adding to notes,
"remove" when taking away; whenever you use one of those, set
"requires_current_data": true on the operation. To clear a due date set its
value to "__REMOVE_DATE__".

Use real project ids from the provided context when the user names a project.
Never invent an id. If the request is not about tasks reply {"error": "<reason>"}.`

type Config struct {
	BaseURL string
	Model   string
	APIKey  string
}

// Parser asks the model to translate text into commands and decodes the
// reply at a strict boundary.
type Parser struct {
	cfg     Config
	service openai.ChatCompletionService
	dir     *projectdir.Directory
	lg      *slog.Logger
}

func New(cfg Config, dir *projectdir.Directory, httpClient *http.Client, lg *slog.Logger) *Parser {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	return &Parser{
		cfg:     cfg,
		service: openai.NewChatCompletionService(opts...),
		dir:     dir,
		lg:      lg,
	}
}

// Parse sends the text with current project context and returns the decoded
// command list.
func (p *Parser) Parse(ctx context.Context, text string) ([]model.Command, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty command")
	}

	prompt := systemPrompt
	if contextBlock := p.projectContext(ctx); contextBlock != "" {
		prompt += "\n\nCurrent projects:\n" + contextBlock
	}

	completion, err := p.service.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}
	reply := completion.Choices[0].Message.Content
	p.lg.Debug("parser reply", "len", len(reply))

	return DecodeReply(reply)
}

// projectContext renders the project list the model may reference. Failures
// degrade to no context rather than blocking the parse.
func (p *Parser) projectContext(ctx context.Context) string {
	if p.dir == nil {
		return ""
	}
	projects, err := p.dir.Projects(ctx)
	if err != nil {
		p.lg.Warn("project context unavailable", "err", err)
		return ""
	}
	var b strings.Builder
	for _, project := range projects {
		fmt.Fprintf(&b, "- %s (id: %s)\n", project.Name, project.ID)
	}
	return b.String()
}

// DecodeReply extracts the JSON object from a model reply and converts it.
// Markdown fences and surrounding prose are tolerated.
func DecodeReply(reply string) ([]model.Command, error) {
	raw := extractJSON(reply)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	var parsed model.ParsedCommand
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("undecodable reply: %w", err)
	}
	cmds, err := parsed.Commands()
	if err != nil {
		return nil, err
	}
	for i := range cmds {
		if err := cmds[i].Validate(); err != nil {
			return nil, fmt.Errorf("command %d: %w", i+1, err)
		}
	}
	return cmds, nil
}

// extractJSON returns the outermost {...} block of the reply, with any
// markdown fences stripped first.
func extractJSON(reply string) string {
	s := strings.TrimSpace(reply)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}
