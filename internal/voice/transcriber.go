// Package voice transcribes chat voice notes so they can be parsed like
// typed text.
package voice

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

type Transcriber struct {
	cfg     Config
	service openai.AudioTranscriptionService
	lg      *slog.Logger
}

func New(cfg Config, httpClient *http.Client, lg *slog.Logger) *Transcriber {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.AudioModelWhisper1)
	}
	opts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	return &Transcriber{
		cfg:     cfg,
		service: openai.NewAudioTranscriptionService(opts...),
		lg:      lg,
	}
}

// Transcribe converts raw audio bytes into text. The filename extension
// tells the endpoint the container format (chat voice notes are .ogg).
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio")
	}
	if filename == "" {
		filename = "voice.ogg"
	}
	resp, err := t.service.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), filename, "audio/ogg"),
		Model: openai.AudioModel(t.cfg.Model),
	})
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("transcription came back empty")
	}
	t.lg.Debug("voice transcribed", "chars", len(text))
	return text, nil
}
