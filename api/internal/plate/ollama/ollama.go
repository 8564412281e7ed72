package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"alpd/api/internal/plate"
)

// Engine talks to a self-hosted Ollama server with a vision model (llava, minicpm-v, qwen2.5vl, ...).
type Engine struct {
	Model  string
	client *api.Client
}

// New parses the server URL; any path (e.g. /api/chat) is dropped.
func New(serverURL, model string) (*Engine, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid OLLAMA_URL %q: scheme and host are required", serverURL)
	}
	base := &url.URL{Scheme: u.Scheme, Host: u.Host}
	return &Engine{
		Model:  strings.TrimSpace(model),
		client: api.NewClient(base, http.DefaultClient),
	}, nil
}

func (e *Engine) Name() string     { return "ollama" }
func (e *Engine) GetModel() string { return e.Model }

// Recognize sends one non-streaming chat request; mime is not needed by Ollama.
func (e *Engine) Recognize(ctx context.Context, image []byte, _ string) (plate.DetectionResult, error) {
	stream := false
	req := &api.ChatRequest{
		Model: e.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: plate.Instruction,
				Images:  []api.ImageData{api.ImageData(image)},
			},
		},
		Stream:  &stream,
		Format:  json.RawMessage(plate.Schema),
		Options: map[string]any{"temperature": 0},
	}

	var content strings.Builder
	err := e.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		log.Printf("ollama: chat model=%s: %v", e.Model, err)
		return plate.DetectionResult{}, err
	}
	log.Printf("ollama: model=%s bytes_in=%d reply_len=%d", e.Model, len(image), content.Len())
	return plate.ParseResponse(content.String())
}
