package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"alpd/api/internal/plate"
	"alpd/api/internal/util"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Engine talks to any OpenAI-compatible chat completions endpoint that accepts image_url parts.
type Engine struct {
	APIKey  string
	Model   string
	BaseURL string
	httpc   *http.Client
}

func New(key, model, baseURL string) *Engine {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Engine{
		APIKey:  strings.TrimSpace(key),
		Model:   strings.TrimSpace(model),
		BaseURL: baseURL,
		httpc:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (e *Engine) Name() string { return "openai" }

func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Recognize(ctx context.Context, image []byte, mime string) (plate.DetectionResult, error) {
	if e.APIKey == "" {
		return plate.DetectionResult{}, errors.New("OPENAI_API_KEY is empty")
	}

	body := map[string]any{
		"model": e.Model,
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": util.EncodeDataURL(mime, image), "detail": "high"}},
					map[string]any{"type": "text", "text": plate.Instruction},
				},
			},
		},
		"temperature": 0,
		// region is optional, so the schema cannot be strict
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "detection_result",
				"strict": false,
				"schema": json.RawMessage(plate.Schema),
			},
		},
	}
	payload, _ := json.Marshal(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return plate.DetectionResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return plate.DetectionResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return plate.DetectionResult{}, fmt.Errorf("openai %d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return plate.DetectionResult{}, err
	}
	if len(raw.Choices) == 0 {
		return plate.DetectionResult{}, errors.New("openai: empty response")
	}
	out := raw.Choices[0].Message.Content
	log.Printf("openai: model=%s bytes_in=%d reply_len=%d", e.Model, len(image), len(out))
	return plate.ParseResponse(out)
}
