package anthropic

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"alpd/api/internal/plate"
)

const systemPrompt = "You read vehicle license plates from photos. " +
	"Reply with a single JSON object and nothing else. It must match this JSON Schema:\n" + plate.Schema

type Engine struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint; empty means the SDK default.
	BaseURL string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string     { return "anthropic" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Recognize(ctx context.Context, image []byte, mime string) (plate.DetectionResult, error) {
	if e.APIKey == "" {
		return plate.DetectionResult{}, errors.New("ANTHROPIC_API_KEY is empty")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(e.APIKey),
		option.WithMaxRetries(0),
	}
	if e.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(e.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.Model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mime, base64.StdEncoding.EncodeToString(image)),
				anthropic.NewTextBlock(plate.Instruction),
			),
		},
	})
	if err != nil {
		log.Printf("anthropic: messages model=%s: %v", e.Model, err)
		return plate.DetectionResult{}, err
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	log.Printf("anthropic: model=%s bytes_in=%d reply_len=%d tokens_in=%d tokens_out=%d",
		e.Model, len(image), text.Len(), message.Usage.InputTokens, message.Usage.OutputTokens)
	return plate.ParseResponse(text.String())
}
