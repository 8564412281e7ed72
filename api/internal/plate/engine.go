package plate

import (
	"context"
	"fmt"
	"strings"
)

// Engine sends one image to a multimodal model and returns its single best plate guess.
// Implementations hold no per-call state and may be called concurrently.
type Engine interface {
	Name() string
	GetModel() string
	Recognize(ctx context.Context, image []byte, mime string) (DetectionResult, error)
}

type Engines struct {
	Gemini    Engine
	Anthropic Engine
	OpenAI    Engine
	Ollama    Engine
}

func (e *Engines) GetEngine(name string) (Engine, error) {
	var eng Engine
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gemini":
		eng = e.Gemini
	case "anthropic", "claude":
		eng = e.Anthropic
	case "openai", "gpt":
		eng = e.OpenAI
	case "ollama":
		eng = e.Ollama
	default:
		return nil, fmt.Errorf("unknown engine %q; use gemini | anthropic | openai | ollama", name)
	}
	if eng == nil {
		return nil, fmt.Errorf("engine %q is not configured", name)
	}
	return eng, nil
}

// Strict rejects results with empty required fields.
type Strict struct {
	Engine
}

func (s Strict) Recognize(ctx context.Context, image []byte, mime string) (DetectionResult, error) {
	res, err := s.Engine.Recognize(ctx, image, mime)
	if err != nil {
		return DetectionResult{}, err
	}
	if err := res.Validate(); err != nil {
		return DetectionResult{}, err
	}
	return res, nil
}
