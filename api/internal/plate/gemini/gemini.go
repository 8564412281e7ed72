package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"alpd/api/internal/plate"
)

// generator is the part of *genai.GenerativeModel the engine needs.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Engine struct {
	APIKey string
	Model  string

	// open returns a configured model and a closer; replaced in tests.
	open func(ctx context.Context) (generator, func() error, error)
}

func New(apiKey, model string) *Engine {
	e := &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
	e.open = e.dial
	return e
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Recognize issues exactly one generateContent call. Transport errors are returned as-is.
func (e *Engine) Recognize(ctx context.Context, image []byte, mime string) (plate.DetectionResult, error) {
	if e.APIKey == "" {
		return plate.DetectionResult{}, errors.New("GEMINI_API_KEY is empty")
	}
	m, closeFn, err := e.open(ctx)
	if err != nil {
		return plate.DetectionResult{}, err
	}
	defer func() { _ = closeFn() }()

	resp, err := m.GenerateContent(ctx, requestParts(image, mime)...)
	if err != nil {
		log.Printf("gemini: generateContent model=%s: %v", e.Model, err)
		return plate.DetectionResult{}, err
	}
	txt := firstText(resp)
	log.Printf("gemini: model=%s bytes_in=%d reply_len=%d", e.Model, len(image), len(txt))
	return plate.ParseResponse(txt)
}

func (e *Engine) dial(ctx context.Context) (generator, func() error, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return nil, nil, err
	}
	m := cl.GenerativeModel(e.Model)
	if m == nil {
		_ = cl.Close()
		return nil, nil, fmt.Errorf("gemini: model is nil")
	}
	configure(m)
	return m, cl.Close, nil
}

// configure declares JSON output constrained to the DetectionResult schema.
func configure(m *genai.GenerativeModel) {
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"plateNumber":        {Type: genai.TypeString, Description: plate.DescPlateNumber},
			"confidence":         {Type: genai.TypeString, Description: plate.DescConfidence},
			"vehicleDescription": {Type: genai.TypeString, Description: plate.DescVehicleDescription},
			"region":             {Type: genai.TypeString, Description: plate.DescRegion},
		},
		Required: append([]string(nil), plate.RequiredFields...),
	}
}

// requestParts: the image first, then the instruction, as one user turn.
func requestParts(image []byte, mime string) []genai.Part {
	return []genai.Part{
		genai.Blob{MIMEType: mime, Data: image},
		genai.Text(plate.Instruction),
	}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
