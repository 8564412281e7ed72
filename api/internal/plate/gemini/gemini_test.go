package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"alpd/api/internal/plate"
)

type fakeModel struct {
	reply string
	err   error

	calls int
	parts []genai.Part
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.parts = parts
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(f.reply)}}},
		},
	}, nil
}

func newTestEngine(m *fakeModel) (*Engine, *int) {
	closed := 0
	e := New("test-key", "gemini-test")
	e.open = func(context.Context) (generator, func() error, error) {
		return m, func() error { closed++; return nil }, nil
	}
	return e, &closed
}

func TestRecognizeReturnsResult(t *testing.T) {
	m := &fakeModel{reply: `{"plateNumber":"ABC123","confidence":"High","vehicleDescription":"Red sedan"}`}
	e, closed := newTestEngine(m)

	img := []byte{0xFF, 0xD8, 0xFF}
	got, err := e.Recognize(context.Background(), img, "image/jpeg")
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	want := plate.DetectionResult{PlateNumber: "ABC123", Confidence: "High", VehicleDescription: "Red sedan"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if m.calls != 1 {
		t.Fatalf("expected exactly one request, got %d", m.calls)
	}
	if *closed != 1 {
		t.Fatalf("expected client to be closed once, got %d", *closed)
	}

	if len(m.parts) != 2 {
		t.Fatalf("expected image + instruction parts, got %d", len(m.parts))
	}
	blob, ok := m.parts[0].(genai.Blob)
	if !ok {
		t.Fatalf("first part must be a blob, got %T", m.parts[0])
	}
	if blob.MIMEType != "image/jpeg" || string(blob.Data) != string(img) {
		t.Fatalf("unexpected blob: %+v", blob)
	}
	if txt, ok := m.parts[1].(genai.Text); !ok || string(txt) != plate.Instruction {
		t.Fatalf("second part must be the instruction, got %#v", m.parts[1])
	}
}

func TestRecognizeNonJSON(t *testing.T) {
	e, _ := newTestEngine(&fakeModel{reply: "not json"})
	_, err := e.Recognize(context.Background(), []byte{1}, "image/png")
	if !errors.Is(err, plate.ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
	if err.Error() != plate.UnparseableMessage {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRecognizeEmptyReply(t *testing.T) {
	e, _ := newTestEngine(&fakeModel{reply: ""})
	got, err := e.Recognize(context.Background(), []byte{1}, "image/png")
	if err != nil {
		t.Fatalf("empty reply must not fail at parse time: %v", err)
	}
	if got != (plate.DetectionResult{}) {
		t.Fatalf("expected zero result, got %+v", got)
	}
}

func TestRecognizeTransportErrorIsUnchanged(t *testing.T) {
	boom := errors.New("googleapi: Error 429: quota exceeded")
	m := &fakeModel{err: boom}
	e, _ := newTestEngine(m)
	_, err := e.Recognize(context.Background(), []byte{1}, "image/png")
	if err != boom {
		t.Fatalf("expected the transport error unchanged, got %v", err)
	}
	if m.calls != 1 {
		t.Fatalf("expected no retries, got %d calls", m.calls)
	}
}

func TestRecognizeWithoutKey(t *testing.T) {
	e := New("  ", "gemini-test")
	if _, err := e.Recognize(context.Background(), []byte{1}, "image/png"); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestConfigureDeclaresSchema(t *testing.T) {
	m := &genai.GenerativeModel{}
	configure(m)

	if m.ResponseMIMEType != "application/json" {
		t.Fatalf("unexpected response MIME type %q", m.ResponseMIMEType)
	}
	s := m.ResponseSchema
	if s == nil || s.Type != genai.TypeObject {
		t.Fatalf("expected object schema, got %+v", s)
	}
	for _, name := range []string{"plateNumber", "confidence", "vehicleDescription", "region"} {
		p, ok := s.Properties[name]
		if !ok {
			t.Fatalf("schema is missing property %q", name)
		}
		if p.Type != genai.TypeString {
			t.Fatalf("property %q must be a string", name)
		}
	}
	if len(s.Required) != 3 {
		t.Fatalf("expected 3 required fields, got %v", s.Required)
	}
	for _, r := range s.Required {
		if r == "region" {
			t.Fatal("region must be optional")
		}
	}
}

func TestFirstTextJoinsTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"plateNumber":`), genai.Text(`"X"}`)}}},
		},
	}
	if got := firstText(resp); got != `{"plateNumber":"X"}` {
		t.Fatalf("got %q", got)
	}
	if got := firstText(nil); got != "" {
		t.Fatalf("got %q", got)
	}
}
