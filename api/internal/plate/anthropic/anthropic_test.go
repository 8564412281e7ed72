package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"alpd/api/internal/plate"
)

func messageJSON(text string) string {
	b, _ := json.Marshal(map[string]any{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-test",
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"content":       []map[string]any{{"type": "text", "text": text}},
		"usage":         map[string]any{"input_tokens": 10, "output_tokens": 5},
	})
	return string(b)
}

func TestRecognizeSendsImageAndParsesReply(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageJSON(`{"plateNumber":"KA01AB1234","confidence":"Medium","vehicleDescription":"White hatchback","region":"Karnataka"}`))
	}))
	defer server.Close()

	e := New("sk-test", "claude-test")
	e.BaseURL = server.URL
	got, err := e.Recognize(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg")
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if got.PlateNumber != "KA01AB1234" || got.Region != "Karnataka" {
		t.Fatalf("unexpected result %+v", got)
	}

	if body["model"] != "claude-test" {
		t.Fatalf("unexpected model in request: %v", body["model"])
	}
	raw, _ := json.Marshal(body["messages"])
	if !strings.Contains(string(raw), `"type":"image"`) || !strings.Contains(string(raw), "image/jpeg") {
		t.Fatalf("request must carry the image block: %s", raw)
	}
	if !strings.Contains(string(raw), "most prominent one") {
		t.Fatalf("request must carry the instruction: %s", raw)
	}
}

func TestRecognizeNonJSONReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageJSON("I cannot see a plate."))
	}))
	defer server.Close()

	e := New("sk-test", "claude-test")
	e.BaseURL = server.URL
	_, err := e.Recognize(context.Background(), []byte{1}, "image/png")
	if !errors.Is(err, plate.ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable, got %v", err)
	}
}

func TestRecognizeDoesNotRetry(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"overloaded"}}`)
	}))
	defer server.Close()

	e := New("sk-test", "claude-test")
	e.BaseURL = server.URL
	_, err := e.Recognize(context.Background(), []byte{1}, "image/png")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if errors.Is(err, plate.ErrUnparseable) {
		t.Fatal("transport errors must not be reported as parse errors")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected a single request, got %d", n)
	}
}

func TestRecognizeWithoutKey(t *testing.T) {
	if _, err := New("", "claude-test").Recognize(context.Background(), []byte{1}, "image/png"); err == nil {
		t.Fatal("expected error for empty API key")
	}
}
