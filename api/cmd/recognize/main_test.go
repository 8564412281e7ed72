package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"alpd/api/internal/plate"
)

type stubRecognizer struct {
	byMIME map[string]plate.DetectionResult
	err    error
	mimes  []string
}

func (s *stubRecognizer) Recognize(_ context.Context, _ []byte, mime string) (plate.DetectionResult, error) {
	s.mimes = append(s.mimes, mime)
	if s.err != nil {
		return plate.DetectionResult{}, s.err
	}
	return s.byMIME[mime], nil
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestRunPrintsResults(t *testing.T) {
	dir := t.TempDir()
	jpg := writeFile(t, dir, "a.jpg", []byte{0xFF, 0xD8, 0xFF})
	png := writeFile(t, dir, "b.png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	rec := &stubRecognizer{byMIME: map[string]plate.DetectionResult{
		"image/jpeg": {PlateNumber: "JPG1"},
		"image/png":  {PlateNumber: "PNG1"},
	}}

	var out, errOut bytes.Buffer
	if code := run(context.Background(), rec, []string{jpg, png}, &out, &errOut); code != 0 {
		t.Fatalf("exit code %d, stderr=%s", code, errOut.String())
	}

	dec := json.NewDecoder(&out)
	var got []fileResult
	for dec.More() {
		var fr fileResult
		if err := dec.Decode(&fr); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, fr)
	}
	if len(got) != 2 || got[0].Result.PlateNumber != "JPG1" || got[1].Result.PlateNumber != "PNG1" {
		t.Fatalf("unexpected output %+v", got)
	}
}

func TestRunReportsFailures(t *testing.T) {
	dir := t.TempDir()
	jpg := writeFile(t, dir, "a.jpg", []byte{0xFF, 0xD8, 0xFF})
	rec := &stubRecognizer{err: errors.New("quota exceeded")}

	var out, errOut bytes.Buffer
	code := run(context.Background(), rec, []string{jpg, filepath.Join(dir, "missing.jpg")}, &out, &errOut)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "a.jpg: quota exceeded") {
		t.Fatalf("stderr missing engine error: %s", errOut.String())
	}
	if !strings.Contains(errOut.String(), "missing.jpg") {
		t.Fatalf("stderr missing read error: %s", errOut.String())
	}
	if out.Len() != 0 {
		t.Fatalf("unexpected stdout %s", out.String())
	}
}
