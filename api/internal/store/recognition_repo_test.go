package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"alpd/api/internal/plate"
	"alpd/api/internal/util"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRecordAndRecent(t *testing.T) {
	db := openTestDB(t)
	repo := NewRecognitionRepo(db, "gemini", "test-model")
	ctx := context.Background()

	img := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 1, 2, 3}
	item := plate.HistoryItem{
		ID:       uuid.NewString(),
		ImageURL: util.EncodeDataURL("image/png", img),
		Result: plate.DetectionResult{
			PlateNumber:        "KA-01-AB-1234",
			Confidence:         "High",
			VehicleDescription: "White hatchback",
			Region:             "Karnataka",
		},
		Timestamp: time.Now().Add(time.Hour),
	}
	if err := repo.Record(ctx, "sess-1", item); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rows, err := repo.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	got := rows[0]
	if got.ID != item.ID || got.SessionID != "sess-1" || got.Result != item.Result {
		t.Fatalf("unexpected row %+v", got)
	}
	if got.MIMEType != "image/png" || got.ImageSHA256 != util.SHA256Hex(img) {
		t.Fatalf("unexpected image metadata %+v", got)
	}
	if got.Engine != "gemini" || got.Model != "test-model" {
		t.Fatalf("unexpected engine labels %+v", got)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	db := openTestDB(t)
	repo := NewRecognitionRepo(db, "gemini", "test-model")
	ctx := context.Background()

	old := plate.HistoryItem{
		ID:        uuid.NewString(),
		ImageURL:  util.EncodeDataURL("image/jpeg", []byte{0xFF, 0xD8, 0xFF}),
		Result:    plate.DetectionResult{PlateNumber: "OLD1", Confidence: "Low", VehicleDescription: "Van"},
		Timestamp: time.Now().Add(-400 * 24 * time.Hour),
	}
	if err := repo.Record(ctx, "sess-2", old); err != nil {
		t.Fatalf("Record: %v", err)
	}
	n, err := repo.PurgeOlderThan(ctx, 365*24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if n < 1 {
		t.Fatalf("expected the old row to be purged, got %d", n)
	}
	if _, err := repo.PurgeOlderThan(ctx, 0); err == nil {
		t.Fatal("expected error for non-positive age")
	}
}

func TestRecordRejectsBadImage(t *testing.T) {
	repo := NewRecognitionRepo(nil, "gemini", "m")
	err := repo.Record(context.Background(), "s", plate.HistoryItem{ImageURL: "data:image/png;base64,"})
	if err == nil {
		t.Fatal("expected error for empty image payload")
	}
}

func TestLabel(t *testing.T) {
	if got := (&RecognitionRepo{Engine: "ollama", Model: "llava"}).Label(); got != "ollama/llava" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := (&RecognitionRepo{Engine: "gemini"}).Label(); got != "gemini" {
		t.Fatalf("unexpected label %q", got)
	}
}
