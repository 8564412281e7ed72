package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"alpd/api/internal/plate"
	"alpd/api/internal/util"
)

const maxRecentLimit = 100

// RecognitionRepo is the append-only log of successful recognitions.
// Engine and Model label every row written through it.
type RecognitionRepo struct {
	DB     *sql.DB
	Engine string
	Model  string
}

func NewRecognitionRepo(db *sql.DB, engine, model string) *RecognitionRepo {
	return &RecognitionRepo{DB: db, Engine: engine, Model: model}
}

type RecognitionRow struct {
	ID          string                `json:"id"`
	SessionID   string                `json:"sessionId"`
	Engine      string                `json:"engine"`
	Model       string                `json:"model"`
	ImageSHA256 string                `json:"imageSha256"`
	MIMEType    string                `json:"mimeType"`
	Result      plate.DetectionResult `json:"result"`
	CreatedAt   time.Time             `json:"createdAt"`
}

// Record stores one settled recognition under the repo's engine labels.
func (r *RecognitionRepo) Record(ctx context.Context, sessionID string, item plate.HistoryItem) error {
	return r.RecordAs(ctx, r.Engine, r.Model, sessionID, item)
}

// RecordAs stores one settled recognition. Only the image hash is kept, never the bytes.
func (r *RecognitionRepo) RecordAs(ctx context.Context, engine, model, sessionID string, item plate.HistoryItem) error {
	img, hint, err := util.DecodeBase64MaybeDataURL(item.ImageURL)
	if err != nil {
		return err
	}
	mime := util.PickMIME("", hint, img)
	js, _ := json.Marshal(item.Result)
	const q = `
insert into recognitions (
  id, session_id, engine, model, image_sha256, mime_type,
  plate_number, confidence, vehicle_description, region, result_json, created_at
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = r.DB.ExecContext(ctx, q,
		item.ID, sessionID, engine, model, util.SHA256Hex(img), mime,
		item.Result.PlateNumber, item.Result.Confidence, item.Result.VehicleDescription, item.Result.Region,
		js, item.Timestamp,
	)
	return err
}

// Recent returns up to limit rows, newest first. limit is clamped to [1, 100].
func (r *RecognitionRepo) Recent(ctx context.Context, limit int) ([]RecognitionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	const q = `
select id, session_id, engine, model, image_sha256, mime_type, result_json, created_at
from recognitions
order by created_at desc
limit $1`
	rows, err := r.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]RecognitionRow, 0, limit)
	for rows.Next() {
		var (
			row RecognitionRow
			js  []byte
		)
		if err := rows.Scan(&row.ID, &row.SessionID, &row.Engine, &row.Model,
			&row.ImageSHA256, &row.MIMEType, &js, &row.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(js, &row.Result); err != nil {
			// a broken row is skipped rather than failing the listing
			continue
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes rows older than olderThan and reports how many went.
func (r *RecognitionRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	const q = `delete from recognitions where created_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}

// Label returns "engine/model" for logs.
func (r *RecognitionRepo) Label() string {
	return strings.Trim(r.Engine+"/"+r.Model, "/")
}
