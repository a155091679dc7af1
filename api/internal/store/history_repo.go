package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

type HistoryRepo struct {
	DB      *sql.DB
	Dialect Dialect

	now func() time.Time
}

func NewHistoryRepo(db *sql.DB, d Dialect) *HistoryRepo {
	return &HistoryRepo{DB: db, Dialect: d, now: time.Now}
}

// NewRecord is one analysis to persist together with its upload.
type NewRecord struct {
	FileName   string
	Food       string
	Confidence float64
	Calories   int
	Protein    float64
	Carbs      float64
	Fat        float64
}

// SavedRecord carries the identifiers the database assigned.
type SavedRecord struct {
	UploadID  int64
	RecordID  int64
	CreatedAt time.Time
}

// HistoryRow is a nutrition record joined with its upload.
type HistoryRow struct {
	ID         int64
	CreatedAt  time.Time
	Food       string
	Calories   int
	Protein    float64
	Carbs      float64
	Fat        float64
	Confidence float64
	FileName   *string
}

// SaveAnalysis inserts the upload row and its nutrition record in one
// transaction.
func (r *HistoryRepo) SaveAnalysis(ctx context.Context, rec NewRecord) (SavedRecord, error) {
	now := r.clock().UTC()
	ts := now.Format(timeLayout)

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return SavedRecord{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var fileName any
	if rec.FileName != "" {
		fileName = rec.FileName
	}

	var out SavedRecord
	const qUpload = `insert into uploads (file_name, created_at) values (?, ?) returning id`
	if err := tx.QueryRowContext(ctx, rebind(r.Dialect, qUpload), fileName, ts).Scan(&out.UploadID); err != nil {
		return SavedRecord{}, fmt.Errorf("insert upload: %w", err)
	}

	const qRecord = `
insert into nutrition_records (upload_id, food_label, confidence, calories, proteins, carbs, fats, created_at)
values (?, ?, ?, ?, ?, ?, ?, ?)
returning id`
	err = tx.QueryRowContext(ctx, rebind(r.Dialect, qRecord),
		out.UploadID, rec.Food, rec.Confidence, rec.Calories, rec.Protein, rec.Carbs, rec.Fat, ts,
	).Scan(&out.RecordID)
	if err != nil {
		return SavedRecord{}, fmt.Errorf("insert record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return SavedRecord{}, fmt.Errorf("commit: %w", err)
	}

	// keep the precision that was stored
	out.CreatedAt, _ = time.Parse(timeLayout, ts)
	return out, nil
}

// List returns the latest limit records, newest first.
func (r *HistoryRepo) List(ctx context.Context, limit int) ([]HistoryRow, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}
	const q = `
select n.id, n.created_at, n.food_label, n.calories, n.proteins, n.carbs, n.fats, n.confidence, u.file_name
from nutrition_records n
join uploads u on u.id = n.upload_id
order by n.created_at desc, n.id desc
limit ?`
	rows, err := r.DB.QueryContext(ctx, rebind(r.Dialect, q), limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []HistoryRow{}
	for rows.Next() {
		var (
			row      HistoryRow
			ts       string
			fileName sql.NullString
		)
		if err := rows.Scan(&row.ID, &ts, &row.Food, &row.Calories, &row.Protein, &row.Carbs, &row.Fat,
			&row.Confidence, &fileName); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		row.CreatedAt, _ = time.Parse(timeLayout, ts)
		if fileName.Valid {
			s := fileName.String
			row.FileName = &s
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *HistoryRepo) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}
