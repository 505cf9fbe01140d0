package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iniwap/AIWriteX/internal/domain/model"
	"github.com/iniwap/AIWriteX/internal/domain/port/driven"
)

// Fixed-width so that lexical order of created_at is chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Compile-time interface satisfaction check.
var _ driven.HistoryStore = (*HistoryRepo)(nil)

// HistoryRepo is the SQLite implementation of the HistoryStore port.
type HistoryRepo struct {
	db  *DB
	now func() time.Time
}

// NewHistoryRepo creates a new HistoryRepo backed by the given DB.
func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db, now: time.Now}
}

// Record appends rec. A zero CreatedAt is stamped with the current time.
func (r *HistoryRepo) Record(ctx context.Context, rec model.PublishRecord) (int64, error) {
	const query = `
		INSERT INTO publish_records (
			run_id, article_path, account, appid_suffix, status, publish_id,
			url, success, failure_kind, message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	success := 0
	if rec.Success {
		success = 1
	}

	res, err := r.db.Writer.ExecContext(ctx, query,
		rec.RunID, rec.ArticlePath, rec.Account, rec.AppIDSuffix, string(rec.Status), rec.PublishID,
		rec.URL, success, string(rec.Kind), rec.Message, createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert publish record for %s: %w", rec.ArticlePath, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

const selectColumns = `
	SELECT id, run_id, article_path, account, appid_suffix, status, publish_id,
	       url, success, failure_kind, message, created_at
	FROM publish_records
`

// ListByArticle returns every record for articlePath, newest first.
func (r *HistoryRepo) ListByArticle(ctx context.Context, articlePath string) ([]model.PublishRecord, error) {
	rows, err := r.db.Reader.QueryContext(ctx,
		selectColumns+` WHERE article_path = ? ORDER BY created_at DESC, id DESC`, articlePath)
	if err != nil {
		return nil, fmt.Errorf("list publish records for %s: %w", articlePath, err)
	}
	return collect(rows)
}

// ListRecent returns up to limit records, newest first.
func (r *HistoryRepo) ListRecent(ctx context.Context, limit int) ([]model.PublishRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Reader.QueryContext(ctx,
		selectColumns+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent publish records: %w", err)
	}
	return collect(rows)
}

// LatestStatus reports published or failed according to the newest record,
// and unpublished when there is none.
func (r *HistoryRepo) LatestStatus(ctx context.Context, articlePath string) (model.ArticleStatus, error) {
	const query = `
		SELECT success FROM publish_records
		WHERE article_path = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var success int
	err := r.db.Reader.QueryRowContext(ctx, query, articlePath).Scan(&success)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ArticleStatusUnpublished, nil
	}
	if err != nil {
		return "", fmt.Errorf("latest status for %s: %w", articlePath, err)
	}

	if success != 0 {
		return model.ArticleStatusPublished, nil
	}
	return model.ArticleStatusFailed, nil
}

func collect(rows *sql.Rows) ([]model.PublishRecord, error) {
	defer rows.Close()

	records := []model.PublishRecord{}
	for rows.Next() {
		var rec model.PublishRecord
		var status, kind, createdAt string
		var success int

		if err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.ArticlePath, &rec.Account, &rec.AppIDSuffix, &status,
			&rec.PublishID, &rec.URL, &success, &kind, &rec.Message, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan publish record: %w", err)
		}

		rec.Status = model.PublishStatus(status)
		rec.Kind = model.FailureKind(kind)
		rec.Success = success != 0

		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		rec.CreatedAt = t

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate publish records: %w", err)
	}
	return records, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		timeLayout,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
