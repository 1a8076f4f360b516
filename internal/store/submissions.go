package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/model"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NewSubmission builds a row ready for insertion. The id is assigned here so
// callers can reference it before the row is written.
type NewSubmission struct {
	ProjectID    int
	Data         map[string]any
	IP           string
	UserAgent    string
	Referrer     string
	Country      string
	SpamDetected bool
	SpamReason   string
	CreatedAt    time.Time
}

func InsertSubmission(ctx context.Context, db *gorm.DB, sub NewSubmission) (uuid.UUID, error) {
	if db == nil || sub.ProjectID <= 0 {
		return uuid.Nil, gorm.ErrInvalidDB
	}

	data, _ := json.Marshal(sub.Data)
	ts := sub.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	row := model.Submission{
		ID:           uuid.New(),
		ProjectID:    sub.ProjectID,
		CreatedAt:    ts.UTC(),
		Data:         datatypes.JSON(data),
		IP:           sub.IP,
		UserAgent:    sub.UserAgent,
		Referrer:     sub.Referrer,
		Country:      sub.Country,
		SpamDetected: sub.SpamDetected,
		SpamReason:   sub.SpamReason,
	}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		return uuid.Nil, err
	}
	return row.ID, nil
}

// ListSubmissions returns rows for one project, newest first, optionally
// bounded by a time range. Zero time bounds are ignored.
func ListSubmissions(ctx context.Context, db *gorm.DB, projectID int, from, to time.Time, limit int) ([]model.Submission, error) {
	if db == nil || projectID <= 0 {
		return nil, nil
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := db.WithContext(ctx).Where("project_id = ?", projectID)
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("created_at <= ?", to.UTC())
	}

	var rows []model.Submission
	err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func DeleteSubmissionsBefore(ctx context.Context, db *gorm.DB, projectID int, before time.Time) (int64, error) {
	if db == nil {
		return 0, gorm.ErrInvalidDB
	}
	res := db.WithContext(ctx).
		Where("project_id = ? AND created_at < ?", projectID, before.UTC()).
		Delete(&model.Submission{})
	return res.RowsAffected, res.Error
}

func DeleteSubmissionsBeforeBatched(ctx context.Context, db *gorm.DB, projectID int, before time.Time, batchSize int) (int64, error) {
	if db == nil {
		return 0, gorm.ErrInvalidDB
	}
	if projectID <= 0 {
		return 0, gorm.ErrInvalidData
	}
	if batchSize <= 0 {
		batchSize = 5000
	}

	before = before.UTC()
	// Use a subquery to limit deletion size and keep transactions short.
	// Works on Postgres and SQLite.
	res := db.WithContext(ctx).Exec(`
		WITH doomed AS (
			SELECT id FROM submissions
			WHERE project_id = ? AND created_at < ?
			ORDER BY created_at ASC
			LIMIT ?
		)
		DELETE FROM submissions WHERE id IN (SELECT id FROM doomed)
	`, projectID, before, batchSize)
	return res.RowsAffected, res.Error
}
