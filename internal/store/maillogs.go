package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Mail log events. One row is written per submission describing what happened
// to its notification mail.
const (
	MailEventDelivered = "delivered"
	MailEventBounced   = "bounced"
	MailEventBlocked   = "blocked"
	MailEventSpam      = "spam"
)

type NewMailLog struct {
	ProjectID int
	Event     string
	Status    string
	Subject   string
	Recipient string
	Meta      map[string]any
	CreatedAt time.Time
}

func InsertMailLog(ctx context.Context, db *gorm.DB, entry NewMailLog) error {
	if db == nil || entry.ProjectID <= 0 {
		return gorm.ErrInvalidDB
	}

	meta := entry.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	raw, _ := json.Marshal(meta)

	ts := entry.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	row := model.MailLog{
		ProjectID: entry.ProjectID,
		CreatedAt: ts.UTC(),
		Event:     strings.TrimSpace(entry.Event),
		Status:    entry.Status,
		Subject:   entry.Subject,
		Recipient: entry.Recipient,
		Meta:      datatypes.JSON(raw),
	}
	return db.WithContext(ctx).Create(&row).Error
}

// ListMailLogs returns rows for one project, newest first. event filters to a
// single event kind when non-empty; zero time bounds are ignored.
func ListMailLogs(ctx context.Context, db *gorm.DB, projectID int, event string, from, to time.Time, limit int) ([]model.MailLog, error) {
	if db == nil || projectID <= 0 {
		return nil, nil
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := db.WithContext(ctx).Where("project_id = ?", projectID)
	if event = strings.TrimSpace(event); event != "" {
		q = q.Where("event = ?", event)
	}
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("created_at <= ?", to.UTC())
	}

	var rows []model.MailLog
	err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func DeleteMailLogsBefore(ctx context.Context, db *gorm.DB, projectID int, before time.Time) (int64, error) {
	if db == nil {
		return 0, gorm.ErrInvalidDB
	}
	res := db.WithContext(ctx).
		Where("project_id = ? AND created_at < ?", projectID, before.UTC()).
		Delete(&model.MailLog{})
	return res.RowsAffected, res.Error
}

func DeleteMailLogsBeforeBatched(ctx context.Context, db *gorm.DB, projectID int, before time.Time, batchSize int) (int64, error) {
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
	res := db.WithContext(ctx).Exec(`
		WITH doomed AS (
			SELECT id FROM mail_logs
			WHERE project_id = ? AND created_at < ?
			ORDER BY created_at ASC
			LIMIT ?
		)
		DELETE FROM mail_logs WHERE id IN (SELECT id FROM doomed)
	`, projectID, before, batchSize)
	return res.RowsAffected, res.Error
}
