package query

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/model"
	"github.com/Developersbbs/Embedd-Mailer/internal/store"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type MailLogDTO struct {
	ID        int64           `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Event     string          `json:"event"`
	Status    string          `json:"status,omitempty"`
	Subject   string          `json:"subject,omitempty"`
	Recipient string          `json:"recipient,omitempty"`
	Meta      json.RawMessage `json:"meta"`
}

func mailLogDTO(m model.MailLog) MailLogDTO {
	meta := json.RawMessage(m.Meta)
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}
	return MailLogDTO{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		Event:     m.Event,
		Status:    m.Status,
		Subject:   m.Subject,
		Recipient: m.Recipient,
		Meta:      meta,
	}
}

// GET /api/:projectId/logs?event=&from=&to=&limit=
func ListMailLogsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			respondErr(c, http.StatusNotImplemented, "database not configured")
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		p, ok := ownedProject(c, ctx, db)
		if !ok {
			return
		}

		from, _ := parseTime(c.Query("from"))
		to, _ := parseTime(c.Query("to"))
		limit := parseLimit(c.Query("limit"), 100, 1000)

		rows, err := store.ListMailLogs(ctx, db, p.ID, c.Query("event"), from, to, limit)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		items := make([]MailLogDTO, 0, len(rows))
		for _, r := range rows {
			items = append(items, mailLogDTO(r))
		}
		respondOK(c, gin.H{"items": items})
	}
}

// DELETE /api/:projectId/logs/cleanup?before=RFC3339
func CleanupMailLogsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			respondErr(c, http.StatusNotImplemented, "database not configured")
			return
		}
		beforeRaw := strings.TrimSpace(c.Query("before"))
		if beforeRaw == "" {
			respondErr(c, http.StatusBadRequest, "before required")
			return
		}
		before, ok := parseTime(beforeRaw)
		if !ok {
			respondErr(c, http.StatusBadRequest, "invalid before")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		p, owned := ownedProject(c, ctx, db)
		if !owned {
			return
		}

		n, err := store.DeleteMailLogsBefore(ctx, db, p.ID, before)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondOK(c, gin.H{"deleted": n})
	}
}
