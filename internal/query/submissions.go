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

type SubmissionDTO struct {
	ID           string          `json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	Data         json.RawMessage `json:"data"`
	IP           string          `json:"ip"`
	UserAgent    string          `json:"user_agent,omitempty"`
	Referrer     string          `json:"referrer,omitempty"`
	Country      string          `json:"country,omitempty"`
	SpamDetected bool            `json:"spam_detected"`
	SpamReason   string          `json:"spam_reason,omitempty"`
}

func submissionDTO(s model.Submission) SubmissionDTO {
	return SubmissionDTO{
		ID:           s.ID.String(),
		CreatedAt:    s.CreatedAt,
		Data:         json.RawMessage(s.Data),
		IP:           s.IP,
		UserAgent:    s.UserAgent,
		Referrer:     s.Referrer,
		Country:      s.Country,
		SpamDetected: s.SpamDetected,
		SpamReason:   s.SpamReason,
	}
}

// GET /api/:projectId/submissions?from=&to=&limit=
func ListSubmissionsHandler(db *gorm.DB) gin.HandlerFunc {
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

		rows, err := store.ListSubmissions(ctx, db, p.ID, from, to, limit)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		items := make([]SubmissionDTO, 0, len(rows))
		for _, r := range rows {
			items = append(items, submissionDTO(r))
		}
		respondOK(c, gin.H{"items": items})
	}
}

// DELETE /api/:projectId/submissions/cleanup?before=RFC3339
func CleanupSubmissionsHandler(db *gorm.DB) gin.HandlerFunc {
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

		n, err := store.DeleteSubmissionsBefore(ctx, db, p.ID, before)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondOK(c, gin.H{"deleted": n})
	}
}
