package query

import (
	"context"
	"net/http"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/metrics"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GET /api/:projectId/metrics/today
func MetricsTodayHandler(db *gorm.DB, recorder *metrics.RedisRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil {
			respondErr(c, http.StatusNotImplemented, "metrics not configured")
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		p, ok := ownedProject(c, ctx, db)
		if !ok {
			return
		}

		now := time.Now().UTC()
		today, ready, err := recorder.Today(ctx, p.ID, now)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		if !ready {
			respondErr(c, http.StatusNotImplemented, "metrics not ready")
			return
		}
		total, _, err := recorder.Total(ctx, p.ID)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondOK(c, gin.H{
			"project_id": p.ID,
			"date":       now.Format("2006-01-02"),
			"today":      today,
			"total":      total,
		})
	}
}

// GET /api/:projectId/metrics/series?from=&to=
func MetricsSeriesHandler(db *gorm.DB, recorder *metrics.RedisRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if recorder == nil {
			respondErr(c, http.StatusNotImplemented, "metrics not configured")
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		p, ok := ownedProject(c, ctx, db)
		if !ok {
			return
		}

		now := time.Now().UTC()
		from, fromOK := parseTime(c.Query("from"))
		to, toOK := parseTime(c.Query("to"))
		if !toOK {
			to = now
		}
		if !fromOK {
			from = to.AddDate(0, 0, -6)
		}

		buckets, err := recorder.Series(ctx, p.ID, from, to)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		if buckets == nil {
			buckets = []metrics.BucketCount{}
		}
		respondOK(c, gin.H{"project_id": p.ID, "items": buckets})
	}
}
