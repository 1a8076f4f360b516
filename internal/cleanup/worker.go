package cleanup

import (
	"context"
	"log"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/model"
	"github.com/Developersbbs/Embedd-Mailer/internal/store"
	"gorm.io/gorm"
)

// Worker prunes submissions and mail logs past each project's
// retention_days. Projects with retention_days of zero keep everything.
type Worker struct {
	DB              *gorm.DB
	Interval        time.Duration
	DeleteBatchSize int
	MaxBatches      int
	BatchSleep      time.Duration
}

func NewWorker(db *gorm.DB) *Worker {
	return &Worker{
		DB:              db,
		Interval:        10 * time.Minute,
		DeleteBatchSize: 5000,
		MaxBatches:      50,
		BatchSleep:      0,
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.DB == nil {
		return
	}
	_ = w.runOnce(ctx)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	var projects []model.Project
	if err := w.DB.WithContext(runCtx).
		Where("retention_days > 0").
		Order("id ASC").
		Find(&projects).Error; err != nil {
		log.Printf("cleanup: list projects: %v", err)
		return err
	}

	for _, p := range projects {
		projectCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		err := w.pruneProject(projectCtx, p.ID, p.RetentionDays)
		cancel()
		if err != nil {
			log.Printf("cleanup: project=%d: %v", p.ID, err)
		}
	}
	return nil
}

func (w *Worker) pruneProject(ctx context.Context, projectID int, retentionDays int) error {
	before := time.Now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	if err := w.pruneBatched(ctx, before, func(batch int) (int64, error) {
		return store.DeleteSubmissionsBeforeBatched(ctx, w.DB, projectID, before, batch)
	}); err != nil {
		return err
	}
	return w.pruneBatched(ctx, before, func(batch int) (int64, error) {
		return store.DeleteMailLogsBeforeBatched(ctx, w.DB, projectID, before, batch)
	})
}

func (w *Worker) pruneBatched(ctx context.Context, before time.Time, del func(batch int) (int64, error)) error {
	maxBatches := w.MaxBatches
	if maxBatches <= 0 {
		maxBatches = 1
	}
	batchSize := w.DeleteBatchSize
	if batchSize <= 0 {
		batchSize = 5000
	}

	for i := 0; i < maxBatches; i++ {
		n, err := del(batchSize)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if w.BatchSleep > 0 {
			time.Sleep(w.BatchSleep)
		}
	}
	return nil
}
