package migrate

import (
	"context"

	"github.com/Developersbbs/Embedd-Mailer/internal/model"
	"gorm.io/gorm"
)

func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	gdb := db.WithContext(ctx)
	if err := gdb.AutoMigrate(&model.User{}, &model.Project{}, &model.Submission{}, &model.MailLog{}); err != nil {
		return err
	}

	// GIN indexes for JSONB.
	if err := gdb.Exec(`CREATE INDEX IF NOT EXISTS idx_submissions_data ON submissions USING GIN (data)`).Error; err != nil {
		return err
	}
	if err := gdb.Exec(`CREATE INDEX IF NOT EXISTS idx_mail_logs_meta ON mail_logs USING GIN (meta)`).Error; err != nil {
		return err
	}

	return nil
}
