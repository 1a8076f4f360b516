package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex;column:email"`
	PasswordHash string    `gorm:"type:text;not null;column:password_hash"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime;column:created_at"`
}

func (User) TableName() string { return "users" }

// Project carries everything the intake pipeline needs for one tenant form:
// the allow-list, the honeypot field name, the form schema and the SMTP
// target the submission is forwarded through.
type Project struct {
	ID             int            `gorm:"primaryKey;autoIncrement;column:id"`
	OwnerUserID    int64          `gorm:"not null;index;column:owner_user_id"`
	Name           string         `gorm:"type:varchar(200);not null;column:name"`
	Description    string         `gorm:"type:text;column:description"`
	APIKey         string         `gorm:"type:varchar(80);not null;uniqueIndex;column:api_key"`
	AllowedOrigins datatypes.JSON `gorm:"type:jsonb;not null;default:'[]';column:allowed_origins"`
	HoneypotField  string         `gorm:"type:varchar(100);column:honeypot_field"`
	Fields         datatypes.JSON `gorm:"type:jsonb;not null;default:'[]';column:fields"`
	SMTPHost       string         `gorm:"type:varchar(255);column:smtp_host"`
	SMTPPort       int            `gorm:"column:smtp_port"`
	SMTPSecure     bool           `gorm:"not null;default:false;column:smtp_secure"`
	SMTPUsername   string         `gorm:"type:varchar(255);column:smtp_username"`
	SMTPPassword   string         `gorm:"type:text;column:smtp_password"`
	FromEmail      string         `gorm:"type:varchar(255);column:from_email"`
	ToEmail        string         `gorm:"type:varchar(255);column:to_email"`
	CCEmail        string         `gorm:"type:varchar(255);column:cc_email"`
	RetentionDays  int            `gorm:"not null;default:0;column:retention_days"`
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime;column:created_at"`
	UpdatedAt      time.Time      `gorm:"not null;autoUpdateTime;column:updated_at"`
}

func (Project) TableName() string { return "projects" }

type Submission struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey;column:id"`
	ProjectID    int            `gorm:"not null;index:idx_submissions_project_ts,priority:1;column:project_id"`
	CreatedAt    time.Time      `gorm:"not null;index:idx_submissions_project_ts,priority:2,sort:desc;column:created_at"`
	Data         datatypes.JSON `gorm:"type:jsonb;not null;column:data"`
	IP           string         `gorm:"type:varchar(64);column:ip"`
	UserAgent    string         `gorm:"type:text;column:user_agent"`
	Referrer     string         `gorm:"type:text;column:referrer"`
	Country      string         `gorm:"type:varchar(8);column:country"`
	SpamDetected bool           `gorm:"not null;default:false;column:spam_detected"`
	SpamReason   string         `gorm:"type:text;column:spam_reason"`
}

func (Submission) TableName() string { return "submissions" }

type MailLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement;column:id"`
	ProjectID int            `gorm:"not null;index:idx_mail_logs_project_ts,priority:1;column:project_id"`
	CreatedAt time.Time      `gorm:"not null;index:idx_mail_logs_project_ts,priority:2,sort:desc;column:created_at"`
	Event     string         `gorm:"type:varchar(40);not null;column:event"`
	Status    string         `gorm:"type:text;column:status"`
	Subject   string         `gorm:"type:text;column:subject"`
	Recipient string         `gorm:"type:varchar(255);column:recipient"`
	Meta      datatypes.JSON `gorm:"type:jsonb;not null;default:'{}';column:meta"`
}

func (MailLog) TableName() string { return "mail_logs" }
