package testkit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/config"
	"github.com/Developersbbs/Embedd-Mailer/internal/httpserver"
	"github.com/Developersbbs/Embedd-Mailer/internal/intake"
	"github.com/Developersbbs/Embedd-Mailer/internal/mailer"
	"github.com/Developersbbs/Embedd-Mailer/internal/spam"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const TestAuthSecret = "01234567890123456789012345678901"

type Server struct {
	DB      *gorm.DB
	Mail    *MailRecorder
	Service *intake.Service
	Config  config.Config
	HTTP    *httptest.Server
}

func NewServer(t testing.TB) *Server {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := OpenTestDB(t)
	cfg := config.Config{
		HTTPAddr:     "127.0.0.1:0",
		AuthSecret:   []byte(TestAuthSecret),
		AuthTokenTTL: time.Hour,
	}

	rec := &MailRecorder{}
	dispatcher := mailer.NewDispatcher(mailer.WithFactory(rec.Factory))
	svc := intake.NewService(db, spam.NewChecker(), dispatcher, nil, nil)

	srv := httpserver.New(cfg, svc, db, nil)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	return &Server{
		DB:      db,
		Mail:    rec,
		Service: svc,
		Config:  cfg,
		HTTP:    ts,
	}
}
