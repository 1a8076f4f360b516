package httpserver

import (
	"net/http"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/config"
	"github.com/Developersbbs/Embedd-Mailer/internal/intake"
	"github.com/Developersbbs/Embedd-Mailer/internal/metrics"
	"github.com/Developersbbs/Embedd-Mailer/internal/openapi"
	"github.com/Developersbbs/Embedd-Mailer/internal/query"
	"github.com/gin-gonic/gin"
	swgui "github.com/swaggest/swgui/v3"
	"gorm.io/gorm"
)

func New(cfg config.Config, svc *intake.Service, db *gorm.DB, recorder *metrics.RedisRecorder) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(maintenanceMiddleware(cfg.MaintenanceMode))

	router.GET("/openapi.json", func(c *gin.Context) { c.JSON(http.StatusOK, openapi.Spec()) })
	router.GET("/docs/*any", gin.WrapH(swgui.New("Embedd Mailer API", "/openapi.json", "/docs")))

	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	authEnabled := db != nil && len(cfg.AuthSecret) > 0

	apiRoot := router.Group("/api")
	{
		apiRoot.GET("/status", query.StatusHandler(db, cfg.MaintenanceMode, len(cfg.AuthSecret) > 0))

		// Public intake endpoint. The :project segment is an API key or a
		// numeric project id; there is no auth beyond that.
		if svc != nil {
			apiRoot.POST("/submit/:project", intake.SubmitHandler(svc))
		}

		if db != nil {
			apiRoot.POST("/auth/bootstrap", query.BootstrapHandler(db, cfg.AuthSecret, cfg.AuthTokenTTL))
			apiRoot.POST("/auth/login", query.LoginHandler(db, cfg.AuthSecret, cfg.AuthTokenTTL))
			if authEnabled {
				authed := apiRoot.Group("")
				authed.Use(RequireUser(cfg.AuthSecret))
				authed.GET("/me", query.MeHandler(db))
				authed.GET("/projects", query.ListProjectsHandler(db))
				authed.POST("/projects", query.CreateProjectHandler(db))
				authed.GET("/projects/:projectId", query.GetProjectHandler(db))
				authed.PATCH("/projects/:projectId", query.UpdateProjectHandler(db))
				authed.DELETE("/projects/:projectId", query.DeleteProjectHandler(db))
			}
		}
	}

	queryAPI := router.Group("/api/:projectId")
	if authEnabled {
		queryAPI.Use(RequireUser(cfg.AuthSecret), RequireProjectOwner(db))
	}
	{
		if db != nil {
			queryAPI.GET("/submissions", query.ListSubmissionsHandler(db))
			queryAPI.DELETE("/submissions/cleanup", query.CleanupSubmissionsHandler(db))
			queryAPI.GET("/logs", query.ListMailLogsHandler(db))
			queryAPI.DELETE("/logs/cleanup", query.CleanupMailLogsHandler(db))
		}
		if recorder != nil {
			queryAPI.GET("/metrics/today", query.MetricsTodayHandler(db, recorder))
			queryAPI.GET("/metrics/series", query.MetricsSeriesHandler(db, recorder))
		}
	}

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
