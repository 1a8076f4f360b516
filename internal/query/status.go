package query

import (
	"context"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/store"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SystemStatus string

const (
	SystemStatusUninitialized SystemStatus = "uninitialized"
	SystemStatusRunning       SystemStatus = "running"
	SystemStatusMaintenance   SystemStatus = "maintenance"
	SystemStatusException     SystemStatus = "exception"
)

// StatusResponse tells the dashboard which screen to show: the setup form
// while uninitialized, the login form once running, a banner otherwise.
type StatusResponse struct {
	Status      SystemStatus `json:"status"`
	Initialized bool         `json:"initialized"`
	AuthEnabled bool         `json:"auth_enabled"`
	Message     string       `json:"message,omitempty"`
}

func StatusHandler(db *gorm.DB, maintenanceMode bool, authEnabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		respondOK(c, systemStatus(ctx, db, maintenanceMode, authEnabled))
	}
}

func systemStatus(ctx context.Context, db *gorm.DB, maintenanceMode bool, authEnabled bool) StatusResponse {
	switch {
	case maintenanceMode:
		return StatusResponse{
			Status:      SystemStatusMaintenance,
			Initialized: true,
			AuthEnabled: authEnabled,
			Message:     "maintenance",
		}
	case db == nil:
		return StatusResponse{
			Status:      SystemStatusException,
			AuthEnabled: authEnabled,
			Message:     "database not configured",
		}
	case !authEnabled:
		return StatusResponse{
			Status:  SystemStatusException,
			Message: "AUTH_SECRET not configured",
		}
	}

	n, err := store.CountUsers(ctx, db)
	if err != nil {
		return StatusResponse{
			Status:      SystemStatusException,
			AuthEnabled: authEnabled,
			Message:     "database unavailable",
		}
	}
	if n == 0 {
		return StatusResponse{Status: SystemStatusUninitialized, AuthEnabled: authEnabled}
	}
	return StatusResponse{Status: SystemStatusRunning, Initialized: true, AuthEnabled: authEnabled}
}
