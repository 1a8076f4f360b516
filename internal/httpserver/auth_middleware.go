package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/auth"
	"github.com/Developersbbs/Embedd-Mailer/internal/model"
	"github.com/Developersbbs/Embedd-Mailer/internal/project"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const ctxUserIDKey = "user_id"

func RequireUser(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
		if token == "" {
			c.Status(http.StatusUnauthorized)
			c.Abort()
			return
		}

		claims, ok := auth.VerifyToken(secret, token, time.Now())
		if !ok {
			c.Status(http.StatusUnauthorized)
			c.Abort()
			return
		}
		c.Set(ctxUserIDKey, claims.UserID)
		c.Next()
	}
}

func userIDFromContext(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

func RequireProjectOwner(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.Status(http.StatusNotImplemented)
			c.Abort()
			return
		}
		uid, ok := userIDFromContext(c)
		if !ok {
			c.Status(http.StatusUnauthorized)
			c.Abort()
			return
		}
		pid, err := project.ParseID(c.Param("projectId"))
		if err != nil {
			c.Status(http.StatusBadRequest)
			c.Abort()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		var n int64
		if err := db.WithContext(ctx).Model(&model.Project{}).
			Where("id = ? AND owner_user_id = ?", pid, uid).
			Count(&n).Error; err != nil || n == 0 {
			c.Status(http.StatusNotFound)
			c.Abort()
			return
		}
		c.Next()
	}
}
