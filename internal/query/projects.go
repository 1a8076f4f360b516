package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/model"
	"github.com/Developersbbs/Embedd-Mailer/internal/project"
	"github.com/Developersbbs/Embedd-Mailer/internal/schema"
	"github.com/Developersbbs/Embedd-Mailer/internal/store"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProjectDTO is the dashboard view of a project. The SMTP password never
// leaves the server; only its presence is reported.
type ProjectDTO struct {
	ID              int             `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	APIKey          string          `json:"api_key"`
	AllowedOrigins  json.RawMessage `json:"allowed_origins"`
	HoneypotField   string          `json:"honeypot_field"`
	Fields          json.RawMessage `json:"fields"`
	SMTPHost        string          `json:"smtp_host"`
	SMTPPort        int             `json:"smtp_port"`
	SMTPSecure      bool            `json:"smtp_secure"`
	SMTPUsername    string          `json:"smtp_username"`
	SMTPPasswordSet bool            `json:"smtp_password_set"`
	FromEmail       string          `json:"from_email"`
	ToEmail         string          `json:"to_email"`
	CCEmail         string          `json:"cc_email"`
	RetentionDays   int             `json:"retention_days"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func projectDTO(p model.Project) ProjectDTO {
	origins := json.RawMessage(p.AllowedOrigins)
	if len(origins) == 0 {
		origins = json.RawMessage(`[]`)
	}
	fields := json.RawMessage(p.Fields)
	if len(fields) == 0 {
		fields = json.RawMessage(`[]`)
	}
	return ProjectDTO{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		APIKey:          p.APIKey,
		AllowedOrigins:  origins,
		HoneypotField:   p.HoneypotField,
		Fields:          fields,
		SMTPHost:        p.SMTPHost,
		SMTPPort:        p.SMTPPort,
		SMTPSecure:      p.SMTPSecure,
		SMTPUsername:    p.SMTPUsername,
		SMTPPasswordSet: p.SMTPPassword != "",
		FromEmail:       p.FromEmail,
		ToEmail:         p.ToEmail,
		CCEmail:         p.CCEmail,
		RetentionDays:   p.RetentionDays,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// ownedProject loads the project from the path parameter and enforces that
// it belongs to the authenticated user. It writes the error response itself
// and reports ok=false when the handler should stop.
func ownedProject(c *gin.Context, ctx context.Context, db *gorm.DB) (model.Project, bool) {
	uid := userIDFromGin(c)
	if uid <= 0 {
		respondErr(c, http.StatusUnauthorized, "unauthorized")
		return model.Project{}, false
	}
	id, err := project.ParseID(c.Param("projectId"))
	if err != nil {
		respondErr(c, http.StatusBadRequest, err.Error())
		return model.Project{}, false
	}
	p, ok, err := store.GetProjectByID(ctx, db, id)
	if err != nil {
		respondErr(c, http.StatusServiceUnavailable, err.Error())
		return model.Project{}, false
	}
	if !ok || p.OwnerUserID != uid {
		respondErr(c, http.StatusNotFound, "not found")
		return model.Project{}, false
	}
	return p, true
}

func ListProjectsHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			respondErr(c, http.StatusNotImplemented, "database not configured")
			return
		}
		uid := userIDFromGin(c)
		if uid <= 0 {
			respondErr(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		items, err := store.ListProjectsByOwner(ctx, db, uid)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondOK(c, gin.H{"items": items})
	}
}

func CreateProjectHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			respondErr(c, http.StatusNotImplemented, "database not configured")
			return
		}
		uid := userIDFromGin(c)
		if uid <= 0 {
			respondErr(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, http.StatusBadRequest, err.Error())
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		p, err := store.CreateProject(ctx, db, uid, req.Name, req.Description)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondOK(c, p)
	}
}

func GetProjectHandler(db *gorm.DB) gin.HandlerFunc {
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
		respondOK(c, projectDTO(p))
	}
}

type updateProjectRequest struct {
	Name           *string          `json:"name"`
	Description    *string          `json:"description"`
	AllowedOrigins *[]string        `json:"allowed_origins"`
	HoneypotField  *string          `json:"honeypot_field"`
	Fields         *json.RawMessage `json:"fields"`
	SMTPHost       *string          `json:"smtp_host"`
	SMTPPort       *int             `json:"smtp_port"`
	SMTPSecure     *bool            `json:"smtp_secure"`
	SMTPUsername   *string          `json:"smtp_username"`
	SMTPPassword   *string          `json:"smtp_password"`
	FromEmail      *string          `json:"from_email"`
	ToEmail        *string          `json:"to_email"`
	CCEmail        *string          `json:"cc_email"`
	RetentionDays  *int             `json:"retention_days"`
}

// buildUpdates turns the patch request into a column map. Only keys present
// in the request are touched.
func (r updateProjectRequest) buildUpdates() (map[string]any, error) {
	updates := map[string]any{}

	if r.Name != nil {
		updates["name"] = firstNonEmpty(*r.Name, "Untitled")
	}
	if r.Description != nil {
		updates["description"] = *r.Description
	}
	if r.AllowedOrigins != nil {
		raw, err := json.Marshal(*r.AllowedOrigins)
		if err != nil {
			return nil, err
		}
		updates["allowed_origins"] = raw
	}
	if r.HoneypotField != nil {
		updates["honeypot_field"] = *r.HoneypotField
	}
	if r.Fields != nil {
		fields, err := schema.DecodeFields(*r.Fields)
		if err != nil {
			return nil, fmt.Errorf("invalid fields: %w", err)
		}
		for _, f := range fields {
			if f.ID == "" || f.Label == "" {
				return nil, fmt.Errorf("invalid fields: id and label required")
			}
			switch f.Type {
			case schema.FieldText, schema.FieldEmail, schema.FieldNumber, schema.FieldTextarea,
				schema.FieldCheckbox, schema.FieldSelect, schema.FieldDate, schema.FieldTime:
			default:
				return nil, fmt.Errorf("invalid fields: unknown type %q", f.Type)
			}
		}
		raw, _ := json.Marshal(fields)
		updates["fields"] = raw
	}
	if r.SMTPHost != nil {
		updates["smtp_host"] = *r.SMTPHost
	}
	if r.SMTPPort != nil {
		if *r.SMTPPort < 0 || *r.SMTPPort > 65535 {
			return nil, fmt.Errorf("invalid smtp_port")
		}
		updates["smtp_port"] = *r.SMTPPort
	}
	if r.SMTPSecure != nil {
		updates["smtp_secure"] = *r.SMTPSecure
	}
	if r.SMTPUsername != nil {
		updates["smtp_username"] = *r.SMTPUsername
	}
	if r.SMTPPassword != nil {
		updates["smtp_password"] = *r.SMTPPassword
	}
	if r.FromEmail != nil {
		updates["from_email"] = *r.FromEmail
	}
	if r.ToEmail != nil {
		updates["to_email"] = *r.ToEmail
	}
	if r.CCEmail != nil {
		updates["cc_email"] = *r.CCEmail
	}
	if r.RetentionDays != nil {
		if *r.RetentionDays < 0 {
			return nil, fmt.Errorf("invalid retention_days")
		}
		updates["retention_days"] = *r.RetentionDays
	}
	return updates, nil
}

func UpdateProjectHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			respondErr(c, http.StatusNotImplemented, "database not configured")
			return
		}
		var req updateProjectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErr(c, http.StatusBadRequest, err.Error())
			return
		}
		updates, err := req.buildUpdates()
		if err != nil {
			respondErr(c, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		p, ok := ownedProject(c, ctx, db)
		if !ok {
			return
		}

		if err := store.UpdateProjectSettings(ctx, db, p.ID, updates); err != nil {
			respondErr(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		fresh, _, err := store.GetProjectByID(ctx, db, p.ID)
		if err != nil {
			respondErr(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondOK(c, projectDTO(fresh))
	}
}

func DeleteProjectHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			respondErr(c, http.StatusNotImplemented, "database not configured")
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		p, ok := ownedProject(c, ctx, db)
		if !ok {
			return
		}
		if err := store.DeleteProjectCascade(ctx, db, p.ID); err != nil {
			respondErr(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondOK(c, gin.H{"deleted": true})
	}
}
