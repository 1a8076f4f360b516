package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/Developersbbs/Embedd-Mailer/internal/model"
	"github.com/Developersbbs/Embedd-Mailer/internal/project"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type ProjectRow struct {
	ID          int    `json:"id"`
	OwnerUserID int64  `json:"owner_user_id"`
	Name        string `json:"name"`
	APIKey      string `json:"api_key"`
}

func ListProjectsByOwner(ctx context.Context, db *gorm.DB, ownerUserID int64) ([]ProjectRow, error) {
	if db == nil || ownerUserID <= 0 {
		return nil, nil
	}
	var rows []model.Project
	if err := db.WithContext(ctx).
		Where("owner_user_id = ?", ownerUserID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ProjectRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, ProjectRow{ID: r.ID, OwnerUserID: r.OwnerUserID, Name: r.Name, APIKey: r.APIKey})
	}
	return out, nil
}

func CreateProject(ctx context.Context, db *gorm.DB, ownerUserID int64, name string, description string) (ProjectRow, error) {
	if db == nil || ownerUserID <= 0 {
		return ProjectRow{}, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled"
	}
	if len(name) > 200 {
		name = name[:200]
	}

	key, err := newAPIKey()
	if err != nil {
		return ProjectRow{}, err
	}

	p := model.Project{OwnerUserID: ownerUserID, Name: name, Description: strings.TrimSpace(description), APIKey: key}
	err = db.WithContext(ctx).Create(&p).Error
	if err != nil {
		// Retry once only if it looks like a key collision.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			key2, err2 := newAPIKey()
			if err2 != nil {
				return ProjectRow{}, err
			}
			p2 := model.Project{OwnerUserID: ownerUserID, Name: name, Description: p.Description, APIKey: key2}
			if err := db.WithContext(ctx).Create(&p2).Error; err != nil {
				return ProjectRow{}, err
			}
			return ProjectRow{ID: p2.ID, OwnerUserID: p2.OwnerUserID, Name: p2.Name, APIKey: p2.APIKey}, nil
		}
		return ProjectRow{}, err
	}
	return ProjectRow{ID: p.ID, OwnerUserID: p.OwnerUserID, Name: p.Name, APIKey: p.APIKey}, nil
}

func GetProjectByID(ctx context.Context, db *gorm.DB, id int) (model.Project, bool, error) {
	if db == nil || id <= 0 {
		return model.Project{}, false, nil
	}
	var p model.Project
	err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Project{}, false, nil
		}
		return model.Project{}, false, err
	}
	return p, true, nil
}

// FindProjectByKeyOrID resolves the path segment of a public submit URL,
// which may be either the project's API key or its numeric id.
func FindProjectByKeyOrID(ctx context.Context, db *gorm.DB, identifier string) (model.Project, bool, error) {
	if db == nil {
		return model.Project{}, false, nil
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return model.Project{}, false, nil
	}

	if project.IsKey(identifier) {
		var p model.Project
		err := db.WithContext(ctx).Where("api_key = ?", identifier).First(&p).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.Project{}, false, nil
			}
			return model.Project{}, false, err
		}
		return p, true, nil
	}

	id, err := project.ParseID(identifier)
	if err != nil {
		return model.Project{}, false, nil
	}
	return GetProjectByID(ctx, db, id)
}

// UpdateProjectSettings applies a column update map built by the handler.
// The API key is immutable; strip it here so no caller can rotate it by
// accident.
func UpdateProjectSettings(ctx context.Context, db *gorm.DB, projectID int, updates map[string]any) error {
	if db == nil || projectID <= 0 || len(updates) == 0 {
		return nil
	}
	delete(updates, "api_key")
	return db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", projectID).
		Updates(updates).Error
}

// DeleteProjectCascade removes a project together with its submissions and
// mail logs in one transaction.
func DeleteProjectCascade(ctx context.Context, db *gorm.DB, projectID int) error {
	if db == nil || projectID <= 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&model.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&model.MailLog{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", projectID).Delete(&model.Project{}).Error
	})
}

func newAPIKey() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return project.KeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}
