package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ai-integration/internal/database"
	"ai-integration/internal/models"
)

// TemplateStore persists message context templates with their rows.
type TemplateStore struct {
	db *gorm.DB
}

// NewTemplateStore creates a TemplateStore.
func NewTemplateStore(db *gorm.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

func preloadTemplate(db *gorm.DB) *gorm.DB {
	byIdx := func(db *gorm.DB) *gorm.DB { return db.Order("idx ASC") }
	return db.
		Preload("TextFormat", byIdx).
		Preload("ReferenceTargets", byIdx).
		Preload("ContextChildren")
}

// assignRowIDs gives every row an id, a template id and a 1-based index.
func assignRowIDs(tmpl *models.MessageContextTemplate) {
	for i := range tmpl.TextFormat {
		row := &tmpl.TextFormat[i]
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		row.TemplateID = tmpl.ID
		row.Idx = i + 1
	}
	for i := range tmpl.ReferenceTargets {
		ref := &tmpl.ReferenceTargets[i]
		if ref.ID == uuid.Nil {
			ref.ID = uuid.New()
		}
		ref.TemplateID = tmpl.ID
		ref.Idx = i + 1
	}
	for i := range tmpl.ContextChildren {
		child := &tmpl.ContextChildren[i]
		if child.ID == uuid.Nil {
			child.ID = uuid.New()
		}
		child.TemplateID = tmpl.ID
	}
}

// Create inserts tmpl and its rows.
func (s *TemplateStore) Create(ctx context.Context, tmpl *models.MessageContextTemplate) error {
	if tmpl.Name == "" {
		return models.NewValidationError("name", "template name cannot be empty")
	}
	if tmpl.ID == uuid.Nil {
		tmpl.ID = uuid.New()
	}
	assignRowIDs(tmpl)
	return database.Translate(s.db.WithContext(ctx).Create(tmpl).Error, "template "+tmpl.Name)
}

// Get loads a template with its rows in order.
func (s *TemplateStore) Get(ctx context.Context, id uuid.UUID) (*models.MessageContextTemplate, error) {
	var tmpl models.MessageContextTemplate
	if err := preloadTemplate(s.db.WithContext(ctx)).First(&tmpl, "id = ?", id).Error; err != nil {
		return nil, database.Translate(err, "template "+id.String())
	}
	return &tmpl, nil
}

// GetByName loads a template by its unique name.
func (s *TemplateStore) GetByName(ctx context.Context, name string) (*models.MessageContextTemplate, error) {
	var tmpl models.MessageContextTemplate
	if err := preloadTemplate(s.db.WithContext(ctx)).First(&tmpl, "name = ?", name).Error; err != nil {
		return nil, database.Translate(err, "template "+name)
	}
	return &tmpl, nil
}

// List returns all templates ordered by name, without rows.
func (s *TemplateStore) List(ctx context.Context) ([]models.MessageContextTemplate, error) {
	var list []models.MessageContextTemplate
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&list).Error; err != nil {
		return nil, database.Translate(err, "templates")
	}
	return list, nil
}

// Save updates tmpl and replaces all of its rows.
func (s *TemplateStore) Save(ctx context.Context, tmpl *models.MessageContextTemplate) error {
	assignRowIDs(tmpl)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.MessageContextTemplate{}).Where("id = ?", tmpl.ID).Updates(map[string]interface{}{
			"name":               tmpl.Name,
			"target_doctype":     tmpl.TargetDoctype,
			"system_prompt":      tmpl.SystemPrompt,
			"user_prompt":        tmpl.UserPrompt,
			"selected_model":     tmpl.SelectedModel,
			"selected_gpt_model": tmpl.SelectedGPTModel,
			"client_credentials": tmpl.ClientCredentials,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		for _, model := range []interface{}{&models.TextFormatRow{}, &models.ReferenceTarget{}, &models.ContextChild{}} {
			if err := tx.Where("template_id = ?", tmpl.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		if len(tmpl.TextFormat) > 0 {
			if err := tx.Create(&tmpl.TextFormat).Error; err != nil {
				return err
			}
		}
		if len(tmpl.ReferenceTargets) > 0 {
			if err := tx.Create(&tmpl.ReferenceTargets).Error; err != nil {
				return err
			}
		}
		if len(tmpl.ContextChildren) > 0 {
			if err := tx.Create(&tmpl.ContextChildren).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return database.Translate(err, "template "+tmpl.Name)
}

// SetSelectedModels persists only the two model selections.
func (s *TemplateStore) SetSelectedModels(ctx context.Context, id uuid.UUID, primary, secondary string) error {
	res := s.db.WithContext(ctx).Model(&models.MessageContextTemplate{}).Where("id = ?", id).Updates(map[string]interface{}{
		"selected_model":     primary,
		"selected_gpt_model": secondary,
	})
	if res.Error != nil {
		return database.Translate(res.Error, "template "+id.String())
	}
	if res.RowsAffected == 0 {
		return models.NotFoundf("template %s", id)
	}
	return nil
}

// Delete removes a template and its rows.
func (s *TemplateStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.TextFormatRow{}, &models.ReferenceTarget{}, &models.ContextChild{}} {
			if err := tx.Where("template_id = ?", id).Delete(model).Error; err != nil {
				return database.Translate(err, "template rows")
			}
		}
		res := tx.Delete(&models.MessageContextTemplate{}, "id = ?", id)
		if res.Error != nil {
			return database.Translate(res.Error, "template "+id.String())
		}
		if res.RowsAffected == 0 {
			return models.NotFoundf("template %s", id)
		}
		return nil
	})
}
