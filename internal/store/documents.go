package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ai-integration/internal/database"
	"ai-integration/internal/models"
)

// DocumentStore persists records of any entity type as JSON.
type DocumentStore struct {
	db *gorm.DB
}

// NewDocumentStore creates a DocumentStore.
func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Put creates or replaces the document (entityType, name).
func (s *DocumentStore) Put(ctx context.Context, entityType, name string, data map[string]interface{}) (models.Document, error) {
	if entityType == "" || name == "" {
		return models.Document{}, models.NewValidationError("name", "document type and name are required")
	}
	doc := models.Document{
		ID:         uuid.New(),
		EntityType: entityType,
		Name:       name,
		Data:       datatypes.JSONMap(data),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_type"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return models.Document{}, database.Translate(err, "document "+entityType+" "+name)
	}
	return s.Get(ctx, entityType, name)
}

// Get loads one document.
func (s *DocumentStore) Get(ctx context.Context, entityType, name string) (models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).Where("entity_type = ? AND name = ?", entityType, name).First(&doc).Error
	if err != nil {
		return models.Document{}, database.Translate(err, "document "+entityType+" "+name)
	}
	return doc, nil
}

// List returns the documents of entityType in creation order.
func (s *DocumentStore) List(ctx context.Context, entityType string) ([]models.Document, error) {
	var docs []models.Document
	err := s.db.WithContext(ctx).Where("entity_type = ?", entityType).Order("created_at ASC, name ASC").Find(&docs).Error
	if err != nil {
		return nil, database.Translate(err, "documents of "+entityType)
	}
	return docs, nil
}

// Delete removes one document.
func (s *DocumentStore) Delete(ctx context.Context, entityType, name string) error {
	res := s.db.WithContext(ctx).Where("entity_type = ? AND name = ?", entityType, name).Delete(&models.Document{})
	if res.Error != nil {
		return database.Translate(res.Error, "document "+entityType+" "+name)
	}
	if res.RowsAffected == 0 {
		return models.NotFoundf("document %s %s", entityType, name)
	}
	return nil
}
