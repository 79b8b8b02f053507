package metadata

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ai-integration/internal/database"
	"ai-integration/internal/models"
)

// DBStore persists entity types and fields with gorm.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore creates a DBStore on an already migrated database.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// CreateEntityType inserts an entity type and its initial fields in one transaction.
func (s *DBStore) CreateEntityType(ctx context.Context, req models.CreateEntityTypeRequest) (models.EntityType, error) {
	if req.Name == "" {
		return models.EntityType{}, models.NewValidationError("name", "entity type name cannot be empty")
	}
	for _, f := range req.Fields {
		if err := ValidateField(f); err != nil {
			return models.EntityType{}, err
		}
	}

	entity := models.EntityType{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
	}
	for i, f := range req.Fields {
		entity.Fields = append(entity.Fields, models.FieldDefinition{
			ID:           uuid.New(),
			EntityTypeID: entity.ID,
			Idx:          i + 1,
			Name:         f.Name,
			Kind:         f.Kind,
			DataType:     f.DataType,
			LinkedType:   f.LinkedType,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.EntityType{}).Where("name = ?", req.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return gorm.ErrDuplicatedKey
		}
		return tx.Create(&entity).Error
	})
	if err != nil {
		return models.EntityType{}, database.Translate(err, "entity type "+req.Name)
	}
	return entity, nil
}

// GetEntityType loads an entity type with its fields ordered by idx.
func (s *DBStore) GetEntityType(ctx context.Context, name string) (models.EntityType, error) {
	var entity models.EntityType
	err := s.db.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB { return db.Order("idx ASC") }).
		Where("name = ?", name).
		First(&entity).Error
	if err != nil {
		return models.EntityType{}, database.Translate(err, "entity type "+name)
	}
	return entity, nil
}

// ListEntityTypes lists all entity types ordered by name, without fields.
func (s *DBStore) ListEntityTypes(ctx context.Context) ([]models.EntityType, error) {
	var list []models.EntityType
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&list).Error; err != nil {
		return nil, database.Translate(err, "entity types")
	}
	return list, nil
}

// DeleteEntityType removes an entity type and its fields.
func (s *DBStore) DeleteEntityType(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity models.EntityType
		if err := tx.Where("name = ?", name).First(&entity).Error; err != nil {
			return database.Translate(err, "entity type "+name)
		}
		if err := tx.Where("entity_type_id = ?", entity.ID).Delete(&models.FieldDefinition{}).Error; err != nil {
			return database.Translate(err, "fields of "+name)
		}
		return database.Translate(tx.Delete(&entity).Error, "entity type "+name)
	})
}

// AddField appends a field after the current last one.
func (s *DBStore) AddField(ctx context.Context, entityName string, req models.CreateFieldRequest) (models.FieldDefinition, error) {
	if err := ValidateField(req); err != nil {
		return models.FieldDefinition{}, err
	}

	var field models.FieldDefinition
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entity models.EntityType
		if err := tx.Where("name = ?", entityName).First(&entity).Error; err != nil {
			return database.Translate(err, "entity type "+entityName)
		}
		var maxIdx int
		if err := tx.Model(&models.FieldDefinition{}).
			Where("entity_type_id = ?", entity.ID).
			Select("COALESCE(MAX(idx), 0)").
			Scan(&maxIdx).Error; err != nil {
			return err
		}
		field = models.FieldDefinition{
			ID:           uuid.New(),
			EntityTypeID: entity.ID,
			Idx:          maxIdx + 1,
			Name:         req.Name,
			Kind:         req.Kind,
			DataType:     req.DataType,
			LinkedType:   req.LinkedType,
		}
		return tx.Create(&field).Error
	})
	if err != nil {
		return models.FieldDefinition{}, database.Translate(err, "field "+req.Name)
	}
	return field, nil
}

// GetEntitySchema returns the fields of an entity type in declaration order.
func (s *DBStore) GetEntitySchema(ctx context.Context, name string) ([]models.FieldDefinition, error) {
	entity, err := s.GetEntityType(ctx, name)
	if err != nil {
		return nil, err
	}
	return entity.Fields, nil
}
