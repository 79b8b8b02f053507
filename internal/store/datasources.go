package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ai-integration/internal/database"
	"ai-integration/internal/models"
)

// DataSourceStore persists data sources and their params.
type DataSourceStore struct {
	db *gorm.DB
}

// NewDataSourceStore creates a DataSourceStore.
func NewDataSourceStore(db *gorm.DB) *DataSourceStore {
	return &DataSourceStore{db: db}
}

// Create inserts ds with its params.
func (s *DataSourceStore) Create(ctx context.Context, ds *models.DataSource) error {
	if ds.Name == "" {
		return models.NewValidationError("name", "data source name cannot be empty")
	}
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	for i := range ds.Params {
		p := &ds.Params[i]
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.DataSourceID = ds.ID
		p.Idx = i + 1
	}
	return database.Translate(s.db.WithContext(ctx).Create(ds).Error, "data source "+ds.Name)
}

// Get loads a data source with its params in order.
func (s *DataSourceStore) Get(ctx context.Context, id uuid.UUID) (*models.DataSource, error) {
	var ds models.DataSource
	err := s.db.WithContext(ctx).
		Preload("Params", func(db *gorm.DB) *gorm.DB { return db.Order("idx ASC") }).
		First(&ds, "id = ?", id).Error
	if err != nil {
		return nil, database.Translate(err, "data source "+id.String())
	}
	return &ds, nil
}

// List returns every data source with its params.
func (s *DataSourceStore) List(ctx context.Context) ([]models.DataSource, error) {
	var list []models.DataSource
	err := s.db.WithContext(ctx).
		Preload("Params", func(db *gorm.DB) *gorm.DB { return db.Order("idx ASC") }).
		Order("name ASC").
		Find(&list).Error
	if err != nil {
		return nil, database.Translate(err, "data sources")
	}
	return list, nil
}

// SetVerified records the outcome of a connection check.
func (s *DataSourceStore) SetVerified(ctx context.Context, id uuid.UUID, verified bool, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.DataSource{}).Where("id = ?", id).Updates(map[string]interface{}{
		"verified":    verified,
		"verified_at": at,
	})
	if res.Error != nil {
		return database.Translate(res.Error, "data source "+id.String())
	}
	if res.RowsAffected == 0 {
		return models.NotFoundf("data source %s", id)
	}
	return nil
}
