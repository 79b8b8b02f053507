package metadata

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-integration/internal/models"
)

// Repository is the entity schema store used by the API and the field
// catalog resolver.
type Repository interface {
	CreateEntityType(ctx context.Context, req models.CreateEntityTypeRequest) (models.EntityType, error)
	GetEntityType(ctx context.Context, name string) (models.EntityType, error)
	ListEntityTypes(ctx context.Context) ([]models.EntityType, error)
	DeleteEntityType(ctx context.Context, name string) error
	AddField(ctx context.Context, entityName string, req models.CreateFieldRequest) (models.FieldDefinition, error)
	GetEntitySchema(ctx context.Context, name string) ([]models.FieldDefinition, error)
}

// Store manages entity types and their fields in memory.
type Store struct {
	entities map[string]models.EntityType // Key: entity type name
	mu       sync.RWMutex
}

// NewStore creates and returns a new Store.
func NewStore() *Store {
	return &Store{
		entities: make(map[string]models.EntityType),
	}
}

// --- Entity Type Methods ---

// CreateEntityType adds a new entity type with its initial fields.
func (s *Store) CreateEntityType(_ context.Context, req models.CreateEntityTypeRequest) (models.EntityType, error) {
	if req.Name == "" {
		return models.EntityType{}, models.NewValidationError("name", "entity type name cannot be empty")
	}
	for _, f := range req.Fields {
		if err := ValidateField(f); err != nil {
			return models.EntityType{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[req.Name]; ok {
		return models.EntityType{}, fmt.Errorf("entity type %s already exists: %w", req.Name, models.ErrConflict)
	}

	now := time.Now().UTC()
	entity := models.EntityType{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, f := range req.Fields {
		entity.Fields = append(entity.Fields, newField(entity.ID, i+1, f, now))
	}
	s.entities[req.Name] = entity
	return copyEntity(entity), nil
}

// GetEntityType retrieves an entity type by name.
func (s *Store) GetEntityType(_ context.Context, name string) (models.EntityType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entity, ok := s.entities[name]
	if !ok {
		return models.EntityType{}, models.NotFoundf("entity type %s", name)
	}
	return copyEntity(entity), nil
}

// ListEntityTypes retrieves all entity types ordered by name.
func (s *Store) ListEntityTypes(_ context.Context) ([]models.EntityType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]models.EntityType, 0, len(s.entities))
	for _, entity := range s.entities {
		list = append(list, copyEntity(entity))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

// DeleteEntityType removes an entity type and its fields.
func (s *Store) DeleteEntityType(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[name]; !ok {
		return models.NotFoundf("entity type %s", name)
	}
	delete(s.entities, name)
	return nil
}

// --- Field Methods ---

// AddField appends a field to an entity type.
func (s *Store) AddField(_ context.Context, entityName string, req models.CreateFieldRequest) (models.FieldDefinition, error) {
	if err := ValidateField(req); err != nil {
		return models.FieldDefinition{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[entityName]
	if !ok {
		return models.FieldDefinition{}, models.NotFoundf("entity type %s", entityName)
	}

	now := time.Now().UTC()
	field := newField(entity.ID, len(entity.Fields)+1, req, now)
	entity.Fields = append(entity.Fields, field)
	entity.UpdatedAt = now
	s.entities[entityName] = entity
	return field, nil
}

// GetEntitySchema returns the fields of an entity type in declaration order.
func (s *Store) GetEntitySchema(ctx context.Context, name string) ([]models.FieldDefinition, error) {
	entity, err := s.GetEntityType(ctx, name)
	if err != nil {
		return nil, err
	}
	return entity.Fields, nil
}

// ValidateField checks a field request independently of any store.
func ValidateField(req models.CreateFieldRequest) error {
	if !models.ValidFieldKinds[req.Kind] {
		return models.NewValidationError("kind", fmt.Sprintf("unknown field kind %q", req.Kind))
	}
	if req.Kind.Linking() && req.LinkedType == "" {
		return models.NewValidationError("linked_type", fmt.Sprintf("%s field %q requires a linked type", req.Kind, req.Name))
	}
	if !req.Kind.Linking() && req.LinkedType != "" {
		return models.NewValidationError("linked_type", fmt.Sprintf("%s field %q cannot link to %s", req.Kind, req.Name, req.LinkedType))
	}
	if req.Kind.HasValue() && req.Name == "" {
		return models.NewValidationError("name", "field name cannot be empty")
	}
	return nil
}

func newField(entityID uuid.UUID, idx int, req models.CreateFieldRequest, now time.Time) models.FieldDefinition {
	return models.FieldDefinition{
		ID:           uuid.New(),
		EntityTypeID: entityID,
		Idx:          idx,
		Name:         req.Name,
		Kind:         req.Kind,
		DataType:     req.DataType,
		LinkedType:   req.LinkedType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func copyEntity(entity models.EntityType) models.EntityType {
	entity.Fields = append([]models.FieldDefinition(nil), entity.Fields...)
	return entity
}
