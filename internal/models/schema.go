package models

import (
	"time"

	"github.com/google/uuid"
)

// FieldKind classifies how a field stores its value.
type FieldKind string

const (
	KindScalar          FieldKind = "scalar"
	KindLink            FieldKind = "link"
	KindChildCollection FieldKind = "child-collection"
	KindNoValue         FieldKind = "no-value"
)

// WorkflowStateType is the linked type used by workflow state fields. Links to
// it are not offered as template sources.
const WorkflowStateType = "Workflow State"

// ValidFieldKinds defines the allowed field kinds.
var ValidFieldKinds = map[FieldKind]bool{
	KindScalar:          true,
	KindLink:            true,
	KindChildCollection: true,
	KindNoValue:         true,
}

// HasValue reports whether fields of this kind have a concrete storage
// representation.
func (k FieldKind) HasValue() bool {
	return k != KindNoValue && k != ""
}

// Linking reports whether fields of this kind reference another entity type.
func (k FieldKind) Linking() bool {
	return k == KindLink || k == KindChildCollection
}

// EntityType describes a schema: a named set of ordered field definitions.
// @Description EntityType describes a schema: a named set of ordered field definitions.
type EntityType struct {
	ID          uuid.UUID         `json:"id" gorm:"type:uuid;primary_key"`
	Name        string            `json:"name" binding:"required,min=1,max=255" gorm:"type:varchar(255);not null;unique"`
	Description string            `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
	Fields      []FieldDefinition `json:"fields,omitempty" gorm:"foreignKey:EntityTypeID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// FieldDefinition is one field of an EntityType. Names are not unique within
// a type; duplicates are kept in declaration order.
// @Description FieldDefinition is one field of an EntityType.
type FieldDefinition struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	EntityTypeID uuid.UUID `json:"entity_type_id" gorm:"type:uuid;not null;index"`
	Idx          int       `json:"idx" gorm:"not null"`
	Name         string    `json:"name" gorm:"type:varchar(255)"`
	Kind         FieldKind `json:"kind" gorm:"type:varchar(50);not null"`
	DataType     string    `json:"data_type,omitempty" gorm:"type:varchar(50)"` // e.g. "Data", "Int", "Section Break"
	LinkedType   string    `json:"linked_type,omitempty" gorm:"type:varchar(255)"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// CreateEntityTypeRequest defines the request payload for creating an entity type.
type CreateEntityTypeRequest struct {
	Name        string               `json:"name" binding:"required,min=1,max=255"`
	Description string               `json:"description,omitempty" binding:"max=1000"`
	Fields      []CreateFieldRequest `json:"fields,omitempty" binding:"dive"`
}

// CreateFieldRequest defines the request payload for adding a field to an entity type.
type CreateFieldRequest struct {
	Name       string    `json:"name" binding:"max=255"`
	Kind       FieldKind `json:"kind" binding:"required,oneof=scalar link child-collection no-value"`
	DataType   string    `json:"data_type,omitempty" binding:"max=50"`
	LinkedType string    `json:"linked_type,omitempty" binding:"max=255"`
}
