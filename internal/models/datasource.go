package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DataSource is an external HTTP endpoint an agent may query.
// @Description DataSource is an external HTTP endpoint an agent may query.
type DataSource struct {
	ID           uuid.UUID         `json:"id" gorm:"type:uuid;primary_key"`
	Name         string            `json:"name" binding:"required,min=1,max=255" gorm:"type:varchar(255);not null;unique"`
	URL          string            `json:"url" gorm:"type:text"`
	Method       string            `json:"method,omitempty" gorm:"type:varchar(10);default:GET"`
	AuthType     string            `json:"auth_type,omitempty" gorm:"type:varchar(50)"` // "Bearer", "Basic", "Token"
	AuthToken    string            `json:"auth_token,omitempty" gorm:"type:text"`
	When         string            `json:"when,omitempty" gorm:"type:text"`
	Instructions string            `json:"instructions,omitempty" gorm:"type:text"`
	ErrorMessage string            `json:"error_message,omitempty" gorm:"type:text"`
	Verified     bool              `json:"verified"`
	VerifiedAt   *time.Time        `json:"verified_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
	Params       []DataSourceParam `json:"params,omitempty" gorm:"foreignKey:DataSourceID;constraint:OnDelete:CASCADE;"`
}

// Param kinds.
const (
	ParamFilter = "filter" // appended to the URL query
	ParamField  = "field"  // part of the JSON body
)

// DataSourceParam is a query filter or body field of a DataSource.
type DataSourceParam struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	DataSourceID uuid.UUID `json:"data_source_id" gorm:"type:uuid;not null;index"`
	Kind         string    `json:"kind" binding:"oneof=filter field" gorm:"type:varchar(10);not null"`
	Idx          int       `json:"idx"`
	FieldName    string    `json:"field_name" gorm:"type:varchar(255)"`
	Example      string    `json:"example,omitempty" gorm:"type:varchar(255)"`
}

// Document is a record of some entity type, stored as a JSON object. Child
// collections are arrays of objects under the owning field's name.
type Document struct {
	ID         uuid.UUID         `json:"id" gorm:"type:uuid;primary_key"`
	EntityType string            `json:"entity_type" gorm:"type:varchar(255);not null;uniqueIndex:idx_document_name"`
	Name       string            `json:"name" gorm:"type:varchar(255);not null;uniqueIndex:idx_document_name"`
	Data       datatypes.JSONMap `json:"data"`
	CreatedAt  time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}
