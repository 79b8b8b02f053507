package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageContextTemplate builds an LLM prompt from the fields of a target
// document and from reference queries over other entity types.
// @Description MessageContextTemplate builds an LLM prompt from a target document.
type MessageContextTemplate struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Name              string    `json:"name" binding:"required,min=1,max=255" gorm:"type:varchar(255);not null;unique"`
	TargetDoctype     string    `json:"target_doctype" gorm:"type:varchar(255)"`
	SystemPrompt      string    `json:"system_prompt,omitempty" gorm:"type:text"`
	UserPrompt        string    `json:"user_prompt,omitempty" gorm:"type:text"`
	SelectedModel     string    `json:"selected_model,omitempty" gorm:"type:varchar(255)"`
	SelectedGPTModel  string    `json:"selected_gpt_model,omitempty" gorm:"type:varchar(255)"`
	ClientCredentials string    `json:"client_credentials,omitempty" gorm:"type:varchar(255)"`
	CreatedAt         time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Current choices; never persisted.
	LLM      string `json:"llm,omitempty" gorm:"-"`
	GPTModel string `json:"gpt_model,omitempty" gorm:"-"`

	TextFormat       []TextFormatRow   `json:"text_format,omitempty" gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE;"`
	ReferenceTargets []ReferenceTarget `json:"reference_targets,omitempty" gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE;"`
	ContextChildren  []ContextChild    `json:"context_children,omitempty" gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE;"`
}

// TextFormatRow is one line of the formatted prompt. LinkedFieldName and
// LinkedFieldType are derived whenever TargetDoctype differs from the
// template's primary target type.
type TextFormatRow struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TemplateID      uuid.UUID `json:"template_id" gorm:"type:uuid;not null;index"`
	Idx             int       `json:"idx"`
	TargetDoctype   string    `json:"target_doctype" gorm:"type:varchar(255)"`
	FieldName       string    `json:"field_name,omitempty" gorm:"type:varchar(255)"`
	FieldName2      string    `json:"field_name2,omitempty" gorm:"type:varchar(255)"`
	LinkedFieldName string    `json:"linked_field_name,omitempty" gorm:"type:varchar(255)"`
	LinkedFieldType FieldKind `json:"linked_field_type,omitempty" gorm:"type:varchar(50)"`
	Before          string    `json:"before,omitempty" gorm:"type:text"`
	After           string    `json:"after,omitempty" gorm:"type:text"`
}

// ReferenceTarget lists records of another entity type in the prompt,
// optionally filtered.
type ReferenceTarget struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TemplateID   uuid.UUID `json:"template_id" gorm:"type:uuid;not null;index"`
	Idx          int       `json:"idx"`
	Reference    string    `json:"reference" gorm:"type:varchar(255)"`
	Fields       string    `json:"fields" gorm:"type:text"`                  // comma separated
	FilterFields string    `json:"filter_fields,omitempty" gorm:"type:text"` // comma separated
	FieldsValues string    `json:"fields_values,omitempty" gorm:"type:text"` // paired with FilterFields
	Before       string    `json:"before,omitempty" gorm:"type:text"`
}

// ContextChild records which child-collection fields a template reads.
type ContextChild struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TemplateID    uuid.UUID `json:"template_id" gorm:"type:uuid;not null;index"`
	ReferenceType string    `json:"reference_type" gorm:"type:varchar(255)"`
	Content       string    `json:"content" gorm:"type:text"`
}

// ModelAxis names one of the two independent model choices of a template.
type ModelAxis string

const (
	AxisPrimary   ModelAxis = "primary"
	AxisSecondary ModelAxis = "secondary"
)

// ModelChoice is the synchronized state of one model axis.
type ModelChoice struct {
	Axis      ModelAxis `json:"axis"`
	Available []string  `json:"available"` // always starts with ""
	Current   string    `json:"current"`
	Persisted string    `json:"persisted"`
}
