package templates

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ai-integration/internal/catalog"
	"ai-integration/internal/models"
)

// Validator checks a template against the schemas it references.
type Validator struct {
	schemas catalog.SchemaProvider
}

// NewValidator creates a Validator.
func NewValidator(schemas catalog.SchemaProvider) *Validator {
	return &Validator{schemas: schemas}
}

// Validate rebuilds the template's context children and checks its
// reference targets. tmpl is modified only when validation succeeds.
func (v *Validator) Validate(ctx context.Context, tmpl *models.MessageContextTemplate) error {
	if err := v.validateReferences(ctx, tmpl.ReferenceTargets); err != nil {
		return err
	}
	tmpl.ContextChildren = ContextChildren(tmpl)
	return nil
}

// ContextChildren derives one context child per text format row that reads
// a child collection.
func ContextChildren(tmpl *models.MessageContextTemplate) []models.ContextChild {
	var children []models.ContextChild
	for _, row := range tmpl.TextFormat {
		if row.LinkedFieldType != models.KindChildCollection {
			continue
		}
		children = append(children, models.ContextChild{
			TemplateID:    tmpl.ID,
			ReferenceType: row.TargetDoctype,
			Content:       strings.Join([]string{row.FieldName, row.FieldName2}, ","),
		})
	}
	return children
}

var innerSpaces = regexp.MustCompile(`(\w)\s+(\w)`)

// normalizeList joins words separated by spaces with underscores, leaving
// the spaces around commas alone.
func normalizeList(s string) string {
	// Overlapping matches ("a b c") need a second pass.
	for {
		next := innerSpaces.ReplaceAllString(s, "${1}_${2}")
		if next == s {
			return s
		}
		s = next
	}
}

func (v *Validator) validateReferences(ctx context.Context, targets []models.ReferenceTarget) error {
	for i, target := range targets {
		idx := target.Idx
		if idx == 0 {
			idx = i + 1
		}

		fields, err := v.fieldNames(ctx, target.Reference)
		if err != nil {
			return err
		}
		if err := checkFields(fields, target.Reference, target.Fields); err != nil {
			return err
		}

		emptyFilters := target.FilterFields == ""
		emptyValues := target.FieldsValues == ""
		if emptyFilters {
			continue
		}
		if emptyValues {
			return models.NewValidationError("fields_values", "You have filters without values!")
		}
		if err := checkFields(fields, target.Reference, target.FilterFields); err != nil {
			return err
		}

		nFilters := len(strings.Split(normalizeList(target.FilterFields), ","))
		nValues := len(strings.Split(normalizeList(target.FieldsValues), ","))
		if nFilters != nValues {
			return models.NewValidationError("fields_values", fmt.Sprintf(
				"Mismatch: %d fields but %d values in row %d, DocType: %s.", nFilters, nValues, idx, target.Reference))
		}
	}
	return nil
}

func (v *Validator) fieldNames(ctx context.Context, entityType string) (map[string]bool, error) {
	defs, err := v.schemas.GetEntitySchema(ctx, entityType)
	if err != nil {
		return nil, err
	}
	names := map[string]bool{"name": true}
	for _, d := range defs {
		if d.Name != "" {
			names[d.Name] = true
		}
	}
	return names, nil
}

func checkFields(known map[string]bool, entityType, list string) error {
	for _, f := range strings.Split(list, ",") {
		f = strings.TrimSpace(f)
		if !known[f] {
			return models.NewValidationError("fields", fmt.Sprintf("Not Found: '%s' is not a field of '%s' DocType.", f, entityType))
		}
	}
	return nil
}
