package catalog

import (
	"context"
	"fmt"

	"ai-integration/internal/models"
)

// RowOptions are the choices offered for a text format row after its target
// type changed. Both field selectors share the same list.
type RowOptions struct {
	FieldName  []string `json:"field_name"`
	FieldName2 []string `json:"field_name2"`
}

// UpdateRow recomputes a row after its target type changed: the field
// choices, and for rows targeting a linked type, the derived linked field
// name and kind. The row is modified in place only on success.
func (r *Resolver) UpdateRow(ctx context.Context, tmpl *models.MessageContextTemplate, row *models.TextFormatRow) (RowOptions, error) {
	if row.TargetDoctype == "" {
		return RowOptions{}, models.NewValidationError("target_doctype", "row target type is required")
	}

	fields, err := r.SubstitutionFields(ctx, row.TargetDoctype)
	if err != nil {
		return RowOptions{}, err
	}
	choices := append([]string{""}, fields...)
	opts := RowOptions{FieldName: choices, FieldName2: append([]string(nil), choices...)}

	if row.TargetDoctype == tmpl.TargetDoctype {
		return opts, nil
	}

	templateID := tmpl.ID.String()
	reg := r.registries.For(templateID)
	if reg.Primary() != tmpl.TargetDoctype {
		if _, err := r.ResolveFields(ctx, templateID, tmpl.TargetDoctype); err != nil {
			return RowOptions{}, err
		}
	}
	link, err := reg.Lookup(row.TargetDoctype)
	if err != nil {
		return RowOptions{}, fmt.Errorf("%s is not linked from %s: %w", row.TargetDoctype, tmpl.TargetDoctype, err)
	}

	row.LinkedFieldName = link.OwningField
	row.LinkedFieldType = link.Kind
	return opts, nil
}
