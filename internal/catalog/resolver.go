package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ai-integration/internal/models"
)

// SchemaProvider returns the field definitions of an entity type in
// declaration order, or an error wrapping models.ErrNotFound.
type SchemaProvider interface {
	GetEntitySchema(ctx context.Context, entityType string) ([]models.FieldDefinition, error)
}

// Resolution is the outcome of resolving a template's target type.
type Resolution struct {
	TargetType string `json:"target_type"`
	// SubstitutionFields are the target's own value fields, in declaration order.
	SubstitutionFields []string `json:"substitution_fields"`
	// QueryableLinkedTypes are the types a text format row may target: every
	// linked and child type, then the target type itself.
	QueryableLinkedTypes []string `json:"queryable_linked_types"`
}

// Queryable reports whether a row may target entityType.
func (r Resolution) Queryable(entityType string) bool {
	for _, t := range r.QueryableLinkedTypes {
		if t == entityType {
			return true
		}
	}
	return false
}

func (r Resolution) clone() Resolution {
	r.SubstitutionFields = append([]string(nil), r.SubstitutionFields...)
	r.QueryableLinkedTypes = append([]string(nil), r.QueryableLinkedTypes...)
	return r
}

// Resolver discovers which fields of an entity type, and which linked types,
// a message context template can use.
type Resolver struct {
	schemas    SchemaProvider
	registries *Registries
	logger     *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(schemas SchemaProvider, registries *Registries, logger *zap.Logger) *Resolver {
	return &Resolver{schemas: schemas, registries: registries, logger: logger}
}

// Registry returns the linked-entity registry of templateID.
func (r *Resolver) Registry(templateID string) *Registry {
	return r.registries.For(templateID)
}

// Forget drops the registry of a deleted template.
func (r *Resolver) Forget(templateID string) {
	r.registries.Drop(templateID)
}

// ResolveFields resolves targetType for templateID and rebuilds the
// template's registry from the result. On error the registry is unchanged.
func (r *Resolver) ResolveFields(ctx context.Context, templateID, targetType string) (Resolution, error) {
	reg := r.registries.For(templateID)
	gen := reg.begin()

	fields, err := r.schemas.GetEntitySchema(ctx, targetType)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve fields of %s: %w", targetType, err)
	}

	res := Resolution{TargetType: targetType}
	entries := make(map[string]Linkage)
	seen := make(map[string]bool)
	addQueryable := func(t string) {
		if !seen[t] {
			seen[t] = true
			res.QueryableLinkedTypes = append(res.QueryableLinkedTypes, t)
		}
	}

	for _, f := range fields {
		switch {
		case f.Kind == models.KindLink && f.LinkedType != models.WorkflowStateType:
			entries[f.LinkedType] = Linkage{OwningField: f.Name, Kind: f.Kind}
			addQueryable(f.LinkedType)
		case f.Kind == models.KindChildCollection:
			entries[f.LinkedType] = Linkage{OwningField: f.Name, Kind: f.Kind}
			addQueryable(f.LinkedType)
		case f.Kind.HasValue() && f.Name != "":
			res.SubstitutionFields = append(res.SubstitutionFields, f.Name)
		}
	}
	addQueryable(targetType)

	if !reg.commit(gen, res, entries) {
		return Resolution{}, fmt.Errorf("resolution of %s for template %s superseded: %w", targetType, templateID, models.ErrConflict)
	}

	r.logger.Debug("Resolved template target type",
		zap.String("template", templateID),
		zap.String("target_type", targetType),
		zap.Int("substitution_fields", len(res.SubstitutionFields)),
		zap.Int("linked_types", len(entries)))
	return res.clone(), nil
}

// Refresh is ResolveFields for form refreshes: when resolution fails the
// last good resolution of the template is returned with the error so the
// caller can keep showing it.
func (r *Resolver) Refresh(ctx context.Context, templateID, targetType string) (Resolution, error) {
	res, err := r.ResolveFields(ctx, templateID, targetType)
	if err == nil {
		return res, nil
	}
	r.logger.Warn("Keeping previous template field options",
		zap.String("template", templateID),
		zap.String("target_type", targetType),
		zap.Error(err))
	prev, _ := r.registries.For(templateID).Last()
	return prev, err
}

// SubstitutionFields lists the fields of entityType a text format row can
// print, without touching any registry. Link fields are included since a row
// reads the stored reference; child collections are not.
func (r *Resolver) SubstitutionFields(ctx context.Context, entityType string) ([]string, error) {
	fields, err := r.schemas.GetEntitySchema(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("list fields of %s: %w", entityType, err)
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Name != "" && (f.Kind == models.KindScalar || f.Kind == models.KindLink) {
			names = append(names, f.Name)
		}
	}
	return names, nil
}
