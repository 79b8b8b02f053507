package modelsync

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ai-integration/internal/llm"
	"ai-integration/internal/models"
)

// Catalog lists model identifiers for one axis.
type Catalog interface {
	IDs(ctx context.Context) ([]string, error)
}

// RecordLister is a catalog that returns structured model records.
type RecordLister interface {
	ListModels(ctx context.Context) ([]llm.ModelInfo, error)
}

// IDLister is a catalog that returns plain identifiers.
type IDLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Records adapts a RecordLister by reading each record's model name.
func Records(l RecordLister) Catalog { return recordCatalog{l} }

// Identifiers adapts an IDLister.
func Identifiers(l IDLister) Catalog { return idCatalog{l} }

type recordCatalog struct{ l RecordLister }

func (c recordCatalog) IDs(ctx context.Context) ([]string, error) {
	records, err := c.l.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.Model)
	}
	return ids, nil
}

type idCatalog struct{ l IDLister }

func (c idCatalog) IDs(ctx context.Context) ([]string, error) {
	return c.l.ListModels(ctx)
}

// Choice is the synchronized state of one axis. Options always start with
// the empty "unset" entry. Write is set when Selected should be persisted.
type Choice struct {
	Options  []string `json:"options"`
	Selected string   `json:"selected"`
	Write    bool     `json:"write"`
}

// Synchronizer keeps a persisted model selection consistent with the model
// catalog of its axis.
type Synchronizer struct {
	catalogs map[models.ModelAxis]Catalog
	logger   *zap.Logger
}

// New creates a Synchronizer for the primary and secondary axes.
func New(primary, secondary Catalog, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		catalogs: map[models.ModelAxis]Catalog{
			models.AxisPrimary:   primary,
			models.AxisSecondary: secondary,
		},
		logger: logger,
	}
}

// Sync fetches the catalog of axis and decides the selection for persisted.
// It never writes anything itself; a provider error is returned as
// ProviderUnavailable and the caller keeps the persisted value.
func (s *Synchronizer) Sync(ctx context.Context, axis models.ModelAxis, persisted string) (Choice, error) {
	catalog, ok := s.catalogs[axis]
	if !ok || catalog == nil {
		return Choice{}, &models.ConfigurationError{Setting: "model axis", Value: string(axis)}
	}

	ids, err := catalog.IDs(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch model catalog", zap.String("axis", string(axis)), zap.Error(err))
		return Choice{}, models.Unavailable(string(axis)+" models", err)
	}

	choice := Choice{Options: append([]string{""}, ids...)}
	if persisted == "" {
		return choice, nil
	}
	for _, id := range ids {
		if id == persisted {
			choice.Selected = persisted
			choice.Write = true
			break
		}
	}
	return choice, nil
}

// SyncTemplate refreshes both axes of tmpl concurrently and applies the
// results: current choices are set, and persisted selections are kept. An
// axis whose catalog failed keeps its previous state; the first error is
// returned alongside the choices that did succeed.
func (s *Synchronizer) SyncTemplate(ctx context.Context, tmpl *models.MessageContextTemplate) ([]models.ModelChoice, error) {
	var primary, secondary Choice
	var primaryErr, secondaryErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		primary, primaryErr = s.Sync(gctx, models.AxisPrimary, tmpl.SelectedModel)
		return nil
	})
	g.Go(func() error {
		secondary, secondaryErr = s.Sync(gctx, models.AxisSecondary, tmpl.SelectedGPTModel)
		return nil
	})
	_ = g.Wait()

	var out []models.ModelChoice
	if primaryErr == nil {
		tmpl.LLM = primary.Selected
		out = append(out, toModelChoice(models.AxisPrimary, primary, tmpl.SelectedModel))
	}
	if secondaryErr == nil {
		tmpl.GPTModel = secondary.Selected
		out = append(out, toModelChoice(models.AxisSecondary, secondary, tmpl.SelectedGPTModel))
	}

	if primaryErr != nil {
		return out, fmt.Errorf("sync primary models: %w", primaryErr)
	}
	if secondaryErr != nil {
		return out, fmt.Errorf("sync secondary models: %w", secondaryErr)
	}
	return out, nil
}

func toModelChoice(axis models.ModelAxis, c Choice, persisted string) models.ModelChoice {
	return models.ModelChoice{
		Axis:      axis,
		Available: c.Options,
		Current:   c.Selected,
		Persisted: persisted,
	}
}
