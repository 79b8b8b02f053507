package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"ai-integration/internal/models"
)

const genaiProvider = "genai"

// ModelLister is the slice of the genai client the catalog needs.
type ModelLister interface {
	ListModelNames(ctx context.Context) ([]string, error)
}

// GenAICatalog lists the secondary models as plain identifiers.
type GenAICatalog struct {
	lister ModelLister
	logger *zap.Logger
}

// NewGenAICatalog creates a catalog over lister.
func NewGenAICatalog(lister ModelLister, logger *zap.Logger) *GenAICatalog {
	return &GenAICatalog{lister: lister, logger: logger}
}

// ListModels returns model identifiers with the "models/" prefix removed.
func (c *GenAICatalog) ListModels(ctx context.Context) ([]string, error) {
	names, err := c.lister.ListModelNames(ctx)
	if err != nil {
		c.logger.Error("Failed to list secondary models", zap.Error(err))
		return nil, models.Unavailable(genaiProvider, err)
	}
	ids := make([]string, 0, len(names))
	for _, n := range names {
		ids = append(ids, strings.TrimPrefix(n, "models/"))
	}
	return ids, nil
}

// GenAIClient adapts *genai.Client to ModelLister.
type GenAIClient struct {
	client *genai.Client
}

// NewGenAIClient connects to the Gemini API with apiKey.
func NewGenAIClient(ctx context.Context, apiKey string) (*GenAIClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIClient{client: client}, nil
}

// ListModelNames pages through every model the key can see.
func (g *GenAIClient) ListModelNames(ctx context.Context) ([]string, error) {
	var names []string
	for m, err := range g.client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}
		names = append(names, m.Name)
	}
	return names, nil
}

// staticLister serves a fixed list; used when no API key is configured.
type staticLister []string

func (s staticLister) ListModelNames(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// NewStaticCatalog returns a catalog that always lists names.
func NewStaticCatalog(names []string, logger *zap.Logger) *GenAICatalog {
	return NewGenAICatalog(staticLister(names), logger)
}
