package templates

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ai-integration/internal/models"
)

// DocumentSource reads stored documents.
type DocumentSource interface {
	Get(ctx context.Context, entityType, name string) (models.Document, error)
	List(ctx context.Context, entityType string) ([]models.Document, error)
}

// Completer runs a chat completion.
type Completer interface {
	Chat(ctx context.Context, model string, messages []models.Message) (models.Message, error)
}

// Renderer turns a template and a target document into an LLM prompt.
type Renderer struct {
	docs      DocumentSource
	completer Completer
	logger    *zap.Logger
}

// NewRenderer creates a Renderer.
func NewRenderer(docs DocumentSource, completer Completer, logger *zap.Logger) *Renderer {
	return &Renderer{docs: docs, completer: completer, logger: logger}
}

// Render builds the user prompt of tmpl for the target document docName.
func (r *Renderer) Render(ctx context.Context, tmpl *models.MessageContextTemplate, docName string) (string, error) {
	if tmpl.TargetDoctype == "" {
		return "", models.NewValidationError("target_doctype", "template has no target type")
	}
	target, err := r.docs.Get(ctx, tmpl.TargetDoctype, docName)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, row := range tmpl.TextFormat {
		if row.LinkedFieldType == models.KindChildCollection {
			writeChildRows(&b, tmpl, row, target.Data)
			continue
		}
		fmt.Fprintf(&b, "%s %s %s\n", row.Before, format(lookup(target, row.FieldName)), row.After)
	}

	for _, ref := range tmpl.ReferenceTargets {
		if err := r.writeReference(ctx, &b, ref); err != nil {
			return "", err
		}
	}

	b.WriteString("\n")
	b.WriteString(tmpl.UserPrompt)
	return b.String(), nil
}

func writeChildRows(b *strings.Builder, tmpl *models.MessageContextTemplate, row models.TextFormatRow, data map[string]interface{}) {
	b.WriteString(row.Before)
	b.WriteString("\n")

	items, _ := data[row.LinkedFieldName].([]interface{})
	i := 0
	for _, child := range tmpl.ContextChildren {
		if child.ReferenceType != row.TargetDoctype {
			continue
		}
		fields := strings.Split(child.Content, ",")
		for _, item := range items {
			record, _ := item.(map[string]interface{})
			var content strings.Builder
			for _, f := range fields {
				fmt.Fprintf(&content, ". %s", format(record[f]))
			}
			fmt.Fprintf(b, "%d- %s\n", i, content.String())
		}
		i++
	}
}

func (r *Renderer) writeReference(ctx context.Context, b *strings.Builder, ref models.ReferenceTarget) error {
	fields := splitTrim(ref.Fields)
	fmt.Fprintf(b, "%s\n", ref.Before)
	fmt.Fprintf(b, "%s columns: row_number|%s\n", ref.Reference, strings.Join(fields, "|"))
	fmt.Fprintf(b, "%s rows:\n", ref.Reference)

	docs, err := r.docs.List(ctx, ref.Reference)
	if err != nil {
		return err
	}

	filters := splitTrim(ref.FilterFields)
	values := splitTrim(ref.FieldsValues)
	if ref.FilterFields == "" || len(filters) != len(values) {
		filters, values = nil, nil
	}

	n := 0
	for _, doc := range docs {
		if !matches(doc, filters, values) {
			continue
		}
		n++
		cells := make([]string, 0, len(fields))
		for _, f := range fields {
			cells = append(cells, format(lookup(doc, f)))
		}
		fmt.Fprintf(b, "%d|%s\n", n, strings.Join(cells, "|"))
	}
	b.WriteString("\n")
	return nil
}

// matches applies case-insensitive substring filters, all of which must hold.
func matches(doc models.Document, filters, values []string) bool {
	for i, f := range filters {
		v := strings.ToLower(format(lookup(doc, f)))
		if !strings.Contains(v, strings.ToLower(values[i])) {
			return false
		}
	}
	return true
}

// GenerateResponse renders tmpl for docName and asks the template's selected
// model to answer it, with the template's system prompt.
func (r *Renderer) GenerateResponse(ctx context.Context, tmpl *models.MessageContextTemplate, docName string) (string, error) {
	if tmpl.SelectedModel == "" {
		return "", &models.ValidationError{Code: models.ErrorCodeModelNotSelected, Field: "selected_model", Message: "Please select a model."}
	}
	prompt, err := r.Render(ctx, tmpl, docName)
	if err != nil {
		return "", err
	}

	reply, err := r.completer.Chat(ctx, tmpl.SelectedModel, []models.Message{
		{Role: "system", Content: tmpl.SystemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		r.logger.Error("Failed to generate template response",
			zap.String("template", tmpl.Name),
			zap.String("document", docName),
			zap.Error(err))
		return "", err
	}
	return reply.Content, nil
}

func lookup(doc models.Document, field string) interface{} {
	if v, ok := doc.Data[field]; ok {
		return v
	}
	if field == "name" {
		return doc.Name
	}
	return nil
}

// format renders a field value. Missing and null values are blank.
func format(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func splitTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
