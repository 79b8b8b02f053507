package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-integration/internal/catalog"
	"ai-integration/internal/models"
)

// UpdateRowRequest changes the target type of a text format row.
type UpdateRowRequest struct {
	Idx           int    `json:"idx" binding:"required,min=1"`
	TargetDoctype string `json:"target_doctype"`
}

// UpdateRowResponse is the recomputed row and its field choices.
type UpdateRowResponse struct {
	Row     models.TextFormatRow `json:"row"`
	Options catalog.RowOptions   `json:"options"`
}

// ResolveRequest optionally overrides the template's target type.
type ResolveRequest struct {
	TargetDoctype string `json:"target_doctype"`
}

// SelectModelsRequest persists the two model selections of a template.
type SelectModelsRequest struct {
	SelectedModel    string `json:"selected_model"`
	SelectedGPTModel string `json:"selected_gpt_model"`
}

// DocumentRequest names the target document to build a prompt for.
type DocumentRequest struct {
	Document string `json:"document" binding:"required"`
}

// createTemplateHandler godoc
// @Summary Create a message context template
// @Tags templates
// @Accept  json
// @Produce  json
// @Param   template  body  models.MessageContextTemplate  true  "Template to create"
// @Success 201 {object} models.MessageContextTemplate
// @Failure 400 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Router /templates [post]
func (a *API) createTemplateHandler(c *gin.Context) {
	var tmpl models.MessageContextTemplate
	if !bindJSON(c, &tmpl) {
		return
	}
	ctx := c.Request.Context()
	if err := a.Validator.Validate(ctx, &tmpl); err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	if err := a.Templates.Create(ctx, &tmpl); err != nil {
		a.respondWithDomainError(c, err, gin.H{"name": tmpl.Name})
		return
	}
	RespondWithSuccess(c, http.StatusCreated, tmpl)
}

// listTemplatesHandler godoc
// @Summary List message context templates
// @Tags templates
// @Produce  json
// @Success 200 {array} models.MessageContextTemplate
// @Router /templates [get]
func (a *API) listTemplatesHandler(c *gin.Context) {
	list, err := a.Templates.List(c.Request.Context())
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, list)
}

// getTemplateHandler godoc
// @Summary Get a message context template with its rows
// @Tags templates
// @Produce  json
// @Param   id  path  string  true  "Template ID"
// @Success 200 {object} models.MessageContextTemplate
// @Failure 404 {object} models.APIError
// @Router /templates/{id} [get]
func (a *API) getTemplateHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	tmpl, err := a.Templates.Get(c.Request.Context(), id)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, tmpl)
}

// updateTemplateHandler godoc
// @Summary Validate and save a message context template
// @Description Reference rows are checked against the schema of their entity type before anything is stored.
// @Tags templates
// @Accept  json
// @Produce  json
// @Param   id        path  string                         true  "Template ID"
// @Param   template  body  models.MessageContextTemplate  true  "Template"
// @Success 200 {object} models.MessageContextTemplate
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Router /templates/{id} [put]
func (a *API) updateTemplateHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var tmpl models.MessageContextTemplate
	if !bindJSON(c, &tmpl) {
		return
	}
	tmpl.ID = id

	ctx := c.Request.Context()
	if err := a.Validator.Validate(ctx, &tmpl); err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	if err := a.Templates.Save(ctx, &tmpl); err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	saved, err := a.Templates.Get(ctx, id)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, saved)
}

// deleteTemplateHandler godoc
// @Summary Delete a message context template
// @Tags templates
// @Param   id  path  string  true  "Template ID"
// @Success 204
// @Failure 404 {object} models.APIError
// @Router /templates/{id} [delete]
func (a *API) deleteTemplateHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := a.Templates.Delete(c.Request.Context(), id); err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	a.Resolver.Forget(id.String())
	RespondWithSuccess(c, http.StatusNoContent, nil)
}

// resolveTemplateHandler godoc
// @Summary Resolve the fields and linked types a template can use
// @Description On failure the previous resolution is returned in the error details.
// @Tags templates
// @Accept  json
// @Produce  json
// @Param   id       path  string          true   "Template ID"
// @Param   request  body  ResolveRequest  false  "Target type override"
// @Success 200 {object} catalog.Resolution
// @Failure 404 {object} models.APIError
// @Router /templates/{id}/resolve [post]
func (a *API) resolveTemplateHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ResolveRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	target := req.TargetDoctype
	if target == "" {
		tmpl, err := a.Templates.Get(ctx, id)
		if err != nil {
			a.respondWithDomainError(c, err, nil)
			return
		}
		target = tmpl.TargetDoctype
	}
	if target == "" {
		a.respondWithDomainError(c, models.NewValidationError("target_doctype", "template has no target type"), nil)
		return
	}

	res, err := a.Resolver.Refresh(ctx, id.String(), target)
	if err != nil {
		a.respondWithDomainError(c, err, gin.H{"previous": res})
		return
	}
	RespondWithSuccess(c, http.StatusOK, res)
}

// updateRowHandler godoc
// @Summary Change the target type of a text format row
// @Description Recomputes the row's field choices and its linked field, then saves the template.
// @Tags templates
// @Accept  json
// @Produce  json
// @Param   id       path  string            true  "Template ID"
// @Param   request  body  UpdateRowRequest  true  "Row index and new target type"
// @Success 200 {object} UpdateRowResponse
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Router /templates/{id}/rows [post]
func (a *API) updateRowHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req UpdateRowRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	tmpl, err := a.Templates.Get(ctx, id)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	if req.Idx > len(tmpl.TextFormat) {
		a.respondWithDomainError(c, models.NotFoundf("row %d of template %s", req.Idx, tmpl.Name), nil)
		return
	}

	row := tmpl.TextFormat[req.Idx-1]
	row.TargetDoctype = req.TargetDoctype
	row.LinkedFieldName = ""
	row.LinkedFieldType = ""
	opts, err := a.Resolver.UpdateRow(ctx, tmpl, &row)
	if err != nil {
		a.respondWithDomainError(c, err, gin.H{"idx": req.Idx})
		return
	}
	tmpl.TextFormat[req.Idx-1] = row
	if err := a.Templates.Save(ctx, tmpl); err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, UpdateRowResponse{Row: row, Options: opts})
}

// syncTemplateModelsHandler godoc
// @Summary Synchronize a template's model choices with the model catalogs
// @Description Returns the choices of every axis whose catalog answered. Persisted selections are never changed.
// @Tags templates
// @Produce  json
// @Param   id  path  string  true  "Template ID"
// @Success 200 {array} models.ModelChoice
// @Failure 502 {object} models.APIError
// @Router /templates/{id}/models/sync [post]
func (a *API) syncTemplateModelsHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	tmpl, err := a.Templates.Get(ctx, id)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	choices, err := a.Models.SyncTemplate(ctx, tmpl)
	if err != nil {
		a.respondWithDomainError(c, err, gin.H{"choices": choices})
		return
	}
	RespondWithSuccess(c, http.StatusOK, choices)
}

// selectTemplateModelsHandler godoc
// @Summary Persist a template's model selections
// @Description Each non-empty selection must be offered by its catalog.
// @Tags templates
// @Accept  json
// @Param   id       path  string               true  "Template ID"
// @Param   request  body  SelectModelsRequest  true  "Selections"
// @Success 204
// @Failure 400 {object} models.APIError
// @Failure 502 {object} models.APIError
// @Router /templates/{id}/models [put]
func (a *API) selectTemplateModelsHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req SelectModelsRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	for _, sel := range []struct {
		axis  models.ModelAxis
		field string
		value string
	}{
		{models.AxisPrimary, "selected_model", req.SelectedModel},
		{models.AxisSecondary, "selected_gpt_model", req.SelectedGPTModel},
	} {
		if sel.value == "" {
			continue
		}
		choice, err := a.Models.Sync(ctx, sel.axis, sel.value)
		if err != nil {
			a.respondWithDomainError(c, err, nil)
			return
		}
		if !choice.Write {
			a.respondWithDomainError(c, models.NewValidationError(sel.field, fmt.Sprintf("model %q is not available", sel.value)), nil)
			return
		}
	}

	if err := a.Templates.SetSelectedModels(ctx, id, req.SelectedModel, req.SelectedGPTModel); err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusNoContent, nil)
}

// renderTemplateHandler godoc
// @Summary Render the prompt of a template for a document
// @Tags templates
// @Accept  json
// @Produce  json
// @Param   id       path  string           true  "Template ID"
// @Param   request  body  DocumentRequest  true  "Target document"
// @Success 200 {object} map[string]string
// @Failure 404 {object} models.APIError
// @Router /templates/{id}/render [post]
func (a *API) renderTemplateHandler(c *gin.Context) {
	a.withTemplateDocument(c, func(tmpl *models.MessageContextTemplate, doc string) {
		prompt, err := a.Renderer.Render(c.Request.Context(), tmpl, doc)
		if err != nil {
			a.respondWithDomainError(c, err, gin.H{"document": doc})
			return
		}
		RespondWithSuccess(c, http.StatusOK, gin.H{"prompt": prompt})
	})
}

// generateResponseHandler godoc
// @Summary Generate an LLM response from a template and a document
// @Tags templates
// @Accept  json
// @Produce  json
// @Param   id       path  string           true  "Template ID"
// @Param   request  body  DocumentRequest  true  "Target document"
// @Success 200 {object} map[string]string
// @Failure 400 {object} models.APIError "No model selected"
// @Failure 502 {object} models.APIError "LLM unavailable"
// @Router /templates/{id}/generate [post]
func (a *API) generateResponseHandler(c *gin.Context) {
	a.withTemplateDocument(c, func(tmpl *models.MessageContextTemplate, doc string) {
		reply, err := a.Renderer.GenerateResponse(c.Request.Context(), tmpl, doc)
		if err != nil {
			a.respondWithDomainError(c, err, gin.H{"document": doc})
			return
		}
		RespondWithSuccess(c, http.StatusOK, gin.H{"response": reply})
	})
}

func (a *API) withTemplateDocument(c *gin.Context, fn func(*models.MessageContextTemplate, string)) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req DocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	tmpl, err := a.Templates.Get(c.Request.Context(), id)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	fn(tmpl, req.Document)
}
