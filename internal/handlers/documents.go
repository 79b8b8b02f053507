package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// putDocumentHandler godoc
// @Summary Create or replace a document
// @Description The body is the document's data. Child collections are arrays of objects under the owning field.
// @Tags documents
// @Accept  json
// @Produce  json
// @Param   type  path  string                  true  "Entity type"
// @Param   name  path  string                  true  "Document name"
// @Param   data  body  map[string]interface{}  true  "Document data"
// @Success 200 {object} models.Document
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError "Unknown entity type"
// @Router /documents/{type}/{name} [put]
func (a *API) putDocumentHandler(c *gin.Context) {
	var data map[string]interface{}
	if !bindJSON(c, &data) {
		return
	}
	ctx := c.Request.Context()
	entityType := c.Param("type")
	if _, err := a.Entities.GetEntityType(ctx, entityType); err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	doc, err := a.Documents.Put(ctx, entityType, c.Param("name"), data)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, doc)
}

// getDocumentHandler godoc
// @Summary Get a document
// @Tags documents
// @Produce  json
// @Param   type  path  string  true  "Entity type"
// @Param   name  path  string  true  "Document name"
// @Success 200 {object} models.Document
// @Failure 404 {object} models.APIError
// @Router /documents/{type}/{name} [get]
func (a *API) getDocumentHandler(c *gin.Context) {
	doc, err := a.Documents.Get(c.Request.Context(), c.Param("type"), c.Param("name"))
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, doc)
}

// listDocumentsHandler godoc
// @Summary List the documents of an entity type
// @Tags documents
// @Produce  json
// @Param   type  path  string  true  "Entity type"
// @Success 200 {array} models.Document
// @Router /documents/{type} [get]
func (a *API) listDocumentsHandler(c *gin.Context) {
	list, err := a.Documents.List(c.Request.Context(), c.Param("type"))
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, list)
}

// deleteDocumentHandler godoc
// @Summary Delete a document
// @Tags documents
// @Param   type  path  string  true  "Entity type"
// @Param   name  path  string  true  "Document name"
// @Success 204
// @Failure 404 {object} models.APIError
// @Router /documents/{type}/{name} [delete]
func (a *API) deleteDocumentHandler(c *gin.Context) {
	if err := a.Documents.Delete(c.Request.Context(), c.Param("type"), c.Param("name")); err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusNoContent, nil)
}
