package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-integration/internal/models"
)

// createEntityHandler godoc
// @Summary Create an entity type
// @Description Create an entity type with its ordered field definitions.
// @Tags entities
// @Accept  json
// @Produce  json
// @Param   entity_type  body   models.CreateEntityTypeRequest   true  "Entity type to create"
// @Success 201 {object} models.EntityType
// @Failure 400 {object} models.APIError "Validation error"
// @Failure 409 {object} models.APIError "Duplicate name"
// @Router /entities [post]
func (a *API) createEntityHandler(c *gin.Context) {
	var req models.CreateEntityTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	entity, err := a.Entities.CreateEntityType(c.Request.Context(), req)
	if err != nil {
		a.respondWithDomainError(c, err, gin.H{"name": req.Name})
		return
	}
	RespondWithSuccess(c, http.StatusCreated, entity)
}

// listEntitiesHandler godoc
// @Summary List entity types
// @Tags entities
// @Produce  json
// @Success 200 {array} models.EntityType
// @Router /entities [get]
func (a *API) listEntitiesHandler(c *gin.Context) {
	list, err := a.Entities.ListEntityTypes(c.Request.Context())
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, list)
}

// getEntityHandler godoc
// @Summary Get an entity type with its fields
// @Tags entities
// @Produce  json
// @Param   name  path  string  true  "Entity type name"
// @Success 200 {object} models.EntityType
// @Failure 404 {object} models.APIError
// @Router /entities/{name} [get]
func (a *API) getEntityHandler(c *gin.Context) {
	entity, err := a.Entities.GetEntityType(c.Request.Context(), c.Param("name"))
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, entity)
}

// deleteEntityHandler godoc
// @Summary Delete an entity type
// @Tags entities
// @Param   name  path  string  true  "Entity type name"
// @Success 204
// @Failure 404 {object} models.APIError
// @Router /entities/{name} [delete]
func (a *API) deleteEntityHandler(c *gin.Context) {
	if err := a.Entities.DeleteEntityType(c.Request.Context(), c.Param("name")); err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusNoContent, nil)
}

// addFieldHandler godoc
// @Summary Append a field to an entity type
// @Tags entities
// @Accept  json
// @Produce  json
// @Param   name   path  string                     true  "Entity type name"
// @Param   field  body  models.CreateFieldRequest  true  "Field to add"
// @Success 201 {object} models.FieldDefinition
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Router /entities/{name}/fields [post]
func (a *API) addFieldHandler(c *gin.Context) {
	var req models.CreateFieldRequest
	if !bindJSON(c, &req) {
		return
	}
	field, err := a.Entities.AddField(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusCreated, field)
}

// listFieldsHandler godoc
// @Summary List the fields of an entity type in declaration order
// @Tags entities
// @Produce  json
// @Param   name  path  string  true  "Entity type name"
// @Success 200 {array} models.FieldDefinition
// @Failure 404 {object} models.APIError
// @Router /entities/{name}/fields [get]
func (a *API) listFieldsHandler(c *gin.Context) {
	fields, err := a.Entities.GetEntitySchema(c.Request.Context(), c.Param("name"))
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, fields)
}
