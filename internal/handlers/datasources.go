package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-integration/internal/datasource"
	"ai-integration/internal/models"
)

// DataSourceView is a data source with the request an agent would send.
type DataSourceView struct {
	*models.DataSource
	FullURL  string            `json:"full_url"`
	JSONBody map[string]string `json:"json_body,omitempty"`
}

// createDataSourceHandler godoc
// @Summary Register a data source
// @Tags datasources
// @Accept  json
// @Produce  json
// @Param   data_source  body  models.DataSource  true  "Data source"
// @Success 201 {object} DataSourceView
// @Failure 400 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Router /datasources [post]
func (a *API) createDataSourceHandler(c *gin.Context) {
	var ds models.DataSource
	if !bindJSON(c, &ds) {
		return
	}
	ds.Verified = false
	ds.VerifiedAt = nil
	if err := a.DataSources.Create(c.Request.Context(), &ds); err != nil {
		a.respondWithDomainError(c, err, gin.H{"name": ds.Name})
		return
	}
	RespondWithSuccess(c, http.StatusCreated, view(&ds))
}

// listDataSourcesHandler godoc
// @Summary List data sources
// @Tags datasources
// @Produce  json
// @Success 200 {array} models.DataSource
// @Router /datasources [get]
func (a *API) listDataSourcesHandler(c *gin.Context) {
	list, err := a.DataSources.List(c.Request.Context())
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, list)
}

// getDataSourceHandler godoc
// @Summary Get a data source
// @Tags datasources
// @Produce  json
// @Param   id  path  string  true  "Data source ID"
// @Success 200 {object} DataSourceView
// @Failure 404 {object} models.APIError
// @Router /datasources/{id} [get]
func (a *API) getDataSourceHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ds, err := a.DataSources.Get(c.Request.Context(), id)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, view(ds))
}

// verifyDataSourceHandler godoc
// @Summary Check that a data source answers
// @Tags datasources
// @Produce  json
// @Param   id  path  string  true  "Data source ID"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} models.APIError "No URL"
// @Failure 404 {object} models.APIError
// @Router /datasources/{id}/verify [post]
func (a *API) verifyDataSourceHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	verified, err := a.Verifier.Verify(c.Request.Context(), id)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, gin.H{"verified": verified})
}

func view(ds *models.DataSource) DataSourceView {
	return DataSourceView{
		DataSource: ds,
		FullURL:    datasource.FullURL(ds),
		JSONBody:   datasource.JSONBody(ds),
	}
}
