package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"ai-integration/internal/catalog"
	"ai-integration/internal/chat"
	"ai-integration/internal/datasource"
	"ai-integration/internal/metadata"
	"ai-integration/internal/models"
	"ai-integration/internal/modelsync"
	"ai-integration/internal/store"
	"ai-integration/internal/templates"
)

// Deps are the components the API serves.
type Deps struct {
	Entities    metadata.Repository
	Templates   *store.TemplateStore
	Chats       *store.ChatStore
	Documents   *store.DocumentStore
	DataSources *store.DataSourceStore
	Resolver    *catalog.Resolver
	Models      *modelsync.Synchronizer
	Validator   *templates.Validator
	Renderer    *templates.Renderer
	ChatService *chat.Service
	Controller  *chat.Controller
	Verifier    *datasource.Verifier
	Logger      *zap.Logger
}

// API provides the HTTP handlers of the service.
type API struct {
	Deps
	logger *zap.Logger
}

// NewAPI creates a new API handler.
func NewAPI(deps Deps) *API {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{Deps: deps, logger: logger}
}

// RegisterRoutes registers the API routes with the given Gin router.
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")

	entityRoutes := v1.Group("/entities")
	{
		entityRoutes.POST("", a.createEntityHandler)
		entityRoutes.GET("", a.listEntitiesHandler)
		entityRoutes.GET("/:name", a.getEntityHandler)
		entityRoutes.DELETE("/:name", a.deleteEntityHandler)
		entityRoutes.POST("/:name/fields", a.addFieldHandler)
		entityRoutes.GET("/:name/fields", a.listFieldsHandler)
	}

	templateRoutes := v1.Group("/templates")
	{
		templateRoutes.POST("", a.createTemplateHandler)
		templateRoutes.GET("", a.listTemplatesHandler)
		templateRoutes.GET("/:id", a.getTemplateHandler)
		templateRoutes.PUT("/:id", a.updateTemplateHandler)
		templateRoutes.DELETE("/:id", a.deleteTemplateHandler)
		templateRoutes.POST("/:id/resolve", a.resolveTemplateHandler)
		templateRoutes.POST("/:id/rows", a.updateRowHandler)
		templateRoutes.POST("/:id/models/sync", a.syncTemplateModelsHandler)
		templateRoutes.PUT("/:id/models", a.selectTemplateModelsHandler)
		templateRoutes.POST("/:id/render", a.renderTemplateHandler)
		templateRoutes.POST("/:id/generate", a.generateResponseHandler)
	}

	chatRoutes := v1.Group("/chats")
	{
		chatRoutes.POST("", a.createChatHandler)
		chatRoutes.GET("/:id", a.getChatHandler)
		chatRoutes.GET("/:id/models", a.chatModelsHandler)
		chatRoutes.PUT("/:id/model", a.selectChatModelHandler)
		chatRoutes.POST("/:id/send", a.sendHandler)
		chatRoutes.POST("/:id/clear", a.openClearDialogHandler)
		chatRoutes.POST("/:id/clear/confirm", a.confirmClearHandler)
		chatRoutes.POST("/:id/live", a.goLiveHandler)
	}

	documentRoutes := v1.Group("/documents/:type")
	{
		documentRoutes.GET("", a.listDocumentsHandler)
		documentRoutes.PUT("/:name", a.putDocumentHandler)
		documentRoutes.GET("/:name", a.getDocumentHandler)
		documentRoutes.DELETE("/:name", a.deleteDocumentHandler)
	}

	dataSourceRoutes := v1.Group("/datasources")
	{
		dataSourceRoutes.POST("", a.createDataSourceHandler)
		dataSourceRoutes.GET("", a.listDataSourcesHandler)
		dataSourceRoutes.GET("/:id", a.getDataSourceHandler)
		dataSourceRoutes.POST("/:id/verify", a.verifyDataSourceHandler)
	}
}

// parseID reads the :id path parameter.
func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeInvalidIDFormat, "Invalid ID format.", gin.H{"id": c.Param("id")})
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeInvalidJSON, "Invalid request payload", gin.H{"reason": err.Error()})
		return false
	}
	return true
}
