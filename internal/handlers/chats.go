package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ai-integration/internal/models"
)

// CreateChatRequest opens a new chat session.
type CreateChatRequest struct {
	Title             string             `json:"title"`
	ChannelType       models.ChannelType `json:"channel_type"`
	WhatsAppInstance  string             `json:"whatsapp_instance"`
	InstagramInstance string             `json:"instagram_instance"`
	SelectedModel     string             `json:"selected_model"`
}

// SendRequest is a prompt sent to the session's model.
type SendRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// SelectChatModelRequest persists a session's model.
type SelectChatModelRequest struct {
	Model string `json:"model"`
}

// ConfirmClearRequest confirms an open clear dialog.
type ConfirmClearRequest struct {
	Token string `json:"token" binding:"required"`
}

// createChatHandler godoc
// @Summary Create a chat session
// @Tags chats
// @Accept  json
// @Produce  json
// @Param   chat  body  CreateChatRequest  true  "Session to create"
// @Success 201 {object} models.ChatSession
// @Failure 400 {object} models.APIError
// @Router /chats [post]
func (a *API) createChatHandler(c *gin.Context) {
	var req CreateChatRequest
	if !bindJSON(c, &req) {
		return
	}
	chat := models.ChatSession{
		Title:             req.Title,
		ChannelType:       req.ChannelType,
		WhatsAppInstance:  req.WhatsAppInstance,
		InstagramInstance: req.InstagramInstance,
		SelectedModel:     req.SelectedModel,
	}
	if err := a.Chats.Create(c.Request.Context(), &chat); err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusCreated, chat)
}

// getChatHandler godoc
// @Summary Get a chat session with its history
// @Tags chats
// @Produce  json
// @Param   id  path  string  true  "Chat ID"
// @Success 200 {object} models.ChatSession
// @Failure 404 {object} models.APIError
// @Router /chats/{id} [get]
func (a *API) getChatHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	chat, err := a.Chats.Get(c.Request.Context(), id)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, chat)
}

// chatModelsHandler godoc
// @Summary List the models a chat session can use
// @Description The persisted model stays selected only while the catalog still offers it.
// @Tags chats
// @Produce  json
// @Param   id  path  string  true  "Chat ID"
// @Success 200 {object} models.ModelChoice
// @Failure 502 {object} models.APIError
// @Router /chats/{id}/models [get]
func (a *API) chatModelsHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	chat, err := a.Chats.Get(ctx, id)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	choice, err := a.Models.Sync(ctx, models.AxisPrimary, chat.SelectedModel)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, models.ModelChoice{
		Axis:      models.AxisPrimary,
		Available: choice.Options,
		Current:   choice.Selected,
		Persisted: chat.SelectedModel,
	})
}

// selectChatModelHandler godoc
// @Summary Select the model of a chat session
// @Tags chats
// @Accept  json
// @Produce  json
// @Param   id       path  string                  true  "Chat ID"
// @Param   request  body  SelectChatModelRequest  true  "Model"
// @Success 200 {object} models.ChatSession
// @Failure 404 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Router /chats/{id}/model [put]
func (a *API) selectChatModelHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req SelectChatModelRequest
	if !bindJSON(c, &req) {
		return
	}
	chat, err := a.ChatService.SelectModel(c.Request.Context(), id, req.Model)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, chat)
}

// sendHandler godoc
// @Summary Send a prompt to the selected model
// @Description The reply replaces the session's stored response. Nothing is stored when the model fails.
// @Tags chats
// @Accept  json
// @Produce  json
// @Param   id       path  string       true  "Chat ID"
// @Param   request  body  SendRequest  true  "Prompt and model"
// @Success 200 {object} models.ChatSession
// @Failure 400 {object} models.APIError "Empty prompt or no model selected"
// @Failure 409 {object} models.APIError "Session changed meanwhile"
// @Failure 502 {object} models.APIError "LLM unavailable"
// @Router /chats/{id}/send [post]
func (a *API) sendHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req SendRequest
	if !bindJSON(c, &req) {
		return
	}
	chat, err := a.Controller.Send(c.Request.Context(), id, req.Model, req.Prompt)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, chat)
}

// openClearDialogHandler godoc
// @Summary Ask to clear a chat session
// @Description Returns the token that confirms the clear.
// @Tags chats
// @Produce  json
// @Param   id  path  string  true  "Chat ID"
// @Success 200 {object} chat.ClearDialog
// @Failure 404 {object} models.APIError
// @Router /chats/{id}/clear [post]
func (a *API) openClearDialogHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	dialog, err := a.Controller.OpenClearDialog(c.Request.Context(), id)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, dialog)
}

// confirmClearHandler godoc
// @Summary Confirm clearing a chat session
// @Description Clears the history and the channel messages of the session. A reload event follows after a short delay.
// @Tags chats
// @Accept  json
// @Produce  json
// @Param   id       path  string               true  "Chat ID"
// @Param   request  body  ConfirmClearRequest  true  "Dialog token"
// @Success 200 {object} chat.ClearOutcome
// @Failure 400 {object} models.APIError
// @Failure 409 {object} models.APIError "A clear is already running"
// @Failure 502 {object} models.APIError
// @Router /chats/{id}/clear/confirm [post]
func (a *API) confirmClearHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ConfirmClearRequest
	if !bindJSON(c, &req) {
		return
	}
	outcome, err := a.Controller.ConfirmClear(c.Request.Context(), id, req.Token)
	if err != nil {
		a.respondWithDomainError(c, err, nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, outcome)
}

// goLiveHandler godoc
// @Summary Hand a chat session off to a live channel session
// @Tags chats
// @Produce  json
// @Param   id  path  string  true  "Chat ID"
// @Success 200 {object} models.ChatSession
// @Failure 404 {object} models.APIError
// @Failure 500 {object} models.APIError "Unsupported channel"
// @Failure 502 {object} models.APIError "Channel unavailable"
// @Router /chats/{id}/live [post]
func (a *API) goLiveHandler(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	chat, err := a.Controller.GoLive(c.Request.Context(), id)
	if err != nil {
		a.respondWithDomainError(c, err, gin.H{"id": id.String()})
		return
	}
	RespondWithSuccess(c, http.StatusOK, chat)
}
