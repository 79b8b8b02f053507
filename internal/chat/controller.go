package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ai-integration/internal/channels"
	"ai-integration/internal/events"
	"ai-integration/internal/models"
)

// Procedures are the remote calls the controller drives.
type Procedures interface {
	Complete(ctx context.Context, chatID uuid.UUID, model string, msg models.Message) (string, error)
	ClearChat(ctx context.Context, chatID uuid.UUID) (ClearResult, error)
}

// LiveDispatcher starts live sessions.
type LiveDispatcher interface {
	GoLive(ctx context.Context, sessionID uuid.UUID, channel models.ChannelType) (channels.LiveSession, error)
}

// ClearDialog is an open confirmation for clearing a session. The token must
// be presented to ConfirmClear.
type ClearDialog struct {
	SessionID uuid.UUID `json:"session_id"`
	Token     string    `json:"token"`
}

// ClearOutcome is returned after a confirmed clear succeeded.
type ClearOutcome struct {
	Notice      string        `json:"notice"`
	ReloadAfter time.Duration `json:"reload_after"`
}

// Controller orchestrates sending prompts, clearing sessions and going live.
type Controller struct {
	sessions    SessionStore
	procs       Procedures
	dispatcher  LiveDispatcher
	publisher   events.Publisher
	reloadDelay time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	dialogs  map[uuid.UUID]string
	inFlight map[uuid.UUID]bool
	timers   map[uuid.UUID]*time.Timer
	closed   bool
}

// NewController creates a Controller. reloadDelay is how long after a
// successful clear the reload event is published.
func NewController(sessions SessionStore, procs Procedures, dispatcher LiveDispatcher, publisher events.Publisher, reloadDelay time.Duration, logger *zap.Logger) *Controller {
	return &Controller{
		sessions:    sessions,
		procs:       procs,
		dispatcher:  dispatcher,
		publisher:   publisher,
		reloadDelay: reloadDelay,
		logger:      logger,
		dialogs:     make(map[uuid.UUID]string),
		inFlight:    make(map[uuid.UUID]bool),
		timers:      make(map[uuid.UUID]*time.Timer),
	}
}

// Send validates the input, runs the completion and replaces the session's
// stored response with the reply, appending both turns to the history in the
// same write. An empty prompt is reported before an empty model. Nothing is
// stored when the provider fails, or when the session changed (or was
// cleared) while the completion was running.
func (c *Controller) Send(ctx context.Context, sessionID uuid.UUID, model, prompt string) (*models.ChatSession, error) {
	if prompt == "" {
		return nil, &models.ValidationError{Code: models.ErrorCodeEmptyPrompt, Field: "prompt", Message: "You can't send empty message"}
	}
	if model == "" {
		return nil, &models.ValidationError{Code: models.ErrorCodeModelNotSelected, Field: "model", Message: "Please select a model."}
	}

	chat, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	turn := models.Message{Role: "user", Content: prompt}
	reply, err := c.procs.Complete(ctx, sessionID, model, turn)
	if err != nil {
		return nil, err
	}

	chat.Prompt = prompt
	chat.Response = reply
	if err := c.sessions.SaveExchange(ctx, chat, turn, models.Message{Role: "assistant", Content: reply}); err != nil {
		c.logger.Warn("Dropping chat response", zap.String("chat", sessionID.String()), zap.Error(err))
		return nil, err
	}
	chat.Model = model
	return chat, nil
}

// OpenClearDialog opens the confirmation step of a clear. Only saved
// sessions can be cleared.
func (c *Controller) OpenClearDialog(ctx context.Context, sessionID uuid.UUID) (ClearDialog, error) {
	if _, err := c.sessions.Get(ctx, sessionID); err != nil {
		return ClearDialog{}, err
	}
	token := uuid.NewString()
	c.mu.Lock()
	c.dialogs[sessionID] = token
	c.mu.Unlock()
	return ClearDialog{SessionID: sessionID, Token: token}, nil
}

// Confirming reports whether a clear of sessionID is in flight, which is
// when its confirm control is disabled.
func (c *Controller) Confirming(sessionID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight[sessionID]
}

// ConfirmClear runs the clear confirmed through dialog token. A second
// confirmation while the first is running fails with ErrConflict. On
// failure the dialog stays open for a retry; on success a reload event is
// published after the reload delay.
func (c *Controller) ConfirmClear(ctx context.Context, sessionID uuid.UUID, token string) (ClearOutcome, error) {
	c.mu.Lock()
	switch {
	case c.dialogs[sessionID] == "" || c.dialogs[sessionID] != token:
		c.mu.Unlock()
		return ClearOutcome{}, models.NewValidationError("token", "clearing a chat must be confirmed first")
	case c.inFlight[sessionID]:
		c.mu.Unlock()
		return ClearOutcome{}, models.ErrConflict
	}
	c.inFlight[sessionID] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, sessionID)
		c.mu.Unlock()
	}()

	res, err := c.procs.ClearChat(ctx, sessionID)
	if err == nil && !res.Success {
		err = models.Unavailable("clear chat", errClearRejected(res.Message))
	}
	if err != nil {
		c.logger.Error("Failed to clear chat", zap.String("chat", sessionID.String()), zap.Error(err))
		return ClearOutcome{}, err
	}

	c.mu.Lock()
	delete(c.dialogs, sessionID)
	c.mu.Unlock()
	c.scheduleReload(sessionID)

	return ClearOutcome{Notice: res.Message, ReloadAfter: c.reloadDelay}, nil
}

type errClearRejected string

func (e errClearRejected) Error() string {
	if e == "" {
		return "clear was rejected"
	}
	return string(e)
}

func (c *Controller) scheduleReload(sessionID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if t, ok := c.timers[sessionID]; ok {
		t.Stop()
	}
	c.timers[sessionID] = time.AfterFunc(c.reloadDelay, func() {
		c.mu.Lock()
		delete(c.timers, sessionID)
		c.mu.Unlock()

		event := events.ReloadEvent{ChatID: sessionID, Reason: "cleared", Timestamp: time.Now().UTC()}
		if err := c.publisher.PublishReload(context.Background(), event); err != nil {
			c.logger.Error("Failed to publish reload event", zap.String("chat", sessionID.String()), zap.Error(err))
		}
	})
}

// GoLive dispatches the session to its channel's live-session initiator and
// marks it live. On any failure the session is left as it was.
func (c *Controller) GoLive(ctx context.Context, sessionID uuid.UUID) (*models.ChatSession, error) {
	chat, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !chat.Saved() {
		return nil, models.NewValidationError("id", "save the chat before going live")
	}

	live, err := c.dispatcher.GoLive(ctx, chat.ID, chat.ChannelType)
	if err != nil {
		return nil, err
	}

	chat.IsLive = true
	chat.LiveSessionURL = live.URL
	if err := c.sessions.Save(ctx, chat); err != nil {
		return nil, err
	}

	event := events.LiveSessionEvent{ChatID: chat.ID, ChannelType: chat.ChannelType, URL: live.URL, Timestamp: time.Now().UTC()}
	if err := c.publisher.PublishLive(ctx, event); err != nil {
		c.logger.Warn("Failed to publish live session event", zap.String("chat", chat.ID.String()), zap.Error(err))
	}
	return chat, nil
}

// Close cancels pending reloads.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}
