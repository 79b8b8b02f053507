package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"ai-integration/internal/channels"
	"ai-integration/internal/events"
	"ai-integration/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Mocks ---
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) Create(ctx context.Context, chat *models.ChatSession) error {
	return m.Called(ctx, chat).Error(0)
}

func (m *MockSessionStore) Get(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Hand out a copy so callers cannot mutate the fixture.
	chat := *args.Get(0).(*models.ChatSession)
	return &chat, args.Error(1)
}

func (m *MockSessionStore) Save(ctx context.Context, chat *models.ChatSession) error {
	return m.Called(ctx, chat).Error(0)
}

func (m *MockSessionStore) SaveExchange(ctx context.Context, chat *models.ChatSession, turns ...models.Message) error {
	return m.Called(ctx, chat, turns).Error(0)
}

type MockProcedures struct {
	mock.Mock
}

func (m *MockProcedures) Complete(ctx context.Context, chatID uuid.UUID, model string, msg models.Message) (string, error) {
	args := m.Called(ctx, chatID, model, msg)
	return args.String(0), args.Error(1)
}

func (m *MockProcedures) ClearChat(ctx context.Context, chatID uuid.UUID) (ClearResult, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(ClearResult), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) GoLive(ctx context.Context, sessionID uuid.UUID, channel models.ChannelType) (channels.LiveSession, error) {
	args := m.Called(ctx, sessionID, channel)
	return args.Get(0).(channels.LiveSession), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishLive(ctx context.Context, event events.LiveSessionEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockPublisher) PublishReload(ctx context.Context, event events.ReloadEvent) error {
	return m.Called(ctx, event).Error(0)
}

type fixture struct {
	sessions   *MockSessionStore
	procs      *MockProcedures
	dispatcher *MockDispatcher
	publisher  *MockPublisher
	controller *Controller
	chat       *models.ChatSession
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		sessions:   new(MockSessionStore),
		procs:      new(MockProcedures),
		dispatcher: new(MockDispatcher),
		publisher:  new(MockPublisher),
		chat: &models.ChatSession{
			ID:               uuid.New(),
			ChannelType:      models.ChannelWhatsApp,
			WhatsAppInstance: "wa-1",
			Response:         "old response",
			Revision:         3,
		},
	}
	f.controller = NewController(f.sessions, f.procs, f.dispatcher, f.publisher, 10*time.Millisecond, zap.NewNop())
	t.Cleanup(f.controller.Close)
	f.sessions.On("Get", mock.Anything, f.chat.ID).Return(f.chat, nil).Maybe()
	return f
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.controller.Send(ctx, f.chat.ID, "", "")
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, models.ErrorCodeEmptyPrompt, vErr.Code, "empty prompt wins over empty model")

	_, err = f.controller.Send(ctx, f.chat.ID, "llama3", "")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, models.ErrorCodeEmptyPrompt, vErr.Code)

	_, err = f.controller.Send(ctx, f.chat.ID, "", "hello")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, models.ErrorCodeModelNotSelected, vErr.Code)
	assert.NotEqual(t, "You can't send empty message", vErr.Message)

	f.procs.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendReplacesResponse(t *testing.T) {
	f := newFixture(t)
	f.procs.On("Complete", mock.Anything, f.chat.ID, "llama3", models.Message{Role: "user", Content: "hello"}).Return("hi there", nil)
	f.sessions.On("SaveExchange", mock.Anything, mock.MatchedBy(func(c *models.ChatSession) bool {
		return c.Response == "hi there" && c.Prompt == "hello" && c.Revision == 3
	}), []models.Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}).Return(nil)

	chat, err := f.controller.Send(context.Background(), f.chat.ID, "llama3", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", chat.Response)
	f.sessions.AssertExpectations(t)
}

func TestSendProviderFailureLeavesState(t *testing.T) {
	f := newFixture(t)
	f.procs.On("Complete", mock.Anything, f.chat.ID, "llama3", mock.Anything).
		Return("", models.Unavailable("llm", errors.New("timeout")))

	_, err := f.controller.Send(context.Background(), f.chat.ID, "llama3", "hello")
	var pu *models.ProviderUnavailableError
	require.ErrorAs(t, err, &pu)
	f.sessions.AssertNotCalled(t, "SaveExchange", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, "old response", f.chat.Response)
}

func TestSendStaleResponseIsDropped(t *testing.T) {
	f := newFixture(t)
	f.procs.On("Complete", mock.Anything, f.chat.ID, "llama3", mock.Anything).Return("late", nil)
	f.sessions.On("SaveExchange", mock.Anything, mock.Anything, mock.Anything).Return(models.ErrConflict)

	_, err := f.controller.Send(context.Background(), f.chat.ID, "llama3", "hello")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestSendUnknownSession(t *testing.T) {
	f := newFixture(t)
	missing := uuid.New()
	f.sessions.On("Get", mock.Anything, missing).Return(nil, models.NotFoundf("chat %s", missing))

	_, err := f.controller.Send(context.Background(), missing, "llama3", "hello")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestConfirmClearRequiresDialog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.controller.ConfirmClear(ctx, f.chat.ID, "")
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)

	dialog, err := f.controller.OpenClearDialog(ctx, f.chat.ID)
	require.NoError(t, err)
	_, err = f.controller.ConfirmClear(ctx, f.chat.ID, "wrong-"+dialog.Token)
	require.ErrorAs(t, err, &vErr)
	f.procs.AssertNotCalled(t, "ClearChat", mock.Anything, mock.Anything)
}

func TestConfirmClearSuccessSchedulesReload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notice := "Chat cleared successfully. Number of deleted messages (2)."
	f.procs.On("ClearChat", mock.Anything, f.chat.ID).Return(ClearResult{Success: true, Message: notice}, nil).Once()

	reloaded := make(chan events.ReloadEvent, 1)
	f.publisher.On("PublishReload", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		reloaded <- args.Get(1).(events.ReloadEvent)
	}).Return(nil).Once()

	dialog, err := f.controller.OpenClearDialog(ctx, f.chat.ID)
	require.NoError(t, err)
	out, err := f.controller.ConfirmClear(ctx, f.chat.ID, dialog.Token)
	require.NoError(t, err)
	assert.Equal(t, notice, out.Notice)
	assert.Equal(t, 10*time.Millisecond, out.ReloadAfter)
	assert.False(t, f.controller.Confirming(f.chat.ID))

	select {
	case ev := <-reloaded:
		assert.Equal(t, f.chat.ID, ev.ChatID)
	case <-time.After(2 * time.Second):
		t.Fatal("reload event was not published")
	}

	// The dialog is closed after a successful clear.
	_, err = f.controller.ConfirmClear(ctx, f.chat.ID, dialog.Token)
	var vErr *models.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestConfirmClearFailureKeepsDialog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.procs.On("ClearChat", mock.Anything, f.chat.ID).Return(ClearResult{}, models.Unavailable("clear chat", errors.New("boom"))).Once()
	f.procs.On("ClearChat", mock.Anything, f.chat.ID).Return(ClearResult{Success: true, Message: "done"}, nil).Once()
	f.publisher.On("PublishReload", mock.Anything, mock.Anything).Return(nil).Maybe()

	dialog, err := f.controller.OpenClearDialog(ctx, f.chat.ID)
	require.NoError(t, err)

	_, err = f.controller.ConfirmClear(ctx, f.chat.ID, dialog.Token)
	require.Error(t, err)
	assert.False(t, f.controller.Confirming(f.chat.ID), "confirm control is re-enabled after a failure")

	out, err := f.controller.ConfirmClear(ctx, f.chat.ID, dialog.Token)
	require.NoError(t, err)
	assert.Equal(t, "done", out.Notice)
}

func TestConfirmClearRejectedByProcedure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.procs.On("ClearChat", mock.Anything, f.chat.ID).Return(ClearResult{Success: false, Message: "locked"}, nil)

	dialog, err := f.controller.OpenClearDialog(ctx, f.chat.ID)
	require.NoError(t, err)
	_, err = f.controller.ConfirmClear(ctx, f.chat.ID, dialog.Token)
	var pu *models.ProviderUnavailableError
	require.ErrorAs(t, err, &pu)
	assert.ErrorContains(t, err, "locked")
	f.publisher.AssertNotCalled(t, "PublishReload", mock.Anything, mock.Anything)
}

func TestConfirmClearDisablesDuplicateSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	f.procs.On("ClearChat", mock.Anything, f.chat.ID).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return(ClearResult{}, errors.New("backend down")).Once()

	dialog, err := f.controller.OpenClearDialog(ctx, f.chat.ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.controller.ConfirmClear(ctx, f.chat.ID, dialog.Token)
		done <- err
	}()
	<-started

	assert.True(t, f.controller.Confirming(f.chat.ID))
	_, err = f.controller.ConfirmClear(ctx, f.chat.ID, dialog.Token)
	assert.ErrorIs(t, err, models.ErrConflict)

	close(release)
	assert.Error(t, <-done)
	assert.False(t, f.controller.Confirming(f.chat.ID))
	f.procs.AssertNumberOfCalls(t, "ClearChat", 1)
}

func TestCloseCancelsPendingReload(t *testing.T) {
	f := newFixture(t)
	f.controller.reloadDelay = time.Hour
	ctx := context.Background()
	f.procs.On("ClearChat", mock.Anything, f.chat.ID).Return(ClearResult{Success: true}, nil)

	dialog, err := f.controller.OpenClearDialog(ctx, f.chat.ID)
	require.NoError(t, err)
	_, err = f.controller.ConfirmClear(ctx, f.chat.ID, dialog.Token)
	require.NoError(t, err)

	f.controller.Close()
	f.publisher.AssertNotCalled(t, "PublishReload", mock.Anything, mock.Anything)
}

func TestGoLive(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.On("GoLive", mock.Anything, f.chat.ID, models.ChannelWhatsApp).
		Return(channels.LiveSession{Success: true, URL: "https://wa/live/1"}, nil)
	f.sessions.On("Save", mock.Anything, mock.MatchedBy(func(c *models.ChatSession) bool {
		return c.IsLive && c.LiveSessionURL == "https://wa/live/1"
	})).Return(nil)
	f.publisher.On("PublishLive", mock.Anything, mock.MatchedBy(func(ev events.LiveSessionEvent) bool {
		return ev.ChatID == f.chat.ID && ev.URL == "https://wa/live/1"
	})).Return(nil)

	chat, err := f.controller.GoLive(context.Background(), f.chat.ID)
	require.NoError(t, err)
	assert.True(t, chat.IsLive)
	assert.Equal(t, "https://wa/live/1", chat.LiveSessionURL)
	f.publisher.AssertExpectations(t)
}

func TestGoLiveFailureLeavesSession(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.On("GoLive", mock.Anything, f.chat.ID, models.ChannelWhatsApp).
		Return(channels.LiveSession{}, models.Unavailable("WhatsApp", errors.New("refused")))

	_, err := f.controller.GoLive(context.Background(), f.chat.ID)
	var pu *models.ProviderUnavailableError
	require.ErrorAs(t, err, &pu)
	f.sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishLive", mock.Anything, mock.Anything)
	assert.False(t, f.chat.IsLive)
}

func TestGoLiveUnmappedChannel(t *testing.T) {
	f := newFixture(t)
	f.chat.ChannelType = models.ChannelType("Telegram")
	f.dispatcher.On("GoLive", mock.Anything, f.chat.ID, models.ChannelType("Telegram")).
		Return(channels.LiveSession{}, &models.ConfigurationError{Setting: "channel type", Value: "Telegram"})

	_, err := f.controller.GoLive(context.Background(), f.chat.ID)
	var cfgErr *models.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestGoLivePublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.On("GoLive", mock.Anything, f.chat.ID, mock.Anything).
		Return(channels.LiveSession{Success: true, URL: "https://wa/live/2"}, nil)
	f.sessions.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.publisher.On("PublishLive", mock.Anything, mock.Anything).Return(errors.New("nats down"))

	chat, err := f.controller.GoLive(context.Background(), f.chat.ID)
	require.NoError(t, err)
	assert.True(t, chat.IsLive)
}
