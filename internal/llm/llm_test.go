package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ai-integration/internal/models"
)

func newTestOllama(t *testing.T, handler http.HandlerFunc) *OllamaClient {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOllamaClient(server.URL+"/api/", 5*time.Second, zap.NewNop())
}

func TestOllamaListModels(t *testing.T) {
	client := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest","model":"llama3:latest"},{"name":"qwen","model":"qwen2:7b"}]}`))
	})

	list, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ModelInfo{{Model: "llama3:latest"}, {Model: "qwen2:7b"}}, list)
}

func TestOllamaListModelsStatusError(t *testing.T) {
	client := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ListModels(context.Background())
	var pu *models.ProviderUnavailableError
	require.ErrorAs(t, err, &pu)
	assert.Equal(t, "llm", pu.Provider)
}

func TestOllamaListModelsMalformed(t *testing.T) {
	client := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.ListModels(context.Background())
	var pu *models.ProviderUnavailableError
	assert.ErrorAs(t, err, &pu)
}

func TestOllamaChat(t *testing.T) {
	client := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"hello"}}`))
	})

	msg, err := client.Chat(context.Background(), "llama3", []models.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.Message{Role: "assistant", Content: "hello"}, msg)
}

func TestOllamaChatMissingMessage(t *testing.T) {
	client := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.Chat(context.Background(), "llama3", nil)
	var pu *models.ProviderUnavailableError
	assert.ErrorAs(t, err, &pu)
}

func TestOllamaUnreachable(t *testing.T) {
	client := NewOllamaClient("http://127.0.0.1:1", time.Second, zap.NewNop())
	_, err := client.ListModels(context.Background())
	var pu *models.ProviderUnavailableError
	assert.ErrorAs(t, err, &pu)
}

// --- Mock ModelLister ---
type MockModelLister struct {
	mock.Mock
}

func (m *MockModelLister) ListModelNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func TestGenAICatalogTrimsPrefix(t *testing.T) {
	lister := new(MockModelLister)
	lister.On("ListModelNames", mock.Anything).Return([]string{"models/gemini-2.5-flash", "gemini-2.5-pro"}, nil)

	ids, err := NewGenAICatalog(lister, zap.NewNop()).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.5-pro"}, ids)
	lister.AssertExpectations(t)
}

func TestGenAICatalogError(t *testing.T) {
	lister := new(MockModelLister)
	lister.On("ListModelNames", mock.Anything).Return(nil, errors.New("permission denied"))

	_, err := NewGenAICatalog(lister, zap.NewNop()).ListModels(context.Background())
	var pu *models.ProviderUnavailableError
	require.ErrorAs(t, err, &pu)
	assert.Equal(t, "genai", pu.Provider)
}

func TestStaticCatalog(t *testing.T) {
	ids, err := NewStaticCatalog([]string{"a", "models/b"}, zap.NewNop()).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
