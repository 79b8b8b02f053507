package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ai-integration/internal/catalog"
	"ai-integration/internal/channels"
	"ai-integration/internal/chat"
	"ai-integration/internal/database"
	"ai-integration/internal/datasource"
	"ai-integration/internal/events"
	"ai-integration/internal/llm"
	"ai-integration/internal/metadata"
	"ai-integration/internal/models"
	"ai-integration/internal/modelsync"
	"ai-integration/internal/store"
	"ai-integration/internal/templates"
)

type fakeInitiator struct {
	session channels.LiveSession
	err     error
}

func (f fakeInitiator) StartLiveSession(context.Context, uuid.UUID) (channels.LiveSession, error) {
	return f.session, f.err
}

type testEnv struct {
	router  *gin.Engine
	api     *API
	llmDown atomic.Bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{}

	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if env.llmDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"llama3:latest","model":"llama3:latest"},{"name":"mistral","model":"mistral"}]}`))
		case "/api/chat":
			var req struct {
				Model    string           `json:"model"`
				Messages []models.Message `json:"messages"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			last := req.Messages[len(req.Messages)-1]
			json.NewEncoder(w).Encode(map[string]interface{}{
				"message": models.Message{Role: "assistant", Content: req.Model + " says: " + last.Content},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ollama.Close)

	logger := zap.NewNop()
	db := database.NewTestDB(t)
	entities := metadata.NewDBStore(db)
	templateStore := store.NewTemplateStore(db)
	chats := store.NewChatStore(db)
	docs := store.NewDocumentStore(db)
	sources := store.NewDataSourceStore(db)

	client := llm.NewOllamaClient(ollama.URL+"/api", 2*time.Second, logger)
	synchronizer := modelsync.New(
		modelsync.Records(client),
		modelsync.Identifiers(llm.NewStaticCatalog([]string{"models/gemini-1.5-flash"}, logger)),
		logger,
	)
	service := chat.NewService(chats, chats, client, logger)
	dispatcher := channels.NewDispatcher(
		fakeInitiator{session: channels.LiveSession{Success: true, URL: "https://wa.example/live/1"}},
		fakeInitiator{session: channels.LiveSession{Success: false}},
		logger,
	)
	controller := chat.NewController(chats, service, dispatcher, events.Nop{}, 10*time.Millisecond, logger)
	t.Cleanup(controller.Close)

	env.api = NewAPI(Deps{
		Entities:    entities,
		Templates:   templateStore,
		Chats:       chats,
		Documents:   docs,
		DataSources: sources,
		Resolver:    catalog.NewResolver(entities, catalog.NewRegistries(), logger),
		Models:      synchronizer,
		Validator:   templates.NewValidator(entities),
		Renderer:    templates.NewRenderer(docs, client, logger),
		ChatService: service,
		Controller:  controller,
		Verifier:    datasource.NewVerifier(sources, logger),
		Logger:      logger,
	})
	env.router = gin.New()
	env.api.RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// seedInvoice creates Customer and Invoice types and one invoice document.
func (e *testEnv) seedInvoice(t *testing.T) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/entities", models.CreateEntityTypeRequest{
		Name:   "Customer",
		Fields: []models.CreateFieldRequest{{Name: "customer_name", Kind: models.KindScalar}, {Name: "city", Kind: models.KindScalar}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = e.do(t, http.MethodPost, "/api/v1/entities", models.CreateEntityTypeRequest{
		Name: "Invoice",
		Fields: []models.CreateFieldRequest{
			{Name: "total", Kind: models.KindScalar},
			{Name: "details", Kind: models.KindNoValue},
			{Name: "customer", Kind: models.KindLink, LinkedType: "Customer"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodPut, "/api/v1/documents/Invoice/INV-1", map[string]interface{}{"total": 120, "customer": "ACME"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = e.do(t, http.MethodPut, "/api/v1/documents/Customer/ACME", map[string]interface{}{"customer_name": "ACME", "city": "Lisbon"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (e *testEnv) createTemplate(t *testing.T, tmpl models.MessageContextTemplate) models.MessageContextTemplate {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/templates", tmpl)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.MessageContextTemplate](t, w)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEntityRoutes(t *testing.T) {
	env := newTestEnv(t)
	env.seedInvoice(t)

	w := env.do(t, http.MethodGet, "/api/v1/entities/Invoice/fields", nil)
	require.Equal(t, http.StatusOK, w.Code)
	fields := decode[[]models.FieldDefinition](t, w)
	require.Len(t, fields, 3)
	assert.Equal(t, "total", fields[0].Name)

	w = env.do(t, http.MethodPost, "/api/v1/entities", models.CreateEntityTypeRequest{Name: "Invoice"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/entities/Nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrorCodeNotFound, decode[models.APIError](t, w).Code)

	w = env.do(t, http.MethodPost, "/api/v1/entities", map[string]string{"description": "no name"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrorCodeInvalidJSON, decode[models.APIError](t, w).Code)
}

func TestPutDocumentUnknownType(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPut, "/api/v1/documents/Ghost/G-1", map[string]interface{}{"a": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTemplateLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedInvoice(t)

	tmpl := env.createTemplate(t, models.MessageContextTemplate{
		Name:          "invoice-summary",
		TargetDoctype: "Invoice",
		UserPrompt:    "Summarize.",
		TextFormat: []models.TextFormatRow{
			{TargetDoctype: "Invoice", FieldName: "total", Before: "Total:", After: "EUR"},
		},
	})
	path := "/api/v1/templates/" + tmpl.ID.String()

	t.Run("Resolve", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path+"/resolve", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		res := decode[catalog.Resolution](t, w)
		assert.Equal(t, []string{"total"}, res.SubstitutionFields)
		assert.Equal(t, []string{"Customer", "Invoice"}, res.QueryableLinkedTypes)
	})

	t.Run("ResolveUnknownTypeKeepsPrevious", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path+"/resolve", ResolveRequest{TargetDoctype: "Ghost"})
		require.Equal(t, http.StatusNotFound, w.Code)
		details := decode[models.APIError](t, w).Details.(map[string]interface{})
		previous := details["previous"].(map[string]interface{})
		assert.Equal(t, "Invoice", previous["target_type"])
	})

	t.Run("UpdateRowToLinkedType", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path+"/rows", UpdateRowRequest{Idx: 1, TargetDoctype: "Customer"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[UpdateRowResponse](t, w)
		assert.Equal(t, "customer", resp.Row.LinkedFieldName)
		assert.Equal(t, models.KindLink, resp.Row.LinkedFieldType)
		assert.Equal(t, []string{"", "customer_name", "city"}, resp.Options.FieldName)

		w = env.do(t, http.MethodGet, path, nil)
		saved := decode[models.MessageContextTemplate](t, w)
		assert.Equal(t, "customer", saved.TextFormat[0].LinkedFieldName)
	})

	t.Run("UpdateRowOutOfRange", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path+"/rows", UpdateRowRequest{Idx: 5, TargetDoctype: "Customer"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, path, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		w = env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUpdateTemplateRejectsUnknownReferenceField(t *testing.T) {
	env := newTestEnv(t)
	env.seedInvoice(t)
	tmpl := env.createTemplate(t, models.MessageContextTemplate{Name: "t", TargetDoctype: "Invoice"})

	tmpl.ReferenceTargets = []models.ReferenceTarget{{Reference: "Customer", Fields: "customer_name, phone"}}
	w := env.do(t, http.MethodPut, "/api/v1/templates/"+tmpl.ID.String(), tmpl)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Not Found: 'phone' is not a field of 'Customer' DocType.", decode[models.APIError](t, w).Message)

	w = env.do(t, http.MethodGet, "/api/v1/templates/"+tmpl.ID.String(), nil)
	assert.Empty(t, decode[models.MessageContextTemplate](t, w).ReferenceTargets)
}

func TestRenderAndGenerate(t *testing.T) {
	env := newTestEnv(t)
	env.seedInvoice(t)
	tmpl := env.createTemplate(t, models.MessageContextTemplate{
		Name:          "invoice-summary",
		TargetDoctype: "Invoice",
		SystemPrompt:  "You are an accountant.",
		UserPrompt:    "Summarize.",
		TextFormat:    []models.TextFormatRow{{TargetDoctype: "Invoice", FieldName: "total", Before: "Total:", After: "EUR"}},
	})
	path := "/api/v1/templates/" + tmpl.ID.String()

	w := env.do(t, http.MethodPost, path+"/render", DocumentRequest{Document: "INV-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Total: 120 EUR\n\nSummarize.", decode[map[string]string](t, w)["prompt"])

	w = env.do(t, http.MethodPost, path+"/generate", DocumentRequest{Document: "INV-1"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrorCodeModelNotSelected, decode[models.APIError](t, w).Code)

	w = env.do(t, http.MethodPut, path+"/models", SelectModelsRequest{SelectedModel: "llama3:latest"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, path+"/generate", DocumentRequest{Document: "INV-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "llama3:latest says: Total: 120 EUR\n\nSummarize.", decode[map[string]string](t, w)["response"])

	w = env.do(t, http.MethodPost, path+"/render", DocumentRequest{Document: "INV-404"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTemplateModelSync(t *testing.T) {
	env := newTestEnv(t)
	tmpl := env.createTemplate(t, models.MessageContextTemplate{Name: "t"})
	path := "/api/v1/templates/" + tmpl.ID.String()

	w := env.do(t, http.MethodPut, path+"/models", SelectModelsRequest{SelectedModel: "gone"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, path+"/models", SelectModelsRequest{SelectedModel: "mistral", SelectedGPTModel: "gemini-1.5-flash"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, path+"/models/sync", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	choices := decode[[]models.ModelChoice](t, w)
	require.Len(t, choices, 2)
	assert.Equal(t, []string{"", "llama3:latest", "mistral"}, choices[0].Available)
	assert.Equal(t, "mistral", choices[0].Current)
	assert.Equal(t, "gemini-1.5-flash", choices[1].Current)

	env.llmDown.Store(true)
	w = env.do(t, http.MethodPost, path+"/models/sync", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	details := decode[models.APIError](t, w).Details.(map[string]interface{})
	assert.Len(t, details["choices"], 1)
}

func TestChatFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/chats", CreateChatRequest{Title: "support", ChannelType: models.ChannelWhatsApp, WhatsAppInstance: "wa-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	session := decode[models.ChatSession](t, w)
	path := "/api/v1/chats/" + session.ID.String()

	t.Run("SendValidation", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path+"/send", SendRequest{Model: "", Prompt: ""})
		require.Equal(t, http.StatusBadRequest, w.Code)
		apiErr := decode[models.APIError](t, w)
		assert.Equal(t, models.ErrorCodeEmptyPrompt, apiErr.Code)
		assert.Equal(t, "You can't send empty message", apiErr.Message)

		w = env.do(t, http.MethodPost, path+"/send", SendRequest{Prompt: "hi"})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Please select a model.", decode[models.APIError](t, w).Message)
	})

	t.Run("Send", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path+"/send", SendRequest{Model: "mistral", Prompt: "hi"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		sent := decode[models.ChatSession](t, w)
		assert.Equal(t, "mistral says: hi", sent.Response)
		assert.Len(t, sent.Messages, 2)
	})

	t.Run("SendProviderDown", func(t *testing.T) {
		env.llmDown.Store(true)
		defer env.llmDown.Store(false)
		w := env.do(t, http.MethodPost, path+"/send", SendRequest{Model: "mistral", Prompt: "again"})
		require.Equal(t, http.StatusBadGateway, w.Code)

		w = env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, "mistral says: hi", decode[models.ChatSession](t, w).Response)
	})

	t.Run("Models", func(t *testing.T) {
		w := env.do(t, http.MethodPut, path+"/model", SelectChatModelRequest{Model: "mistral"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = env.do(t, http.MethodGet, path+"/models", nil)
		require.Equal(t, http.StatusOK, w.Code)
		choice := decode[models.ModelChoice](t, w)
		assert.Equal(t, "mistral", choice.Current)
		assert.Equal(t, "", choice.Available[0])
	})

	t.Run("Clear", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path+"/clear/confirm", ConfirmClearRequest{Token: "unopened"})
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = env.do(t, http.MethodPost, path+"/clear", nil)
		require.Equal(t, http.StatusOK, w.Code)
		dialog := decode[chat.ClearDialog](t, w)

		w = env.do(t, http.MethodPost, path+"/clear/confirm", ConfirmClearRequest{Token: dialog.Token})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		outcome := decode[chat.ClearOutcome](t, w)
		assert.Equal(t, "Chat cleared successfully. Number of deleted messages (0).", outcome.Notice)

		w = env.do(t, http.MethodGet, path, nil)
		cleared := decode[models.ChatSession](t, w)
		assert.Empty(t, cleared.Messages)
		assert.Empty(t, cleared.Response)
	})

	t.Run("GoLive", func(t *testing.T) {
		w := env.do(t, http.MethodPost, path+"/live", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		live := decode[models.ChatSession](t, w)
		assert.True(t, live.IsLive)
		assert.Equal(t, "https://wa.example/live/1", live.LiveSessionURL)
	})
}

func TestGoLiveFailures(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct {
		channel models.ChannelType
		status  int
		code    string
	}{
		{models.ChannelInstagram, http.StatusBadGateway, models.ErrorCodeServiceUnavailable},
		{"Telegram", http.StatusInternalServerError, models.ErrorCodeConfiguration},
	} {
		t.Run(string(tc.channel), func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/chats", CreateChatRequest{ChannelType: tc.channel})
			require.Equal(t, http.StatusCreated, w.Code)
			session := decode[models.ChatSession](t, w)

			w = env.do(t, http.MethodPost, "/api/v1/chats/"+session.ID.String()+"/live", nil)
			require.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decode[models.APIError](t, w).Code)

			w = env.do(t, http.MethodGet, "/api/v1/chats/"+session.ID.String(), nil)
			assert.False(t, decode[models.ChatSession](t, w).IsLive)
		})
	}
}

func TestInvalidID(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/chats/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrorCodeInvalidIDFormat, decode[models.APIError](t, w).Code)
}

func TestDataSourceRoutes(t *testing.T) {
	env := newTestEnv(t)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	w := env.do(t, http.MethodPost, "/api/v1/datasources", models.DataSource{
		Name:      "orders",
		URL:       upstream.URL + "/orders",
		AuthType:  "Bearer",
		AuthToken: "s3cret",
		Params: []models.DataSourceParam{
			{Kind: models.ParamFilter, FieldName: "status", Example: "open"},
			{Kind: models.ParamField, FieldName: "limit", Example: "10"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[DataSourceView](t, w)
	assert.Equal(t, upstream.URL+"/orders?status={open}", created.FullURL)
	assert.False(t, created.Verified)

	w = env.do(t, http.MethodPost, "/api/v1/datasources/"+created.ID.String()+"/verify", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[map[string]bool](t, w)["verified"])

	w = env.do(t, http.MethodGet, "/api/v1/datasources/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[DataSourceView](t, w)
	assert.True(t, got.Verified)
	assert.NotNil(t, got.VerifiedAt)

	w = env.do(t, http.MethodPost, "/api/v1/datasources", models.DataSource{Name: "empty"})
	require.Equal(t, http.StatusCreated, w.Code)
	empty := decode[DataSourceView](t, w)
	w = env.do(t, http.MethodPost, "/api/v1/datasources/"+empty.ID.String()+"/verify", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := decode[models.APIError](t, w)
	assert.Equal(t, models.ErrorCodeMissingURL, apiErr.Code)
	assert.Equal(t, "URL is required", apiErr.Message)
}
