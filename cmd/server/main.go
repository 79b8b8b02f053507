// @title AI Integration API
// @version 1.0
// @description Message context templates, LLM chat sessions and data sources.
// @host localhost:8080
// @BasePath /api/v1
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "ai-integration/docs"
	"ai-integration/internal/catalog"
	"ai-integration/internal/channels"
	"ai-integration/internal/chat"
	"ai-integration/internal/config"
	"ai-integration/internal/database"
	"ai-integration/internal/datasource"
	"ai-integration/internal/events"
	"ai-integration/internal/handlers"
	"ai-integration/internal/llm"
	"ai-integration/internal/logging"
	"ai-integration/internal/metadata"
	"ai-integration/internal/modelsync"
	"ai-integration/internal/scheduler"
	"ai-integration/internal/store"
	"ai-integration/internal/templates"
)

var (
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ai-integration",
	Short: "LLM prompt templates and chat sessions over a document store",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging)
		return err
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(cfg.Database, logger)
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		logger.Info("Database migrated")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	defer logger.Sync() //nolint:errcheck

	db, err := database.Connect(cfg.Database, logger)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	entities := metadata.NewDBStore(db)
	templateStore := store.NewTemplateStore(db)
	chats := store.NewChatStore(db)
	docs := store.NewDocumentStore(db)
	sources := store.NewDataSourceStore(db)

	ollama := llm.NewOllamaClient(cfg.LLM.BaseURL, config.Duration(cfg.LLM.Timeout, 60*time.Second), logger.Named("llm"))
	secondary, err := secondaryCatalog(ctx)
	if err != nil {
		return err
	}
	synchronizer := modelsync.New(modelsync.Records(ollama), modelsync.Identifiers(secondary), logger.Named("models"))

	publisher, closeEvents, err := newPublisher()
	if err != nil {
		return err
	}
	defer closeEvents()

	dispatcher := channels.NewDispatcher(
		initiator(cfg.Channels.WhatsApp),
		initiator(cfg.Channels.Instagram),
		logger.Named("channels"),
	)
	service := chat.NewService(chats, chats, ollama, logger.Named("chat"))
	controller := chat.NewController(chats, service, dispatcher, publisher,
		config.Duration(cfg.Chat.ClearReloadDelay, 3*time.Second), logger.Named("chat"))
	defer controller.Close()

	verifier := datasource.NewVerifier(sources, logger.Named("datasource"))
	jobs := scheduler.New(verifier, logger.Named("scheduler"))
	if err := jobs.Start(cfg.Scheduler.VerifyDataSources); err != nil {
		return err
	}
	defer jobs.Stop()

	api := handlers.NewAPI(handlers.Deps{
		Entities:    entities,
		Templates:   templateStore,
		Chats:       chats,
		Documents:   docs,
		DataSources: sources,
		Resolver:    catalog.NewResolver(entities, catalog.NewRegistries(), logger.Named("catalog")),
		Models:      synchronizer,
		Validator:   templates.NewValidator(entities),
		Renderer:    templates.NewRenderer(docs, ollama, logger.Named("templates")),
		ChatService: service,
		Controller:  controller,
		Verifier:    verifier,
		Logger:      logger.Named("api"),
	})

	gin.SetMode(cfg.Server.Mode)
	var router *gin.Engine
	if cfg.Server.Mode == gin.ReleaseMode {
		router = gin.New()
		router.Use(logging.GinMiddleware(logger.Named("http")), gin.Recovery())
	} else {
		router = gin.Default()
	}
	api.RegisterRoutes(router)

	srv := &http.Server{Addr: cfg.Server.Address, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func secondaryCatalog(ctx context.Context) (*llm.GenAICatalog, error) {
	if cfg.GenAI.APIKey == "" {
		logger.Warn("GENAI_API_KEY not set, secondary model catalog is empty")
		return llm.NewStaticCatalog(nil, logger.Named("genai")), nil
	}
	client, err := llm.NewGenAIClient(ctx, cfg.GenAI.APIKey)
	if err != nil {
		return nil, err
	}
	return llm.NewGenAICatalog(client, logger.Named("genai")), nil
}

func newPublisher() (events.Publisher, func(), error) {
	if !cfg.NATS.Enabled {
		return events.Nop{Logger: logger.Named("events")}, func() {}, nil
	}
	nc, js, err := events.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL), zap.String("stream", cfg.NATS.Stream))
	return events.NewNATSPublisher(js, cfg.NATS.Stream, logger.Named("events")), nc.Close, nil
}

func initiator(endpoint config.ChannelEndpoint) channels.Initiator {
	if endpoint.BaseURL == "" {
		return nil
	}
	return channels.NewHTTPInitiator(endpoint.BaseURL, endpoint.AuthToken, config.Duration(endpoint.Timeout, 15*time.Second))
}
