// Package server wires the HTTP API: the streaming chat endpoint, the
// admin catalog surface, health and metrics.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/luxelabs/concierge/config"
	"github.com/luxelabs/concierge/internal/chat"
	"github.com/luxelabs/concierge/internal/indexer"
	"github.com/luxelabs/concierge/internal/search"
	"github.com/luxelabs/concierge/internal/session"
	"github.com/luxelabs/concierge/internal/store"
	"github.com/luxelabs/concierge/internal/vectorindex/pinecone"
	"github.com/luxelabs/concierge/provider/groq"
	"github.com/luxelabs/concierge/provider/nvidia"
)

func Run(cfg *appconfig.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	rdb, err := session.Conn(ctx, cfg.Databases.Redis.Host, cfg.Databases.Redis.Port,
		cfg.Databases.Redis.Pass, cfg.Databases.Redis.DB, cfg.Databases.Redis.Timeout)
	if err != nil {
		return fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Databases.Redis.Host, cfg.Databases.Redis.Port, err)
	}

	dsn, err := cfg.Databases.Postgres.DSN()
	if err != nil {
		return err
	}
	catalog, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	if cfg.Providers.Groq.APIKey == "" {
		return fmt.Errorf("groq api key not configured (providers.groq.api_key)")
	}
	if cfg.Providers.Nvidia.APIKey == "" {
		return fmt.Errorf("nvidia api key not configured (providers.nvidia.api_key)")
	}
	if cfg.Vector.Pinecone.Host == "" {
		return fmt.Errorf("pinecone host not configured (vector.pinecone.host)")
	}

	llm := groq.NewClient(cfg.Providers.Groq.APIKey, cfg.Providers.Groq.BaseURL, cfg.Providers.Groq.Timeout)
	embedder := nvidia.NewClient(cfg.Providers.Nvidia.APIKey, cfg.Providers.Nvidia.BaseURL,
		cfg.Providers.Nvidia.Model, cfg.Providers.Nvidia.Timeout)
	index := pinecone.NewClient(pinecone.Config{
		Host:    cfg.Vector.Pinecone.Host,
		APIKey:  cfg.Vector.Pinecone.APIKey,
		Timeout: cfg.Vector.Pinecone.Timeout,
	})

	keyword, err := search.NewKeywordIndex()
	if err != nil {
		return err
	}
	warmKeywordIndex(ctx, catalog, keyword, baseLogger)

	sessions := session.NewRedisStore(rdb, session.Options{
		TTL:      cfg.Chat.SessionTTL,
		MaxTurns: cfg.Chat.MaxHistoryTurns,
	})

	chatLogger := log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	classifier := chat.NewClassifier(llm, cfg.Providers.Groq.IntentModel, chatLogger)
	retriever := chat.NewRetriever(embedder, index, catalog, keyword, chatLogger)
	generator := chat.NewGenerator(llm, cfg.Providers.Groq.StreamModels, chatLogger)
	extractor := chat.NewExtractor(llm, cfg.Providers.Groq.JSONModels, chatLogger)
	orch := chat.NewOrchestrator(classifier, retriever, generator, extractor, sessions, cfg.Chat.TopK, chatLogger)

	var ix *indexer.Indexer
	if cfg.Indexer.Enabled {
		ixLogger := log.New(log.Writer(), "[INDEXER] ", log.LstdFlags)
		ix, err = indexer.New(embedder, index, catalog, keyword, rdb,
			cfg.Indexer.ResyncCron, cfg.Indexer.QueueSize, ixLogger)
		if err != nil {
			return err
		}
		ix.Start()
		defer ix.Stop()
	}

	api := e.Group("/api")
	ch := &ChatHandler{Orch: orch, Logger: chatLogger}
	ch.Register(api)

	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}
	auth := &AuthHandler{Secret: []byte(cfg.Server.JWTSecret), PasswordHash: cfg.Server.AdminPasswordHash}
	admin := api.Group("/admin")
	auth.Register(admin)
	ah := &AdminHandler{Catalog: catalog, Indexer: ix, Logger: baseLogger}
	ah.Register(admin, auth.Secret)

	addr := cfg.Server.Listen
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// warmKeywordIndex seeds the fallback index from the catalog so degraded
// retrieval works from the first request. Failures only cost the
// fallback, so they are logged and ignored.
func warmKeywordIndex(ctx context.Context, catalog store.Catalog, keyword *search.KeywordIndex, logger *log.Logger) {
	products, err := catalog.ListAll(ctx)
	if err != nil {
		logger.Printf("keyword index warmup skipped: %v", err)
		return
	}
	for _, p := range products {
		if err := keyword.Index(p); err != nil {
			logger.Printf("keyword index warmup: %v", err)
		}
	}
}
