package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"LegalMind/internal/api"
	"LegalMind/internal/catalog"
	"LegalMind/internal/config"
	"LegalMind/internal/database/kafka"
	"LegalMind/internal/database/milvus"
	"LegalMind/internal/database/mongo"
	"LegalMind/internal/database/mysql"
	"LegalMind/internal/database/redis"
	"LegalMind/internal/embedding"
	"LegalMind/internal/observer"
	"LegalMind/internal/provider"
	"LegalMind/internal/rag/analyzer"
	"LegalMind/internal/rag/compressor"
	"LegalMind/internal/rag/interfaces"
	"LegalMind/internal/rag/pipeline"
	"LegalMind/internal/rag/retriever"
	sessinmemory "LegalMind/internal/rag/session/inmemory"
	sessredis "LegalMind/internal/rag/session/redis"
	"LegalMind/internal/rag/storages/chunkstore"
	"LegalMind/internal/rag/storages/vectorstore"
	"LegalMind/internal/service"
	"LegalMind/pkg/circuitbreaker"
	"LegalMind/pkg/httpmiddleware"
	"LegalMind/pkg/logger"
	"LegalMind/pkg/ratelimiter"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	serviceLogger := logger.New("LegalMind", "")

	ctx := context.Background()

	// Model providers.
	llm, modelName, err := provider.New(ctx, cfg.LLM)
	if err != nil {
		serviceLogger.Fatal("Failed to initialize model provider: " + err.Error())
	}
	if cfg.Middleware.CircuitBreaker.Enabled {
		coolDown, err := time.ParseDuration(cfg.Middleware.CircuitBreaker.Timeout)
		if err != nil {
			serviceLogger.Fatal("Invalid circuit breaker timeout: " + err.Error())
		}
		llm = provider.WithBreaker(llm, circuitbreaker.New(
			cfg.Middleware.CircuitBreaker.FailureThreshold,
			cfg.Middleware.CircuitBreaker.SuccessThreshold,
			coolDown,
		))
	}

	var embedder embedding.Model
	embedder, err = embedding.New(cfg.Embedding)
	if err != nil {
		serviceLogger.Fatal("Failed to initialize embedding model: " + err.Error())
	}
	if cfg.Embedding.CacheSize > 0 {
		cacheTTL, err := time.ParseDuration(cfg.Embedding.CacheTTL)
		if err != nil {
			serviceLogger.Fatal("Invalid embedding cache TTL: " + err.Error())
		}
		embedder, err = embedding.NewCachedModel(embedder, cfg.Embedding.CacheSize, cacheTTL)
		if err != nil {
			serviceLogger.Fatal("Failed to create embedding cache: " + err.Error())
		}
	}

	// Backing stores.
	milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		serviceLogger.Fatal("Failed to connect to Milvus: " + err.Error())
	}
	defer milvusClient.Close()
	if err := milvusClient.LoadCollection(ctx); err != nil {
		serviceLogger.Fatal("Failed to load chunk collection: " + err.Error())
	}
	vectorStore, err := vectorstore.NewMilvusStore(milvusClient, serviceLogger)
	if err != nil {
		serviceLogger.Fatal("Failed to create vector store: " + err.Error())
	}

	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		serviceLogger.Fatal("Failed to connect to MongoDB: " + err.Error())
	}
	defer mongo.Close(context.Background())
	chunkStore := chunkstore.NewMongoStore(
		mongoClient.Database(cfg.Databases.MongoDB.Database),
		cfg.Databases.MongoDB.Collection,
	)

	db, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		serviceLogger.Fatal("Failed to connect to MySQL: " + err.Error())
	}
	defer mysql.Close()
	catalogDAL := catalog.NewDAL(db)
	if err := catalogDAL.Migrate(); err != nil {
		serviceLogger.Fatal("Failed to migrate document catalog: " + err.Error())
	}

	// Session store.
	idleTimeout, err := time.ParseDuration(cfg.Session.IdleTimeout)
	if err != nil {
		serviceLogger.Fatal("Invalid session idle timeout: " + err.Error())
	}
	var sessions interfaces.SessionStore
	switch cfg.Session.Backend {
	case "redis":
		redisClient, err := redis.GetClient(&cfg.Databases.Redis)
		if err != nil {
			serviceLogger.Fatal("Failed to connect to Redis: " + err.Error())
		}
		defer redis.Close()
		sessions = sessredis.New(redisClient, idleTimeout)
	default:
		memStore := sessinmemory.New(idleTimeout)
		memStore.StartSweep(time.Minute)
		defer memStore.StopSweep()
		sessions = memStore
	}

	// Stage observer.
	var stageObserver interfaces.StageObserver = observer.NopObserver{}
	if cfg.Databases.Kafka.Enabled {
		kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			serviceLogger.Fatal("Failed to connect to Kafka: " + err.Error())
		}
		defer kafkaClient.Close()
		stageObserver = observer.NewKafkaObserver(kafkaClient, serviceLogger)
	}

	// Pipeline.
	searchTimeout, err := time.ParseDuration(cfg.Retrieval.SearchTimeout)
	if err != nil {
		serviceLogger.Fatal("Invalid search timeout: " + err.Error())
	}
	synthesisTimeout, err := time.ParseDuration(cfg.Retrieval.SynthesisTimeout)
	if err != nil {
		serviceLogger.Fatal("Invalid synthesis timeout: " + err.Error())
	}

	ret := retriever.New(embedder, vectorStore, chunkStore, retriever.Config{
		MaxRounds:      cfg.Retrieval.MaxRounds,
		RelevanceFloor: cfg.Retrieval.RelevanceFloor,
		SearchTimeout:  searchTimeout,
		RetryAttempts:  2,
	}, serviceLogger)
	comp := compressor.New(serviceLogger)
	an := analyzer.New(analyzer.Config{MaxContradictions: cfg.Retrieval.MaxContradictions}, serviceLogger)
	pipe := pipeline.New(ret, comp, an, llm, pipeline.Config{
		SynthesisTimeout: synthesisTimeout,
		RetryAttempts:    2,
	}, serviceLogger)

	querySvc := service.NewQueryService(serviceLogger, sessions, catalogDAL, pipe, stageObserver, service.Config{
		ModelName:            modelName,
		ReservedOutputTokens: cfg.Retrieval.ReservedOutputTokens,
		SafetyMargin:         cfg.Retrieval.SafetyMargin,
	})

	// HTTP server.
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), httpmiddleware.RequestLogger(serviceLogger))
	if cfg.Middleware.RateLimiter.Enabled {
		limiter := ratelimiter.NewTokenBucket(
			cfg.Middleware.RateLimiter.Rate,
			cfg.Middleware.RateLimiter.Capacity,
		)
		router.Use(httpmiddleware.RateLimit(limiter))
	}
	apiHandler := api.NewAPI(querySvc, serviceLogger)
	api.RegisterRoutes(router, apiHandler)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	go func() {
		serviceLogger.Info("Starting HTTP server on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.Fatal("HTTP server failed to start: " + err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.Error("Server forced to shutdown: " + err.Error())
	}

	serviceLogger.Info("Server gracefully stopped")
}
