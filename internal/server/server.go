package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"sales-copilot/config"
	"sales-copilot/internal/db"
	"sales-copilot/internal/handlers"
	"sales-copilot/internal/repositories"
	"sales-copilot/internal/routes"
	"sales-copilot/internal/services"
)

// corsMiddleware adds CORS headers to all responses
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func NewServer() *http.Server {
	logger := log.New(os.Stdout, "[SERVER] ", log.LstdFlags)

	scope := loadScope(logger)

	classifier, err := services.NewClassifier(scope)
	if err != nil {
		logger.Fatalf("Failed to compile scope patterns: %v", err)
	}

	searchClient := initializeDocSearchClient(logger)
	generator := initializeGenerator(logger)
	messageRepo := initializeMessageRepository(logger)

	queryBuilder := services.NewQueryBuilder()
	safety := services.NewSafetyFilter(classifier, generator, log.New(os.Stdout, "[SAFETY] ", log.LstdFlags))

	pipeline := services.NewChatPipeline(
		scope,
		classifier,
		queryBuilder,
		searchClient,
		generator,
		safety,
		messageRepo,
		log.New(os.Stdout, "[PIPELINE] ", log.LstdFlags),
	)

	chatHandler := handlers.NewChatHandler(pipeline, logger)

	var historyHandler *handlers.HistoryHandler
	if messageRepo != nil {
		historyHandler = handlers.NewHistoryHandler(messageRepo, logger)
	}

	h := &routes.Handlers{
		Health:  handlers.HealthCheckHandler,
		Chat:    chatHandler,
		History: historyHandler,
	}

	router := mux.NewRouter()
	routes.RegisterRoutes(router, h)

	// Add Swagger endpoints
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	))

	return &http.Server{
		Addr:    ":8080",
		Handler: corsMiddleware(router),
	}
}

// loadScope reads the deployment scope policy, falling back to the
// built-in U-Anchor deployment when no file is configured.
func loadScope(logger *log.Logger) *config.ScopeConfig {
	path := os.Getenv("SCOPE_CONFIG_PATH")
	if path == "" {
		logger.Println("Using built-in U-Anchor scope config")
		return config.DefaultScope()
	}

	scope, err := config.LoadScopeFromFile(path)
	if err != nil {
		logger.Fatalf("Failed to load scope config %s: %v", path, err)
	}
	logger.Printf("Loaded scope config for %s from %s", scope.ProductName, path)
	return scope
}

// initializeDocSearchClient creates and configures the document search client
func initializeDocSearchClient(logger *log.Logger) *services.DocSearchClient {
	docsURL := os.Getenv("DOCS_SERVICE_URL")
	if docsURL == "" {
		docsURL = "http://localhost:8000"
	}

	timeout := 10 * time.Second
	retries := 2

	logger.Printf("Initializing doc search client: %s (timeout: %v, retries: %d)", docsURL, timeout, retries)
	return services.NewDocSearchClientWithOptions(docsURL, timeout, retries, log.New(os.Stdout, "[DOCSEARCH] ", log.LstdFlags))
}

// initializeGenerator creates the OpenAI-backed answer generator
func initializeGenerator(logger *log.Logger) services.AnswerGenerator {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Println("OPENAI_API_KEY not set - generation will fall back to the default answer")
	}

	cfg := services.GeneratorConfig{
		APIKey:  apiKey,
		Model:   os.Getenv("OPENAI_MODEL"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	}

	return services.NewOpenAIGenerator(cfg, log.New(os.Stdout, "[GENERATOR] ", log.LstdFlags))
}

// initializeMessageRepository creates the Redis-backed conversation store.
// Persistence is optional: when Redis is unreachable the chat pipeline
// still runs, it just stops recording turns.
func initializeMessageRepository(logger *log.Logger) repositories.MessageRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisConfig := getRedisConfig()
	logger.Printf("Connecting to Redis: %s:%d (DB: %d)", redisConfig.Host, redisConfig.Port, redisConfig.DB)

	redisClient, err := db.NewRedisClient(redisConfig)
	if err != nil {
		logger.Printf("Failed to create Redis client: %v", err)
		logger.Println("Conversation persistence disabled")
		return nil
	}

	if err := redisClient.Ping(ctx); err != nil {
		logger.Printf("Redis connection failed: %v", err)
		logger.Println("Conversation persistence disabled")
		logger.Println("Hint: Ensure Redis is running (docker run -d -p 6379:6379 redis:7-alpine)")
		return nil
	}
	logger.Println("Redis connected successfully")

	return repositories.NewRedisMessageRepository(redisClient.GetClient())
}

// getRedisConfig reads Redis configuration from environment variables
func getRedisConfig() db.RedisConfig {
	config := db.DefaultRedisConfig()

	if host := os.Getenv("REDIS_HOST"); host != "" {
		config.Host = host
	}

	if portStr := os.Getenv("REDIS_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			config.Port = port
		}
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Password = password
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if dbNum, err := strconv.Atoi(dbStr); err == nil {
			config.DB = dbNum
		}
	}

	if poolSizeStr := os.Getenv("REDIS_POOL_SIZE"); poolSizeStr != "" {
		if poolSize, err := strconv.Atoi(poolSizeStr); err == nil {
			config.PoolSize = poolSize
		}
	}

	return config
}
