// @title           DocuSense API
// @version         1.0
// @description     Ask questions about your documents, with web search fallback, and run summaries, translations and field extraction as background jobs.
// @termsOfService  http://swagger.io/terms/

// @contact.name    akolanti
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/customHttpClient"
	"github.com/akolanti/DocuSense/internal/data/redisStore"
	"github.com/akolanti/DocuSense/internal/data/store"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/handlers"
	"github.com/akolanti/DocuSense/internal/job"
	"github.com/akolanti/DocuSense/internal/mcpserver"
	"github.com/akolanti/DocuSense/internal/middleware"
	"github.com/akolanti/DocuSense/internal/rag"
	"github.com/akolanti/DocuSense/internal/rag/answer"
	"github.com/akolanti/DocuSense/internal/rag/documents"
	"github.com/akolanti/DocuSense/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/DocuSense/internal/rag/indexcache"
	"github.com/akolanti/DocuSense/internal/rag/ingest"
	"github.com/akolanti/DocuSense/internal/rag/ingest/blob"
	"github.com/akolanti/DocuSense/internal/rag/ingest/ocr"
	"github.com/akolanti/DocuSense/internal/rag/llm"
	"github.com/akolanti/DocuSense/internal/rag/llm/gemini"
	"github.com/akolanti/DocuSense/internal/rag/llm/groq"
	"github.com/akolanti/DocuSense/internal/rag/memory"
	"github.com/akolanti/DocuSense/internal/rag/router"
	"github.com/akolanti/DocuSense/internal/rag/vectorDB"
	"github.com/akolanti/DocuSense/internal/rag/vectorDB/localDB"
	"github.com/akolanti/DocuSense/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/DocuSense/internal/rag/websearch"
	"github.com/akolanti/DocuSense/internal/server"
	"github.com/akolanti/DocuSense/internal/worker"
	"github.com/akolanti/DocuSense/pkg/logger_i"
)

var (
	listenAddr        string
	issueToken        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {
	config.LoadEnv()
	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.GetString("LISTEN_ADDR", config.ServerListenAddr), "server listen address")
	flag.StringVar(&issueToken, "issue-token", "", "print a bearer token for this owner id and exit")
	flag.Parse()

	if issueToken != "" {
		tok, err := middleware.SignToken(issueToken, []byte(config.JWTSecret()), 30*24*time.Hour)
		if err != nil {
			logger.Error("Could not sign token", "error", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	//init buffered job channel
	jobChannel := make(chan jobModel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//job + history stores, in memory when redis is down
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
	}
	if jobStore, err := store.GetRedisJobStore(serviceContext); err == nil {
		serviceConfig.JobStore = jobStore
	} else if config.GetBool("FALLBACK_REDIS_TO_INTERNALSTORE", config.FALLBACK_REDIS_TO_INTERNALSTORE) {
		logger.Warn("Redis job store is offline, using memory", "error", err)
		serviceConfig.JobStore = store.InitInMemoryJobStore()
	} else {
		logger.Error("Redis job store is offline", "error", err)
		return
	}
	if historyStore, err := store.GetRedisHistoryStore(serviceContext); err == nil {
		serviceConfig.HistoryStore = historyStore
	} else {
		logger.Warn("Redis history store is offline, using memory", "error", err)
		serviceConfig.HistoryStore = store.InitInMemoryHistoryStore()
	}
	logger.Info("Starting job service")
	service := job.InitJobService(serviceConfig)

	//conversation memory
	var conversations memory.Store = memory.NewInMemoryStore()
	if config.GetString("MEMORY_BACKEND", config.MemoryBackend) == "redis" {
		if rs, err := redisStore.GetRedisStore(serviceContext, config.RedisMessageStore); err == nil {
			conversations = memory.NewRedisStore(rs)
		} else {
			logger.Warn("Redis memory is offline, using memory", "error", err)
		}
	}

	//vector index
	var indexStore vectorDB.IndexStore
	switch config.GetString("VECTOR_BACKEND", config.VectorBackend) {
	case "local":
		indexStore = localDB.New(config.GetString("VECTOR_FOLDER", config.VectorFolder))
	default:
		if q := qdrantDB.GetQuadrantClient(serviceContext); q != nil {
			indexStore = q
		}
	}

	embeddingService := googleEmbedding.GetGoogleEmbeddingClient(serviceContext, config.GetString("GOOGLE_EMBEDDING_MODEL", config.GoogleEmbeddingModel), config.GoogleAPIKey())

	//models
	models := llm.NewRegistry()
	if p, err := gemini.GetGeminiClient(serviceContext, config.GoogleAPIKey()); err == nil {
		models.Register(router.ProviderGemini, p)
	} else {
		logger.Warn("Gemini is unavailable", "error", err)
	}
	if p, err := groq.New(config.GroqAPIKey()); err == nil {
		models.Register(router.ProviderGroq, p)
	} else {
		logger.Warn("Groq is unavailable, domain models will fail", "error", err)
	}

	if indexStore == nil || embeddingService == nil {
		logger.Error("One or more external services failed to initialize. Shutting down.")
		logger.Debug("Available services : ", "VectorDB", indexStore != nil, "EmbeddingService", embeddingService != nil)
		return
	}

	//web search, answering continues without it
	provider := config.GetString("SEARCH_PROVIDER", config.SearchProvider)
	searcher, err := websearch.NewSearcher(websearch.Provider(provider), config.SearchAPIKey(provider), customHttpClient.GetClient())
	if err != nil {
		logger.Warn("Web search fallback is disabled", "provider", provider, "error", err)
	}

	if err := ocr.CheckAvailable(); err != nil {
		logger.Warn("OCR tools missing, scanned documents will have no text", "error", err)
	}
	extractor := ingest.NewExtractor(blob.NewFetcher(customHttpClient.GetClient(), config.BlobAllowedHosts()), ocr.New())
	indexes := indexcache.New(extractor, ingest.NewChunker(), embeddingService, indexStore)

	orchestrator := answer.New(indexes, embeddingService, conversations, models, websearch.NewClient(searcher), serviceConfig.HistoryStore)
	ragService := rag.NewService(indexes, documents.NewService(extractor, models))

	handlers.InitHandler(handlers.Deps{Answers: orchestrator, Jobs: service, History: serviceConfig.HistoryStore})

	mcpServer, err := mcpserver.NewServer(orchestrator, handlers.H())
	if err != nil {
		logger.Error("Could not start MCP server", "error", err)
		return
	}

	//init worker pool
	worker.InitServices(service, ragService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	go middleware.StartSweeper(time.Minute, stopExecution)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr, handlers.H(), mcpServer.Handler())

	<-stopExecution
	logger.Info("Server stopped")
}
