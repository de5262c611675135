package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/akolanti/DocuSense/internal/adapter/utils"
	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/handlers"
	"github.com/akolanti/DocuSense/internal/middleware"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

var (
	server  *http.Server
	_logger = logger_i.NewLogger("Server")
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
}

func registerRoutes(r chi.Router, h *handlers.Handler, mcpHandler http.Handler) {
	r.Get("/healthz", middleware.WrapPublic(handlers.GetHandler))

	r.Post("/documents/upload", middleware.Wrap(h.UploadHandler))
	r.Post("/documents/index", middleware.Wrap(h.IndexHandler))
	r.Delete("/documents/index", middleware.Wrap(h.DropIndexHandler))

	r.Post("/chat", middleware.Wrap(h.ChatHandler))
	r.Post("/chat/stream", middleware.Wrap(h.ChatStreamHandler))
	r.Get("/history", middleware.Wrap(h.HistoryHandler))

	r.Post("/summarize", middleware.Wrap(h.SummarizeHandler))
	r.Post("/translate", middleware.Wrap(h.TranslateHandler))
	r.Post("/extract", middleware.Wrap(h.ExtractHandler))
	r.Get("/status/{id}", middleware.Wrap(h.GetStatusHandler))

	if mcpHandler != nil {
		r.Handle("/mcp", middleware.WrapMCP(mcpHandler))
	}
}

func CreateServer(listenAddr string, h *handlers.Handler, mcpHandler http.Handler) {
	r := utils.GetRouter()
	registerRoutes(r.Router, h, mcpHandler)

	// WriteTimeout stays 0 so /chat/stream is not cut off mid answer
	server = &http.Server{
		Addr:         listenAddr,
		Handler:      r.Router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error", err.Error(), "addr", listenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger.Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		if server != nil {
			server.SetKeepAlivesEnabled(false)
			if err := server.Shutdown(ctx); err != nil {
				_logger.Error("Could not shutdown gracefully", "error", err)
			}
		}

		//close workers
		close(shutdownParams.WorkerStop)
		shutdownParams.Group.Wait()
		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Gracefully shut down")
	case <-ctx.Done():
		_logger.Info("Force Shut down")
		os.Exit(1)
	}
}
