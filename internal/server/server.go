// Пакет server — HTTP-сервер Webpaper с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/webpaper/webpaper/internal/api/handlers"
	"github.com/webpaper/webpaper/internal/api/middleware"
	"github.com/webpaper/webpaper/internal/config"
)

// Server — HTTP-сервер Webpaper.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware (может быть nil для тестирования без auth,
// тогда все аутентифицированные endpoints вернут 401).
func New(
	cfg *config.Config,
	logger *slog.Logger,
	handler *handlers.Handler,
	events *handlers.EventsHandler,
	jwtAuth *middleware.JWTAuth,
) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics проверяются Kubernetes напрямую, без API Gateway.
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		// Публичные endpoints: список общих статей и его SSE-поток.
		r.Get("/papers/shared", handler.ListSharedPapers)
		r.Get("/papers/shared/events", events.SharedPapersEvents)

		// Опциональная аутентификация: публичные статьи доступны всем,
		// приватные — только владельцу с токеном.
		r.Group(func(r chi.Router) {
			if jwtAuth != nil {
				r.Use(jwtAuth.Optional())
			}
			r.Get("/papers/{paperID}", handler.GetPaper)
			r.Get("/papers/{paperID}/comments", handler.ListComments)
			r.Get("/papers/{paperID}/comments/events", events.CommentsEvents)
		})

		// Обязательная аутентификация.
		r.Group(func(r chi.Router) {
			if jwtAuth != nil {
				r.Use(jwtAuth.Middleware())
			}
			r.Get("/me", handler.Me)
			r.Get("/papers", handler.ListOwnPapers)
			r.Post("/papers", handler.UploadPaper)
			r.Get("/papers/events", events.OwnPapersEvents)
			r.Patch("/papers/{paperID}", handler.UpdatePaper)
			r.Delete("/papers/{paperID}", handler.DeletePaper)
			r.Post("/papers/{paperID}/comments", handler.AddComment)
			r.Get("/categories", handler.ListCategories)
			r.Post("/categories", handler.CreateCategory)
		})
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout нулевой: SSE-потоки живут дольше любого фиксированного таймаута.
		IdleTimeout: 120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Router возвращает HTTP-обработчик сервера. Используется в тестах.
func (s *Server) Router() http.Handler {
	return s.httpServer.Handler
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
