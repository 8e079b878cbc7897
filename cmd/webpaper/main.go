// Точка входа Webpaper — сервис хранения и обмена научными статьями.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// инициализирует S3-хранилище и JWT middleware, создаёт сервисный слой,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/webpaper/webpaper/internal/api/handlers"
	"github.com/webpaper/webpaper/internal/api/middleware"
	"github.com/webpaper/webpaper/internal/blobstore"
	"github.com/webpaper/webpaper/internal/config"
	"github.com/webpaper/webpaper/internal/database"
	"github.com/webpaper/webpaper/internal/repository"
	"github.com/webpaper/webpaper/internal/server"
	"github.com/webpaper/webpaper/internal/service"
	"github.com/webpaper/webpaper/internal/watch"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Webpaper запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("WP_DEPHEALTH_GROUP") == "" {
		logger.Warn("WP_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL будет идти через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. S3-хранилище PDF-файлов
	blobs, err := blobstore.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к S3", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Repositories
	papersRepo := repository.NewPapersRepository(pool)
	commentsRepo := repository.NewCommentsRepository(pool)
	categoriesRepo := repository.NewCategoriesRepository(pool)

	// 7. Шина уведомлений для SSE
	hub := watch.NewHub()

	// 8. Services
	papersSvc := service.NewPapersService(papersRepo, blobs, hub, logger)
	commentsSvc := service.NewCommentsService(commentsRepo, papersRepo, hub, cfg.CommentMaxLength, logger)
	categoriesSvc := service.NewCategoriesService(categoriesRepo, papersRepo, repository.NewCategoriesTx(pool), logger)

	// 9. Readiness checkers (PostgreSQL + Keycloak + MinIO)
	pgChecker := database.NewReadinessChecker(pool)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, kcChecker, blobs)

	// 10. API handlers
	apiHandler := handlers.NewHandler(
		healthHandler,
		papersSvc,
		commentsSvc,
		categoriesSvc,
		cfg.MaxUploadSize,
		logger,
	)
	eventsHandler := handlers.NewEventsHandler(
		papersSvc,
		commentsSvc,
		hub,
		cfg.SSEKeepalive,
		logger,
	)

	// 11. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.CACertPath,
		cfg.JWTIssuer,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 12. topologymetrics — мониторинг зависимостей (PostgreSQL + Keycloak + MinIO)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"webpaper",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.JWTJWKSURL,
		cfg.S3Endpoint,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, eventsHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	if dephealthErr == nil {
		dephealthSvc.Stop()
	}

	logger.Info("Webpaper остановлен")
}
