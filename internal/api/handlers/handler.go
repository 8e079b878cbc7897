// handler.go — основной обработчик API Webpaper.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apierrors "github.com/webpaper/webpaper/internal/api/errors"
	"github.com/webpaper/webpaper/internal/service"
)

// Handler — основной обработчик API Webpaper.
type Handler struct {
	health     *HealthHandler
	papers     *service.PapersService
	comments   *service.CommentsService
	categories *service.CategoriesService
	maxUpload  int64
	logger     *slog.Logger
}

// NewHandler создаёт основной обработчик API.
// maxUpload — максимальный размер загружаемого PDF в байтах (WP_MAX_UPLOAD_SIZE).
func NewHandler(
	health *HealthHandler,
	papers *service.PapersService,
	comments *service.CommentsService,
	categories *service.CategoriesService,
	maxUpload int64,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		health:     health,
		papers:     papers,
		comments:   comments,
		categories: categories,
		maxUpload:  maxUpload,
		logger:     logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// parsePaperID извлекает UUID статьи из параметра пути.
// При некорректном UUID пишет 400 и возвращает false.
func parsePaperID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		apierrors.ValidationError(w, "некорректный идентификатор статьи")
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError маппит ошибку сервисного слоя в HTTP-ответ.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "статья не найдена")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "операция доступна только владельцу")
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrBlobUnavailable):
		apierrors.BlobUnavailable(w, "хранилище файлов недоступно")
	default:
		h.logger.Error("Внутренняя ошибка обработки запроса",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "внутренняя ошибка сервера")
	}
}
