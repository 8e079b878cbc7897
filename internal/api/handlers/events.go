// events.go — SSE (Server-Sent Events) endpoints для live-обновлений.
// Клиент получает полный снимок данных при подключении и после каждого
// изменения. Каждый SSE-клиент обслуживается отдельной горутиной.
// Формат: event: papers\ndata: {json}\n\n, event: comments\ndata: {json}\n\n
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/webpaper/webpaper/internal/api/errors"
	"github.com/webpaper/webpaper/internal/api/middleware"
	"github.com/webpaper/webpaper/internal/service"
	"github.com/webpaper/webpaper/internal/watch"
)

// EventsHandler — обработчик SSE endpoints.
type EventsHandler struct {
	papers    *service.PapersService
	comments  *service.CommentsService
	hub       *watch.Hub
	keepalive time.Duration
	logger    *slog.Logger
}

// NewEventsHandler создаёт обработчик SSE endpoints.
// keepalive — интервал keepalive-комментариев (WP_SSE_KEEPALIVE).
func NewEventsHandler(
	papers *service.PapersService,
	comments *service.CommentsService,
	hub *watch.Hub,
	keepalive time.Duration,
	logger *slog.Logger,
) *EventsHandler {
	return &EventsHandler{
		papers:    papers,
		comments:  comments,
		hub:       hub,
		keepalive: keepalive,
		logger:    logger.With(slog.String("component", "events")),
	}
}

// sseErrorEvent — SSE-событие ошибки потока.
type sseErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// setupSSE настраивает заголовки SSE и возвращает ResponseController.
// Возвращает nil, если ResponseWriter не поддерживает Flush.
func setupSSE(w http.ResponseWriter) *http.ResponseController {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Отключаем буферизацию Nginx

	// http.ResponseController находит оригинальный http.Flusher
	// через Unwrap() обёрнутых ResponseWriter (metrics middleware и др.).
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		http.Error(w, "SSE не поддерживается", http.StatusInternalServerError)
		return nil
	}
	return rc
}

// OwnPapersEvents обрабатывает GET /api/v1/papers/events — SSE-поток
// статей текущего пользователя.
func (h *EventsHandler) OwnPapersEvents(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	if ident == nil {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	h.streamSnapshots(w, r, watch.TopicOwner(ident.ID), "papers",
		func(ctx context.Context) (any, error) {
			papers, err := h.papers.ListOwn(ctx, ident.ID)
			if err != nil {
				return nil, err
			}
			return papersListResponse{Papers: papers, Total: len(papers)}, nil
		})
}

// SharedPapersEvents обрабатывает GET /api/v1/papers/shared/events — SSE-поток
// публичных статей. Endpoint публичный.
func (h *EventsHandler) SharedPapersEvents(w http.ResponseWriter, r *http.Request) {
	h.streamSnapshots(w, r, watch.TopicShared, "papers",
		func(ctx context.Context) (any, error) {
			papers, err := h.papers.ListShared(ctx)
			if err != nil {
				return nil, err
			}
			return papersListResponse{Papers: papers, Total: len(papers)}, nil
		})
}

// CommentsEvents обрабатывает GET /api/v1/papers/{paperID}/comments/events —
// SSE-поток комментариев статьи.
func (h *EventsHandler) CommentsEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePaperID(w, chi.URLParam(r, "paperID"))
	if !ok {
		return
	}
	userID := middleware.UserIDFromContext(r.Context())

	// Проверяем доступность статьи до перевода соединения в режим SSE,
	// чтобы клиент получил обычный HTTP-статус.
	if _, err := h.comments.List(r.Context(), id, userID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "статья не найдена")
			return
		}
		apierrors.InternalError(w, "внутренняя ошибка сервера")
		return
	}

	h.streamSnapshots(w, r, watch.TopicComments(id), "comments",
		func(ctx context.Context) (any, error) {
			comments, err := h.comments.List(ctx, id, userID)
			if err != nil {
				return nil, err
			}
			return commentsListResponse{Comments: comments, Total: len(comments)}, nil
		})
}

// streamSnapshots — общий цикл SSE: снимок при подключении, снимок после
// каждого уведомления темы, keepalive-комментарии между событиями.
// Ошибка получения снимка доставляется клиенту событием error, поток закрывается.
func (h *EventsHandler) streamSnapshots(
	w http.ResponseWriter,
	r *http.Request,
	topic string,
	eventName string,
	snapshot func(ctx context.Context) (any, error),
) {
	rc := setupSSE(w)
	if rc == nil {
		return
	}

	ctx := r.Context()
	notify, cancel := h.hub.Subscribe(topic)
	defer cancel()

	h.logger.Debug("SSE клиент подключён",
		slog.String("topic", topic),
		slog.String("remote_addr", r.RemoteAddr),
	)

	if !h.sendSnapshot(ctx, w, rc, eventName, snapshot) {
		return
	}

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Клиент отключился
			h.logger.Debug("SSE клиент отключён", slog.String("topic", topic))
			return
		case <-notify:
			if !h.sendSnapshot(ctx, w, rc, eventName, snapshot) {
				return
			}
		case <-ticker.C:
			// Комментарий SSE держит соединение открытым через прокси.
			fmt.Fprint(w, ": keepalive\n\n")
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// sendSnapshot отправляет клиенту полный снимок данных.
// Возвращает false, если поток нужно закрыть.
func (h *EventsHandler) sendSnapshot(
	ctx context.Context,
	w http.ResponseWriter,
	rc *http.ResponseController,
	eventName string,
	snapshot func(ctx context.Context) (any, error),
) bool {
	data, err := snapshot(ctx)
	if err != nil {
		h.sendError(w, rc, err)
		return false
	}

	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Ошибка сериализации SSE-события", slog.String("error", err.Error()))
		return false
	}

	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName, payload)
	return rc.Flush() == nil
}

// sendError доставляет клиенту ошибку потока событием error.
func (h *EventsHandler) sendError(w http.ResponseWriter, rc *http.ResponseController, err error) {
	code := apierrors.CodeInternalError
	message := "внутренняя ошибка сервера"
	if errors.Is(err, service.ErrNotFound) {
		// Статья удалена во время подписки.
		code = apierrors.CodeNotFound
		message = "статья не найдена"
	} else {
		h.logger.Error("Ошибка получения снимка для SSE", slog.String("error", err.Error()))
	}

	payload, marshalErr := json.Marshal(sseErrorEvent{Code: code, Message: message})
	if marshalErr != nil {
		return
	}
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
	_ = rc.Flush()
}
