// comments.go — обработчики комментариев к статьям.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/webpaper/webpaper/internal/api/errors"
	"github.com/webpaper/webpaper/internal/api/middleware"
	"github.com/webpaper/webpaper/internal/domain/model"
	"github.com/webpaper/webpaper/internal/service"
)

// commentsListResponse — ответ со списком комментариев.
type commentsListResponse struct {
	Comments []*model.Comment `json:"comments"`
	Total    int              `json:"total"`
}

// commentCreateRequest — тело POST-запроса создания комментария.
type commentCreateRequest struct {
	Content string `json:"content"`
}

// ListComments обрабатывает GET /api/v1/papers/{paperID}/comments.
// Комментарии публичных статей доступны всем.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePaperID(w, chi.URLParam(r, "paperID"))
	if !ok {
		return
	}

	comments, err := h.comments.List(r.Context(), id, middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commentsListResponse{Comments: comments, Total: len(comments)})
}

// AddComment обрабатывает POST /api/v1/papers/{paperID}/comments.
// Автор комментария берётся из токена, не из тела запроса.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	if ident == nil {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	id, ok := parsePaperID(w, chi.URLParam(r, "paperID"))
	if !ok {
		return
	}

	var req commentCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса")
		return
	}

	comment, err := h.comments.Add(r.Context(), id, service.CommentAuthor{
		UserID:    ident.ID,
		UserName:  ident.Name,
		UserPhoto: ident.Photo,
	}, req.Content)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}
