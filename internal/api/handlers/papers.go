// papers.go — обработчики статей.
// Загрузка PDF (multipart), списки, получение, обновление, удаление.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/webpaper/webpaper/internal/api/errors"
	"github.com/webpaper/webpaper/internal/api/middleware"
	"github.com/webpaper/webpaper/internal/domain/model"
	"github.com/webpaper/webpaper/internal/service"
)

// papersListResponse — ответ со списком статей.
type papersListResponse struct {
	Papers []*model.Paper `json:"papers"`
	Total  int            `json:"total"`
}

// paperUpdateRequest — тело PATCH-запроса обновления статьи.
type paperUpdateRequest struct {
	Title     *string  `json:"title,omitempty"`
	Authors   *string  `json:"authors,omitempty"`
	Category  *string  `json:"category,omitempty"`
	Review    *string  `json:"review,omitempty"`
	KeyPoints []string `json:"key_points,omitempty"`
	IsPublic  *bool    `json:"is_public,omitempty"`
}

// ListOwnPapers обрабатывает GET /api/v1/papers — статьи текущего пользователя.
func (h *Handler) ListOwnPapers(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	if ident == nil {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	papers, err := h.papers.ListOwn(r.Context(), ident.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, papersListResponse{Papers: papers, Total: len(papers)})
}

// ListSharedPapers обрабатывает GET /api/v1/papers/shared — публичные статьи.
// Endpoint публичный, аутентификация не требуется.
func (h *Handler) ListSharedPapers(w http.ResponseWriter, r *http.Request) {
	papers, err := h.papers.ListShared(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, papersListResponse{Papers: papers, Total: len(papers)})
}

// GetPaper обрабатывает GET /api/v1/papers/{paperID}.
// Публичные статьи доступны всем, приватные — только владельцу.
func (h *Handler) GetPaper(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePaperID(w, chi.URLParam(r, "paperID"))
	if !ok {
		return
	}

	paper, err := h.papers.Get(r.Context(), id, middleware.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

// UploadPaper обрабатывает POST /api/v1/papers — multipart загрузка статьи.
// Поля формы: file (PDF), title, authors, category, review,
// key_points (через запятую), is_public ("true"/"false").
func (h *Handler) UploadPaper(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	if ident == nil {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.ValidationError(w, "файл превышает максимальный размер загрузки")
			return
		}
		apierrors.ValidationError(w, "некорректная multipart-форма")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "поле file обязательно")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Ошибка чтения загружаемого файла",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "ошибка чтения файла")
		return
	}

	isPublic, _ := strconv.ParseBool(r.FormValue("is_public"))

	paper, err := h.papers.Upload(r.Context(), &service.PaperUpload{
		Title:     r.FormValue("title"),
		Authors:   r.FormValue("authors"),
		Category:  r.FormValue("category"),
		Review:    r.FormValue("review"),
		KeyPoints: service.ParseKeyPoints(r.FormValue("key_points")),
		IsPublic:  isPublic,
		FileName:  header.Filename,
		FileData:  data,
		UserID:    ident.ID,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, paper)
}

// UpdatePaper обрабатывает PATCH /api/v1/papers/{paperID}.
// Обновляет только переданные поля. Доступно только владельцу.
func (h *Handler) UpdatePaper(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	if ident == nil {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	id, ok := parsePaperID(w, chi.URLParam(r, "paperID"))
	if !ok {
		return
	}

	var req paperUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса")
		return
	}

	paper, err := h.papers.Update(r.Context(), id, ident.ID, &model.PaperUpdate{
		Title:     req.Title,
		Authors:   req.Authors,
		Category:  req.Category,
		Review:    req.Review,
		KeyPoints: req.KeyPoints,
		IsPublic:  req.IsPublic,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

// DeletePaper обрабатывает DELETE /api/v1/papers/{paperID}.
// Удаляет файл из хранилища и метаданные. Доступно только владельцу.
func (h *Handler) DeletePaper(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	if ident == nil {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	id, ok := parsePaperID(w, chi.URLParam(r, "paperID"))
	if !ok {
		return
	}

	if err := h.papers.Delete(r.Context(), id, ident.ID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me обрабатывает GET /api/v1/me — профиль текущего пользователя.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	if ident == nil {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":       ident.ID,
		"name":     ident.Name,
		"username": ident.Username,
		"email":    ident.Email,
		"photo":    ident.Photo,
	})
}
