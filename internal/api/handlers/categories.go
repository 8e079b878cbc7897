// categories.go — обработчики категорий статей.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/webpaper/webpaper/internal/api/errors"
	"github.com/webpaper/webpaper/internal/api/middleware"
	"github.com/webpaper/webpaper/internal/domain/model"
)

// categoriesListResponse — ответ со списком категорий.
type categoriesListResponse struct {
	Categories []*model.Category `json:"categories"`
	Total      int               `json:"total"`
}

// categoryCreateRequest — тело POST-запроса создания категории.
type categoryCreateRequest struct {
	Name string `json:"name"`
}

// ListCategories обрабатывает GET /api/v1/categories — категории пользователя.
// Включает сохранённые категории и категории, выведенные из статей.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	if ident == nil {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	categories, err := h.categories.List(r.Context(), ident.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categoriesListResponse{Categories: categories, Total: len(categories)})
}

// CreateCategory обрабатывает POST /api/v1/categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	if ident == nil {
		apierrors.Unauthorized(w, "требуется аутентификация")
		return
	}

	var req categoryCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное тело запроса")
		return
	}

	category, err := h.categories.Create(r.Context(), ident.ID, req.Name)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}
