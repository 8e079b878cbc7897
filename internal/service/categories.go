// categories.go — сервис категорий статей.
// Объединяет сохранённые категории пользователя с категориями,
// выведенными из его статей.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/webpaper/webpaper/internal/domain/model"
	"github.com/webpaper/webpaper/internal/repository"
)

// CategoriesTxRunner выполняет fn с репозиторием категорий внутри транзакции.
// Реализуется repository.CategoriesTx.
type CategoriesTxRunner interface {
	InTx(ctx context.Context, fn func(repo repository.CategoriesRepository) error) error
}

// CategoriesService — сервис категорий.
type CategoriesService struct {
	categories repository.CategoriesRepository
	papers     repository.PapersRepository
	tx         CategoriesTxRunner
	logger     *slog.Logger
}

// NewCategoriesService создаёт сервис категорий.
func NewCategoriesService(
	categories repository.CategoriesRepository,
	papers repository.PapersRepository,
	tx CategoriesTxRunner,
	logger *slog.Logger,
) *CategoriesService {
	return &CategoriesService{
		categories: categories,
		papers:     papers,
		tx:         tx,
		logger:     logger.With(slog.String("component", "categories_service")),
	}
}

// List возвращает категории пользователя: сначала сохранённые в порядке
// создания, затем выведенные из статей (с цветом по умолчанию).
func (s *CategoriesService) List(ctx context.Context, userID string) ([]*model.Category, error) {
	saved, err := s.categories.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("получение категорий: %w", err)
	}

	papers, err := s.papers.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("получение статей для вывода категорий: %w", err)
	}

	known := make(map[string]bool, len(saved))
	for _, c := range saved {
		known[c.Name] = true
	}

	result := saved
	for i := len(papers) - 1; i >= 0; i-- {
		// Статьи отсортированы новыми вперёд, выводим категории
		// в порядке первого появления.
		name := papers[i].Category
		if name == "" || known[name] {
			continue
		}
		known[name] = true
		result = append(result, &model.Category{
			UserID: userID,
			Name:   name,
			Color:  model.DefaultCategoryColor,
		})
	}
	return result, nil
}

// Create сохраняет новую категорию пользователя.
// Цвет назначается циклически по числу уже сохранённых категорий.
func (s *CategoriesService) Create(ctx context.Context, userID, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: имя категории обязательно", ErrValidation)
	}

	// Выбор цвета и вставка идут в одной транзакции: параллельное
	// создание категорий не собьёт цикл палитры.
	var category *model.Category
	err := s.tx.InTx(ctx, func(repo repository.CategoriesRepository) error {
		saved, err := repo.ListByOwner(ctx, userID)
		if err != nil {
			return fmt.Errorf("получение категорий для выбора цвета: %w", err)
		}
		color := model.CategoryColors[len(saved)%len(model.CategoryColors)]

		category, err = repo.Create(ctx, &model.CategoryCreate{
			UserID: userID,
			Name:   name,
			Color:  color,
		})
		if err != nil {
			return fmt.Errorf("создание категории: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: категория '%s' уже существует", ErrConflict, name)
		}
		return nil, err
	}

	s.logger.Info("Категория создана",
		slog.String("user_id", userID),
		slog.String("name", name),
		slog.String("color", category.Color),
	)
	return category, nil
}
