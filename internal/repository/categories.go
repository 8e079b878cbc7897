package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/webpaper/webpaper/internal/domain/model"
)

// CategoriesRepository — интерфейс для таблицы categories.
type CategoriesRepository interface {
	// Create сохраняет категорию. При дубликате имени возвращает ErrConflict.
	Create(ctx context.Context, c *model.CategoryCreate) (*model.Category, error)
	// ListByOwner возвращает категории пользователя в порядке создания.
	ListByOwner(ctx context.Context, userID string) ([]*model.Category, error)
	// GetByName возвращает категорию пользователя по имени.
	GetByName(ctx context.Context, userID, name string) (*model.Category, error)
}

type categoriesRepo struct {
	db DBTX
}

// NewCategoriesRepository создаёт репозиторий категорий.
func NewCategoriesRepository(db DBTX) CategoriesRepository {
	return &categoriesRepo{db: db}
}

func (r *categoriesRepo) Create(ctx context.Context, c *model.CategoryCreate) (*model.Category, error) {
	query := `
		INSERT INTO categories (user_id, name, color)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, name, color, created_at`

	out := &model.Category{}
	err := r.db.QueryRow(ctx, query, c.UserID, c.Name, c.Color).Scan(
		&out.ID, &out.UserID, &out.Name, &out.Color, &out.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: категория с таким именем уже существует", ErrConflict)
		}
		return nil, fmt.Errorf("ошибка создания категории: %w", err)
	}
	return out, nil
}

func (r *categoriesRepo) ListByOwner(ctx context.Context, userID string) ([]*model.Category, error) {
	query := `
		SELECT id, user_id, name, color, created_at
		FROM categories
		WHERE user_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения категорий: %w", err)
	}
	defer rows.Close()

	result := []*model.Category{}
	for rows.Next() {
		c := &model.Category{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования категории: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *categoriesRepo) GetByName(ctx context.Context, userID, name string) (*model.Category, error) {
	query := `
		SELECT id, user_id, name, color, created_at
		FROM categories
		WHERE user_id = $1 AND name = $2`

	c := &model.Category{}
	err := r.db.QueryRow(ctx, query, userID, name).Scan(
		&c.ID, &c.UserID, &c.Name, &c.Color, &c.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения категории: %w", err)
	}
	return c, nil
}
