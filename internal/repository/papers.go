package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/webpaper/webpaper/internal/domain/model"
)

// PapersRepository — интерфейс CRUD для таблицы papers.
type PapersRepository interface {
	// Create сохраняет новую статью и заполняет ID и временные метки.
	Create(ctx context.Context, p *model.PaperCreate) (*model.Paper, error)
	// GetByID возвращает статью по UUID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Paper, error)
	// ListByOwner возвращает статьи владельца, новые первыми.
	ListByOwner(ctx context.Context, userID string) ([]*model.Paper, error)
	// ListPublic возвращает публичные статьи всех пользователей, новые первыми.
	ListPublic(ctx context.Context) ([]*model.Paper, error)
	// Update изменяет переданные поля статьи.
	Update(ctx context.Context, id uuid.UUID, upd *model.PaperUpdate) (*model.Paper, error)
	// Delete удаляет статью. Комментарии удаляются каскадно.
	Delete(ctx context.Context, id uuid.UUID) error
	// CountByOwner возвращает количество статей владельца.
	CountByOwner(ctx context.Context, userID string) (int, error)
}

// papersRepo — реализация PapersRepository.
type papersRepo struct {
	db DBTX
}

// NewPapersRepository создаёт репозиторий статей.
func NewPapersRepository(db DBTX) PapersRepository {
	return &papersRepo{db: db}
}

const paperColumns = `id, title, authors, category, review, key_points, is_public,
		file_url, file_key, file_name, file_size, user_id, created_at, updated_at`

func scanPaper(row pgx.Row) (*model.Paper, error) {
	p := &model.Paper{}
	err := row.Scan(
		&p.ID, &p.Title, &p.Authors, &p.Category, &p.Review, &p.KeyPoints, &p.IsPublic,
		&p.FileURL, &p.FileKey, &p.FileName, &p.FileSize, &p.UserID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *papersRepo) Create(ctx context.Context, c *model.PaperCreate) (*model.Paper, error) {
	query := fmt.Sprintf(`
		INSERT INTO papers (title, authors, category, review, key_points, is_public,
			file_url, file_key, file_name, file_size, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING %s`, paperColumns)

	keyPoints := c.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}

	p, err := scanPaper(r.db.QueryRow(ctx, query,
		c.Title, c.Authors, c.Category, c.Review, keyPoints, c.IsPublic,
		c.FileURL, c.FileKey, c.FileName, c.FileSize, c.UserID,
	))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания статьи: %w", err)
	}
	return p, nil
}

func (r *papersRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Paper, error) {
	query := fmt.Sprintf(`SELECT %s FROM papers WHERE id = $1`, paperColumns)

	p, err := scanPaper(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения статьи: %w", err)
	}
	return p, nil
}

func (r *papersRepo) ListByOwner(ctx context.Context, userID string) ([]*model.Paper, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM papers
		WHERE user_id = $1
		ORDER BY created_at DESC`, paperColumns)

	return r.listPapers(ctx, query, userID)
}

func (r *papersRepo) ListPublic(ctx context.Context) ([]*model.Paper, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM papers
		WHERE is_public
		ORDER BY created_at DESC`, paperColumns)

	return r.listPapers(ctx, query)
}

func (r *papersRepo) listPapers(ctx context.Context, query string, args ...any) ([]*model.Paper, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка статей: %w", err)
	}
	defer rows.Close()

	result := []*model.Paper{}
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования статьи: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *papersRepo) Update(ctx context.Context, id uuid.UUID, upd *model.PaperUpdate) (*model.Paper, error) {
	var sets []string
	var args []any
	args = append(args, id)
	argNum := 2

	addSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argNum))
		args = append(args, value)
		argNum++
	}

	if upd.Title != nil {
		addSet("title", *upd.Title)
	}
	if upd.Authors != nil {
		addSet("authors", *upd.Authors)
	}
	if upd.Category != nil {
		addSet("category", *upd.Category)
	}
	if upd.Review != nil {
		addSet("review", *upd.Review)
	}
	if upd.KeyPoints != nil {
		addSet("key_points", upd.KeyPoints)
	}
	if upd.IsPublic != nil {
		addSet("is_public", *upd.IsPublic)
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(`
		UPDATE papers
		SET %s
		WHERE id = $1
		RETURNING %s`, strings.Join(sets, ", "), paperColumns)

	p, err := scanPaper(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления статьи: %w", err)
	}
	return p, nil
}

func (r *papersRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM papers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления статьи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *papersRepo) CountByOwner(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM papers WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта статей: %w", err)
	}
	return count, nil
}
