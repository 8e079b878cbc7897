package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/webpaper/webpaper/internal/domain/model"
)

// CommentsRepository — интерфейс для таблицы comments.
type CommentsRepository interface {
	// Create сохраняет комментарий и заполняет ID и created_at.
	Create(ctx context.Context, c *model.CommentCreate) (*model.Comment, error)
	// ListByPaper возвращает комментарии статьи, старые первыми.
	ListByPaper(ctx context.Context, paperID uuid.UUID) ([]*model.Comment, error)
	// CountByPaper возвращает количество комментариев статьи.
	CountByPaper(ctx context.Context, paperID uuid.UUID) (int, error)
}

type commentsRepo struct {
	db DBTX
}

// NewCommentsRepository создаёт репозиторий комментариев.
func NewCommentsRepository(db DBTX) CommentsRepository {
	return &commentsRepo{db: db}
}

func (r *commentsRepo) Create(ctx context.Context, c *model.CommentCreate) (*model.Comment, error) {
	query := `
		INSERT INTO comments (paper_id, user_id, user_name, user_photo, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, paper_id, user_id, user_name, user_photo, content, created_at`

	out := &model.Comment{}
	err := r.db.QueryRow(ctx, query,
		c.PaperID, c.UserID, c.UserName, c.UserPhoto, c.Content,
	).Scan(
		&out.ID, &out.PaperID, &out.UserID, &out.UserName, &out.UserPhoto,
		&out.Content, &out.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка создания комментария: %w", err)
	}
	return out, nil
}

func (r *commentsRepo) ListByPaper(ctx context.Context, paperID uuid.UUID) ([]*model.Comment, error) {
	query := `
		SELECT id, paper_id, user_id, user_name, user_photo, content, created_at
		FROM comments
		WHERE paper_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, paperID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения комментариев: %w", err)
	}
	defer rows.Close()

	result := []*model.Comment{}
	for rows.Next() {
		c := &model.Comment{}
		if err := rows.Scan(
			&c.ID, &c.PaperID, &c.UserID, &c.UserName, &c.UserPhoto,
			&c.Content, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования комментария: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *commentsRepo) CountByPaper(ctx context.Context, paperID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE paper_id = $1`, paperID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта комментариев: %w", err)
	}
	return count, nil
}
