// comments.go — сервис комментариев к публичным статьям.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/webpaper/webpaper/internal/domain/model"
	"github.com/webpaper/webpaper/internal/repository"
	"github.com/webpaper/webpaper/internal/watch"
)

// CommentAuthor — автор комментария, снимок на момент создания.
// Значения берутся из проверенного токена, не из тела запроса.
type CommentAuthor struct {
	UserID    string
	UserName  string
	UserPhoto string
}

// CommentsService — сервис комментариев.
type CommentsService struct {
	comments repository.CommentsRepository
	papers   repository.PapersRepository
	hub      *watch.Hub
	maxLen   int
	logger   *slog.Logger
}

// NewCommentsService создаёт сервис комментариев.
// maxLen — максимальная длина комментария в рунах.
func NewCommentsService(
	comments repository.CommentsRepository,
	papers repository.PapersRepository,
	hub *watch.Hub,
	maxLen int,
	logger *slog.Logger,
) *CommentsService {
	return &CommentsService{
		comments: comments,
		papers:   papers,
		hub:      hub,
		maxLen:   maxLen,
		logger:   logger.With(slog.String("component", "comments_service")),
	}
}

// visiblePaper возвращает статью, если она доступна пользователю:
// публичная — всем, приватная — только владельцу.
func (s *CommentsService) visiblePaper(ctx context.Context, paperID uuid.UUID, userID string) (*model.Paper, error) {
	paper, err := s.papers.GetByID(ctx, paperID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение статьи: %w", err)
	}
	if !paper.IsPublic && paper.UserID != userID {
		return nil, ErrNotFound
	}
	return paper, nil
}

// Add добавляет комментарий к статье.
// Комментировать можно публичные статьи; владелец может комментировать и свои приватные.
func (s *CommentsService) Add(ctx context.Context, paperID uuid.UUID, author CommentAuthor, content string) (*model.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: комментарий не может быть пустым", ErrValidation)
	}
	if utf8.RuneCountInString(content) > s.maxLen {
		return nil, fmt.Errorf("%w: комментарий длиннее %d символов", ErrValidation, s.maxLen)
	}

	if _, err := s.visiblePaper(ctx, paperID, author.UserID); err != nil {
		return nil, err
	}

	comment, err := s.comments.Create(ctx, &model.CommentCreate{
		PaperID:   paperID,
		UserID:    author.UserID,
		UserName:  author.UserName,
		UserPhoto: author.UserPhoto,
		Content:   content,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("создание комментария: %w", err)
	}

	s.hub.Notify(watch.TopicComments(paperID))

	s.logger.Info("Комментарий добавлен",
		slog.String("paper_id", paperID.String()),
		slog.String("comment_id", comment.ID.String()),
		slog.String("user_id", author.UserID),
	)
	return comment, nil
}

// List возвращает комментарии статьи, старые первыми.
// userID пустой для неаутентифицированных запросов.
func (s *CommentsService) List(ctx context.Context, paperID uuid.UUID, userID string) ([]*model.Comment, error) {
	if _, err := s.visiblePaper(ctx, paperID, userID); err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("получение комментариев: %w", err)
	}
	return comments, nil
}
