// papers.go — сервис статей.
// Загрузка PDF с метаданными, списки, обновление, удаление.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/webpaper/webpaper/internal/blobstore"
	"github.com/webpaper/webpaper/internal/domain/model"
	"github.com/webpaper/webpaper/internal/repository"
	"github.com/webpaper/webpaper/internal/watch"
)

// PaperUpload — данные загрузки новой статьи.
type PaperUpload struct {
	Title     string
	Authors   string
	Category  string
	Review    string
	KeyPoints []string
	IsPublic  bool
	FileName  string
	FileData  []byte
	UserID    string
}

// PapersService — сервис статей.
type PapersService struct {
	papers repository.PapersRepository
	blobs  blobstore.BlobStore
	hub    *watch.Hub
	logger *slog.Logger
}

// NewPapersService создаёт сервис статей.
func NewPapersService(
	papers repository.PapersRepository,
	blobs blobstore.BlobStore,
	hub *watch.Hub,
	logger *slog.Logger,
) *PapersService {
	return &PapersService{
		papers: papers,
		blobs:  blobs,
		hub:    hub,
		logger: logger.With(slog.String("component", "papers_service")),
	}
}

// ParseKeyPoints разбирает строку ключевых тезисов, разделённых запятыми.
// Пустые элементы после обрезки пробелов отбрасываются.
func ParseKeyPoints(raw string) []string {
	parts := strings.Split(raw, ",")
	result := []string{}
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// validatePaperFields проверяет обязательные метаданные статьи.
func validatePaperFields(title, authors, category string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: поле title обязательно", ErrValidation)
	}
	if strings.TrimSpace(authors) == "" {
		return fmt.Errorf("%w: поле authors обязательно", ErrValidation)
	}
	if strings.TrimSpace(category) == "" {
		return fmt.Errorf("%w: поле category обязательно", ErrValidation)
	}
	return nil
}

// validatePDF проверяет, что данные — корректный PDF хотя бы с одной страницей.
func validatePDF(data []byte) error {
	pages, err := api.PageCount(bytes.NewReader(data), pdfmodel.NewDefaultConfiguration())
	if err != nil {
		return fmt.Errorf("%w: файл не является корректным PDF", ErrValidation)
	}
	if pages < 1 {
		return fmt.Errorf("%w: PDF не содержит страниц", ErrValidation)
	}
	return nil
}

// Upload загружает PDF в хранилище и сохраняет метаданные статьи.
// При ошибке записи в БД загруженный файл удаляется из хранилища.
func (s *PapersService) Upload(ctx context.Context, u *PaperUpload) (*model.Paper, error) {
	if err := validatePaperFields(u.Title, u.Authors, u.Category); err != nil {
		return nil, err
	}
	if len(u.FileData) == 0 {
		return nil, fmt.Errorf("%w: PDF-файл обязателен", ErrValidation)
	}
	if err := validatePDF(u.FileData); err != nil {
		return nil, err
	}

	key := blobstore.Key(u.UserID, u.FileName)
	fileURL, err := s.blobs.Upload(ctx, key, u.FileData, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBlobUnavailable, err)
	}

	paper, err := s.papers.Create(ctx, &model.PaperCreate{
		Title:     strings.TrimSpace(u.Title),
		Authors:   strings.TrimSpace(u.Authors),
		Category:  strings.TrimSpace(u.Category),
		Review:    u.Review,
		KeyPoints: u.KeyPoints,
		IsPublic:  u.IsPublic,
		FileURL:   fileURL,
		FileKey:   key,
		FileName:  u.FileName,
		FileSize:  int64(len(u.FileData)),
		UserID:    u.UserID,
	})
	if err != nil {
		// Компенсация: метаданные не сохранились — файл не должен остаться.
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Не удалось удалить файл после сбоя записи метаданных",
				slog.String("key", key),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("сохранение статьи: %w", err)
	}

	s.hub.Notify(watch.TopicOwner(u.UserID))
	if paper.IsPublic {
		s.hub.Notify(watch.TopicShared)
	}

	s.logger.Info("Статья загружена",
		slog.String("paper_id", paper.ID.String()),
		slog.String("user_id", u.UserID),
		slog.String("title", paper.Title),
		slog.Int64("file_size", paper.FileSize),
	)
	return paper, nil
}

// ListOwn возвращает статьи пользователя, новые первыми.
func (s *PapersService) ListOwn(ctx context.Context, userID string) ([]*model.Paper, error) {
	papers, err := s.papers.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("получение статей пользователя: %w", err)
	}
	return papers, nil
}

// ListShared возвращает публичные статьи всех пользователей, новые первыми.
func (s *PapersService) ListShared(ctx context.Context) ([]*model.Paper, error) {
	papers, err := s.papers.ListPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение публичных статей: %w", err)
	}
	return papers, nil
}

// Get возвращает статью. Приватная статья доступна только владельцу.
// requesterID пустой для неаутентифицированных запросов.
func (s *PapersService) Get(ctx context.Context, id uuid.UUID, requesterID string) (*model.Paper, error) {
	paper, err := s.papers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение статьи: %w", err)
	}
	if !paper.IsPublic && paper.UserID != requesterID {
		// Не раскрываем существование чужих приватных статей.
		return nil, ErrNotFound
	}
	return paper, nil
}

// Update изменяет метаданные статьи. Доступно только владельцу.
func (s *PapersService) Update(ctx context.Context, id uuid.UUID, userID string, upd *model.PaperUpdate) (*model.Paper, error) {
	current, err := s.papers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение статьи для обновления: %w", err)
	}
	if current.UserID != userID {
		return nil, ErrForbidden
	}

	if upd.Title != nil && strings.TrimSpace(*upd.Title) == "" {
		return nil, fmt.Errorf("%w: поле title не может быть пустым", ErrValidation)
	}
	if upd.Authors != nil && strings.TrimSpace(*upd.Authors) == "" {
		return nil, fmt.Errorf("%w: поле authors не может быть пустым", ErrValidation)
	}
	if upd.Category != nil && strings.TrimSpace(*upd.Category) == "" {
		return nil, fmt.Errorf("%w: поле category не может быть пустым", ErrValidation)
	}

	paper, err := s.papers.Update(ctx, id, upd)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("обновление статьи: %w", err)
	}

	s.hub.Notify(watch.TopicOwner(userID))
	// Список публичных статей меняется при переключении видимости
	// и при правке публичной статьи.
	if paper.IsPublic || current.IsPublic {
		s.hub.Notify(watch.TopicShared)
	}

	s.logger.Info("Статья обновлена",
		slog.String("paper_id", id.String()),
		slog.String("user_id", userID),
	)
	return paper, nil
}

// Delete удаляет статью: сначала файл из хранилища, затем метаданные.
// Ошибка удаления файла не блокирует удаление метаданных.
func (s *PapersService) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	paper, err := s.papers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("получение статьи для удаления: %w", err)
	}
	if paper.UserID != userID {
		return ErrForbidden
	}

	if paper.FileKey != "" {
		if err := s.blobs.Delete(ctx, paper.FileKey); err != nil {
			s.logger.Warn("Не удалось удалить файл статьи, метаданные будут удалены",
				slog.String("key", paper.FileKey),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.papers.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление статьи: %w", err)
	}

	s.hub.Notify(watch.TopicOwner(userID))
	if paper.IsPublic {
		s.hub.Notify(watch.TopicShared)
	}
	// Комментарии удалены каскадно вместе со статьёй.
	s.hub.Notify(watch.TopicComments(id))

	s.logger.Info("Статья удалена",
		slog.String("paper_id", id.String()),
		slog.String("user_id", userID),
	)
	return nil
}
