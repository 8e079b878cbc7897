// Пакет blobstore — хранилище PDF-файлов в S3-совместимом хранилище (MinIO).
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/webpaper/webpaper/internal/config"
)

// ErrNotFound — объект отсутствует в хранилище.
var ErrNotFound = errors.New("объект не найден в хранилище")

// BlobStore — интерфейс хранилища файлов.
type BlobStore interface {
	// Upload загружает данные по ключу и возвращает публичный URL.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Delete удаляет объект. Отсутствующий объект — не ошибка.
	Delete(ctx context.Context, key string) error
	// PublicURL возвращает публичный URL объекта по ключу.
	PublicURL(key string) string
}

// S3Store — реализация BlobStore поверх AWS SDK v2.
type S3Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	logger        *slog.Logger
}

// New создаёт S3-клиент со статическими учётными данными
// и проверяет доступность бакета.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации S3: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		// MinIO требует path-style адресацию бакетов.
		o.UsePathStyle = true
	})

	s := &S3Store{
		client:        client,
		bucket:        cfg.S3Bucket,
		publicBaseURL: strings.TrimRight(cfg.S3PublicBaseURL, "/"),
		logger:        logger.With(slog.String("component", "blobstore")),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HeadBucket(pingCtx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.S3Bucket),
	}); err != nil {
		return nil, fmt.Errorf("бакет %s недоступен: %w", cfg.S3Bucket, err)
	}

	logger.Info("Подключение к S3 установлено",
		slog.String("endpoint", cfg.S3Endpoint),
		slog.String("bucket", cfg.S3Bucket),
	)
	return s, nil
}

// Key формирует ключ объекта для файла пользователя.
// Временная метка в ключе исключает коллизии имён.
func Key(ownerID, filename string) string {
	return fmt.Sprintf("papers/%s/%d_%s", ownerID, time.Now().UnixMilli(), sanitizeFilename(filename))
}

// sanitizeFilename убирает из имени файла символы, недопустимые в ключе объекта.
func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func (s *S3Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("ошибка загрузки объекта %s: %w", key, err)
	}

	s.logger.Debug("Объект загружен",
		slog.String("key", key),
		slog.Int("size", len(data)),
	)
	return s.PublicURL(key), nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			// Объект уже отсутствует — цель достигнута.
			return nil
		}
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}

	s.logger.Debug("Объект удалён", slog.String("key", key))
	return nil
}

func (s *S3Store) PublicURL(key string) string {
	return s.publicBaseURL + "/" + key
}

// CheckReady проверяет доступность бакета. Используется в readiness probe.
// Возвращает статус ("ok", "fail") и сообщение.
func (s *S3Store) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	}); err != nil {
		return "fail", fmt.Sprintf("бакет %s недоступен: %v", s.bucket, err)
	}
	return "ok", "бакет доступен"
}

// isNotFound распознаёт ответ S3 «объект не существует».
func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
