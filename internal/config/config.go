// Пакет config — загрузка и валидация конфигурации Webpaper
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервера Webpaper.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Keycloak / JWT ---

	// URL Keycloak (например, https://keycloak.example.lan)
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Путь к CA-сертификату для TLS-соединений (Keycloak, S3; опционально)
	CACertPath string

	// --- S3 (blob store) ---

	// Endpoint S3-совместимого хранилища (MinIO или AWS)
	S3Endpoint string
	// Регион S3
	S3Region string
	// Бакет для PDF-файлов
	S3Bucket string
	// Ключ доступа S3
	S3AccessKey string
	// Секретный ключ S3
	S3SecretKey string
	// Базовый публичный URL бакета (авто-вычисляется из endpoint, если не задан)
	S3PublicBaseURL string

	// --- Лимиты ---

	// Максимальный размер загружаемого PDF в байтах
	MaxUploadSize int64
	// Максимальная длина комментария в символах
	CommentMaxLength int
	// Интервал keepalive-комментариев SSE
	SSEKeepalive time.Duration

	// --- Мониторинг зависимостей ---

	// Имя группы topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
//
//nolint:cyclop // линейная последовательность чтения переменных
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// WP_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("WP_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("WP_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("WP_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// WP_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("WP_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("WP_LOG_LEVEL: %w", err)
	}

	// WP_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("WP_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("WP_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// WP_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("WP_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WP_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("WP_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("WP_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("WP_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("WP_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("WP_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("WP_DB_PASSWORD"); err != nil {
		return nil, err
	}

	// WP_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("WP_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("WP_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Keycloak / JWT ---

	if cfg.KeycloakURL, err = getEnvRequired("WP_KEYCLOAK_URL"); err != nil {
		return nil, err
	}
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	// WP_KEYCLOAK_REALM — realm (по умолчанию webpaper)
	cfg.KeycloakRealm = getEnvDefault("WP_KEYCLOAK_REALM", "webpaper")

	// WP_JWT_ISSUER — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTIssuer = getEnvDefault("WP_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))

	// WP_JWT_JWKS_URL — авто-вычисляется из KeycloakURL, если не задан
	cfg.JWTJWKSURL = getEnvDefault("WP_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	// WP_JWT_LEEWAY — допуск времени JWT (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("WP_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WP_JWT_LEEWAY: %w", err)
	}

	// WP_JWKS_REFRESH_INTERVAL — интервал обновления JWKS (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("WP_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("WP_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// WP_JWKS_CLIENT_TIMEOUT — таймаут HTTP-клиента JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("WP_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WP_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// WP_CA_CERT_PATH — путь к CA-сертификату (опционально)
	cfg.CACertPath = getEnvDefault("WP_CA_CERT_PATH", "")

	// --- S3 ---

	if cfg.S3Endpoint, err = getEnvRequired("WP_S3_ENDPOINT"); err != nil {
		return nil, err
	}
	cfg.S3Endpoint = strings.TrimRight(cfg.S3Endpoint, "/")
	if _, urlErr := url.Parse(cfg.S3Endpoint); urlErr != nil {
		return nil, fmt.Errorf("WP_S3_ENDPOINT: некорректный URL: %w", urlErr)
	}

	cfg.S3Region = getEnvDefault("WP_S3_REGION", "us-east-1")
	cfg.S3Bucket = getEnvDefault("WP_S3_BUCKET", "papers")

	if cfg.S3AccessKey, err = getEnvRequired("WP_S3_ACCESS_KEY"); err != nil {
		return nil, err
	}
	if cfg.S3SecretKey, err = getEnvRequired("WP_S3_SECRET_KEY"); err != nil {
		return nil, err
	}

	// WP_S3_PUBLIC_URL — базовый публичный URL бакета
	// (по умолчанию <endpoint>/<bucket>, path-style для MinIO)
	cfg.S3PublicBaseURL = strings.TrimRight(
		getEnvDefault("WP_S3_PUBLIC_URL", cfg.S3Endpoint+"/"+cfg.S3Bucket), "/")

	// --- Лимиты ---

	// WP_MAX_UPLOAD_SIZE — максимальный размер PDF (по умолчанию 50 MiB)
	maxUpload, err := getEnvInt("WP_MAX_UPLOAD_SIZE", 50*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("WP_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload < 1 {
		return nil, fmt.Errorf("WP_MAX_UPLOAD_SIZE: значение %d должно быть положительным", maxUpload)
	}
	cfg.MaxUploadSize = int64(maxUpload)

	// WP_COMMENT_MAX_LENGTH — максимальная длина комментария (по умолчанию 300)
	cfg.CommentMaxLength, err = getEnvInt("WP_COMMENT_MAX_LENGTH", 300)
	if err != nil {
		return nil, fmt.Errorf("WP_COMMENT_MAX_LENGTH: %w", err)
	}
	if cfg.CommentMaxLength < 1 {
		return nil, fmt.Errorf("WP_COMMENT_MAX_LENGTH: значение %d должно быть положительным", cfg.CommentMaxLength)
	}

	// WP_SSE_KEEPALIVE — интервал keepalive SSE (по умолчанию 15s)
	cfg.SSEKeepalive, err = getEnvDuration("WP_SSE_KEEPALIVE", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WP_SSE_KEEPALIVE: %w", err)
	}

	// --- Мониторинг зависимостей ---

	// WP_DEPHEALTH_GROUP — имя группы в метриках (по умолчанию webpaper)
	cfg.DephealthGroup = getEnvDefault("WP_DEPHEALTH_GROUP", "webpaper")

	// WP_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("WP_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("WP_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения к PostgreSQL
// (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.DBUser), url.QueryEscape(c.DBPassword),
		c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
