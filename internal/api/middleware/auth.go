// auth.go — JWT middleware для аутентификации Webpaper.
// Извлекает профиль пользователя из Keycloak JWT: идентификатор, имя,
// аватар. Подпись валидируется через JWKS Keycloak.
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/webpaper/webpaper/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyIdentity — профиль пользователя в контексте запроса.
const ContextKeyIdentity contextKey = "identity"

// Identity — профиль аутентифицированного пользователя из Keycloak JWT.
// Помещается в контекст запроса для downstream handlers.
type Identity struct {
	// ID — sub из JWT (Keycloak user ID).
	ID string
	// Name — отображаемое имя (claim name, fallback на preferred_username).
	Name string
	// Username — preferred_username из JWT.
	Username string
	// Email — email из JWT.
	Email string
	// Photo — URL аватара (claim picture).
	Photo string
}

// keycloakClaims — raw claims из Keycloak JWT для парсинга.
type keycloakClaims struct {
	jwt.RegisteredClaims
	// Name — отображаемое имя пользователя.
	Name string `json:"name,omitempty"`
	// PreferredUsername — имя пользователя.
	PreferredUsername string `json:"preferred_username,omitempty"`
	// Email — электронная почта.
	Email string `json:"email,omitempty"`
	// Picture — URL аватара.
	Picture string `json:"picture,omitempty"`
}

// JWTAuth — middleware для JWT-аутентификации через JWKS Keycloak.
type JWTAuth struct {
	jwks      keyfunc.Keyfunc
	logger    *slog.Logger
	issuer    string
	jwtLeeway time.Duration
}

// NewJWTAuth создаёт JWT middleware с JWKS из Keycloak.
// jwksURL — URL к JWKS endpoint Keycloak.
// caCertPath — опциональный путь к CA-сертификату для TLS.
// issuer — ожидаемый issuer JWT (обычно https://keycloak/realms/webpaper).
// jwksClientTimeout — таймаут HTTP-клиента JWKS (WP_JWKS_CLIENT_TIMEOUT).
// jwksRefreshInterval — интервал обновления JWKS-ключей (WP_JWKS_REFRESH_INTERVAL).
// jwtLeeway — допустимое отклонение времени при проверке JWT (WP_JWT_LEEWAY).
func NewJWTAuth(
	jwksURL string,
	caCertPath string,
	issuer string,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) (*JWTAuth, error) {
	// HTTP-клиент для JWKS (с кастомным CA или стандартный)
	httpClient := http.DefaultClient
	if caCertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(caCertPath, jwksClientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	// JWKS Storage с фоновым обновлением.
	// NoErrorReturnFirstHTTPReq — стартуем даже если Keycloak ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return &JWTAuth{
		jwks:      k,
		logger:    logger.With(slog.String("component", "jwt_auth")),
		issuer:    issuer,
		jwtLeeway: jwtLeeway,
	}, nil
}

// httpClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
// timeout — таймаут HTTP-запросов.
func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: caCertPool,
			},
		},
	}, nil
}

// NewJWTAuthWithKeyfunc создаёт JWT middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTAuthWithKeyfunc(kf keyfunc.Keyfunc, issuer string, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		jwks:   kf,
		logger: logger.With(slog.String("component", "jwt_auth")),
		issuer: issuer,
	}
}

// Middleware возвращает HTTP middleware, требующий валидный JWT.
// Извлекает Bearer token, валидирует подпись (RS256), формирует Identity
// и помещает его в контекст. Без токена — 401.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, err := j.authenticate(r)
			if err != nil {
				apierrors.Unauthorized(w, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional возвращает middleware с необязательной аутентификацией.
// Валидный токен помещает Identity в контекст; отсутствие заголовка
// Authorization пропускает запрос анонимно. Невалидный токен — 401.
func (j *JWTAuth) Optional() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}

			ident, err := j.authenticate(r)
			if err != nil {
				apierrors.Unauthorized(w, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate извлекает и валидирует Bearer token из запроса.
func (j *JWTAuth) authenticate(r *http.Request) (*Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("отсутствует заголовок Authorization")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, fmt.Errorf("неверный формат Authorization: ожидается Bearer <token>")
	}

	tokenString := parts[1]
	if tokenString == "" {
		return nil, fmt.Errorf("пустой Bearer token")
	}

	rawClaims := &keycloakClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.jwtLeeway),
	}
	if j.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, rawClaims, j.jwks.KeyfuncCtx(r.Context()), parserOpts...)
	if err != nil {
		j.logger.Debug("JWT валидация не пройдена",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr),
		)
		return nil, fmt.Errorf("невалидный или просроченный токен")
	}
	if !token.Valid {
		return nil, fmt.Errorf("невалидный токен")
	}

	subject, err := rawClaims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("отсутствует sub в токене")
	}

	name := rawClaims.Name
	if name == "" {
		name = rawClaims.PreferredUsername
	}

	return &Identity{
		ID:       subject,
		Name:     name,
		Username: rawClaims.PreferredUsername,
		Email:    rawClaims.Email,
		Photo:    rawClaims.Picture,
	}, nil
}

// --- Context helpers ---

// IdentityFromContext извлекает Identity из контекста запроса.
// Возвращает nil для анонимных запросов.
func IdentityFromContext(ctx context.Context) *Identity {
	ident, _ := ctx.Value(ContextKeyIdentity).(*Identity)
	return ident
}

// UserIDFromContext извлекает ID пользователя из контекста запроса.
// Возвращает пустую строку для анонимных запросов.
func UserIDFromContext(ctx context.Context) string {
	ident := IdentityFromContext(ctx)
	if ident == nil {
		return ""
	}
	return ident.ID
}

// --- ReadinessChecker для Keycloak ---

// KeycloakReadinessChecker — проверка доступности Keycloak через JWKS.
type KeycloakReadinessChecker struct {
	jwksURL string
	client  *http.Client
}

// NewKeycloakReadinessChecker создаёт checker доступности Keycloak.
// timeout — таймаут проверки готовности.
func NewKeycloakReadinessChecker(jwksURL, caCertPath string, timeout time.Duration) (*KeycloakReadinessChecker, error) {
	client := &http.Client{Timeout: timeout}
	if caCertPath != "" {
		var err error
		client, err = httpClientWithCA(caCertPath, timeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA для readiness checker: %w", err)
		}
	}

	return &KeycloakReadinessChecker{
		jwksURL: jwksURL,
		client:  client,
	}, nil
}

const statusFail = "fail"

// CheckReady проверяет доступность JWKS endpoint Keycloak.
func (k *KeycloakReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, k.jwksURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return statusFail, fmt.Sprintf("Keycloak JWKS недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("Keycloak JWKS вернул статус %d", resp.StatusCode)
	}

	// Проверяем, что ответ — валидный JSON с ключами
	var jwksResp struct {
		Keys []json.RawMessage `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return "degraded", fmt.Sprintf("Keycloak JWKS: невалидный JSON: %v", err)
	}

	if len(jwksResp.Keys) == 0 {
		return "degraded", "Keycloak JWKS: нет ключей"
	}

	return "ok", fmt.Sprintf("JWKS доступен, ключей: %d", len(jwksResp.Keys))
}

// Close освобождает ресурсы JWT middleware.
func (j *JWTAuth) Close() {
	// keyfunc v3 не требует явного закрытия
}
