package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// testKeyID — идентификатор ключа для тестов.
const testKeyID = "test-key-wp"

const testIssuer = "https://keycloak.test/realms/webpaper"

// generateTestKey генерирует RSA ключ для тестов.
func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	return key
}

// buildJWKSetJSON строит JWKS JSON из RSA публичного ключа.
func buildJWKSetJSON(pub *rsa.PublicKey, kid string) json.RawMessage {
	nB64 := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	eB64 := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())

	jwks := map[string]any{
		"keys": []map[string]any{
			{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   nB64,
				"e":   eB64,
			},
		},
	}

	data, _ := json.Marshal(jwks)
	return data
}

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestJWTAuth создаёт JWTAuth для тестов с mock JWKS.
func newTestJWTAuth(t *testing.T, key *rsa.PrivateKey) *JWTAuth {
	t.Helper()
	jwksJSON := buildJWKSetJSON(&key.PublicKey, testKeyID)
	kf, err := keyfunc.NewJWKSetJSON(jwksJSON)
	if err != nil {
		t.Fatalf("не удалось создать keyfunc: %v", err)
	}

	return NewJWTAuthWithKeyfunc(kf, testIssuer, testLogger())
}

// generateToken генерирует подписанный JWT с переданными claims.
func generateToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	if _, ok := claims["iss"]; !ok {
		claims["iss"] = testIssuer
	}
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	claims["nbf"] = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	claims["iat"] = jwt.NewNumericDate(time.Now())

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return tokenStr
}

// userToken генерирует JWT обычного пользователя Keycloak.
func userToken(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	return generateToken(t, key, jwt.MapClaims{
		"sub":                "user-123",
		"name":               "Иван Петров",
		"preferred_username": "ivan",
		"email":              "ivan@test.com",
		"picture":            "https://cdn.test/ivan.png",
	})
}

// --- Тесты JWT Middleware ---

// TestJWTAuth_ValidToken — валидный JWT помещает Identity в контекст.
func TestJWTAuth_ValidToken(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := IdentityFromContext(r.Context())
		if ident == nil {
			t.Fatal("Identity не найден в контексте")
		}

		if ident.ID != "user-123" {
			t.Errorf("ожидался ID=user-123, получен %s", ident.ID)
		}
		if ident.Name != "Иван Петров" {
			t.Errorf("ожидался Name=Иван Петров, получен %s", ident.Name)
		}
		if ident.Username != "ivan" {
			t.Errorf("ожидался Username=ivan, получен %s", ident.Username)
		}
		if ident.Email != "ivan@test.com" {
			t.Errorf("ожидался Email=ivan@test.com, получен %s", ident.Email)
		}
		if ident.Photo != "https://cdn.test/ivan.png" {
			t.Errorf("ожидался Photo из claim picture, получен %s", ident.Photo)
		}

		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, key))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d, тело: %s", rec.Code, rec.Body.String())
	}
}

// TestJWTAuth_NameFallback — без claim name имя берётся из preferred_username.
func TestJWTAuth_NameFallback(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := IdentityFromContext(r.Context())
		if ident == nil {
			t.Fatal("Identity не найден в контексте")
		}
		if ident.Name != "ivan" {
			t.Errorf("ожидался fallback Name=ivan, получен %s", ident.Name)
		}
		w.WriteHeader(http.StatusOK)
	}))

	tokenStr := generateToken(t, key, jwt.MapClaims{
		"sub":                "user-123",
		"preferred_username": "ivan",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
}

// TestJWTAuth_MissingToken — отсутствие Authorization header.
func TestJWTAuth_MissingToken(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// TestJWTAuth_ExpiredToken — просроченный токен.
func TestJWTAuth_ExpiredToken(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	tokenStr := generateToken(t, key, jwt.MapClaims{
		"sub": "user-123",
		"exp": jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// TestJWTAuth_InvalidFormat — некорректный формат Authorization.
func TestJWTAuth_InvalidFormat(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"no bearer prefix", "token123"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/papers", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("ожидался статус 401, получен %d", rec.Code)
			}
		})
	}
}

// TestJWTAuth_WrongIssuer — токен с неверным issuer.
func TestJWTAuth_WrongIssuer(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	tokenStr := generateToken(t, key, jwt.MapClaims{
		"sub": "user-123",
		"iss": "https://other-keycloak.test/realms/other",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// TestJWTAuth_MissingSub — токен без sub.
func TestJWTAuth_MissingSub(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	tokenStr := generateToken(t, key, jwt.MapClaims{
		"preferred_username": "ivan",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// TestJWTAuth_WrongKey — токен, подписанный чужим ключом.
func TestJWTAuth_WrongKey(t *testing.T) {
	key := generateTestKey(t)
	otherKey := generateTestKey(t)
	auth := newTestJWTAuth(t, key)
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, otherKey))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// --- Тесты Optional middleware ---

// TestOptional_NoHeader — без Authorization запрос проходит анонимно.
func TestOptional_NoHeader(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	handler := auth.Optional()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ident := IdentityFromContext(r.Context()); ident != nil {
			t.Errorf("ожидался анонимный запрос, получен Identity %+v", ident)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers/shared", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
}

// TestOptional_ValidToken — с валидным токеном Identity в контексте.
func TestOptional_ValidToken(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)

	handler := auth.Optional()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := IdentityFromContext(r.Context())
		if ident == nil {
			t.Fatal("Identity не найден в контексте")
		}
		if ident.ID != "user-123" {
			t.Errorf("ожидался ID=user-123, получен %s", ident.ID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers/shared", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, key))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("ожидался статус 200, получен %d", rec.Code)
	}
}

// TestOptional_InvalidToken — невалидный токен отклоняется, а не игнорируется.
func TestOptional_InvalidToken(t *testing.T) {
	key := generateTestKey(t)
	auth := newTestJWTAuth(t, key)
	handler := auth.Optional()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler не должен быть вызван")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/papers/shared", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

// --- Тесты context helpers ---

// TestIdentityFromContext_Empty — пустой контекст.
func TestIdentityFromContext_Empty(t *testing.T) {
	if ident := IdentityFromContext(context.Background()); ident != nil {
		t.Errorf("ожидался nil, получено %+v", ident)
	}
}

// TestUserIDFromContext — извлечение ID пользователя.
func TestUserIDFromContext(t *testing.T) {
	ident := &Identity{ID: "user-123"}
	ctx := context.WithValue(context.Background(), ContextKeyIdentity, ident)

	if id := UserIDFromContext(ctx); id != "user-123" {
		t.Errorf("ожидался user-123, получен %q", id)
	}
}

// TestUserIDFromContext_Empty — пустой контекст.
func TestUserIDFromContext_Empty(t *testing.T) {
	if id := UserIDFromContext(context.Background()); id != "" {
		t.Errorf("ожидалась пустая строка, получено %q", id)
	}
}
