// Пакет paperclient — HTTP-клиент API Webpaper.
// Используется CLI paperctl и интеграционными тестами.
// Операции: статьи (CRUD, списки), комментарии, категории, SSE-подписки.
package paperclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Paper — статья в ответах API.
type Paper struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Authors   string    `json:"authors"`
	Category  string    `json:"category"`
	Review    string    `json:"review"`
	KeyPoints []string  `json:"key_points"`
	IsPublic  bool      `json:"is_public"`
	FileURL   string    `json:"file_url"`
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment — комментарий в ответах API.
type Comment struct {
	ID        string    `json:"id"`
	PaperID   string    `json:"paper_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserPhoto string    `json:"user_photo"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Category — категория в ответах API.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Profile — профиль текущего пользователя (GET /api/v1/me).
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Photo    string `json:"photo"`
}

// PapersList — ответ со списком статей.
type PapersList struct {
	Papers []Paper `json:"papers"`
	Total  int     `json:"total"`
}

// CommentsList — ответ со списком комментариев.
type CommentsList struct {
	Comments []Comment `json:"comments"`
	Total    int       `json:"total"`
}

// CategoriesList — ответ со списком категорий.
type CategoriesList struct {
	Categories []Category `json:"categories"`
	Total      int        `json:"total"`
}

// UploadRequest — данные загрузки новой статьи.
type UploadRequest struct {
	Title    string
	Authors  string
	Category string
	Review   string
	// KeyPoints — ключевые тезисы через запятую.
	KeyPoints string
	IsPublic  bool
	FileName  string
	File      io.Reader
}

// UpdateRequest — изменяемые поля статьи. nil означает «не меняется».
type UpdateRequest struct {
	Title     *string  `json:"title,omitempty"`
	Authors   *string  `json:"authors,omitempty"`
	Category  *string  `json:"category,omitempty"`
	Review    *string  `json:"review,omitempty"`
	KeyPoints []string `json:"key_points,omitempty"`
	IsPublic  *bool    `json:"is_public,omitempty"`
}

// APIError — ошибка API в формате {"error": {"code", "message"}}.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API вернул статус %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Client — HTTP-клиент API Webpaper.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент API.
// baseURL — адрес сервера (например, http://localhost:8080).
// token — JWT для авторизации (пустая строка — только публичные endpoints).
func New(baseURL, token string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger.With(slog.String("component", "paperclient")),
	}
}

// newRequest создаёт запрос с заголовком авторизации.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("создание запроса %s %s: %w", method, path, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do выполняет запрос и декодирует JSON-ответ в out (nil — тело игнорируется).
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("декодирование ответа %s: %w", req.URL.Path, err)
		}
	}
	return nil
}

// decodeAPIError разбирает тело ошибки в стандартном формате.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = "UNKNOWN"
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// Me возвращает профиль текущего пользователя.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/me", nil)
	if err != nil {
		return nil, err
	}
	var profile Profile
	if err := c.do(req, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListOwn возвращает статьи текущего пользователя, новые первыми.
func (c *Client) ListOwn(ctx context.Context) ([]Paper, error) {
	return c.listPapers(ctx, "/api/v1/papers")
}

// ListShared возвращает публичные статьи, новые первыми.
func (c *Client) ListShared(ctx context.Context) ([]Paper, error) {
	return c.listPapers(ctx, "/api/v1/papers/shared")
}

func (c *Client) listPapers(ctx context.Context, path string) ([]Paper, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var list PapersList
	if err := c.do(req, &list); err != nil {
		return nil, err
	}
	return list.Papers, nil
}

// Get возвращает статью по ID.
func (c *Client) Get(ctx context.Context, id string) (*Paper, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/papers/"+id, nil)
	if err != nil {
		return nil, err
	}
	var paper Paper
	if err := c.do(req, &paper); err != nil {
		return nil, err
	}
	return &paper, nil
}

// ErrInvalidPDF — файл не прошёл локальную проверку формата PDF.
var ErrInvalidPDF = errors.New("файл не является корректным PDF")

// validatePDF проверяет, что данные — корректный PDF хотя бы с одной страницей.
func validatePDF(data []byte) error {
	pages, err := api.PageCount(bytes.NewReader(data), pdfmodel.NewDefaultConfiguration())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if pages < 1 {
		return fmt.Errorf("%w: PDF не содержит страниц", ErrInvalidPDF)
	}
	return nil
}

// Upload загружает новую статью (multipart PDF + метаданные).
// Файл проверяется локально до обращения к серверу: некорректный PDF
// отклоняется без сетевого запроса.
func (c *Client) Upload(ctx context.Context, u *UploadRequest) (*Paper, error) {
	data, err := io.ReadAll(u.File)
	if err != nil {
		return nil, fmt.Errorf("чтение файла: %w", err)
	}
	if err := validatePDF(data); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"title":      u.Title,
		"authors":    u.Authors,
		"category":   u.Category,
		"review":     u.Review,
		"key_points": u.KeyPoints,
		"is_public":  strconv.FormatBool(u.IsPublic),
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("запись поля %s: %w", name, err)
		}
	}

	fw, err := mw.CreateFormFile("file", u.FileName)
	if err != nil {
		return nil, fmt.Errorf("создание поля file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("копирование файла: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("завершение multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/papers", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var paper Paper
	if err := c.do(req, &paper); err != nil {
		return nil, err
	}
	return &paper, nil
}

// Update изменяет метаданные статьи.
func (c *Client) Update(ctx context.Context, id string, upd *UpdateRequest) (*Paper, error) {
	body, err := json.Marshal(upd)
	if err != nil {
		return nil, fmt.Errorf("сериализация запроса: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPatch, "/api/v1/papers/"+id, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var paper Paper
	if err := c.do(req, &paper); err != nil {
		return nil, err
	}
	return &paper, nil
}

// Delete удаляет статью вместе с файлом и комментариями.
func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/v1/papers/"+id, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Comments возвращает комментарии статьи, старые первыми.
func (c *Client) Comments(ctx context.Context, paperID string) ([]Comment, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/papers/"+paperID+"/comments", nil)
	if err != nil {
		return nil, err
	}
	var list CommentsList
	if err := c.do(req, &list); err != nil {
		return nil, err
	}
	return list.Comments, nil
}

// AddComment добавляет комментарий к статье.
func (c *Client) AddComment(ctx context.Context, paperID, content string) (*Comment, error) {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, fmt.Errorf("сериализация запроса: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/papers/"+paperID+"/comments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var comment Comment
	if err := c.do(req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// Categories возвращает категории текущего пользователя.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/categories", nil)
	if err != nil {
		return nil, err
	}
	var list CategoriesList
	if err := c.do(req, &list); err != nil {
		return nil, err
	}
	return list.Categories, nil
}

// CreateCategory создаёт новую категорию.
func (c *Client) CreateCategory(ctx context.Context, name string) (*Category, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, fmt.Errorf("сериализация запроса: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/categories", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var category Category
	if err := c.do(req, &category); err != nil {
		return nil, err
	}
	return &category, nil
}
