// Пакет model — доменные модели Webpaper.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Paper — научная статья с метаданными и ссылкой на PDF-файл.
type Paper struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Authors   string    `json:"authors"`
	Category  string    `json:"category"`
	Review    string    `json:"review"`
	KeyPoints []string  `json:"key_points"`
	IsPublic  bool      `json:"is_public"`
	FileURL   string    `json:"file_url"`
	FileKey   string    `json:"-"`
	FileName  string    `json:"file_name"`
	FileSize  int64     `json:"file_size"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaperCreate — данные для создания статьи.
type PaperCreate struct {
	Title     string
	Authors   string
	Category  string
	Review    string
	KeyPoints []string
	IsPublic  bool
	FileURL   string
	FileKey   string
	FileName  string
	FileSize  int64
	UserID    string
}

// PaperUpdate — изменяемые поля статьи.
// nil означает «поле не меняется».
type PaperUpdate struct {
	Title     *string
	Authors   *string
	Category  *string
	Review    *string
	KeyPoints []string
	IsPublic  *bool
}
