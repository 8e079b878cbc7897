package model

import (
	"time"

	"github.com/google/uuid"
)

// Палитра цветов категорий. Цвет выбирается циклически по порядку создания.
var CategoryColors = []string{
	"blue", "green", "purple", "orange", "red", "yellow", "pink", "indigo",
}

// DefaultCategoryColor — цвет категории, не имеющей сохранённого цвета.
const DefaultCategoryColor = "blue"

// Category — пользовательская категория статей.
type Category struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryCreate — данные для создания категории.
type CategoryCreate struct {
	UserID string
	Name   string
	Color  string
}
