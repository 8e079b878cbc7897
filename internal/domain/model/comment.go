package model

import (
	"time"

	"github.com/google/uuid"
)

// Comment — комментарий к публичной статье.
// Имя и фото автора фиксируются на момент создания.
type Comment struct {
	ID        uuid.UUID `json:"id"`
	PaperID   uuid.UUID `json:"paper_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserPhoto string    `json:"user_photo"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentCreate — данные для создания комментария.
type CommentCreate struct {
	PaperID   uuid.UUID
	UserID    string
	UserName  string
	UserPhoto string
	Content   string
}
