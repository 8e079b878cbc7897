// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrForbidden — операция доступна только владельцу ресурса.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrBlobUnavailable — хранилище файлов недоступно.
	ErrBlobUnavailable = errors.New("хранилище файлов недоступно")
)
