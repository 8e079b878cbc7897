// Пакет watch — внутрипроцессная шина уведомлений об изменениях данных.
// Сервисы публикуют факт изменения темы, SSE-обработчики подписываются
// и в ответ на уведомление перечитывают актуальное состояние из БД.
package watch

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Темы уведомлений.
const (
	// TopicShared — список публичных статей.
	TopicShared = "papers:shared"
)

// TopicOwner — тема статей конкретного владельца.
func TopicOwner(userID string) string {
	return "papers:owner:" + userID
}

// TopicComments — тема комментариев конкретной статьи.
func TopicComments(paperID uuid.UUID) string {
	return fmt.Sprintf("comments:%s", paperID)
}

// Hub — реестр подписчиков по темам.
// Уведомления коалесцируются: несколько Notify подряд до вычитки
// подписчиком схлопываются в одно.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan struct{}
	next int
}

// NewHub создаёт пустую шину уведомлений.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan struct{})}
}

// Subscribe регистрирует подписчика темы.
// Возвращает канал уведомлений и функцию отписки.
// Канал буферизован на один элемент — пропущенные уведомления схлопываются.
func (h *Hub) Subscribe(topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[int]chan struct{})
	}
	h.subs[topic][id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if m, ok := h.subs[topic]; ok {
			delete(m, id)
			if len(m) == 0 {
				delete(h.subs, topic)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Notify уведомляет всех подписчиков темы.
// Не блокируется: если буфер подписчика занят, уведомление уже в пути.
func (h *Hub) Notify(topic string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers возвращает число подписчиков темы. Используется в тестах и метриках.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
