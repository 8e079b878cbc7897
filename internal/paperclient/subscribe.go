// subscribe.go — SSE-клиент для live-подписок.
// Сервер доставляет полный снимок данных при подключении и после каждого
// изменения. Поток событий читается в отдельной горутине.
package paperclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Event — одно SSE-событие потока.
type Event struct {
	// Name — имя события (papers, comments, error).
	Name string
	// Data — JSON-полезная нагрузка события.
	Data json.RawMessage
}

// Subscription — активная SSE-подписка.
type Subscription struct {
	// Events — канал событий. Закрывается при завершении потока.
	Events <-chan Event
	// Errs — канал ошибки завершения потока (буфер 1).
	// Штатное закрытие по отмене контекста не считается ошибкой.
	Errs   <-chan error
	cancel context.CancelFunc
}

// Close разрывает подписку.
func (s *Subscription) Close() {
	s.cancel()
}

// SubscribeOwnPapers подписывается на SSE-поток статей текущего пользователя.
func (c *Client) SubscribeOwnPapers(ctx context.Context) (*Subscription, error) {
	return c.subscribe(ctx, "/api/v1/papers/events")
}

// SubscribeSharedPapers подписывается на SSE-поток публичных статей.
func (c *Client) SubscribeSharedPapers(ctx context.Context) (*Subscription, error) {
	return c.subscribe(ctx, "/api/v1/papers/shared/events")
}

// SubscribeComments подписывается на SSE-поток комментариев статьи.
func (c *Client) SubscribeComments(ctx context.Context, paperID string) (*Subscription, error) {
	return c.subscribe(ctx, "/api/v1/papers/"+paperID+"/comments/events")
}

// subscribe открывает SSE-соединение и запускает горутину чтения потока.
func (c *Client) subscribe(ctx context.Context, path string) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	// Потоковое соединение живёт дольше обычного таймаута клиента.
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("подключение к SSE %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, decodeAPIError(resp)
	}

	events := make(chan Event)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer resp.Body.Close()

		if err := readEventStream(ctx, resp.Body, events); err != nil && ctx.Err() == nil {
			c.logger.Debug("SSE-поток прерван",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			errs <- err
		}
	}()

	return &Subscription{Events: events, Errs: errs, cancel: cancel}, nil
}

// readEventStream разбирает поток text/event-stream и отправляет события в out.
// Комментарии (строки с ":") пропускаются. Возвращает ошибку чтения потока.
func readEventStream(ctx context.Context, body io.Reader, out chan<- Event) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var name string
	var data strings.Builder

	flush := func() bool {
		if name == "" && data.Len() == 0 {
			return true
		}
		ev := Event{Name: name, Data: json.RawMessage(data.String())}
		name = ""
		data.Reset()
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if !flush() {
				return nil
			}
		case strings.HasPrefix(line, ":"):
			// keepalive-комментарий
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	return scanner.Err()
}
