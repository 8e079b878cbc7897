// watcher.go — наблюдатель SSE-потока с явным конечным автоматом состояний
// и автоматическим переподключением.
//
// Состояния: Unsubscribed → Subscribing → Subscribed.
// Повторный вызов Watch отменяет предыдущую подписку до открытия новой,
// поэтому обработчик никогда не получает события устаревшего потока.
package paperclient

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// WatchState — состояние наблюдателя.
type WatchState int

const (
	// StateUnsubscribed — подписки нет.
	StateUnsubscribed WatchState = iota
	// StateSubscribing — соединение устанавливается.
	StateSubscribing
	// StateSubscribed — поток активен, события доставляются.
	StateSubscribed
)

// String возвращает текстовое представление состояния.
func (s WatchState) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unsubscribed"
	}
}

// WatchHandler — обработчики событий наблюдателя.
type WatchHandler struct {
	// OnEvent вызывается для каждого события потока (кроме событий error).
	OnEvent func(Event)
	// OnError вызывается при ошибке потока или событии error.
	// После вызова наблюдатель переподключается с задержкой.
	OnError func(error)
}

// Watcher — наблюдатель одного SSE-потока.
type Watcher struct {
	client  *Client
	handler WatchHandler
	retry   time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	state  WatchState
	gen    int
	cancel context.CancelFunc
}

// NewWatcher создаёт наблюдателя.
// retry — задержка между попытками переподключения.
func NewWatcher(client *Client, handler WatchHandler, retry time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		client:  client,
		handler: handler,
		retry:   retry,
		logger:  logger.With(slog.String("component", "watcher")),
	}
}

// State возвращает текущее состояние наблюдателя.
func (w *Watcher) State() WatchState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Watch начинает наблюдение за потоком subscribe (например,
// client.SubscribeOwnPapers). Предыдущая подписка отменяется до открытия
// новой. Наблюдение продолжается до отмены ctx или вызова Stop.
func (w *Watcher) Watch(ctx context.Context, subscribe func(context.Context) (*Subscription, error)) {
	w.mu.Lock()
	// Отменяем устаревший поток, его события больше не доставляются.
	if w.cancel != nil {
		w.cancel()
	}
	w.gen++
	gen := w.gen
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.state = StateSubscribing
	w.mu.Unlock()

	go w.run(ctx, gen, subscribe)
}

// Stop отменяет текущую подписку.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.state = StateUnsubscribed
}

// run — цикл подключения и чтения потока с переподключением.
func (w *Watcher) run(ctx context.Context, gen int, subscribe func(context.Context) (*Subscription, error)) {
	for {
		if ctx.Err() != nil {
			w.setState(gen, StateUnsubscribed)
			return
		}

		sub, err := subscribe(ctx)
		if err != nil {
			w.reportError(gen, err)
			if !w.sleep(ctx) {
				w.setState(gen, StateUnsubscribed)
				return
			}
			continue
		}

		w.setState(gen, StateSubscribed)
		w.consume(ctx, gen, sub)
		sub.Close()

		if ctx.Err() != nil {
			w.setState(gen, StateUnsubscribed)
			return
		}
		w.setState(gen, StateSubscribing)
		if !w.sleep(ctx) {
			w.setState(gen, StateUnsubscribed)
			return
		}
	}
}

// consume доставляет события подписки обработчику до закрытия потока.
func (w *Watcher) consume(ctx context.Context, gen int, sub *Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				select {
				case err := <-sub.Errs:
					w.reportError(gen, err)
				default:
				}
				return
			}
			if ev.Name == "error" {
				w.reportError(gen, &APIError{Code: "STREAM_ERROR", Message: string(ev.Data)})
				return
			}
			if w.handler.OnEvent != nil && w.isCurrent(gen) {
				w.handler.OnEvent(ev)
			}
		}
	}
}

// setState меняет состояние, если поколение подписки всё ещё актуально.
func (w *Watcher) setState(gen int, state WatchState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen == gen {
		w.state = state
	}
}

// isCurrent проверяет актуальность поколения подписки.
func (w *Watcher) isCurrent(gen int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen == gen
}

// reportError доставляет ошибку обработчику для актуальной подписки.
func (w *Watcher) reportError(gen int, err error) {
	if err == nil || !w.isCurrent(gen) {
		return
	}
	w.logger.Debug("Ошибка SSE-потока", slog.String("error", err.Error()))
	if w.handler.OnError != nil {
		w.handler.OnError(err)
	}
}

// sleep ждёт интервал переподключения. Возвращает false при отмене контекста.
func (w *Watcher) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.retry)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
