// Package subscriber реализует реестр живых подписчиков на поток измерений.
// Каждому подписчику выделяется ограниченная очередь и собственная горутина
// доставки, поэтому медленный или падающий подписчик не задерживает приём
// и не мешает остальным подписчикам.
//
// Доставка выполняется по принципу best-effort, как минимум один раз при
// свободной очереди. При переполнении очереди самое старое недоставленное
// измерение вытесняется новым (drop-oldest).
package subscriber

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/levinOo/go-telemetry-project/internal/models"
	"go.uber.org/zap"
)

// DefaultQueueSize задаёт ёмкость очереди одного подписчика по умолчанию.
const DefaultQueueSize = 64

// Callback вызывается горутиной доставки для каждого измерения.
// Паника внутри callback перехватывается и логируется, доставка продолжается.
type Callback func(name string, point models.MetricPoint)

type delivery struct {
	name  string
	point models.MetricPoint
}

type worker struct {
	id   string
	cb   Callback
	ch   chan delivery
	done chan struct{}
}

// Hub хранит реестр подписчиков и раздаёт им принятые измерения.
// Все методы безопасны для конкурентного использования.
type Hub struct {
	log       *zap.SugaredLogger
	queueSize int

	mu     sync.Mutex
	subs   map[string]*worker
	closed bool

	dropped atomic.Uint64
}

// NewHub создаёт реестр подписчиков с указанной ёмкостью очереди.
// При queueSize <= 0 используется DefaultQueueSize.
func NewHub(sugar *zap.SugaredLogger, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		log:       sugar,
		queueSize: queueSize,
		subs:      make(map[string]*worker),
	}
}

// Subscribe регистрирует подписчика с указанным идентификатором.
// Повторная подписка с тем же идентификатором заменяет существующую.
func (h *Hub) Subscribe(id string, cb Callback) error {
	if id == "" {
		return fmt.Errorf("subscribe: empty subscriber id")
	}
	if cb == nil {
		return fmt.Errorf("subscribe: nil callback for %s", id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("subscribe: hub is closed")
	}

	if old, ok := h.subs[id]; ok {
		close(old.ch)
	}

	w := &worker{
		id:   id,
		cb:   cb,
		ch:   make(chan delivery, h.queueSize),
		done: make(chan struct{}),
	}
	h.subs[id] = w

	go h.deliverLoop(w)

	h.log.Infow("Subscriber registered", "subscriber", id)
	return nil
}

// Unsubscribe удаляет подписчика. Уже поставленные в очередь измерения
// будут доставлены, после чего горутина доставки завершится.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(w.ch)

	h.log.Infow("Subscriber removed", "subscriber", id)
}

// Notify ставит измерение в очередь каждому подписчику.
// Вызов не блокируется: при заполненной очереди самое старое измерение
// вытесняется, счётчик потерь увеличивается.
func (h *Hub) Notify(name string, point models.MetricPoint) {
	d := delivery{name: name, point: point}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, w := range h.subs {
		select {
		case w.ch <- d:
			continue
		default:
		}

		// Очередь заполнена: освобождаем место, вытесняя самое старое.
		select {
		case <-w.ch:
			h.dropped.Add(1)
		default:
		}

		select {
		case w.ch <- d:
		default:
			h.dropped.Add(1)
		}
	}
}

// deliverLoop доставляет измерения одному подписчику до закрытия его очереди.
func (h *Hub) deliverLoop(w *worker) {
	defer close(w.done)

	for d := range w.ch {
		h.invoke(w, d)
	}
}

// invoke вызывает callback подписчика, перехватывая панику.
func (h *Hub) invoke(w *worker, d delivery) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorw("Subscriber callback panicked",
				"subscriber", w.id,
				"metric", d.name,
				"panic", r,
			)
		}
	}()

	w.cb(d.name, d.point)
}

// Count возвращает число зарегистрированных подписчиков.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped возвращает число вытесненных недоставленных измерений.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close удаляет всех подписчиков и дожидается завершения горутин доставки.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true

	workers := make([]*worker, 0, len(h.subs))
	for id, w := range h.subs {
		delete(h.subs, id)
		close(w.ch)
		workers = append(workers, w)
	}
	h.mu.Unlock()

	for _, w := range workers {
		<-w.done
	}
}
