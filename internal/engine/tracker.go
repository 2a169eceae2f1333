package engine

import (
	"sync"
	"time"
)

// emaWeight задаёт вес нового измерения в экспоненциальном скользящем среднем.
const emaWeight = 0.1

// perfTracker отслеживает собственную задержку приёма измерений:
// экспоненциальное скользящее среднее и максимум за всё время.
type perfTracker struct {
	mu    sync.Mutex
	avg   float64 // миллисекунды
	max   float64
	count uint64
}

// Record дополняет статистику новой задержкой.
func (t *perfTracker) Record(latency time.Duration) {
	ms := float64(latency) / float64(time.Millisecond)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.avg = t.avg*(1-emaWeight) + ms*emaWeight
	if ms > t.max {
		t.max = ms
	}
	t.count++
}

// Snapshot возвращает текущие среднюю и максимальную задержки в миллисекундах
// и общее число измерений.
func (t *perfTracker) Snapshot() (avg, max float64, count uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.avg, t.max, t.count
}
