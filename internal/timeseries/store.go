// Package timeseries реализует хранилище временных рядов в памяти.
// Для каждой метрики хранится ограниченная кольцевым буфером история точек
// и накопительная статистика, независимая от вытеснения точек.
//
// Статистика считается по всем принятым измерениям с момента запуска процесса,
// тогда как Query возвращает только удержанный срез истории. Это сделано
// намеренно для отслеживания долгосрочных трендов: min/max/avg отражают всё
// время работы, даже когда сырые точки уже вытеснены по ёмкости или возрасту.
package timeseries

import (
	"sync"
	"time"

	"github.com/levinOo/go-telemetry-project/internal/models"
)

// DefaultCapacity задаёт ёмкость истории одной метрики по умолчанию.
const DefaultCapacity = 1000

// Store хранит истории и статистику всех известных метрик.
// Все методы безопасны для конкурентного использования.
type Store struct {
	mu       sync.Mutex
	capacity int
	series   map[string]*series
	stats    map[string]models.RollingStats
	sources  map[string]struct{}
}

// series хранит точки одной метрики в кольцевом буфере.
// head указывает на самую старую точку, точки лежат по возрастанию времени.
type series struct {
	points []models.MetricPoint
	head   int
	size   int
}

func (s *series) append(capacity int, p models.MetricPoint) {
	n := len(s.points)
	switch {
	case s.size < n:
		// После очистки по возрасту в буфере есть свободные слоты.
		s.points[(s.head+s.size)%n] = p
		s.size++
	case n < capacity:
		if s.head != 0 {
			s.normalize()
		}
		s.points = append(s.points, p)
		s.size++
	default:
		// Буфер полон: новая точка занимает место самой старой.
		s.points[s.head] = p
		s.head = (s.head + 1) % n
	}
}

// normalize переносит точки к началу буфера, сохраняя порядок по времени.
func (s *series) normalize() {
	ordered := make([]models.MetricPoint, s.size, cap(s.points))
	for i := 0; i < s.size; i++ {
		ordered[i] = s.at(i)
	}
	s.points = ordered
	s.head = 0
}

// at возвращает i-ю точку от самой старой.
func (s *series) at(i int) models.MetricPoint {
	return s.points[(s.head+i)%len(s.points)]
}

// NewStore создаёт хранилище с указанной ёмкостью истории на метрику.
// При capacity <= 0 используется DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		series:   make(map[string]*series),
		stats:    make(map[string]models.RollingStats),
		sources:  make(map[string]struct{}),
	}
}

// Ingest принимает измерение метрики и возвращает созданную точку.
// Операция всегда успешна: точка добавляется в историю (при переполнении
// самая старая точка молча вытесняется), статистика дополняется новым значением.
// Карта тегов копируется, чтобы точка оставалась неизменяемой.
func (st *Store) Ingest(name string, value float64, source string, tags map[string]string) models.MetricPoint {
	return st.ingestAt(time.Now(), name, value, source, tags)
}

func (st *Store) ingestAt(ts time.Time, name string, value float64, source string, tags map[string]string) models.MetricPoint {
	point := models.MetricPoint{
		Timestamp: ts,
		Value:     value,
		Name:      name,
		Source:    source,
	}
	if len(tags) > 0 {
		point.Tags = make(map[string]string, len(tags))
		for k, v := range tags {
			point.Tags[k] = v
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	ser, ok := st.series[name]
	if !ok {
		ser = &series{points: make([]models.MetricPoint, 0, st.capacity)}
		st.series[name] = ser
	}
	ser.append(st.capacity, point)

	stats := st.stats[name]
	stats.Count++
	stats.Sum += value
	if stats.Count == 1 || value < stats.Min {
		stats.Min = value
	}
	if stats.Count == 1 || value > stats.Max {
		stats.Max = value
	}
	stats.Avg = stats.Sum / float64(stats.Count)
	st.stats[name] = stats

	st.sources[source] = struct{}{}

	return point
}

// Query возвращает последние maxPoints точек для каждой из запрошенных метрик.
// Пустой список names означает все известные метрики. Точки возвращаются
// по возрастанию времени, самая свежая — последней. Результат является
// копией истории и не меняется при последующих приёмах или очистке.
func (st *Store) Query(names []string, maxPoints int) map[string][]models.MetricPoint {
	st.mu.Lock()
	defer st.mu.Unlock()

	if len(names) == 0 {
		names = make([]string, 0, len(st.series))
		for name := range st.series {
			names = append(names, name)
		}
	}

	result := make(map[string][]models.MetricPoint, len(names))
	for _, name := range names {
		ser, ok := st.series[name]
		if !ok {
			continue
		}

		n := ser.size
		if maxPoints > 0 && n > maxPoints {
			n = maxPoints
		}

		points := make([]models.MetricPoint, 0, n)
		for i := ser.size - n; i < ser.size; i++ {
			points = append(points, ser.at(i))
		}
		result[name] = points
	}

	return result
}

// Latest возвращает самую свежую удержанную точку метрики.
// Второе значение равно false, если метрика неизвестна или её история пуста.
func (st *Store) Latest(name string) (models.MetricPoint, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	ser, ok := st.series[name]
	if !ok || ser.size == 0 {
		return models.MetricPoint{}, false
	}
	return ser.at(ser.size - 1), true
}

// Stats возвращает накопительную статистику метрики.
// Для неизвестной метрики возвращается нулевая статистика.
func (st *Store) Stats(name string) models.RollingStats {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.stats[name]
}

// Prune удаляет из историй точки старше maxAge и возвращает число удалённых.
// Накопительная статистика при этом не изменяется.
func (st *Store) Prune(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for _, ser := range st.series {
		// Точки упорядочены по времени, достаточно сдвинуть начало буфера.
		for ser.size > 0 && ser.at(0).Timestamp.Before(cutoff) {
			ser.head = (ser.head + 1) % len(ser.points)
			ser.size--
			removed++
		}
		if ser.size == 0 {
			ser.head = 0
			ser.points = ser.points[:0]
		}
	}

	return removed
}

// MetricsCount возвращает число известных метрик.
func (st *Store) MetricsCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.series)
}

// TotalPoints возвращает суммарное число удержанных точек по всем метрикам.
func (st *Store) TotalPoints() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	total := 0
	for _, ser := range st.series {
		total += ser.size
	}
	return total
}

// SourcesCount возвращает число различных источников, приславших измерения.
func (st *Store) SourcesCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sources)
}
