package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Значения по умолчанию для цикла обслуживания.
const (
	// DefaultMaintenanceInterval задаёт период цикла обслуживания.
	DefaultMaintenanceInterval = 100 * time.Millisecond

	// DefaultPruneMaxAge задаёт максимальный возраст точек истории.
	DefaultPruneMaxAge = time.Hour

	// stopTimeout ограничивает ожидание завершения цикла при остановке.
	stopTimeout = time.Second
)

// Имена метрик, которые цикл обслуживания собирает о самом процессе.
const (
	MetricCPUUsage    = "cpu_usage_percent"
	MetricMemoryUsage = "memory_usage_mb"
)

// selfSource помечает измерения, принятые самим движком.
const selfSource = "system"

// Scheduler выполняет фоновый цикл обслуживания движка: собирает показатели
// хоста через обычный путь приёма, очищает устаревшие точки истории и ведёт
// счётчик циклов. Переходы состояний: Stopped -> Running -> Stopped.
type Scheduler struct {
	log      *zap.SugaredLogger
	engine   *Engine
	interval time.Duration
	pruneAge time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}

	cycles atomic.Uint64
}

// newScheduler создаёт цикл обслуживания для движка.
func newScheduler(e *Engine, sugar *zap.SugaredLogger, interval, pruneAge time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultMaintenanceInterval
	}
	if pruneAge <= 0 {
		pruneAge = DefaultPruneMaxAge
	}
	return &Scheduler{
		log:      sugar,
		engine:   e,
		interval: interval,
		pruneAge: pruneAge,
	}
}

// Start запускает цикл обслуживания в фоновой горутине.
// Повторный вызов при работающем цикле ничего не делает.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Debugw("Maintenance loop already running")
		return
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stopCh, s.done)

	s.log.Infow("Maintenance loop started", "interval", s.interval, "pruneAge", s.pruneAge)
}

// loop выполняет циклы обслуживания до сигнала остановки.
// Длительность цикла вычитается из периода, чтобы задержки не накапливались;
// при превышении периода следующий цикл начинается без ожидания.
func (s *Scheduler) loop(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}

		start := time.Now()
		s.cycle()
		elapsed := time.Since(start)

		next := s.interval - elapsed
		if next < 0 {
			next = 0
		}
		timer.Reset(next)
	}
}

// cycle выполняет один проход обслуживания. Любая паника внутри прохода
// перехватывается и логируется, цикл продолжает работу.
func (s *Scheduler) cycle() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Maintenance cycle panicked", "panic", r)
		}
	}()

	if cpu, err := s.engine.host.CPUPercent(); err != nil {
		s.log.Errorw("Failed to read cpu usage", "error", err)
	} else {
		s.engine.Ingest(MetricCPUUsage, cpu, selfSource, nil)
	}

	if memMB, err := s.engine.host.MemoryUsedMB(); err != nil {
		s.log.Errorw("Failed to read memory usage", "error", err)
	} else {
		s.engine.Ingest(MetricMemoryUsage, memMB, selfSource, nil)
	}

	if removed := s.engine.store.Prune(s.pruneAge); removed > 0 {
		s.log.Debugw("Pruned aged points", "removed", removed)
	}

	s.cycles.Add(1)
}

// Stop сигнализирует циклу об остановке и ждёт его завершения
// не дольше stopTimeout. По истечении таймаута цикл считается брошенным.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		s.log.Infow("Maintenance loop stopped", "cycles", s.cycles.Load())
	case <-time.After(stopTimeout):
		s.log.Warnw("Maintenance loop did not stop in time, abandoning", "timeout", stopTimeout)
	}
}

// Running сообщает, выполняется ли цикл обслуживания.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Cycles возвращает число выполненных циклов обслуживания.
func (s *Scheduler) Cycles() uint64 {
	return s.cycles.Load()
}
