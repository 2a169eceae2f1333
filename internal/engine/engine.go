// Package engine собирает компоненты системы телеметрии в единый движок:
// хранилище временных рядов, алертинг, реестр подписчиков, трекер
// производительности и фоновый цикл обслуживания.
//
// Движок создаётся явно через NewEngine и передаётся всем производителям
// по ссылке; глобального состояния пакет не содержит.
package engine

import (
	"sync/atomic"
	"time"

	"github.com/levinOo/go-telemetry-project/internal/alert"
	"github.com/levinOo/go-telemetry-project/internal/hostinfo"
	"github.com/levinOo/go-telemetry-project/internal/models"
	"github.com/levinOo/go-telemetry-project/internal/subscriber"
	"github.com/levinOo/go-telemetry-project/internal/timeseries"
	"go.uber.org/zap"
)

// DefaultTargetLatency задаёт ориентир задержки приёма одного измерения.
// Превышение ориентира логируется, но не отклоняет вызов.
const DefaultTargetLatency = 10 * time.Millisecond

// Options содержит параметры создания движка.
// Нулевые значения заменяются значениями по умолчанию.
type Options struct {
	// HistoryCapacity задаёт ёмкость истории одной метрики.
	HistoryCapacity int

	// MaintenanceInterval задаёт период цикла обслуживания.
	MaintenanceInterval time.Duration

	// PruneMaxAge задаёт максимальный возраст точек истории.
	PruneMaxAge time.Duration

	// TargetLatency задаёт ориентир задержки приёма.
	TargetLatency time.Duration

	// QueueSize задаёт ёмкость очереди одного подписчика.
	QueueSize int

	// Host задаёт поставщика показателей хоста для цикла обслуживания.
	// При nil используется чтение через gopsutil.
	Host hostinfo.Provider

	// WebhookSink задаёт внешнего отправителя для действия webhook.
	WebhookSink alert.Sink

	// EmailSink задаёт внешнего отправителя для действия email.
	EmailSink alert.Sink
}

// Engine принимает измерения, ведёт истории и статистику, проверяет правила
// алертинга и раздаёт измерения подписчикам. Все методы безопасны для
// конкурентного использования.
type Engine struct {
	log   *zap.SugaredLogger
	store *timeseries.Store
	alert *alert.Engine
	hub   *subscriber.Hub
	perf  *perfTracker
	sched *Scheduler
	host  hostinfo.Provider

	target    time.Duration
	startedAt time.Time

	totalIngested atomic.Uint64
}

// NewEngine создаёт движок с указанными параметрами.
// Цикл обслуживания не запускается автоматически, см. Scheduler().Start().
func NewEngine(sugar *zap.SugaredLogger, opts Options) *Engine {
	if opts.TargetLatency <= 0 {
		opts.TargetLatency = DefaultTargetLatency
	}
	if opts.Host == nil {
		opts.Host = hostinfo.NewPSUtil()
	}

	e := &Engine{
		log:       sugar,
		store:     timeseries.NewStore(opts.HistoryCapacity),
		alert:     alert.NewEngine(sugar),
		hub:       subscriber.NewHub(sugar, opts.QueueSize),
		perf:      &perfTracker{},
		host:      opts.Host,
		target:    opts.TargetLatency,
		startedAt: time.Now(),
	}

	if opts.WebhookSink != nil {
		e.alert.SetWebhookSink(opts.WebhookSink)
	}
	if opts.EmailSink != nil {
		e.alert.SetEmailSink(opts.EmailSink)
	}

	e.sched = newScheduler(e, sugar, opts.MaintenanceInterval, opts.PruneMaxAge)

	return e
}

// Ingest принимает измерение метрики: точка добавляется в историю,
// статистика дополняется, значение проверяется правилами алертинга,
// подписчики получают копию точки. Возвращает созданную точку.
//
// Уведомление подписчиков выполняется после освобождения блокировки
// хранилища, поэтому конкурентная очистка не влияет на доставляемую копию.
func (e *Engine) Ingest(name string, value float64, source string, tags map[string]string) models.MetricPoint {
	start := time.Now()

	if source == "" {
		source = selfSource
	}

	point := e.store.Ingest(name, value, source, tags)
	e.alert.Evaluate(name, value)
	e.hub.Notify(name, point)

	e.totalIngested.Add(1)

	latency := time.Since(start)
	e.perf.Record(latency)
	if latency > e.target {
		e.log.Warnw("Ingest latency above target",
			"metric", name,
			"latency", latency,
			"target", e.target,
		)
	}

	return point
}

// Query возвращает последние maxPoints точек для каждой из запрошенных метрик.
// Пустой список names означает все известные метрики.
func (e *Engine) Query(names []string, maxPoints int) map[string][]models.MetricPoint {
	return e.store.Query(names, maxPoints)
}

// Latest возвращает самую свежую удержанную точку метрики.
func (e *Engine) Latest(name string) (models.MetricPoint, bool) {
	return e.store.Latest(name)
}

// Stats возвращает накопительную статистику метрики с момента запуска.
// Статистика не сжимается при вытеснении точек из истории.
func (e *Engine) Stats(name string) models.RollingStats {
	return e.store.Stats(name)
}

// AddRule регистрирует правило алертинга или заменяет существующее.
func (e *Engine) AddRule(rule models.AlertRule) error {
	return e.alert.RegisterRule(rule)
}

// ActiveAlerts возвращает текущий набор активных алертов.
func (e *Engine) ActiveAlerts() []models.ActiveAlert {
	return e.alert.ActiveAlerts()
}

// Subscribe регистрирует подписчика на поток измерений.
func (e *Engine) Subscribe(id string, cb subscriber.Callback) error {
	return e.hub.Subscribe(id, cb)
}

// Unsubscribe удаляет подписчика.
func (e *Engine) Unsubscribe(id string) {
	e.hub.Unsubscribe(id)
}

// Scheduler возвращает цикл обслуживания движка.
func (e *Engine) Scheduler() *Scheduler {
	return e.sched
}

// Health возвращает сводку состояния движка.
// Статус определяется так: critical при error_rate > 10% или средней задержке
// выше 1000мс; degraded при error_rate > 5% или задержке выше 500мс;
// иначе healthy.
func (e *Engine) Health() models.HealthSnapshot {
	avgMs, _, _ := e.perf.Snapshot()
	total := e.totalIngested.Load()

	failures := e.hub.Dropped() + e.alert.ActionFailures()
	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failures) / float64(total) * 100
	}

	status := models.StatusHealthy
	switch {
	case errorRate > 10 || avgMs > 1000:
		status = models.StatusCritical
	case errorRate > 5 || avgMs > 500:
		status = models.StatusDegraded
	}

	snapshot := models.HealthSnapshot{
		Status:           status,
		UptimeSeconds:    time.Since(e.startedAt).Seconds(),
		ActiveProducers:  e.store.SourcesCount(),
		TotalIngested:    total,
		AvgLatencyMs:     avgMs,
		ErrorRatePercent: errorRate,
	}

	// Показатели хоста берутся из последних самособранных точек цикла
	// обслуживания; до первого цикла они остаются нулевыми.
	if p, ok := e.store.Latest(MetricMemoryUsage); ok {
		snapshot.MemoryUsageMB = p.Value
	}
	if p, ok := e.store.Latest(MetricCPUUsage); ok {
		snapshot.CPUUsagePercent = p.Value
	}

	return snapshot
}

// Performance возвращает сводку собственной производительности движка.
func (e *Engine) Performance() models.PerformanceSnapshot {
	avgMs, maxMs, count := e.perf.Snapshot()

	return models.PerformanceSnapshot{
		AvgLatencyMs:     avgMs,
		MaxLatencyMs:     maxMs,
		TotalUpdates:     count,
		MetricsCount:     e.store.MetricsCount(),
		TotalPoints:      e.store.TotalPoints(),
		SubscribersCount: e.hub.Count(),
	}
}

// Close останавливает цикл обслуживания, отменяет таймеры алертов
// и дожидается завершения горутин доставки подписчикам.
func (e *Engine) Close() {
	e.sched.Stop()
	e.alert.Close()
	e.hub.Close()
}
