// Package models содержит структуры данных, описывающие основные сущности предметной области.
// Пакет не содержит бизнес-логику и используется для передачи данных между слоями приложения.
package models

import (
	"fmt"
	"time"
)

// Константы условий срабатывания правил алертинга.
const (
	// ConditionGreaterThan срабатывает, когда значение метрики строго больше порога.
	ConditionGreaterThan = "greater_than"

	// ConditionLessThan срабатывает, когда значение метрики строго меньше порога.
	ConditionLessThan = "less_than"

	// ConditionEquals срабатывает, когда значение метрики равно порогу
	// с точностью EqualsTolerance.
	ConditionEquals = "equals"
)

// EqualsTolerance задаёт допуск сравнения для условия ConditionEquals.
const EqualsTolerance = 1e-3

// Константы уровней важности алертов.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Константы действий, выполняемых при срабатывании правила.
const (
	// ActionLog записывает предупреждение в журнал сервера.
	ActionLog = "log"

	// ActionWebhook отправляет алерт на внешний HTTP endpoint.
	ActionWebhook = "webhook"

	// ActionEmail передаёт алерт внешнему почтовому отправителю.
	ActionEmail = "email"
)

// MetricPoint представляет отдельное измерение метрики.
// Создаётся при приёме значения и после этого не изменяется.
type MetricPoint struct {
	// Timestamp содержит момент приёма измерения.
	Timestamp time.Time `json:"timestamp"`

	// Value содержит численное значение измерения.
	Value float64 `json:"value"`

	// Name содержит уникальное имя метрики.
	Name string `json:"metric_name"`

	// Source идентифицирует производителя измерения (например, "system").
	Source string `json:"source"`

	// Tags содержит произвольные пары ключ-значение, привязанные к измерению.
	Tags map[string]string `json:"tags,omitempty"`
}

// RollingStats содержит накопительную статистику метрики с момента запуска процесса.
// Статистика складывается по каждому принятому измерению и никогда не уменьшается,
// независимо от того, сколько сырых точек осталось в истории после вытеснения.
type RollingStats struct {
	// Count содержит общее число принятых измерений метрики.
	Count uint64 `json:"count"`

	// Sum содержит сумму всех принятых значений.
	Sum float64 `json:"sum"`

	// Min содержит минимальное значение за всё время.
	Min float64 `json:"min"`

	// Max содержит максимальное значение за всё время.
	Max float64 `json:"max"`

	// Avg содержит среднее значение, всегда равное Sum/Count.
	Avg float64 `json:"avg"`
}

// AlertRule описывает пороговое правило алертинга для одной метрики.
// Правило живёт до конца работы процесса, повторная регистрация
// с тем же RuleID заменяет существующее правило.
type AlertRule struct {
	// RuleID содержит уникальный идентификатор правила.
	RuleID string `json:"rule_id"`

	// Metric содержит имя метрики, к которой применяется правило.
	Metric string `json:"metric_name"`

	// Condition определяет условие сравнения: greater_than, less_than или equals.
	Condition string `json:"condition"`

	// Threshold содержит пороговое значение.
	Threshold float64 `json:"threshold"`

	// Duration определяет время жизни активного алерта до автоснятия.
	Duration time.Duration `json:"duration"`

	// Severity определяет уровень важности: info, warning или critical.
	Severity string `json:"severity"`

	// Action определяет действие при срабатывании: log, webhook или email.
	Action string `json:"action"`
}

// Validate проверяет корректность полей правила.
// Возвращает ошибку валидации при неизвестном условии, уровне важности
// или действии, а также при неположительной длительности.
func (r AlertRule) Validate() error {
	if r.RuleID == "" {
		return fmt.Errorf("alert rule: empty rule_id")
	}
	if r.Metric == "" {
		return fmt.Errorf("alert rule %s: empty metric_name", r.RuleID)
	}

	switch r.Condition {
	case ConditionGreaterThan, ConditionLessThan, ConditionEquals:
	default:
		return fmt.Errorf("alert rule %s: unknown condition %q", r.RuleID, r.Condition)
	}

	switch r.Severity {
	case SeverityInfo, SeverityWarning, SeverityCritical:
	default:
		return fmt.Errorf("alert rule %s: unknown severity %q", r.RuleID, r.Severity)
	}

	switch r.Action {
	case ActionLog, ActionWebhook, ActionEmail:
	default:
		return fmt.Errorf("alert rule %s: unknown action %q", r.RuleID, r.Action)
	}

	if r.Duration <= 0 {
		return fmt.Errorf("alert rule %s: non-positive duration %v", r.RuleID, r.Duration)
	}

	return nil
}

// Matches проверяет, выполняется ли условие правила для переданного значения.
func (r AlertRule) Matches(value float64) bool {
	switch r.Condition {
	case ConditionGreaterThan:
		return value > r.Threshold
	case ConditionLessThan:
		return value < r.Threshold
	case ConditionEquals:
		diff := value - r.Threshold
		if diff < 0 {
			diff = -diff
		}
		return diff < EqualsTolerance
	default:
		return false
	}
}

// ActiveAlert представляет сработавшее правило, ожидающее автоснятия.
// Идентификатор складывается из RuleID и секунды срабатывания, поэтому
// повторные срабатывания в пределах одной секунды схлопываются в один алерт.
type ActiveAlert struct {
	// AlertID содержит идентификатор вида "<rule_id>_<unix-секунда>".
	AlertID string `json:"alert_id"`

	// RuleID содержит идентификатор сработавшего правила.
	RuleID string `json:"rule_id"`

	// Metric содержит имя метрики, вызвавшей срабатывание.
	Metric string `json:"metric_name"`

	// CurrentValue содержит значение, вызвавшее срабатывание.
	CurrentValue float64 `json:"current_value"`

	// Threshold содержит порог правила на момент срабатывания.
	Threshold float64 `json:"threshold"`

	// Severity содержит уровень важности правила.
	Severity string `json:"severity"`

	// TriggeredAt содержит момент срабатывания.
	TriggeredAt time.Time `json:"triggered_at"`

	// Message содержит человекочитаемое описание срабатывания.
	Message string `json:"message"`
}

// Статусы системы, возвращаемые Health API.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusCritical = "critical"
)

// HealthSnapshot содержит сводку состояния движка для Health API.
type HealthSnapshot struct {
	Status           string  `json:"status"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	ActiveProducers  int     `json:"active_producers"`
	TotalIngested    uint64  `json:"total_ingested"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	ErrorRatePercent float64 `json:"error_rate_percent"`
	MemoryUsageMB    float64 `json:"memory_usage_mb"`
	CPUUsagePercent  float64 `json:"cpu_usage_percent"`
}

// PerformanceSnapshot содержит сводку собственной производительности движка.
type PerformanceSnapshot struct {
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	MaxLatencyMs     float64 `json:"max_latency_ms"`
	TotalUpdates     uint64  `json:"total_updates"`
	MetricsCount     int     `json:"metrics_count"`
	TotalPoints      int     `json:"total_points"`
	SubscribersCount int     `json:"subscribers_count"`
}
