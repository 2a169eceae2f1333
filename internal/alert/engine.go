// Package alert реализует движок порогового алертинга.
// Движок хранит реестр правил, проверяет каждое принятое измерение,
// ведёт набор активных алертов и автоматически снимает их по истечении
// длительности правила.
package alert

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/levinOo/go-telemetry-project/internal/models"
	"go.uber.org/zap"
)

// Engine проверяет измерения по зарегистрированным правилам.
// Все методы безопасны для конкурентного использования.
type Engine struct {
	log *zap.SugaredLogger

	mu     sync.Mutex
	rules  map[string]models.AlertRule
	active map[string]models.ActiveAlert

	// timers хранит отменяемый таймер автоснятия для каждого активного алерта,
	// чтобы замена правила или остановка движка отменяли снятие детерминированно.
	timers map[string]*time.Timer

	webhook Sink
	email   Sink

	actionFailures atomic.Uint64
}

// NewEngine создаёт движок алертинга без внешних отправителей:
// действия webhook и email в этом случае не выполняются.
func NewEngine(sugar *zap.SugaredLogger) *Engine {
	return &Engine{
		log:    sugar,
		rules:  make(map[string]models.AlertRule),
		active: make(map[string]models.ActiveAlert),
		timers: make(map[string]*time.Timer),
	}
}

// SetWebhookSink подключает внешнего отправителя для действия webhook.
func (e *Engine) SetWebhookSink(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.webhook = s
}

// SetEmailSink подключает внешнего отправителя для действия email.
func (e *Engine) SetEmailSink(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.email = s
}

// RegisterRule регистрирует правило или заменяет существующее с тем же RuleID.
// Некорректное правило отклоняется с ошибкой валидации.
// При замене правила ожидающие автоснятия алерты старой версии снимаются сразу.
func (e *Engine) RegisterRule(rule models.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("register rule: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[rule.RuleID]; exists {
		e.cancelRuleAlertsLocked(rule.RuleID)
		e.log.Infow("Alert rule replaced", "rule", rule.RuleID, "metric", rule.Metric)
	} else {
		e.log.Infow("Alert rule registered",
			"rule", rule.RuleID,
			"metric", rule.Metric,
			"condition", rule.Condition,
			"threshold", rule.Threshold,
			"severity", rule.Severity,
		)
	}

	e.rules[rule.RuleID] = rule
	return nil
}

// cancelRuleAlertsLocked снимает все активные алерты правила и отменяет их таймеры.
// Вызывается под e.mu.
func (e *Engine) cancelRuleAlertsLocked(ruleID string) {
	for id, a := range e.active {
		if a.RuleID != ruleID {
			continue
		}
		if timer, ok := e.timers[id]; ok {
			timer.Stop()
			delete(e.timers, id)
		}
		delete(e.active, id)
	}
}

// Evaluate проверяет значение метрики по всем правилам с совпадающим именем.
// Для каждого совпавшего правила создаётся активный алерт; повторное
// срабатывание в пределах той же секунды обновляет существующий алерт
// вместо создания нового. Возвращает вновь созданные алерты.
//
// Ошибки действий не распространяются на вызывающего: сбой отправки
// логируется, жизненным циклом алерта управляет только его таймер.
func (e *Engine) Evaluate(name string, value float64) []models.ActiveAlert {
	now := time.Now()

	e.mu.Lock()

	var fired []models.ActiveAlert
	for _, rule := range e.rules {
		if rule.Metric != name || !rule.Matches(value) {
			continue
		}

		alertID := fmt.Sprintf("%s_%d", rule.RuleID, now.Unix())

		if existing, ok := e.active[alertID]; ok {
			existing.CurrentValue = value
			e.active[alertID] = existing
			continue
		}

		a := models.ActiveAlert{
			AlertID:      alertID,
			RuleID:       rule.RuleID,
			Metric:       name,
			CurrentValue: value,
			Threshold:    rule.Threshold,
			Severity:     rule.Severity,
			TriggeredAt:  now,
			Message: fmt.Sprintf("metric %s is %s %g (current value %g)",
				name, rule.Condition, rule.Threshold, value),
		}

		e.active[alertID] = a
		e.timers[alertID] = time.AfterFunc(rule.Duration, func() {
			e.resolve(alertID)
		})

		fired = append(fired, a)
	}

	actions := make([]pendingAction, 0, len(fired))
	for _, a := range fired {
		rule := e.rules[a.RuleID]
		var sink Sink
		switch rule.Action {
		case models.ActionWebhook:
			sink = e.webhook
		case models.ActionEmail:
			sink = e.email
		}
		actions = append(actions, pendingAction{alert: a, action: rule.Action, sink: sink})
	}

	e.mu.Unlock()

	// Действия выполняются без удержания блокировки, чтобы не тормозить приём.
	for _, p := range actions {
		e.dispatch(p)
	}

	return fired
}

type pendingAction struct {
	alert  models.ActiveAlert
	action string
	sink   Sink
}

func (e *Engine) dispatch(p pendingAction) {
	defer func() {
		if r := recover(); r != nil {
			e.actionFailures.Add(1)
			e.log.Errorw("Alert action panicked", "alert", p.alert.AlertID, "action", p.action, "panic", r)
		}
	}()

	switch p.action {
	case models.ActionLog:
		e.log.Warnw("Alert triggered",
			"alert", p.alert.AlertID,
			"metric", p.alert.Metric,
			"value", p.alert.CurrentValue,
			"threshold", p.alert.Threshold,
			"severity", p.alert.Severity,
		)
	case models.ActionWebhook, models.ActionEmail:
		if p.sink == nil {
			return
		}
		if err := p.sink.Deliver(p.alert); err != nil {
			e.actionFailures.Add(1)
			e.log.Errorw("Alert action failed", "alert", p.alert.AlertID, "action", p.action, "error", err)
		}
	}
}

// resolve снимает алерт по истечении длительности его правила.
func (e *Engine) resolve(alertID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.active[alertID]; !ok {
		return
	}
	delete(e.active, alertID)
	delete(e.timers, alertID)
	e.log.Infow("Alert auto-resolved", "alert", alertID)
}

// ActiveAlerts возвращает копию текущего набора активных алертов.
func (e *Engine) ActiveAlerts() []models.ActiveAlert {
	e.mu.Lock()
	defer e.mu.Unlock()

	alerts := make([]models.ActiveAlert, 0, len(e.active))
	for _, a := range e.active {
		alerts = append(alerts, a)
	}
	return alerts
}

// RulesCount возвращает число зарегистрированных правил.
func (e *Engine) RulesCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rules)
}

// ActionFailures возвращает число неудачных выполнений действий с момента запуска.
func (e *Engine) ActionFailures() uint64 {
	return e.actionFailures.Load()
}

// Close отменяет таймеры автоснятия всех активных алертов.
// После Close движок можно использовать только для чтения.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
	}
	for id := range e.active {
		delete(e.active, id)
	}
}
