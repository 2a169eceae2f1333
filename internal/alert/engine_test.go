package alert

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/levinOo/go-telemetry-project/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine() *Engine {
	return NewEngine(zap.NewNop().Sugar())
}

func testRule(id string) models.AlertRule {
	return models.AlertRule{
		RuleID:    id,
		Metric:    "cpu_usage_percent",
		Condition: models.ConditionGreaterThan,
		Threshold: 90,
		Duration:  time.Minute,
		Severity:  models.SeverityCritical,
		Action:    models.ActionLog,
	}
}

func TestRegisterRuleValidation(t *testing.T) {
	e := newTestEngine()

	tests := []struct {
		name   string
		mutate func(*models.AlertRule)
	}{
		{"unknown condition", func(r *models.AlertRule) { r.Condition = "above" }},
		{"unknown severity", func(r *models.AlertRule) { r.Severity = "fatal" }},
		{"unknown action", func(r *models.AlertRule) { r.Action = "sms" }},
		{"empty rule id", func(r *models.AlertRule) { r.RuleID = "" }},
		{"empty metric", func(r *models.AlertRule) { r.Metric = "" }},
		{"zero duration", func(r *models.AlertRule) { r.Duration = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := testRule("bad")
			tt.mutate(&rule)
			assert.Error(t, e.RegisterRule(rule))
		})
	}

	assert.Equal(t, 0, e.RulesCount())
	require.NoError(t, e.RegisterRule(testRule("ok")))
	assert.Equal(t, 1, e.RulesCount())
}

func TestEvaluateGreaterThan(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.RegisterRule(testRule("high_cpu")))

	fired := e.Evaluate("cpu_usage_percent", 95)
	require.Len(t, fired, 1)
	assert.Equal(t, "high_cpu", fired[0].RuleID)
	assert.Equal(t, 95.0, fired[0].CurrentValue)
	assert.Equal(t, 90.0, fired[0].Threshold)
	assert.Equal(t, models.SeverityCritical, fired[0].Severity)

	assert.Len(t, e.ActiveAlerts(), 1)
}

func TestEvaluateNoMatch(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.RegisterRule(testRule("high_cpu")))

	assert.Empty(t, e.Evaluate("cpu_usage_percent", 90))
	assert.Empty(t, e.Evaluate("cpu_usage_percent", 12))
	assert.Empty(t, e.Evaluate("memory_usage_mb", 100500))
	assert.Empty(t, e.ActiveAlerts())
}

func TestEvaluateLessThan(t *testing.T) {
	e := newTestEngine()
	rule := testRule("low_disk")
	rule.Metric = "disk_free_gb"
	rule.Condition = models.ConditionLessThan
	rule.Threshold = 5
	require.NoError(t, e.RegisterRule(rule))

	assert.Len(t, e.Evaluate("disk_free_gb", 2), 1)
	assert.Empty(t, e.Evaluate("disk_free_gb", 5))
}

func TestEvaluateEqualsTolerance(t *testing.T) {
	e := newTestEngine()
	rule := testRule("exact")
	rule.Metric = "workers"
	rule.Condition = models.ConditionEquals
	rule.Threshold = 10
	require.NoError(t, e.RegisterRule(rule))

	assert.Len(t, e.Evaluate("workers", 10.0005), 1)
	assert.Empty(t, e.Evaluate("workers", 10.01))
}

func TestEvaluateSameSecondCollapses(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.RegisterRule(testRule("high_cpu")))

	first := e.Evaluate("cpu_usage_percent", 95)
	require.Len(t, first, 1)

	// Повторное срабатывание сразу же: та же секунда, тот же alert id.
	second := e.Evaluate("cpu_usage_percent", 97)
	if len(second) == 0 {
		active := e.ActiveAlerts()
		require.Len(t, active, 1)
		assert.Equal(t, 97.0, active[0].CurrentValue)
	}
}

func TestAlertAutoResolution(t *testing.T) {
	e := newTestEngine()
	rule := testRule("short")
	rule.Duration = 100 * time.Millisecond
	require.NoError(t, e.RegisterRule(rule))

	e.Evaluate("cpu_usage_percent", 95)
	require.Len(t, e.ActiveAlerts(), 1)

	time.Sleep(30 * time.Millisecond)
	assert.Len(t, e.ActiveAlerts(), 1, "alert resolved too early")

	time.Sleep(220 * time.Millisecond)
	assert.Empty(t, e.ActiveAlerts(), "alert not resolved after duration")
}

func TestRegisterRuleReplaceCancelsAlerts(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.RegisterRule(testRule("high_cpu")))

	e.Evaluate("cpu_usage_percent", 95)
	require.Len(t, e.ActiveAlerts(), 1)

	replacement := testRule("high_cpu")
	replacement.Threshold = 99
	require.NoError(t, e.RegisterRule(replacement))

	assert.Empty(t, e.ActiveAlerts(), "replacing a rule must cancel its pending alerts")
	assert.Equal(t, 1, e.RulesCount())
}

type recordingSink struct {
	mu        sync.Mutex
	delivered []models.ActiveAlert
	err       error
}

func (s *recordingSink) Deliver(a models.ActiveAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, a)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func TestWebhookActionDelivers(t *testing.T) {
	e := newTestEngine()
	sink := &recordingSink{}
	e.SetWebhookSink(sink)

	rule := testRule("hook")
	rule.Action = models.ActionWebhook
	require.NoError(t, e.RegisterRule(rule))

	e.Evaluate("cpu_usage_percent", 95)
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, uint64(0), e.ActionFailures())
}

func TestWebhookFailureDoesNotAffectAlert(t *testing.T) {
	e := newTestEngine()
	sink := &recordingSink{err: errors.New("endpoint down")}
	e.SetWebhookSink(sink)

	rule := testRule("hook")
	rule.Action = models.ActionWebhook
	require.NoError(t, e.RegisterRule(rule))

	fired := e.Evaluate("cpu_usage_percent", 95)
	require.Len(t, fired, 1)

	// Сбой доставки не снимает алерт и учитывается в счётчике ошибок.
	assert.Len(t, e.ActiveAlerts(), 1)
	assert.Equal(t, uint64(1), e.ActionFailures())
}

func TestWebhookActionWithoutSinkIsNoop(t *testing.T) {
	e := newTestEngine()

	rule := testRule("hook")
	rule.Action = models.ActionWebhook
	require.NoError(t, e.RegisterRule(rule))

	fired := e.Evaluate("cpu_usage_percent", 95)
	require.Len(t, fired, 1)
	assert.Equal(t, uint64(0), e.ActionFailures())
}

func TestCloseCancelsTimers(t *testing.T) {
	e := newTestEngine()
	rule := testRule("short")
	rule.Duration = 50 * time.Millisecond
	require.NoError(t, e.RegisterRule(rule))

	e.Evaluate("cpu_usage_percent", 95)
	e.Close()

	assert.Empty(t, e.ActiveAlerts())
}
