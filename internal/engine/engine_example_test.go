package engine_test

import (
	"fmt"
	"time"

	"github.com/levinOo/go-telemetry-project/internal/engine"
	"github.com/levinOo/go-telemetry-project/internal/models"
	"go.uber.org/zap"
)

// Example демонстрирует полный путь измерения: приём, статистика и алертинг.
func Example() {
	eng := engine.NewEngine(zap.NewNop().Sugar(), engine.Options{})
	defer eng.Close()

	rule := models.AlertRule{
		RuleID:    "high_latency",
		Metric:    "latency_ms",
		Condition: models.ConditionGreaterThan,
		Threshold: 100,
		Duration:  time.Minute,
		Severity:  models.SeverityWarning,
		Action:    models.ActionLog,
	}
	if err := eng.AddRule(rule); err != nil {
		fmt.Println(err)
		return
	}

	eng.Ingest("latency_ms", 80, "api", nil)
	eng.Ingest("latency_ms", 120, "api", nil)

	stats := eng.Stats("latency_ms")
	fmt.Printf("count=%d avg=%.0f\n", stats.Count, stats.Avg)
	fmt.Printf("active alerts: %d\n", len(eng.ActiveAlerts()))
	// Output:
	// count=2 avg=100
	// active alerts: 1
}
