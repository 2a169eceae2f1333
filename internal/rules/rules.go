// Package rules загружает правила алертинга из YAML-файла.
// Файл описывает список правил, регистрируемых при старте сервера:
//
//	rules:
//	  - rule_id: high_cpu
//	    metric: cpu_usage_percent
//	    condition: greater_than
//	    threshold: 90
//	    duration: 5m
//	    severity: critical
//	    action: log
package rules

import (
	"fmt"
	"os"
	"time"

	"github.com/levinOo/go-telemetry-project/internal/models"
	"gopkg.in/yaml.v3"
)

// ruleSpec описывает одно правило в файле.
// Duration задаётся строкой в формате time.ParseDuration ("30s", "5m", "1h").
type ruleSpec struct {
	RuleID    string  `yaml:"rule_id"`
	Metric    string  `yaml:"metric"`
	Condition string  `yaml:"condition"`
	Threshold float64 `yaml:"threshold"`
	Duration  string  `yaml:"duration"`
	Severity  string  `yaml:"severity"`
	Action    string  `yaml:"action"`
}

type rulesFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

// Load читает и валидирует правила алертинга из указанного файла.
// Возвращает ошибку, если файл недоступен, не разбирается
// или содержит некорректное правило.
func Load(path string) ([]models.AlertRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file %s: %w", path, err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	result := make([]models.AlertRule, 0, len(file.Rules))
	for i, spec := range file.Rules {
		duration, err := time.ParseDuration(spec.Duration)
		if err != nil {
			return nil, fmt.Errorf("rules file %s: rule %d: invalid duration %q: %w", path, i, spec.Duration, err)
		}

		rule := models.AlertRule{
			RuleID:    spec.RuleID,
			Metric:    spec.Metric,
			Condition: spec.Condition,
			Threshold: spec.Threshold,
			Duration:  duration,
			Severity:  spec.Severity,
			Action:    spec.Action,
		}

		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rules file %s: rule %d: %w", path, i, err)
		}

		result = append(result, rule)
	}

	return result, nil
}
