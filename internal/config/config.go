// Package config предоставляет функциональность для управления конфигурацией сервера.
// Поддерживает загрузку настроек из переменных окружения, флагов командной строки
// и JSON-файла, с приоритетом переменных окружения над флагами и флагов над файлом.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
)

// ConfigStruct описывает формат JSON-файла конфигурации.
type ConfigStruct struct {
	Addr                  string `json:"address"`
	HistoryCapacity       int    `json:"history_capacity"`
	MaintenanceIntervalMs int    `json:"maintenance_interval_ms"`
	PruneMaxAgeSec        int    `json:"prune_max_age_sec"`
	TargetLatencyMs       int    `json:"target_latency_ms"`
	SubscriberQueueSize   int    `json:"subscriber_queue_size"`
	RulesFile             string `json:"rules_file"`
	WebhookURL            string `json:"webhook_url"`
}

// Config содержит все параметры конфигурации сервера телеметрии.
// Значения загружаются из переменных окружения (указаны в тегах env)
// или из флагов командной строки, если переменные окружения не установлены.
type Config struct {
	// Addr задает адрес и порт HTTP-сервера (например, "localhost:8080").
	Addr string `env:"ADDRESS"`

	// HistoryCapacity определяет максимальное число точек истории одной метрики.
	HistoryCapacity int `env:"HISTORY_CAPACITY"`

	// MaintenanceIntervalMs задает период цикла обслуживания в миллисекундах.
	MaintenanceIntervalMs int `env:"MAINTENANCE_INTERVAL_MS"`

	// PruneMaxAgeSec задает максимальный возраст точек истории в секундах.
	PruneMaxAgeSec int `env:"PRUNE_MAX_AGE_SEC"`

	// TargetLatencyMs задает ориентир задержки приёма измерения в миллисекундах.
	TargetLatencyMs int `env:"TARGET_LATENCY_MS"`

	// SubscriberQueueSize задает ёмкость очереди одного подписчика.
	SubscriberQueueSize int `env:"SUBSCRIBER_QUEUE_SIZE"`

	// RulesFile указывает путь к YAML-файлу с правилами алертинга.
	// Пустое значение отключает загрузку правил при старте.
	RulesFile string `env:"RULES_FILE"`

	// WebhookURL содержит endpoint для действия webhook в правилах алертинга.
	// Пустое значение отключает отправку: действие webhook пропускается.
	WebhookURL string `env:"WEBHOOK_URL"`

	ConfigFilePath string `env:"CONFIG"`
}

// GetConfig загружает и возвращает конфигурацию сервера.
// Сначала обрабатываются флаги командной строки, затем переменные окружения.
// Переменные окружения имеют приоритет над флагами, флаги — над значениями из файла.
//
// Поддерживаемые флаги:
//
//	-a: адрес сервера (по умолчанию "localhost:8080")
//	-cap: ёмкость истории метрики (по умолчанию "1000")
//	-m: период обслуживания в миллисекундах (по умолчанию "100")
//	-prune: максимальный возраст точек в секундах (по умолчанию "3600")
//	-t: ориентир задержки приёма в миллисекундах (по умолчанию "10")
//	-q: ёмкость очереди подписчика (по умолчанию "64")
//	-rules: путь к файлу правил алертинга (по умолчанию "")
//	-w: URL для действия webhook (по умолчанию "")
//	-config: путь к JSON-файлу конфигурации (по умолчанию "")
//
// Соответствующие переменные окружения:
//
//	ADDRESS, HISTORY_CAPACITY, MAINTENANCE_INTERVAL_MS, PRUNE_MAX_AGE_SEC,
//	TARGET_LATENCY_MS, SUBSCRIBER_QUEUE_SIZE, RULES_FILE, WEBHOOK_URL, CONFIG
func GetConfig() (Config, error) {
	configStruct := &ConfigStruct{}

	addrFlag := flag.String("a", "localhost:8080", "HTTP server address")
	capFlag := flag.String("cap", "1000", "per-metric history capacity")
	maintFlag := flag.String("m", "100", "maintenance interval in milliseconds")
	pruneFlag := flag.String("prune", "3600", "history max age in seconds")
	targetFlag := flag.String("t", "10", "target ingest latency in milliseconds")
	queueFlag := flag.String("q", "64", "subscriber queue size")
	rulesFlag := flag.String("rules", "", "path to alert rules file")
	webhookFlag := flag.String("w", "", "webhook URL for alert actions")
	configPathFlag := flag.String("config", "", "path to config file")

	flag.Parse()

	configPath := getConfigPath(*configPathFlag, os.Getenv("CONFIG"))

	if configPath != "" {
		data, err := os.Open(configPath)
		if err != nil {
			log.Printf("Failed to open config file: %v", err)
		} else {
			defer data.Close()
			if err := json.NewDecoder(data).Decode(configStruct); err != nil {
				log.Printf("Failed to decode config file: %v", err)
			}
		}
	}

	cfg := Config{
		Addr:                  getString(os.Getenv("ADDRESS"), *addrFlag, configStruct.Addr),
		HistoryCapacity:       getInt(os.Getenv("HISTORY_CAPACITY"), *capFlag, configStruct.HistoryCapacity),
		MaintenanceIntervalMs: getInt(os.Getenv("MAINTENANCE_INTERVAL_MS"), *maintFlag, configStruct.MaintenanceIntervalMs),
		PruneMaxAgeSec:        getInt(os.Getenv("PRUNE_MAX_AGE_SEC"), *pruneFlag, configStruct.PruneMaxAgeSec),
		TargetLatencyMs:       getInt(os.Getenv("TARGET_LATENCY_MS"), *targetFlag, configStruct.TargetLatencyMs),
		SubscriberQueueSize:   getInt(os.Getenv("SUBSCRIBER_QUEUE_SIZE"), *queueFlag, configStruct.SubscriberQueueSize),
		RulesFile:             getString(os.Getenv("RULES_FILE"), *rulesFlag, configStruct.RulesFile),
		WebhookURL:            getString(os.Getenv("WEBHOOK_URL"), *webhookFlag, configStruct.WebhookURL),
		ConfigFilePath:        configPath,
	}

	return cfg, nil
}

// getString возвращает значение переменной окружения, если она установлена,
// иначе возвращает значение флага командной строки.
func getString(envValue, flagValue, configValue string) string {
	if envValue != "" {
		return envValue
	} else if flagValue != "" {
		return flagValue
	}

	return configValue
}

// getInt преобразует строковое значение переменной окружения или флага в целое число.
// Приоритет отдается переменной окружения. При ошибке преобразования возвращает 0.
func getInt(envValue, flagValue string, configValue int) int {
	if envValue != "" {
		if v, err := strconv.Atoi(envValue); err == nil {
			return v
		}
	} else if flagValue != "" {
		v, _ := strconv.Atoi(flagValue)
		return v
	}

	return configValue
}

func getConfigPath(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return envValue
}
