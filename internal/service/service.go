// Package service предоставляет основной функционал сервера телеметрии.
// Пакет управляет жизненным циклом HTTP-сервера, движка телеметрии,
// цикла обслуживания и корректным завершением работы по системным сигналам.
package service

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/levinOo/go-telemetry-project/internal/alert"
	"github.com/levinOo/go-telemetry-project/internal/config"
	"github.com/levinOo/go-telemetry-project/internal/engine"
	"github.com/levinOo/go-telemetry-project/internal/handler"
	"github.com/levinOo/go-telemetry-project/internal/logger"
	"github.com/levinOo/go-telemetry-project/internal/rules"
	"go.uber.org/zap"
)

// ServerComponents содержит все компоненты, необходимые для работы сервера телеметрии.
// Включает HTTP-сервер, движок телеметрии и логгер.
type ServerComponents struct {
	server *http.Server
	engine *engine.Engine
	logger *zap.SugaredLogger
}

// Serve инициализирует и запускает сервер телеметрии с указанной конфигурацией.
// Настраивает движок, загружает правила алертинга из файла, запускает цикл
// обслуживания, включает профилирование pprof и обрабатывает корректное
// завершение работы по SIGINT/SIGTERM.
//
// Возвращает ошибку, если запуск или завершение сервера завершились неудачей.
func Serve(cfg config.Config) error {
	sugar := logger.NewLogger()

	components, err := setupServer(cfg, sugar)
	if err != nil {
		return err
	}

	return runServerWithGracefulShutdown(components, cfg)
}

func setupServer(cfg config.Config, sugar *zap.SugaredLogger) (*ServerComponents, error) {
	sugar.Infow("Starting server with config",
		"address", cfg.Addr,
		"historyCapacity", cfg.HistoryCapacity,
		"maintenanceIntervalMs", cfg.MaintenanceIntervalMs,
		"pruneMaxAgeSec", cfg.PruneMaxAgeSec,
		"targetLatencyMs", cfg.TargetLatencyMs,
		"queueSize", cfg.SubscriberQueueSize,
		"rulesFile", cfg.RulesFile,
		"webhookURL", cfg.WebhookURL,
	)

	opts := engine.Options{
		HistoryCapacity:     cfg.HistoryCapacity,
		MaintenanceInterval: time.Duration(cfg.MaintenanceIntervalMs) * time.Millisecond,
		PruneMaxAge:         time.Duration(cfg.PruneMaxAgeSec) * time.Second,
		TargetLatency:       time.Duration(cfg.TargetLatencyMs) * time.Millisecond,
		QueueSize:           cfg.SubscriberQueueSize,
	}

	if cfg.WebhookURL != "" {
		opts.WebhookSink = alert.NewWebhookSink(cfg.WebhookURL)
	}

	eng := engine.NewEngine(sugar, opts)

	if err := loadRules(eng, cfg.RulesFile, sugar); err != nil {
		eng.Close()
		return nil, err
	}

	eng.Scheduler().Start()

	router := handler.NewRouter(eng, sugar)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	return &ServerComponents{
		server: srv,
		engine: eng,
		logger: sugar,
	}, nil
}

func loadRules(eng *engine.Engine, path string, sugar *zap.SugaredLogger) error {
	if path == "" {
		sugar.Infow("No rules file configured, starting without alert rules")
		return nil
	}

	loaded, err := rules.Load(path)
	if err != nil {
		return fmt.Errorf("load rules from %s: %w", path, err)
	}

	for _, rule := range loaded {
		if err := eng.AddRule(rule); err != nil {
			return fmt.Errorf("register rule %s: %w", rule.RuleID, err)
		}
	}

	sugar.Infow("Alert rules loaded", "file", path, "count", len(loaded))
	return nil
}

func runServerWithGracefulShutdown(components *ServerComponents, cfg config.Config) error {
	server := components.server
	sugar := components.logger

	go func() {
		pprofAddr := "localhost:6060"
		sugar.Infow("pprof server started", "address", pprofAddr)
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			sugar.Errorw("pprof server error", "error", err)
		}
	}()

	serverErr := make(chan error, 1)

	go func() {
		sugar.Infow("HTTP server started", "address", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			sugar.Errorw("Server error", "error", err)
			components.engine.Close()
			return fmt.Errorf("server error: %w", err)
		}
	case <-quit:
		sugar.Infoln("Shutting down server...")
	}

	return gracefulShutdown(components)
}

func gracefulShutdown(components *ServerComponents) error {
	sugar := components.logger

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := components.server.Shutdown(ctx); err != nil {
		sugar.Errorw("Server shutdown error", "error", err)
	}

	components.engine.Close()

	sugar.Infoln("Engine stopped and server shut down gracefully")
	return nil
}
