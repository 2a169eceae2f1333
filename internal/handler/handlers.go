// Package handler реализует HTTP-фасад движка телеметрии.
// Фасад переводит входящие запросы в вызовы движка и упаковывает
// результаты в конверт ответа с полем статуса и версией интерфейса.
package handler

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/levinOo/go-telemetry-project/internal/engine"
	"github.com/levinOo/go-telemetry-project/internal/logger"
	"github.com/levinOo/go-telemetry-project/internal/models"
	"go.uber.org/zap"
)

// InterfaceVersion содержит версию интерфейса фасада, возвращаемую в каждом ответе.
const InterfaceVersion = "1.0"

// envelope упаковывает результат вызова движка в конверт ответа.
type envelope struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ingestRequest описывает тело запроса приёма одного измерения.
type ingestRequest struct {
	Name   string            `json:"metric_name"`
	Value  float64           `json:"value"`
	Source string            `json:"source"`
	Tags   map[string]string `json:"tags"`
}

// queryRequest описывает тело запроса выборки истории.
type queryRequest struct {
	Metrics   []string `json:"metrics"`
	MaxPoints int      `json:"max_points"`
}

// ruleRequest описывает тело запроса регистрации правила алертинга.
// Duration задаётся строкой в формате time.ParseDuration.
type ruleRequest struct {
	RuleID    string  `json:"rule_id"`
	Metric    string  `json:"metric_name"`
	Condition string  `json:"condition"`
	Threshold float64 `json:"threshold"`
	Duration  string  `json:"duration"`
	Severity  string  `json:"severity"`
	Action    string  `json:"action"`
}

// NewRouter создаёт маршрутизатор HTTP-фасада.
func NewRouter(eng *engine.Engine, sugar *zap.SugaredLogger) *chi.Mux {
	r := chi.NewRouter()

	r.Post("/update", LoggerFuncServer(DecompressMiddleware(UpdateHandler(eng)), sugar))
	r.Post("/updates", LoggerFuncServer(DecompressMiddleware(UpdatesHandler(eng)), sugar))
	r.Post("/query", LoggerFuncServer(DecompressMiddleware(QueryHandler(eng)), sugar))

	r.Get("/value/{metric}", LoggerFuncServer(ValueHandler(eng), sugar))
	r.Get("/stats/{metric}", LoggerFuncServer(StatsHandler(eng), sugar))
	r.Get("/health", LoggerFuncServer(HealthHandler(eng), sugar))
	r.Get("/performance", LoggerFuncServer(PerformanceHandler(eng), sugar))

	r.Route("/alerts", func(r chi.Router) {
		r.Post("/rules", LoggerFuncServer(DecompressMiddleware(AddRuleHandler(eng)), sugar))
		r.Get("/active", LoggerFuncServer(ActiveAlertsHandler(eng), sugar))
	})

	// Маршрут не оборачивается в LoggerFuncServer: обёртка ответа не
	// поддерживает http.Hijacker, необходимый для апгрейда соединения.
	r.Get("/subscribe/ws", SubscribeWSHandler(eng, sugar))

	return r
}

// LoggerFuncServer логирует метод, путь, длительность, статус и размер ответа.
func LoggerFuncServer(h http.Handler, sugar *zap.SugaredLogger) http.HandlerFunc {
	logFn := func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()

		responseData := &logger.ResponseData{
			Size:   0,
			Status: 0,
		}
		lw := logger.LoggingRW{
			ResponseWriter: rw,
			ResponseData:   responseData,
		}

		h.ServeHTTP(&lw, r)

		dur := time.Since(start)

		sugar.Infoln(
			"uri", r.RequestURI,
			"method", r.Method,
			"duration", dur,
			"status", responseData.Status,
			"size", responseData.Size,
		)
	}
	return http.HandlerFunc(logFn)
}

// DecompressMiddleware распаковывает тело запроса, сжатое gzip.
func DecompressMiddleware(h http.Handler) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				writeError(rw, r, http.StatusBadRequest, "failed to decompress gzip body")
				return
			}
			defer gz.Close()

			body, err := io.ReadAll(gz)
			if err != nil {
				writeError(rw, r, http.StatusInternalServerError, "failed to read decompressed body")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
		}
		h.ServeHTTP(rw, r)
	}
}

// UpdateHandler принимает одно измерение.
func UpdateHandler(eng *engine.Engine) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(rw, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}

		if req.Name == "" {
			writeError(rw, r, http.StatusBadRequest, "metric_name is empty")
			return
		}

		point := eng.Ingest(req.Name, req.Value, req.Source, req.Tags)
		writeData(rw, r, http.StatusOK, point)
	}
}

// UpdatesHandler принимает пакет измерений.
func UpdatesHandler(eng *engine.Engine) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var reqs []ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			writeError(rw, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}

		accepted := 0
		for _, req := range reqs {
			if req.Name == "" {
				continue
			}
			eng.Ingest(req.Name, req.Value, req.Source, req.Tags)
			accepted++
		}

		writeData(rw, r, http.StatusOK, map[string]int{"accepted": accepted})
	}
}

// QueryHandler возвращает последние точки истории запрошенных метрик.
func QueryHandler(eng *engine.Engine) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(rw, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}

		if req.MaxPoints <= 0 {
			req.MaxPoints = 100
		}

		result := eng.Query(req.Metrics, req.MaxPoints)
		writeData(rw, r, http.StatusOK, result)
	}
}

// ValueHandler возвращает самую свежую точку метрики.
func ValueHandler(eng *engine.Engine) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "metric")

		point, ok := eng.Latest(name)
		if !ok {
			writeError(rw, r, http.StatusNotFound, "metric not found")
			return
		}

		writeData(rw, r, http.StatusOK, point)
	}
}

// StatsHandler возвращает накопительную статистику метрики.
// Статистика охватывает все измерения с момента запуска процесса,
// а не только удержанный срез истории.
func StatsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "metric")
		writeData(rw, r, http.StatusOK, eng.Stats(name))
	}
}

// HealthHandler возвращает сводку состояния движка.
func HealthHandler(eng *engine.Engine) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		writeData(rw, r, http.StatusOK, eng.Health())
	}
}

// PerformanceHandler возвращает сводку производительности движка.
func PerformanceHandler(eng *engine.Engine) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		writeData(rw, r, http.StatusOK, eng.Performance())
	}
}

// AddRuleHandler регистрирует правило алертинга.
func AddRuleHandler(eng *engine.Engine) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		var req ruleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(rw, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}

		duration, err := time.ParseDuration(req.Duration)
		if err != nil {
			writeError(rw, r, http.StatusBadRequest, "invalid duration: "+err.Error())
			return
		}

		rule := models.AlertRule{
			RuleID:    req.RuleID,
			Metric:    req.Metric,
			Condition: req.Condition,
			Threshold: req.Threshold,
			Duration:  duration,
			Severity:  req.Severity,
			Action:    req.Action,
		}

		if err := eng.AddRule(rule); err != nil {
			writeError(rw, r, http.StatusBadRequest, err.Error())
			return
		}

		writeData(rw, r, http.StatusOK, rule)
	}
}

// ActiveAlertsHandler возвращает текущий набор активных алертов.
func ActiveAlertsHandler(eng *engine.Engine) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		writeData(rw, r, http.StatusOK, eng.ActiveAlerts())
	}
}

func writeData(rw http.ResponseWriter, r *http.Request, code int, data interface{}) {
	writeEnvelope(rw, r, code, envelope{
		Status:  "ok",
		Version: InterfaceVersion,
		Data:    data,
	})
}

func writeError(rw http.ResponseWriter, r *http.Request, code int, msg string) {
	writeEnvelope(rw, r, code, envelope{
		Status:  "error",
		Version: InterfaceVersion,
		Error:   msg,
	})
}

func writeEnvelope(rw http.ResponseWriter, r *http.Request, code int, env envelope) {
	if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		rw.Header().Set("Content-Encoding", "gzip")
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(code)

		gz := gzip.NewWriter(rw)
		defer gz.Close()

		if err := json.NewEncoder(gz).Encode(env); err != nil {
			log.Printf("response gzip encode error: %v", err)
		}
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	if err := json.NewEncoder(rw).Encode(env); err != nil {
		log.Printf("response encode error: %v", err)
	}
}
