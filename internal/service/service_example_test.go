package service_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"

	"github.com/levinOo/go-telemetry-project/internal/engine"
	"github.com/levinOo/go-telemetry-project/internal/handler"
	"github.com/levinOo/go-telemetry-project/internal/logger"
)

// Example_ingestMetric демонстрирует приём одного измерения через API.
func Example_ingestMetric() {
	sugar := logger.NewLogger()
	eng := engine.NewEngine(sugar, engine.Options{})
	defer eng.Close()

	router := handler.NewRouter(eng, sugar)
	ts := httptest.NewServer(router)
	defer ts.Close()

	// Подготавливаем измерение для отправки
	body, _ := json.Marshal(map[string]interface{}{
		"metric_name": "latency_ms",
		"value":       42.5,
		"source":      "api",
	})

	resp, err := http.Post(ts.URL+"/update", "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	fmt.Printf("Status: %d\n", resp.StatusCode)
	// Output: Status: 200
}

// Example_batchIngest демонстрирует пакетный приём измерений.
func Example_batchIngest() {
	sugar := logger.NewLogger()
	eng := engine.NewEngine(sugar, engine.Options{})
	defer eng.Close()

	router := handler.NewRouter(eng, sugar)
	ts := httptest.NewServer(router)
	defer ts.Close()

	body, _ := json.Marshal([]map[string]interface{}{
		{"metric_name": "cpu_usage_percent", "value": 45.5, "source": "agent"},
		{"metric_name": "memory_usage_mb", "value": 512.0, "source": "agent"},
	})

	resp, err := http.Post(ts.URL+"/updates", "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	fmt.Printf("Status: %d\n", resp.StatusCode)
	// Output: Status: 200
}

// Example_queryHistory демонстрирует выборку истории метрики через API.
func Example_queryHistory() {
	sugar := logger.NewLogger()
	eng := engine.NewEngine(sugar, engine.Options{})
	defer eng.Close()

	// Предварительно добавляем измерения
	eng.Ingest("latency_ms", 10, "api", nil)
	eng.Ingest("latency_ms", 20, "api", nil)

	router := handler.NewRouter(eng, sugar)
	ts := httptest.NewServer(router)
	defer ts.Close()

	body, _ := json.Marshal(map[string]interface{}{
		"metrics": []string{"latency_ms"},
	})

	resp, err := http.Post(ts.URL+"/query", "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	fmt.Printf("Status: %d\n", resp.StatusCode)
	// Output: Status: 200
}

// Example_healthCheck демонстрирует проверку работоспособности сервиса.
func Example_healthCheck() {
	sugar := logger.NewLogger()
	eng := engine.NewEngine(sugar, engine.Options{})
	defer eng.Close()

	router := handler.NewRouter(eng, sugar)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	fmt.Printf("Status: %d\n", resp.StatusCode)
	// Output: Status: 200
}
