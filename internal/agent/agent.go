// Package agent реализует агента телеметрии: периодический сбор показателей
// процесса и хоста с отправкой пакетов измерений на сервер.
package agent

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-resty/resty/v2"
	"github.com/levinOo/go-telemetry-project/internal/agent/store"
	"github.com/levinOo/go-telemetry-project/internal/models"
)

// AgentSource идентифицирует агента как производителя измерений.
const AgentSource = "agent"

type Config struct {
	Addr         string `env:"ADDRESS"`
	PollInterval int    `env:"POLL_INTERVAL"`
	ReqInterval  int    `env:"REPORT_INTERVAL"`
}

// SendSnapshotBatch отправляет все показатели снимка одним пакетом на endpoint.
func SendSnapshotBatch(endpoint string, s *store.Snapshot) error {
	points := s.Points(AgentSource)
	if len(points) == 0 {
		log.Println("No metrics to send, skipping batch")
		return nil
	}

	return sendPointsBatch(points, endpoint)
}

func sendPointsBatch(points []models.MetricPoint, endpoint string) error {
	url, err := url.JoinPath(endpoint, "updates")
	if err != nil {
		return fmt.Errorf("failed to join URL path: %w", err)
	}

	data, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to marshal points: %w", err)
	}

	buffer, err := CompressData(data)
	if err != nil {
		return fmt.Errorf("failed to compress data: %w", err)
	}

	client := resty.New()
	resp, err := client.R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Content-Encoding", "gzip").
		SetHeader("Accept-Encoding", "gzip").
		SetBody(buffer).
		Post(url)

	if err != nil {
		return fmt.Errorf("failed to send batch request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

// CompressData сжимает данные алгоритмом gzip.
func CompressData(data []byte) ([]byte, error) {
	var buffer bytes.Buffer

	w := gzip.NewWriter(&buffer)

	_, err := w.Write(data)
	if err != nil {
		return nil, err
	}

	err = w.Close()
	if err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

// StartAgent запускает циклы сбора и отправки показателей в фоновой горутине.
// При отказе соединения отправка повторяется с интервалами 1с, 3с и 5с.
func StartAgent() <-chan error {
	cfg := Config{}
	errCh := make(chan error)

	flag.StringVar(&cfg.Addr, "a", "localhost:8080", "Адрес сервера")
	flag.IntVar(&cfg.PollInterval, "p", 2, "Значение интервала сбора показателей в секундах")
	flag.IntVar(&cfg.ReqInterval, "r", 10, "Значение интервала отправки в секундах")
	flag.Parse()

	err := env.Parse(&cfg)
	if err != nil {
		errCh <- fmt.Errorf("ошибка парсинга ENV: %w", err)
		return errCh
	}

	snapshot := store.NewSnapshot()
	endpoint := "http://" + cfg.Addr

	go func() {
		pollTicker := time.NewTicker(time.Second * time.Duration(cfg.PollInterval))
		reqTicker := time.NewTicker(time.Second * time.Duration(cfg.ReqInterval))

		for {
			select {
			case <-pollTicker.C:
				snapshot.Collect()
				snapshot.CollectHost()

			case <-reqTicker.C:
				var connRefusedErr = syscall.ECONNREFUSED
				err := SendSnapshotBatch(endpoint, snapshot)

				if errors.Is(err, connRefusedErr) {
					intervals := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

					for i := 0; i < 3; i++ {
						log.Printf("Retry attempt %d after error: %v", i+1, err)
						time.Sleep(intervals[i])

						err = SendSnapshotBatch(endpoint, snapshot)
						if err == nil {
							log.Printf("Success after %d retries", i+1)
							break
						}

						if !errors.Is(err, connRefusedErr) {
							break
						}
					}
				}

				if err != nil {
					log.Printf("Final sending metrics error: %v", err)
				}
			}
		}
	}()

	return errCh
}
