package alert

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/levinOo/go-telemetry-project/internal/models"
)

// Sink определяет интерфейс внешнего отправителя алертов.
// Реализации доставляют алерт получателю (HTTP endpoint, почта и т.д.).
type Sink interface {
	// Deliver отправляет алерт получателю.
	Deliver(a models.ActiveAlert) error
}

// WebhookSink отправляет алерты на внешний HTTP endpoint методом POST.
// Реализует интерфейс Sink.
type WebhookSink struct {
	client *resty.Client
	url    string
}

// NewWebhookSink создаёт отправителя алертов на указанный URL.
func NewWebhookSink(url string) *WebhookSink {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &WebhookSink{
		client: client,
		url:    url,
	}
}

// Deliver отправляет алерт в формате JSON с Content-Type: application/json.
// Ответ со статусом вне диапазона 2xx считается ошибкой доставки.
func (s *WebhookSink) Deliver(a models.ActiveAlert) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(a).
		Post(s.url)

	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}
