package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/levinOo/go-telemetry-project/internal/engine"
	"github.com/levinOo/go-telemetry-project/internal/models"
	"go.uber.org/zap"
)

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSendBuffer задаёт ёмкость буфера между подписчиком и записью в соединение.
const wsSendBuffer = 64

// wsMessage описывает одно измерение, отправляемое подписчику.
type wsMessage struct {
	Metric string             `json:"metric_name"`
	Point  models.MetricPoint `json:"point"`
}

// SubscribeWSHandler переводит соединение в WebSocket и регистрирует его
// как подписчика на поток измерений. Идентификатор берётся из query-параметра
// id, при его отсутствии генерируется. Подписка снимается при разрыве соединения.
func SubscribeWSHandler(eng *engine.Engine, sugar *zap.SugaredLogger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			id = "ws-" + uuid.NewString()
		}

		conn, err := streamUpgrader.Upgrade(rw, r, nil)
		if err != nil {
			sugar.Errorw("Websocket upgrade failed", "subscriber", id, "error", err)
			return
		}
		defer conn.Close()

		sugar.Infow("Websocket subscriber connected", "subscriber", id)

		send := make(chan wsMessage, wsSendBuffer)

		err = eng.Subscribe(id, func(name string, point models.MetricPoint) {
			// Запись выполняет цикл ниже; при заполненном буфере измерение пропускается.
			select {
			case send <- wsMessage{Metric: name, Point: point}:
			default:
			}
		})
		if err != nil {
			sugar.Errorw("Websocket subscribe failed", "subscriber", id, "error", err)
			return
		}
		defer eng.Unsubscribe(id)

		// Читающая горутина замечает закрытие соединения клиентом.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		pingTicker := time.NewTicker(30 * time.Second)
		defer pingTicker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-closed:
				sugar.Infow("Websocket subscriber disconnected", "subscriber", id)
				return
			case <-pingTicker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case msg := <-send:
				if err := conn.WriteJSON(msg); err != nil {
					sugar.Errorw("Websocket write failed", "subscriber", id, "error", err)
					return
				}
			}
		}
	}
}
