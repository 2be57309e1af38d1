package streaming

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fingerprint-reader/internal/application"
	"fingerprint-reader/internal/domain"
)

// WebSocketForwarder пересылает снятые отпечатки сборщику через WebSocket
type WebSocketForwarder struct {
	url       string
	dialer    *websocket.Dialer
	logger    application.Logger
	conn      *websocket.Conn
	connected bool
	mutex     sync.Mutex
	queue     chan domain.Image
	lastID    uuid.UUID
	sent      int
	startTime time.Time
	debugMode bool
}

var _ application.Observer = (*WebSocketForwarder)(nil)

// NewWebSocketForwarder создает пересылку на адрес сборщика
func NewWebSocketForwarder(streamingURL string, logger application.Logger, debugMode bool) (*WebSocketForwarder, error) {
	u, err := url.Parse(streamingURL)
	if err != nil {
		return nil, err
	}

	return &WebSocketForwarder{
		url:       u.String(),
		dialer:    websocket.DefaultDialer,
		logger:    logger,
		queue:     make(chan domain.Image, 16),
		debugMode: debugMode,
	}, nil
}

// CaptureUpdated ставит новое изображение в очередь. Пустые и повторные не отправляются.
func (f *WebSocketForwarder) CaptureUpdated(img domain.Image, state domain.CaptureState) {
	if img.Empty() {
		return
	}

	f.mutex.Lock()
	if img.ID == f.lastID {
		f.mutex.Unlock()
		return
	}
	f.lastID = img.ID
	f.mutex.Unlock()

	select {
	case f.queue <- img:
	default:
		f.logger.Warn("Очередь пересылки заполнена, снимок пропущен", "image_id", img.ID)
	}
}

// Run отправляет изображения из очереди до отмены контекста
func (f *WebSocketForwarder) Run(ctx context.Context) error {
	f.mutex.Lock()
	f.startTime = time.Now()
	f.mutex.Unlock()

	defer f.Stop()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("Пересылка остановлена")
			return nil
		case img := <-f.queue:
			if err := f.send(ctx, img); err != nil {
				f.logger.Error("Ошибка отправки снимка", "image_id", img.ID, "error", err)
			}
		}
	}
}

// Stop закрывает соединение со сборщиком
func (f *WebSocketForwarder) Stop() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if !f.connected || f.conn == nil {
		return nil
	}

	err := f.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	if err != nil {
		f.logger.Error("Ошибка закрытия WebSocket", "error", err)
	}

	f.conn.Close()
	f.conn = nil
	f.connected = false

	return nil
}

// IsConnected возвращает статус подключения
func (f *WebSocketForwarder) IsConnected() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.connected
}

// Sent возвращает число отправленных снимков
func (f *WebSocketForwarder) Sent() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.sent
}

// send отправляет снимок, при необходимости переподключаясь
func (f *WebSocketForwarder) send(ctx context.Context, img domain.Image) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if !f.connected {
		f.logger.Info("Подключение к сборщику", "url", f.url)
		conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
		if err != nil {
			return err
		}
		f.conn = conn
		f.connected = true
		f.logger.Info("Подключено к сборщику")
	}

	if err := f.conn.WriteMessage(websocket.BinaryMessage, img.PNG); err != nil {
		// Следующий снимок переподключится
		f.conn.Close()
		f.conn = nil
		f.connected = false
		return err
	}

	f.sent++

	if f.debugMode {
		elapsed := time.Since(f.startTime).Seconds()
		f.logger.Debug("Снимок отправлен", "sent", f.sent, "per_sec", float64(f.sent)/elapsed, "bytes", len(img.PNG))
	}

	return nil
}
