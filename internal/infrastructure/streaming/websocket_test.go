package streaming

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fingerprint-reader/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newCollector(t *testing.T) (string, chan []byte) {
	t.Helper()

	received := make(chan []byte, 8)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType == websocket.BinaryMessage {
				received <- data
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), received
}

func TestWebSocketForwarder_SendsNewImages(t *testing.T) {
	wsURL, received := newCollector(t)

	f, err := NewWebSocketForwarder(wsURL, nopLogger{}, true)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	img := domain.Image{ID: uuid.New(), PNG: []byte("png-bytes"), URL: "data:image/png;base64, cG5nLWJ5dGVz"}
	f.CaptureUpdated(img, domain.StateCapturing)
	// Повтор того же снимка не отправляется
	f.CaptureUpdated(img, domain.StateCapturing)
	// Пустое изображение тоже
	f.CaptureUpdated(domain.Image{}, domain.StateIdle)

	select {
	case data := <-received:
		assert.Equal(t, []byte("png-bytes"), data)
	case <-time.After(2 * time.Second):
		t.Fatal("снимок не получен")
	}

	select {
	case data := <-received:
		t.Fatalf("лишнее сообщение: %q", data)
	case <-time.After(100 * time.Millisecond):
	}

	assert.Equal(t, 1, f.Sent())
	assert.True(t, f.IsConnected())
}

func TestWebSocketForwarder_DialFailureIsNotFatal(t *testing.T) {
	f, err := NewWebSocketForwarder("ws://127.0.0.1:1/ws", nopLogger{}, false)
	require.NoError(t, err)

	err = f.send(context.Background(), domain.Image{ID: uuid.New(), PNG: []byte{1}})
	assert.Error(t, err)
	assert.False(t, f.IsConnected())
	assert.Equal(t, 0, f.Sent())
}
