package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fingerprint-reader/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// stalledTrack трек, чей Read блокируется до Close, как у зависшего сенсора
type stalledTrack struct {
	once    sync.Once
	closed  chan struct{}
	reading chan struct{}
}

func newStalledTrack() *stalledTrack {
	return &stalledTrack{
		closed:  make(chan struct{}),
		reading: make(chan struct{}, 1),
	}
}

func (t *stalledTrack) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *stalledTrack) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *stalledTrack) frames() video.Reader {
	return video.ReaderFunc(func() (image.Image, func(), error) {
		select {
		case t.reading <- struct{}{}:
		default:
		}
		<-t.closed
		return nil, nil, io.EOF
	})
}

type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) HandleEvent(e domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func startStalled(t *testing.T, r *Reader, deviceID string) *stalledTrack {
	t.Helper()
	track := newStalledTrack()

	r.mutex.Lock()
	r.runSession(deviceID, track, track.frames())
	r.mutex.Unlock()

	select {
	case <-track.reading:
	case <-time.After(2 * time.Second):
		t.Fatal("цикл захвата не дошел до чтения кадра")
	}
	return track
}

func TestStopAcquisition_InterruptsStalledRead(t *testing.T) {
	r := NewReader(Options{Interval: time.Millisecond}, nopLogger{})
	stopped := &eventLog{}
	r.On(domain.EventAcquisitionStopped, stopped)

	track := startStalled(t, r, "cam-0")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.StopAcquisition(ctx, "cam-0"))

	assert.True(t, track.isClosed())
	assert.Equal(t, 1, stopped.count())

	// Повторная остановка ничего не делает
	require.NoError(t, r.StopAcquisition(ctx, "cam-0"))
	assert.Equal(t, 1, stopped.count())
}

func TestStopAcquisition_ClosesTrackEvenWhenContextIsDone(t *testing.T) {
	r := NewReader(Options{Interval: time.Millisecond}, nopLogger{})
	track := startStalled(t, r, "cam-0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.StopAcquisition(ctx, "cam-0")

	assert.True(t, track.isClosed())
	r.mutex.Lock()
	assert.Empty(t, r.sessions)
	r.mutex.Unlock()
}

func TestClose_StopsAllSessions(t *testing.T) {
	r := NewReader(Options{Interval: time.Millisecond}, nopLogger{})
	first := startStalled(t, r, "cam-0")
	second := startStalled(t, r, "cam-1")

	require.NoError(t, r.Close())
	assert.True(t, first.isClosed())
	assert.True(t, second.isClosed())
}

func TestEncodeSample_GrayscaleAndFit(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			frame.Set(x, y, color.RGBA{R: 200, G: 40, B: 10, A: 255})
		}
	}

	data, err := EncodeSample(frame, 320, 400)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(data)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	// 640x480 вписывается в 320x400 с сохранением пропорций
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 240, img.Bounds().Dy())

	r, g, b, _ := img.At(10, 10).RGBA()
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}

func TestEncodeSample_NoBoundsKeepsSize(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 50, 70))

	data, err := EncodeSample(frame, 0, 0)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(data)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 70, cfg.Height)
}
