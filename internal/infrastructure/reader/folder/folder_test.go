package folder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fingerprint-reader/internal/domain"
	"fingerprint-reader/internal/infrastructure/reader"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type collector struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *collector) HandleEvent(e domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) ofType(t domain.EventType) []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// dropImage кладет снимок атомарно: запись во временный файл и rename
func dropImage(t *testing.T, dir, name string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.White)

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))

	tmp := filepath.Join(dir, name+".tmp")
	require.NoError(t, os.WriteFile(tmp, buf.Bytes(), 0o644))
	require.NoError(t, os.Rename(tmp, filepath.Join(dir, name)))
}

func newReader(t *testing.T) (*Reader, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := NewReader(dir, nopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, dir
}

func TestNewReader_RejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := NewReader(path, nopLogger{})
	assert.Error(t, err)
}

func TestReader_EnumerateAndInfo(t *testing.T) {
	r, dir := newReader(t)
	ctx := context.Background()

	devices, err := r.EnumerateDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, DeviceID(abs), devices[0].ID)
	assert.Equal(t, DeviceID(abs), DeviceID(abs), "device id is stable")

	info, err := r.GetDeviceInfo(ctx, devices[0])
	require.NoError(t, err)
	assert.Equal(t, devices[0].ID, info.DeviceID)

	_, err = r.GetDeviceInfo(ctx, domain.Device{ID: "other"})
	assert.ErrorIs(t, err, reader.ErrDeviceNotFound)
}

func TestReader_EmitsSamplesOnlyWhileAcquiring(t *testing.T) {
	r, dir := newReader(t)
	ctx := context.Background()
	c := &collector{}
	for _, eventType := range domain.EventTypes {
		r.On(eventType, c)
	}

	devices, err := r.EnumerateDevices(ctx)
	require.NoError(t, err)
	id := devices[0].ID

	dropImage(t, dir, "before.png")
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, c.ofType(domain.EventSamplesAcquired))

	require.NoError(t, r.StartAcquisition(ctx, domain.FormatPngImage, id))
	require.Len(t, c.ofType(domain.EventAcquisitionStarted), 1)

	dropImage(t, dir, "finger.png")
	require.Eventually(t, func() bool {
		return len(c.ofType(domain.EventSamplesAcquired)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sample := c.ofType(domain.EventSamplesAcquired)[0]
	assert.Equal(t, id, sample.DeviceID)
	require.Len(t, sample.Samples, 1)
	assert.Equal(t, domain.OriginDevice, sample.Samples[0].Origin)
	assert.NotEmpty(t, sample.Samples[0].Data)

	require.NoError(t, r.StopAcquisition(ctx, id))
	require.NoError(t, r.StopAcquisition(ctx, id), "stop is idempotent")
	assert.Len(t, c.ofType(domain.EventAcquisitionStopped), 1)

	dropImage(t, dir, "after.png")
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, c.ofType(domain.EventSamplesAcquired), 1)
}

// blockingListener задерживает доставку сэмпла до release
type blockingListener struct {
	entered chan struct{}
	release chan struct{}
}

func (l *blockingListener) HandleEvent(e domain.Event) {
	l.entered <- struct{}{}
	<-l.release
}

func TestReader_StopWaitsForSampleInFlight(t *testing.T) {
	r, dir := newReader(t)
	ctx := context.Background()
	id := r.deviceID

	l := &blockingListener{entered: make(chan struct{}, 1), release: make(chan struct{})}
	r.On(domain.EventSamplesAcquired, l)
	require.NoError(t, r.StartAcquisition(ctx, domain.FormatPngImage, id))

	dropImage(t, dir, "finger.png")
	select {
	case <-l.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("сэмпл не доставлен")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- r.StopAcquisition(ctx, id) }()

	select {
	case <-stopped:
		t.Fatal("остановка завершилась раньше доставки сэмпла")
	case <-time.After(100 * time.Millisecond):
	}

	close(l.release)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("остановка не завершилась")
	}
}

func TestReader_RejectsUnsupportedFormat(t *testing.T) {
	r, _ := newReader(t)
	devices, err := r.EnumerateDevices(context.Background())
	require.NoError(t, err)

	err = r.StartAcquisition(context.Background(), domain.FormatCompressed, devices[0].ID)
	assert.ErrorIs(t, err, reader.ErrUnsupportedFormat)
}

func TestLoadSample_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := LoadSample(path)
	assert.Error(t, err)
}
