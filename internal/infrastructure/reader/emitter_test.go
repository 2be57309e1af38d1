package reader

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fingerprint-reader/internal/domain"
)

type countingListener struct {
	events []domain.Event
}

func (l *countingListener) HandleEvent(e domain.Event) {
	l.events = append(l.events, e)
}

func TestEmitter_OnOffByIdentity(t *testing.T) {
	var e Emitter
	a := &countingListener{}
	b := &countingListener{}

	e.On(domain.EventSamplesAcquired, a)
	e.On(domain.EventSamplesAcquired, a) // повтор игнорируется
	e.On(domain.EventSamplesAcquired, b)
	assert.Equal(t, 2, e.Count(domain.EventSamplesAcquired))

	e.Emit(domain.Event{Type: domain.EventSamplesAcquired})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.False(t, a.events[0].Time.IsZero(), "emit stamps the event time")

	e.Off(domain.EventSamplesAcquired, a)
	e.Emit(domain.Event{Type: domain.EventSamplesAcquired})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 2)

	// Снятие незарегистрированного обработчика не ломает список
	e.Off(domain.EventSamplesAcquired, &countingListener{})
	assert.Equal(t, 1, e.Count(domain.EventSamplesAcquired))
}

func TestEmitter_EventsAreRoutedByType(t *testing.T) {
	var e Emitter
	l := &countingListener{}
	e.On(domain.EventDeviceConnected, l)

	e.Emit(domain.Event{Type: domain.EventDeviceDisconnected})
	assert.Empty(t, l.events)

	e.Emit(domain.Event{Type: domain.EventDeviceConnected, DeviceID: "x"})
	require.Len(t, l.events, 1)
	assert.Equal(t, "x", l.events[0].DeviceID)
}

func TestEmitter_ListenerMayUnsubscribeDuringEmit(t *testing.T) {
	var e Emitter
	self := &selfRemoving{emitter: &e}
	e.On(domain.EventAcquisitionStopped, self)

	e.Emit(domain.Event{Type: domain.EventAcquisitionStopped})
	assert.Equal(t, 1, self.calls)
	assert.Equal(t, 0, e.Count(domain.EventAcquisitionStopped))
}

type selfRemoving struct {
	emitter *Emitter
	calls   int
}

func (s *selfRemoving) HandleEvent(e domain.Event) {
	s.calls++
	s.emitter.Off(e.Type, s)
}

func TestMock_DemoEmitsSampleOnStart(t *testing.T) {
	m, err := NewDemoMock()
	require.NoError(t, err)

	l := &countingListener{}
	m.On(domain.EventSamplesAcquired, l)
	m.On(domain.EventAcquisitionStarted, l)

	require.NoError(t, m.StartAcquisition(context.Background(), domain.FormatPngImage, MockDeviceID))
	require.Len(t, l.events, 2)
	assert.Equal(t, domain.EventAcquisitionStarted, l.events[0].Type)

	samples := l.events[1].Samples
	require.Len(t, samples, 1)
	assert.Equal(t, domain.OriginDevice, samples[0].Origin)

	raw, err := base64.RawURLEncoding.DecodeString(samples[0].Data)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 160, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestMock_RejectsNonPngFormat(t *testing.T) {
	m := NewMock()
	err := m.StartAcquisition(context.Background(), domain.FormatRaw, MockDeviceID)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, 1, m.CallCount("StartAcquisition"))
}
