package reader

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"fingerprint-reader/internal/domain"
)

// MockDeviceID идентификатор единственного устройства Mock
const MockDeviceID = "mock-0"

// Mock бэкенд в памяти для тестов и демонстрации.
// Поведение настраивается через поля-функции.
type Mock struct {
	Emitter

	// EnumerateFunc вызывается из EnumerateDevices.
	// Если nil, возвращается одно устройство MockDeviceID.
	EnumerateFunc func(ctx context.Context) ([]domain.Device, error)

	// InfoFunc вызывается из GetDeviceInfo.
	// Если nil, возвращается DeviceInfo с ID устройства.
	InfoFunc func(ctx context.Context, device domain.Device) (domain.DeviceInfo, error)

	// StartFunc вызывается из StartAcquisition.
	// Если nil, захват считается начатым.
	StartFunc func(ctx context.Context, format domain.SampleFormat, deviceID string) error

	// StopFunc вызывается из StopAcquisition.
	// Если nil, захват считается остановленным.
	StopFunc func(ctx context.Context, deviceID string) error

	// DemoSample отправляется событием SamplesAcquired после успешного старта
	DemoSample string

	mu     sync.Mutex
	calls  []MockCall
	closed bool
}

// MockCall запись о вызове метода
type MockCall struct {
	Method   string
	DeviceID string
	Format   domain.SampleFormat
	Time     time.Time
}

// NewMock создает Mock с поведением по умолчанию
func NewMock() *Mock {
	return &Mock{}
}

// NewDemoMock создает Mock, который после старта отдает синтетический отпечаток
func NewDemoMock() (*Mock, error) {
	sample, err := DemoFingerprint()
	if err != nil {
		return nil, err
	}
	return &Mock{DemoSample: sample}, nil
}

// EnumerateDevices возвращает список устройств
func (m *Mock) EnumerateDevices(ctx context.Context) ([]domain.Device, error) {
	m.record("EnumerateDevices", "", 0)
	if m.EnumerateFunc != nil {
		return m.EnumerateFunc(ctx)
	}
	return []domain.Device{{ID: MockDeviceID, Label: "Mock fingerprint reader", Kind: "mock"}}, nil
}

// GetDeviceInfo возвращает информацию об устройстве
func (m *Mock) GetDeviceInfo(ctx context.Context, device domain.Device) (domain.DeviceInfo, error) {
	m.record("GetDeviceInfo", device.ID, 0)
	if m.InfoFunc != nil {
		return m.InfoFunc(ctx, device)
	}
	return domain.DeviceInfo{
		DeviceID:   device.ID,
		UIDType:    domain.UIDVolatile,
		Modality:   domain.ModalityArea,
		Technology: domain.TechnologyOptical,
		Label:      device.Label,
	}, nil
}

// StartAcquisition начинает захват
func (m *Mock) StartAcquisition(ctx context.Context, format domain.SampleFormat, deviceID string) error {
	m.record("StartAcquisition", deviceID, format)
	if m.StartFunc != nil {
		if err := m.StartFunc(ctx, format, deviceID); err != nil {
			return err
		}
	} else if format != domain.FormatPngImage {
		return ErrUnsupportedFormat
	}

	m.Emit(domain.Event{Type: domain.EventAcquisitionStarted, DeviceID: deviceID})
	if m.DemoSample != "" {
		m.EmitSamples(deviceID, m.DemoSample)
	}
	return nil
}

// StopAcquisition останавливает захват
func (m *Mock) StopAcquisition(ctx context.Context, deviceID string) error {
	m.record("StopAcquisition", deviceID, 0)
	if m.StopFunc != nil {
		if err := m.StopFunc(ctx, deviceID); err != nil {
			return err
		}
	}
	m.Emit(domain.Event{Type: domain.EventAcquisitionStopped, DeviceID: deviceID})
	return nil
}

// EmitSamples отправляет событие SamplesAcquired с сэмплами от устройства
func (m *Mock) EmitSamples(deviceID string, samples ...string) {
	event := domain.Event{
		Type:     domain.EventSamplesAcquired,
		DeviceID: deviceID,
		Format:   domain.FormatPngImage,
	}
	for _, data := range samples {
		event.Samples = append(event.Samples, domain.Sample{Data: data, Origin: domain.OriginDevice})
	}
	m.Emit(event)
}

// Close отмечает сессию закрытой
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed сообщает, был ли вызван Close
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Calls возвращает записанные вызовы
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount возвращает число вызовов метода
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *Mock) record(method, deviceID string, format domain.SampleFormat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:   method,
		DeviceID: deviceID,
		Format:   format,
		Time:     time.Now(),
	})
}

// DemoFingerprint рисует синтетический узор из концентрических линий
// и возвращает его как PNG в URL-safe base64
func DemoFingerprint() (string, error) {
	const w, h = 160, 200
	img := imaging.New(w, h, color.White)
	cx, cy := float64(w)/2, float64(h)/2.2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-cx, (float64(y)-cy)*0.8
			if math.Sin(math.Hypot(dx, dy)/2.2) > 0.3 {
				img.Set(x, y, color.Gray{Y: 40})
			}
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}
