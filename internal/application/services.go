package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fingerprint-reader/internal/domain"
)

var (
	ErrReaderNotInitialized = errors.New("сканер не инициализирован")
	ErrNoDevices            = errors.New("список устройств пуст")
	ErrNoDeviceID           = errors.New("нет идентификатора устройства")
	ErrCaptureBusy          = errors.New("захват уже запущен")
	ErrNotCapturing         = errors.New("нет активного захвата")
	ErrClosed               = errors.New("сервис закрыт")
)

// listener фиксированный обработчик события.
// Указатель создается один раз, поэтому Off находит тот же обработчик, что и On.
type listener struct {
	handle func(event domain.Event)
}

func (l *listener) HandleEvent(event domain.Event) {
	l.handle(event)
}

// CaptureService сервис для работы со сканером отпечатков: держит сессию,
// подписывается на события, перечисляет устройства и управляет захватом
type CaptureService struct {
	reader Reader
	logger Logger

	handlers  map[domain.EventType]*listener
	observers []Observer

	devices    []domain.Device
	info       domain.DeviceInfo
	image      domain.Image
	state      domain.CaptureState
	subscribed bool
	closed     bool
	mutex      sync.Mutex
}

// NewCaptureService создает сервис поверх сессии сканера
func NewCaptureService(reader Reader, logger Logger) *CaptureService {
	s := &CaptureService{
		reader: reader,
		logger: logger,
	}

	s.handlers = map[domain.EventType]*listener{
		domain.EventDeviceConnected:    {handle: s.onDeviceConnected},
		domain.EventDeviceDisconnected: {handle: s.onDeviceDisconnected},
		domain.EventAcquisitionStarted: {handle: s.onAcquisitionStarted},
		domain.EventAcquisitionStopped: {handle: s.onAcquisitionStopped},
		domain.EventSamplesAcquired:    {handle: s.onSamplesAcquired},
	}

	return s
}

// AddObserver добавляет получателя изменений изображения и состояния
func (s *CaptureService) AddObserver(o Observer) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.observers = append(s.observers, o)
}

// Init подписывается на события, перечисляет устройства и запрашивает
// информацию о первом из них. Ошибки логируются и не прерывают работу.
func (s *CaptureService) Init(ctx context.Context) error {
	s.Subscribe()

	_, listErr := s.ListDevices(ctx)
	_, infoErr := s.FetchInfo(ctx)

	if err := errors.Join(listErr, infoErr); err != nil {
		s.logger.Error("Ошибка инициализации и получения информации об устройстве", "op", "init", "error", err)
		return err
	}
	return nil
}

// Subscribe регистрирует обработчики всех событий сканера
func (s *CaptureService) Subscribe() {
	if s.reader == nil {
		s.logger.Error("Сканер не инициализирован", "op", "subscribe")
		return
	}

	s.mutex.Lock()
	if s.subscribed || s.closed {
		s.mutex.Unlock()
		return
	}
	s.subscribed = true
	s.mutex.Unlock()

	for _, eventType := range domain.EventTypes {
		s.reader.On(eventType, s.handlers[eventType])
	}
}

// Unsubscribe снимает те же обработчики, что были зарегистрированы в Subscribe
func (s *CaptureService) Unsubscribe() {
	s.mutex.Lock()
	if !s.subscribed {
		s.mutex.Unlock()
		return
	}
	s.subscribed = false
	s.mutex.Unlock()

	for _, eventType := range domain.EventTypes {
		s.reader.Off(eventType, s.handlers[eventType])
	}
}

// ListDevices перечисляет сканеры. Список заменяется целиком только при успехе.
func (s *CaptureService) ListDevices(ctx context.Context) ([]domain.Device, error) {
	if s.reader == nil {
		s.logger.Error("Сканер не инициализирован", "op", "enumerate")
		return nil, ErrReaderNotInitialized
	}

	devices, err := s.reader.EnumerateDevices(ctx)
	if err != nil {
		s.logger.Error("Ошибка перечисления устройств", "op", "enumerate", "error", err)
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil, ErrClosed
	}
	s.devices = devices
	s.mutex.Unlock()

	s.logger.Info("Список устройств", "count", len(devices), "devices", devices)
	return devices, nil
}

// FetchInfo запрашивает информацию о первом устройстве из списка
func (s *CaptureService) FetchInfo(ctx context.Context) (domain.DeviceInfo, error) {
	if s.reader == nil {
		s.logger.Error("Сканер или список устройств не инициализирован", "op", "device_info")
		return domain.DeviceInfo{}, ErrReaderNotInitialized
	}

	s.mutex.Lock()
	if len(s.devices) == 0 {
		s.mutex.Unlock()
		s.logger.Error("Сканер или список устройств не инициализирован", "op", "device_info")
		return domain.DeviceInfo{}, ErrNoDevices
	}
	device := s.devices[0]
	s.mutex.Unlock()

	info, err := s.reader.GetDeviceInfo(ctx, device)
	if err != nil {
		s.logger.Error("Ошибка получения информации об устройстве", "op", "device_info", "device", device.ID, "error", err)
		return domain.DeviceInfo{}, fmt.Errorf("get device info: %w", err)
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return domain.DeviceInfo{}, ErrClosed
	}
	s.info = info
	s.mutex.Unlock()

	s.logger.Info("Информация об устройстве", "device_id", info.DeviceID, "info", info)
	return info, nil
}

// Start начинает захват в формате PNG на выбранном устройстве.
// Повторный вызов до завершения предыдущего отклоняется с ErrCaptureBusy.
func (s *CaptureService) Start(ctx context.Context) error {
	if s.reader == nil {
		s.logger.Error("Сканер не инициализирован", "op", "start")
		return ErrReaderNotInitialized
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return ErrClosed
	}
	if !s.info.Valid() {
		s.mutex.Unlock()
		s.logger.Error("Нет идентификатора устройства", "op", "start")
		return ErrNoDeviceID
	}
	if s.state != domain.StateIdle {
		state := s.state
		s.mutex.Unlock()
		s.logger.Warn("Захват уже запущен", "op", "start", "state", state)
		return ErrCaptureBusy
	}
	deviceID := s.info.DeviceID
	s.state = domain.StateStarting
	s.mutex.Unlock()

	err := s.reader.StartAcquisition(ctx, domain.FormatPngImage, deviceID)

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		if err == nil {
			// Сервис закрыт, пока шел старт: захват никому не нужен
			s.stopAfterClose(deviceID)
		}
		return ErrClosed
	}
	if err != nil {
		s.state = domain.StateIdle
		s.mutex.Unlock()
		s.logger.Error("Ошибка запуска захвата", "op", "start", "device_id", deviceID, "error", err)
		return fmt.Errorf("start acquisition: %w", err)
	}
	s.state = domain.StateCapturing
	img := s.image
	s.mutex.Unlock()

	s.logger.Info("Захват...", "device_id", deviceID)
	s.notify(img, domain.StateCapturing)
	return nil
}

// Stop останавливает захват и очищает изображение.
// При ошибке изображение остается прежним.
func (s *CaptureService) Stop(ctx context.Context) error {
	if s.reader == nil {
		s.logger.Error("Сканер не инициализирован", "op", "stop")
		return ErrReaderNotInitialized
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return ErrClosed
	}
	if !s.info.Valid() {
		s.mutex.Unlock()
		s.logger.Error("Нет идентификатора устройства", "op", "stop")
		return ErrNoDeviceID
	}
	if s.state != domain.StateCapturing {
		state := s.state
		s.mutex.Unlock()
		s.logger.Warn("Нет активного захвата", "op", "stop", "state", state)
		return ErrNotCapturing
	}
	deviceID := s.info.DeviceID
	s.state = domain.StateStopping
	s.mutex.Unlock()

	err := s.reader.StopAcquisition(ctx, deviceID)

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return ErrClosed
	}
	if err != nil {
		s.state = domain.StateCapturing
		s.mutex.Unlock()
		s.logger.Error("Ошибка остановки захвата", "op", "stop", "device_id", deviceID, "error", err)
		return fmt.Errorf("stop acquisition: %w", err)
	}
	s.image = domain.Image{}
	s.state = domain.StateIdle
	s.mutex.Unlock()

	s.logger.Info("Захват остановлен", "device_id", deviceID)
	s.notify(domain.Image{}, domain.StateIdle)
	return nil
}

// Close снимает подписки и останавливает активный захват.
// Сессию сканера закрывает тот, кто ее создал.
func (s *CaptureService) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	capturing := s.state == domain.StateCapturing
	deviceID := s.info.DeviceID
	s.mutex.Unlock()

	if s.reader == nil {
		return nil
	}

	s.Unsubscribe()

	if capturing {
		s.stopAfterClose(deviceID)
	}
	return nil
}

func (s *CaptureService) stopAfterClose(deviceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.reader.StopAcquisition(ctx, deviceID); err != nil {
		s.logger.Warn("Ошибка остановки захвата при закрытии", "op", "close", "device_id", deviceID, "error", err)
	}
}

// Devices возвращает последний полученный список устройств
func (s *CaptureService) Devices() []domain.Device {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]domain.Device(nil), s.devices...)
}

// Info возвращает информацию о выбранном устройстве
func (s *CaptureService) Info() domain.DeviceInfo {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.info
}

// Image возвращает текущее изображение
func (s *CaptureService) Image() domain.Image {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.image
}

// State возвращает состояние захвата
func (s *CaptureService) State() domain.CaptureState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

func (s *CaptureService) notify(img domain.Image, state domain.CaptureState) {
	s.mutex.Lock()
	observers := append([]Observer(nil), s.observers...)
	s.mutex.Unlock()

	for _, o := range observers {
		o.CaptureUpdated(img, state)
	}
}

func (s *CaptureService) onDeviceConnected(event domain.Event) {
	s.logger.Info("Событие: устройство подключено", "device_id", event.DeviceID)
}

func (s *CaptureService) onDeviceDisconnected(event domain.Event) {
	s.logger.Info("Событие: устройство отключено", "device_id", event.DeviceID)
}

func (s *CaptureService) onAcquisitionStarted(event domain.Event) {
	s.logger.Info("Событие: захват начат", "device_id", event.DeviceID)
}

func (s *CaptureService) onAcquisitionStopped(event domain.Event) {
	s.logger.Info("Событие: захват остановлен", "device_id", event.DeviceID)
}

// onSamplesAcquired показывает первый сэмпл события, остальные игнорируются
func (s *CaptureService) onSamplesAcquired(event domain.Event) {
	s.logger.Debug("Событие: получение изображения", "device_id", event.DeviceID, "samples", len(event.Samples))

	if len(event.Samples) == 0 {
		s.logger.Info("Сэмплы отпечатка не найдены", "op", "samples", "device_id", event.DeviceID)
		return
	}

	url, raw, err := TrustDeviceImage(event.Samples[0])
	if err != nil {
		s.logger.Error("Ошибка декодирования сэмпла", "op", "samples", "device_id", event.DeviceID, "error", err)
		return
	}

	capturedAt := event.Time
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	img := domain.Image{
		ID:         uuid.New(),
		DeviceID:   event.DeviceID,
		PNG:        raw,
		URL:        url,
		CapturedAt: capturedAt,
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}
	s.image = img
	state := s.state
	s.mutex.Unlock()

	s.logger.Info("Изображение отпечатка обновлено", "image_id", img.ID, "bytes", len(raw))
	s.notify(img, state)
}
