package application

import (
	"context"

	"fingerprint-reader/internal/domain"
)

// Listener получатель событий сканера.
// Сравнивается по значению, поэтому Off снимает ровно тот обработчик, что был передан в On.
type Listener interface {
	HandleEvent(event domain.Event)
}

// Reader интерфейс сессии со сканером отпечатков (SDK производителя)
type Reader interface {
	// On регистрирует обработчик события
	On(eventType domain.EventType, listener Listener)

	// Off снимает ранее зарегистрированный обработчик
	Off(eventType domain.EventType, listener Listener)

	// EnumerateDevices возвращает список подключенных сканеров
	EnumerateDevices(ctx context.Context) ([]domain.Device, error)

	// GetDeviceInfo возвращает метаданные устройства
	GetDeviceInfo(ctx context.Context, device domain.Device) (domain.DeviceInfo, error)

	// StartAcquisition начинает захват в указанном формате
	StartAcquisition(ctx context.Context, format domain.SampleFormat, deviceID string) error

	// StopAcquisition останавливает захват
	StopAcquisition(ctx context.Context, deviceID string) error
}

// Observer получает каждое изменение изображения или состояния захвата.
// Пустое изображение означает, что захват остановлен.
type Observer interface {
	CaptureUpdated(img domain.Image, state domain.CaptureState)
}

// Logger интерфейс для структурированного логирования
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
