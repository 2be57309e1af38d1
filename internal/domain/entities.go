package domain

import (
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"
)

// Device представляет дескриптор сканера, полученный при перечислении
type Device struct {
	ID    string `json:"id"`    // Уникальный идентификатор устройства
	Label string `json:"label"` // Человекочитаемое имя устройства
	Kind  string `json:"kind"`  // Тип устройства в терминах бэкенда
}

// DeviceInfo содержит метаданные выбранного сканера
type DeviceInfo struct {
	DeviceID   string           `json:"DeviceID"`
	UIDType    DeviceUIDType    `json:"eUidType"`
	Modality   DeviceModality   `json:"eDeviceModality"`
	Technology DeviceTechnology `json:"eDeviceTech"`
	Label      string           `json:"label,omitempty"`
}

// Valid сообщает, содержит ли запись идентификатор устройства
func (i DeviceInfo) Valid() bool {
	return i.DeviceID != ""
}

// DeviceUIDType тип идентификатора устройства
type DeviceUIDType int

const (
	UIDPersistent DeviceUIDType = iota
	UIDVolatile
)

// DeviceModality способ снятия отпечатка
type DeviceModality int

const (
	ModalityUnknown DeviceModality = iota
	ModalitySwipe
	ModalityArea
	ModalitySwipeAndArea
)

// DeviceTechnology технология сенсора
type DeviceTechnology int

const (
	TechnologyUnknown DeviceTechnology = iota
	TechnologyOptical
	TechnologyCapacitive
	TechnologyThermal
	TechnologyPressure
)

// SampleFormat формат сэмплов, запрашиваемый при старте захвата.
// Значения совпадают с перечислением SDK производителя.
type SampleFormat int

const (
	FormatRaw          SampleFormat = 1
	FormatIntermediate SampleFormat = 2
	FormatCompressed   SampleFormat = 3
	FormatPngImage     SampleFormat = 5
)

// String возвращает имя формата
func (f SampleFormat) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatIntermediate:
		return "intermediate"
	case FormatCompressed:
		return "compressed"
	case FormatPngImage:
		return "png"
	default:
		return "unknown"
	}
}

// SampleOrigin источник полезной нагрузки сэмпла
type SampleOrigin int

const (
	// OriginNetwork строка пришла извне (HTTP, WebSocket и т.п.)
	OriginNetwork SampleOrigin = iota
	// OriginDevice сэмпл получен от локального сканера
	OriginDevice
)

// Sample один снятый отпечаток
type Sample struct {
	Data   string       // Изображение в URL-safe base64
	Origin SampleOrigin // Откуда пришли данные
}

// EventType имя события сканера
type EventType string

const (
	EventDeviceConnected    EventType = "DeviceConnected"
	EventDeviceDisconnected EventType = "DeviceDisconnected"
	EventAcquisitionStarted EventType = "AcquisitionStarted"
	EventAcquisitionStopped EventType = "AcquisitionStopped"
	EventSamplesAcquired    EventType = "SamplesAcquired"
)

// EventTypes перечисляет все события, на которые подписывается сервис
var EventTypes = []EventType{
	EventDeviceConnected,
	EventDeviceDisconnected,
	EventAcquisitionStarted,
	EventAcquisitionStopped,
	EventSamplesAcquired,
}

// Event событие, отправляемое бэкендом сканера
type Event struct {
	Type     EventType
	DeviceID string
	Format   SampleFormat // Только для SamplesAcquired
	Samples  []Sample     // Только для SamplesAcquired
	Time     time.Time
}

// CaptureState состояние захвата
type CaptureState int

const (
	StateIdle CaptureState = iota
	StateStarting
	StateCapturing
	StateStopping
)

// String возвращает имя состояния
func (s CaptureState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateCapturing:
		return "capturing"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// MarshalText позволяет сериализовать состояние строкой
func (s CaptureState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText разбирает имя состояния
func (s *CaptureState) UnmarshalText(text []byte) error {
	for _, candidate := range []CaptureState{StateIdle, StateStarting, StateCapturing, StateStopping} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("неизвестное состояние захвата: %q", text)
}

// Image отображаемая ссылка на изображение отпечатка.
// Нулевое значение означает пустую ссылку.
type Image struct {
	ID         uuid.UUID    // Идентификатор снимка
	DeviceID   string       // Устройство, с которого снят отпечаток
	PNG        []byte       // Декодированные байты изображения
	URL        template.URL // data URI, прошедший границу доверия
	CapturedAt time.Time
}

// Empty сообщает, что ссылка пустая
func (img Image) Empty() bool {
	return img.URL == ""
}
