// Package reader содержит бэкенды сессии со сканером отпечатков
package reader

import (
	"errors"
	"sync"
	"time"

	"fingerprint-reader/internal/application"
	"fingerprint-reader/internal/domain"
)

var (
	// ErrUnsupportedFormat бэкенд умеет отдавать только PNG
	ErrUnsupportedFormat = errors.New("поддерживается только формат PNG")

	// ErrDeviceNotFound устройство с таким ID не найдено
	ErrDeviceNotFound = errors.New("устройство не найдено")
)

// Emitter реестр обработчиков событий, общий для всех бэкендов
type Emitter struct {
	mutex     sync.Mutex
	listeners map[domain.EventType][]application.Listener
}

// On регистрирует обработчик. Повторная регистрация того же значения игнорируется.
func (e *Emitter) On(eventType domain.EventType, l application.Listener) {
	if l == nil {
		return
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[domain.EventType][]application.Listener)
	}
	for _, existing := range e.listeners[eventType] {
		if existing == l {
			return
		}
	}
	e.listeners[eventType] = append(e.listeners[eventType], l)
}

// Off снимает обработчик, зарегистрированный через On
func (e *Emitter) Off(eventType domain.EventType, l application.Listener) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	list := e.listeners[eventType]
	for i, existing := range list {
		if existing == l {
			e.listeners[eventType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Count возвращает число обработчиков события
func (e *Emitter) Count(eventType domain.EventType) int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return len(e.listeners[eventType])
}

// Emit синхронно рассылает событие. Обработчики вызываются без удержания блокировки.
func (e *Emitter) Emit(event domain.Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	e.mutex.Lock()
	list := append([]application.Listener(nil), e.listeners[event.Type]...)
	e.mutex.Unlock()

	for _, l := range list {
		l.HandleEvent(event)
	}
}
