// Package camera реализует сессию сканера поверх видеоустройств mediadevices.
// Многие оптические сканеры отпечатков видны системе как обычная UVC-камера.
package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // Регистрируем драйвер камеры
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	"fingerprint-reader/internal/application"
	"fingerprint-reader/internal/domain"
	"fingerprint-reader/internal/infrastructure/reader"
)

// Options параметры захвата
type Options struct {
	Width    int           // Максимальная ширина сэмпла
	Height   int           // Максимальная высота сэмпла
	Interval time.Duration // Период снятия кадра
}

// Reader сессия сканера на базе mediadevices
type Reader struct {
	reader.Emitter

	opts     Options
	logger   application.Logger
	sessions map[string]*session
	mutex    sync.Mutex
}

// session активный захват одного устройства
type session struct {
	track  io.Closer
	frames video.Reader
	cancel context.CancelFunc
	done   chan struct{}
}

var _ application.Reader = (*Reader)(nil)

// NewReader создает сессию сканера
func NewReader(opts Options, logger application.Logger) *Reader {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	return &Reader{
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// EnumerateDevices возвращает видеоустройства, доступные для захвата
func (r *Reader) EnumerateDevices(ctx context.Context) ([]domain.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	devices := mediadevices.EnumerateDevices()
	result := make([]domain.Device, 0, len(devices))

	for _, device := range devices {
		if device.Kind != mediadevices.VideoInput {
			continue
		}
		result = append(result, domain.Device{
			ID:    device.DeviceID,
			Label: device.Label,
			Kind:  "camera",
		})
	}

	return result, nil
}

// GetDeviceInfo возвращает информацию об устройстве
func (r *Reader) GetDeviceInfo(ctx context.Context, device domain.Device) (domain.DeviceInfo, error) {
	devices, err := r.EnumerateDevices(ctx)
	if err != nil {
		return domain.DeviceInfo{}, err
	}

	for _, d := range devices {
		if d.ID != device.ID {
			continue
		}
		return domain.DeviceInfo{
			DeviceID:   d.ID,
			UIDType:    domain.UIDVolatile,
			Modality:   domain.ModalityArea,
			Technology: domain.TechnologyOptical,
			Label:      d.Label,
		}, nil
	}

	return domain.DeviceInfo{}, fmt.Errorf("%w: %s", reader.ErrDeviceNotFound, device.ID)
}

// StartAcquisition открывает устройство и начинает периодически снимать кадры
func (r *Reader) StartAcquisition(ctx context.Context, format domain.SampleFormat, deviceID string) error {
	if format != domain.FormatPngImage {
		return reader.ErrUnsupportedFormat
	}

	r.mutex.Lock()
	if _, ok := r.sessions[deviceID]; ok {
		r.mutex.Unlock()
		return nil
	}

	track, err := r.openTrack(deviceID)
	if err != nil {
		r.mutex.Unlock()
		return err
	}

	videoTrack, ok := track.(*mediadevices.VideoTrack)
	if !ok {
		r.mutex.Unlock()
		track.Close()
		return fmt.Errorf("трек %s не является видеотреком", track.ID())
	}

	r.runSession(deviceID, track, videoTrack.NewReader(false))
	r.mutex.Unlock()

	r.logger.Info("Используется камера", "device_id", deviceID, "track", track.ID())
	r.Emit(domain.Event{Type: domain.EventAcquisitionStarted, DeviceID: deviceID})
	return nil
}

// StopAcquisition останавливает захват. Повторная остановка не является ошибкой.
func (r *Reader) StopAcquisition(ctx context.Context, deviceID string) error {
	r.mutex.Lock()
	s, ok := r.sessions[deviceID]
	delete(r.sessions, deviceID)
	r.mutex.Unlock()

	if !ok {
		return nil
	}

	// Закрытие трека прерывает заблокированный Read в captureLoop
	s.cancel()
	if err := s.track.Close(); err != nil {
		r.logger.Error("Ошибка закрытия трека", "device_id", deviceID, "error", err)
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.Emit(domain.Event{Type: domain.EventAcquisitionStopped, DeviceID: deviceID})
	return nil
}

// Close останавливает все активные захваты
func (r *Reader) Close() error {
	r.mutex.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mutex.Unlock()

	var errs []error
	for _, id := range ids {
		if err := r.StopAcquisition(context.Background(), id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runSession регистрирует захват и запускает цикл снятия кадров.
// Вызывается под r.mutex.
func (r *Reader) runSession(deviceID string, track io.Closer, frames video.Reader) {
	loopCtx, cancel := context.WithCancel(context.Background())
	s := &session{
		track:  track,
		frames: frames,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.sessions[deviceID] = s
	go r.captureLoop(loopCtx, deviceID, s)
}

// openTrack открывает видеотрек устройства
func (r *Reader) openTrack(deviceID string) (mediadevices.Track, error) {
	constraints := mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			// Задаем предпочтительные параметры, но не строгие
			if r.opts.Width > 0 && r.opts.Height > 0 {
				c.Width = prop.Int(int32(r.opts.Width))
				c.Height = prop.Int(int32(r.opts.Height))
			}
			c.DeviceID = prop.String(deviceID)
		},
	}

	mediaStream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		r.logger.Warn("Ошибка с исходными ограничениями, пробуем минимальные", "device_id", deviceID, "error", err)

		constraints = mediadevices.MediaStreamConstraints{
			Video: func(c *mediadevices.MediaTrackConstraints) {
				c.DeviceID = prop.String(deviceID)
			},
		}

		mediaStream, err = mediadevices.GetUserMedia(constraints)
		if err != nil {
			return nil, fmt.Errorf("не удалось получить доступ к устройству: %w", err)
		}
	}

	videoTracks := mediaStream.GetVideoTracks()
	if len(videoTracks) == 0 {
		return nil, errors.New("видеотрек не обнаружен")
	}
	return videoTracks[0], nil
}

// captureLoop снимает кадр раз в Interval и отправляет его как сэмпл
func (r *Reader) captureLoop(ctx context.Context, deviceID string, s *session) {
	defer close(s.done)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, release, err := s.frames.Read()
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Error("Ошибка чтения кадра", "device_id", deviceID, "error", err)
				}
				return
			}
			if ctx.Err() != nil {
				release()
				return
			}

			data, err := EncodeSample(frame, r.opts.Width, r.opts.Height)
			release()
			if err != nil {
				r.logger.Error("Ошибка кодирования кадра", "device_id", deviceID, "error", err)
				continue
			}

			r.Emit(domain.Event{
				Type:     domain.EventSamplesAcquired,
				DeviceID: deviceID,
				Format:   domain.FormatPngImage,
				Samples:  []domain.Sample{{Data: data, Origin: domain.OriginDevice}},
			})
		}
	}
}

// EncodeSample переводит кадр в оттенки серого, вписывает в width x height
// и кодирует в PNG, представленный URL-safe base64
func EncodeSample(frame image.Image, width, height int) (string, error) {
	gray := imaging.Grayscale(frame)

	var img image.Image = gray
	if width > 0 && height > 0 {
		img = imaging.Fit(gray, width, height, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}
