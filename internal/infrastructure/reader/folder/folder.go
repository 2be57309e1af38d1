// Package folder реализует сессию сканера поверх каталога, в который внешняя
// утилита сканера складывает снимки. Каталог считается одним устройством.
package folder

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"fingerprint-reader/internal/application"
	"fingerprint-reader/internal/domain"
	"fingerprint-reader/internal/infrastructure/reader"
)

// Reader сессия сканера, следящая за каталогом
type Reader struct {
	reader.Emitter

	dir       string
	deviceID  string
	logger    application.Logger
	watcher   *fsnotify.Watcher
	acquiring bool
	mutex     sync.Mutex
	// handling удерживается на время обработки события каталога.
	// Обработчики событий не должны вызывать StopAcquisition синхронно.
	handling sync.Mutex
	done      chan struct{}
}

var _ application.Reader = (*Reader)(nil)

// DeviceID возвращает идентификатор устройства для каталога.
// Он стабилен между запусками, так как строится из абсолютного пути.
func DeviceID(absDir string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+absDir)).String()
}

// NewReader начинает следить за каталогом.
// Вызывающий обязан вызвать Close.
func NewReader(dir string, logger application.Logger) (*Reader, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("определение пути %s: %w", dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s не является каталогом", abs)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("создание наблюдателя: %w", err)
	}
	if err := watcher.Add(abs); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("наблюдение за %s: %w", abs, err)
	}

	r := &Reader{
		dir:      abs,
		deviceID: DeviceID(abs),
		logger:   logger,
		watcher:  watcher,
		done:     make(chan struct{}),
	}
	go r.watch()

	logger.Info("Наблюдение за каталогом снимков", "dir", abs, "device_id", r.deviceID)
	return r, nil
}

// EnumerateDevices возвращает каталог как единственное устройство, пока он существует
func (r *Reader) EnumerateDevices(ctx context.Context) ([]domain.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(r.dir); err != nil {
		return []domain.Device{}, nil
	}
	return []domain.Device{{ID: r.deviceID, Label: r.dir, Kind: "folder"}}, nil
}

// GetDeviceInfo возвращает информацию об устройстве
func (r *Reader) GetDeviceInfo(ctx context.Context, device domain.Device) (domain.DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.DeviceInfo{}, err
	}
	if device.ID != r.deviceID {
		return domain.DeviceInfo{}, fmt.Errorf("%w: %s", reader.ErrDeviceNotFound, device.ID)
	}
	return domain.DeviceInfo{
		DeviceID:   r.deviceID,
		UIDType:    domain.UIDPersistent,
		Modality:   domain.ModalityArea,
		Technology: domain.TechnologyUnknown,
		Label:      r.dir,
	}, nil
}

// StartAcquisition начинает отдавать новые файлы каталога как сэмплы
func (r *Reader) StartAcquisition(ctx context.Context, format domain.SampleFormat, deviceID string) error {
	if format != domain.FormatPngImage {
		return reader.ErrUnsupportedFormat
	}
	if deviceID != r.deviceID {
		return fmt.Errorf("%w: %s", reader.ErrDeviceNotFound, deviceID)
	}

	r.mutex.Lock()
	r.acquiring = true
	r.mutex.Unlock()

	r.Emit(domain.Event{Type: domain.EventAcquisitionStarted, DeviceID: deviceID})
	return nil
}

// StopAcquisition перестает отдавать сэмплы и дожидается файла, обработка
// которого уже началась. Повторная остановка не является ошибкой.
func (r *Reader) StopAcquisition(ctx context.Context, deviceID string) error {
	if deviceID != r.deviceID {
		return fmt.Errorf("%w: %s", reader.ErrDeviceNotFound, deviceID)
	}

	r.handling.Lock()
	r.mutex.Lock()
	was := r.acquiring
	r.acquiring = false
	r.mutex.Unlock()
	r.handling.Unlock()

	if was {
		r.Emit(domain.Event{Type: domain.EventAcquisitionStopped, DeviceID: deviceID})
	}
	return nil
}

// Close останавливает наблюдение за каталогом
func (r *Reader) Close() error {
	err := r.watcher.Close()
	<-r.done
	return err
}

func (r *Reader) watch() {
	defer close(r.done)

	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			r.handle(ev)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("Ошибка наблюдения за каталогом", "dir", r.dir, "error", err)
		}
	}
}

func (r *Reader) handle(ev fsnotify.Event) {
	r.handling.Lock()
	defer r.handling.Unlock()

	if ev.Name == r.dir {
		if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			r.Emit(domain.Event{Type: domain.EventDeviceDisconnected, DeviceID: r.deviceID})
		}
		return
	}

	// Файлы нужно класть атомарно (запись во временный файл и rename),
	// поэтому достаточно события Create
	if ev.Op&fsnotify.Create == 0 || !isImage(ev.Name) {
		return
	}

	r.mutex.Lock()
	acquiring := r.acquiring
	r.mutex.Unlock()
	if !acquiring {
		return
	}

	data, err := LoadSample(ev.Name)
	if err != nil {
		r.logger.Error("Ошибка чтения снимка", "file", ev.Name, "error", err)
		return
	}

	r.Emit(domain.Event{
		Type:     domain.EventSamplesAcquired,
		DeviceID: r.deviceID,
		Format:   domain.FormatPngImage,
		Samples:  []domain.Sample{{Data: data, Origin: domain.OriginDevice}},
	})
}

// LoadSample читает изображение, перекодирует его в PNG и возвращает в URL-safe base64
func LoadSample(path string) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
