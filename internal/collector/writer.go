// Package collector принимает снимки отпечатков по WebSocket и сохраняет их в PNG-файлы
package collector

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// SampleWriter сохраняет каждый снимок в отдельный файл
type SampleWriter struct {
	mutex sync.Mutex
	dir   string
	count int
	now   func() time.Time
}

// NewSampleWriter создает writer, при необходимости создавая директорию
func NewSampleWriter(outputDir string) (*SampleWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию: %w", err)
	}
	return &SampleWriter{
		dir: outputDir,
		now: time.Now,
	}, nil
}

// Write проверяет, что данные являются изображением, и записывает их в
// fingerprint_<timestamp>_<n>.png. Возвращает путь к файлу.
func (w *SampleWriter) Write(data []byte) (string, error) {
	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("снимок не является изображением: %w", err)
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.count++
	timestamp := w.now().Format("2006-01-02_15-04-05")
	path := filepath.Join(w.dir, fmt.Sprintf("fingerprint_%s_%d.png", timestamp, w.count))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		w.count--
		return "", fmt.Errorf("не удалось записать файл: %w", err)
	}
	return path, nil
}

// Count возвращает число сохраненных снимков
func (w *SampleWriter) Count() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.count
}

// Dir возвращает директорию для снимков
func (w *SampleWriter) Dir() string {
	return w.dir
}
