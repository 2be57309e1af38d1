// Package config загружает конфигурацию сервиса из YAML-файла
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Бэкенды сканера
const (
	BackendCamera = "camera"
	BackendFolder = "folder"
	BackendMock   = "mock"
)

// Config конфигурация сервиса
type Config struct {
	Reader  ReaderConfig  `yaml:"reader"`
	Web     WebConfig     `yaml:"web"`
	Forward ForwardConfig `yaml:"forward"`
	Log     LogConfig     `yaml:"log"`
}

// ReaderConfig параметры сессии сканера
type ReaderConfig struct {
	Backend  string        `yaml:"backend"`  // camera, folder или mock
	Folder   string        `yaml:"folder"`   // Каталог для бэкенда folder
	Interval time.Duration `yaml:"interval"` // Период снятия кадра для camera
	Width    int           `yaml:"width"`    // Максимальная ширина сэмпла
	Height   int           `yaml:"height"`   // Максимальная высота сэмпла
}

// WebConfig параметры веб-страницы
type WebConfig struct {
	Addr string `yaml:"addr"`
}

// ForwardConfig адрес сборщика снимков; пустой адрес отключает пересылку
type ForwardConfig struct {
	URL string `yaml:"url"`
}

// LogConfig параметры логирования
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	return Config{
		Reader: ReaderConfig{
			Backend:  BackendCamera,
			Interval: time.Second,
			Width:    320,
			Height:   400,
		},
		Web: WebConfig{
			Addr: "localhost:8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load читает файл поверх значений по умолчанию. Пустой путь возвращает Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("чтение конфигурации: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		return cfg, fmt.Errorf("некорректная конфигурация: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

// Validate возвращает список ошибок или nil
func (c *Config) Validate() []string {
	var problems []string

	switch c.Reader.Backend {
	case BackendCamera, BackendMock:
	case BackendFolder:
		if c.Reader.Folder == "" {
			problems = append(problems, "reader.folder обязателен для бэкенда folder")
		}
	default:
		problems = append(problems, fmt.Sprintf("неизвестный reader.backend %q (допустимо: camera, folder, mock)", c.Reader.Backend))
	}

	if c.Reader.Interval <= 0 {
		problems = append(problems, "reader.interval должен быть положительным")
	}
	if c.Reader.Width < 0 || c.Reader.Height < 0 {
		problems = append(problems, "reader.width и reader.height не могут быть отрицательными")
	}
	if c.Web.Addr == "" {
		problems = append(problems, "web.addr обязателен")
	}
	if c.Forward.URL != "" && !strings.HasPrefix(c.Forward.URL, "ws://") && !strings.HasPrefix(c.Forward.URL, "wss://") {
		problems = append(problems, "forward.url должен начинаться с ws:// или wss://")
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		problems = append(problems, "log.format должен быть text или json")
	}

	return problems
}
