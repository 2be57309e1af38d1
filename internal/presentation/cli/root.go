// Package cli реализует команды fingerprint-reader на cobra.
//
// Корневая команда загружает конфигурацию, создает логгер и сессию сканера;
// подкоманды devices, info, capture и serve работают через CaptureService.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fingerprint-reader/internal/application"
	"fingerprint-reader/internal/config"
	"fingerprint-reader/internal/infrastructure/logger"
	"fingerprint-reader/internal/infrastructure/reader"
	"fingerprint-reader/internal/infrastructure/reader/camera"
	"fingerprint-reader/internal/infrastructure/reader/folder"
)

// Version задается при сборке через ldflags
var Version = "dev"

// rootFlags глобальные флаги, общие для всех подкоманд
type rootFlags struct {
	configPath string
	debug      bool
	backend    string
	folder     string
}

// Session сессия сканера, которую нужно закрыть после работы
type Session interface {
	application.Reader
	io.Closer
}

// NewRootCommand создает корневую команду со всеми подкомандами
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "fingerprint-reader",
		Short: "Сканер отпечатков: перечисление устройств, захват и веб-страница",
		Long: `fingerprint-reader подключается к сканеру отпечатков, запускает захват
и показывает снятое изображение на веб-странице.

Бэкенд сканера выбирается в конфигурации или флагом --backend:
  camera  оптический сканер, видимый как видеоустройство
  folder  каталог, в который другой процесс кладет снимки
  mock    встроенный демонстрационный сканер`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "путь к YAML-файлу конфигурации")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "включить отладочные сообщения")
	rootCmd.PersistentFlags().StringVar(&flags.backend, "backend", "", "бэкенд сканера: camera, folder, mock")
	rootCmd.PersistentFlags().StringVar(&flags.folder, "folder", "", "каталог для бэкенда folder")

	rootCmd.AddCommand(newDevicesCommand(flags))
	rootCmd.AddCommand(newInfoCommand(flags))
	rootCmd.AddCommand(newCaptureCommand(flags))
	rootCmd.AddCommand(newServeCommand(flags))

	return rootCmd
}

// Execute запускает команду и завершает процесс с кодом 1 при ошибке
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig читает файл конфигурации и применяет флаги поверх него
func loadConfig(flags *rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return cfg, err
	}

	if flags.debug {
		cfg.Log.Level = "debug"
	}
	if flags.backend != "" {
		cfg.Reader.Backend = flags.backend
	}
	if flags.folder != "" {
		cfg.Reader.Folder = flags.folder
		if flags.backend == "" {
			cfg.Reader.Backend = config.BackendFolder
		}
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		return cfg, fmt.Errorf("некорректная конфигурация: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

// openSession создает сессию сканера для выбранного бэкенда
func openSession(cfg config.Config, log application.Logger) (Session, error) {
	switch cfg.Reader.Backend {
	case config.BackendCamera:
		return camera.NewReader(camera.Options{
			Width:    cfg.Reader.Width,
			Height:   cfg.Reader.Height,
			Interval: cfg.Reader.Interval,
		}, log), nil
	case config.BackendFolder:
		return folder.NewReader(cfg.Reader.Folder, log)
	case config.BackendMock:
		return reader.NewDemoMock()
	default:
		return nil, fmt.Errorf("неизвестный бэкенд %q", cfg.Reader.Backend)
	}
}

// env окружение одной команды: конфигурация, логгер, сессия и сервис
type env struct {
	cfg     config.Config
	log     *logger.SlogLogger
	session Session
	service *application.CaptureService
}

// setup готовит окружение команды. Логи пишутся в stderr команды.
func setup(cmd *cobra.Command, flags *rootFlags) (*env, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})

	session, err := openSession(cfg, log.With("backend", cfg.Reader.Backend))
	if err != nil {
		return nil, fmt.Errorf("открытие сессии сканера: %w", err)
	}

	return &env{
		cfg:     cfg,
		log:     log,
		session: session,
		service: application.NewCaptureService(session, log),
	}, nil
}

// Close закрывает сервис, затем сессию сканера
func (e *env) Close() {
	e.service.Close()
	if err := e.session.Close(); err != nil {
		e.log.Warn("Ошибка закрытия сессии сканера", "error", err)
	}
}
