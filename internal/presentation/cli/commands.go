package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fingerprint-reader/internal/domain"
	"fingerprint-reader/internal/infrastructure/streaming"
	"fingerprint-reader/internal/presentation/web"
)

// ErrCaptureTimeout отпечаток не получен за отведенное время
var ErrCaptureTimeout = errors.New("отпечаток не получен")

func newDevicesCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Показать список подключенных сканеров",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			devices, err := e.service.ListDevices(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Доступные устройства:")
			for i, device := range devices {
				fmt.Fprintf(out, "[%d] %s (%s) %s\n", i, device.Label, device.Kind, device.ID)
			}
			return nil
		},
	}
}

func newInfoCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Показать информацию о первом сканере",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			if _, err := e.service.ListDevices(cmd.Context()); err != nil {
				return err
			}
			info, err := e.service.FetchInfo(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
}

// imageWaiter передает первое непустое изображение в канал
type imageWaiter struct {
	images chan domain.Image
}

func (w *imageWaiter) CaptureUpdated(img domain.Image, state domain.CaptureState) {
	if img.Empty() {
		return
	}
	select {
	case w.images <- img:
	default:
	}
}

func newCaptureCommand(flags *rootFlags) *cobra.Command {
	var (
		outPath string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Снять один отпечаток и сохранить его в PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			waiter := &imageWaiter{images: make(chan domain.Image, 1)}
			e.service.AddObserver(waiter)

			if err := e.service.Init(cmd.Context()); err != nil {
				return err
			}
			if err := e.service.Start(cmd.Context()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintln(cmd.ErrOrStderr(), "Приложите палец к сканеру...")

			var img domain.Image
			select {
			case img = <-waiter.images:
			case <-time.After(timeout):
				err = ErrCaptureTimeout
			case <-ctx.Done():
				err = ctx.Err()
			}

			if stopErr := e.service.Stop(context.WithoutCancel(cmd.Context())); stopErr != nil {
				e.log.Warn("Ошибка остановки захвата", "error", stopErr)
			}
			if err != nil {
				return err
			}

			if err := os.WriteFile(outPath, img.PNG, 0o644); err != nil {
				return fmt.Errorf("запись %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Отпечаток %s сохранен в %s\n", img.ID, outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "fingerprint.png", "файл для сохранения отпечатка")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "сколько ждать отпечаток")

	return cmd
}

func newServeCommand(flags *rootFlags) *cobra.Command {
	var (
		addr       string
		forwardURL string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить веб-страницу сканера",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			if addr != "" {
				e.cfg.Web.Addr = addr
			}
			if forwardURL != "" {
				e.cfg.Forward.URL = forwardURL
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if e.cfg.Forward.URL != "" {
				forwarder, err := streaming.NewWebSocketForwarder(e.cfg.Forward.URL, e.log, e.cfg.Log.Level == "debug")
				if err != nil {
					return fmt.Errorf("адрес сборщика: %w", err)
				}
				e.service.AddObserver(forwarder)
				go forwarder.Run(ctx)
			}

			server := web.NewServer(e.service, e.log)

			// Страница работает и без устройства, список обновляется через /api/devices/refresh
			if err := e.service.Init(ctx); err != nil {
				e.log.Warn("Сканер не готов", "error", err)
			}

			return server.ListenAndServe(ctx, e.cfg.Web.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "адрес веб-страницы (по умолчанию из конфигурации)")
	cmd.Flags().StringVar(&forwardURL, "forward", "", "адрес сборщика снимков ws://host:port/ws")

	return cmd
}
