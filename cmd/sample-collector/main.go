// Команда sample-collector принимает снимки отпечатков от fingerprint-reader
// и сохраняет их в директорию
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fingerprint-reader/internal/collector"
	"fingerprint-reader/internal/infrastructure/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		port      int
		outputDir string
		debug     bool
	)

	cmd := &cobra.Command{
		Use:          "sample-collector",
		Short:        "Сохраняет снимки отпечатков, присланные по WebSocket",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := "info"
			if debug {
				level = "debug"
			}
			log := logger.New(logger.Options{Level: level})

			writer, err := collector.NewSampleWriter(outputDir)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, fmt.Sprintf(":%d", port), collector.NewServer(writer, log).Handler(), log)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "порт для запуска сервера")
	cmd.Flags().StringVar(&outputDir, "output", "samples", "директория для сохранения снимков")
	cmd.Flags().BoolVar(&debug, "debug", false, "включить отладочные сообщения")

	return cmd
}

func serve(ctx context.Context, addr string, handler http.Handler, log *logger.SlogLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Запуск сервера", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Прерывание получено, закрытие...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
