// Package web отдает страницу со снимком отпечатка и API управления захватом
package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"fingerprint-reader/internal/application"
	"fingerprint-reader/internal/domain"
)

// StateMessage состояние захвата для страницы и API
type StateMessage struct {
	State    domain.CaptureState `json:"state"`
	DeviceID string              `json:"device_id,omitempty"`
	ImageID  string              `json:"image_id,omitempty"`
	Image    template.URL        `json:"image"`
}

// Server веб-страница сканера
type Server struct {
	service  *application.CaptureService
	logger   application.Logger
	router   *mux.Router
	hub      *Hub
	upgrader websocket.Upgrader
	page     *template.Template
}

var _ application.Observer = (*Server)(nil)

// NewServer создает сервер и подписывает его на изменения захвата
func NewServer(service *application.CaptureService, logger application.Logger) *Server {
	s := &Server{
		service: service,
		logger:  logger,
		hub:     NewHub(logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: sameOrigin,
		},
		page: template.Must(template.New("index").Parse(indexTemplate)),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/devices", s.handleDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/device", s.handleDevice).Methods(http.MethodGet)
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/image", s.handleImage).Methods(http.MethodGet)
	api.HandleFunc("/capture/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/capture/stop", s.handleStop).Methods(http.MethodPost)

	s.router = r
	service.AddObserver(s)
	return s
}

// Handler возвращает http.Handler сервера
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub возвращает хаб рассылки
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe запускает сервер до отмены контекста
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Веб-страница сканера", "url", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// CaptureUpdated рассылает новое состояние всем клиентам страницы
func (s *Server) CaptureUpdated(img domain.Image, state domain.CaptureState) {
	if err := s.hub.BroadcastJSON(stateMessage(img, state)); err != nil {
		s.logger.Error("Ошибка рассылки состояния", "error", err)
	}
}

func stateMessage(img domain.Image, state domain.CaptureState) StateMessage {
	msg := StateMessage{
		State:    state,
		DeviceID: img.DeviceID,
		Image:    img.URL,
	}
	if !img.Empty() {
		msg.ImageID = img.ID.String()
	}
	return msg
}

// sameOrigin пропускает запросы без Origin и с Origin того же хоста
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
