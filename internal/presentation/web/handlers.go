package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"fingerprint-reader/internal/application"
	"fingerprint-reader/internal/domain"
)

// pageData данные для шаблона страницы
type pageData struct {
	Devices []domain.Device
	Info    domain.DeviceInfo
	Image   domain.Image
	State   domain.CaptureState
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Devices: s.service.Devices(),
		Info:    s.service.Info(),
		Image:   s.service.Image(),
		State:   s.service.State(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, data); err != nil {
		s.logger.Error("Ошибка отрисовки страницы", "error", err)
	}
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.service.Devices()
	if devices == nil {
		devices = []domain.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.ListDevices(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.service.FetchInfo(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Info())
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	info := s.service.Info()
	if !info.Valid() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": application.ErrNoDeviceID.Error()})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateMessage(s.service.Image(), s.service.State()))
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	img := s.service.Image()
	if img.Empty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img.PNG)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Start(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateMessage(s.service.Image(), s.service.State()))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Stop(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateMessage(s.service.Image(), s.service.State()))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Ошибка установки WebSocket", "error", err)
		return
	}

	initial, err := json.Marshal(stateMessage(s.service.Image(), s.service.State()))
	if err != nil {
		conn.Close()
		return
	}
	s.hub.serve(conn, initial)
}

// writeError переводит ошибку сервиса в HTTP-статус
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, application.ErrCaptureBusy), errors.Is(err, application.ErrNotCapturing):
		status = http.StatusConflict
	case errors.Is(err, application.ErrNoDeviceID), errors.Is(err, application.ErrNoDevices):
		status = http.StatusPreconditionFailed
	case errors.Is(err, application.ErrReaderNotInitialized), errors.Is(err, application.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
