package collector

import (
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"fingerprint-reader/internal/application"
)

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>Сборщик отпечатков</title>
	<style>
		body { font-family: Arial, sans-serif; margin: 40px; }
		.status { padding: 20px; background-color: #e0f7fa; border-radius: 5px; }
	</style>
</head>
<body>
	<h1>Сборщик отпечатков</h1>
	<div class="status">
		<p>Сервер запущен и принимает соединения</p>
		<p>Директория для снимков: <code>{{.Dir}}</code></p>
		<p>Сохранено снимков: {{.Count}}</p>
	</div>
</body>
</html>
`))

// Server принимает снимки от сканеров
type Server struct {
	writer   *SampleWriter
	logger   application.Logger
	upgrader websocket.Upgrader
	router   *mux.Router
}

// NewServer создает сервер сборщика
func NewServer(writer *SampleWriter, logger application.Logger) *Server {
	s := &Server{
		writer: writer,
		logger: logger,
		upgrader: websocket.Upgrader{
			// Сканеры подключаются не из браузера
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleStatus).Methods(http.MethodGet)
	s.router = r
	return s
}

// Handler возвращает http.Handler сборщика
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Ошибка при апгрейде до WebSocket", "error", err)
		return
	}
	defer conn.Close()

	clientAddr := conn.RemoteAddr().String()
	s.logger.Info("Клиент подключен", "addr", clientAddr)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Ошибка чтения", "addr", clientAddr, "error", err)
			}
			break
		}

		// Снимки приходят только бинарными сообщениями
		if messageType != websocket.BinaryMessage {
			continue
		}

		path, err := s.writer.Write(message)
		if err != nil {
			s.logger.Error("Ошибка записи снимка", "addr", clientAddr, "error", err)
			continue
		}
		s.logger.Info("Снимок сохранен", "path", path, "bytes", len(message))
	}

	s.logger.Info("Клиент отключен", "addr", clientAddr)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Dir   string
		Count int
	}{s.writer.Dir(), s.writer.Count()}

	if err := statusPage.Execute(w, data); err != nil {
		s.logger.Error("Ошибка отрисовки страницы", "error", err)
	}
}
