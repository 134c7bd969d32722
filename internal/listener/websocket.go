package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebsocketListener serves the game over websocket text frames. Each
// inbound frame is treated as one input line; each write becomes one
// outbound frame.
type WebsocketListener struct {
	port uint16
	cm   *ConnectionManager
}

func NewWebsocketListener(port uint16, cm *ConnectionManager) *WebsocketListener {
	return &WebsocketListener{
		port: port,
		cm:   cm,
	}
}

func (l *WebsocketListener) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/play", l.handleWS(ctx))

	svr := &http.Server{
		Addr:    fmt.Sprintf(":%d", l.port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		svr.Shutdown(context.Background())
	}()

	slog.InfoContext(ctx, "listening for websocket", "port", l.port)

	err := svr.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket on port %d: %w", l.port, err)
	}
	return nil
}

func (l *WebsocketListener) handleWS(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.ErrorContext(ctx, "websocket upgrade", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer conn.Close()

		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		l.cm.AcceptConnection(ctx, newWebsocketReadWriter(conn))
	}
}

// wsReadWriter adapts a websocket connection to the line-oriented
// io.ReadWriter the session layer expects.
type wsReadWriter struct {
	conn *websocket.Conn
	buf  []byte
}

func newWebsocketReadWriter(conn *websocket.Conn) io.ReadWriter {
	return &wsReadWriter{conn: conn}
}

func (w *wsReadWriter) Read(p []byte) (int, error) {
	for len(w.buf) == 0 {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		if mt != websocket.TextMessage {
			continue
		}
		// Frame boundaries stand in for newlines
		w.buf = append(data, '\n')
	}
	n := copy(p, w.buf)
	w.buf = w.buf[n:]
	return n, nil
}

func (w *wsReadWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
