package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"syscall"

	"github.com/iammegalith/telnet"
)

// TelnetListener serves the classic MUD transport. Each accepted
// connection is handed to the session manager as a plain io.ReadWriter.
type TelnetListener struct {
	port uint16
	cm   *ConnectionManager
}

func NewTelnetListener(port uint16, cm *ConnectionManager) *TelnetListener {
	return &TelnetListener{
		port: port,
		cm:   cm,
	}
}

func (l *TelnetListener) Start(ctx context.Context) error {
	// One shared context for every accepted connection, so shutdown
	// cancels them all together.
	connCtx, cancelConns := context.WithCancel(context.Background())

	handler := &telnetHandler{
		accept:      l.cm.AcceptConnection,
		connCtx:     connCtx,
		cancelConns: cancelConns,
	}
	svr := telnet.NewServer(fmt.Sprintf(":%d", l.port), handler)

	slog.InfoContext(ctx, "listening for telnet", "port", l.port)

	// done signals that ListenAndServe returned on its own, in which
	// case there is nothing left to stop.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			svr.Stop()
			handler.stop()
		case <-done:
		}
	}()

	if err := svr.ListenAndServe(); err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %d is already in use (another server running?)", l.port)
		}
		return fmt.Errorf("serving telnet on port %d: %w", l.port, err)
	}

	return nil
}

// telnetHandler adapts the telnet library's per-connection callback to
// the session manager's accept loop.
type telnetHandler struct {
	wg          sync.WaitGroup
	accept      func(context.Context, io.ReadWriter)
	connCtx     context.Context
	cancelConns context.CancelFunc
}

func (h *telnetHandler) HandleTelnet(conn *telnet.Connection) {
	h.wg.Add(1)
	defer h.wg.Done()
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("closing telnet connection", "error", err)
		}
	}()

	h.accept(h.connCtx, conn)
}

// stop cancels every live connection and waits for their handlers.
func (h *telnetHandler) stop() {
	h.cancelConns()
	h.wg.Wait()
}
