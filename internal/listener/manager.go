package listener

import (
	"context"
	"io"
	"log/slog"

	"github.com/driftmark/go-mud/internal/session"
)

type ConnectionManager struct {
	sm *session.Manager
}

func NewConnectionManager(sm *session.Manager) *ConnectionManager {
	return &ConnectionManager{
		sm: sm,
	}
}

func (m *ConnectionManager) AcceptConnection(ctx context.Context, conn io.ReadWriter) {
	if err := m.sm.Accept(ctx, conn); err != nil {
		slog.WarnContext(ctx, "player session", "error", err)
	}
}
