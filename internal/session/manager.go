package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/driftmark/go-mud/internal/commands"
	"github.com/driftmark/go-mud/internal/driver"
	"github.com/driftmark/go-mud/internal/game"
	"github.com/driftmark/go-mud/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const DefaultIdleTimeout = 15 * time.Minute

// Disengager is the combat surface the session layer needs on teardown.
type Disengager interface {
	Disengage(sessionId string)
}

// Manager owns all live sessions. It implements game.Publisher by writing
// directly to session connections, and driver.Manager to run idle
// bookkeeping on the tick pipeline: a closed connection's session is
// removed here, so it is excluded from the next tick's processing.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	world      *game.World
	chars      storage.Storer[*game.Character]
	races      storage.Storer[*game.Race]
	dispatcher *commands.Dispatcher
	combat     Disengager
	sched      *driver.Scheduler

	idleTimeout time.Duration
	restricted  map[string]struct{}

	titleCaser cases.Caser
}

type ManagerOpt func(*Manager)

func WithIdleTimeout(d time.Duration) ManagerOpt {
	return func(m *Manager) {
		m.idleTimeout = d
	}
}

// WithRestrictedNames adds names that can never be claimed.
func WithRestrictedNames(names []string) ManagerOpt {
	return func(m *Manager) {
		for _, n := range names {
			m.restricted[strings.ToLower(n)] = struct{}{}
		}
	}
}

func NewManager(world *game.World, chars storage.Storer[*game.Character], races storage.Storer[*game.Race], sched *driver.Scheduler, opts ...ManagerOpt) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		world:       world,
		chars:       chars,
		races:       races,
		sched:       sched,
		idleTimeout: DefaultIdleTimeout,
		restricted:  map[string]struct{}{"admin": {}, "system": {}, "all": {}},
		titleCaser:  cases.Title(language.English),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Bind attaches the command dispatcher and combat teardown hook. The
// dispatcher needs this manager as its publisher, so it cannot exist at
// construction time; Bind must be called before the first Open.
func (m *Manager) Bind(dispatcher *commands.Dispatcher, combat Disengager) {
	m.dispatcher = dispatcher
	m.combat = combat
}

// Start blocks until shutdown, then closes every session. Teardown runs
// under the scheduler's sync gate so it cannot interleave with a tick
// still in flight.
func (m *Manager) Start(ctx context.Context) error {
	<-ctx.Done()

	m.mu.RLock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.RUnlock()

	m.sched.Sync(func() {
		for _, s := range open {
			m.CloseSession(s, "The world is shutting down.")
		}
	})
	return nil
}

// Open binds a new session to the given connection and starts the login
// flow. Both connection variants drive the identical code path from here.
func (m *Manager) Open(conn bindable) *Session {
	s := &Session{
		id:           uuid.New().String(),
		conn:         conn,
		mgr:          m,
		state:        StateUsername,
		lastActivity: time.Now(),
	}

	conn.bind(func(line string) {
		// All input funnels through the scheduler's sync gate, so no
		// command ever interleaves with a tick in progress. Output for
		// a line is fully written by the time InjectInput returns.
		m.sched.Sync(func() {
			if s.state != StateClosed {
				s.handleLine(context.Background(), line)
			}
		})
	})

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	s.greet()
	return s
}

// NewVirtualSession opens a session driven by an in-memory scripted
// connection. Returns both so callers can inject input and read output.
func (m *Manager) NewVirtualSession() (*VirtualConn, *Session) {
	conn := NewVirtualConn()
	return conn, m.Open(conn)
}

// Accept runs a real transport connection: it opens a session and pumps
// lines from the transport into it until EOF or shutdown.
func (m *Manager) Accept(ctx context.Context, rw io.ReadWriter) error {
	conn := newRemoteConn(rw)
	s := m.Open(conn)

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(rw)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			m.closeSessionSynced(s, "The world is shutting down.")
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				m.closeSessionSynced(s, "")
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			conn.InjectInput(line)
			if !conn.IsActive() {
				return nil
			}
		}
	}
}

func (m *Manager) closeSessionSynced(s *Session, msg string) {
	m.sched.Sync(func() {
		m.CloseSession(s, msg)
	})
}

// CloseSession tears a session down: engagement removed, character
// persisted and withdrawn from the world, connection closed. Safe to
// call more than once.
func (m *Manager) CloseSession(s *Session, msg string) {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed

	if msg != "" {
		s.writeLine(msg)
	}

	m.combat.Disengage(s.id)

	if s.player != nil {
		s.player.Flags.InCombat = false
		m.world.Persist(s.player.Character)
		if err := m.world.RemovePlayer(s.player.Name); err != nil {
			slog.Warn("removing player from world", "name", s.player.Name, "error", err)
		}
		s.player = nil
	}

	if err := s.conn.Close(); err != nil {
		slog.Debug("closing session connection", "session", s.id, "error", err)
	}

	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()
}

// Tick is the session bookkeeping phase: idle sessions are disconnected
// and sessions whose connections died are cleaned up.
func (m *Manager) Tick(ctx context.Context) error {
	cutoff := time.Now().Add(-m.idleTimeout)

	m.mu.RLock()
	stale := make([]*Session, 0)
	for _, s := range m.sessions {
		if !s.conn.IsActive() || s.lastActivity.Before(cutoff) {
			stale = append(stale, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range stale {
		if s.conn.IsActive() {
			slog.InfoContext(ctx, "disconnecting idle session", "session", s.id)
			m.CloseSession(s, "Disconnected for inactivity.")
		} else {
			m.CloseSession(s, "")
		}
	}

	return nil
}

// Invalidate closes every authenticated session whose character fails the
// keep predicate. The snapshot manager calls this after a load replaces
// character state.
func (m *Manager) Invalidate(keep func(name string) bool) {
	m.mu.RLock()
	doomed := make([]*Session, 0)
	for _, s := range m.sessions {
		if s.player != nil && !keep(s.player.Name) {
			doomed = append(doomed, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range doomed {
		m.CloseSession(s, "Your character no longer exists here.")
	}
}

// PublishToPlayer satisfies game.Publisher.
func (m *Manager) PublishToPlayer(name string, data []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name = strings.ToLower(name)
	for _, s := range m.sessions {
		if s.player != nil && s.player.Name == name {
			s.writeLine(string(data))
			return nil
		}
	}
	return fmt.Errorf("no session for player %q: %w", name, game.ErrNotFound)
}

// PublishToRoom satisfies game.Publisher: the message goes to every
// authenticated session in the room except the excluded player names.
func (m *Manager) PublishToRoom(roomId string, data []byte, exclude ...string) error {
	excluded := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		excluded[strings.ToLower(name)] = struct{}{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sessions {
		if s.player == nil || s.player.Character.RoomId != roomId {
			continue
		}
		if _, skip := excluded[s.player.Name]; skip {
			continue
		}
		s.writeLine(string(data))
	}
	return nil
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// evict closes any other session already authenticated as the character.
func (m *Manager) evict(nameKey string, keep *Session) {
	m.mu.RLock()
	var victim *Session
	for _, s := range m.sessions {
		if s != keep && s.player != nil && s.player.Name == nameKey {
			victim = s
			break
		}
	}
	m.mu.RUnlock()

	if victim != nil {
		m.CloseSession(victim, "Another connection has taken over your session.")
	}
}

func (m *Manager) canonicalName(name string) string {
	return m.titleCaser.String(strings.ToLower(name))
}

func (m *Manager) isRestricted(nameKey string) bool {
	_, ok := m.restricted[nameKey]
	return ok
}

// raceIds returns the selectable race ids in stable order.
func (m *Manager) raceIds() []string {
	ids := make([]string, 0)
	for id := range m.races.GetAll() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
