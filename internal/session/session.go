package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/driftmark/go-mud/internal/commands"
	"github.com/driftmark/go-mud/internal/game"
	"golang.org/x/crypto/bcrypt"
)

// State is the session's authentication state. Within StatePlaying the
// orthogonal game.SessionFlags gate command legality.
type State int

const (
	StateUsername State = iota
	StateLoginPassword
	StateSignupPassword
	StateSignupConfirmPassword
	StateSignupRace
	StateSignupConfirm
	StatePlaying
	StateClosed
)

const (
	minNameLength    = 3
	maxNameLength    = 12
	maxPasswordTries = 3
)

// Session is one actor's connection-bound state machine. All input lines
// arrive through the bound connection's InjectInput and are processed
// under the scheduler's sync gate, one at a time.
type Session struct {
	id   string
	conn Conn
	mgr  *Manager

	state         State
	passwordTries int

	// signup scratch state; discarded on completion or failure
	pendingName string
	pendingPass string
	pendingRace string
	raceIds     []string

	player       *game.PlayerState
	lastActivity time.Time
	quit         bool
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the session's current authentication state.
func (s *Session) State() State {
	return s.state
}

// SessionID satisfies commands.Actor.
func (s *Session) SessionID() string {
	return s.id
}

// Player satisfies commands.Actor. Nil until authenticated.
func (s *Session) Player() *game.PlayerState {
	return s.player
}

// Write satisfies commands.Actor: one message line to the connection.
func (s *Session) Write(msg string) {
	s.writeLine(msg)
}

// RequestQuit satisfies commands.Actor.
func (s *Session) RequestQuit() {
	s.quit = true
}

func (s *Session) writeLine(msg string) {
	if _, err := s.conn.Write([]byte(msg + "\n")); err != nil {
		slog.Debug("writing to session", "session", s.id, "error", err)
	}
}

func (s *Session) prompt() {
	p := "> "
	if s.player != nil {
		char := s.player.Character
		p = fmt.Sprintf("[%d/%dHP %d/%dMP] > ", char.CurrentHP, char.MaxHP, char.Mana, char.MaxMana)
	}
	if _, err := s.conn.Write([]byte(p)); err != nil {
		slog.Debug("writing prompt", "session", s.id, "error", err)
	}
}

func (s *Session) greet() {
	s.writeLine("Welcome to Driftmark!")
	s.conn.Write([]byte("By what name do you wish to be known? "))
}

// handleLine advances the state machine by one input line. Invalid input
// in a sub-flow re-prompts without transitioning.
func (s *Session) handleLine(ctx context.Context, line string) {
	s.lastActivity = time.Now()
	line = strings.TrimSpace(line)

	switch s.state {
	case StateUsername:
		s.handleUsername(line)
	case StateLoginPassword:
		s.handleLoginPassword(line)
	case StateSignupPassword:
		s.handleSignupPassword(line)
	case StateSignupConfirmPassword:
		s.handleSignupConfirmPassword(line)
	case StateSignupRace:
		s.handleSignupRace(line)
	case StateSignupConfirm:
		s.handleSignupConfirm(ctx, line)
	case StatePlaying:
		s.handleCommand(ctx, line)
	case StateClosed:
		// Input after close is dropped.
	}
}

func validName(name string) bool {
	if len(name) < minNameLength || len(name) > maxNameLength {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func (s *Session) handleUsername(line string) {
	if !validName(line) {
		s.writeLine("Names are 3-12 letters. Try another.")
		s.conn.Write([]byte("By what name do you wish to be known? "))
		return
	}

	name := s.mgr.canonicalName(line)
	key := strings.ToLower(name)

	if s.mgr.isRestricted(key) {
		// Fails without mutating any session state.
		s.writeLine("That name is not permitted. Try another.")
		s.conn.Write([]byte("By what name do you wish to be known? "))
		return
	}

	if char := s.mgr.chars.Get(key); char != nil {
		s.pendingName = name
		s.state = StateLoginPassword
		s.conn.Write([]byte("Password: "))
		return
	}

	s.pendingName = name
	s.state = StateSignupPassword
	s.conn.Write([]byte(fmt.Sprintf("Give me a password for %s: ", name)))
}

func (s *Session) handleLoginPassword(line string) {
	char := s.mgr.chars.Get(strings.ToLower(s.pendingName))
	if char == nil || bcrypt.CompareHashAndPassword([]byte(char.Password), []byte(line)) != nil {
		s.passwordTries++
		if s.passwordTries >= maxPasswordTries {
			s.writeLine("Too many tries.")
			s.mgr.CloseSession(s, "")
			return
		}
		s.conn.Write([]byte("Wrong password.\nPassword: "))
		return
	}

	s.passwordTries = 0
	s.enterWorld(char)
}

func (s *Session) handleSignupPassword(line string) {
	if len(line) == 0 || strings.EqualFold(line, s.pendingName) {
		s.conn.Write([]byte(fmt.Sprintf("Illegal password.\nGive me a password for %s: ", s.pendingName)))
		return
	}
	s.pendingPass = line
	s.state = StateSignupConfirmPassword
	s.conn.Write([]byte("Please retype password: "))
}

func (s *Session) handleSignupConfirmPassword(line string) {
	if line != s.pendingPass {
		s.pendingPass = ""
		s.state = StateSignupPassword
		s.conn.Write([]byte(fmt.Sprintf("Passwords don't match... start over.\nGive me a password for %s: ", s.pendingName)))
		return
	}
	s.state = StateSignupRace
	s.promptRaces()
}

func (s *Session) promptRaces() {
	s.raceIds = s.mgr.raceIds()
	s.writeLine("What is your race?")
	for i, id := range s.raceIds {
		race := s.mgr.races.Get(id)
		if race != nil {
			s.writeLine(fmt.Sprintf("%2d. %s", i+1, race.Name))
		}
	}
	s.conn.Write([]byte("Make your selection: "))
}

func (s *Session) handleSignupRace(line string) {
	idx := 0
	if _, err := fmt.Sscanf(line, "%d", &idx); err != nil || idx < 1 || idx > len(s.raceIds) {
		s.writeLine("Invalid selection!")
		s.promptRaces()
		return
	}

	s.pendingRace = s.raceIds[idx-1]
	race := s.mgr.races.Get(s.pendingRace)
	s.state = StateSignupConfirm
	s.conn.Write([]byte(fmt.Sprintf("A %s named %s, is that right (Y/N)? ", race.Name, s.pendingName)))
}

func (s *Session) handleSignupConfirm(ctx context.Context, line string) {
	switch strings.ToLower(line) {
	case "y", "yes":
	case "n", "no":
		s.state = StateSignupRace
		s.promptRaces()
		return
	default:
		s.conn.Write([]byte("Enter 'yes' or 'no': "))
		return
	}

	key := strings.ToLower(s.pendingName)

	// The name may have been taken while this signup was in flight.
	if s.mgr.chars.Get(key) != nil {
		s.writeLine("That name was just taken. Try another.")
		s.state = StateUsername
		s.conn.Write([]byte("By what name do you wish to be known? "))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.pendingPass), bcrypt.DefaultCost)
	if err != nil {
		slog.ErrorContext(ctx, "hashing password", "session", s.id, "error", err)
		s.writeLine("Something went wrong. Try again.")
		s.state = StateSignupPassword
		s.conn.Write([]byte(fmt.Sprintf("Give me a password for %s: ", s.pendingName)))
		return
	}

	char := game.NewCharacter(s.pendingName, string(hash), game.Identifier(s.pendingRace), s.mgr.races.Get(s.pendingRace))
	if err := s.mgr.chars.Save(key, char); err != nil {
		slog.ErrorContext(ctx, "saving new character", "name", s.pendingName, "error", err)
	}

	s.pendingPass = ""
	s.enterWorld(char)
}

// enterWorld transitions to StatePlaying. A surviving session already
// authenticated as the same character is evicted first.
func (s *Session) enterWorld(char *game.Character) {
	key := strings.ToLower(char.Name)
	s.mgr.evict(key, s)

	ps, err := s.mgr.world.AddPlayer(key, char)
	if err != nil {
		if errors.Is(err, game.ErrPlayerExists) {
			s.writeLine("That character is already in the world.")
			s.state = StateUsername
			s.conn.Write([]byte("By what name do you wish to be known? "))
			return
		}
		slog.Error("adding player to world", "name", char.Name, "error", err)
		s.mgr.CloseSession(s, "Something went wrong.")
		return
	}

	s.player = ps
	s.state = StatePlaying
	s.pendingPass = ""

	s.writeLine(fmt.Sprintf("Welcome, %s!", char.Name))
	s.handleCommand(context.Background(), "look")
}

func (s *Session) handleCommand(ctx context.Context, line string) {
	if line == "" {
		s.prompt()
		return
	}

	parts := strings.Fields(line)
	cmdName := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	err := s.mgr.dispatcher.Exec(ctx, s, cmdName, args...)
	if err != nil {
		var userErr *commands.UserError
		if errors.As(err, &userErr) {
			s.writeLine(userErr.Message)
		} else {
			slog.ErrorContext(ctx, "command execution failed",
				"session", s.id, "command", cmdName, "error", err)
			s.writeLine("Something went wrong.")
		}
	}

	if s.quit {
		s.mgr.CloseSession(s, "")
		return
	}

	s.prompt()
}
