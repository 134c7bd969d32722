package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/driftmark/go-mud/internal/game"
)

// Actor is the session-side surface a command executes against. The
// dispatcher never sees a concrete session type.
type Actor interface {
	SessionID() string
	Player() *game.PlayerState
	Write(msg string)
	RequestQuit()
}

// CommandContext carries everything a handler needs for one execution.
type CommandContext struct {
	Actor  Actor
	Player *game.PlayerState
	Args   []string
}

// CommandFunc executes one command.
type CommandFunc func(ctx context.Context, cmdCtx *CommandContext) error

// command is one registered verb.
type command struct {
	fn CommandFunc
}

// Engager is the combat surface commands need.
type Engager interface {
	Engage(sessionId string, ps *game.PlayerState, targetPrefix string) (*game.NPCInstance, error)
	Flee(sessionId string) error
	IsEngaged(sessionId string) bool
}

// Dispatcher resolves already-parsed command words to handlers. All
// collaborators are injected at construction; handlers never reach for
// globals.
type Dispatcher struct {
	world  *game.World
	combat Engager
	pub    game.Publisher

	commands map[string]*command
	aliases  map[string]string
}

func NewDispatcher(world *game.World, combat Engager, pub game.Publisher) *Dispatcher {
	d := &Dispatcher{
		world:    world,
		combat:   combat,
		pub:      pub,
		commands: make(map[string]*command),
		aliases:  make(map[string]string),
	}
	d.registerAll()
	return d
}

func (d *Dispatcher) register(name string, fn CommandFunc, aliases ...string) {
	d.commands[name] = &command{fn: fn}
	for _, a := range aliases {
		d.aliases[a] = name
	}
}

func (d *Dispatcher) resolve(cmdName string) (*command, bool) {
	name := strings.ToLower(cmdName)
	if canonical, ok := d.aliases[name]; ok {
		name = canonical
	}
	c, ok := d.commands[name]
	return c, ok
}

// Exec executes a command for the given actor.
func (d *Dispatcher) Exec(ctx context.Context, actor Actor, cmdName string, args ...string) error {
	c, ok := d.resolve(cmdName)
	if !ok {
		return NewUserError(fmt.Sprintf("Unknown command: %s", cmdName))
	}

	cmdCtx := &CommandContext{
		Actor:  actor,
		Player: actor.Player(),
		Args:   args,
	}

	err := c.fn(ctx, cmdCtx)
	if err != nil {
		// Policy and lookup failures from the engine surface to the
		// player as messages; anything else is a system error.
		if errors.Is(err, game.ErrPolicyViolation) || errors.Is(err, game.ErrNotFound) {
			return NewUserError(userMessage(err))
		}
		return err
	}
	return nil
}

// userMessage strips the sentinel suffix from wrapped engine errors.
func userMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []string{": " + game.ErrPolicyViolation.Error(), ": " + game.ErrNotFound.Error()} {
		msg = strings.TrimSuffix(msg, sentinel)
	}
	if msg == "" {
		return "You can't do that."
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
