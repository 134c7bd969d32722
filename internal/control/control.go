package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/driftmark/go-mud/internal/driver"
	"github.com/driftmark/go-mud/internal/game"
	"github.com/driftmark/go-mud/internal/messaging"
)

// Snapshotter is the snapshot surface the controller drives.
type Snapshotter interface {
	Save(name string, overwrite bool) error
	Load(name string) error
	ResetToClean() error
	List() ([]string, error)
}

// Controller exposes the out-of-band admin surface over NATS subjects
// under mud.control. Operations run outside any player session and are
// serialized against the tick pipeline through the scheduler.
type Controller struct {
	server *messaging.NatsServer
	sched  *driver.Scheduler
	world  *game.World
	snaps  Snapshotter
}

func NewController(server *messaging.NatsServer, sched *driver.Scheduler, world *game.World, snaps Snapshotter) *Controller {
	return &Controller{
		server: server,
		sched:  sched,
		world:  world,
		snaps:  snaps,
	}
}

type response struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Tick  uint64 `json:"tick,omitempty"`

	Snapshots []string `json:"snapshots,omitempty"`
}

type request struct {
	Ticks     uint64 `json:"ticks,omitempty"`
	Enabled   bool   `json:"enabled,omitempty"`
	Name      string `json:"name,omitempty"`
	Overwrite bool   `json:"overwrite,omitempty"`

	Character string `json:"character,omitempty"`
	Stat      string `json:"stat,omitempty"`
	Value     int    `json:"value,omitempty"`
}

func (c *Controller) Start(ctx context.Context) error {
	subjects := map[string]func(context.Context, *request) response{
		"mud.control.advance":       c.handleAdvance,
		"mud.control.testmode":      c.handleTestMode,
		"mud.control.tick":          c.handleTick,
		"mud.control.snapshot.save": c.handleSnapshotSave,
		"mud.control.snapshot.load": c.handleSnapshotLoad,
		"mud.control.snapshot.list": c.handleSnapshotList,
		"mud.control.reset":         c.handleReset,
		"mud.control.character.set": c.handleCharacterSet,
	}

	var unsubs []func()
	for subject, handler := range subjects {
		unsub, err := c.server.Subscribe(subject, c.dispatch(ctx, subject, handler))
		if err != nil {
			for _, u := range unsubs {
				u()
			}
			return fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		unsubs = append(unsubs, unsub)
	}

	slog.InfoContext(ctx, "control surface listening", "subjects", len(subjects))

	<-ctx.Done()
	for _, u := range unsubs {
		u()
	}
	return nil
}

func (c *Controller) dispatch(ctx context.Context, subject string, handler func(context.Context, *request) response) func([]byte, string) {
	return func(data []byte, reply string) {
		var req request
		if len(data) > 0 {
			if err := json.Unmarshal(data, &req); err != nil {
				c.respond(reply, response{Ok: false, Error: fmt.Sprintf("decoding request: %v", err)})
				return
			}
		}

		resp := handler(ctx, &req)
		if !resp.Ok {
			slog.WarnContext(ctx, "control operation failed", "subject", subject, "error", resp.Error)
		}
		c.respond(reply, resp)
	}
}

func (c *Controller) respond(reply string, resp response) {
	if reply == "" {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Warn("marshalling control response", "error", err)
		return
	}
	if err := c.server.Publish(reply, data); err != nil {
		slog.Warn("publishing control response", "error", err)
	}
}

func (c *Controller) handleAdvance(ctx context.Context, req *request) response {
	if req.Ticks == 0 {
		return response{Ok: false, Error: "ticks must be positive"}
	}
	if err := c.sched.Advance(ctx, req.Ticks); err != nil {
		return response{Ok: false, Error: err.Error()}
	}
	return response{Ok: true, Tick: c.sched.TickCount()}
}

func (c *Controller) handleTestMode(_ context.Context, req *request) response {
	c.sched.SetTestMode(req.Enabled)
	return response{Ok: true, Tick: c.sched.TickCount()}
}

func (c *Controller) handleTick(_ context.Context, _ *request) response {
	return response{Ok: true, Tick: c.sched.TickCount()}
}

func (c *Controller) handleSnapshotSave(_ context.Context, req *request) response {
	if req.Name == "" {
		return response{Ok: false, Error: "name is required"}
	}
	if err := c.snaps.Save(req.Name, req.Overwrite); err != nil {
		return response{Ok: false, Error: err.Error()}
	}
	return response{Ok: true}
}

func (c *Controller) handleSnapshotLoad(_ context.Context, req *request) response {
	if req.Name == "" {
		return response{Ok: false, Error: "name is required"}
	}
	if err := c.snaps.Load(req.Name); err != nil {
		return response{Ok: false, Error: err.Error()}
	}
	return response{Ok: true, Tick: c.sched.TickCount()}
}

func (c *Controller) handleSnapshotList(_ context.Context, _ *request) response {
	names, err := c.snaps.List()
	if err != nil {
		return response{Ok: false, Error: err.Error()}
	}
	return response{Ok: true, Snapshots: names}
}

func (c *Controller) handleReset(_ context.Context, _ *request) response {
	if err := c.snaps.ResetToClean(); err != nil {
		return response{Ok: false, Error: err.Error()}
	}
	return response{Ok: true, Tick: c.sched.TickCount()}
}

// handleCharacterSet adjusts a live character's stats directly, for
// scenario setup. Only online characters can be adjusted.
func (c *Controller) handleCharacterSet(_ context.Context, req *request) response {
	if req.Character == "" || req.Stat == "" {
		return response{Ok: false, Error: "character and stat are required"}
	}

	var opErr error
	c.sched.Sync(func() {
		ps := c.world.GetPlayer(req.Character)
		if ps == nil {
			opErr = fmt.Errorf("character %q is not online", req.Character)
			return
		}
		opErr = applyStat(ps.Character, req.Stat, req.Value)
	})
	if opErr != nil {
		return response{Ok: false, Error: opErr.Error()}
	}
	return response{Ok: true}
}

func applyStat(char *game.Character, stat string, value int) error {
	switch strings.ToLower(stat) {
	case "hp":
		char.CurrentHP = min(value, char.MaxHP)
	case "max_hp":
		char.MaxHP = value
		char.CurrentHP = min(char.CurrentHP, char.MaxHP)
	case "mana":
		char.Mana = min(value, char.MaxMana)
	case "max_mana":
		char.MaxMana = value
		char.Mana = min(char.Mana, char.MaxMana)
	case "gold":
		char.Gold = value
	case "level":
		char.Level = value
	case "experience":
		char.Experience = value
	default:
		return fmt.Errorf("unknown stat %q", stat)
	}
	return nil
}
