package population

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/driftmark/go-mud/internal/game"
	"github.com/driftmark/go-mud/internal/storage"
)

// EventEmitter publishes engine telemetry events. May be nil.
type EventEmitter interface {
	Emit(subject string, event any)
}

// Manager runs population maintenance on the tick pipeline: spawn
// attempts first, then mobility movement.
type Manager struct {
	mu     sync.Mutex
	world  *game.World
	events EventEmitter

	policies   map[string]*SpawnPolicy
	countdowns map[string]int
}

func NewManager(world *game.World, policies storage.Storer[*SpawnPolicy], events EventEmitter) *Manager {
	m := &Manager{
		world:      world,
		events:     events,
		policies:   policies.GetAll(),
		countdowns: make(map[string]int),
	}
	// Countdowns start at the full interval, measured from area load.
	for id, p := range m.policies {
		m.countdowns[id] = p.RespawnInterval
	}
	return m
}

// Tick runs one population-maintenance phase.
func (m *Manager) Tick(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, p := range m.policies {
		if err := m.tickSpawn(id, p); err != nil {
			slog.ErrorContext(ctx, "spawn attempt failed", "policy", id, "error", err)
		}
	}

	m.tickMobility()

	return nil
}

// tickSpawn counts live instances of the policy's template across the
// area's rooms and, when under the cap with an elapsed countdown, stamps
// one new instance into the designated spawn room.
func (m *Manager) tickSpawn(id string, p *SpawnPolicy) error {
	if m.countdowns[id] > 0 {
		m.countdowns[id]--
	}
	if m.countdowns[id] > 0 {
		return nil
	}

	// The countdown resets on every attempt, successful or capped.
	m.countdowns[id] = p.RespawnInterval

	live := 0
	for _, roomId := range p.Rooms {
		room := m.world.GetRoom(roomId)
		if room == nil {
			return fmt.Errorf("area room %q: %w", roomId, game.ErrNotFound)
		}
		live += room.NPCCount(p.TemplateId)
	}
	if live >= p.MaxInstances {
		return nil
	}

	ni, err := m.world.SpawnNPC(p.TemplateId, p.SpawnRoom)
	if err != nil {
		return fmt.Errorf("spawning %q: %w", p.TemplateId, err)
	}

	if m.events != nil {
		m.events.Emit("mud.events.population.spawn", map[string]any{
			"template": p.TemplateId,
			"instance": ni.InstanceId,
			"room":     p.SpawnRoom,
		})
	}

	return nil
}

// tickMobility moves eligible NPC instances whose countdown reaches zero
// through a random valid exit. Instances in combat or stationary-flagged
// are skipped entirely: their countdown does not decrement, so they
// resume their original schedule once eligible again.
func (m *Manager) tickMobility() {
	type move struct {
		ni   *game.NPCInstance
		from *game.RoomState
		to   *game.RoomState
	}
	var moves []move

	for _, room := range m.world.Rooms() {
		for _, ni := range room.NPCs() {
			t := m.world.Template(ni.TemplateId)
			if t == nil || !t.Movable() {
				continue
			}
			if ni.InCombat {
				continue
			}

			if ni.MoveCountdown > 0 {
				ni.MoveCountdown--
			}
			if ni.MoveCountdown > 0 {
				continue
			}
			ni.MoveCountdown = t.MoveInterval

			dirs := room.ExitDirections()
			if len(dirs) == 0 {
				continue
			}
			dest := room.Room.Exits[dirs[rand.IntN(len(dirs))]]
			to := m.world.GetRoom(dest)
			if to == nil {
				continue
			}
			moves = append(moves, move{ni: ni, from: room, to: to})
		}
	}

	// Apply after iteration so an instance moves at most once per tick.
	for _, mv := range moves {
		if mv.from.RemoveNPC(mv.ni.InstanceId) != nil {
			mv.to.AddNPC(mv.ni)
		}
	}
}
