package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/driftmark/go-mud/internal/storage"
)

// Publisher delivers messages to sessions. Implemented by the session
// layer so world logic never touches connections directly.
type Publisher interface {
	PublishToPlayer(name string, data []byte) error
	PublishToRoom(roomId string, data []byte, exclude ...string) error
}

// SessionFlags are the orthogonal per-session booleans that gate command
// legality while authenticated.
type SessionFlags struct {
	InCombat   bool
	Sneaking   bool
	Hidden     bool
	Resting    bool
	Meditating bool
}

// PlayerState holds all mutable state for an authenticated player.
type PlayerState struct {
	Name      string
	Character *Character
	Flags     SessionFlags

	LastActivity time.Time
}

// World is the single source of truth for all mutable game state. The
// tick pipeline is the only writer of room, NPC, and character state;
// that single-writer discipline is what keeps this lock contention-free
// in practice.
type World struct {
	mu      sync.RWMutex
	rooms   map[string]*RoomState
	players map[string]*PlayerState

	templates storage.Storer[*NPCTemplate]
	races     storage.Storer[*Race]
	chars     storage.Storer[*Character]

	defaultRoom string
}

func NewWorld(rooms storage.Storer[*Room], templates storage.Storer[*NPCTemplate], races storage.Storer[*Race], chars storage.Storer[*Character], defaultRoom string) (*World, error) {
	states := make(map[string]*RoomState)
	for id, room := range rooms.GetAll() {
		states[id] = NewRoomState(id, room)
	}

	if _, ok := states[defaultRoom]; !ok {
		return nil, fmt.Errorf("default room %q: %w", defaultRoom, ErrNotFound)
	}

	for id, room := range rooms.GetAll() {
		for dir, dest := range room.Exits {
			if _, ok := states[dest]; !ok {
				return nil, fmt.Errorf("room %q exit %s references room %q: %w", id, dir, dest, ErrNotFound)
			}
		}
	}

	return &World{
		rooms:       states,
		players:     make(map[string]*PlayerState),
		templates:   templates,
		races:       races,
		chars:       chars,
		defaultRoom: defaultRoom,
	}, nil
}

// DefaultRoom returns the room new and respawning characters start in.
func (w *World) DefaultRoom() string {
	return w.defaultRoom
}

// GetRoom returns the room state, or nil if the id is unknown.
func (w *World) GetRoom(roomId string) *RoomState {
	return w.rooms[roomId]
}

// Rooms returns the room state map. The topology is fixed after load, so
// callers may iterate without holding the world lock.
func (w *World) Rooms() map[string]*RoomState {
	return w.rooms
}

// Template returns the NPC template, or nil if the id is unknown.
func (w *World) Template(templateId string) *NPCTemplate {
	return w.templates.Get(templateId)
}

// Race returns the race definition, or nil if the id is unknown.
func (w *World) Race(raceId string) *Race {
	return w.races.Get(raceId)
}

// SpawnNPC stamps a new instance from templateId into the given room.
func (w *World) SpawnNPC(templateId, roomId string) (*NPCInstance, error) {
	t := w.templates.Get(templateId)
	if t == nil {
		return nil, fmt.Errorf("npc template %q: %w", templateId, ErrNotFound)
	}
	room := w.rooms[roomId]
	if room == nil {
		return nil, fmt.Errorf("room %q: %w", roomId, ErrNotFound)
	}

	ni := NewNPCInstance(templateId, t)
	room.AddNPC(ni)
	return ni, nil
}

// FindNPC searches a room for an instance whose template name or alias
// matches the given case-insensitive prefix. Used for engagement
// initiation only; every later lookup addresses the instance id.
func (w *World) FindNPC(roomId, prefix string) *NPCInstance {
	room := w.rooms[roomId]
	if room == nil {
		return nil
	}
	for _, ni := range room.NPCs() {
		t := w.templates.Get(ni.TemplateId)
		if t != nil && t.MatchName(prefix) {
			return ni
		}
	}
	return nil
}

// AddPlayer registers an authenticated player in the world.
func (w *World) AddPlayer(name string, char *Character) (*PlayerState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.players[name]; exists {
		return nil, ErrPlayerExists
	}

	if char.RoomId == "" || w.rooms[char.RoomId] == nil {
		char.RoomId = w.defaultRoom
	}
	char.ResolveRace(w.races.Get(string(char.Race)))

	ps := &PlayerState{
		Name:         name,
		Character:    char,
		LastActivity: time.Now(),
	}
	w.players[name] = ps
	return ps, nil
}

// RemovePlayer removes a player from the world.
func (w *World) RemovePlayer(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.players[name]; !exists {
		return ErrPlayerNotFound
	}
	delete(w.players, name)
	return nil
}

// GetPlayer returns the player state, or nil.
func (w *World) GetPlayer(name string) *PlayerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.players[name]
}

// ForEachPlayer calls fn for each player while holding the lock.
func (w *World) ForEachPlayer(fn func(string, *PlayerState)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for name, ps := range w.players {
		fn(name, ps)
	}
}

// PlayersInRoom returns the names of players currently in the room.
func (w *World) PlayersInRoom(roomId string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var names []string
	for name, ps := range w.players {
		if ps.Character.RoomId == roomId {
			names = append(names, name)
		}
	}
	return names
}

// Persist writes the character through to durable storage. Failure is
// logged and retried on the next mutation; in-memory state stands.
func (w *World) Persist(char *Character) {
	if err := w.chars.Save(normalizeKey(char.Name), char); err != nil {
		slog.Warn("persisting character", "name", char.Name, "error", err)
	}
}

// normalizeKey lowercases a character name into its storage key.
func normalizeKey(name string) string {
	return strings.ToLower(name)
}

// Tick is the regeneration phase of the per-tick pipeline. Out-of-combat
// characters recover 1 hp and 1 mana per tick, doubled while resting or
// meditating respectively. NPC instances recover 1 hp out of combat.
func (w *World) Tick(ctx context.Context) error {
	w.ForEachPlayer(func(_ string, ps *PlayerState) {
		if ps.Flags.InCombat {
			return
		}
		hp, mana := 1, 1
		if ps.Flags.Resting {
			hp = 2
		}
		if ps.Flags.Meditating {
			mana = 2
		}
		ps.Character.Regenerate(hp, mana)
	})

	for _, room := range w.rooms {
		for _, ni := range room.NPCs() {
			t := w.templates.Get(ni.TemplateId)
			if t == nil {
				continue
			}
			if !ni.InCombat && ni.CurrentHP > 0 && ni.CurrentHP < t.MaxHP {
				ni.CurrentHP++
			}
		}
	}

	return nil
}
