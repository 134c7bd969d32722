package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/driftmark/go-mud/internal/driver"
	"github.com/driftmark/go-mud/internal/game"
	"github.com/driftmark/go-mud/internal/storage"
	"github.com/pixil98/go-errors"
)

// BaselineName is the canonical snapshot of a fresh, empty world.
const BaselineName = "fresh"

var namePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Sessions lets a snapshot load invalidate sessions whose characters are
// not present in the loaded state.
type Sessions interface {
	Invalidate(keep func(name string) bool)
}

// Combat lets a snapshot load terminate engagements, which reference NPC
// instances and rooms the restore replaces.
type Combat interface {
	DisengageAll()
}

// RoomSnapshot is one room's live occupancy.
type RoomSnapshot struct {
	NPCs  []*game.NPCInstance  `json:"npcs,omitempty"`
	Items []*game.ItemInstance `json:"items,omitempty"`
	Gold  int                  `json:"gold,omitempty"`
}

// WorldSnapshot is the complete saved state: room occupancy, all known
// characters, and the scheduler's tick counter.
type WorldSnapshot struct {
	Tick       uint64                     `json:"tick"`
	Rooms      map[string]RoomSnapshot    `json:"rooms"`
	Characters map[string]*game.Character `json:"characters"`
}

// Validate satisfies storage.ValidatingSpec.
func (s *WorldSnapshot) Validate() error {
	el := errors.NewErrorList()
	for name, char := range s.Characters {
		if char == nil {
			el.Add(fmt.Errorf("character %q is null", name))
			continue
		}
		el.Add(char.Validate())
	}
	return el.Err()
}

// Manager saves and restores named world snapshots, enabling
// deterministic reset between scenarios.
type Manager struct {
	mu sync.Mutex

	dir      string
	world    *game.World
	sched    *driver.Scheduler
	chars    storage.Storer[*game.Character]
	sessions Sessions
	combat   Combat
}

func NewManager(dir string, world *game.World, sched *driver.Scheduler, chars storage.Storer[*game.Character], sessions Sessions, combat Combat) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &Manager{
		dir:      dir,
		world:    world,
		sched:    sched,
		chars:    chars,
		sessions: sessions,
		combat:   combat,
	}, nil
}

// EnsureBaseline writes the canonical baseline snapshot if it does not
// exist yet. Called once at world load, before any session connects.
func (m *Manager) EnsureBaseline() error {
	if _, err := os.Stat(m.path(BaselineName)); err == nil {
		return nil
	}
	return m.Save(BaselineName, false)
}

// Save serializes all room occupancy, character records, and the tick
// counter under name. Fails if name exists and overwrite is false.
func (m *Manager) Save(name string, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !namePattern.MatchString(name) {
		return fmt.Errorf("snapshot name %q must be lowercase alphanumerics and dashes", name)
	}
	if !overwrite {
		if _, err := os.Stat(m.path(name)); err == nil {
			return fmt.Errorf("snapshot %q already exists", name)
		}
	}

	var snap *WorldSnapshot
	var captureErr error
	m.sched.Sync(func() {
		snap, captureErr = m.capture()
	})
	if captureErr != nil {
		return fmt.Errorf("capturing world state: %w", captureErr)
	}

	asset := &storage.Asset[*WorldSnapshot]{
		Version:    1,
		Identifier: storage.Identifier(name),
		Spec:       snap,
	}
	data, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	return storage.AtomicWrite(m.path(name), data, 0644)
}

// capture builds a deep copy of world and character state. Runs under
// the scheduler's sync gate so no tick mutates state mid-copy.
func (m *Manager) capture() (*WorldSnapshot, error) {
	snap := &WorldSnapshot{
		Tick:       m.sched.TickCount(),
		Rooms:      make(map[string]RoomSnapshot),
		Characters: make(map[string]*game.Character),
	}

	for id, room := range m.world.Rooms() {
		rs := RoomSnapshot{Gold: room.Gold()}
		for _, ni := range room.NPCs() {
			clone := *ni
			clone.InCombat = false
			rs.NPCs = append(rs.NPCs, &clone)
		}
		for _, ii := range room.Items() {
			clone := *ii
			rs.Items = append(rs.Items, &clone)
		}
		if len(rs.NPCs) > 0 || len(rs.Items) > 0 || rs.Gold > 0 {
			snap.Rooms[id] = rs
		}
	}

	// Persisted characters first, then live ones overwrite: an active
	// session's in-memory state wins over its last checkpoint.
	for key, char := range m.chars.GetAll() {
		clone, err := cloneCharacter(char)
		if err != nil {
			return nil, err
		}
		snap.Characters[key] = clone
	}
	var cloneErr error
	m.world.ForEachPlayer(func(key string, ps *game.PlayerState) {
		clone, err := cloneCharacter(ps.Character)
		if err != nil {
			cloneErr = err
			return
		}
		snap.Characters[key] = clone
	})
	if cloneErr != nil {
		return nil, cloneErr
	}

	return snap, nil
}

// Load destructively replaces all live world and character state with the
// snapshot's contents. Sessions authenticated against characters not
// present in the snapshot are invalidated.
func (m *Manager) Load(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("snapshot %q: %w", name, game.ErrNotFound)
		}
		return fmt.Errorf("reading snapshot %q: %w", name, err)
	}

	var asset storage.Asset[*WorldSnapshot]
	if err := json.Unmarshal(data, &asset); err != nil {
		return fmt.Errorf("unmarshalling snapshot %q: %w", name, err)
	}
	if err := asset.Validate(); err != nil {
		return fmt.Errorf("validating snapshot %q: %w", name, err)
	}
	snap := asset.Spec

	m.sched.Sync(func() {
		// Every engagement references pre-load NPC instances and rooms,
		// so all combat ends before the restore replaces them.
		if m.combat != nil {
			m.combat.DisengageAll()
		}

		// Sessions whose characters vanished are treated as
		// disconnected. They must close before the restore: closing a
		// session persists its character, and the restore then discards
		// that record along with the rest of the stale state.
		if m.sessions != nil {
			m.sessions.Invalidate(func(key string) bool {
				_, ok := snap.Characters[key]
				return ok
			})
		}
		m.restore(snap)
	})

	return nil
}

// restore applies a snapshot. Runs under the scheduler's sync gate.
func (m *Manager) restore(snap *WorldSnapshot) {
	for id, room := range m.world.Rooms() {
		room.ClearOccupancy()
		rs, ok := snap.Rooms[id]
		if !ok {
			continue
		}
		for _, ni := range rs.NPCs {
			clone := *ni
			room.AddNPC(&clone)
		}
		for _, ii := range rs.Items {
			clone := *ii
			room.AddItem(&clone)
		}
		if rs.Gold > 0 {
			room.AddGold(rs.Gold)
		}
	}

	// Replace the character store contents.
	for key := range m.chars.GetAll() {
		if _, ok := snap.Characters[key]; !ok {
			_ = m.chars.Delete(key)
		}
	}
	for key, char := range snap.Characters {
		clone, err := cloneCharacter(char)
		if err != nil {
			continue
		}
		_ = m.chars.Save(key, clone)
	}

	// Live players surviving the load get the snapshot's stats in place,
	// preserving pointer identity for anything holding the character.
	m.world.ForEachPlayer(func(key string, ps *game.PlayerState) {
		snapChar, ok := snap.Characters[key]
		if !ok {
			return
		}
		*ps.Character = *snapChar
		ps.Character.ResolveRace(m.world.Race(string(ps.Character.Race)))
		ps.Flags = game.SessionFlags{}
	})

	m.sched.SetTickCount(snap.Tick)
}

// ResetToClean loads the canonical baseline snapshot.
func (m *Manager) ResetToClean() error {
	return m.Load(BaselineName)
}

// List enumerates available snapshot names, sorted.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.dir, name+".json")
}

func cloneCharacter(char *game.Character) (*game.Character, error) {
	data, err := json.Marshal(char)
	if err != nil {
		return nil, fmt.Errorf("cloning character %q: %w", char.Name, err)
	}
	var clone game.Character
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("cloning character %q: %w", char.Name, err)
	}
	return &clone, nil
}
