package population

import (
	"context"
	"testing"

	"github.com/driftmark/go-mud/internal/game"
	"github.com/driftmark/go-mud/internal/storage"
	"github.com/pixil98/go-testutil"
)

// mapStore is an in-memory Storer double.
type mapStore[T storage.ValidatingSpec] struct {
	records map[string]T
}

func (s *mapStore[T]) Save(id string, o T) error { s.records[id] = o; return nil }
func (s *mapStore[T]) Get(id string) T           { return s.records[id] }
func (s *mapStore[T]) Delete(id string) error    { delete(s.records, id); return nil }
func (s *mapStore[T]) GetAll() map[string]T {
	out := map[string]T{}
	for id, v := range s.records {
		out[id] = v
	}
	return out
}

type recordingEmitter struct {
	subjects []string
}

func (e *recordingEmitter) Emit(subject string, event any) {
	e.subjects = append(e.subjects, subject)
}

func testWorld(t *testing.T, wolf *game.NPCTemplate) *game.World {
	t.Helper()

	rooms := &mapStore[*game.Room]{records: map[string]*game.Room{
		"den":    {Name: "Wolf Den", Exits: map[string]string{"out": "forest"}},
		"forest": {Name: "Dark Forest", Exits: map[string]string{"in": "den"}},
	}}
	templates := &mapStore[*game.NPCTemplate]{records: map[string]*game.NPCTemplate{
		"grey-wolf": wolf,
	}}

	w, err := game.NewWorld(rooms, templates, &mapStore[*game.Race]{records: map[string]*game.Race{}}, &mapStore[*game.Character]{records: map[string]*game.Character{}}, "forest")
	if err != nil {
		t.Fatalf("unexpected error creating world: %v", err)
	}
	return w
}

func wolfPolicy() *SpawnPolicy {
	return &SpawnPolicy{
		TemplateId:      "grey-wolf",
		Rooms:           []string{"den", "forest"},
		SpawnRoom:       "den",
		MaxInstances:    3,
		RespawnInterval: 20,
	}
}

func advance(t *testing.T, m *Manager, n int) {
	t.Helper()
	for range n {
		if err := m.Tick(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func areaCount(w *game.World, templateId string, rooms ...string) int {
	n := 0
	for _, id := range rooms {
		n += w.GetRoom(id).NPCCount(templateId)
	}
	return n
}

func TestSpawn_RespectsIntervalAndCap(t *testing.T) {
	w := testWorld(t, &game.NPCTemplate{Name: "Grey Wolf", MaxHP: 30})
	events := &recordingEmitter{}
	m := NewManager(w, &mapStore[*SpawnPolicy]{records: map[string]*SpawnPolicy{"wolves": wolfPolicy()}}, events)

	// Nothing spawns before the first interval elapses.
	advance(t, m, 19)
	testutil.AssertEqual(t, "before first interval", areaCount(w, "grey-wolf", "den", "forest"), 0)

	advance(t, m, 1)
	testutil.AssertEqual(t, "first spawn", areaCount(w, "grey-wolf", "den", "forest"), 1)

	// The population grows once per interval until it hits the cap.
	advance(t, m, 45)
	testutil.AssertEqual(t, "population at cap", areaCount(w, "grey-wolf", "den", "forest"), 3)
	testutil.AssertEqual(t, "spawn events", len(events.subjects), 3)

	// At the cap, further attempts spawn nothing.
	advance(t, m, 40)
	testutil.AssertEqual(t, "still at cap", areaCount(w, "grey-wolf", "den", "forest"), 3)
}

func TestSpawn_RefillsAfterDeath(t *testing.T) {
	w := testWorld(t, &game.NPCTemplate{Name: "Grey Wolf", MaxHP: 30})
	m := NewManager(w, &mapStore[*SpawnPolicy]{records: map[string]*SpawnPolicy{"wolves": wolfPolicy()}}, nil)

	advance(t, m, 60)
	testutil.AssertEqual(t, "at cap", areaCount(w, "grey-wolf", "den", "forest"), 3)

	// Remove one; the next elapsed interval refills it.
	den := w.GetRoom("den")
	victim := den.NPCs()[0]
	den.RemoveNPC(victim.InstanceId)

	advance(t, m, 20)
	testutil.AssertEqual(t, "refilled", areaCount(w, "grey-wolf", "den", "forest"), 3)
}

func TestSpawn_CountsAcrossAreaRooms(t *testing.T) {
	w := testWorld(t, &game.NPCTemplate{Name: "Grey Wolf", MaxHP: 30})
	m := NewManager(w, &mapStore[*SpawnPolicy]{records: map[string]*SpawnPolicy{"wolves": wolfPolicy()}}, nil)

	advance(t, m, 60)

	// Move every wolf out of the spawn room; they still count toward
	// the area cap.
	den := w.GetRoom("den")
	forest := w.GetRoom("forest")
	for _, ni := range den.NPCs() {
		den.RemoveNPC(ni.InstanceId)
		forest.AddNPC(ni)
	}

	advance(t, m, 20)
	testutil.AssertEqual(t, "cap spans rooms", areaCount(w, "grey-wolf", "den", "forest"), 3)
}

func TestMobility_MovesOnSchedule(t *testing.T) {
	wolf := &game.NPCTemplate{Name: "Grey Wolf", MaxHP: 30, MoveInterval: 3}
	w := testWorld(t, wolf)
	m := NewManager(w, &mapStore[*SpawnPolicy]{records: map[string]*SpawnPolicy{}}, nil)

	ni, err := w.SpawnNPC("grey-wolf", "den")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	advance(t, m, 2)
	if w.GetRoom("den").GetNPC(ni.InstanceId) == nil {
		t.Fatal("expected the wolf to still be in the den")
	}

	// Each room here has exactly one exit, so the move is deterministic.
	advance(t, m, 1)
	if w.GetRoom("forest").GetNPC(ni.InstanceId) == nil {
		t.Fatal("expected the wolf to have moved to the forest")
	}

	advance(t, m, 3)
	if w.GetRoom("den").GetNPC(ni.InstanceId) == nil {
		t.Fatal("expected the wolf to have moved back to the den")
	}
}

func TestMobility_PausedInCombat(t *testing.T) {
	wolf := &game.NPCTemplate{Name: "Grey Wolf", MaxHP: 30, MoveInterval: 3}
	w := testWorld(t, wolf)
	m := NewManager(w, &mapStore[*SpawnPolicy]{records: map[string]*SpawnPolicy{}}, nil)

	ni, err := w.SpawnNPC("grey-wolf", "den")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	advance(t, m, 2)
	testutil.AssertEqual(t, "countdown ran", ni.MoveCountdown, 1)

	// In combat the countdown freezes where it is.
	ni.InCombat = true
	advance(t, m, 10)
	testutil.AssertEqual(t, "countdown frozen", ni.MoveCountdown, 1)
	if w.GetRoom("den").GetNPC(ni.InstanceId) == nil {
		t.Fatal("expected the wolf to stay put while fighting")
	}

	// Released, it resumes its original schedule.
	ni.InCombat = false
	advance(t, m, 1)
	if w.GetRoom("forest").GetNPC(ni.InstanceId) == nil {
		t.Fatal("expected the wolf to move on the next eligible tick")
	}
}

func TestMobility_StationaryNeverMoves(t *testing.T) {
	wolf := &game.NPCTemplate{Name: "Grey Wolf", MaxHP: 30, MoveInterval: 3, Stationary: true}
	w := testWorld(t, wolf)
	m := NewManager(w, &mapStore[*SpawnPolicy]{records: map[string]*SpawnPolicy{}}, nil)

	ni, err := w.SpawnNPC("grey-wolf", "den")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	advance(t, m, 20)
	if w.GetRoom("den").GetNPC(ni.InstanceId) == nil {
		t.Fatal("expected the stationary wolf to never move")
	}
}

func TestSpawnPolicy_Validate(t *testing.T) {
	tests := map[string]struct {
		policy *SpawnPolicy
		expErr bool
	}{
		"valid": {policy: wolfPolicy()},
		"missing template": {
			policy: &SpawnPolicy{Rooms: []string{"den"}, SpawnRoom: "den", MaxInstances: 1, RespawnInterval: 1},
			expErr: true,
		},
		"spawn room outside area": {
			policy: &SpawnPolicy{TemplateId: "grey-wolf", Rooms: []string{"den"}, SpawnRoom: "forest", MaxInstances: 1, RespawnInterval: 1},
			expErr: true,
		},
		"zero cap": {
			policy: &SpawnPolicy{TemplateId: "grey-wolf", Rooms: []string{"den"}, SpawnRoom: "den", RespawnInterval: 1},
			expErr: true,
		},
		"zero interval": {
			policy: &SpawnPolicy{TemplateId: "grey-wolf", Rooms: []string{"den"}, SpawnRoom: "den", MaxInstances: 1},
			expErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.expErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.expErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
