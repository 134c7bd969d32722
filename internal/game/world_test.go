package game

import (
	"context"
	"errors"
	"testing"

	"github.com/driftmark/go-mud/internal/storage"
	"github.com/pixil98/go-testutil"
)

// mapStore is an in-memory Storer double.
type mapStore[T storage.ValidatingSpec] struct {
	records map[string]T
}

func newMapStore[T storage.ValidatingSpec](records map[string]T) *mapStore[T] {
	if records == nil {
		records = map[string]T{}
	}
	return &mapStore[T]{records: records}
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

func testWorld(t *testing.T) *World {
	t.Helper()

	rooms := newMapStore(map[string]*Room{
		"square": {Name: "Town Square", Description: "The center of town.", Safe: true, Exits: map[string]string{"north": "forest"}},
		"forest": {Name: "Dark Forest", Description: "Trees crowd in.", Exits: map[string]string{"south": "square"}},
	})
	templates := newMapStore(map[string]*NPCTemplate{
		"grey-wolf": {Name: "Grey Wolf", Aliases: []string{"wolf"}, MaxHP: 30, DamageMin: 1, DamageMax: 4, Experience: 25},
	})
	races := newMapStore(map[string]*Race{
		"human": {Name: "Human"},
	})
	chars := newMapStore[*Character](nil)

	w, err := NewWorld(rooms, templates, races, chars, "square")
	if err != nil {
		t.Fatalf("unexpected error creating world: %v", err)
	}
	return w
}

func TestNewWorld_UnknownDefaultRoom(t *testing.T) {
	rooms := newMapStore(map[string]*Room{"square": {Name: "Town Square"}})

	_, err := NewWorld(rooms, newMapStore[*NPCTemplate](nil), newMapStore[*Race](nil), newMapStore[*Character](nil), "void")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNewWorld_DanglingExit(t *testing.T) {
	rooms := newMapStore(map[string]*Room{
		"square": {Name: "Town Square", Exits: map[string]string{"north": "nowhere"}},
	})

	_, err := NewWorld(rooms, newMapStore[*NPCTemplate](nil), newMapStore[*Race](nil), newMapStore[*Character](nil), "square")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWorld_SpawnNPC(t *testing.T) {
	w := testWorld(t)

	ni, err := w.SpawnNPC("grey-wolf", "forest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "hp", ni.CurrentHP, 30)
	if w.GetRoom("forest").GetNPC(ni.InstanceId) != ni {
		t.Error("expected instance to be registered in the room")
	}
}

func TestWorld_SpawnNPC_UnknownTemplate(t *testing.T) {
	w := testWorld(t)

	_, err := w.SpawnNPC("dragon", "forest")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWorld_FindNPC(t *testing.T) {
	w := testWorld(t)
	ni, err := w.SpawnNPC("grey-wolf", "forest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := w.FindNPC("forest", "wol"); got != ni {
		t.Error("expected alias prefix to find the instance")
	}
	if got := w.FindNPC("forest", "bear"); got != nil {
		t.Error("expected no match for unrelated prefix")
	}
	if got := w.FindNPC("square", "wolf"); got != nil {
		t.Error("expected no match in a different room")
	}
}

func TestWorld_AddPlayer(t *testing.T) {
	w := testWorld(t)
	char := NewCharacter("Brin", "hash", "human", w.Race("human"))
	char.RoomId = "forest"

	ps, err := w.AddPlayer("brin", char)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "room", ps.Character.RoomId, "forest")

	_, err = w.AddPlayer("brin", char)
	if !errors.Is(err, ErrPlayerExists) {
		t.Errorf("expected ErrPlayerExists, got %v", err)
	}
}

func TestWorld_AddPlayer_UnknownRoomFallsBack(t *testing.T) {
	w := testWorld(t)
	char := NewCharacter("Brin", "hash", "human", nil)
	char.RoomId = "demolished-room"

	ps, err := w.AddPlayer("brin", char)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "room", ps.Character.RoomId, "square")
}

func TestWorld_RemovePlayer(t *testing.T) {
	w := testWorld(t)
	char := NewCharacter("Brin", "hash", "human", nil)
	if _, err := w.AddPlayer("brin", char); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := w.RemovePlayer("brin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.RemovePlayer("brin"); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestWorld_Tick_Regeneration(t *testing.T) {
	w := testWorld(t)

	char := NewCharacter("Brin", "hash", "human", nil)
	ps, err := w.AddPlayer("brin", char)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	char.CurrentHP = 50
	char.Mana = 10

	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "hp", char.CurrentHP, 51)
	testutil.AssertEqual(t, "mana", char.Mana, 11)

	ps.Flags.Resting = true
	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "resting hp", char.CurrentHP, 53)
	testutil.AssertEqual(t, "resting mana", char.Mana, 12)

	ps.Flags.Resting = false
	ps.Flags.Meditating = true
	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "meditating hp", char.CurrentHP, 54)
	testutil.AssertEqual(t, "meditating mana", char.Mana, 14)
}

func TestWorld_Tick_NoRegenerationInCombat(t *testing.T) {
	w := testWorld(t)

	char := NewCharacter("Brin", "hash", "human", nil)
	ps, err := w.AddPlayer("brin", char)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	char.CurrentHP = 50
	ps.Flags.InCombat = true

	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "hp", char.CurrentHP, 50)
}

func TestWorld_Tick_NPCRegeneration(t *testing.T) {
	w := testWorld(t)
	ni, err := w.SpawnNPC("grey-wolf", "forest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ni.CurrentHP = 10

	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "npc hp", ni.CurrentHP, 11)

	ni.InCombat = true
	if err := w.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "npc hp in combat", ni.CurrentHP, 11)
}

func TestRoomState_TakeItem(t *testing.T) {
	r := NewRoomState("square", &Room{Name: "Town Square"})
	r.AddItem(&ItemInstance{InstanceId: "i1", ItemId: "wolf-pelt"})

	if got := r.TakeItem("sword"); got != nil {
		t.Error("expected no match for unrelated prefix")
	}
	got := r.TakeItem("wolf")
	if got == nil || got.ItemId != "wolf-pelt" {
		t.Fatalf("expected wolf-pelt, got %+v", got)
	}
	testutil.AssertEqual(t, "items left", len(r.Items()), 0)
}

func TestRoomState_Gold(t *testing.T) {
	r := NewRoomState("square", &Room{Name: "Town Square"})
	r.AddGold(7)
	r.AddGold(-20)
	testutil.AssertEqual(t, "gold clamped", r.Gold(), 0)
}
