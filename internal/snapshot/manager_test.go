package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/driftmark/go-mud/internal/driver"
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

// probingSessions applies each Invalidate keep predicate to a fixed set
// of names and records the verdicts.
type probingSessions struct {
	probe    []string
	verdicts map[string]bool
}

func (s *probingSessions) Invalidate(keep func(name string) bool) {
	s.verdicts = map[string]bool{}
	for _, name := range s.probe {
		s.verdicts[name] = keep(name)
	}
}

// recordingCombat counts DisengageAll calls.
type recordingCombat struct {
	disengages int
}

func (c *recordingCombat) DisengageAll() {
	c.disengages++
}

type fixture struct {
	mgr      *Manager
	world    *game.World
	sched    *driver.Scheduler
	chars    *mapStore[*game.Character]
	sessions *probingSessions
	combat   *recordingCombat
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	rooms := &mapStore[*game.Room]{records: map[string]*game.Room{
		"square": {Name: "Town Square", Description: "The center of town.", Safe: true, Exits: map[string]string{"north": "forest"}},
		"forest": {Name: "Dark Forest", Description: "Trees crowd in close.", Exits: map[string]string{"south": "square"}},
	}}
	templates := &mapStore[*game.NPCTemplate]{records: map[string]*game.NPCTemplate{
		"grey-wolf": {Name: "Grey Wolf", Aliases: []string{"wolf"}, MaxHP: 30, DamageMin: 1, DamageMax: 4, Experience: 25},
	}}
	races := &mapStore[*game.Race]{records: map[string]*game.Race{
		"human": {Name: "Human"},
	}}
	chars := &mapStore[*game.Character]{records: map[string]*game.Character{}}

	world, err := game.NewWorld(rooms, templates, races, chars, "square")
	if err != nil {
		t.Fatalf("unexpected error creating world: %v", err)
	}

	sched := driver.NewScheduler(nil)
	sessions := &probingSessions{}
	combat := &recordingCombat{}
	dir := t.TempDir()

	mgr, err := NewManager(dir, world, sched, chars, sessions, combat)
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}

	return &fixture{mgr: mgr, world: world, sched: sched, chars: chars, sessions: sessions, combat: combat, dir: dir}
}

func (f *fixture) seedCharacter(t *testing.T, key string) *game.Character {
	t.Helper()
	char := game.NewCharacter(key, "hash", "human", nil)
	if err := f.chars.Save(key, char); err != nil {
		t.Fatalf("unexpected error saving character: %v", err)
	}
	return char
}

func TestSave_CreatesFile(t *testing.T) {
	f := newFixture(t)

	if err := f.mgr.Save("scenario-a", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(f.dir, "scenario-a.json")); err != nil {
		t.Errorf("expected snapshot file: %v", err)
	}

	names, err := f.mgr.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "name count", len(names), 1)
	testutil.AssertEqual(t, "name", names[0], "scenario-a")
}

func TestSave_RejectsInvalidName(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"", "Bad Name", "UPPER", "dots.json"} {
		if err := f.mgr.Save(name, false); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
}

func TestSave_ExistingRequiresOverwrite(t *testing.T) {
	f := newFixture(t)

	if err := f.mgr.Save("scenario-a", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.mgr.Save("scenario-a", false); err == nil {
		t.Error("expected error saving over existing snapshot")
	}
	if err := f.mgr.Save("scenario-a", true); err != nil {
		t.Errorf("unexpected error with overwrite: %v", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	f := newFixture(t)

	if _, err := f.world.SpawnNPC("grey-wolf", "forest"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	forest := f.world.GetRoom("forest")
	forest.AddItem(&game.ItemInstance{InstanceId: "i1", ItemId: "wolf-pelt"})
	forest.AddGold(12)
	f.sched.SetTickCount(7)

	if err := f.mgr.Save("scenario-a", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Mutate everything the snapshot covers.
	for _, ni := range forest.NPCs() {
		forest.RemoveNPC(ni.InstanceId)
	}
	forest.TakeItem("wolf")
	forest.AddGold(-12)
	f.sched.SetTickCount(50)

	if err := f.mgr.Load("scenario-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "npcs", len(forest.NPCs()), 1)
	testutil.AssertEqual(t, "npc template", forest.NPCs()[0].TemplateId, "grey-wolf")
	testutil.AssertEqual(t, "items", len(forest.Items()), 1)
	testutil.AssertEqual(t, "gold", forest.Gold(), 12)
	testutil.AssertEqual(t, "tick", f.sched.TickCount(), uint64(7))
}

func TestLoad_Missing(t *testing.T) {
	f := newFixture(t)

	err := f.mgr.Load("nope")
	if !errors.Is(err, game.ErrNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestLoad_InvalidatesAbsentCharacters(t *testing.T) {
	f := newFixture(t)
	f.seedCharacter(t, "brin")

	if err := f.mgr.Save("before-tova", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.seedCharacter(t, "tova")
	f.sessions.probe = []string{"brin", "tova"}

	if err := f.mgr.Load("before-tova"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "brin kept", f.sessions.verdicts["brin"], true)
	testutil.AssertEqual(t, "tova dropped", f.sessions.verdicts["tova"], false)
	if f.chars.Get("tova") != nil {
		t.Error("expected tova removed from character store")
	}
	if f.chars.Get("brin") == nil {
		t.Error("expected brin retained in character store")
	}
}

func TestLoad_TerminatesEngagements(t *testing.T) {
	f := newFixture(t)

	if err := f.mgr.Save("scenario-a", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "no disengage on save", f.combat.disengages, 0)

	if err := f.mgr.Load("scenario-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "disengaged on load", f.combat.disengages, 1)
}

func TestLoad_RestoresLivePlayerInPlace(t *testing.T) {
	f := newFixture(t)

	char := game.NewCharacter("Brin", "hash", "human", nil)
	ps, err := f.world.AddPlayer("brin", char)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ps.Character.Gold = 99

	if err := f.mgr.Save("rich", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ps.Character.Gold = 5
	ps.Flags.Resting = true

	if err := f.mgr.Load("rich"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Pointer identity is preserved; stats and flags are reset.
	testutil.AssertEqual(t, "same character", f.world.GetPlayer("brin").Character == char, true)
	testutil.AssertEqual(t, "gold", char.Gold, 99)
	testutil.AssertEqual(t, "flags", ps.Flags, game.SessionFlags{})
	testutil.AssertEqual(t, "store gold", f.chars.Get("brin").Gold, 99)
}

func TestSave_LiveStateWinsOverCheckpoint(t *testing.T) {
	f := newFixture(t)
	stale := f.seedCharacter(t, "brin")
	stale.Gold = 1

	live := game.NewCharacter("Brin", "hash", "human", nil)
	live.Gold = 42
	if _, err := f.world.AddPlayer("brin", live); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := f.mgr.Save("current", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.mgr.Load("current"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "gold", f.chars.Get("brin").Gold, 42)
}

func TestEnsureBaseline_ResetToClean(t *testing.T) {
	f := newFixture(t)

	if err := f.mgr.EnsureBaseline(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Idempotent.
	if err := f.mgr.EnsureBaseline(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.world.SpawnNPC("grey-wolf", "forest"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.world.GetRoom("forest").AddGold(100)
	f.sched.SetTickCount(33)

	if err := f.mgr.ResetToClean(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	forest := f.world.GetRoom("forest")
	testutil.AssertEqual(t, "npcs", len(forest.NPCs()), 0)
	testutil.AssertEqual(t, "gold", forest.Gold(), 0)
	testutil.AssertEqual(t, "tick", f.sched.TickCount(), uint64(0))
}

func TestList_Sorted(t *testing.T) {
	f := newFixture(t)

	for _, name := range []string{"zulu", "alpha", "mike"} {
		if err := f.mgr.Save(name, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	names, err := f.mgr.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"alpha", "mike", "zulu"}
	testutil.AssertEqual(t, "name count", len(names), len(want))
	for i, name := range want {
		testutil.AssertEqual(t, "name", names[i], name)
	}
}

func TestWorldSnapshot_Validate(t *testing.T) {
	cases := map[string]struct {
		snap    *WorldSnapshot
		wantErr bool
	}{
		"empty": {
			snap: &WorldSnapshot{},
		},
		"valid character": {
			snap: &WorldSnapshot{Characters: map[string]*game.Character{
				"brin": game.NewCharacter("Brin", "hash", "human", nil),
			}},
		},
		"null character": {
			snap:    &WorldSnapshot{Characters: map[string]*game.Character{"brin": nil}},
			wantErr: true,
		},
		"invalid character": {
			snap:    &WorldSnapshot{Characters: map[string]*game.Character{"brin": {}}},
			wantErr: true,
		},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			err := tt.snap.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
