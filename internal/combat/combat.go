package combat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/driftmark/go-mud/internal/display"
	"github.com/driftmark/go-mud/internal/game"
)

// Outcome is the terminal state of an engagement.
type Outcome int

const (
	OutcomeActive Outcome = iota
	OutcomeVictory
	OutcomeFlee
	OutcomeTargetGone
	OutcomeDefeat
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVictory:
		return "victory"
	case OutcomeFlee:
		return "flee"
	case OutcomeTargetGone:
		return "target-gone"
	case OutcomeDefeat:
		return "defeat"
	default:
		return "active"
	}
}

// Engagement relates one session's attacker to one specific NPC instance
// in the room it occupied when combat began. It is valid only while both
// the target instance and the attacker are still in that room.
type Engagement struct {
	SessionId string
	Player    *game.PlayerState

	TargetId string // NPC instance id, never a name or template id
	RoomId   string // room recorded at engagement time

	Outcome Outcome
}

// EventEmitter publishes engine telemetry events. May be nil.
type EventEmitter interface {
	Emit(subject string, event any)
}

// Manager tracks all active engagements and resolves combat rounds on the
// tick pipeline. Engagements resolve in creation order within a tick; that
// ordering is stable but deliberately not randomized.
type Manager struct {
	mu     sync.Mutex
	world  *game.World
	pub    game.Publisher
	events EventEmitter

	engagements []*Engagement
	bySession   map[string]*Engagement
}

func NewManager(world *game.World, pub game.Publisher, events EventEmitter) *Manager {
	return &Manager{
		world:     world,
		pub:       pub,
		events:    events,
		bySession: make(map[string]*Engagement),
	}
}

// Engage starts combat between a session's character and the first NPC
// instance in the character's room matching the given prefix. Matching is
// by name/alias prefix at initiation only; the engagement carries the
// instance id from here on.
func (m *Manager) Engage(sessionId string, ps *game.PlayerState, targetPrefix string) (*game.NPCInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bySession[sessionId]; exists {
		return nil, fmt.Errorf("already fighting")
	}

	roomId := ps.Character.RoomId
	room := m.world.GetRoom(roomId)
	if room == nil {
		return nil, fmt.Errorf("room %q: %w", roomId, game.ErrNotFound)
	}
	if room.Room.Safe {
		return nil, fmt.Errorf("room %q is safe: %w", roomId, game.ErrPolicyViolation)
	}

	target := m.world.FindNPC(roomId, targetPrefix)
	if target == nil {
		return nil, fmt.Errorf("no %q here: %w", targetPrefix, game.ErrNotFound)
	}

	e := &Engagement{
		SessionId: sessionId,
		Player:    ps,
		TargetId:  target.InstanceId,
		RoomId:    roomId,
	}
	m.engagements = append(m.engagements, e)
	m.bySession[sessionId] = e

	ps.Flags.InCombat = true
	ps.Flags.Resting = false
	ps.Flags.Meditating = false
	ps.Flags.Sneaking = false
	ps.Flags.Hidden = false
	target.InCombat = true

	return target, nil
}

// Flee ends the session's engagement immediately, with no tick delay.
func (m *Manager) Flee(sessionId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.bySession[sessionId]
	if !ok {
		return fmt.Errorf("not fighting: %w", game.ErrNotFound)
	}

	m.resolve(e, OutcomeFlee)
	return nil
}

// Disengage removes the session's engagement, if any. Called when a
// session closes; the NPC side needs no special-casing, it simply stops
// receiving attacker damage.
func (m *Manager) Disengage(sessionId string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.bySession[sessionId]; ok {
		m.resolve(e, OutcomeFlee)
	}
}

// DisengageAll terminates every active engagement. The snapshot manager
// calls this on load: engagements reference NPC instances and rooms the
// restore is about to replace, so none of them may survive it.
func (m *Manager) DisengageAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.engagements) > 0 {
		m.resolve(m.engagements[0], OutcomeFlee)
	}
}

// IsEngaged reports whether the session has an active engagement.
func (m *Manager) IsEngaged(sessionId string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bySession[sessionId]
	return ok
}

// Engagement returns the session's active engagement, or nil.
func (m *Manager) Engagement(sessionId string) *Engagement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bySession[sessionId]
}

// Tick resolves one combat round for every active engagement, in
// engagement creation order.
func (m *Manager) Tick(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.engagements) == 0 {
		return nil
	}

	// Snapshot for safe iteration while resolving removes entries.
	active := append([]*Engagement(nil), m.engagements...)

	for _, e := range active {
		if _, ok := m.bySession[e.SessionId]; !ok {
			continue
		}
		m.resolveRound(ctx, e)
	}

	return nil
}

func (m *Manager) resolveRound(ctx context.Context, e *Engagement) {
	room := m.world.GetRoom(e.RoomId)
	if room == nil {
		// The recorded room cannot be resolved at all. Terminate the
		// engagement rather than leave it dangling.
		slog.ErrorContext(ctx, "engagement references unresolvable room",
			"session", e.SessionId, "room", e.RoomId, "target", e.TargetId)
		m.resolve(e, OutcomeTargetGone)
		return
	}

	target := room.GetNPC(e.TargetId)
	if target == nil || e.Player.Character.RoomId != e.RoomId {
		// Target gone from the recorded room, or the attacker left it.
		// Ends silently: no damage is applied this tick, and a
		// same-template NPC elsewhere can never soak the difference.
		m.resolve(e, OutcomeTargetGone)
		return
	}

	char := e.Player.Character
	t := m.world.Template(target.TemplateId)
	if t == nil {
		slog.ErrorContext(ctx, "engagement target has unknown template",
			"session", e.SessionId, "template", target.TemplateId)
		m.resolve(e, OutcomeTargetGone)
		return
	}

	// Attacker strikes first.
	dmg := char.GetAttackDamage()
	target.ApplyDamage(dmg)
	m.sendToPlayer(e, fmt.Sprintf("You %s %s! (%d)", DamageVerb(dmg), t.Name, dmg))

	if target.CurrentHP <= 0 {
		m.handleKill(ctx, e, room, target, t)
		return
	}

	// The NPC strikes back.
	dmg = t.RollDamage()
	char.ApplyDamage(dmg)
	m.sendToPlayer(e, fmt.Sprintf("%s %s you! (%d)", display.Capitalize(t.Name), DamageVerb(dmg), dmg))

	if char.CurrentHP <= 0 {
		m.handleDefeat(e, room, t)
	}
}

func (m *Manager) handleKill(ctx context.Context, e *Engagement, room *game.RoomState, target *game.NPCInstance, t *game.NPCTemplate) {
	room.RemoveNPC(target.InstanceId)

	msg, err := display.ExpandTemplate(t.DeathMessage(), struct{ Name string }{Name: t.Name})
	if err != nil {
		slog.WarnContext(ctx, "expanding death message", "template", target.TemplateId, "error", err)
		msg = fmt.Sprintf("%s is dead! R.I.P.", t.Name)
	}
	_ = m.pub.PublishToRoom(e.RoomId, []byte(msg))

	// Each loot entry rolls independently against its spawn probability.
	for _, entry := range t.Loot {
		if game.RollChance(entry.Chance) {
			room.AddItem(game.NewItemInstance(entry.ItemId))
		}
	}
	if gold := t.RollGold(); gold > 0 {
		room.AddGold(gold)
	}

	char := e.Player.Character
	char.Experience += t.Experience
	m.sendToPlayer(e, fmt.Sprintf("You receive %d experience points.", t.Experience))
	m.world.Persist(char)

	if m.events != nil {
		m.events.Emit("mud.events.combat.death", map[string]any{
			"template": target.TemplateId,
			"instance": target.InstanceId,
			"room":     e.RoomId,
			"killer":   e.Player.Name,
		})
	}

	m.resolve(e, OutcomeVictory)
}

func (m *Manager) handleDefeat(e *Engagement, room *game.RoomState, t *game.NPCTemplate) {
	char := e.Player.Character

	m.sendToPlayer(e, "You have been slain! You awaken in a familiar place...")
	_ = m.pub.PublishToRoom(e.RoomId, []byte(fmt.Sprintf("%s has been slain by %s!", char.Name, t.Name)))

	char.CurrentHP = char.MaxHP
	char.RoomId = m.world.DefaultRoom()
	m.world.Persist(char)

	m.resolve(e, OutcomeDefeat)
}

// resolve ends an engagement and restores flags. Caller holds the lock.
func (m *Manager) resolve(e *Engagement, outcome Outcome) {
	e.Outcome = outcome

	delete(m.bySession, e.SessionId)
	for i, other := range m.engagements {
		if other == e {
			m.engagements = append(m.engagements[:i], m.engagements[i+1:]...)
			break
		}
	}

	e.Player.Flags.InCombat = false

	// Release the NPC's combat flag unless another engagement still
	// targets the same instance.
	if room := m.world.GetRoom(e.RoomId); room != nil {
		if ni := room.GetNPC(e.TargetId); ni != nil && !m.targetedLocked(e.TargetId) {
			ni.InCombat = false
		}
	}
}

// targetedLocked reports whether any remaining engagement targets the
// instance. Caller holds the lock.
func (m *Manager) targetedLocked(instanceId string) bool {
	for _, e := range m.engagements {
		if e.TargetId == instanceId {
			return true
		}
	}
	return false
}

func (m *Manager) sendToPlayer(e *Engagement, msg string) {
	_ = m.pub.PublishToPlayer(e.Player.Name, []byte(msg))
}
