package game

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/pixil98/go-errors"
)

// LootEntry is one loot-table row: the item dropped and the independent
// probability it spawns when the NPC dies.
type LootEntry struct {
	ItemId string  `json:"item_id"`
	Chance float64 `json:"chance"`
}

// NPCTemplate is the immutable definition a live NPC instance is stamped
// from. Multiple instances of the same template, in the same or different
// rooms, are always distinguished by instance id, never by template id.
type NPCTemplate struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`

	MaxHP     int `json:"max_hp"`
	DamageMin int `json:"damage_min"`
	DamageMax int `json:"damage_max"`

	Merchant bool `json:"merchant,omitempty"`

	// Stationary NPCs never move; Mobile NPCs move every MoveInterval ticks.
	Stationary   bool `json:"stationary,omitempty"`
	MoveInterval int  `json:"move_interval,omitempty"`

	Loot          []LootEntry `json:"loot,omitempty"`
	GoldMin       int         `json:"gold_min,omitempty"`
	GoldMax       int         `json:"gold_max,omitempty"`
	DeathMessages []string    `json:"death_messages,omitempty"`
	Experience    int         `json:"experience"`
}

// Validate satisfies storage.ValidatingSpec.
func (t *NPCTemplate) Validate() error {
	el := errors.NewErrorList()

	if t.Name == "" {
		el.Add(fmt.Errorf("npc name is required"))
	}
	if t.MaxHP <= 0 {
		el.Add(fmt.Errorf("max_hp must be positive"))
	}
	if t.DamageMin < 0 || t.DamageMax < t.DamageMin {
		el.Add(fmt.Errorf("damage range [%d,%d] is invalid", t.DamageMin, t.DamageMax))
	}
	if t.GoldMax < t.GoldMin {
		el.Add(fmt.Errorf("gold range [%d,%d] is invalid", t.GoldMin, t.GoldMax))
	}
	for i, le := range t.Loot {
		if le.ItemId == "" {
			el.Add(fmt.Errorf("loot entry %d: item_id is required", i))
		}
		if le.Chance < 0 || le.Chance > 1 {
			el.Add(fmt.Errorf("loot entry %d: chance must be in [0,1]", i))
		}
	}
	if t.MoveInterval < 0 {
		el.Add(fmt.Errorf("move_interval must not be negative"))
	}

	return el.Err()
}

// MatchName returns true if name is a case-insensitive prefix of the
// template's name or any alias. Used at engagement initiation only; all
// later addressing is by instance id.
func (t *NPCTemplate) MatchName(name string) bool {
	name = strings.ToLower(name)
	if strings.HasPrefix(strings.ToLower(t.Name), name) {
		return true
	}
	for _, alias := range t.Aliases {
		if strings.HasPrefix(strings.ToLower(alias), name) {
			return true
		}
	}
	return false
}

// Movable reports whether instances of this template participate in the
// mobility schedule at all.
func (t *NPCTemplate) Movable() bool {
	return t.MoveInterval > 0 && !t.Stationary && !t.Merchant
}

// RollDamage draws uniformly over the closed interval [DamageMin, DamageMax].
func (t *NPCTemplate) RollDamage() int {
	return rollRange(t.DamageMin, t.DamageMax)
}

// RollGold draws the gold dropped on death.
func (t *NPCTemplate) RollGold() int {
	return rollRange(t.GoldMin, t.GoldMax)
}

// DeathMessage selects one death message uniformly, expanded elsewhere.
func (t *NPCTemplate) DeathMessage() string {
	if len(t.DeathMessages) == 0 {
		return "{{.Name}} is dead! R.I.P."
	}
	return t.DeathMessages[rand.IntN(len(t.DeathMessages))]
}

func rollRange(min, max int) int {
	if max <= min {
		return min
	}
	return min + rand.IntN(max-min+1)
}

// RollChance returns true with probability p.
func RollChance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return rand.Float64() < p
}

// NewItemInstance creates a fresh item occurrence for the given item id.
func NewItemInstance(itemId string) *ItemInstance {
	return &ItemInstance{
		InstanceId: uuid.New().String(),
		ItemId:     itemId,
	}
}

// NPCInstance is one live combatant stamped from a template. The instance
// id is freshly generated and independent of the template id.
type NPCInstance struct {
	InstanceId string `json:"instance_id"`
	TemplateId string `json:"template_id"`

	CurrentHP int  `json:"current_hp"`
	InCombat  bool `json:"-"`

	// MoveCountdown ticks down only while the instance is eligible to
	// move, so a paused schedule resumes where it left off.
	MoveCountdown int `json:"move_countdown,omitempty"`
}

// NewNPCInstance stamps a live instance from a template.
func NewNPCInstance(templateId string, t *NPCTemplate) *NPCInstance {
	return &NPCInstance{
		InstanceId:    uuid.New().String(),
		TemplateId:    templateId,
		CurrentHP:     t.MaxHP,
		MoveCountdown: t.MoveInterval,
	}
}

// ApplyDamage reduces the instance's health, clamping at zero.
func (ni *NPCInstance) ApplyDamage(dmg int) {
	ni.CurrentHP -= dmg
	if ni.CurrentHP < 0 {
		ni.CurrentHP = 0
	}
}
