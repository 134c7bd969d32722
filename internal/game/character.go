package game

import (
	"fmt"
	"strings"

	"github.com/pixil98/go-errors"
)

// Character represents a player character. It is persisted through the
// character store on mutation checkpoints; a failed save is logged and
// retried on the next mutation, never rolled back in memory.
type Character struct {
	// Name is the character's display name
	Name string `json:"name"`

	// Password is the bcrypt-hashed login credential
	Password string `json:"password"`

	Race Identifier `json:"race,omitempty"`

	Level      int `json:"level"`
	Experience int `json:"experience"`
	Gold       int `json:"gold"`

	CurrentHP int `json:"current_hp"`
	MaxHP     int `json:"max_hp"`
	Mana      int `json:"mana"`
	MaxMana   int `json:"max_mana"`

	// Last known room, saved on quit/save for restoring on login
	RoomId string `json:"room_id,omitempty"`

	Inventory []*ItemInstance `json:"inventory,omitempty"`

	// raceBonus is resolved from the race definition after load; it is
	// not persisted because it derives entirely from the race asset.
	raceBonus int
}

// Identifier aliases the storage key type without importing storage here.
type Identifier string

const (
	baseMaxHP   = 100
	baseMaxMana = 50
)

func NewCharacter(name, hashedPass string, raceId Identifier, race *Race) *Character {
	c := &Character{
		Name:     name,
		Password: hashedPass,
		Race:     raceId,
		Level:    1,
		Gold:     0,
		MaxHP:    baseMaxHP,
		MaxMana:  baseMaxMana,
	}
	if race != nil {
		c.MaxHP += race.HPBonus
		c.MaxMana += race.ManaBonus
		c.raceBonus = race.DamageBonus
	}
	c.CurrentHP = c.MaxHP
	c.Mana = c.MaxMana
	return c
}

// DamageRange returns the closed interval characters draw attack damage
// from, derived from level and race modifiers.
func (c *Character) DamageRange() (min, max int) {
	min = 1 + c.Level/2 + c.raceBonus
	max = 4 + c.Level + c.raceBonus
	return min, max
}

// GetAttackDamage draws uniformly over the character's damage range.
func (c *Character) GetAttackDamage() int {
	min, max := c.DamageRange()
	return rollRange(min, max)
}

// ApplyDamage reduces health, clamping at zero.
func (c *Character) ApplyDamage(dmg int) {
	c.CurrentHP -= dmg
	if c.CurrentHP < 0 {
		c.CurrentHP = 0
	}
}

// Regenerate restores health and mana without overshooting the maximums.
func (c *Character) Regenerate(hp, mana int) {
	c.CurrentHP += hp
	if c.CurrentHP > c.MaxHP {
		c.CurrentHP = c.MaxHP
	}
	c.Mana += mana
	if c.Mana > c.MaxMana {
		c.Mana = c.MaxMana
	}
}

// ResolveRace applies the race's runtime damage modifier after load.
func (c *Character) ResolveRace(race *Race) {
	if race != nil {
		c.raceBonus = race.DamageBonus
	}
}

// MatchName returns true if name matches this character's name (case-insensitive).
func (c *Character) MatchName(name string) bool {
	return strings.EqualFold(c.Name, name)
}

// Validate satisfies storage.ValidatingSpec.
func (c *Character) Validate() error {
	el := errors.NewErrorList()

	if c.Name == "" {
		el.Add(fmt.Errorf("character name is required"))
	}
	if c.MaxHP <= 0 {
		el.Add(fmt.Errorf("max_hp must be positive"))
	}
	if c.Level < 1 {
		el.Add(fmt.Errorf("level must be at least 1"))
	}

	return el.Err()
}
