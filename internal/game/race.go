package game

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// Race defines a playable race loaded from asset files. Its modifiers are
// applied once at character creation and when computing damage ranges.
type Race struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`

	// HPBonus and ManaBonus raise the character's maximums.
	HPBonus   int `json:"hp_bonus,omitempty"`
	ManaBonus int `json:"mana_bonus,omitempty"`

	// DamageBonus shifts both ends of the character's damage range.
	DamageBonus int `json:"damage_bonus,omitempty"`
}

func (r *Race) Validate() error {
	el := errors.NewErrorList()

	if r.Name == "" {
		el.Add(fmt.Errorf("race name is required"))
	}
	if r.HPBonus < 0 || r.ManaBonus < 0 {
		el.Add(fmt.Errorf("race bonuses must not be negative"))
	}

	return el.Err()
}

func (r *Race) Selector() string {
	return r.Name
}
