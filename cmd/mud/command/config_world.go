package command

import (
	"fmt"

	"github.com/driftmark/go-mud/internal/game"
	"github.com/pixil98/go-errors"
)

type WorldConfig struct {
	DefaultRoom string `json:"default_room"`
}

func (c *WorldConfig) validate() error {
	el := errors.NewErrorList()

	if c.DefaultRoom == "" {
		el.Add(fmt.Errorf("default_room is required"))
	}

	return el.Err()
}

func (c *WorldConfig) BuildWorld(stores *Stores) (*game.World, error) {
	return game.NewWorld(stores.Rooms, stores.NpcTemplates, stores.Races, stores.Characters, c.DefaultRoom)
}
