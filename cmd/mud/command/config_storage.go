package command

import (
	"fmt"
	"os"

	"github.com/driftmark/go-mud/internal/game"
	"github.com/driftmark/go-mud/internal/population"
	"github.com/driftmark/go-mud/internal/storage"
	"github.com/pixil98/go-errors"
)

type StorageConfig struct {
	Characters    AssetConfig[*game.Character]         `json:"characters"`
	Rooms         AssetConfig[*game.Room]              `json:"rooms"`
	NpcTemplates  AssetConfig[*game.NPCTemplate]       `json:"npc_templates"`
	Races         AssetConfig[*game.Race]              `json:"races"`
	SpawnPolicies AssetConfig[*population.SpawnPolicy] `json:"spawn_policies"`
}

// Stores bundles the file stores the engine loads at startup.
type Stores struct {
	Characters    *storage.FileStore[*game.Character]
	Rooms         *storage.FileStore[*game.Room]
	NpcTemplates  *storage.FileStore[*game.NPCTemplate]
	Races         *storage.FileStore[*game.Race]
	SpawnPolicies *storage.FileStore[*population.SpawnPolicy]
}

func (c *StorageConfig) BuildStores() (*Stores, error) {
	chars, err := c.Characters.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating character store: %w", err)
	}
	rooms, err := c.Rooms.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating room store: %w", err)
	}
	templates, err := c.NpcTemplates.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating npc template store: %w", err)
	}
	races, err := c.Races.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating race store: %w", err)
	}
	policies, err := c.SpawnPolicies.BuildFileStore()
	if err != nil {
		return nil, fmt.Errorf("creating spawn policy store: %w", err)
	}

	return &Stores{
		Characters:    chars,
		Rooms:         rooms,
		NpcTemplates:  templates,
		Races:         races,
		SpawnPolicies: policies,
	}, nil
}

func (c *StorageConfig) validate() error {
	el := errors.NewErrorList()
	el.Add(c.Characters.Validate("characters"))
	el.Add(c.Rooms.Validate("rooms"))
	el.Add(c.NpcTemplates.Validate("npc_templates"))
	el.Add(c.Races.Validate("races"))
	el.Add(c.SpawnPolicies.Validate("spawn_policies"))
	return el.Err()
}

type AssetConfig[T storage.ValidatingSpec] struct {
	Path string `json:"path"`
}

func (c *AssetConfig[T]) Validate(name string) error {
	if c.Path == "" {
		return fmt.Errorf("%s: path is required", name)
	}
	_, err := os.Stat(c.Path)
	if err != nil {
		return fmt.Errorf("%s: invalid path %q: %w", name, c.Path, err)
	}

	return nil
}

func (c *AssetConfig[T]) BuildFileStore() (*storage.FileStore[T], error) {
	return storage.NewFileStore[T](c.Path)
}
