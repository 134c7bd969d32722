package population

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// SpawnPolicy is the per-area spawn configuration loaded from asset
// files: which template spawns, where, how many may be alive across the
// area at once, and how many ticks between spawn attempts.
type SpawnPolicy struct {
	TemplateId string `json:"template_id"`

	// Rooms are the area's member rooms; live instances are counted
	// across all of them when enforcing the cap.
	Rooms []string `json:"rooms"`

	// SpawnRoom is where new instances appear. Must be one of Rooms.
	SpawnRoom string `json:"spawn_room"`

	MaxInstances    int `json:"max_instances"`
	RespawnInterval int `json:"respawn_interval"` // ticks
}

// Validate satisfies storage.ValidatingSpec.
func (p *SpawnPolicy) Validate() error {
	el := errors.NewErrorList()

	if p.TemplateId == "" {
		el.Add(fmt.Errorf("template_id is required"))
	}
	if len(p.Rooms) == 0 {
		el.Add(fmt.Errorf("at least one room is required"))
	}
	if p.SpawnRoom == "" {
		el.Add(fmt.Errorf("spawn_room is required"))
	} else {
		found := false
		for _, r := range p.Rooms {
			if r == p.SpawnRoom {
				found = true
				break
			}
		}
		if !found {
			el.Add(fmt.Errorf("spawn_room %q must be one of the area rooms", p.SpawnRoom))
		}
	}
	if p.MaxInstances < 1 {
		el.Add(fmt.Errorf("max_instances must be at least 1"))
	}
	if p.RespawnInterval < 1 {
		el.Add(fmt.Errorf("respawn_interval must be at least 1 tick"))
	}

	return el.Err()
}
