package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/driftmark/go-mud/internal/display"
)

// handleLook displays the current room: description, exits, occupants,
// and anything lying on the ground. Read-only - it executes at receipt
// time without waiting for a tick.
func (d *Dispatcher) handleLook(ctx context.Context, cmdCtx *CommandContext) error {
	room := d.world.GetRoom(cmdCtx.Player.Character.RoomId)
	if room == nil {
		return NewUserError("You are in an invalid location.")
	}

	var b strings.Builder
	b.WriteString(room.Room.Name + "\n")
	b.WriteString(display.Wrap(room.Room.Description) + "\n")

	dirs := room.ExitDirections()
	if len(dirs) == 0 {
		b.WriteString("There are no obvious exits.\n")
	} else {
		b.WriteString("Exits: " + strings.Join(dirs, ", ") + "\n")
	}

	for _, ni := range room.NPCs() {
		t := d.world.Template(ni.TemplateId)
		if t == nil {
			continue
		}
		b.WriteString(display.Capitalize(t.Name) + " is here.\n")
	}

	for _, name := range d.world.PlayersInRoom(room.Id) {
		if strings.EqualFold(name, cmdCtx.Player.Name) {
			continue
		}
		if other := d.world.GetPlayer(name); other != nil && other.Flags.Hidden {
			continue
		}
		b.WriteString(display.Capitalize(name) + " is here.\n")
	}

	for _, ii := range room.Items() {
		b.WriteString(fmt.Sprintf("A %s lies here.\n", ii.ItemId))
	}
	if gold := room.Gold(); gold > 0 {
		b.WriteString(fmt.Sprintf("%d gold coins are scattered here.\n", gold))
	}

	cmdCtx.Actor.Write(strings.TrimRight(b.String(), "\n"))
	return nil
}
