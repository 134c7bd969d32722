package commands

import (
	"context"
	"fmt"
)

// moveHandler returns the handler for one movement direction. Movement is
// permitted while in combat; the engagement then resolves as target-gone
// on the next tick because the attacker left the recorded room.
func (d *Dispatcher) moveHandler(dir string) CommandFunc {
	return func(ctx context.Context, cmdCtx *CommandContext) error {
		player := cmdCtx.Player

		if player.Flags.Resting || player.Flags.Meditating {
			return NewUserError("You need to stand up first.")
		}

		room := d.world.GetRoom(player.Character.RoomId)
		if room == nil {
			return NewUserError("You are in an invalid location.")
		}

		dest, ok := room.Room.Exits[dir]
		if !ok {
			return NewUserError("You can't go that way.")
		}
		toRoom := d.world.GetRoom(dest)
		if toRoom == nil {
			return NewUserError("You can't go that way.")
		}

		// Moving breaks hiding, and sneaking suppresses the arrival
		// announcement.
		player.Flags.Hidden = false
		fromId := player.Character.RoomId
		player.Character.RoomId = dest

		if !player.Flags.Sneaking {
			_ = d.pub.PublishToRoom(fromId, []byte(fmt.Sprintf("%s leaves %s.", player.Character.Name, dir)), player.Name)
			_ = d.pub.PublishToRoom(dest, []byte(fmt.Sprintf("%s arrives.", player.Character.Name)), player.Name)
		}

		return d.handleLook(ctx, cmdCtx)
	}
}
