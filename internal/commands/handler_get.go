package commands

import (
	"context"
	"fmt"
)

// handleGet picks up a dropped item or loose gold from the current room.
func (d *Dispatcher) handleGet(ctx context.Context, cmdCtx *CommandContext) error {
	if len(cmdCtx.Args) < 1 {
		return NewUserError("Get what?")
	}

	player := cmdCtx.Player
	room := d.world.GetRoom(player.Character.RoomId)
	if room == nil {
		return NewUserError("You are in an invalid location.")
	}

	if cmdCtx.Args[0] == "gold" || cmdCtx.Args[0] == "coins" {
		gold := room.Gold()
		if gold == 0 {
			return NewUserError("There is no gold here.")
		}
		room.AddGold(-gold)
		player.Character.Gold += gold
		d.world.Persist(player.Character)
		cmdCtx.Actor.Write(fmt.Sprintf("You pick up %d gold coins.", gold))
		return nil
	}

	item := room.TakeItem(cmdCtx.Args[0])
	if item == nil {
		return NewUserError(fmt.Sprintf("You don't see a %s here.", cmdCtx.Args[0]))
	}

	player.Character.Inventory = append(player.Character.Inventory, item)
	d.world.Persist(player.Character)
	cmdCtx.Actor.Write(fmt.Sprintf("You pick up the %s.", item.ItemId))
	return nil
}

// handleQuit saves the character and flags the session for teardown.
func (d *Dispatcher) handleQuit(ctx context.Context, cmdCtx *CommandContext) error {
	if cmdCtx.Player.Flags.InCombat {
		return NewUserError("You can't quit in the middle of a fight!")
	}

	d.world.Persist(cmdCtx.Player.Character)
	cmdCtx.Actor.Write("Goodbye!")
	cmdCtx.Actor.RequestQuit()
	return nil
}
