package commands

import (
	"context"
	"fmt"
)

// handleKill initiates a combat engagement against an NPC in the current
// room, targeted by case-insensitive name or alias prefix.
func (d *Dispatcher) handleKill(ctx context.Context, cmdCtx *CommandContext) error {
	if len(cmdCtx.Args) < 1 {
		return NewUserError("Kill what?")
	}
	if cmdCtx.Player.Flags.InCombat {
		return NewUserError("You're already fighting!")
	}

	target, err := d.combat.Engage(cmdCtx.Actor.SessionID(), cmdCtx.Player, cmdCtx.Args[0])
	if err != nil {
		return err
	}

	t := d.world.Template(target.TemplateId)
	name := target.TemplateId
	if t != nil {
		name = t.Name
	}

	cmdCtx.Actor.Write(fmt.Sprintf("You attack %s!", name))
	_ = d.pub.PublishToRoom(cmdCtx.Player.Character.RoomId,
		[]byte(fmt.Sprintf("%s attacks %s!", cmdCtx.Player.Character.Name, name)), cmdCtx.Player.Name)

	return nil
}

// handleFlee ends the actor's engagement immediately, with no tick delay.
func (d *Dispatcher) handleFlee(ctx context.Context, cmdCtx *CommandContext) error {
	err := d.combat.Flee(cmdCtx.Actor.SessionID())
	if err != nil {
		return NewUserError("You aren't fighting anyone.")
	}

	cmdCtx.Actor.Write("You flee from combat!")
	_ = d.pub.PublishToRoom(cmdCtx.Player.Character.RoomId,
		[]byte(fmt.Sprintf("%s flees from combat!", cmdCtx.Player.Character.Name)), cmdCtx.Player.Name)
	return nil
}
