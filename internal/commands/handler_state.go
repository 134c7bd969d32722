package commands

import (
	"context"
)

// The rest/stealth verbs toggle the orthogonal session flags. All of them
// are illegal mid-combat; engaging combat clears every one of them.

func (d *Dispatcher) handleRest(ctx context.Context, cmdCtx *CommandContext) error {
	flags := &cmdCtx.Player.Flags
	if flags.InCombat {
		return NewUserError("You can't rest while fighting!")
	}
	if flags.Resting {
		return NewUserError("You are already resting.")
	}

	flags.Resting = true
	flags.Sneaking = false
	flags.Hidden = false
	cmdCtx.Actor.Write("You sit down and rest.")
	return nil
}

func (d *Dispatcher) handleStand(ctx context.Context, cmdCtx *CommandContext) error {
	flags := &cmdCtx.Player.Flags
	if !flags.Resting && !flags.Meditating {
		return NewUserError("You are already standing.")
	}

	flags.Resting = false
	flags.Meditating = false
	cmdCtx.Actor.Write("You stand up.")
	return nil
}

func (d *Dispatcher) handleMeditate(ctx context.Context, cmdCtx *CommandContext) error {
	flags := &cmdCtx.Player.Flags
	if flags.InCombat {
		return NewUserError("You can't meditate while fighting!")
	}
	if flags.Meditating {
		return NewUserError("You are already meditating.")
	}

	flags.Meditating = true
	flags.Sneaking = false
	flags.Hidden = false
	cmdCtx.Actor.Write("You close your eyes and clear your mind.")
	return nil
}

func (d *Dispatcher) handleSneak(ctx context.Context, cmdCtx *CommandContext) error {
	flags := &cmdCtx.Player.Flags
	if flags.InCombat {
		return NewUserError("You can't sneak while fighting!")
	}

	flags.Sneaking = !flags.Sneaking
	if flags.Sneaking {
		cmdCtx.Actor.Write("You begin moving silently.")
	} else {
		cmdCtx.Actor.Write("You stop sneaking.")
	}
	return nil
}

func (d *Dispatcher) handleHide(ctx context.Context, cmdCtx *CommandContext) error {
	flags := &cmdCtx.Player.Flags
	if flags.InCombat {
		return NewUserError("You can't hide while fighting!")
	}
	if flags.Hidden {
		return NewUserError("You are already hidden.")
	}

	flags.Hidden = true
	cmdCtx.Actor.Write("You slip into the shadows.")
	return nil
}
