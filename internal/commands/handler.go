package commands

// registerAll wires every engine verb. Raw input is resolved into these
// already-parsed commands by the session layer before dispatch.
func (d *Dispatcher) registerAll() {
	d.register("look", d.handleLook, "l")
	d.register("score", d.handleScore, "stats", "sc")
	d.register("who", d.handleWho)

	d.register("kill", d.handleKill, "attack", "k")
	d.register("flee", d.handleFlee)

	d.register("north", d.moveHandler("north"), "n")
	d.register("south", d.moveHandler("south"), "s")
	d.register("east", d.moveHandler("east"), "e")
	d.register("west", d.moveHandler("west"), "w")
	d.register("up", d.moveHandler("up"), "u")
	d.register("down", d.moveHandler("down"), "d")

	d.register("rest", d.handleRest)
	d.register("stand", d.handleStand, "wake")
	d.register("meditate", d.handleMeditate, "med")
	d.register("sneak", d.handleSneak)
	d.register("hide", d.handleHide)

	d.register("get", d.handleGet, "take")
	d.register("quit", d.handleQuit)
}
