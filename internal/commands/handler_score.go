package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/driftmark/go-mud/internal/game"
)

// handleScore prints the character sheet. Read-only.
func (d *Dispatcher) handleScore(ctx context.Context, cmdCtx *CommandContext) error {
	char := cmdCtx.Player.Character

	var b strings.Builder
	fmt.Fprintf(&b, "%s, level %d", char.Name, char.Level)
	if race := d.world.Race(string(char.Race)); race != nil {
		fmt.Fprintf(&b, " %s", race.Name)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Health: %d/%d  Mana: %d/%d\n", char.CurrentHP, char.MaxHP, char.Mana, char.MaxMana)
	fmt.Fprintf(&b, "Experience: %d  Gold: %d\n", char.Experience, char.Gold)
	if len(char.Inventory) > 0 {
		items := make([]string, 0, len(char.Inventory))
		for _, ii := range char.Inventory {
			items = append(items, ii.ItemId)
		}
		fmt.Fprintf(&b, "Carrying: %s\n", strings.Join(items, ", "))
	}
	if flags := flagLabels(cmdCtx); len(flags) > 0 {
		fmt.Fprintf(&b, "You are %s.\n", strings.Join(flags, ", "))
	}

	cmdCtx.Actor.Write(strings.TrimRight(b.String(), "\n"))
	return nil
}

func flagLabels(cmdCtx *CommandContext) []string {
	var labels []string
	f := cmdCtx.Player.Flags
	if f.InCombat {
		labels = append(labels, "fighting")
	}
	if f.Resting {
		labels = append(labels, "resting")
	}
	if f.Meditating {
		labels = append(labels, "meditating")
	}
	if f.Sneaking {
		labels = append(labels, "sneaking")
	}
	if f.Hidden {
		labels = append(labels, "hidden")
	}
	return labels
}

// handleWho lists everyone in the world. Hidden players are omitted,
// except from their own listing. Read-only.
func (d *Dispatcher) handleWho(ctx context.Context, cmdCtx *CommandContext) error {
	type row struct {
		name  string
		level int
	}
	var rows []row
	d.world.ForEachPlayer(func(name string, ps *game.PlayerState) {
		if ps.Flags.Hidden && !strings.EqualFold(name, cmdCtx.Player.Name) {
			return
		}
		rows = append(rows, row{name: ps.Character.Name, level: ps.Character.Level})
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

	var b strings.Builder
	b.WriteString("Adventurers abroad:\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "  [%2d] %s\n", r.level, r.name)
	}
	fmt.Fprintf(&b, "%d total.", len(rows))

	cmdCtx.Actor.Write(b.String())
	return nil
}
