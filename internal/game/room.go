package game

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pixil98/go-errors"
)

// Room is the static topology node loaded from asset files.
type Room struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Exits       map[string]string `json:"exits"` // direction -> room id
	Safe        bool              `json:"safe,omitempty"`
}

// Validate satisfies storage.ValidatingSpec.
func (r *Room) Validate() error {
	el := errors.NewErrorList()

	if r.Name == "" {
		el.Add(fmt.Errorf("room name is required"))
	}
	for dir, dest := range r.Exits {
		if dest == "" {
			el.Add(fmt.Errorf("exit %s: destination room id is required", dir))
		}
	}

	return el.Err()
}

// ItemInstance is one dropped or carried item occurrence.
type ItemInstance struct {
	InstanceId string `json:"instance_id"`
	ItemId     string `json:"item_id"`
}

// RoomState is the live occupancy of one room: NPC instances keyed strictly
// by instance id, dropped items, and loose gold. The instance-id keying is
// what keeps same-template NPCs in different rooms from ever being confused.
type RoomState struct {
	Id   string
	Room *Room

	mu    sync.RWMutex
	npcs  map[string]*NPCInstance
	items []*ItemInstance
	gold  int
}

func NewRoomState(id string, room *Room) *RoomState {
	return &RoomState{
		Id:   id,
		Room: room,
		npcs: make(map[string]*NPCInstance),
	}
}

// AddNPC places an instance in the room, keyed by its instance id.
func (r *RoomState) AddNPC(ni *NPCInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.npcs[ni.InstanceId] = ni
}

// GetNPC returns the instance with the given instance id, or nil.
func (r *RoomState) GetNPC(instanceId string) *NPCInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.npcs[instanceId]
}

// RemoveNPC removes and returns the instance, or nil if absent.
func (r *RoomState) RemoveNPC(instanceId string) *NPCInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	ni, ok := r.npcs[instanceId]
	if !ok {
		return nil
	}
	delete(r.npcs, instanceId)
	return ni
}

// NPCs returns a copy of the room's NPC instances.
func (r *RoomState) NPCs() []*NPCInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*NPCInstance, 0, len(r.npcs))
	for _, ni := range r.npcs {
		out = append(out, ni)
	}
	return out
}

// NPCCount returns the number of live instances stamped from templateId.
func (r *RoomState) NPCCount(templateId string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, ni := range r.npcs {
		if ni.TemplateId == templateId {
			n++
		}
	}
	return n
}

// AddItem drops an item instance in the room.
func (r *RoomState) AddItem(ii *ItemInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, ii)
}

// TakeItem removes and returns the first item whose id matches the given
// case-insensitive prefix, or nil.
func (r *RoomState) TakeItem(prefix string) *ItemInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix = strings.ToLower(prefix)
	for i, ii := range r.items {
		if strings.HasPrefix(strings.ToLower(ii.ItemId), prefix) {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return ii
		}
	}
	return nil
}

// Items returns a copy of the room's item instances.
func (r *RoomState) Items() []*ItemInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*ItemInstance(nil), r.items...)
}

// AddGold adds loose currency to the room. Negative deltas are clamped
// so the room never holds a negative amount.
func (r *RoomState) AddGold(delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gold += delta
	if r.gold < 0 {
		r.gold = 0
	}
}

// Gold returns the loose currency in the room.
func (r *RoomState) Gold() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gold
}

// ClearOccupancy drops all NPCs, items, and gold. Used on snapshot load.
func (r *RoomState) ClearOccupancy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.npcs = make(map[string]*NPCInstance)
	r.items = nil
	r.gold = 0
}

// ExitDirections returns the room's exits in a stable order.
func (r *RoomState) ExitDirections() []string {
	dirs := make([]string, 0, len(r.Room.Exits))
	for d := range r.Room.Exits {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}
