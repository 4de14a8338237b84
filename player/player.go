// Package player holds the live, in-world representation of a player's
// containers and the interfaces the inventory cache consumes.
package player

import (
	"sort"
	"sync"

	"playercache/cd"
	"playercache/item"
)

// Reader is the read side of a player's containers.
// Returned trees belong to the reader; callers clone before keeping them.
type Reader interface {
	SlotItem(slot cd.Slot) *item.Item
	DepotChests() map[uint32]*item.Item
	Inbox() *item.Item
	LastDepotID() int16
}

// Inventory is a Reader that can also take ownership of trees.
type Inventory interface {
	Reader
	SetSlotItem(slot cd.Slot, it *item.Item)
	SetDepotChest(depotID uint32, chest *item.Item)
	SetInbox(inbox *item.Item)
}

// Player is the live object of a logged in player. The mutex guards the
// slot table and the depot map; the item trees themselves are owned by
// the game loop driving this player.
type Player struct {
	GUID uint32
	Name string

	mu          sync.Mutex
	inventory   [cd.SlotLast + 1]*item.Item
	depotChests map[uint32]*item.Item
	inbox       *item.Item
	lastDepotID int16
}

func New(guid uint32, name string) *Player {
	return &Player{
		GUID:        guid,
		Name:        name,
		depotChests: map[uint32]*item.Item{},
		inbox:       item.NewContainer(item.InboxType),
		lastDepotID: cd.NoDepot,
	}
}

func validSlot(slot cd.Slot) bool {
	return slot >= cd.SlotFirst && slot <= cd.SlotLast
}

func (p *Player) SlotItem(slot cd.Slot) *item.Item {
	if !validSlot(slot) {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inventory[slot]
}

// SetSlotItem puts it into slot, replacing what was there. nil empties
// the slot. Out of range slots are ignored.
func (p *Player) SetSlotItem(slot cd.Slot, it *item.Item) {
	if !validSlot(slot) {
		return
	}
	if it != nil {
		it.Detach()
	}
	p.mu.Lock()
	p.inventory[slot] = it
	p.mu.Unlock()
}

// DepotChests returns a copy of the depot map. The chests are not copied.
func (p *Player) DepotChests() map[uint32]*item.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := make(map[uint32]*item.Item, len(p.depotChests))
	for id, chest := range p.depotChests {
		m[id] = chest
	}
	return m
}

// SetDepotChest stores chest under depotID. Ids above cd.MaxDepotID are
// ignored.
func (p *Player) SetDepotChest(depotID uint32, chest *item.Item) {
	if !cd.ValidDepotID(depotID) {
		return
	}
	chest.Detach()
	p.mu.Lock()
	p.depotChests[depotID] = chest
	p.mu.Unlock()
}

// DepotChest returns the chest for depotID, creating an empty one when
// autoCreate is set. It returns nil for ids above cd.MaxDepotID.
func (p *Player) DepotChest(depotID uint32, autoCreate bool) *item.Item {
	if !cd.ValidDepotID(depotID) {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	chest, ok := p.depotChests[depotID]
	if !ok && autoCreate {
		chest = item.NewContainer(item.DepotChestType)
		p.depotChests[depotID] = chest
	}
	return chest
}

// OpenDepot is what happens when the player uses a depot: the chest is
// materialized and remembered as the last used one. Ids above
// cd.MaxDepotID are refused with nil and leave the player untouched.
func (p *Player) OpenDepot(depotID uint32) *item.Item {
	chest := p.DepotChest(depotID, true)
	if chest == nil {
		return nil
	}
	p.mu.Lock()
	p.lastDepotID = int16(depotID)
	p.mu.Unlock()
	return chest
}

// DepotIDs returns the ids of all materialized chests in ascending order.
func (p *Player) DepotIDs() []uint32 {
	p.mu.Lock()
	ids := make([]uint32, 0, len(p.depotChests))
	for id := range p.depotChests {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *Player) Inbox() *item.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inbox
}

func (p *Player) SetInbox(inbox *item.Item) {
	if inbox != nil {
		inbox.Detach()
	}
	p.mu.Lock()
	p.inbox = inbox
	p.mu.Unlock()
}

func (p *Player) LastDepotID() int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastDepotID
}

func (p *Player) SetLastDepotID(id int16) {
	p.mu.Lock()
	p.lastDepotID = id
	p.mu.Unlock()
}
