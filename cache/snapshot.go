package cache

import (
	"slices"
	"sync"

	"playercache/cd"
	"playercache/item"
	"playercache/player"
)

// Snapshot is the cache's own copy of one player's containers. Every tree
// it holds was cloned on the way in and is cloned again on the way out,
// so nothing is ever shared with a live player or another Snapshot.
type Snapshot struct {
	mu          sync.Mutex
	equipment   [cd.SlotLast + 1]*item.Item
	depotChests map[uint32]*item.Item
	inbox       *item.Item
	lastDepotID int16
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		depotChests: map[uint32]*item.Item{},
		lastDepotID: cd.NoDepot,
	}
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := newSnapshot()
	for slot := cd.SlotFirst; slot <= cd.SlotLast; slot++ {
		if it := s.equipment[slot]; it != nil {
			c.equipment[slot] = it.Clone()
		}
	}
	for id, chest := range s.depotChests {
		c.depotChests[id] = chest.Clone()
	}
	if s.inbox != nil {
		c.inbox = s.inbox.Clone()
	}
	c.lastDepotID = s.lastDepotID
	return c
}

// CopyFrom replaces the whole content of s with copies of live's trees.
// The copies are built before taking the lock, then swapped in at once.
func (s *Snapshot) CopyFrom(live player.Reader) {
	var equipment [cd.SlotLast + 1]*item.Item
	for slot := cd.SlotFirst; slot <= cd.SlotLast; slot++ {
		if it := live.SlotItem(slot); it != nil {
			equipment[slot] = it.Clone()
		}
	}
	chests := map[uint32]*item.Item{}
	for id, chest := range live.DepotChests() {
		chests[id] = chest.Clone()
	}
	var inbox *item.Item
	if box := live.Inbox(); box != nil {
		inbox = box.Clone()
	}
	lastDepotID := live.LastDepotID()

	s.mu.Lock()
	s.equipment = equipment
	s.depotChests = chests
	s.inbox = inbox
	s.lastDepotID = lastDepotID
	s.mu.Unlock()
}

// CopyTo hands copies of the snapshot's trees to live. Slots and depot
// chests present in the snapshot overwrite the live ones, the inbox is
// replaced when the snapshot has one. The last depot id stays with the
// live object.
func (s *Snapshot) CopyTo(live player.Inventory) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for slot := cd.SlotFirst; slot <= cd.SlotLast; slot++ {
		if it := s.equipment[slot]; it != nil {
			live.SetSlotItem(slot, it.Clone())
		}
	}
	for id, chest := range s.depotChests {
		live.SetDepotChest(id, chest.Clone())
	}
	if s.inbox != nil {
		live.SetInbox(s.inbox.Clone())
	}
}

// The accessors below expose the snapshot's own trees; they are meant for
// a Clone that nobody else holds, as the persist path does.

func (s *Snapshot) SlotItem(slot cd.Slot) *item.Item {
	if slot < cd.SlotFirst || slot > cd.SlotLast {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.equipment[slot]
}

func (s *Snapshot) DepotChests() map[uint32]*item.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[uint32]*item.Item, len(s.depotChests))
	for id, chest := range s.depotChests {
		m[id] = chest
	}
	return m
}

func (s *Snapshot) Inbox() *item.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inbox
}

func (s *Snapshot) LastDepotID() int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDepotID
}

// Summary describes a snapshot without exposing its trees.
type Summary struct {
	Slots       []int    `json:"slots"`
	DepotIDs    []uint32 `json:"depot_ids"`
	DepotItems  int      `json:"depot_items"`
	InboxItems  int      `json:"inbox_items"`
	LastDepotID int16    `json:"last_depot_id"`
	Nodes       int      `json:"nodes"`
}

func (s *Snapshot) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{LastDepotID: s.lastDepotID, Slots: []int{}, DepotIDs: []uint32{}}
	for slot := cd.SlotFirst; slot <= cd.SlotLast; slot++ {
		if it := s.equipment[slot]; it != nil {
			sum.Slots = append(sum.Slots, int(slot))
			sum.Nodes += it.Size()
		}
	}
	for id, chest := range s.depotChests {
		sum.DepotIDs = append(sum.DepotIDs, id)
		sum.DepotItems += len(chest.Items())
		sum.Nodes += chest.Size()
	}
	slices.Sort(sum.DepotIDs)
	if s.inbox != nil {
		sum.InboxItems = len(s.inbox.Items())
		sum.Nodes += s.inbox.Size()
	}
	return sum
}
