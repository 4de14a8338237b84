package persist

import (
	"sort"

	"playercache/cd"
	"playercache/item"
	"playercache/player"
)

// Items is everything that gets written for one owner.
type Items struct {
	Equipment   []Top
	Depot       []Top
	Inbox       []Top
	LastDepotID int16
}

// Collect gathers the top-level items of src in persist order: slots
// ascending, depot ids ascending (each chest's children reference the
// depot id, the chest itself is not stored), then the inbox children.
func Collect(src player.Reader) Items {
	var items Items
	for slot := cd.PersistSlotFirst; slot <= cd.PersistSlotLast; slot++ {
		if it := src.SlotItem(slot); it != nil {
			items.Equipment = append(items.Equipment, Top{ParentRef: int32(slot), Item: it})
		}
	}

	chests := src.DepotChests()
	ids := make([]uint32, 0, len(chests))
	for id := range chests {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		for _, it := range chests[id].Items() {
			items.Depot = append(items.Depot, Top{ParentRef: int32(id), Item: it})
		}
	}

	if inbox := src.Inbox(); inbox != nil {
		for _, it := range inbox.Items() {
			items.Inbox = append(items.Inbox, Top{ParentRef: cd.InboxParent, Item: it})
		}
	}
	items.LastDepotID = src.LastDepotID()
	return items
}

// Restore hands rebuilt trees to the live object: equipment by slot,
// depot items into freshly created chests per depot id, inbox items into
// a new inbox.
func Restore(dst player.Inventory, equipment, depot, inbox []Top) {
	for _, t := range equipment {
		slot := cd.Slot(t.ParentRef)
		if t.ParentRef < int32(cd.SlotFirst) || t.ParentRef > int32(cd.SlotLast) {
			continue
		}
		dst.SetSlotItem(slot, t.Item)
	}

	chests := map[uint32]*item.Item{}
	for _, t := range depot {
		if t.ParentRef < 0 {
			continue
		}
		id := uint32(t.ParentRef)
		chest, ok := chests[id]
		if !ok {
			chest = item.NewContainer(item.DepotChestType)
			chests[id] = chest
		}
		chest.AddItem(t.Item)
	}
	for id, chest := range chests {
		dst.SetDepotChest(id, chest)
	}

	box := item.NewContainer(item.InboxType)
	for _, t := range inbox {
		box.AddItem(t.Item)
	}
	dst.SetInbox(box)
}
