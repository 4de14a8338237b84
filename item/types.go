package item

import "sync"

const BagType uint16 = 1987

var (
	typesMu        sync.RWMutex
	containerTypes = map[uint16]struct{}{
		DepotChestType: {},
		InboxType:      {},
		BackpackType:   {},
		BagType:        {},
	}
)

// RegisterContainerType marks id as a container item type. Rows loaded
// from storage carry only the type, so this is what decides whether a
// loaded item can hold children.
func RegisterContainerType(id uint16) {
	typesMu.Lock()
	containerTypes[id] = struct{}{}
	typesMu.Unlock()
}

func IsContainerType(id uint16) bool {
	typesMu.RLock()
	_, ok := containerTypes[id]
	typesMu.RUnlock()
	return ok
}

// Create returns a new item of the given type, a container when the type
// is registered as one.
func Create(id, count uint16) *Item {
	if IsContainerType(id) {
		c := NewContainer(id)
		c.Count = count
		return c
	}
	return New(id, count)
}
