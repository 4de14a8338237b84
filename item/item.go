// Package item implements the container-based item tree held by players
// and by the inventory cache.
//
// An Item is either a plain item or a container. Containers own their
// children; a child's parent pointer always points at the container that
// holds it and is only used to walk up the tree. Trees are never shared:
// moving a tree between owners goes through Clone.
package item

const (
	DepotChestType uint16 = 2594
	InboxType      uint16 = 14404
	BackpackType   uint16 = 1988
)

type Item struct {
	ID    uint16 // item type
	Count uint16 // stack count or subtype
	Attrs Attributes

	parent    *Item
	container bool
	items     []*Item
}

func New(id, count uint16) *Item {
	return &Item{ID: id, Count: count}
}

func NewContainer(id uint16) *Item {
	return &Item{ID: id, container: true}
}

func (i *Item) IsContainer() bool {
	return i.container
}

// Items returns the container's children in container order.
// The slice must not be modified by the caller.
func (i *Item) Items() []*Item {
	return i.items
}

func (i *Item) Parent() *Item {
	return i.parent
}

// AddItem appends child to the container and binds its parent.
// A child already held by another container is detached from it first.
func (i *Item) AddItem(child *Item) {
	if !i.container {
		panic("item: AddItem on non-container")
	}
	if child.parent != nil {
		child.parent.RemoveItem(child)
	}
	child.parent = i
	i.items = append(i.items, child)
}

// RemoveItem detaches child from the container. It reports whether child
// was found.
func (i *Item) RemoveItem(child *Item) bool {
	for n, c := range i.items {
		if c == child {
			i.items = append(i.items[:n], i.items[n+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Detach clears the parent pointer without touching the old parent.
// Used on freshly cloned roots that are handed to a new owner.
func (i *Item) Detach() {
	i.parent = nil
}

// Clone returns a deep copy of the tree rooted at i. The copy has no
// parent and shares no node or attribute storage with i.
func (i *Item) Clone() *Item {
	c := &Item{
		ID:        i.ID,
		Count:     i.Count,
		Attrs:     i.Attrs.clone(),
		container: i.container,
	}
	if len(i.items) > 0 {
		c.items = make([]*Item, 0, len(i.items))
		for _, child := range i.items {
			cc := child.Clone()
			cc.parent = c
			c.items = append(c.items, cc)
		}
	}
	return c
}

// Size returns the number of nodes in the tree rooted at i.
func (i *Item) Size() int {
	n := 1
	for _, c := range i.items {
		n += c.Size()
	}
	return n
}

// Equal reports whether a and b describe the same tree: same types,
// counts and attributes, same children in the same order. Node identity
// and parent pointers are ignored.
func Equal(a, b *Item) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != b.ID || a.Count != b.Count || a.container != b.container {
		return false
	}
	if !attrsEqual(a.Attrs, b.Attrs) || len(a.items) != len(b.items) {
		return false
	}
	for n := range a.items {
		if !Equal(a.items[n], b.items[n]) {
			return false
		}
	}
	return true
}

func attrsEqual(a, b Attributes) bool {
	if len(a.Custom) != len(b.Custom) {
		return false
	}
	for k, v := range a.Custom {
		if bv, ok := b.Custom[k]; !ok || bv != v {
			return false
		}
	}
	return a.Text == b.Text && a.Description == b.Description && a.Writer == b.Writer &&
		a.Date == b.Date && a.Charges == b.Charges && a.Duration == b.Duration &&
		a.ActionID == b.ActionID && a.UniqueID == b.UniqueID
}
