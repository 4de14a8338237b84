// Package persist flattens item trees into relational rows and writes
// them through a Backend.
//
// Sequence ids are assigned per owner and per table starting right above
// cd.SequenceOffset. Top-level items come first, in the order given, and
// reference their slot, depot id or the inbox marker. Containers are then
// walked breadth first; every child references the sequence id of the
// container holding it.
package persist

import (
	"fmt"
	"sort"

	"playercache/cd"
	"playercache/item"
)

// Top is a top-level item together with its semantic parent reference.
type Top struct {
	ParentRef int32
	Item      *item.Item
}

type containerBlock struct {
	container *item.Item
	sid       int32
}

// Flatten turns the trees in top into rows for ownerID.
func Flatten(ownerID uint32, top []Top) []cd.Row {
	rows := make([]cd.Row, 0, len(top))
	var queue []containerBlock

	sid := int32(cd.SequenceOffset)
	for _, t := range top {
		sid++
		rows = append(rows, newRow(ownerID, t.ParentRef, sid, t.Item))
		if t.Item.IsContainer() {
			queue = append(queue, containerBlock{t.Item, sid})
		}
	}

	for len(queue) > 0 {
		cb := queue[0]
		queue = queue[1:]
		for _, child := range cb.container.Items() {
			sid++
			if child.IsContainer() {
				queue = append(queue, containerBlock{child, sid})
			}
			rows = append(rows, newRow(ownerID, cb.sid, sid, child))
		}
	}
	return rows
}

func newRow(ownerID uint32, parentRef, sid int32, it *item.Item) cd.Row {
	return cd.Row{
		OwnerID:    ownerID,
		ParentRef:  parentRef,
		SequenceID: sid,
		ItemType:   it.ID,
		Count:      it.Count,
		Attributes: it.SerializeAttr(),
	}
}

// Rebuild is the inverse of Flatten. Rows whose parent ref is at or below
// cd.SequenceOffset are top-level; every other row must reference the
// sequence id of an earlier container row.
func Rebuild(rows []cd.Row) ([]Top, error) {
	sorted := make([]cd.Row, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SequenceID < sorted[j].SequenceID })

	bySID := make(map[int32]*item.Item, len(sorted))
	var top []Top
	for _, r := range sorted {
		it := item.Create(r.ItemType, r.Count)
		if err := it.UnserializeAttr(r.Attributes); err != nil {
			return nil, fmt.Errorf("row %d: %w", r.SequenceID, err)
		}
		if r.ParentRef <= cd.SequenceOffset {
			bySID[r.SequenceID] = it
			top = append(top, Top{ParentRef: r.ParentRef, Item: it})
			continue
		}
		if r.ParentRef >= r.SequenceID {
			return nil, fmt.Errorf("row %d: parent %d does not precede it: %w", r.SequenceID, r.ParentRef, cd.ErrBadRow)
		}
		parent, ok := bySID[r.ParentRef]
		if !ok {
			return nil, fmt.Errorf("row %d: parent %d not found: %w", r.SequenceID, r.ParentRef, cd.ErrBadRow)
		}
		if !parent.IsContainer() {
			return nil, fmt.Errorf("row %d: parent %d (type %d) is not a container: %w",
				r.SequenceID, r.ParentRef, parent.ID, cd.ErrBadRow)
		}
		parent.AddItem(it)
		bySID[r.SequenceID] = it
	}
	return top, nil
}
