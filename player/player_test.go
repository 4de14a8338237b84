package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playercache/cd"
	"playercache/item"
)

func TestOpenDepotRemembersLast(t *testing.T) {
	p := New(1, "Tester")
	assert.Equal(t, int16(cd.NoDepot), p.LastDepotID())

	chest := p.OpenDepot(cd.MaxDepotID)
	require.NotNil(t, chest)
	assert.Equal(t, int16(cd.MaxDepotID), p.LastDepotID())
	assert.Same(t, chest, p.DepotChest(cd.MaxDepotID, false))
}

func TestDepotIDsAboveLimitAreRefused(t *testing.T) {
	p := New(1, "Tester")
	// 65535 would read back as NoDepot once narrowed to int16
	for _, id := range []uint32{cd.MaxDepotID + 1, 65535, 1 << 20} {
		assert.Nil(t, p.OpenDepot(id), "depot %d", id)
		assert.Nil(t, p.DepotChest(id, true), "depot %d", id)
		p.SetDepotChest(id, item.NewContainer(item.DepotChestType))
	}
	assert.Equal(t, int16(cd.NoDepot), p.LastDepotID())
	assert.Empty(t, p.DepotChests())
}

func TestSetDepotChestDetaches(t *testing.T) {
	p := New(1, "Tester")
	bp := item.NewContainer(item.BackpackType)
	chest := item.NewContainer(item.DepotChestType)
	bp.AddItem(chest)

	p.SetDepotChest(4, chest)
	assert.Nil(t, chest.Parent())
	assert.Equal(t, []uint32{4}, p.DepotIDs())
}

func TestInvalidSlotsAreIgnored(t *testing.T) {
	p := New(1, "Tester")
	p.SetSlotItem(cd.SlotLast+1, item.New(1, 1))
	assert.Nil(t, p.SlotItem(cd.SlotLast+1))
}
