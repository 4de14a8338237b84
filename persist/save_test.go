package persist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playercache/cd"
	"playercache/item"
	"playercache/player"
)

func testPlayer() *player.Player {
	p := player.New(42, "Tester")
	bp := item.NewContainer(item.BackpackType)
	bp.AddItem(item.New(2160, 3))
	p.SetSlotItem(cd.SlotBackpack, bp)
	p.SetSlotItem(cd.SlotHead, item.New(2457, 1))
	// store inbox slot is not part of the equipment table
	p.SetSlotItem(cd.SlotStoreInbox, item.NewContainer(item.InboxType))
	p.Inbox().AddItem(item.New(2148, 7))
	return p
}

func kinds(ops []Op) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Kind + ":" + op.Table.String()
	}
	return out
}

func TestSaveSkipsDepotWithoutDepotActivity(t *testing.T) {
	b := NewMemBackend()
	p := testPlayer()
	require.Equal(t, int16(cd.NoDepot), p.LastDepotID())

	require.NoError(t, Save(context.Background(), b, 42, Collect(p)))
	assert.Equal(t, []string{
		"delete:player_items", "insert:player_items",
		"delete:player_inboxitems", "insert:player_inboxitems",
	}, kinds(b.Ops()))
}

func TestSaveWritesDepotWhenSentinelCleared(t *testing.T) {
	b := NewMemBackend()
	p := testPlayer()
	// depot activity recorded but no chest materialized
	p.SetLastDepotID(0)
	require.Empty(t, p.DepotChests())

	require.NoError(t, Save(context.Background(), b, 42, Collect(p)))
	assert.Equal(t, []string{
		"delete:player_items", "insert:player_items",
		"delete:player_depotitems",
		"delete:player_inboxitems", "insert:player_inboxitems",
	}, kinds(b.Ops()))
}

func TestSaveNilInbox(t *testing.T) {
	b := NewMemBackend()
	p := player.New(1, "NoInbox")
	p.SetInbox(nil)
	require.NoError(t, Save(context.Background(), b, 1, Collect(p)))
	assert.Equal(t, []string{"delete:player_items", "delete:player_inboxitems"}, kinds(b.Ops()))
}

func TestSaveAbortsOnFirstFailure(t *testing.T) {
	b := NewMemBackend()
	b.FailOn = func(op Op) error {
		if op.Kind == "insert" && op.Table == cd.EquipmentTable {
			return errors.New("disk full")
		}
		return nil
	}
	err := Save(context.Background(), b, 42, Collect(testPlayer()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "player_items")
	assert.Len(t, b.Ops(), 2)
}

func TestCollectOrdersDepots(t *testing.T) {
	p := player.New(1, "Depots")
	p.OpenDepot(5).AddItem(item.New(5, 1))
	p.OpenDepot(2).AddItem(item.New(2, 1))
	p.DepotChest(2, false).AddItem(item.New(22, 1))

	items := Collect(p)
	require.Len(t, items.Depot, 3)
	assert.Equal(t, int32(2), items.Depot[0].ParentRef)
	assert.Equal(t, int32(2), items.Depot[1].ParentRef)
	assert.Equal(t, int32(5), items.Depot[2].ParentRef)
	assert.Equal(t, int16(2), items.LastDepotID)
}

func TestSaveWritesHighestDepot(t *testing.T) {
	p := player.New(7, "Depots")
	p.OpenDepot(cd.MaxDepotID).AddItem(item.New(2160, 1))
	p.OpenDepot(65535)

	items := Collect(p)
	require.Len(t, items.Depot, 1)
	assert.Equal(t, int16(cd.MaxDepotID), items.LastDepotID)

	b := NewMemBackend()
	require.NoError(t, Save(context.Background(), b, 7, items))
	var depotOps []string
	for _, op := range b.Ops() {
		if op.Table == cd.DepotTable {
			depotOps = append(depotOps, op.Kind)
		}
	}
	assert.Equal(t, []string{"delete", "insert"}, depotOps)

	rows, err := b.LoadItems(context.Background(), cd.DepotTable, 7)
	require.NoError(t, err)
	top, err := Rebuild(rows)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int32(cd.MaxDepotID), top[0].ParentRef)
}

func TestSaveLoadMemBackend(t *testing.T) {
	testSaveLoad(t, NewMemBackend())
}

// testSaveLoad runs a full save and load through b and checks the live
// object comes back structurally equal.
func testSaveLoad(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, b.Connect(ctx))
	defer b.Close()

	src := testPlayer()
	chest := src.OpenDepot(1)
	bag := item.NewContainer(item.BagType)
	sword := item.New(2400, 1)
	sword.Attrs.Description = "sharp"
	sword.Attrs.Custom = map[string]string{"owner": "Tester"}
	bag.AddItem(sword)
	chest.AddItem(bag)
	chest.AddItem(item.New(2160, 99))

	require.NoError(t, Save(ctx, b, 42, Collect(src)))
	// saving twice replaces rather than appends
	require.NoError(t, Save(ctx, b, 42, Collect(src)))

	dst := player.New(42, "Tester")
	require.NoError(t, Load(ctx, b, 42, dst))

	for slot := cd.PersistSlotFirst; slot <= cd.PersistSlotLast; slot++ {
		assert.True(t, item.Equal(src.SlotItem(slot), dst.SlotItem(slot)), "slot %d", slot)
	}
	assert.Nil(t, dst.SlotItem(cd.SlotStoreInbox))
	assert.True(t, item.Equal(src.Inbox(), dst.Inbox()))
	require.NotNil(t, dst.DepotChest(1, false))
	assert.True(t, item.Equal(chest, dst.DepotChest(1, false)))

	// other owners are untouched
	other := player.New(43, "Other")
	require.NoError(t, Load(ctx, b, 43, other))
	assert.Nil(t, other.SlotItem(cd.SlotBackpack))
	assert.Empty(t, other.DepotChests())
}
