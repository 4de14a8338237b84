package persist

import (
	"context"
	"fmt"

	"playercache/cd"
	"playercache/player"
)

// Save replaces everything stored for ownerID with items. Each table is
// a delete followed by one multi-row insert; the first failure aborts
// the remaining tables. Depot rows are left alone when no depot was ever
// opened.
func Save(ctx context.Context, b Backend, ownerID uint32, items Items) error {
	err := replace(ctx, b, cd.EquipmentTable, ownerID, items.Equipment)
	if err != nil {
		return err
	}
	if items.LastDepotID != cd.NoDepot {
		err = replace(ctx, b, cd.DepotTable, ownerID, items.Depot)
		if err != nil {
			return err
		}
	}
	return replace(ctx, b, cd.InboxTable, ownerID, items.Inbox)
}

func replace(ctx context.Context, b Backend, table cd.Table, ownerID uint32, top []Top) error {
	err := b.DeleteItems(ctx, table, ownerID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	rows := Flatten(ownerID, top)
	if len(rows) == 0 {
		return nil
	}
	err = b.InsertItems(ctx, table, rows)
	if err != nil {
		return fmt.Errorf("insert %s (%d rows): %w", table, len(rows), err)
	}
	return nil
}

// Load reads every table for ownerID and restores it into dst. This is
// the slow path taken when the cache has no snapshot for the player.
func Load(ctx context.Context, b Backend, ownerID uint32, dst player.Inventory) error {
	var loaded [3][]Top
	for n, table := range cd.Tables {
		rows, err := b.LoadItems(ctx, table, ownerID)
		if err != nil {
			return fmt.Errorf("load %s: %w", table, err)
		}
		loaded[n], err = Rebuild(rows)
		if err != nil {
			return fmt.Errorf("rebuild %s: %w", table, err)
		}
	}
	Restore(dst, loaded[0], loaded[1], loaded[2])
	return nil
}
