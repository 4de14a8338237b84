package cd

import "errors"

// Table selects one of the persisted item tables.
type Table byte

const (
	EquipmentTable Table = 1
	DepotTable     Table = 2
	InboxTable     Table = 3
)

func (t Table) String() string {
	switch t {
	case EquipmentTable:
		return "player_items"
	case DepotTable:
		return "player_depotitems"
	case InboxTable:
		return "player_inboxitems"
	}
	return "unknown"
}

// Slot is an equipment slot ordinal.
type Slot uint8

const (
	SlotHead Slot = iota + 1
	SlotNecklace
	SlotBackpack
	SlotArmor
	SlotRight
	SlotLeft
	SlotLegs
	SlotFeet
	SlotRing
	SlotAmmo
	SlotStoreInbox

	SlotFirst = SlotHead
	SlotLast  = SlotStoreInbox
)

// slots persisted to the equipment table; the store inbox slot is not
const (
	PersistSlotFirst = SlotHead
	PersistSlotLast  = SlotAmmo
)

// Tables lists every item table in persist order.
var Tables = []Table{EquipmentTable, DepotTable, InboxTable}

// sequence ids up to this value are reserved for top-level parent refs
// (slot ordinals, depot ids, the inbox marker)
const SequenceOffset = 100

// parent ref of top-level inbox rows
const InboxParent = 0

// no depot was ever opened - depot rows are not touched
const NoDepot = -1

// depot ids are stored in the parent ref column next to sequence ids, so
// they must stay at or below SequenceOffset
const MaxDepotID = SequenceOffset

func ValidDepotID(id uint32) bool {
	return id <= MaxDepotID
}

var (
	ErrNotCached      = errors.New("not_cached")
	ErrNotRunning     = errors.New("not_running")
	ErrAlreadyStarted = errors.New("already_started")
	ErrUnknownDialect = errors.New("unknown_dialect")
	ErrBadRow         = errors.New("bad_row")
	ErrBadDepot       = errors.New("bad_depot")
)
