package cd

//go:generate msgp -io=false -tests=false

// Row is one persisted item instance.
// ParentRef is a slot/depot/inbox marker for top-level items and the
// SequenceID of the containing item otherwise.
type Row struct {
	OwnerID    uint32 `msg:"o"`
	ParentRef  int32  `msg:"p"`
	SequenceID int32  `msg:"s"`
	ItemType   uint16 `msg:"t"`
	Count      uint16 `msg:"c"`
	Attributes []byte `msg:"a"`
}
