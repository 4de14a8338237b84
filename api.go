package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"playercache/cd"
	"playercache/item"
	"playercache/persist"
	"playercache/player"
)

// ItemDoc is the JSON form of an item tree.
type ItemDoc struct {
	ID        uint16    `json:"id"`
	Count     uint16    `json:"count,omitempty"`
	Text      string    `json:"text,omitempty"`
	Charges   uint16    `json:"charges,omitempty"`
	Container bool      `json:"container,omitempty"`
	Items     []ItemDoc `json:"items,omitempty"`
}

// InventoryDoc is the JSON form of everything the cache keeps for a
// player. Depot entries list the chest contents, not the chest.
type InventoryDoc struct {
	Slots       map[cd.Slot]ItemDoc  `json:"slots,omitempty"`
	Depots      map[uint32][]ItemDoc `json:"depots,omitempty"`
	Inbox       []ItemDoc            `json:"inbox,omitempty"`
	LastDepotID *int16               `json:"last_depot_id,omitempty"`
}

type LoginResponse struct {
	Source    string       `json:"source"` // cache or backend
	Inventory InventoryDoc `json:"inventory"`
}

func (d ItemDoc) build() *item.Item {
	var it *item.Item
	if d.Container || len(d.Items) > 0 || item.IsContainerType(d.ID) {
		it = item.NewContainer(d.ID)
		it.Count = d.Count
		for _, c := range d.Items {
			it.AddItem(c.build())
		}
	} else {
		it = item.New(d.ID, d.Count)
	}
	it.Attrs.Text = d.Text
	it.Attrs.Charges = d.Charges
	return it
}

func itemDoc(it *item.Item) ItemDoc {
	d := ItemDoc{
		ID:        it.ID,
		Count:     it.Count,
		Text:      it.Attrs.Text,
		Charges:   it.Attrs.Charges,
		Container: it.IsContainer(),
	}
	for _, c := range it.Items() {
		d.Items = append(d.Items, itemDoc(c))
	}
	return d
}

func itemDocs(items []*item.Item) []ItemDoc {
	docs := make([]ItemDoc, 0, len(items))
	for _, it := range items {
		docs = append(docs, itemDoc(it))
	}
	return docs
}

func (d InventoryDoc) toPlayer(guid uint32) (*player.Player, error) {
	for id := range d.Depots {
		if !cd.ValidDepotID(id) {
			return nil, fmt.Errorf("%w: depot %d", cd.ErrBadDepot, id)
		}
	}
	if d.LastDepotID != nil && (*d.LastDepotID < cd.NoDepot || *d.LastDepotID > cd.MaxDepotID) {
		return nil, fmt.Errorf("%w: last depot %d", cd.ErrBadDepot, *d.LastDepotID)
	}
	p := player.New(guid, "")
	for slot, doc := range d.Slots {
		p.SetSlotItem(slot, doc.build())
	}
	for id, docs := range d.Depots {
		chest := p.DepotChest(id, true)
		for _, doc := range docs {
			chest.AddItem(doc.build())
		}
	}
	for _, doc := range d.Inbox {
		p.Inbox().AddItem(doc.build())
	}
	if d.LastDepotID != nil {
		p.SetLastDepotID(*d.LastDepotID)
	}
	return p, nil
}

func inventoryDoc(p player.Reader) InventoryDoc {
	d := InventoryDoc{
		Slots:  map[cd.Slot]ItemDoc{},
		Depots: map[uint32][]ItemDoc{},
	}
	for slot := cd.SlotFirst; slot <= cd.SlotLast; slot++ {
		if it := p.SlotItem(slot); it != nil {
			d.Slots[slot] = itemDoc(it)
		}
	}
	for id, chest := range p.DepotChests() {
		d.Depots[id] = itemDocs(chest.Items())
	}
	if inbox := p.Inbox(); inbox != nil {
		d.Inbox = itemDocs(inbox.Items())
	}
	last := p.LastDepotID()
	d.LastDepotID = &last
	return d
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	d, err := json.Marshal(v)
	if err != nil {
		ctx.Error(err.Error(), 500)
		return
	}
	ctx.SetContentType("application/json")
	ctx.Response.SetBody(d)
}

// GetPlayerHandler describes the cached snapshot of a player. It never
// creates one.
func GetPlayerHandler(ctx *fasthttp.RequestCtx) {
	guid, err := getPlayerID(ctx)
	if err != nil {
		ctx.Error(err.Error(), 400)
		return
	}
	s, ok := players.Get(guid, false)
	if !ok {
		ctx.SetStatusCode(404)
		return
	}
	writeJSON(ctx, s.Summary())
}

// LogoutHandler plays the part of the game server when a player leaves:
// the posted inventory becomes the player's snapshot and a save is queued.
func LogoutHandler(ctx *fasthttp.RequestCtx) {
	guid, err := getPlayerID(ctx)
	if err != nil {
		ctx.Error(err.Error(), 400)
		return
	}
	var doc InventoryDoc
	err = json.Unmarshal(ctx.PostBody(), &doc)
	if err != nil {
		ctx.Error(err.Error(), 400)
		return
	}
	p, err := doc.toPlayer(guid)
	if err != nil {
		ctx.Error(err.Error(), 400)
		return
	}
	players.Cache(guid, p)
	s, _ := players.Get(guid, false)
	writeJSON(ctx, s.Summary())
}

// LoginHandler plays the part of the game server when a player enters:
// the cached snapshot is used when there is one, the backend otherwise.
func LoginHandler(ctx *fasthttp.RequestCtx) {
	guid, err := getPlayerID(ctx)
	if err != nil {
		ctx.Error(err.Error(), 400)
		return
	}
	p := player.New(guid, "")
	res := LoginResponse{Source: "cache"}
	if !players.Load(guid, p) {
		res.Source = "backend"
		err = persist.Load(context.Background(), backend, guid, p)
		if err != nil {
			slog.Error("load player from backend", "player_id", guid, "error", err)
			ctx.Error(err.Error(), 500)
			return
		}
	}
	res.Inventory = inventoryDoc(p)
	writeJSON(ctx, res)
}

func PersistHandler(ctx *fasthttp.RequestCtx) {
	guid, err := getPlayerID(ctx)
	if err != nil {
		ctx.Error(err.Error(), 400)
		return
	}
	err = players.Persist(guid)
	switch {
	case errors.Is(err, cd.ErrNotCached):
		ctx.Error(err.Error(), 404)
	case errors.Is(err, cd.ErrNotRunning):
		ctx.Error(err.Error(), 409)
	case err != nil:
		ctx.Error(err.Error(), 500)
	default:
		ctx.SetStatusCode(202)
	}
}

// FlushHandler returns once every queued save has been written.
func FlushHandler(ctx *fasthttp.RequestCtx) {
	players.Flush()
	writeJSON(ctx, players.Stats())
}

func StatsHandler(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, players.Stats())
}

var MetricsHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
