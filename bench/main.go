package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
)

type itemDoc struct {
	ID    uint16    `json:"id"`
	Count uint16    `json:"count,omitempty"`
	Text  string    `json:"text,omitempty"`
	Items []itemDoc `json:"items,omitempty"`
}

type inventoryDoc struct {
	Slots       map[int]itemDoc      `json:"slots,omitempty"`
	Depots      map[uint32][]itemDoc `json:"depots,omitempty"`
	Inbox       []itemDoc            `json:"inbox,omitempty"`
	LastDepotID *int16               `json:"last_depot_id,omitempty"`
}

// randomInventory builds a backpack with nItems items spread over a few
// nested bags, plus one depot chest and an inbox letter.
func randomInventory(rnd *rand.Rand, nItems int) []byte {
	bags := []itemDoc{{ID: 1987}, {ID: 1987}, {ID: 1987}}
	for i := 0; i < nItems; i++ {
		b := &bags[rnd.Intn(len(bags))]
		b.Items = append(b.Items, itemDoc{ID: uint16(2000 + rnd.Intn(1000)), Count: uint16(1 + rnd.Intn(100))})
	}
	depot := int16(rnd.Intn(5))
	inv := inventoryDoc{
		Slots: map[int]itemDoc{
			1: {ID: 2457, Count: 1},
			3: {ID: 1988, Items: bags},
		},
		Depots:      map[uint32][]itemDoc{uint32(depot): {{ID: 2160, Count: 10}}},
		Inbox:       []itemDoc{{ID: 2597, Text: "hello"}},
		LastDepotID: &depot,
	}
	d, err := json.Marshal(inv)
	if err != nil {
		panic(err)
	}
	return d
}

func do(c *fasthttp.Client, method, uri string, body []byte) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	req.SetBody(body)
	err := c.Do(req, resp)
	if err != nil {
		panic(err)
	}
	if resp.StatusCode() != 200 {
		panic(fmt.Sprintf("NON 200 status code: %v %v ", resp.StatusCode(), string(resp.Body())))
	}
}

// BenchmarkSessions runs parallel clients, each picking random players
// out of nPlayers and doing a logout followed by a login.
func BenchmarkSessions(u string, nPlayers, parallel, nPerThread, nItems int) {
	c := fasthttp.Client{
		MaxConnsPerHost: 50000,
	}
	var wg sync.WaitGroup
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
			for j := 0; j < nPerThread; j++ {
				id := 1 + rnd.Intn(nPlayers)
				do(&c, "PUT", fmt.Sprintf("%s/players/%d", u, id), randomInventory(rnd, nItems))
				do(&c, "POST", fmt.Sprintf("%s/players/%d/login", u, id), nil)
			}
		}()
	}
	wg.Wait()
}

func main() {
	u := flag.String("url", "http://localhost:8081", "admin API address")
	parallel := flag.Int("parallel", 100, "concurrent clients")
	perThread := flag.Int("n", 100, "sessions per client")
	flag.Parse()

	c := fasthttp.Client{}
	for _, tc := range []struct{ players, items int }{
		{1, 10},
		{1000, 10},
		{1000, 200},
	} {
		total := float64(*parallel * *perThread)
		start := time.Now()
		BenchmarkSessions(*u, tc.players, *parallel, *perThread, tc.items)
		elapsed := time.Since(start)
		slog.Info("sessions",
			"players", tc.players,
			"items", tc.items,
			"k_sessions_per_sec", fmt.Sprintf("%.1f", total/elapsed.Seconds()/1000))

		start = time.Now()
		do(&c, "POST", *u+"/flush", nil)
		slog.Info("flush", "elapsed", time.Since(start))
	}
}
