package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"playercache/cache"
	"playercache/cd"
	"playercache/item"
	"playercache/persist"
	"playercache/player"
)

var client *fasthttp.Client

func TestMain(m *testing.M) {
	backend = persist.NewMemBackend()
	players = cache.New(backend,
		cache.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		cache.WithRegisterer(prometheus.DefaultRegisterer))
	err := players.Start(context.Background())
	if err != nil {
		panic(err)
	}

	ln := fasthttputil.NewInmemoryListener()
	go fasthttp.Serve(ln, newRouter().Handler) //nolint:errcheck
	client = &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) { return ln.Dial() },
	}

	code := m.Run()
	players.Shutdown()
	os.Exit(code)
}

func do(t *testing.T, method, path string, body []byte) (int, []byte) {
	t.Helper()
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI("http://playercache" + path)
	req.SetBody(body)
	require.NoError(t, client.Do(req, resp))
	return resp.StatusCode(), append([]byte(nil), resp.Body()...)
}

const logoutBody = `{
	"slots": {
		"1": {"id": 2457, "count": 1},
		"3": {"id": 1988, "items": [
			{"id": 2148, "count": 50},
			{"id": 1987, "items": [{"id": 2120, "count": 1}]}
		]}
	},
	"depots": {"2": [{"id": 2160, "count": 10}]},
	"inbox": [{"id": 2597, "text": "welcome"}],
	"last_depot_id": 2
}`

func TestBadPlayerID(t *testing.T) {
	for _, id := range []string{"abc", "0", "-1", "99999999999"} {
		code, _ := do(t, "GET", "/players/"+id, nil)
		assert.Equal(t, 400, code, id)
	}
}

func TestGetPlayerMiss(t *testing.T) {
	code, _ := do(t, "GET", "/players/404", nil)
	assert.Equal(t, 404, code)
	_, ok := players.Get(404, false)
	assert.False(t, ok)
}

func TestLogoutLoginCycle(t *testing.T) {
	code, body := do(t, "PUT", "/players/11", []byte(logoutBody))
	require.Equal(t, 200, code, string(body))

	code, body = do(t, "GET", "/players/11", nil)
	require.Equal(t, 200, code)
	var sum cache.Summary
	require.NoError(t, json.Unmarshal(body, &sum))
	assert.Equal(t, []int{1, 3}, sum.Slots)
	assert.Equal(t, []uint32{2}, sum.DepotIDs)
	assert.Equal(t, 1, sum.InboxItems)
	assert.Equal(t, int16(2), sum.LastDepotID)

	code, body = do(t, "POST", "/players/11/login", nil)
	require.Equal(t, 200, code)
	var res LoginResponse
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, "cache", res.Source)
	bp := res.Inventory.Slots[cd.SlotBackpack]
	require.Len(t, bp.Items, 2)
	assert.Equal(t, uint16(2120), bp.Items[1].Items[0].ID)
	assert.Equal(t, "welcome", res.Inventory.Inbox[0].Text)
	// the live object keeps its own last depot id
	assert.Equal(t, int16(cd.NoDepot), *res.Inventory.LastDepotID)

	code, _ = do(t, "POST", "/flush", nil)
	require.Equal(t, 200, code)
	rows, err := backend.LoadItems(context.Background(), cd.EquipmentTable, 11)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestLoginFromBackend(t *testing.T) {
	p := player.New(12, "Tester")
	p.SetSlotItem(cd.SlotLegs, item.New(2478, 1))
	p.OpenDepot(1).AddItem(item.New(2160, 3))
	require.NoError(t, persist.Save(context.Background(), backend, 12, persist.Collect(p)))

	code, body := do(t, "POST", "/players/12/login", nil)
	require.Equal(t, 200, code)
	var res LoginResponse
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, "backend", res.Source)
	assert.Equal(t, uint16(2478), res.Inventory.Slots[cd.SlotLegs].ID)
	require.Len(t, res.Inventory.Depots[1], 1)
	assert.Equal(t, uint16(3), res.Inventory.Depots[1][0].Count)

	// login never populates the cache
	_, ok := players.Get(12, false)
	assert.False(t, ok)
}

func TestPersistHandler(t *testing.T) {
	code, _ := do(t, "POST", "/players/13/persist", nil)
	assert.Equal(t, 404, code)

	code, _ = do(t, "PUT", "/players/13", []byte(`{"inbox": [{"id": 2597}]}`))
	require.Equal(t, 200, code)
	code, _ = do(t, "POST", "/players/13/persist", nil)
	assert.Equal(t, 202, code)
}

func TestLogoutBadBody(t *testing.T) {
	code, _ := do(t, "PUT", "/players/14", []byte(`{"slots": [`))
	assert.Equal(t, 400, code)
	_, ok := players.Get(14, false)
	assert.False(t, ok)
}

func TestLogoutRejectsDepotOutOfRange(t *testing.T) {
	for _, body := range []string{
		`{"depots": {"101": [{"id": 2160}]}}`,
		`{"depots": {"65535": []}}`,
		`{"last_depot_id": 101}`,
		`{"last_depot_id": -2}`,
	} {
		code, _ := do(t, "PUT", "/players/16", []byte(body))
		assert.Equal(t, 400, code, body)
	}
	_, ok := players.Get(16, false)
	assert.False(t, ok)

	code, _ := do(t, "PUT", "/players/16", []byte(`{"depots": {"100": [{"id": 2160}]}, "last_depot_id": 100}`))
	assert.Equal(t, 200, code)
}

func TestStatsAndMetrics(t *testing.T) {
	code, _ := do(t, "PUT", "/players/15", []byte(logoutBody))
	require.Equal(t, 200, code)
	code, body := do(t, "POST", "/flush", nil)
	require.Equal(t, 200, code)

	var st cache.Stats
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "running", st.State)
	assert.Equal(t, 0, st.Pending)
	assert.GreaterOrEqual(t, st.Persisted, int64(1))

	code, body = do(t, "GET", "/stats", nil)
	require.Equal(t, 200, code)
	assert.Contains(t, string(body), `"players"`)

	code, body = do(t, "GET", "/metrics", nil)
	require.Equal(t, 200, code)
	assert.Contains(t, string(body), "playercache_saves_total")
	assert.Contains(t, string(body), "playercache_snapshots")
}

func TestUnknownRoute(t *testing.T) {
	code, _ := do(t, "GET", "/nope", nil)
	assert.Equal(t, 404, code)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		`ListenAddr: ":9000"`,
		`Backend: pebble`,
		`PersistTimeout: 5s`,
	}, "\n")), 0o600))
	t.Setenv("PLAYERCACHE_LOG_LEVEL", "debug")
	t.Setenv("PLAYERCACHE_PEBBLE_PATH", filepath.Join(dir, "db"))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "pebble", cfg.Backend)
	assert.Equal(t, "5s", cfg.PersistTimeout.String())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "db"), cfg.PebblePath)
	assert.Equal(t, "players.db", cfg.DSN)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "none.yml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestOpenBackend(t *testing.T) {
	b, err := openBackend(Config{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &persist.MemBackend{}, b)

	b, err = openBackend(Config{Backend: "pebble", PebblePath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &persist.PebbleBackend{}, b)

	b, err = openBackend(Config{Backend: "sqlite3", DSN: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &persist.SQLBackend{}, b)

	_, err = openBackend(Config{Backend: "mysql"})
	assert.ErrorIs(t, err, cd.ErrUnknownDialect)
}
