// Package cache keeps an in-memory snapshot of every player's containers
// that has been in the world since startup and writes it to the backend
// in the background.
//
// 'C' - Cache (snapshot replaced in RAM),  'L' - Load,  'P' - persisted
// Session #1 ----|C|---------------------------------------
// Session #2 ------------------|L|------|C|----------------
// Worker     -------P---------------------------P----------
//
// Cache returns as soon as the snapshot is replaced; the write to the
// backend happens later on the worker, against a clone taken at dequeue
// time, so the player may come back and go again while it is in flight.
// A player who comes back is served from the snapshot and never waits
// for the backend.
//
// Two locks are used and never held across backend I/O: the manager's
// mutex guards the snapshot map, the pending queue and the state; each
// Snapshot has its own mutex for its trees.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"playercache/cd"
	"playercache/persist"
	"playercache/player"
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

const DefaultPersistTimeout = 30 * time.Second

type Manager struct {
	backend        persist.Backend
	logger         *slog.Logger
	metrics        *metrics
	persistTimeout time.Duration

	mu      sync.Mutex
	signal  *sync.Cond // queue went from empty to non-empty, or shutdown
	idle    *sync.Cond // busy dropped to zero
	players map[uint32]*Snapshot
	queue   []uint32
	busy    int // callers inside persistFront
	state   State

	startMu   sync.Mutex
	persistMu sync.Mutex // taken before mu; one pop-and-save at a time
	done      chan struct{}

	persisted atomic.Int64
	failed    atomic.Int64
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithRegisterer registers the manager's metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(m *Manager) { m.metrics = newMetrics(r) }
}

// WithPersistTimeout bounds every save of one player.
func WithPersistTimeout(d time.Duration) Option {
	return func(m *Manager) { m.persistTimeout = d }
}

func New(backend persist.Backend, opts ...Option) *Manager {
	m := &Manager{
		backend:        backend,
		logger:         slog.Default(),
		persistTimeout: DefaultPersistTimeout,
		players:        map[uint32]*Snapshot{},
		done:           make(chan struct{}),
	}
	m.signal = sync.NewCond(&m.mu)
	m.idle = sync.NewCond(&m.mu)
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = newMetrics(nil)
	}
	return m
}

// Get returns the snapshot for guid. When there is none, an empty one is
// created and returned if autoCreate is set.
func (m *Manager) Get(guid uint32, autoCreate bool) (*Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.players[guid]
	if ok {
		return s, true
	}
	if !autoCreate {
		return nil, false
	}
	s = newSnapshot()
	m.players[guid] = s
	m.metrics.entries.Set(float64(len(m.players)))
	m.logger.Debug("snapshot created", "player_id", guid)
	return s, true
}

// Load copies the cached snapshot of guid into live. It returns false
// without touching live when guid was never cached; the caller then
// loads the player from the backend.
func (m *Manager) Load(guid uint32, live player.Inventory) bool {
	s, ok := m.Get(guid, false)
	if !ok {
		m.metrics.loads.WithLabelValues("miss").Inc()
		return false
	}
	start := time.Now()
	s.CopyTo(live)
	m.metrics.loads.WithLabelValues("hit").Inc()
	m.logger.Debug("player loaded from cache", "player_id", guid, "elapsed", time.Since(start))
	return true
}

// Cache replaces the snapshot of guid with a copy of live and queues it
// for saving. The snapshot is current when Cache returns; the save is
// only queued while the manager is running.
func (m *Manager) Cache(guid uint32, live player.Reader) {
	s, _ := m.Get(guid, true)
	start := time.Now()
	s.CopyFrom(live)
	m.logger.Debug("player cached", "player_id", guid, "elapsed", time.Since(start))
	m.enqueue(guid)
}

// Persist queues a save of guid's current snapshot.
func (m *Manager) Persist(guid uint32) error {
	if _, ok := m.Get(guid, false); !ok {
		return fmt.Errorf("player %d: %w", guid, cd.ErrNotCached)
	}
	if !m.enqueue(guid) {
		return cd.ErrNotRunning
	}
	return nil
}

func (m *Manager) enqueue(guid uint32) bool {
	m.mu.Lock()
	if st := m.state; st != StateRunning {
		m.mu.Unlock()
		m.logger.Debug("save request dropped", "player_id", guid, "state", st)
		return false
	}
	wake := len(m.queue) == 0
	m.queue = append(m.queue, guid)
	m.metrics.queue.Set(float64(len(m.queue)))
	m.mu.Unlock()

	if wake {
		m.signal.Signal()
	}
	return true
}

// pop removes the front of the queue. m.mu must be held and the queue
// must not be empty.
func (m *Manager) pop() uint32 {
	guid := m.queue[0]
	m.queue = m.queue[1:]
	if len(m.queue) == 0 {
		m.queue = nil
	}
	m.metrics.queue.Set(float64(len(m.queue)))
	return guid
}

// Start connects the backend and starts the worker.
func (m *Manager) Start(ctx context.Context) error {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	if m.State() != StateIdle {
		return cd.ErrAlreadyStarted
	}
	err := m.backend.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect backend: %w", err)
	}

	m.mu.Lock()
	if m.state != StateIdle { // shut down while connecting
		m.mu.Unlock()
		m.backend.Close()
		return cd.ErrNotRunning
	}
	m.state = StateRunning
	m.mu.Unlock()

	go m.run()
	m.logger.Info("player cache started")
	return nil
}

func (m *Manager) run() {
	defer close(m.done)

	m.mu.Lock()
	for {
		for m.state == StateRunning && len(m.queue) == 0 {
			m.signal.Wait()
		}
		if len(m.queue) == 0 { // terminated and drained
			m.mu.Unlock()
			return
		}
		m.persistFront()
	}
}

// persistFront pops one request and saves it with m.mu released. m.mu
// must be held on entry and is held again on return.
func (m *Manager) persistFront() {
	m.busy++
	m.mu.Unlock()

	// pop under persistMu so saves finish in queue order even when Flush
	// and the worker race for the front
	m.persistMu.Lock()
	m.mu.Lock()
	if len(m.queue) > 0 {
		guid := m.pop()
		m.mu.Unlock()
		m.persist(guid)
		m.mu.Lock()
	}
	m.persistMu.Unlock()

	m.busy--
	if m.busy == 0 {
		m.idle.Broadcast()
	}
}

// Flush saves everything queued, from the calling goroutine, until the
// queue is empty. It returns once no save is in flight on the worker
// either.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) > 0 {
		m.persistFront()
	}
	for m.busy > 0 {
		m.idle.Wait()
	}
}

// Shutdown stops accepting save requests, saves what is queued, stops the
// worker and closes the backend. Snapshots stay readable through Load.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	prev := m.state
	m.state = StateTerminated
	m.mu.Unlock()

	m.Flush()
	m.signal.Broadcast()

	if prev != StateRunning {
		return
	}
	<-m.done
	err := m.backend.Close()
	if err != nil {
		m.logger.Error("close backend failed", "error", err)
	}
	m.logger.Info("player cache stopped",
		"persisted", m.persisted.Load(),
		"failed", m.failed.Load())
}

func (m *Manager) persist(guid uint32) {
	start := time.Now()
	err := m.save(guid)
	elapsed := time.Since(start)
	m.metrics.duration.Observe(elapsed.Seconds())
	if err != nil {
		m.failed.Add(1)
		m.metrics.persists.WithLabelValues("error").Inc()
		m.logger.Error("error while saving player items", "player_id", guid, "error", err)
		return
	}
	m.persisted.Add(1)
	m.metrics.persists.WithLabelValues("ok").Inc()
	m.logger.Debug("player items saved", "player_id", guid, "elapsed", elapsed)
}

func (m *Manager) save(guid uint32) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	s, ok := m.Get(guid, false)
	if !ok {
		return fmt.Errorf("player %d: %w", guid, cd.ErrNotCached)
	}
	clone := s.Clone()

	ctx, cancel := context.WithTimeout(context.Background(), m.persistTimeout)
	defer cancel()
	return persist.Save(ctx, m.backend, guid, persist.Collect(clone))
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending returns the number of queued save requests.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Len returns the number of cached snapshots.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players)
}

type Stats struct {
	State     string `json:"state"`
	Players   int    `json:"players"`
	Pending   int    `json:"pending"`
	Persisted int64  `json:"persisted"`
	Failed    int64  `json:"failed"`
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	st := Stats{
		State:   m.state.String(),
		Players: len(m.players),
		Pending: len(m.queue),
	}
	m.mu.Unlock()
	st.Persisted = m.persisted.Load()
	st.Failed = m.failed.Load()
	return st
}
