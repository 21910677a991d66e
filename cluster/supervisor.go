// Package cluster implements the DX-cluster ingestion pipeline: the line
// parsers for the two spot grammars, the per-cluster connection handler,
// and the supervisor that routes accepted spots through the dedup cache to
// the notification transport.
package cluster

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"spotfeed/config"
	"spotfeed/cty"
	"spotfeed/dedup"
	"spotfeed/spot"
)

// DefaultCluster is synthesized and persisted when no clusters are
// configured at all, so a fresh install connects somewhere useful.
func DefaultCluster() config.ClusterConfig {
	return config.ClusterConfig{
		ID:            "ve7cc",
		Name:          "VE7CC",
		Host:          "dxc.ve7cc.net",
		Port:          23,
		Enabled:       true,
		AutoReconnect: true,
	}
}

const (
	spotQueueSize   = 256
	statusQueueSize = 64
)

// SupervisorConfig wires the supervisor's collaborators.
type SupervisorConfig struct {
	Store     *config.Store
	Prefixes  *cty.Table
	Publisher Publisher

	// DedupWindow overrides the 60 s suppression window; zero keeps it.
	DedupWindow time.Duration
	// ReconnectDelay is forwarded to every handler; zero keeps the fixed
	// 10 s policy. Tests shrink it.
	ReconnectDelay time.Duration
	DebugUnparsed  bool
}

// Supervisor owns the set of configured clusters: it starts and stops their
// handlers, aggregates per-cluster status, and publishes deduplicated spots.
// It orchestrates only; configuration persistence lives in the store and
// spots are never stored here.
type Supervisor struct {
	store          *config.Store
	parser         *Parser
	cache          *dedup.Cache
	pub            Publisher
	reconnectDelay time.Duration
	debugUnparsed  bool

	mu       sync.Mutex
	handlers map[string]*Client
	statuses map[string]ClusterStatus

	spotQueue   chan SpotEvent
	statusQueue chan StatusEvent
	shutdown    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewSupervisor builds a supervisor; Start launches its loops.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	return &Supervisor{
		store:          cfg.Store,
		parser:         NewParser(cfg.Prefixes),
		cache:          dedup.NewCache(cfg.DedupWindow),
		pub:            cfg.Publisher,
		reconnectDelay: cfg.ReconnectDelay,
		debugUnparsed:  cfg.DebugUnparsed,
		handlers:       make(map[string]*Client),
		statuses:       make(map[string]ClusterStatus),
		spotQueue:      make(chan SpotEvent, spotQueueSize),
		statusQueue:    make(chan StatusEvent, statusQueueSize),
		shutdown:       make(chan struct{}),
	}
}

// Start loads the configuration, synthesizes the default cluster on first
// run, and auto-connects every enabled cluster flagged for auto-reconnect.
func (s *Supervisor) Start() error {
	settings, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("load cluster configuration: %w", err)
	}
	if len(settings.Clusters) == 0 {
		def := DefaultCluster()
		settings.Clusters = []config.ClusterConfig{def}
		if err := s.store.Save(settings); err != nil {
			return fmt.Errorf("persist default cluster: %w", err)
		}
		log.Printf("Supervisor: no clusters configured, added default %s (%s:%d)",
			def.Name, def.Host, def.Port)
	}

	s.cache.Start()
	s.wg.Add(2)
	go s.spotDispatchLoop()
	go s.statusDispatchLoop()

	for _, cc := range settings.Clusters {
		if cc.Enabled && cc.AutoReconnect {
			s.Connect(cc.ID)
		}
	}
	return nil
}

// Connect starts a handler for the given cluster id. It is a no-op with a
// warning when the id is unknown or the cluster already has a live or
// connecting handler: at most one handler per id at any time.
func (s *Supervisor) Connect(id string) {
	settings, err := s.store.Load()
	if err != nil {
		log.Printf("Supervisor: cannot load configuration for connect %q: %v", id, err)
		return
	}
	cc, ok := settings.Cluster(id)
	if !ok {
		log.Printf("Supervisor: unknown cluster id %q, ignoring connect", id)
		return
	}

	callsign := cc.Callsign
	if callsign == "" {
		callsign = settings.StationCallsign
	}

	s.mu.Lock()
	if _, live := s.handlers[id]; live {
		s.mu.Unlock()
		log.Printf("Supervisor: cluster %q already has a live handler, ignoring connect", id)
		return
	}
	client := NewClient(ClientConfig{
		ID:             cc.ID,
		Name:           cc.Name,
		Host:           cc.Host,
		Port:           cc.Port,
		Callsign:       callsign,
		AutoReconnect:  cc.AutoReconnect,
		ReconnectDelay: s.reconnectDelay,
		Parser:         s.parser,
		DebugUnparsed:  s.debugUnparsed,
		OnSpot:         s.routeSpot,
		OnStatus:       s.routeStatus,
	})
	s.handlers[id] = client
	s.mu.Unlock()

	client.Start()

	// Reap the slot once the handler's loop exits so a later Connect can
	// start a fresh one.
	go func() {
		<-client.Done()
		s.mu.Lock()
		if s.handlers[id] == client {
			delete(s.handlers, id)
		}
		s.mu.Unlock()
	}()
}

// Disconnect stops the handler for the given cluster id; unknown or idle
// ids are a logged no-op.
func (s *Supervisor) Disconnect(id string) {
	s.mu.Lock()
	client, ok := s.handlers[id]
	s.mu.Unlock()
	if !ok {
		log.Printf("Supervisor: no live handler for cluster %q, ignoring disconnect", id)
		return
	}
	client.Stop()
}

// Statuses returns a snapshot of the last reported status per cluster,
// ordered by cluster id.
func (s *Supervisor) Statuses() []ClusterStatus {
	s.mu.Lock()
	out := make([]ClusterStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClusterCounters is a per-cluster throughput snapshot.
type ClusterCounters struct {
	ID     string
	Name   string
	Lines  uint64
	Parsed uint64
}

// Counters returns lines received and spots parsed per live handler,
// ordered by cluster id.
func (s *Supervisor) Counters() []ClusterCounters {
	s.mu.Lock()
	out := make([]ClusterCounters, 0, len(s.handlers))
	for id, c := range s.handlers {
		lines, parsed := c.Counters()
		out = append(out, ClusterCounters{ID: id, Name: c.cfg.Name, Lines: lines, Parsed: parsed})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats returns published/duplicate counters and the dedup cache size.
func (s *Supervisor) Stats() (published, duplicates uint64, cacheSize int) {
	_, duplicates, cacheSize = s.cache.Stats()
	return s.published.Load(), duplicates, cacheSize
}

// Shutdown disconnects every live handler and stops the dispatch loops.
// Idempotent, and safe when some handlers already stopped themselves.
func (s *Supervisor) Shutdown() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		clients := make([]*Client, 0, len(s.handlers))
		for _, c := range s.handlers {
			clients = append(clients, c)
		}
		s.mu.Unlock()

		for _, c := range clients {
			c.Stop()
		}
		for _, c := range clients {
			<-c.Done()
		}

		close(s.shutdown)
		s.wg.Wait()
		s.cache.Stop()
		log.Println("Supervisor: shutdown complete")
	})
}

// routeSpot is invoked from handler goroutines. The dedup decision happens
// inline (one short lock); publishing is handed to the dispatch loop via a
// buffered channel so a slow subscriber can never stall a read loop.
func (s *Supervisor) routeSpot(clusterID, clusterName string, ps *spot.ParsedSpot) {
	if !s.cache.TryAdmit(ps) {
		// Duplicate across feeds within the window; drop silently.
		return
	}
	ev := SpotEvent{
		ID:                uuid.NewString(),
		DXCall:            ps.DXCall,
		Spotter:           ps.Spotter,
		FrequencyKHz:      ps.FrequencyKHz,
		Band:              spot.FreqToBand(ps.FrequencyKHz),
		Mode:              ps.Mode,
		Comment:           ps.Comment,
		TimestampUTC:      ps.Time,
		SourceClusterName: clusterName,
		Country:           ps.Country,
		Continent:         ps.Continent,
		DXCCID:            ps.DXCCID,
		Grid:              ps.Grid,
	}
	select {
	case s.spotQueue <- ev:
	default:
		s.dropped.Add(1)
		log.Println("Supervisor: spot queue full, dropping spot")
	}
}

// routeStatus replaces the cluster's status record atomically and queues
// the transition for publishing.
func (s *Supervisor) routeStatus(st ClusterStatus) {
	s.mu.Lock()
	s.statuses[st.ID] = st
	s.mu.Unlock()

	ev := StatusEvent{
		ClusterID:    st.ID,
		Name:         st.Name,
		Status:       st.Status,
		ErrorMessage: st.ErrorMessage,
	}
	select {
	case s.statusQueue <- ev:
	default:
		log.Println("Supervisor: status queue full, dropping status event")
	}
}

func (s *Supervisor) spotDispatchLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.shutdown:
			return
		case ev := <-s.spotQueue:
			if s.pub == nil {
				continue
			}
			if err := s.pub.PublishSpot(ev); err != nil {
				log.Printf("Supervisor: publish spot failed: %v", err)
				continue
			}
			s.published.Add(1)
		}
	}
}

func (s *Supervisor) statusDispatchLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.shutdown:
			return
		case ev := <-s.statusQueue:
			if s.pub == nil {
				continue
			}
			if err := s.pub.PublishStatus(ev); err != nil {
				log.Printf("Supervisor: publish status failed: %v", err)
			}
		}
	}
}
