package cluster

import (
	"path/filepath"
	"testing"
	"time"

	"spotfeed/config"
	"spotfeed/spot"
)

type capturePublisher struct {
	spots    chan SpotEvent
	statuses chan StatusEvent
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{
		spots:    make(chan SpotEvent, 64),
		statuses: make(chan StatusEvent, 64),
	}
}

func (p *capturePublisher) PublishSpot(ev SpotEvent) error {
	p.spots <- ev
	return nil
}

func (p *capturePublisher) PublishStatus(ev StatusEvent) error {
	p.statuses <- ev
	return nil
}

func testStore(t *testing.T, settings *config.Settings) *config.Store {
	t.Helper()
	store := config.NewStore(filepath.Join(t.TempDir(), "settings.yaml"))
	if settings != nil {
		if err := store.Save(settings); err != nil {
			t.Fatalf("seed settings: %v", err)
		}
	}
	return store
}

func TestSupervisorSynthesizesDefaultCluster(t *testing.T) {
	store := testStore(t, nil)
	s := NewSupervisor(SupervisorConfig{
		Store:          store,
		Publisher:      newCapturePublisher(),
		ReconnectDelay: 10 * time.Millisecond,
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Shutdown()

	settings, err := store.Load()
	if err != nil {
		t.Fatalf("reload settings: %v", err)
	}
	if len(settings.Clusters) != 1 {
		t.Fatalf("got %d clusters, want 1 synthesized default", len(settings.Clusters))
	}
	def := settings.Clusters[0]
	if def.ID != "ve7cc" || def.Host != "dxc.ve7cc.net" || def.Port != 23 {
		t.Errorf("default cluster = %+v", def)
	}
	if !def.Enabled || !def.AutoReconnect {
		t.Errorf("default cluster must be enabled with auto-reconnect, got %+v", def)
	}
}

func TestSupervisorDoubleConnectKeepsOneHandler(t *testing.T) {
	node := newFakeNode(t, nil)
	host, port := node.hostPort()
	store := testStore(t, &config.Settings{
		StationCallsign: "K1ABC",
		Clusters: []config.ClusterConfig{{
			ID: "local", Name: "Local", Host: host, Port: port,
		}},
	})

	s := NewSupervisor(SupervisorConfig{
		Store:          store,
		Publisher:      newCapturePublisher(),
		ReconnectDelay: 10 * time.Millisecond,
	})
	defer s.Shutdown()

	s.Connect("local")
	s.Connect("local")

	s.mu.Lock()
	n := len(s.handlers)
	s.mu.Unlock()
	if n != 1 {
		t.Errorf("got %d handlers after double connect, want 1", n)
	}
}

func TestSupervisorConnectUnknownID(t *testing.T) {
	store := testStore(t, &config.Settings{})
	s := NewSupervisor(SupervisorConfig{Store: store, Publisher: newCapturePublisher()})
	defer s.Shutdown()

	s.Connect("nope")
	s.Disconnect("nope")

	s.mu.Lock()
	n := len(s.handlers)
	s.mu.Unlock()
	if n != 0 {
		t.Errorf("got %d handlers, want none", n)
	}
}

func TestSupervisorStationCallsignFallback(t *testing.T) {
	node := newFakeNode(t, nil)
	host, port := node.hostPort()
	store := testStore(t, &config.Settings{
		StationCallsign: "K1ABC",
		Clusters: []config.ClusterConfig{{
			ID: "local", Name: "Local", Host: host, Port: port,
		}},
	})

	s := NewSupervisor(SupervisorConfig{
		Store:          store,
		Publisher:      newCapturePublisher(),
		ReconnectDelay: 10 * time.Millisecond,
	})
	defer s.Shutdown()

	s.Connect("local")

	select {
	case call := <-node.calls:
		if call != "K1ABC" {
			t.Errorf("logged in as %q, want station callsign K1ABC", call)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("node never received a login")
	}
}

func TestSupervisorDeduplicatesAcrossClusters(t *testing.T) {
	pub := newCapturePublisher()
	store := testStore(t, &config.Settings{
		Clusters: []config.ClusterConfig{{ID: "idle", Name: "Idle"}},
	})
	s := NewSupervisor(SupervisorConfig{Store: store, Publisher: pub})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Shutdown()

	ps := &spot.ParsedSpot{
		DXCall:       "EA8TJ",
		Spotter:      "W3LPL",
		FrequencyKHz: 14205.0,
		Mode:         "CW",
		Time:         time.Now().UTC().Truncate(time.Minute),
	}
	s.routeSpot("a", "Alpha", ps)
	s.routeSpot("b", "Beta", ps) // same spot from a second feed

	select {
	case ev := <-pub.spots:
		if ev.DXCall != "EA8TJ" || ev.SourceClusterName != "Alpha" {
			t.Errorf("published %+v, want EA8TJ from Alpha", ev)
		}
		if ev.ID == "" {
			t.Error("event ID must be set")
		}
		if ev.Band != "20m" {
			t.Errorf("band = %q, want 20m", ev.Band)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("spot was never published")
	}

	select {
	case ev := <-pub.spots:
		t.Errorf("duplicate was published: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	published, duplicates, _ := s.Stats()
	if published != 1 {
		t.Errorf("published = %d, want 1", published)
	}
	if duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", duplicates)
	}
}

func TestSupervisorStatusSnapshot(t *testing.T) {
	store := testStore(t, &config.Settings{})
	s := NewSupervisor(SupervisorConfig{Store: store, Publisher: newCapturePublisher()})
	defer s.Shutdown()

	s.routeStatus(ClusterStatus{ID: "zulu", Name: "Zulu", Status: StatusConnected})
	s.routeStatus(ClusterStatus{ID: "alpha", Name: "Alpha", Status: StatusError, ErrorMessage: "boom"})
	s.routeStatus(ClusterStatus{ID: "alpha", Name: "Alpha", Status: StatusConnecting})

	got := s.Statuses()
	if len(got) != 2 {
		t.Fatalf("got %d statuses, want 2", len(got))
	}
	if got[0].ID != "alpha" || got[1].ID != "zulu" {
		t.Errorf("statuses not ordered by id: %+v", got)
	}
	if got[0].Status != StatusConnecting {
		t.Errorf("alpha status = %s, want latest transition CONNECTING", got[0].Status)
	}
}

func TestSupervisorShutdownIdempotent(t *testing.T) {
	store := testStore(t, &config.Settings{
		Clusters: []config.ClusterConfig{{ID: "idle", Name: "Idle"}},
	})
	s := NewSupervisor(SupervisorConfig{Store: store, Publisher: newCapturePublisher()})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Shutdown()
	s.Shutdown()
}
