package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsEmptySettings(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "spotfeed.yaml"))
	settings, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(settings.Clusters) != 0 || settings.StationCallsign != "" {
		t.Fatalf("expected empty settings, got %+v", settings)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "spotfeed.yaml"))

	in := &Settings{
		StationCallsign: "S53ZO",
		Clusters: []ClusterConfig{
			{
				ID:            "ve7cc",
				Name:          "VE7CC",
				Host:          "dxc.ve7cc.net",
				Port:          23,
				Enabled:       true,
				AutoReconnect: true,
			},
			{
				ID:       "local",
				Name:     "Local node",
				Host:     "127.0.0.1",
				Port:     7300,
				Callsign: "S53ZO-2",
			},
		},
	}
	if err := store.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.StationCallsign != "S53ZO" {
		t.Fatalf("expected station callsign to round-trip, got %q", out.StationCallsign)
	}
	if len(out.Clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(out.Clusters))
	}
	if out.Clusters[0].ID != "ve7cc" || !out.Clusters[0].AutoReconnect {
		t.Fatalf("unexpected first cluster: %+v", out.Clusters[0])
	}

	cfg, ok := out.Cluster("local")
	if !ok || cfg.Callsign != "S53ZO-2" || cfg.Enabled {
		t.Fatalf("unexpected lookup result: %+v ok=%v", cfg, ok)
	}
	if _, ok := out.Cluster("missing"); ok {
		t.Fatalf("expected unknown id to miss")
	}
}
