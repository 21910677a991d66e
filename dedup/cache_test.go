package dedup

import (
	"sync"
	"testing"
	"time"

	"spotfeed/spot"
)

func sampleSpot(when time.Time) *spot.ParsedSpot {
	return &spot.ParsedSpot{
		DXCall:       "EA8TJ",
		Spotter:      "W3LPL",
		FrequencyKHz: 14205.0,
		Mode:         "CW",
		Time:         when,
	}
}

func TestTryAdmitSuppressesDuplicateWithinWindow(t *testing.T) {
	c := NewCache(time.Minute)
	when := time.Date(2026, 3, 1, 18, 47, 0, 0, time.UTC)

	first := sampleSpot(when)
	if !c.TryAdmit(first) {
		t.Fatalf("expected first report to be admitted")
	}

	// Same station/kHz/minute from another feed a few seconds later.
	second := sampleSpot(when.Add(12 * time.Second))
	second.Spotter = "VE7CC"
	second.FrequencyKHz = 14205.3
	if c.TryAdmit(second) {
		t.Fatalf("expected near-duplicate report to be rejected")
	}

	admitted, duplicates, size := c.Stats()
	if admitted != 1 || duplicates != 1 || size != 1 {
		t.Fatalf("unexpected stats: admitted=%d duplicates=%d size=%d", admitted, duplicates, size)
	}
}

func TestTryAdmitAfterWindowAndPurge(t *testing.T) {
	c := NewCache(time.Minute)
	base := time.Date(2026, 3, 1, 18, 47, 0, 0, time.UTC)
	fake := base
	var mu sync.Mutex
	c.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return fake
	}

	if !c.TryAdmit(sampleSpot(base)) {
		t.Fatalf("expected first report to be admitted")
	}

	// Advance past the window and run a purge cycle.
	mu.Lock()
	fake = base.Add(2 * time.Minute)
	mu.Unlock()
	c.purge()

	if _, _, size := c.Stats(); size != 0 {
		t.Fatalf("expected purge to empty the cache, got %d entries", size)
	}

	again := sampleSpot(base)
	if !c.TryAdmit(again) {
		t.Fatalf("expected report to be admitted again after the window elapsed")
	}
}

func TestTryAdmitConcurrentProducersAdmitOnce(t *testing.T) {
	c := NewCache(time.Minute)
	when := time.Date(2026, 3, 1, 18, 47, 0, 0, time.UTC)

	const producers = 16
	var wg sync.WaitGroup
	results := make(chan bool, producers)
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.TryAdmit(sampleSpot(when))
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for ok := range results {
		if ok {
			admitted++
		}
	}
	if admitted != 1 {
		t.Fatalf("expected exactly one admit across concurrent producers, got %d", admitted)
	}
}

func TestDistinctSpotsBothAdmitted(t *testing.T) {
	c := NewCache(time.Minute)
	when := time.Date(2026, 3, 1, 18, 47, 0, 0, time.UTC)

	a := sampleSpot(when)
	b := sampleSpot(when)
	b.DXCall = "LZ2PC"
	if !c.TryAdmit(a) || !c.TryAdmit(b) {
		t.Fatalf("expected distinct stations to both be admitted")
	}
}
