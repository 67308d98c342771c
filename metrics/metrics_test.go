package metrics

import (
	"sync"
	"testing"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test/counter")
	c.Inc()
	c.Add(4)
	c.Add(-10) // ignored: counters never go down
	if got := c.Value(); got != 5 {
		t.Fatalf("counter: want 5, got %d", got)
	}
	if c.Name() != "test/counter" {
		t.Fatalf("name: got %q", c.Name())
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge("test/gauge")
	g.Set(10)
	g.Inc()
	g.Dec()
	g.Dec()
	if got := g.Value(); got != 9 {
		t.Fatalf("gauge: want 9, got %d", got)
	}
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()
	a := r.Counter("x")
	b := r.Counter("x")
	if a != b {
		t.Fatal("registry must return the same counter for the same name")
	}
	a.Inc()
	if b.Value() != 1 {
		t.Fatal("aliased counters must share state")
	}
}

func TestSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Counter("c").Add(3)
	r.Gauge("g").Set(-2)

	snap := r.Snapshot()
	if snap["c"] != 3 || snap["g"] != -2 {
		t.Fatalf("snapshot: got %v", snap)
	}
	// The snapshot is a copy, not a live view.
	r.Counter("c").Inc()
	if snap["c"] != 3 {
		t.Fatal("snapshot must not track later updates")
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r.Counter("shared").Inc()
			}
		}()
	}
	wg.Wait()
	if got := r.Counter("shared").Value(); got != 8000 {
		t.Fatalf("concurrent increments: want 8000, got %d", got)
	}
}
