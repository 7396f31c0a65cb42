package cache

import (
	"reflect"
	"strconv"
	"testing"
	"time"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t += int64(d) }

type countingMetrics struct {
	evicts map[EvictReason]int
	size   int
}

func (m *countingMetrics) Evict(r EvictReason) {
	if m.evicts == nil {
		m.evicts = make(map[EvictReason]int)
	}
	m.evicts[r]++
}
func (m *countingMetrics) Size(entries int) { m.size = entries }

// Uses a fake clock to avoid timing flakiness.
// An entry is gone once its age reaches the TTL.
func TestLRU_TTL_FakeClock(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	c := New[string, string](Options[string, string]{Capacity: 4, Clock: clk})

	c.SetWithTTL("x", "v", 100*time.Millisecond)
	if _, ok := c.Get("x"); !ok {
		t.Fatal("fresh miss")
	}
	clk.add(100 * time.Millisecond)
	if _, ok := c.Get("x"); ok {
		t.Fatal("expired hit at exactly ttl")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry must be removed on Get, len=%d", c.Len())
	}
	if st := c.Stats(); st.Evictions != 0 {
		t.Fatalf("expiry must not count as eviction, got %d", st.Evictions)
	}
}

// Basic Set/Get/Remove semantics.
func TestLRU_BasicSetGetRemove(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 8})

	c.Set("a", 1)
	c.Set("a", 11)
	if v, ok := c.Get("a"); !ok || v != 11 {
		t.Fatalf("Get a want 11, got %v ok=%v", v, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("overwrite must not grow the store, len=%d", c.Len())
	}

	if !c.Remove("a") {
		t.Fatal("Remove a must be true")
	}
	if c.Remove("a") {
		t.Fatal("second Remove must be false")
	}
	if _, ok := c.Get("a"); ok {
		t.Fatal("a must be absent after Remove")
	}
}

// Deterministic LRU eviction.
// Accessing "a" promotes it; inserting "c" evicts LRU ("b").
func TestLRU_Eviction(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 2})

	c.Set("a", 1) // LRU = a
	c.Set("b", 2) // MRU = b

	if _, ok := c.Get("a"); !ok { // promote a -> MRU
		t.Fatal("expect hit for a")
	}
	c.Set("c", 3) // full -> evict LRU (b) before insert

	if _, ok := c.Peek("b"); ok {
		t.Fatal("b must be evicted")
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"c", "a"}) {
		t.Fatalf("keys want [c a], got %v", got)
	}
	if st := c.Stats(); st.Evictions != 1 || st.Size != 2 {
		t.Fatalf("want 1 eviction and size 2, got %+v", st)
	}
}

// Peek must not refresh recency.
func TestLRU_PeekDoesNotPromote(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 2})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Peek("a")
	c.Set("c", 3)

	if _, ok := c.Peek("a"); ok {
		t.Fatal("a must be evicted; Peek does not promote")
	}
}

// Updating an existing key at capacity never evicts.
func TestLRU_UpdateAtCapacityNoEviction(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := New[string, int](Options[string, int]{
		Capacity: 2,
		OnEvict:  func(k string, _ int, _ EvictReason) { evicted = append(evicted, k) },
	})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)

	if len(evicted) != 0 {
		t.Fatalf("no eviction expected, got %v", evicted)
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("update must promote: want [a b], got %v", got)
	}
}

// n <= cap distinct keys keep n entries; n > cap keeps cap and evicts n-cap.
func TestLRU_SizeBound(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ capacity, n int }{
		{capacity: 5, n: 3},
		{capacity: 5, n: 5},
		{capacity: 5, n: 17},
		{capacity: 1, n: 4},
	} {
		m := &countingMetrics{}
		c := New[string, int](Options[string, int]{Capacity: tc.capacity, Metrics: m})
		for i := 0; i < tc.n; i++ {
			c.Set("k"+strconv.Itoa(i), i)
		}

		wantSize := min(tc.n, tc.capacity)
		wantEvict := max(0, tc.n-tc.capacity)
		st := c.Stats()
		if st.Size != wantSize {
			t.Fatalf("cap=%d n=%d: size want %d, got %d", tc.capacity, tc.n, wantSize, st.Size)
		}
		if int(st.Evictions) != wantEvict || m.evicts[EvictCapacity] != wantEvict {
			t.Fatalf("cap=%d n=%d: evictions want %d, got %d (metrics %d)",
				tc.capacity, tc.n, wantEvict, st.Evictions, m.evicts[EvictCapacity])
		}
		if m.size != wantSize {
			t.Fatalf("cap=%d n=%d: size gauge want %d, got %d", tc.capacity, tc.n, wantSize, m.size)
		}
	}
}

func TestLRU_RemoveExpired(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	var reasons []EvictReason
	c := New[string, int](Options[string, int]{
		Capacity:   8,
		DefaultTTL: time.Minute,
		Clock:      clk,
		OnEvict:    func(_ string, _ int, r EvictReason) { reasons = append(reasons, r) },
	})

	if n := c.RemoveExpired(); n != 0 {
		t.Fatalf("empty store: want 0, got %d", n)
	}

	c.Set("old1", 1)
	c.Set("old2", 2)
	clk.add(30 * time.Second)
	c.Set("fresh", 3)
	c.SetWithTTL("forever", 4, 0)

	if n := c.RemoveExpired(); n != 0 {
		t.Fatalf("all fresh: want 0, got %d", n)
	}

	clk.add(45 * time.Second)
	if n := c.RemoveExpired(); n != 2 {
		t.Fatalf("want 2 expired, got %d", n)
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"forever", "fresh"}) {
		t.Fatalf("want [forever fresh], got %v", got)
	}
	for _, r := range reasons {
		if r != EvictTTL {
			t.Fatalf("want only ttl reasons, got %v", reasons)
		}
	}
}

func TestLRU_ClearResetsEvictions(t *testing.T) {
	t.Parallel()

	c := New[int, int](Options[int, int]{Capacity: 1})
	c.Set(1, 1)
	c.Set(2, 2)
	if c.Stats().Evictions != 1 {
		t.Fatal("want one eviction before Clear")
	}

	c.Clear()
	st := c.Stats()
	if st.Size != 0 || st.Evictions != 0 || len(st.Keys) != 0 {
		t.Fatalf("Clear must reset everything, got %+v", st)
	}
	c.Set(3, 3)
	if v, ok := c.Get(3); !ok || v != 3 {
		t.Fatal("store must be usable after Clear")
	}
}

func TestLRU_EntriesTimestamps(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: 1000}
	c := New[string, string](Options[string, string]{Capacity: 4, Clock: clk})
	c.SetWithTTL("q", "a", time.Second)
	clk.add(time.Millisecond)
	c.Get("q")

	es := c.Entries()
	if len(es) != 1 {
		t.Fatalf("want 1 entry, got %d", len(es))
	}
	e := es[0]
	if e.InsertedAt != 1000 || e.LastAccess != 1000+int64(time.Millisecond) {
		t.Fatalf("unexpected timestamps %+v", e)
	}
	if e.Deadline != 1000+int64(time.Second) {
		t.Fatalf("unexpected deadline %d", e.Deadline)
	}
}

func TestLRU_StatsUsage(t *testing.T) {
	t.Parallel()

	c := New[string, int](Options[string, int]{Capacity: 4})
	c.Set("a", 1)
	st := c.Stats()
	if st.MaxSize != 4 || st.UsagePercent != 25 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestLRU_ZeroCapacityPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("New with zero capacity must panic")
		}
	}()
	New[string, int](Options[string, int]{})
}

func TestLRU_SetEntryRestoresOrderAndDeadline(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{t: int64(time.Hour)}
	c := New[string, int](Options[string, int]{Capacity: 2, Clock: clk})

	snapshot := []Entry[string, int]{ // LRU first
		{Key: "old", Value: 1, InsertedAt: 10, LastAccess: 10},
		{Key: "stale", Value: 2, InsertedAt: 10, LastAccess: 10, Deadline: int64(time.Minute)},
		{Key: "new", Value: 3, InsertedAt: 20, LastAccess: 30, Deadline: int64(2 * time.Hour)},
	}
	restored := 0
	for _, e := range snapshot {
		if c.SetEntry(e) {
			restored++
		}
	}

	if restored != 2 {
		t.Fatalf("want 2 restored (stale skipped), got %d", restored)
	}
	if got := c.Keys(); !reflect.DeepEqual(got, []string{"new", "old"}) {
		t.Fatalf("want [new old], got %v", got)
	}
	es := c.Entries()
	if es[0].InsertedAt != 20 || es[0].LastAccess != 30 || es[0].Deadline != int64(2*time.Hour) {
		t.Fatalf("timestamps not preserved: %+v", es[0])
	}

	clk.add(time.Hour)
	if _, ok := c.Get("new"); ok {
		t.Fatal("restored deadline must still apply")
	}
}
