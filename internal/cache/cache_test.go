package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases",
			input: "SELECT Tasks",
			want:  "select tasks",
		},
		{
			name:  "collapses whitespace runs",
			input: "  查询   有多少条   待办任务  ",
			want:  "查询 有多少条 待办任务",
		},
		{
			name:  "tabs and newlines",
			input: "how\tmany\n\ntasks",
			want:  "how many tasks",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
			// Idempotence: normalizing twice changes nothing.
			if again := Normalize(got); again != got {
				t.Errorf("Normalize not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestCommandKey_Equivalence(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		same bool
	}{
		{
			name: "case variation",
			a:    "How Many Tasks",
			b:    "how many tasks",
			same: true,
		},
		{
			name: "whitespace variation",
			a:    "查询  有多少条待办任务",
			b:    " 查询 有多少条待办任务 ",
			same: true,
		},
		{
			name: "different text",
			a:    "查询 待办任务",
			b:    "查询 已完成任务",
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, kb := CommandKey(tt.a), CommandKey(tt.b)
			if (ka == kb) != tt.same {
				t.Errorf("CommandKey(%q) == CommandKey(%q): got %v, want %v", tt.a, tt.b, ka == kb, tt.same)
			}
		})
	}
}

func TestQueryKey_ParamOrder(t *testing.T) {
	a := QueryKey("SELECT * FROM tasks WHERE status = $1", map[string]string{"status": "pending", "limit": "10"})
	b := QueryKey("SELECT * FROM tasks WHERE status = $1", map[string]string{"limit": "10", "status": "pending"})
	if a != b {
		t.Errorf("QueryKey should not depend on parameter insertion order: %s != %s", a, b)
	}

	c := QueryKey("SELECT * FROM tasks WHERE status = $1", nil)
	if c == a {
		t.Error("QueryKey with and without params should differ")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store := NewStore[string](time.Hour)

	key := CommandKey("查询 有多少条待办任务")
	store.Set(key, "SELECT COUNT(*) FROM tasks WHERE status = 'pending'")

	got, ok := store.Get(key)
	if !ok {
		t.Fatal("expected cache hit immediately after Set")
	}
	if got != "SELECT COUNT(*) FROM tasks WHERE status = 'pending'" {
		t.Errorf("unexpected cached value: %q", got)
	}

	if _, ok := store.Get(CommandKey("something else")); ok {
		t.Error("expected miss for unseen key")
	}
}

func TestStore_Expiry(t *testing.T) {
	store := NewStore[int](time.Minute)

	current := time.Unix(1700000000, 0)
	store.now = func() time.Time { return current }

	store.Set("k", 42)

	if _, ok := store.Get("k"); !ok {
		t.Fatal("expected hit before TTL elapsed")
	}

	// Exactly at expiresAt the entry is stale.
	current = current.Add(time.Minute)
	if _, ok := store.Get("k"); ok {
		t.Error("expected miss at expiry boundary")
	}
	if store.Len() != 0 {
		t.Errorf("expired entry should be evicted on read, have %d entries", store.Len())
	}
}

func TestStore_SetRefreshesTTL(t *testing.T) {
	store := NewStore[string](time.Minute)

	current := time.Unix(1700000000, 0)
	store.now = func() time.Time { return current }

	store.Set("k", "old")
	current = current.Add(50 * time.Second)
	store.Set("k", "new")
	current = current.Add(30 * time.Second)

	got, ok := store.Get("k")
	if !ok {
		t.Fatal("overwrite should have refreshed the TTL")
	}
	if got != "new" {
		t.Errorf("got %q, want %q", got, "new")
	}
}

func TestStore_Sweep(t *testing.T) {
	store := NewStore[int](time.Minute)

	current := time.Unix(1700000000, 0)
	store.now = func() time.Time { return current }

	store.Set("a", 1)
	store.Set("b", 2)
	current = current.Add(2 * time.Minute)
	store.Set("c", 3)

	if removed := store.Sweep(); removed != 2 {
		t.Errorf("Sweep removed %d entries, want 2", removed)
	}
	if store.Len() != 1 {
		t.Errorf("store has %d entries after sweep, want 1", store.Len())
	}
	if _, ok := store.Get("c"); !ok {
		t.Error("fresh entry should survive sweep")
	}
}

func TestStore_Clear(t *testing.T) {
	store := NewStore[string](time.Hour)
	store.Set("a", "1")
	store.Set("b", "2")

	store.Clear()

	if store.Len() != 0 {
		t.Errorf("store has %d entries after Clear", store.Len())
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore[string](time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := CommandKey(fmt.Sprintf("question %d", n%10))
			for j := 0; j < 100; j++ {
				store.Set(key, fmt.Sprintf("sql %d-%d", n, j))
				if v, ok := store.Get(key); ok && v == "" {
					t.Error("observed empty value for a written entry")
				}
			}
		}(i)
	}
	wg.Wait()

	// Concurrent writers for the same key must leave one intact write.
	for n := 0; n < 10; n++ {
		key := CommandKey(fmt.Sprintf("question %d", n))
		if _, ok := store.Get(key); !ok {
			t.Errorf("key %d missing after concurrent writes", n)
		}
	}
}

func TestStore_Stats(t *testing.T) {
	store := NewStore[int](time.Minute)

	current := time.Unix(1700000000, 0)
	store.now = func() time.Time { return current }

	store.Set("fresh", 1)
	store.Set("stale", 2)
	// Age out "stale" only by re-setting "fresh" later.
	current = current.Add(30 * time.Second)
	store.Set("fresh", 1)
	current = current.Add(45 * time.Second)

	stats := store.Stats()
	if stats["total_entries"] != 2 {
		t.Errorf("total_entries = %v, want 2", stats["total_entries"])
	}
	if stats["active_entries"] != 1 {
		t.Errorf("active_entries = %v, want 1", stats["active_entries"])
	}
	if stats["expired_entries"] != 1 {
		t.Errorf("expired_entries = %v, want 1", stats["expired_entries"])
	}
}
