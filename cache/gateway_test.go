package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"trello-project/microservices/taskgraph-service/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type failingBackend struct {
	calls int
}

func (b *failingBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.calls++
	return nil, errors.New("connection refused")
}

func (b *failingBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.calls++
	return errors.New("connection refused")
}

func (b *failingBackend) Del(ctx context.Context, keys ...string) error {
	b.calls++
	return errors.New("connection refused")
}

func newRedisGateway(t *testing.T) (*Gateway, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewGateway(NewRedisBackend(client), time.Hour), mr
}

func TestGatewayRoundTrip(t *testing.T) {
	backends := map[string]*Gateway{
		"memory": NewGateway(NewMemoryBackend(time.Minute), 0),
	}
	backends["redis"], _ = newRedisGateway(t)

	for name, g := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			task := models.Task{ID: "a", Name: "Root", TeamID: "t", RootID: "a", SubtaskIDs: []string{"b", "c"}, Priority: 2}

			var got models.Task
			hit, err := g.Get(ctx, TaskKey("a"), &got)
			if err != nil || hit {
				t.Fatalf("Expected a clean miss, got hit=%v err=%v", hit, err)
			}

			if err := g.Put(ctx, TaskKey("a"), &task); err != nil {
				t.Fatalf("Put: %v", err)
			}
			hit, err = g.Get(ctx, TaskKey("a"), &got)
			if err != nil || !hit {
				t.Fatalf("Expected hit, got hit=%v err=%v", hit, err)
			}
			if got.Name != "Root" || len(got.SubtaskIDs) != 2 || got.Priority != 2 {
				t.Errorf("Unexpected cached task %+v", got)
			}

			if err := g.Invalidate(ctx, TaskKey("a"), TaskKey("missing")); err != nil {
				t.Fatalf("Invalidate: %v", err)
			}
			hit, _ = g.Get(ctx, TaskKey("a"), &got)
			if hit {
				t.Error("Expected miss after invalidation")
			}
		})
	}
}

func TestGatewayStoresSlices(t *testing.T) {
	g := NewGateway(NewMemoryBackend(time.Minute), 0)
	ctx := context.Background()
	tree := []models.Task{{ID: "r", RootID: "r"}, {ID: "s", ParentID: "r", RootID: "r"}}
	if err := g.Put(ctx, ProjectKey("r"), tree); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var got []models.Task
	hit, err := g.Get(ctx, ProjectKey("r"), &got)
	if err != nil || !hit {
		t.Fatalf("Expected hit, got hit=%v err=%v", hit, err)
	}
	if len(got) != 2 || got[1].ParentID != "r" {
		t.Errorf("Unexpected tree %+v", got)
	}
}

func TestRedisEntriesExpire(t *testing.T) {
	g, mr := newRedisGateway(t)
	ctx := context.Background()
	if err := g.Put(ctx, TeamKey("t1"), &models.Team{ID: "t1", Name: "Eng"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ttl := mr.TTL(TeamKey("t1")); ttl != time.Hour {
		t.Errorf("Expected one hour TTL, got %v", ttl)
	}
	mr.FastForward(time.Hour + time.Second)

	var got models.Team
	if hit, _ := g.Get(ctx, TeamKey("t1"), &got); hit {
		t.Error("Expected entry to expire")
	}
}

func TestCorruptEntryIsAnError(t *testing.T) {
	backend := NewMemoryBackend(time.Minute)
	g := NewGateway(backend, 0)
	ctx := context.Background()
	_ = backend.Set(ctx, UserKey("u"), []byte("not bson"), time.Minute)

	var got models.User
	if _, err := g.Get(ctx, UserKey("u"), &got); err == nil {
		t.Error("Expected an error for a corrupt entry")
	}
}

func TestFetchFallsThroughOnBackendFailure(t *testing.T) {
	backend := &failingBackend{}
	g := NewGateway(backend, 0)
	ctx := context.Background()

	loads := 0
	load := func(context.Context) (*models.User, error) {
		loads++
		return &models.User{ID: "u1", Username: "alice"}, nil
	}

	for i := 0; i < 10; i++ {
		u, err := Fetch(ctx, g, UserKey("u1"), load)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if u.Username != "alice" {
			t.Errorf("Unexpected user %+v", u)
		}
	}
	if loads != 10 {
		t.Errorf("Expected every read to hit the store, got %d loads", loads)
	}
	// The breaker opens after four consecutive failures and stops calling
	// the backend.
	if backend.calls >= 20 {
		t.Errorf("Expected the breaker to short-circuit, backend saw %d calls", backend.calls)
	}
	if err := g.Invalidate(ctx, UserKey("u1")); err == nil {
		t.Error("Expected invalidation to report the outage")
	}
}

func TestFetchPopulatesAndServesFromCache(t *testing.T) {
	g := NewGateway(NewMemoryBackend(time.Minute), 0)
	ctx := context.Background()

	loads := 0
	load := func(context.Context) (*models.Team, error) {
		loads++
		return &models.Team{ID: "t1", Name: "Eng"}, nil
	}
	for i := 0; i < 3; i++ {
		if _, err := Fetch(ctx, g, TeamKey("t1"), load); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if loads != 1 {
		t.Errorf("Expected a single store load, got %d", loads)
	}

	wantErr := errors.New("boom")
	_, err := Fetch(ctx, g, TeamKey("t2"), func(context.Context) (*models.Team, error) { return nil, wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected load error to propagate, got %v", err)
	}
}

func TestFetchWithoutGateway(t *testing.T) {
	u, err := Fetch(context.Background(), nil, UserKey("u"), func(context.Context) (*models.User, error) {
		return &models.User{ID: "u"}, nil
	})
	if err != nil || u.ID != "u" {
		t.Errorf("Expected direct load, got %+v, %v", u, err)
	}
}

func TestGatewayTTL(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
		want time.Duration
	}{
		{"configured", 90 * time.Second, 90 * time.Second},
		{"zero falls back", 0, DefaultTTL},
		{"negative falls back", -time.Minute, DefaultTTL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGateway(NewMemoryBackend(time.Minute), tt.ttl)
			if got := g.TTL(); got != tt.want {
				t.Errorf("Expected TTL %s, got %s", tt.want, got)
			}
		})
	}
}
