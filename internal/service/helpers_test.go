package service

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/resolver-module/internal/domain/model"
	"github.com/bigkaa/goartstore/resolver-module/internal/repository"
)

// testLogger — логгер для тестов (только ошибки).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeClock — управляемый источник времени.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testNode(b byte) model.Node {
	var n model.Node
	n[0] = 0xAA
	n[31] = b
	return n
}

func testAddr(b byte) model.Address {
	var a model.Address
	a[0] = 0x11
	a[19] = b
	return a
}

var (
	ownerAddr    = testAddr(0xF0)
	writerAddr   = testAddr(0x01)
	strangerAddr = testAddr(0x02)
)

// resolverFixture — резолвер с фиктивными часами.
type resolverFixture struct {
	svc   *ResolverService
	cache *CacheService
	clock *fakeClock
}

// newResolver создаёт резолвер: владелец ownerAddr, авторизован writerAddr,
// TTL по умолчанию 300s, потолок 1h.
func newResolver(t *testing.T, maxEntries int) *resolverFixture {
	t.Helper()
	clock := newFakeClock()

	cache, err := NewCacheService(maxEntries, 300*time.Second, time.Hour, clock.Now)
	if err != nil {
		t.Fatalf("NewCacheService: %v", err)
	}
	authz, err := NewAuthorizationManager(ownerAddr, []model.Address{writerAddr})
	if err != nil {
		t.Fatalf("NewAuthorizationManager: %v", err)
	}
	svc, err := NewResolverService(repository.NewRecordRepository(), cache, authz,
		ResolverConfig{MaxMulticallOperations: 16, Now: clock.Now}, testLogger())
	if err != nil {
		t.Fatalf("NewResolverService: %v", err)
	}
	return &resolverFixture{svc: svc, cache: cache, clock: clock}
}

func mustOp(t *testing.T, method string, args any) Operation {
	t.Helper()
	op, err := NewOperation(method, args)
	if err != nil {
		t.Fatalf("NewOperation(%s): %v", method, err)
	}
	return op
}
