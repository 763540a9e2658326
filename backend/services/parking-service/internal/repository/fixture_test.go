package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"sparkpark/backend/services/parking-service/internal/gateway"
	"sparkpark/backend/services/parking-service/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingObserver struct {
	mu       sync.Mutex
	started  int
	receipts int
	clamped  []string
	missing  []string
}

func (o *countingObserver) SessionStarted(*models.Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *countingObserver) ReceiptCreated(*models.Receipt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.receipts++
}

func (o *countingObserver) DurationClamped(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clamped = append(o.clamped, id)
}

func (o *countingObserver) ZoneLookupFailed(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.missing = append(o.missing, id)
}

// nonTransactional hides Memory.InTx so RunAtomic runs steps one by one.
type nonTransactional struct {
	gateway.Gateway
}

type fixture struct {
	mem      *gateway.Memory
	clock    *fakeClock
	observer *countingObserver
	zones    *ZoneRepository
	sessions *SessionRepository
	receipts *ReceiptRepository
	zone     models.Zone
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, nil)
}

// newFixtureWith builds repositories over an in-memory gateway. wrap, when set, decorates the
// gateway the repositories see.
func newFixtureWith(t *testing.T, wrap func(gateway.Gateway) gateway.Gateway) *fixture {
	t.Helper()
	clock := newFakeClock()
	mem := gateway.NewMemory(gateway.DefaultSchema(), gateway.WithMemoryClock(clock.Now))

	var gw gateway.Gateway = mem
	if wrap != nil {
		gw = wrap(mem)
	}

	f := &fixture{mem: mem, clock: clock, observer: &countingObserver{}}
	f.zones = NewZoneRepository(gw)
	f.receipts = NewReceiptRepository(gw)
	f.sessions = NewSessionRepository(gw, f.zones, zaptest.NewLogger(t),
		WithClock(clock.Now),
		WithObserver(f.observer),
	)

	zone, _, err := f.zones.Upsert(context.Background(), models.Zone{
		ZoneCode: "8011", Name: "Stureplan", City: "Stockholm", Type: "street",
		Latitude: 59.3354, Longitude: 18.0734,
	})
	require.NoError(t, err)
	f.zone = *zone
	return f
}

// signIn creates a registered principal and returns a context bound to it.
func (f *fixture) signIn(t *testing.T, email string) (context.Context, string) {
	t.Helper()
	row, err := f.mem.Insert(context.Background(), gateway.TablePrincipals, gateway.Record{"email": email})
	require.NoError(t, err)
	id := row.String("id")
	return gateway.WithPrincipal(context.Background(), id), id
}
