package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkpark/backend/services/parking-service/internal/billing"
	apperrors "sparkpark/backend/services/parking-service/internal/errors"
	"sparkpark/backend/services/parking-service/internal/gateway"
	"sparkpark/backend/services/parking-service/internal/models"
)

func TestEnsurePrincipal(t *testing.T) {
	t.Run("returns signed in principal", func(t *testing.T) {
		f := newFixture(t)
		ctx, id := f.signIn(t, "anna@example.com")

		got, err := f.sessions.EnsurePrincipal(ctx)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("creates anonymous principal", func(t *testing.T) {
		f := newFixture(t)
		identity := gateway.NewIdentity("")
		ctx := gateway.WithIdentity(context.Background(), identity)

		got, err := f.sessions.EnsurePrincipal(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, got)
		assert.True(t, identity.CreatedAnonymously())

		again, err := f.sessions.EnsurePrincipal(ctx)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	})

	t.Run("anonymous creation failure is an auth error", func(t *testing.T) {
		f := newFixture(t)
		f.mem.FailNext(gateway.OpInsert, gateway.TablePrincipals, apperrors.Transport(errors.New("dial tcp: refused")))

		_, err := f.sessions.EnsurePrincipal(gateway.WithIdentity(context.Background(), gateway.NewIdentity("")))
		assert.True(t, apperrors.IsAuth(err))
	})
}

func TestStartThenListActive(t *testing.T) {
	f := newFixture(t)
	ctx, principalID := f.signIn(t, "anna@example.com")

	started, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)
	assert.Equal(t, principalID, started.PrincipalID)
	assert.Equal(t, models.SessionStatusOpen, started.Status)
	assert.Equal(t, f.clock.Now(), started.StartedAt)
	require.NotNil(t, started.Zone)
	assert.Equal(t, "Stureplan", started.Zone.Name)

	active, err := f.sessions.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, started.ID, active[0].ID)
	require.NotNil(t, active[0].Zone)
	assert.Equal(t, "8011", active[0].Zone.ZoneCode)
	assert.Equal(t, 1, f.observer.started)
}

func TestStartUnknownZone(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.signIn(t, "anna@example.com")

	_, err := f.sessions.Start(ctx, "does-not-exist")
	assert.True(t, apperrors.IsNotFound(err))

	active, err := f.sessions.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestStartPermitsConcurrentOpenSessions(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.signIn(t, "anna@example.com")

	first, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)

	active, err := f.sessions.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, first.ID, active[1].ID)

	newest, err := f.sessions.ActiveSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, newest.ID)
}

func TestListActive(t *testing.T) {
	t.Run("unauthenticated caller gets empty list", func(t *testing.T) {
		f := newFixture(t)

		active, err := f.sessions.ListActive(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, active)
		assert.Empty(t, active)

		newest, err := f.sessions.ActiveSession(context.Background())
		require.NoError(t, err)
		assert.Nil(t, newest)
	})

	t.Run("zone lookup failure keeps the row", func(t *testing.T) {
		f := newFixture(t)
		ctx, _ := f.signIn(t, "anna@example.com")
		first, err := f.sessions.Start(ctx, f.zone.ID)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
		_, err = f.sessions.Start(ctx, f.zone.ID)
		require.NoError(t, err)

		f.mem.FailNext(gateway.OpGet, gateway.TableZones, apperrors.Transport(errors.New("timeout")))

		active, err := f.sessions.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Nil(t, active[0].Zone)
		assert.NotNil(t, active[1].Zone)
		assert.Equal(t, first.ID, active[1].ID)
		assert.Len(t, f.observer.missing, 1)
	})

	t.Run("query failure propagates", func(t *testing.T) {
		f := newFixture(t)
		ctx, _ := f.signIn(t, "anna@example.com")
		f.mem.FailNext(gateway.OpQuery, gateway.TableSessions, apperrors.Transport(errors.New("timeout")))

		_, err := f.sessions.ListActive(ctx)
		assert.True(t, apperrors.IsTransport(err))
	})

	t.Run("other principals are invisible", func(t *testing.T) {
		f := newFixture(t)
		anna, _ := f.signIn(t, "anna@example.com")
		bo, _ := f.signIn(t, "bo@example.com")
		_, err := f.sessions.Start(anna, f.zone.ID)
		require.NoError(t, err)

		active, err := f.sessions.ListActive(bo)
		require.NoError(t, err)
		assert.Empty(t, active)
	})
}

func TestStopCreatesReceipt(t *testing.T) {
	f := newFixture(t)
	ctx, principalID := f.signIn(t, "anna@example.com")

	session, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)
	f.clock.Advance(59*time.Second + 700*time.Millisecond)

	receipt, err := f.sessions.Stop(ctx, session.ID)
	require.NoError(t, err)

	assert.Equal(t, principalID, receipt.PrincipalID)
	assert.Equal(t, session.ID, receipt.SessionID)
	assert.Equal(t, f.zone.ID, receipt.ZoneID)
	assert.Equal(t, "Stureplan", receipt.ZoneName)
	assert.Equal(t, "8011", receipt.ZoneCode)
	assert.Equal(t, session.StartedAt, receipt.StartedAt)
	assert.Equal(t, f.clock.Now(), receipt.EndedAt)
	assert.Equal(t, int64(59), receipt.DurationSeconds)
	assert.Equal(t, billing.DefaultRatePerMinute, receipt.RatePerMinute)
	assert.Equal(t, billing.Amount(983), receipt.TotalCost)
	assert.Equal(t, billing.Cost(receipt.DurationSeconds, receipt.RatePerMinute), receipt.TotalCost)
	assert.Equal(t, "SEK", receipt.Currency)

	active, err := f.sessions.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	receipts, err := f.receipts.ListForPrincipal(ctx)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, receipt.ID, receipts[0].ID)

	row, err := f.mem.GetByID(ctx, gateway.TableSessions, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "closed", row.String("status"))
	assert.Equal(t, f.clock.Now(), row.Time("closed_at"))
	assert.Equal(t, 1, f.observer.receipts)
}

func TestStopIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.signIn(t, "anna@example.com")
	session, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	first, err := f.sessions.Stop(ctx, session.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.sessions.Stop(ctx, session.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TotalCost, second.TotalCost)

	receipts, err := f.receipts.ListForPrincipal(ctx)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
}

func TestStopConcurrentCallsBillOnce(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.signIn(t, "anna@example.com")
	session, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)
	f.clock.Advance(90 * time.Second)

	const callers = 8
	var wg sync.WaitGroup
	ids := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := f.sessions.Stop(ctx, session.ID)
			errs[i] = err
			if r != nil {
				ids[i] = r.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	receipts, err := f.receipts.ListForPrincipal(ctx)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
}

func TestStopRequiresPrincipal(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.signIn(t, "anna@example.com")
	session, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)

	_, err = f.sessions.Stop(context.Background(), session.ID)
	assert.True(t, apperrors.IsAuth(err))
}

func TestStopForeignSessionIsNotFound(t *testing.T) {
	f := newFixture(t)
	anna, _ := f.signIn(t, "anna@example.com")
	bo, _ := f.signIn(t, "bo@example.com")
	session, err := f.sessions.Start(anna, f.zone.ID)
	require.NoError(t, err)

	_, err = f.sessions.Stop(bo, session.ID)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.sessions.Stop(bo, "missing")
	assert.True(t, apperrors.IsNotFound(err))

	active, err := f.sessions.ListActive(anna)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	receipts, err := f.receipts.ListForPrincipal(anna)
	require.NoError(t, err)
	assert.Empty(t, receipts)
}

func TestStopClampsClockSkew(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.signIn(t, "anna@example.com")
	session, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)
	f.clock.Advance(-30 * time.Second)

	receipt, err := f.sessions.Stop(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), receipt.DurationSeconds)
	assert.Equal(t, billing.Amount(0), receipt.TotalCost)
	assert.Equal(t, []string{session.ID}, f.observer.clamped)
}

func TestStopReceiptInsertFailureKeepsSessionOpen(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.signIn(t, "anna@example.com")
	session, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	f.mem.FailNext(gateway.OpInsert, gateway.TableReceipts, apperrors.Validation("rejected"))
	_, err = f.sessions.Stop(ctx, session.ID)
	assert.True(t, apperrors.IsValidation(err))

	active, err := f.sessions.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	receipt, err := f.sessions.Stop(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.Amount(1000), receipt.TotalCost)
}

func TestStopCloseFailureInTransactionRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.signIn(t, "anna@example.com")
	session, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)

	f.mem.FailNext(gateway.OpUpdate, gateway.TableSessions, apperrors.Transport(errors.New("reset")))
	_, err = f.sessions.Stop(ctx, session.ID)
	assert.True(t, apperrors.IsTransport(err))

	receipts, err := f.receipts.ListForPrincipal(ctx)
	require.NoError(t, err)
	assert.Empty(t, receipts)
	active, err := f.sessions.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestStopCloseFailureWithoutTransactionReusesReceipt(t *testing.T) {
	f := newFixtureWith(t, func(gw gateway.Gateway) gateway.Gateway { return nonTransactional{gw} })
	ctx, _ := f.signIn(t, "anna@example.com")
	session, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)
	f.clock.Advance(45 * time.Second)

	f.mem.FailNext(gateway.OpUpdate, gateway.TableSessions, apperrors.Transport(errors.New("reset")))
	_, err = f.sessions.Stop(ctx, session.ID)
	assert.True(t, apperrors.IsTransport(err))

	f.clock.Advance(10 * time.Minute)
	receipt, err := f.sessions.Stop(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(45), receipt.DurationSeconds)

	receipts, err := f.receipts.ListForPrincipal(ctx)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
	active, err := f.sessions.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestReceiptKeepsZoneSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.signIn(t, "anna@example.com")
	session, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)
	_, err = f.sessions.Stop(ctx, session.ID)
	require.NoError(t, err)

	renamed := f.zone
	renamed.Name = "Stureplan Norra"
	_, created, err := f.zones.Upsert(ctx, renamed)
	require.NoError(t, err)
	assert.False(t, created)

	receipts, err := f.receipts.ListForPrincipal(ctx)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "Stureplan", receipts[0].ZoneName)
}

func TestStopWithVanishedZoneUsesPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.signIn(t, "anna@example.com")
	session, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)
	require.NoError(t, f.mem.Delete(ctx, gateway.TableZones, f.zone.ID))

	receipt, err := f.sessions.Stop(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UnknownZoneName, receipt.ZoneName)
	assert.Empty(t, receipt.ZoneCode)
}

type recordingGuard struct {
	acquired []string
	released int
	err      error
}

func (g *recordingGuard) Acquire(_ context.Context, sessionID string) (func(), error) {
	if g.err != nil {
		return nil, g.err
	}
	g.acquired = append(g.acquired, sessionID)
	return func() { g.released++ }, nil
}

func TestStopUsesGuard(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.signIn(t, "anna@example.com")
	session, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)

	guard := &recordingGuard{err: apperrors.Conflict("stop already in progress")}
	WithStopGuard(guard)(f.sessions)

	_, err = f.sessions.Stop(ctx, session.ID)
	assert.True(t, apperrors.IsConflict(err))

	guard.err = nil
	_, err = f.sessions.Stop(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{session.ID}, guard.acquired)
	assert.Equal(t, 1, guard.released)
}

func TestStopGuardIsTakenOnlyByOwner(t *testing.T) {
	f := newFixture(t)
	ownerCtx, _ := f.signIn(t, "anna@example.com")
	session, err := f.sessions.Start(ownerCtx, f.zone.ID)
	require.NoError(t, err)

	guard := &recordingGuard{}
	WithStopGuard(guard)(f.sessions)

	strangerCtx, _ := f.signIn(t, "bert@example.com")
	_, err = f.sessions.Stop(strangerCtx, session.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, guard.acquired)

	_, err = f.sessions.Stop(ownerCtx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{session.ID}, guard.acquired)
}

func TestWithRate(t *testing.T) {
	f := newFixture(t)
	WithRate(billing.AmountFromMajor(3), "EUR")(f.sessions)
	ctx, _ := f.signIn(t, "anna@example.com")
	session, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)
	f.clock.Advance(90 * time.Second)

	receipt, err := f.sessions.Stop(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.Amount(300), receipt.RatePerMinute)
	assert.Equal(t, billing.Amount(450), receipt.TotalCost)
	assert.Equal(t, "EUR", receipt.Currency)
}
