package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListForPrincipalOrdersByEndTime(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.signIn(t, "anna@example.com")

	first, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)
	second, err := f.sessions.Start(ctx, f.zone.ID)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	_, err = f.sessions.Stop(ctx, second.ID)
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)
	_, err = f.sessions.Stop(ctx, first.ID)
	require.NoError(t, err)

	receipts, err := f.receipts.ListForPrincipal(ctx)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, first.ID, receipts[0].SessionID)
	assert.Equal(t, second.ID, receipts[1].SessionID)
	assert.True(t, receipts[0].EndedAt.After(receipts[1].EndedAt))
}

func TestListForPrincipalScoping(t *testing.T) {
	f := newFixture(t)
	anna, _ := f.signIn(t, "anna@example.com")
	bo, _ := f.signIn(t, "bo@example.com")

	session, err := f.sessions.Start(anna, f.zone.ID)
	require.NoError(t, err)
	_, err = f.sessions.Stop(anna, session.ID)
	require.NoError(t, err)

	receipts, err := f.receipts.ListForPrincipal(bo)
	require.NoError(t, err)
	assert.NotNil(t, receipts)
	assert.Empty(t, receipts)

	receipts, err = f.receipts.ListForPrincipal(context.Background())
	require.NoError(t, err)
	assert.Empty(t, receipts)
}

func TestFindBySession(t *testing.T) {
	f := newFixture(t)
	anna, _ := f.signIn(t, "anna@example.com")
	bo, _ := f.signIn(t, "bo@example.com")

	session, err := f.sessions.Start(anna, f.zone.ID)
	require.NoError(t, err)

	missing, err := f.receipts.FindBySession(anna, session.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	receipt, err := f.sessions.Stop(anna, session.ID)
	require.NoError(t, err)

	found, err := f.receipts.FindBySession(anna, session.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, receipt.ID, found.ID)

	foreign, err := f.receipts.FindBySession(bo, session.ID)
	require.NoError(t, err)
	assert.Nil(t, foreign)
}
