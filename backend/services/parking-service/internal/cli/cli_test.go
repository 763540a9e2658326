package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sparkpark/backend/services/parking-service/internal/app"
	"sparkpark/backend/services/parking-service/internal/gateway"
	"sparkpark/backend/services/parking-service/internal/models"
	"sparkpark/backend/services/parking-service/internal/service"
)

const seedDoc = `
zones:
  - zone_code: "8011"
    name: Stureplan
    city: Stockholm
    type: Gata
    latitude: 59.3356
    longitude: 18.0737
  - zone_code: "8217"
    name: Hornstull
    city: Stockholm
    type: Gata
    latitude: 59.3157
    longitude: 18.0337
`

func memoryEnv(t *testing.T) (*Env, Opener) {
	t.Helper()
	store := &app.Store{Gateway: gateway.NewMemory(gateway.DefaultSchema())}
	env := NewEnv(store, nil, zap.NewNop())
	return env, func(context.Context) (*Env, error) { return env, nil }
}

func run(t *testing.T, open Opener, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeSeed(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zones.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	_, open := memoryEnv(t)
	out, err := run(t, open, "version")
	require.NoError(t, err)
	assert.Equal(t, "parkadmin dev\n", out)
}

func TestMigrateWithMemoryGateway(t *testing.T) {
	_, open := memoryEnv(t)
	out, err := run(t, open, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to migrate")
}

func TestZonesSeedAndList(t *testing.T) {
	_, open := memoryEnv(t)
	seed := writeSeed(t, seedDoc)

	out, err := run(t, open, "zones", "seed", "--file", seed)
	require.NoError(t, err)
	assert.Equal(t, "seeded 2 zones: 2 created, 0 updated\n", out)

	out, err = run(t, open, "zones", "seed", "-f", seed)
	require.NoError(t, err)
	assert.Equal(t, "seeded 2 zones: 0 created, 2 updated\n", out)

	out, err = run(t, open, "zones", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "CODE"))
	assert.Contains(t, lines[1], "Hornstull")
	assert.Contains(t, lines[2], "Stureplan")

	out, err = run(t, open, "zones", "list", "--query", "sture")
	require.NoError(t, err)
	assert.Contains(t, out, "Stureplan")
	assert.NotContains(t, out, "Hornstull")
}

func TestZonesListNearJSON(t *testing.T) {
	_, open := memoryEnv(t)
	_, err := run(t, open, "zones", "seed", "--file", writeSeed(t, seedDoc))
	require.NoError(t, err)

	// Östermalmstorg is a few hundred metres from Stureplan.
	out, err := run(t, open, "--json", "zones", "list", "--near", "59.3350,18.0770")
	require.NoError(t, err)

	var zones []models.ZoneWithDistance
	require.NoError(t, json.Unmarshal([]byte(out), &zones))
	require.Len(t, zones, 2)
	assert.Equal(t, "8011", zones[0].ZoneCode)
	assert.Equal(t, "8217", zones[1].ZoneCode)
	require.NotNil(t, zones[0].DistanceMeters)
	assert.Less(t, *zones[0].DistanceMeters, 1000.0)
}

func TestZonesSeedRequiresFile(t *testing.T) {
	_, open := memoryEnv(t)
	_, err := run(t, open, "zones", "seed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"file"`)
}

func TestZonesSeedRejectsBadFile(t *testing.T) {
	_, open := memoryEnv(t)
	_, err := run(t, open, "zones", "seed", "--file", writeSeed(t, "zones:\n  - name: nameless\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zone_code is required")
}

func TestReceiptsList(t *testing.T) {
	env, open := memoryEnv(t)
	ctx := context.Background()
	_, err := env.Parking.SeedZones(ctx, []models.Zone{{ZoneCode: "8011", Name: "Stureplan", City: "Stockholm"}})
	require.NoError(t, err)
	zones, err := env.Parking.ListZones(ctx, service.ZoneQuery{})
	require.NoError(t, err)

	principalID, err := env.Store.Gateway.CreateAnonymousPrincipal(ctx)
	require.NoError(t, err)
	pctx := gateway.WithPrincipal(ctx, principalID)
	session, err := env.Parking.StartSession(pctx, zones[0].ID)
	require.NoError(t, err)
	receipt, err := env.Parking.StopSession(pctx, session.ID)
	require.NoError(t, err)

	out, err := run(t, open, "receipts", "list", "--principal", principalID)
	require.NoError(t, err)
	assert.Contains(t, out, "Stureplan")
	assert.Contains(t, out, receipt.ID)
	assert.Contains(t, out, "SEK")

	out, err = run(t, open, "receipts", "list", "--principal", "someone-else")
	require.NoError(t, err)
	assert.Equal(t, "no receipts\n", out)

	_, err = run(t, open, "receipts", "list")
	assert.EqualError(t, err, "--principal is required")
}

func TestParseNear(t *testing.T) {
	tests := []struct {
		raw     string
		want    *float64
		wantErr bool
	}{
		{raw: ""},
		{raw: "59.33, 18.06", want: ptr(59.33)},
		{raw: "59.33", wantErr: true},
		{raw: "north,18", wantErr: true},
		{raw: "59,east", wantErr: true},
		{raw: "95,18", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := parseNear(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.InDelta(t, *tt.want, p.Latitude, 1e-9)
			assert.InDelta(t, 18.06, p.Longitude, 1e-9)
		})
	}
}

func ptr(f float64) *float64 { return &f }
