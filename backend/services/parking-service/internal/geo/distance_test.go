package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMetersKnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lon1      float64
		lat2      float64
		lon2      float64
		want      float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: 59.3293, lon1: 18.0686,
			lat2: 59.3293, lon2: 18.0686,
			want:      0,
			tolerance: 0.001,
		},
		{
			name: "Stockholm central to Slussen (~1.3km)",
			lat1: 59.3303, lon1: 18.0586,
			lat2: 59.3199, lon2: 18.0717,
			want:      1360,
			tolerance: 100,
		},
		{
			name: "Stockholm to Gothenburg (~398km)",
			lat1: 59.3293, lon1: 18.0686,
			lat2: 57.7089, lon2: 11.9746,
			want:      398000,
			tolerance: 5000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceMeters(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.tolerance)
		})
	}
}

func TestDistanceMetersSymmetry(t *testing.T) {
	d1 := DistanceMeters(59.0, 18.0, 60.0, 17.0)
	d2 := DistanceMeters(60.0, 17.0, 59.0, 18.0)
	assert.Less(t, math.Abs(d1-d2), 0.0001)
}

type item struct {
	id   string
	dist *float64
}

func ptr(v float64) *float64 { return &v }

func TestSortByDistanceUnknownLast(t *testing.T) {
	items := []item{
		{id: "unknown-a"},
		{id: "far", dist: ptr(5000)},
		{id: "near", dist: ptr(120)},
		{id: "unknown-b"},
		{id: "mid", dist: ptr(900)},
	}

	SortByDistance(items, func(it item) (float64, bool) {
		if it.dist == nil {
			return 0, false
		}
		return *it.dist, true
	})

	var order []string
	for _, it := range items {
		order = append(order, it.id)
	}
	assert.Equal(t, []string{"near", "mid", "far", "unknown-a", "unknown-b"}, order)
}

func TestSortByDistanceEmpty(t *testing.T) {
	var items []item
	SortByDistance(items, func(it item) (float64, bool) { return 0, false })
	assert.Empty(t, items)
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "–", FormatDistance(nil))
	assert.Equal(t, "~850 m", FormatDistance(ptr(849.6)))
	assert.Equal(t, "~1.0 km", FormatDistance(ptr(1000)))
	assert.Equal(t, "~12.3 km", FormatDistance(ptr(12345)))
}

func TestPointValid(t *testing.T) {
	assert.True(t, Point{Latitude: 59.3, Longitude: 18.1}.Valid())
	assert.False(t, Point{Latitude: 91, Longitude: 0}.Valid())
	assert.False(t, Point{Latitude: 0, Longitude: -181}.Valid())
}
