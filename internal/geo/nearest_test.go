package geo

import (
	"context"
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/waste-risk/internal/model"
)

func TestNearestDistance_EmptyReferences(t *testing.T) {
	for _, p := range []orb.Point{{0, 0}, {124.85, 1.5}, {-180, 90}} {
		got, measured := NearestDistance(p, nil)
		assert.Equal(t, FallbackDistanceMeters, got)
		assert.False(t, measured)
	}
}

func TestNearestDistance_Self(t *testing.T) {
	p := orb.Point{124.85, 1.5}
	got, measured := NearestDistance(p, []orb.Point{p})
	assert.Equal(t, 0.0, got)
	assert.True(t, measured)
}

func TestNearestDistance_PicksMinimum(t *testing.T) {
	p := orb.Point{124.80, 1.50}
	refs := []orb.Point{
		{124.90, 1.50}, // 0.10 deg
		{124.80, 1.53}, // 0.03 deg
		{124.84, 1.53}, // 0.05 deg
	}
	got, measured := NearestDistance(p, refs)
	require.True(t, measured)
	assert.InDelta(t, 0.03*MetersPerDegree, got, 1e-6)
}

func TestNearestDistance_PlanarDiagonal(t *testing.T) {
	got, _ := NearestDistance(orb.Point{0, 0}, []orb.Point{{0.003, 0.004}})
	assert.InDelta(t, 0.005*MetersPerDegree, got, 1e-6)
}

func points(zone model.ZoneType, n int, offset float64) []model.SpatialPoint {
	out := make([]model.SpatialPoint, n)
	for i := range out {
		out[i] = model.SpatialPoint{
			ID:   fmt.Sprintf("%s-%d", zone, i),
			Lon:  124.8 + offset + float64(i)*0.001,
			Lat:  1.5,
			Zone: zone,
		}
	}
	return out
}

func TestSelectReferences(t *testing.T) {
	tests := []struct {
		name       string
		points     []model.SpatialPoint
		wantSource ReferenceSource
		wantCount  int
	}{
		{
			name:       "enough tps",
			points:     append(points(model.ZoneTPS, 5, 0), points(model.ZoneMarket, 2, 0.05)...),
			wantSource: ReferenceTPS,
			wantCount:  5,
		},
		{
			name:       "few tps falls back to markets",
			points:     append(points(model.ZoneTPS, 4, 0), points(model.ZoneMarket, 3, 0.05)...),
			wantSource: ReferenceMarket,
			wantCount:  3,
		},
		{
			name:       "few tps and no markets is empty",
			points:     append(points(model.ZoneTPS, 2, 0), points(model.ZoneResidential, 10, 0.05)...),
			wantSource: ReferenceNone,
			wantCount:  0,
		},
		{
			name:       "nothing at all",
			points:     nil,
			wantSource: ReferenceNone,
			wantCount:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs := SelectReferences(tt.points, 0)
			assert.Equal(t, tt.wantSource, refs.Source)
			assert.Len(t, refs.Points, tt.wantCount)
			assert.Equal(t, tt.wantCount == 0, refs.Empty())
		})
	}
}

func TestSelectReferences_CustomThreshold(t *testing.T) {
	pts := append(points(model.ZoneTPS, 2, 0), points(model.ZoneMarket, 3, 0.05)...)
	refs := SelectReferences(pts, 2)
	assert.Equal(t, ReferenceTPS, refs.Source)
	assert.Len(t, refs.Points, 2)
}

func TestDistances_AlignedWithInput(t *testing.T) {
	pts := append(points(model.ZoneTPS, 5, 0), points(model.ZoneResidential, 600, 0.2)...)
	refs := SelectReferences(pts, 0)

	got, err := Distances(context.Background(), pts, refs, 4)
	require.NoError(t, err)
	require.Len(t, got, len(pts))

	for i := 0; i < 5; i++ {
		assert.Equal(t, 0.0, got[i].Meters, "tps point %d is its own reference", i)
		assert.True(t, got[i].Measured)
	}
	for i, p := range pts {
		want, _ := NearestDistance(p.Point(), refs.Points)
		assert.InDelta(t, want, got[i].Meters, 1e-9)
	}
}

func TestDistances_FallbackFlagged(t *testing.T) {
	pts := points(model.ZoneResidential, 3, 0)
	got, err := Distances(context.Background(), pts, SelectReferences(pts, 0), 0)
	require.NoError(t, err)
	for _, d := range got {
		assert.Equal(t, FallbackDistanceMeters, d.Meters)
		assert.False(t, d.Measured)
	}
}

func TestDistances_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pts := points(model.ZoneMarket, 10, 0)
	_, err := Distances(ctx, pts, SelectReferences(pts, 0), 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDistances_Empty(t *testing.T) {
	got, err := Distances(context.Background(), nil, ReferenceSet{Source: ReferenceNone}, 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}
