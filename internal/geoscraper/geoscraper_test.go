package geoscraper

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/serjvanilla/go-overpass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/waste-risk/internal/model"
	"github.com/sells-group/waste-risk/internal/resilience"
)

type fakeQuerier struct {
	results []overpass.Result
	errs    []error
	queries []string
}

func (f *fakeQuerier) Query(q string) (overpass.Result, error) {
	i := len(f.queries)
	f.queries = append(f.queries, q)
	if i < len(f.errs) && f.errs[i] != nil {
		return overpass.Result{}, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return f.results[len(f.results)-1], nil
}

func node(id int64, lon, lat float64, tags map[string]string) *overpass.Node {
	n := &overpass.Node{Lat: lat, Lon: lon}
	n.ID = id
	n.Tags = tags
	return n
}

func sampleResult() overpass.Result {
	c1 := node(10, 124.80, 1.50, nil)
	c2 := node(11, 124.82, 1.50, nil)
	c3 := node(12, 124.82, 1.52, nil)
	c4 := node(13, 124.80, 1.52, nil)

	way := &overpass.Way{Nodes: []*overpass.Node{c1, c2, c3, c4, c1}}
	way.ID = 100
	way.Tags = map[string]string{"amenity": "marketplace"}

	return overpass.Result{
		Nodes: map[int64]*overpass.Node{
			1:  node(1, 124.85, 1.49, map[string]string{"amenity": "waste_transfer_station"}),
			2:  node(2, 124.86, 1.48, map[string]string{"building": "house"}),
			3:  node(3, 124.87, 1.47, map[string]string{"amenity": "hospital"}),
			10: c1, 11: c2, 12: c3, 13: c4,
		},
		Ways: map[int64]*overpass.Way{100: way},
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		tags map[string]string
		want model.ZoneType
	}{
		{map[string]string{"amenity": "marketplace"}, model.ZoneMarket},
		{map[string]string{"amenity": "waste_disposal"}, model.ZoneTPS},
		{map[string]string{"amenity": "waste_transfer_station"}, model.ZoneTPS},
		{map[string]string{"amenity": "school"}, model.ZoneEducation},
		{map[string]string{"amenity": "University"}, model.ZoneEducation},
		{map[string]string{"building": "apartments"}, model.ZoneResidential},
		{map[string]string{"building": "residential", "amenity": "marketplace"}, model.ZoneMarket},
		{map[string]string{"amenity": "hospital"}, model.ZoneOther},
		{map[string]string{"leisure": "park"}, model.ZoneOther},
		{nil, model.ZoneOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.tags), "%v", tt.tags)
	}
}

func TestBuildQuery_Place(t *testing.T) {
	q, err := BuildQuery(Area{Place: "Manado"}, 60*time.Second)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(q, "[out:json][timeout:60];"))
	assert.Contains(t, q, `area["name"="Manado"]["boundary"="administrative"]->.searchArea;`)
	assert.Contains(t, q, `node["amenity"~"^(marketplace|waste_disposal|waste_transfer_station|school|university|hospital)$"](area.searchArea);`)
	assert.Contains(t, q, `way["building"~"^(residential|apartments|house)$"](area.searchArea);`)
	assert.Contains(t, q, `node["leisure"~"^(park)$"](area.searchArea);`)
	assert.Contains(t, q, "out skel qt;")
}

func TestBuildQuery_BBox(t *testing.T) {
	q, err := BuildQuery(Area{Place: "ignored", BBox: model.BBox{MinLon: 124.8, MinLat: 1.45, MaxLon: 124.9, MaxLat: 1.55}}, 0)
	require.NoError(t, err)
	assert.Contains(t, q, "[timeout:180]")
	assert.Contains(t, q, "(1.45,124.8,1.55,124.9)")
	assert.NotContains(t, q, "searchArea")
}

func TestBuildQuery_Errors(t *testing.T) {
	_, err := BuildQuery(Area{}, time.Second)
	require.Error(t, err)

	_, err = BuildQuery(Area{BBox: model.BBox{MinLon: 2, MaxLon: 1, MinLat: 0, MaxLat: 1}}, time.Second)
	require.Error(t, err)
}

func TestElements(t *testing.T) {
	elems := Elements(sampleResult())
	require.Len(t, elems, 4)

	// Nodes first, by id; untagged way members dropped.
	assert.Equal(t, int64(1), elems[0].ID)
	assert.Equal(t, "node", elems[0].Type)
	assert.Equal(t, int64(3), elems[2].ID)

	w := elems[3]
	assert.Equal(t, "way", w.Type)
	assert.InDelta(t, 124.81, w.Lon, 1e-9)
	assert.InDelta(t, 1.51, w.Lat, 1e-9)
}

func TestWayCentroid_Open(t *testing.T) {
	open := &overpass.Way{Nodes: []*overpass.Node{node(1, 0, 0, nil), node(2, 2, 0, nil), node(3, 4, 3, nil)}}
	c, ok := wayCentroid(open)
	require.True(t, ok)
	assert.InDelta(t, 2.0, c.X(), 1e-12)
	assert.InDelta(t, 1.0, c.Y(), 1e-12)

	_, ok = wayCentroid(&overpass.Way{})
	assert.False(t, ok)
}

func TestFetch_RetriesTransient(t *testing.T) {
	fq := &fakeQuerier{
		errs:    []error{errors.New("overpass: 429 Too Many Requests"), nil},
		results: []overpass.Result{{}, sampleResult()},
	}
	src := NewSourceWithQuerier(fq, time.Minute, resilience.Policy{Attempts: 3, Backoff: time.Millisecond})

	elems, err := src.Fetch(context.Background(), Area{Place: "Manado"})
	require.NoError(t, err)
	assert.Len(t, elems, 4)
	assert.Len(t, fq.queries, 2)
}

func TestFetch_PermanentError(t *testing.T) {
	fq := &fakeQuerier{errs: []error{errors.New("parse error: line 3")}, results: []overpass.Result{{}}}
	src := NewSourceWithQuerier(fq, time.Minute, resilience.Policy{Attempts: 3, Backoff: time.Millisecond})

	_, err := src.Fetch(context.Background(), Area{Place: "Manado"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "place:Manado")
	assert.Len(t, fq.queries, 1)
}

type blockingQuerier struct{ release chan struct{} }

func (b blockingQuerier) Query(string) (overpass.Result, error) {
	<-b.release
	return overpass.Result{}, nil
}

func TestFetch_ContextCanceled(t *testing.T) {
	bq := blockingQuerier{release: make(chan struct{})}
	defer close(bq.release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	src := NewSourceWithQuerier(bq, time.Minute, resilience.Policy{Attempts: 1})
	_, err := src.Fetch(ctx, Area{Place: "Manado"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type staticSource []Element

func (s staticSource) Fetch(context.Context, Area) ([]Element, error) { return s, nil }

func TestCollect(t *testing.T) {
	src := staticSource(Elements(sampleResult()))

	points, err := Collect(context.Background(), src, Area{Place: "Manado"}, nil)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, model.SpatialPoint{ID: "node/1", Lon: 124.85, Lat: 1.49, Zone: model.ZoneTPS}, points[0])
	assert.Equal(t, model.ZoneResidential, points[1].Zone)
	assert.Equal(t, model.ZoneMarket, points[2].Zone)
	assert.Equal(t, "way/100", points[2].ID)

	points, err = Collect(context.Background(), src, Area{Place: "Manado"}, []model.ZoneType{model.ZoneOther})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "node/3", points[0].ID)
}
