package geoscraper

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
	"github.com/serjvanilla/go-overpass"
	"go.uber.org/zap"

	"github.com/sells-group/waste-risk/internal/model"
	"github.com/sells-group/waste-risk/internal/resilience"
)

// DefaultEndpoint is the public Overpass interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// Querier runs a raw Overpass QL query. *overpass.Client satisfies it.
type Querier interface {
	Query(query string) (overpass.Result, error)
}

// Area selects where to fetch. Place is used when BBox is zero.
type Area struct {
	Place string
	BBox  model.BBox
}

func (a Area) String() string {
	if !a.BBox.IsZero() {
		return "bbox:" + a.BBox.String()
	}
	return "place:" + a.Place
}

// Element is one fetched map feature reduced to a point.
type Element struct {
	ID   int64
	Type string
	Lon  float64
	Lat  float64
	Tags map[string]string
}

// Options configures an OverpassSource.
type Options struct {
	Endpoint    string
	Timeout     time.Duration
	MaxParallel int
	Retry       resilience.Policy
}

// OverpassSource fetches elements from Overpass.
type OverpassSource struct {
	q       Querier
	timeout time.Duration
	retry   resilience.Policy
}

// NewOverpassSource builds a source backed by the go-overpass client.
func NewOverpassSource(opts Options) *OverpassSource {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 180 * time.Second
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	client := overpass.NewWithSettings(opts.Endpoint, opts.MaxParallel, &http.Client{Timeout: opts.Timeout})
	return NewSourceWithQuerier(&client, opts.Timeout, opts.Retry)
}

// NewSourceWithQuerier builds a source around any Querier.
func NewSourceWithQuerier(q Querier, timeout time.Duration, retry resilience.Policy) *OverpassSource {
	if retry.Observe == nil {
		retry.Observe = resilience.LogRetries("overpass")
	}
	return &OverpassSource{q: q, timeout: timeout, retry: retry}
}

// BuildQuery renders the Overpass QL for area.
func BuildQuery(area Area, timeout time.Duration) (string, error) {
	var b strings.Builder
	secs := int(timeout.Seconds())
	if secs <= 0 {
		secs = 180
	}
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n", secs)

	var scope string
	switch {
	case !area.BBox.IsZero():
		if err := area.BBox.Validate(); err != nil {
			return "", err
		}
		bb := area.BBox
		scope = fmt.Sprintf("(%g,%g,%g,%g)", bb.MinLat, bb.MinLon, bb.MaxLat, bb.MaxLon)
	case strings.TrimSpace(area.Place) != "":
		fmt.Fprintf(&b, "area[\"name\"=%q][\"boundary\"=\"administrative\"]->.searchArea;\n", strings.TrimSpace(area.Place))
		scope = "(area.searchArea)"
	default:
		return "", eris.New("geoscraper: area needs a place or a bbox")
	}

	keys := make([]string, 0, len(queryFilters))
	for k := range queryFilters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("(\n")
	for _, k := range keys {
		pattern := "^(" + strings.Join(queryFilters[k], "|") + ")$"
		for _, kind := range []string{"node", "way"} {
			fmt.Fprintf(&b, "  %s[%q~%q]%s;\n", kind, k, pattern, scope)
		}
	}
	b.WriteString(");\nout body;\n>;\nout skel qt;\n")
	return b.String(), nil
}

// Fetch queries Overpass and returns tagged elements sorted by type and id.
// Transient failures are retried.
func (s *OverpassSource) Fetch(ctx context.Context, area Area) ([]Element, error) {
	query, err := BuildQuery(area, s.timeout)
	if err != nil {
		return nil, err
	}

	log := zap.L().With(zap.String("component", "geoscraper.overpass"), zap.Stringer("area", area))
	log.Info("querying overpass")

	res, err := resilience.Retry(ctx, s.retry, func(ctx context.Context) (overpass.Result, error) {
		return s.query(ctx, query)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "geoscraper: overpass query for %s", area)
	}

	elems := Elements(res)
	log.Info("overpass returned", zap.Int("elements", len(elems)))
	return elems, nil
}

// query runs the blocking client call so ctx can abandon it.
func (s *OverpassSource) query(ctx context.Context, q string) (overpass.Result, error) {
	type result struct {
		res overpass.Result
		err error
	}
	ch := make(chan result, 1)
	go func() {
		r, err := s.q.Query(q)
		ch <- result{r, err}
	}()

	select {
	case <-ctx.Done():
		return overpass.Result{}, ctx.Err()
	case r := <-ch:
		return r.res, r.err
	}
}

// Elements converts a query result. Untagged nodes (way members) are dropped
// and ways are reduced to their centroid.
func Elements(res overpass.Result) []Element {
	var out []Element
	for _, n := range res.Nodes {
		if n == nil || len(n.Tags) == 0 {
			continue
		}
		out = append(out, Element{
			ID:   n.ID,
			Type: string(overpass.ElementTypeNode),
			Lon:  n.Lon,
			Lat:  n.Lat,
			Tags: n.Tags,
		})
	}
	for _, w := range res.Ways {
		if w == nil || len(w.Tags) == 0 {
			continue
		}
		c, ok := wayCentroid(w)
		if !ok {
			continue
		}
		out = append(out, Element{
			ID:   w.ID,
			Type: string(overpass.ElementTypeWay),
			Lon:  c.X(),
			Lat:  c.Y(),
			Tags: w.Tags,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// wayCentroid returns the area centroid of a closed way, or the mean of its
// vertices for open or degenerate ways. Falls back to the bounds centre when
// node geometry is missing.
func wayCentroid(w *overpass.Way) (orb.Point, bool) {
	var ls orb.LineString
	for _, n := range w.Nodes {
		if n == nil {
			continue
		}
		ls = append(ls, orb.Point{n.Lon, n.Lat})
	}

	if len(ls) == 0 {
		if w.Bounds == nil {
			return orb.Point{}, false
		}
		b := orb.Bound{
			Min: orb.Point{w.Bounds.Min.Lon, w.Bounds.Min.Lat},
			Max: orb.Point{w.Bounds.Max.Lon, w.Bounds.Max.Lat},
		}
		return b.Center(), true
	}

	if len(ls) >= 4 && ls[0].Equal(ls[len(ls)-1]) {
		if c, area := planar.CentroidArea(orb.Polygon{orb.Ring(ls)}); area != 0 {
			return c, true
		}
	}

	var sx, sy float64
	for _, p := range ls {
		sx += p.X()
		sy += p.Y()
	}
	n := float64(len(ls))
	return orb.Point{sx / n, sy / n}, true
}
