// Package tract finds the 2016 Census tract that contains a point.
package tract

import (
	"context"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
	"go.uber.org/zap"
)

// Tract is one Census tract boundary.
type Tract struct {
	GEOID    string
	StateFP  string
	CountyFP string
	TractCE  string
	Name     string
	NameLSAD string
	Geometry *geom.MultiPolygon
}

// Locator finds the GEOID of the tract containing a point. It returns "" when
// no tract contains the point.
type Locator interface {
	Locate(ctx context.Context, lat, lng float64) (string, error)
}

type indexedTract struct {
	geoid  string
	bounds *geom.Bounds
	geom   *geom.MultiPolygon
}

// Index is an in-memory Locator over a fixed set of tracts.
type Index struct {
	tracts []indexedTract
	log    *zap.Logger
}

// NewIndex builds an Index. Tracts are tested in the given order.
func NewIndex(tracts []Tract) *Index {
	idx := &Index{
		tracts: make([]indexedTract, 0, len(tracts)),
		log:    zap.L().With(zap.String("component", "tract")),
	}
	for _, t := range tracts {
		if t.Geometry == nil || t.Geometry.Empty() {
			continue
		}
		idx.tracts = append(idx.tracts, indexedTract{
			geoid:  t.GEOID,
			bounds: t.Geometry.Bounds(),
			geom:   t.Geometry,
		})
	}
	return idx
}

// Len returns the number of tracts in the index.
func (idx *Index) Len() int { return len(idx.tracts) }

// Locate implements Locator. The point is (x=lng, y=lat); the first tract
// that strictly contains it wins, so points on a tract boundary match none.
func (idx *Index) Locate(_ context.Context, lat, lng float64) (string, error) {
	pt := geom.Coord{lng, lat}
	for _, t := range idx.tracts {
		if !t.bounds.OverlapsPoint(geom.XY, pt) {
			continue
		}
		if containsStrict(t.geom, pt) {
			return t.geoid, nil
		}
	}
	idx.log.Warn("no census tract contains point")
	return "", nil
}

// containsStrict reports whether pt is in the interior of mp: inside some
// exterior ring and neither inside nor on any of that polygon's holes.
func containsStrict(mp *geom.MultiPolygon, pt geom.Coord) bool {
	for i := range mp.NumPolygons() {
		p := mp.Polygon(i)
		if p.NumLinearRings() == 0 {
			continue
		}
		if xy.LocatePointInRing(geom.XY, pt, p.LinearRing(0).FlatCoords()) != location.Interior {
			continue
		}
		inHole := false
		for j := 1; j < p.NumLinearRings(); j++ {
			if xy.LocatePointInRing(geom.XY, pt, p.LinearRing(j).FlatCoords()) != location.Exterior {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}
