package tiger

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/xy"
)

// SRID of TIGER/Line geometries once loaded (NAD83 coordinates stored as
// WGS 84, the convention PostGIS tiger tables use).
const SRID = 4326

// polygonToMultiPolygon converts a shapefile polygon to a MultiPolygon.
// Shapefile outer rings wind clockwise and holes counter-clockwise; each hole
// is attached to the outer ring that precedes it.
func polygonToMultiPolygon(p *shp.Polygon) (*geom.MultiPolygon, error) {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil, eris.New("tiger: empty polygon")
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	flush := func() error {
		if current == nil {
			return nil
		}
		if err := mp.Push(current); err != nil {
			return eris.Wrap(err, "tiger: add polygon")
		}
		current = nil
		return nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for _, pt := range p.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if current != nil && xy.IsRingCounterClockwise(geom.XY, flat) {
			if err := current.Push(ring); err != nil {
				return nil, eris.Wrap(err, "tiger: add hole")
			}
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
		current = geom.NewPolygon(geom.XY)
		if err := current.Push(ring); err != nil {
			return nil, eris.Wrap(err, "tiger: add ring")
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if mp.NumPolygons() == 0 {
		return nil, eris.New("tiger: polygon has no valid rings")
	}
	return mp, nil
}

// EncodeEWKB encodes g as little-endian EWKB carrying SRID.
func EncodeEWKB(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, eris.New("tiger: nil geometry")
	}
	if mp, ok := g.(*geom.MultiPolygon); ok {
		g = mp.Clone().SetSRID(SRID)
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "tiger: encode EWKB")
	}
	return data, nil
}
