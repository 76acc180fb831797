package osm

import (
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/serjvanilla/go-overpass"
	"github.com/twpayne/go-geom"

	"github.com/terralab/geostat/internal/crs"
	"github.com/terralab/geostat/internal/vector"
)

// CollectionFromRelations assembles boundary relations into a WGS84
// collection, one multipolygon feature per relation, ordered by relation ID.
func CollectionFromRelations(rels map[int64]*overpass.Relation) (*vector.Collection, error) {
	if len(rels) == 0 {
		return nil, eris.New("no boundary relation found")
	}

	ids := make([]int64, 0, len(rels))
	for id := range rels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	coll := vector.NewCollection(crs.WGS84)
	for _, id := range ids {
		rel := rels[id]
		mp, err := relationGeometry(rel)
		if err != nil {
			return nil, eris.Wrapf(err, "relation %d", id)
		}
		props := make(map[string]any, len(rel.Tags))
		for k, v := range rel.Tags {
			props[k] = v
		}
		coll.Features = append(coll.Features, &vector.Feature{
			ID:         strconv.FormatInt(id, 10),
			Geometry:   mp,
			Properties: props,
		})
	}
	return coll, nil
}

// relationGeometry stitches a relation's outer and inner member ways into a
// multipolygon. Inner rings are attached as holes of the outer ring that
// contains them.
func relationGeometry(rel *overpass.Relation) (*geom.MultiPolygon, error) {
	var outerWays, innerWays []*overpass.Way
	for _, m := range rel.Members {
		if m.Type != overpass.ElementTypeWay || m.Way == nil {
			continue
		}
		switch m.Role {
		case "outer", "":
			outerWays = append(outerWays, m.Way)
		case "inner":
			innerWays = append(innerWays, m.Way)
		}
	}

	outers, err := stitchRings(outerWays)
	if err != nil {
		return nil, eris.Wrap(err, "outer rings")
	}
	if len(outers) == 0 {
		return nil, eris.New("relation has no outer ring")
	}
	inners, err := stitchRings(innerWays)
	if err != nil {
		return nil, eris.Wrap(err, "inner rings")
	}

	polyRings := make([][][]geom.Coord, len(outers))
	for i, outer := range outers {
		polyRings[i] = [][]geom.Coord{outer}
	}
	for _, inner := range inners {
		placed := false
		for i, outer := range outers {
			if coordInRing(inner[0], outer) {
				polyRings[i] = append(polyRings[i], inner)
				placed = true
				break
			}
		}
		if !placed {
			return nil, eris.New("inner ring outside every outer ring")
		}
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for _, rings := range polyRings {
		poly := geom.NewPolygon(geom.XY).MustSetCoords(rings)
		if err := mp.Push(poly); err != nil {
			return nil, eris.Wrap(err, "push polygon")
		}
	}
	return mp, nil
}

// stitchRings joins way segments end to end into closed rings. OSM boundary
// relations split a ring across many ways in arbitrary order and direction,
// so segments are matched by shared endpoint coordinates and reversed when
// needed.
func stitchRings(ways []*overpass.Way) ([][]geom.Coord, error) {
	var segs [][]geom.Coord
	for _, w := range ways {
		if len(w.Nodes) < 2 {
			continue
		}
		seg := make([]geom.Coord, len(w.Nodes))
		for i, n := range w.Nodes {
			seg[i] = geom.Coord{n.Lon, n.Lat}
		}
		segs = append(segs, seg)
	}

	used := make([]bool, len(segs))
	var rings [][]geom.Coord
	for i := range segs {
		if used[i] {
			continue
		}
		used[i] = true
		ring := append([]geom.Coord(nil), segs[i]...)

		for !ringClosed(ring) {
			j, reverse, ok := nextSegment(segs, used, ring[len(ring)-1])
			if !ok {
				end := ring[len(ring)-1]
				return nil, eris.Errorf("open ring ends at %.7f,%.7f", end[0], end[1])
			}
			used[j] = true
			seg := segs[j]
			if reverse {
				seg = reverseCoords(seg)
			}
			ring = append(ring, seg[1:]...)
		}
		rings = append(rings, ring)
	}
	return rings, nil
}

func ringClosed(ring []geom.Coord) bool {
	return len(ring) >= 4 && sameCoord(ring[0], ring[len(ring)-1])
}

func nextSegment(segs [][]geom.Coord, used []bool, end geom.Coord) (int, bool, bool) {
	for j, seg := range segs {
		if used[j] {
			continue
		}
		if sameCoord(seg[0], end) {
			return j, false, true
		}
		if sameCoord(seg[len(seg)-1], end) {
			return j, true, true
		}
	}
	return 0, false, false
}

// sameCoord compares exactly: split ways share their junction node, so the
// coordinates are bit-identical.
func sameCoord(a, b geom.Coord) bool {
	return a[0] == b[0] && a[1] == b[1]
}

func reverseCoords(seg []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, len(seg))
	for i, c := range seg {
		out[len(seg)-1-i] = c
	}
	return out
}

// coordInRing ray-casts p against a closed ring.
func coordInRing(p geom.Coord, ring []geom.Coord) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > p[1]) != (yj > p[1]) &&
			p[0] < (xj-xi)*(p[1]-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
