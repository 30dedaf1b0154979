// Package detection applies the zone-polygon and per-stream object-label
// gates that decide which inference results reach recording and event
// callbacks.
package detection

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nvrengine/engine/internal/database"
	"github.com/nvrengine/engine/internal/ncerrors"
)

// zoneCacheSize bounds the number of streams whose zone list is cached.
// Zones are read on every detection and change rarely, so a modest LRU
// spares the catalog a query per frame on the hot path.
const zoneCacheSize = 256

// Gate filters detections against a stream's configured zones and object
// allow/deny list.
type Gate struct {
	db    *database.DB
	zones *lru.Cache[string, []database.DetectionZone]
}

// New returns a Gate backed by db.
func New(db *database.DB) *Gate {
	cache, _ := lru.New[string, []database.DetectionZone](zoneCacheSize)
	return &Gate{db: db, zones: cache}
}

// InvalidateZones evicts stream's cached zone list, forcing the next
// FilterByZones call to re-read the catalog. Callers that write new zones
// via database.SaveDetectionZones must call this afterward.
func (g *Gate) InvalidateZones(stream string) {
	g.zones.Remove(stream)
}

func (g *Gate) zonesForStream(ctx context.Context, stream string) ([]database.DetectionZone, error) {
	if cached, ok := g.zones.Get(stream); ok {
		return cached, nil
	}
	zones, err := g.db.GetDetectionZones(ctx, stream)
	if err != nil {
		return nil, err
	}
	g.zones.Add(stream, zones)
	return zones, nil
}

// FilterByZones keeps, in place, only the detections whose center falls
// inside at least one enabled zone for stream that also matches the zone's
// class allowlist and minimum confidence. With no zones configured for the
// stream, every detection is kept. A nil result or an unknown stream
// returns an error and leaves result untouched.
func (g *Gate) FilterByZones(ctx context.Context, stream string, result *[]database.Detection) error {
	if result == nil {
		return fmt.Errorf("filter by zones: %w", ncerrors.InvalidArgument)
	}

	if _, err := g.db.GetStreamConfigByName(ctx, stream); err != nil {
		return fmt.Errorf("filter by zones: stream %q: %w", stream, ncerrors.NotFound)
	}

	zones, err := g.zonesForStream(ctx, stream)
	if err != nil {
		return fmt.Errorf("filter by zones: %w", err)
	}

	enabled := make([]database.DetectionZone, 0, len(zones))
	for _, z := range zones {
		if z.Enabled {
			enabled = append(enabled, z)
		}
	}
	if len(zones) == 0 {
		return nil
	}

	kept := (*result)[:0:0]
	for _, d := range *result {
		if matchesAnyZone(d, enabled) {
			kept = append(kept, d)
		}
	}
	*result = kept
	return nil
}

func matchesAnyZone(d database.Detection, zones []database.DetectionZone) bool {
	cx, cy := d.X+d.W/2, d.Y+d.H/2
	for _, z := range zones {
		if d.Confidence < z.MinConfidence {
			continue
		}
		if !classAllowed(z.ClassAllowlist, d.Label) {
			continue
		}
		if pointInPolygon(cx, cy, z.Vertices) {
			return true
		}
	}
	return false
}

func classAllowed(allowlist, label string) bool {
	allowlist = strings.TrimSpace(allowlist)
	if allowlist == "" {
		return true
	}
	for _, c := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(c) == label {
			return true
		}
	}
	return false
}

// pointInPolygon applies the even-odd winding rule. Vertices with fewer
// than 3 points never contain a point.
func pointInPolygon(x, y float64, vertices []database.Point) bool {
	if len(vertices) < 3 {
		return false
	}
	inside := false
	n := len(vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := vertices[i], vertices[j]
		if (vi.Y > y) != (vj.Y > y) {
			xIntersect := (vj.X-vi.X)*(y-vi.Y)/(vj.Y-vi.Y) + vi.X
			if x < xIntersect {
				inside = !inside
			}
		}
	}
	return inside
}

// FilterByStreamObjects applies the stream's detection_object_filter mode
// to result in place. Unknown streams and modes other than include/exclude
// are treated as "no filter" rather than an error.
func (g *Gate) FilterByStreamObjects(ctx context.Context, stream string, result *[]database.Detection) error {
	if result == nil {
		return fmt.Errorf("filter by stream objects: %w", ncerrors.InvalidArgument)
	}

	cfg, err := g.db.GetStreamConfigByName(ctx, stream)
	if err != nil {
		return nil
	}

	switch cfg.ObjectFilterMode {
	case database.ObjectFilterInclude:
		allow := splitList(cfg.ObjectFilterList)
		*result = filterLabels(*result, func(label string) bool { return allow[label] })
	case database.ObjectFilterExclude:
		deny := splitList(cfg.ObjectFilterList)
		*result = filterLabels(*result, func(label string) bool { return !deny[label] })
	default:
		// none, or absent: no filtering.
	}
	return nil
}

func splitList(csv string) map[string]bool {
	set := make(map[string]bool)
	for _, c := range strings.Split(csv, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			set[c] = true
		}
	}
	return set
}

func filterLabels(in []database.Detection, keep func(label string) bool) []database.Detection {
	out := in[:0:0]
	for _, d := range in {
		if keep(d.Label) {
			out = append(out, d)
		}
	}
	return out
}
