package territory

import (
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// FeatureCollection encodes every territory as a GeoJSON polygon feature for
// the map layer.
func (r *Registry) FeatureCollection() ([]byte, error) {
	territories := r.List()

	fc := geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(territories)),
	}
	for _, t := range territories {
		coords := make([]geom.Coord, len(t.Ring))
		for i, p := range t.Ring {
			coords[i] = geom.Coord{p.Lng, p.Lat}
		}
		poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{coords})
		if err != nil {
			return nil, fmt.Errorf("building polygon for %s: %w", t.ID, err)
		}

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       t.ID,
			Geometry: poly,
			Properties: map[string]interface{}{
				"name":     t.Name,
				"color":    t.Color,
				"area":     t.Area,
				"overlaps": t.Overlaps,
			},
		})
	}

	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, fmt.Errorf("encoding geojson: %w", err)
	}
	return data, nil
}
