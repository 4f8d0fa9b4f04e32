package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/transporte-ba/paradas-cli/internal/parada"
	"github.com/transporte-ba/paradas-cli/pkg/geocode"
)

// RowResult pairs an input row with its geocoding outcome.
type RowResult struct {
	Row         parada.Row
	FullAddress string
	Result      *geocode.Result
	CacheHit    bool
}

// csvColumns is the ordered output header: every input field, the normalized
// full address, then the provider metadata.
var csvColumns = []string{
	"codigo_parada",
	"calle",
	"altura",
	"entre_calles",
	"localidad",
	"partido",
	"provincia",
	"pais",
	"referencia",
	"direccion_completa",
	"lat",
	"lng",
	"direccion_formateada",
	"place_id",
	"precision",
	"status",
}

// BuildCSV renders the full result set as a UTF-8 CSV document with standard
// quoting. Absent coordinates render as empty strings.
func BuildCSV(results []RowResult) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	_ = w.Write(csvColumns)
	for _, rr := range results {
		_ = w.Write([]string{
			rr.Row.CodigoParada,
			rr.Row.Calle,
			rr.Row.Altura,
			rr.Row.EntreCalles,
			rr.Row.Localidad,
			rr.Row.Partido,
			rr.Row.Provincia,
			rr.Row.Pais,
			rr.Row.Referencia,
			rr.FullAddress,
			formatCoord(rr.Result.Lat),
			formatCoord(rr.Result.Lng),
			rr.Result.FormattedAddress,
			rr.Result.PlaceID,
			rr.Result.Accuracy,
			rr.Result.Status,
		})
	}
	w.Flush()

	return sb.String()
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Feature is a GeoJSON feature; Geometry is a raw message so unresolved rows
// serialize as a literal null geometry rather than a bogus [0,0] point.
type Feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// FeatureCollection is a standard GeoJSON FeatureCollection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

var nullGeometry = json.RawMessage("null")

// BuildFeatureCollection renders one feature per result. Coordinates are
// ordered [lng, lat]; all row fields and provider metadata are copied into
// properties verbatim.
func BuildFeatureCollection(results []RowResult) (*FeatureCollection, error) {
	fc := &FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(results)),
	}

	for _, rr := range results {
		geometry := nullGeometry
		if rr.Result.Located() {
			point := geom.NewPointFlat(geom.XY, []float64{*rr.Result.Lng, *rr.Result.Lat})
			encoded, err := geojson.Marshal(point)
			if err != nil {
				return nil, err
			}
			geometry = encoded
		}

		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			Geometry: geometry,
			Properties: map[string]any{
				"codigo_parada":        rr.Row.CodigoParada,
				"calle":                rr.Row.Calle,
				"altura":               rr.Row.Altura,
				"entre_calles":         rr.Row.EntreCalles,
				"localidad":            rr.Row.Localidad,
				"partido":              rr.Row.Partido,
				"provincia":            rr.Row.Provincia,
				"pais":                 rr.Row.Pais,
				"referencia":           rr.Row.Referencia,
				"direccion_completa":   rr.FullAddress,
				"direccion_formateada": rr.Result.FormattedAddress,
				"place_id":             rr.Result.PlaceID,
				"precision":            rr.Result.Accuracy,
				"status":               rr.Result.Status,
			},
		})
	}

	return fc, nil
}
