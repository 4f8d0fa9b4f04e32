// Package parada parses transit-stop spreadsheets into rows and builds the
// normalized address used both for display and as the geocode cache key.
package parada

import (
	"fmt"
	"strings"
)

// Row is one input record from the spreadsheet. Constructed once at parse
// time and immutable afterwards.
type Row struct {
	Index        int    `json:"fila"`
	CodigoParada string `json:"codigo_parada"`
	Calle        string `json:"calle"`
	Altura       string `json:"altura"`
	EntreCalles  string `json:"entre_calles"`
	Localidad    string `json:"localidad"`
	Partido      string `json:"partido"`
	Provincia    string `json:"provincia"`
	Pais         string `json:"pais"`
	Referencia   string `json:"referencia"`
}

// ParseOptions configures row construction defaults.
type ParseOptions struct {
	DefaultPais       string // applied when the country column is absent or blank
	FallbackLocalidad string // applied when the locality column is absent or blank
}

// ParseRows converts raw spreadsheet records (header row first) into Rows.
// Unrecognized columns are ignored; missing optional columns default to the
// empty string or the configured fallbacks.
func ParseRows(records [][]string, opts ParseOptions) []Row {
	if len(records) == 0 {
		return nil
	}

	cols := DetectColumns(records[0])

	rows := make([]Row, 0, len(records)-1)
	for i, record := range records[1:] {
		row := Row{
			Index:        i + 1,
			CodigoParada: cols.get(record, FieldCodigoParada),
			Calle:        cols.get(record, FieldCalle),
			Altura:       cols.get(record, FieldAltura),
			EntreCalles:  cols.get(record, FieldEntreCalles),
			Localidad:    cols.get(record, FieldLocalidad),
			Partido:      cols.get(record, FieldPartido),
			Provincia:    cols.get(record, FieldProvincia),
			Pais:         cols.get(record, FieldPais),
			Referencia:   cols.get(record, FieldReferencia),
		}

		if row.CodigoParada == "" {
			row.CodigoParada = fmt.Sprintf("P%d", row.Index)
		}
		if row.Localidad == "" {
			row.Localidad = strings.TrimSpace(opts.FallbackLocalidad)
		}
		if row.Pais == "" {
			row.Pais = strings.TrimSpace(opts.DefaultPais)
		}

		rows = append(rows, row)
	}

	return rows
}

// Insufficient reports whether the row lacks the data needed to attempt a
// geocode: no street, or a street with neither house number nor
// cross-streets. Such rows must never reach the provider client.
func Insufficient(row Row) bool {
	if strings.TrimSpace(row.Calle) == "" {
		return true
	}
	return strings.TrimSpace(row.Altura) == "" && strings.TrimSpace(row.EntreCalles) == ""
}
