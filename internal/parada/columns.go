package parada

import "strings"

// Field identifies a logical spreadsheet column.
type Field int

// Logical fields recognized in the header row.
const (
	FieldCodigoParada Field = iota
	FieldEntreCalles
	FieldCalle
	FieldAltura
	FieldLocalidad
	FieldPartido
	FieldProvincia
	FieldPais
	FieldReferencia
)

// fieldSynonyms lists, per logical field, the case-insensitive substrings
// that identify a header cell. Evaluation order matters: FieldCodigoParada
// must claim "nro de parada" before FieldAltura sees "nro", and
// FieldEntreCalles must claim "entre calles" before FieldCalle sees "calle".
var fieldSynonyms = []struct {
	field    Field
	patterns []string
}{
	{FieldCodigoParada, []string{"codigo", "código", "parada", "interno"}},
	{FieldEntreCalles, []string{"entre"}},
	{FieldCalle, []string{"calle", "direccion", "dirección"}},
	{FieldAltura, []string{"altura", "numero", "número", "nro"}},
	{FieldLocalidad, []string{"localidad", "ciudad"}},
	{FieldPartido, []string{"partido", "municipio"}},
	{FieldProvincia, []string{"provincia"}},
	{FieldPais, []string{"pais", "país"}},
	{FieldReferencia, []string{"referencia", "observacion", "observación"}},
}

// ColumnMap maps logical fields to column indexes in the header row.
type ColumnMap map[Field]int

// DetectColumns matches header cells against the synonym table. The first
// column matching a field wins; later columns for the same field are
// ignored, as are columns matching nothing.
func DetectColumns(header []string) ColumnMap {
	cols := make(ColumnMap)
	for idx, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		if name == "" {
			continue
		}
		for _, fs := range fieldSynonyms {
			if _, taken := cols[fs.field]; taken {
				continue
			}
			if matchesAny(name, fs.patterns) {
				cols[fs.field] = idx
				break
			}
		}
	}
	return cols
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// get returns the trimmed cell value for a logical field, or "" when the
// field was not detected or the record is short.
func (c ColumnMap) get(record []string, f Field) string {
	idx, ok := c[f]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
