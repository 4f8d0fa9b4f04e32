package parada

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// abbreviations maps common street-name abbreviations to their expanded
// form. Matching is case-insensitive and token-bounded so "Avda." inside a
// longer word is left alone.
var abbreviations = map[string]string{
	"av.":    "Avenida",
	"av":     "Avenida",
	"avda.":  "Avenida",
	"avda":   "Avenida",
	"gral.":  "General",
	"gral":   "General",
	"pte.":   "Presidente",
	"dr.":    "Doctor",
	"dra.":   "Doctora",
	"ing.":   "Ingeniero",
	"cnel.":  "Coronel",
	"tte.":   "Teniente",
	"sta.":   "Santa",
	"sto.":   "Santo",
	"bv.":    "Boulevard",
	"bvard.": "Boulevard",
	"diag.":  "Diagonal",
	"cno.":   "Camino",
}

// NormalizeAddress builds the canonical full address for a row: street and
// number, cross-streets clause, locality, partido when distinct from the
// locality, province and country, joined by commas. It is a pure function of
// the row's field values and doubles as the geocode cache key, so the same
// fields always produce the same string.
func NormalizeAddress(row Row) string {
	var parts []string

	street := expandAbbreviations(collapseSpaces(row.Calle))
	altura := collapseSpaces(row.Altura)
	if street != "" {
		if altura != "" {
			parts = append(parts, street+" "+altura)
		} else {
			parts = append(parts, street)
		}
	}

	if entre := expandAbbreviations(collapseSpaces(row.EntreCalles)); entre != "" {
		if !strings.HasPrefix(strings.ToLower(entre), "entre ") {
			entre = "entre " + entre
		}
		parts = append(parts, entre)
	}

	localidad := collapseSpaces(row.Localidad)
	if localidad != "" {
		parts = append(parts, localidad)
	}

	if partido := collapseSpaces(row.Partido); partido != "" && !strings.EqualFold(partido, localidad) {
		parts = append(parts, partido)
	}

	if provincia := collapseSpaces(row.Provincia); provincia != "" {
		parts = append(parts, provincia)
	}

	if pais := collapseSpaces(row.Pais); pais != "" {
		parts = append(parts, pais)
	}

	// NFC keeps keys stable across spreadsheets that encode accents as
	// combining sequences.
	return norm.NFC.String(strings.Join(parts, ", "))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func expandAbbreviations(s string) string {
	if s == "" {
		return ""
	}
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		if full, ok := abbreviations[strings.ToLower(tok)]; ok {
			tokens[i] = full
		}
	}
	return strings.Join(tokens, " ")
}
