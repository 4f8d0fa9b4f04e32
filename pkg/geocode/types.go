// Package geocode resolves free-text addresses to coordinates through the
// Google Geocoding API, with bounded retry/backoff and a persistent
// file-backed result cache.
package geocode

// Row statuses. The provider's own vocabulary (OK, ZERO_RESULTS,
// REQUEST_DENIED) is kept where it applies; unrecognized provider statuses
// pass through as-is.
const (
	StatusOK            = "OK"
	StatusBajaPrecision = "baja_precision"
	StatusZeroResults   = "ZERO_RESULTS"
	StatusRequestDenied = "REQUEST_DENIED"
	StatusError         = "ERROR"
	StatusNetworkError  = "NETWORK_ERROR"
	StatusInsuficiente  = "insuficiente"
	StatusPending       = "pending"
)

// Result is the outcome of resolving one normalized address. Lat and Lng are
// both set or both nil; they are set exactly when Status is OK or
// baja_precision.
type Result struct {
	Lat              *float64 `json:"lat"`
	Lng              *float64 `json:"lng"`
	FormattedAddress string   `json:"direccion_formateada,omitempty"`
	PlaceID          string   `json:"place_id,omitempty"`
	Accuracy         string   `json:"precision,omitempty"`
	Status           string   `json:"status"`
	Retries          int      `json:"reintentos"`
}

// Located reports whether the result carries coordinates.
func (r *Result) Located() bool {
	return r.Lat != nil && r.Lng != nil
}

// Entry is the persisted form of a Result, keyed by normalized address.
type Entry struct {
	Lat              *float64 `json:"lat"`
	Lng              *float64 `json:"lng"`
	FormattedAddress string   `json:"direccion_formateada,omitempty"`
	PlaceID          string   `json:"place_id,omitempty"`
	Accuracy         string   `json:"precision,omitempty"`
	Status           string   `json:"status"`
}

// EntryOf strips a Result down to its persisted form.
func EntryOf(r *Result) Entry {
	return Entry{
		Lat:              r.Lat,
		Lng:              r.Lng,
		FormattedAddress: r.FormattedAddress,
		PlaceID:          r.PlaceID,
		Accuracy:         r.Accuracy,
		Status:           r.Status,
	}
}

// ResultOf rebuilds a Result from a cached entry.
func ResultOf(e Entry) *Result {
	return &Result{
		Lat:              e.Lat,
		Lng:              e.Lng,
		FormattedAddress: e.FormattedAddress,
		PlaceID:          e.PlaceID,
		Accuracy:         e.Accuracy,
		Status:           e.Status,
	}
}
