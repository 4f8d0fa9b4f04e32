package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
	PlaceID          string `json:"place_id"`
}

// outcomeKind tags the result of a single provider attempt.
type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRetry
	outcomeTerminal
)

// retryReason distinguishes quota pushback from transport failures: quota
// retries never count against the permanent-failure budget.
type retryReason int

const (
	retryQuota retryReason = iota
	retryNetwork
)

// attemptOutcome is the tagged per-attempt result consumed by the retry
// state machine in Geocode.
type attemptOutcome struct {
	kind   outcomeKind
	result *Result // set for outcomeSuccess and outcomeTerminal
	reason retryReason
}

// attempt issues exactly one provider call and classifies the response.
// Transport and decode failures are retryable; everything else maps onto the
// status taxonomy.
func (c *client) attempt(ctx context.Context, address string) (attemptOutcome, error) {
	params := url.Values{
		"address": {address},
		"key":     {c.apiKey},
	}
	if c.region != "" {
		params.Set("region", c.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleGeocodeURL+"?"+params.Encode(), nil)
	if err != nil {
		return attemptOutcome{}, eris.Wrap(err, "geocode: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return attemptOutcome{}, ctx.Err()
		}
		return attemptOutcome{kind: outcomeRetry, reason: retryNetwork}, nil
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return attemptOutcome{kind: outcomeRetry, reason: retryNetwork}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return attemptOutcome{kind: outcomeRetry, reason: retryNetwork}, nil
	}

	var googleResp googleGeocodeResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return attemptOutcome{kind: outcomeRetry, reason: retryNetwork}, nil
	}

	return classify(googleResp), nil
}

// classify maps a decoded provider response onto an attempt outcome.
func classify(resp googleGeocodeResponse) attemptOutcome {
	switch resp.Status {
	case "OK":
		if len(resp.Results) == 0 {
			return attemptOutcome{kind: outcomeTerminal, result: &Result{Status: StatusZeroResults}}
		}
		best := resp.Results[0]
		lat, lng := best.Geometry.Location.Lat, best.Geometry.Location.Lng
		status := StatusOK
		if !strings.EqualFold(best.Geometry.LocationType, "ROOFTOP") {
			status = StatusBajaPrecision
		}
		return attemptOutcome{kind: outcomeSuccess, result: &Result{
			Lat:              &lat,
			Lng:              &lng,
			FormattedAddress: best.FormattedAddress,
			PlaceID:          best.PlaceID,
			Accuracy:         best.Geometry.LocationType,
			Status:           status,
		}}

	case "ZERO_RESULTS":
		return attemptOutcome{kind: outcomeTerminal, result: &Result{Status: StatusZeroResults}}

	case "OVER_QUERY_LIMIT":
		return attemptOutcome{kind: outcomeRetry, reason: retryQuota}

	case "REQUEST_DENIED":
		return attemptOutcome{kind: outcomeTerminal, result: &Result{Status: StatusRequestDenied}}

	default:
		if resp.ErrorMessage != "" {
			return attemptOutcome{kind: outcomeTerminal, result: &Result{Status: StatusError}}
		}
		// Unrecognized status: record it verbatim.
		return attemptOutcome{kind: outcomeTerminal, result: &Result{Status: resp.Status}}
	}
}
