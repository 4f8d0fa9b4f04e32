package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srvURL string, opts ...Option) *client {
	base := []Option{
		WithHTTPClient(newRewriteClient(srvURL, googleGeocodeURL)),
		WithBackoffBase(1), // nanosecond backoff keeps retry tests fast
	}
	return NewClient("test-key", append(base, opts...)...).(*client)
}

func TestAttempt_Rooftop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{
				"geometry": {
					"location": {"lat": -34.9205, "lng": -57.9536},
					"location_type": "ROOFTOP"
				},
				"formatted_address": "Avenida 7 1234, La Plata, Provincia de Buenos Aires, Argentina",
				"place_id": "ChIJtest"
			}]
		}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	outcome, err := c.attempt(context.Background(), "Avenida 7 1234, La Plata")
	require.NoError(t, err)

	assert.Equal(t, outcomeSuccess, outcome.kind)
	require.NotNil(t, outcome.result)
	assert.Equal(t, StatusOK, outcome.result.Status)
	assert.True(t, outcome.result.Located())
	assert.InDelta(t, -34.9205, *outcome.result.Lat, 0.0001)
	assert.InDelta(t, -57.9536, *outcome.result.Lng, 0.0001)
	assert.Equal(t, "ChIJtest", outcome.result.PlaceID)
	assert.Equal(t, "ROOFTOP", outcome.result.Accuracy)
}

func TestAttempt_InterpolatedIsLowPrecision(t *testing.T) {
	for _, locType := range []string{"RANGE_INTERPOLATED", "GEOMETRIC_CENTER", "APPROXIMATE"} {
		t.Run(locType, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{
					"status": "OK",
					"results": [{
						"geometry": {
							"location": {"lat": -34.60, "lng": -58.38},
							"location_type": "`+locType+`"
						}
					}]
				}`)
			}))
			defer srv.Close()

			c := newTestClient(srv.URL)
			outcome, err := c.attempt(context.Background(), "algún lugar")
			require.NoError(t, err)

			assert.Equal(t, outcomeSuccess, outcome.kind)
			assert.Equal(t, StatusBajaPrecision, outcome.result.Status)
			assert.True(t, outcome.result.Located())
		})
	}
}

func TestAttempt_SendsAddressKeyAndRegion(t *testing.T) {
	var gotAddress, gotKey, gotRegion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		gotKey = r.URL.Query().Get("key")
		gotRegion = r.URL.Query().Get("region")
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, WithRegion("ar"))
	_, err := c.attempt(context.Background(), "Calle Falsa 123, Springfield")
	require.NoError(t, err)

	assert.Equal(t, "Calle Falsa 123, Springfield", gotAddress)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "ar", gotRegion)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		resp       googleGeocodeResponse
		wantKind   outcomeKind
		wantStatus string
		wantReason retryReason
	}{
		{
			name:       "zero results",
			resp:       googleGeocodeResponse{Status: "ZERO_RESULTS"},
			wantKind:   outcomeTerminal,
			wantStatus: StatusZeroResults,
		},
		{
			name:       "ok with empty results treated as no match",
			resp:       googleGeocodeResponse{Status: "OK"},
			wantKind:   outcomeTerminal,
			wantStatus: StatusZeroResults,
		},
		{
			name:       "quota exceeded retries",
			resp:       googleGeocodeResponse{Status: "OVER_QUERY_LIMIT"},
			wantKind:   outcomeRetry,
			wantReason: retryQuota,
		},
		{
			name:       "request denied is terminal",
			resp:       googleGeocodeResponse{Status: "REQUEST_DENIED"},
			wantKind:   outcomeTerminal,
			wantStatus: StatusRequestDenied,
		},
		{
			name:       "provider error message",
			resp:       googleGeocodeResponse{Status: "UNKNOWN_ERROR", ErrorMessage: "backend error"},
			wantKind:   outcomeTerminal,
			wantStatus: StatusError,
		},
		{
			name:       "unrecognized status passes through raw",
			resp:       googleGeocodeResponse{Status: "INVALID_REQUEST"},
			wantKind:   outcomeTerminal,
			wantStatus: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := classify(tt.resp)
			assert.Equal(t, tt.wantKind, outcome.kind)
			if tt.wantKind == outcomeRetry {
				assert.Equal(t, tt.wantReason, outcome.reason)
				return
			}
			require.NotNil(t, outcome.result)
			assert.Equal(t, tt.wantStatus, outcome.result.Status)
			assert.False(t, outcome.result.Located())
		})
	}
}

func TestAttempt_HTTPErrorIsRetryableNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	outcome, err := c.attempt(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, outcomeRetry, outcome.kind)
	assert.Equal(t, retryNetwork, outcome.reason)
}

func TestAttempt_MalformedBodyIsRetryableNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	outcome, err := c.attempt(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, outcomeRetry, outcome.kind)
	assert.Equal(t, retryNetwork, outcome.reason)
}
