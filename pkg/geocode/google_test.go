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

func TestGoogleGeocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "500 PINE ST, SEATTLE, WA", r.URL.Query().Get("address"))
		_, _ = io.WriteString(w, `{
			"status": "OK",
			"results": [{
				"geometry": {"location": {"lat": 47.6122, "lng": -122.3365}, "location_type": "ROOFTOP"},
				"address_components": [
					{"short_name": "98101", "types": ["postal_code"]},
					{"short_name": "1820", "types": ["postal_code_suffix"]}
				]
			}]
		}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider("test-key", "", testOpts(WithHTTPClient(newRewriteClient(srv.URL, googleGeocodeURL)))...)
	result, err := p.Geocode(context.Background(), AddressInput{Street: "500 PINE ST", City: "SEATTLE", State: "WA"})
	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "google", result.Source)
	assert.Equal(t, QualityRooftop, result.Quality)
	assert.InDelta(t, 47.6122, result.Latitude, 0.0001)
	assert.Equal(t, "98101", result.ZipCode)
	assert.Equal(t, "1820", result.Plus4)
}

func TestGoogleGeocode_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status": "ZERO_RESULTS", "results": []}`)
	}))
	defer srv.Close()

	p := NewGoogleProvider("k", srv.URL, testOpts()...)
	result, err := p.Geocode(context.Background(), AddressInput{Street: "NOWHERE"})
	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestGoogleGeocode_ErrorStatuses(t *testing.T) {
	for _, status := range []string{"OVER_QUERY_LIMIT", "REQUEST_DENIED"} {
		t.Run(status, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"status": "`+status+`"}`)
			}))
			defer srv.Close()

			p := NewGoogleProvider("k", srv.URL, testOpts()...)
			_, err := p.Geocode(context.Background(), AddressInput{Street: "1 MAIN ST"})
			require.Error(t, err)
		})
	}
}

func TestGoogleGeocode_NoKey(t *testing.T) {
	p := NewGoogleProvider("", "", testOpts()...)
	assert.False(t, p.Available())
	_, err := p.Geocode(context.Background(), AddressInput{Street: "1 MAIN ST"})
	require.Error(t, err)
}

func TestGoogleLocationTypeToQuality(t *testing.T) {
	assert.Equal(t, QualityRooftop, googleLocationTypeToQuality("rooftop"))
	assert.Equal(t, QualityRange, googleLocationTypeToQuality("RANGE_INTERPOLATED"))
	assert.Equal(t, QualityCentroid, googleLocationTypeToQuality("GEOMETRIC_CENTER"))
	assert.Equal(t, QualityApproximate, googleLocationTypeToQuality("APPROXIMATE"))
	assert.Equal(t, QualityApproximate, googleLocationTypeToQuality(""))
}
