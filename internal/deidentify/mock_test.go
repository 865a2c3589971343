package deidentify

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

// --- Geocoder Mock ---

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, addr geocode.AddressInput) (*geocode.Result, error) {
	args := m.Called(ctx, addr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Result), args.Error(1)
}

func (m *mockGeocoder) BatchGeocode(ctx context.Context, addrs []geocode.AddressInput) ([]geocode.Result, error) {
	args := m.Called(ctx, addrs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]geocode.Result), args.Error(1)
}

// --- Locator Mock ---

type mockLocator struct {
	mock.Mock
}

func (m *mockLocator) Locate(ctx context.Context, lat, lng float64) (string, error) {
	args := m.Called(ctx, lat, lng)
	return args.String(0), args.Error(1)
}

func matched(lat, lng float64) geocode.Result {
	return geocode.Result{Latitude: lat, Longitude: lng, Matched: true, Source: "smarty"}
}
