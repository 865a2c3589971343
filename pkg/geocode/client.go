// Package geocode turns street addresses into coordinates through
// SmartyStreets (primary), the Census Bureau geocoder or Google, with a shared
// response cache in front of them.
package geocode

import (
	"context"
	"strings"
)

// Client geocodes addresses.
type Client interface {
	// Geocode geocodes a single address.
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)

	// BatchGeocode geocodes multiple addresses. Results are positional.
	BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error)
}

// AddressInput is a standardized address split into the fields the US Street
// API accepts. Street alone may carry a whole free-text address.
type AddressInput struct {
	ID        string `json:"-"` // Optional identifier for batch correlation
	Street    string `json:"street"`
	Street2   string `json:"street2"`
	Secondary string `json:"secondary"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipcode"`
}

// Text joins the non-empty fields with ", " in street, street2, secondary,
// city, state, zipcode order.
func (a AddressInput) Text() string {
	parts := []string{a.Street, a.Street2, a.Secondary, a.City, a.State, a.ZipCode}
	nonEmpty := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// IsZero reports whether every address field is blank.
func (a AddressInput) IsZero() bool {
	return a.Text() == ""
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Source    string  `json:"source"`            // provider name
	Quality   string  `json:"quality,omitempty"` // one of the Quality* constants
	Matched   bool    `json:"matched"`
	ZipCode   string  `json:"zipcode,omitempty"`
	Plus4     string  `json:"plus4,omitempty"`
}

// Match quality levels, best first.
const (
	QualityRooftop     = "rooftop"
	QualityRange       = "range"
	QualityCentroid    = "centroid"
	QualityApproximate = "approximate"
)

// Provider is a single geocoding backend.
type Provider interface {
	Name() string
	Available() bool
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
}

// BatchProvider is a Provider with a native multi-address endpoint.
type BatchProvider interface {
	Provider
	BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error)
}
