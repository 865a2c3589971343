package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/deidentify-cli/internal/address"
	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

// AddressRequest is one address to look up.
type AddressRequest struct {
	Street    string `json:"street"`
	Street2   string `json:"street2"`
	Secondary string `json:"secondary"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipcode"`
}

// input standardizes the request the same way file records are.
func (a AddressRequest) input() geocode.AddressInput {
	return geocode.AddressInput{
		Street:    address.Normalize(a.Street),
		Street2:   address.Normalize(a.Street2),
		Secondary: address.Normalize(a.Secondary),
		City:      address.Normalize(a.City),
		State:     address.Normalize(a.State),
		ZipCode:   address.Normalize(a.ZipCode),
	}
}

// TractResponse is the lookup result for one address.
type TractResponse struct {
	CensusTract string `json:"census_tract"`
	Matched     bool   `json:"matched"`
	Source      string `json:"source,omitempty"`
}

// BatchRequest carries several addresses.
type BatchRequest struct {
	Addresses []AddressRequest `json:"addresses"`
}

// BatchResponse holds results in request order.
type BatchResponse struct {
	Results []TractResponse `json:"results"`
}

const maxBodyBytes = 4 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTract(w http.ResponseWriter, r *http.Request) {
	var req AddressRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	addr := req.input()
	if addr.IsZero() {
		writeError(w, http.StatusBadRequest, "address is empty")
		return
	}

	geoid, res, err := s.lookup.Lookup(r.Context(), addr)
	if err != nil {
		s.log.Error("tract lookup failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, TractResponse{CensusTract: geoid, Matched: res.Matched, Source: res.Source})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch {
	case len(req.Addresses) == 0:
		writeError(w, http.StatusBadRequest, "addresses is empty")
		return
	case len(req.Addresses) > MaxBatch:
		writeError(w, http.StatusRequestEntityTooLarge, "too many addresses")
		return
	}

	// Blank addresses are answered without a geocoder call.
	resp := BatchResponse{Results: make([]TractResponse, len(req.Addresses))}
	var addrs []geocode.AddressInput
	var owners []int
	for i, a := range req.Addresses {
		addr := a.input()
		if addr.IsZero() {
			continue
		}
		addrs = append(addrs, addr)
		owners = append(owners, i)
	}

	if len(addrs) > 0 {
		geoids, results, err := s.lookup.LookupBatch(r.Context(), addrs)
		if err != nil {
			s.log.Error("batch tract lookup failed",
				zap.String("request_id", RequestID(r.Context())),
				zap.Int("count", len(addrs)),
				zap.Error(err),
			)
			writeError(w, http.StatusBadGateway, "lookup failed")
			return
		}
		for j, i := range owners {
			resp.Results[i] = TractResponse{CensusTract: geoids[j], Matched: results[j].Matched, Source: results[j].Source}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
