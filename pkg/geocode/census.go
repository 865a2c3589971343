package geocode

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	censusOneLineURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	censusBatchURL   = "https://geocoding.geo.census.gov/geocoder/locations/addressbatch"
	censusBenchmark  = "Public_AR_Current"

	// censusBatchMax is the most addresses the batch endpoint accepts per file.
	censusBatchMax = 10000
)

// CensusConfig configures the Census Bureau geocoder endpoints.
type CensusConfig struct {
	Benchmark  string
	OneLineURL string
	BatchURL   string
}

// censusOneLineResponse is the JSON response from the Census single-address API.
type censusOneLineResponse struct {
	Result struct {
		AddressMatches []censusAddressMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusAddressMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	AddressComponents struct {
		Zip string `json:"zip"`
	} `json:"addressComponents"`
	MatchedAddress string `json:"matchedAddress"`
}

// CensusProvider geocodes with the free Census Bureau geocoder. It needs no
// credentials and supports batch lookups.
type CensusProvider struct {
	cfg  CensusConfig
	http *transport
}

// NewCensusProvider creates a CensusProvider.
func NewCensusProvider(cfg CensusConfig, opts ...Option) *CensusProvider {
	if cfg.Benchmark == "" {
		cfg.Benchmark = censusBenchmark
	}
	if cfg.OneLineURL == "" {
		cfg.OneLineURL = censusOneLineURL
	}
	if cfg.BatchURL == "" {
		cfg.BatchURL = censusBatchURL
	}
	return &CensusProvider{cfg: cfg, http: newTransport("census", 50, opts)}
}

// Name implements Provider.
func (p *CensusProvider) Name() string { return "census" }

// Available implements Provider.
func (p *CensusProvider) Available() bool { return true }

// Geocode implements Provider using the one-line address endpoint.
func (p *CensusProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	oneLine := addr.Text()
	if oneLine == "" {
		return &Result{Matched: false, Source: "census"}, nil
	}

	params := url.Values{
		"address":   {oneLine},
		"benchmark": {p.cfg.Benchmark},
		"format":    {"json"},
	}
	reqURL := p.cfg.OneLineURL + "?" + params.Encode()

	body, err := p.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census lookup")
	}

	var censusResp censusOneLineResponse
	if err := json.Unmarshal(body, &censusResp); err != nil {
		return nil, eris.Wrap(err, "geocode: census parse response")
	}

	if len(censusResp.Result.AddressMatches) == 0 {
		return &Result{Matched: false, Source: "census"}, nil
	}

	match := censusResp.Result.AddressMatches[0]
	return &Result{
		Latitude:  match.Coordinates.Y,
		Longitude: match.Coordinates.X,
		Source:    "census",
		Quality:   QualityRooftop, // Census one-line matches are exact
		Matched:   true,
		ZipCode:   match.AddressComponents.Zip,
	}, nil
}

// BatchGeocode implements BatchProvider, splitting the input into files of at
// most 10,000 addresses.
func (p *CensusProvider) BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	results := make([]Result, 0, len(addrs))
	for start := 0; start < len(addrs); start += censusBatchMax {
		end := min(start+censusBatchMax, len(addrs))
		chunk, err := p.batch(ctx, addrs[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, chunk...)
	}
	return results, nil
}

func (p *CensusProvider) batch(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	// Batch input columns: id, street, city, state, zip.
	var file bytes.Buffer
	w := csv.NewWriter(&file)
	idToIdx := make(map[string]int, len(addrs))
	for i, addr := range addrs {
		id := strconv.Itoa(i)
		idToIdx[id] = i
		street := strings.Join(nonBlank(addr.Street, addr.Street2, addr.Secondary), " ")
		if err := w.Write([]string{id, street, addr.City, addr.State, addr.ZipCode}); err != nil {
			return nil, eris.Wrap(err, "geocode: census batch write csv")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch write csv")
	}

	body, err := p.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		if err := writer.WriteField("benchmark", p.cfg.Benchmark); err != nil {
			return nil, err
		}
		part, err := writer.CreateFormFile("addressFile", "addresses.csv")
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(file.Bytes()); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BatchURL, &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census batch")
	}

	return parseCensusBatchResponse(bytes.NewReader(body), idToIdx, len(addrs))
}

// parseCensusBatchResponse parses the Census batch CSV response.
// Format: "id","input address","Match","Exact/Non_Exact","matched address","lon,lat","tigerlineid","side"
func parseCensusBatchResponse(body io.Reader, idToIdx map[string]int, total int) ([]Result, error) {
	results := make([]Result, total)
	for i := range results {
		results[i] = Result{Matched: false, Source: "census"}
	}

	r := csv.NewReader(body)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "geocode: census batch parse response")
		}
		if len(fields) < 6 {
			continue
		}

		idx, ok := idToIdx[strings.TrimSpace(fields[0])]
		if !ok {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(fields[2]), "Match") {
			continue
		}

		lon, lat, parseErr := parseCensusCoords(fields[5])
		if parseErr != nil {
			continue
		}

		results[idx] = Result{
			Latitude:  lat,
			Longitude: lon,
			Source:    "census",
			Quality:   censusBatchQuality(fields[3]),
			Matched:   true,
		}
	}

	return results, nil
}

// censusBatchQuality maps Census batch match exactness to quality.
func censusBatchQuality(exactness string) string {
	if strings.EqualFold(strings.TrimSpace(exactness), "exact") {
		return QualityRooftop
	}
	return QualityRange
}

// parseCensusCoords parses "lon,lat" from Census batch response.
func parseCensusCoords(coords string) (lon, lat float64, err error) {
	parts := strings.SplitN(coords, ",", 2)
	if len(parts) != 2 {
		return 0, 0, eris.Errorf("geocode: invalid census coords %q", coords)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse census lon")
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse census lat")
	}
	return lon, lat, nil
}

func nonBlank(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
