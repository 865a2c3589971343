package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	smartyStreetURL  = "https://us-street.api.smarty.com/street-address"
	smartyExtractURL = "https://us-extract.api.smarty.com/"
)

// SmartyConfig holds SmartyStreets credentials and lookup settings.
type SmartyConfig struct {
	AuthID     string
	AuthToken  string
	StreetURL  string // default: US Street API
	ExtractURL string // default: US Extract API
	Candidates int    // default: 1
	Match      string // default: "invalid", the most permissive strategy
}

// smartyCandidate is one entry of a US Street API response, and of the
// api_output list in a US Extract API response.
type smartyCandidate struct {
	DeliveryLine1 string `json:"delivery_line_1"`
	Components    struct {
		ZipCode   string `json:"zipcode"`
		Plus4Code string `json:"plus4_code"`
	} `json:"components"`
	Metadata struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Precision string   `json:"precision"`
	} `json:"metadata"`
}

type smartyExtractResponse struct {
	Addresses []struct {
		Text       string            `json:"text"`
		Verified   bool              `json:"verified"`
		Candidates []smartyCandidate `json:"api_output"`
	} `json:"addresses"`
}

// SmartyProvider geocodes with the SmartyStreets US Street API, falling back to
// the US Extract API with the address as free text when the street lookup finds
// no candidate.
type SmartyProvider struct {
	cfg  SmartyConfig
	http *transport
}

// NewSmartyProvider creates a SmartyProvider.
func NewSmartyProvider(cfg SmartyConfig, opts ...Option) *SmartyProvider {
	if cfg.StreetURL == "" {
		cfg.StreetURL = smartyStreetURL
	}
	if cfg.ExtractURL == "" {
		cfg.ExtractURL = smartyExtractURL
	}
	if cfg.Candidates <= 0 {
		cfg.Candidates = 1
	}
	if cfg.Match == "" {
		cfg.Match = "invalid"
	}
	return &SmartyProvider{cfg: cfg, http: newTransport("smarty", 10, opts)}
}

// Name implements Provider.
func (p *SmartyProvider) Name() string { return "smarty" }

// Available implements Provider.
func (p *SmartyProvider) Available() bool {
	return p.cfg.AuthID != "" && p.cfg.AuthToken != ""
}

// Geocode implements Provider.
func (p *SmartyProvider) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	log := zap.L().With(zap.String("component", "geocode.smarty"))

	if strings.TrimSpace(addr.Street) == "" {
		log.Warn("no street given, street lookup skipped")
	} else {
		candidates, err := p.lookupStreet(ctx, addr)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			return candidateResult(candidates[0]), nil
		}
	}

	text := addr.Text()
	if text == "" {
		return &Result{Matched: false, Source: "smarty"}, nil
	}

	log.Debug("street lookup found no candidate, extracting from text")
	candidates, err := p.extract(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		return candidateResult(candidates[0]), nil
	}

	log.Warn("could not look up address")
	return &Result{Matched: false, Source: "smarty"}, nil
}

func (p *SmartyProvider) authParams() url.Values {
	return url.Values{
		"auth-id":    {p.cfg.AuthID},
		"auth-token": {p.cfg.AuthToken},
	}
}

func (p *SmartyProvider) lookupStreet(ctx context.Context, addr AddressInput) ([]smartyCandidate, error) {
	params := p.authParams()
	for k, v := range map[string]string{
		"street":    addr.Street,
		"street2":   addr.Street2,
		"secondary": addr.Secondary,
		"city":      addr.City,
		"state":     addr.State,
		"zipcode":   addr.ZipCode,
	} {
		if v != "" {
			params.Set(k, v)
		}
	}
	params.Set("candidates", strconv.Itoa(p.cfg.Candidates))
	params.Set("match", p.cfg.Match)

	reqURL := p.cfg.StreetURL + "?" + params.Encode()
	body, err := p.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return nil, eris.Wrap(err, "geocode: smarty street lookup")
	}

	var candidates []smartyCandidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		return nil, eris.Wrap(err, "geocode: smarty parse street response")
	}
	return candidates, nil
}

func (p *SmartyProvider) extract(ctx context.Context, text string) ([]smartyCandidate, error) {
	reqURL := p.cfg.ExtractURL + "?" + p.authParams().Encode()
	body, err := p.http.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(text))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		return req, nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "geocode: smarty extract")
	}

	var resp smartyExtractResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: smarty parse extract response")
	}
	for _, a := range resp.Addresses {
		if len(a.Candidates) > 0 {
			return a.Candidates, nil
		}
	}
	return nil, nil
}

// candidateResult converts the first candidate into a Result. A candidate
// without coordinates (possible with match=invalid) is unmatched.
func candidateResult(c smartyCandidate) *Result {
	r := &Result{
		Source:  "smarty",
		ZipCode: c.Components.ZipCode,
		Plus4:   c.Components.Plus4Code,
	}
	if c.Metadata.Latitude == nil || c.Metadata.Longitude == nil {
		return r
	}
	r.Latitude = *c.Metadata.Latitude
	r.Longitude = *c.Metadata.Longitude
	r.Quality = smartyPrecisionToQuality(c.Metadata.Precision)
	r.Matched = true
	return r
}

// smartyPrecisionToQuality maps metadata.precision to our quality taxonomy.
func smartyPrecisionToQuality(precision string) string {
	switch strings.ToLower(precision) {
	case "rooftop", "parcel", "structure":
		return QualityRooftop
	case "zip9", "zip8", "zip7":
		return QualityRange
	case "zip6", "zip5":
		return QualityCentroid
	default:
		return QualityApproximate
	}
}
