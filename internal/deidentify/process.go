package deidentify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deidentify-cli/internal/address"
	"github.com/sells-group/deidentify-cli/internal/monitoring"
	"github.com/sells-group/deidentify-cli/internal/tract"
	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

// TractColumn is the column that receives the tract GEOID.
const TractColumn = "census_tract"

// Processor annotates records with their Census tract.
type Processor struct {
	geocoder geocode.Client
	locator  tract.Locator
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewProcessor returns a Processor. metrics may be nil.
func NewProcessor(geocoder geocode.Client, locator tract.Locator, metrics *monitoring.Metrics) *Processor {
	return &Processor{
		geocoder: geocoder,
		locator:  locator,
		metrics:  metrics,
		log:      zap.L().With(zap.String("component", "deidentify")),
	}
}

// TractOptions controls Annotate.
type TractOptions struct {
	Mapping     address.Mapping
	KeepZipCode bool
}

// Summary counts the work done by Annotate.
type Summary struct {
	Records   int
	Addresses int
	Geocoded  int
	Located   int
	CacheHits int64
	Elapsed   time.Duration
}

type cascadeStats interface {
	Stats() geocode.CascadeStats
}

// Annotate geocodes the mapped address of every record, looks up its tract,
// removes the identifying address columns and adds TractColumn. Records whose
// address could not be geocoded or located get an empty tract.
func (p *Processor) Annotate(ctx context.Context, t *Table, opts TractOptions) (Summary, error) {
	began := time.Now()
	sum := Summary{Records: len(t.Records)}

	var before geocode.CascadeStats
	stats, hasStats := p.geocoder.(cascadeStats)
	if hasStats {
		before = stats.Stats()
	}

	// Standardize every address first so mapping errors surface before any
	// geocoder request is billed.
	addrs := make([]geocode.AddressInput, 0, len(t.Records))
	owners := make([]int, 0, len(t.Records))
	for i, rec := range t.Records {
		subset, err := address.Subset(rec, opts.Mapping)
		if err != nil {
			return sum, eris.Wrapf(err, "deidentify: record %d", i)
		}
		addr, err := address.Standardize(subset, opts.Mapping)
		if err != nil {
			return sum, eris.Wrapf(err, "deidentify: record %d", i)
		}
		if addr.IsZero() {
			continue
		}
		addrs = append(addrs, addr)
		owners = append(owners, i)
	}
	sum.Addresses = len(addrs)

	tracts := make([]string, len(t.Records))
	if len(addrs) > 0 {
		results, err := p.geocoder.BatchGeocode(ctx, addrs)
		if err != nil {
			return sum, eris.Wrap(err, "deidentify: geocode")
		}
		for j, r := range results {
			geoid, err := p.locate(ctx, r)
			if err != nil {
				return sum, err
			}
			if r.Matched {
				sum.Geocoded++
			}
			if geoid != "" {
				sum.Located++
			}
			tracts[owners[j]] = geoid
		}
	}

	t.dropColumns(address.DropColumns(opts.Mapping, opts.KeepZipCode))
	for i, rec := range t.Records {
		rec[TractColumn] = tracts[i]
	}
	t.addColumn(TractColumn)

	if hasStats {
		sum.CacheHits = stats.Stats().CacheHits - before.CacheHits
	}
	sum.Elapsed = time.Since(began)
	p.log.Info("census tracts assigned",
		zap.Int("records", sum.Records),
		zap.Int("addresses", sum.Addresses),
		zap.Int("geocoded", sum.Geocoded),
		zap.Int("located", sum.Located),
		zap.Int64("cache_hits", sum.CacheHits),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, nil
}

// Lookup geocodes one address and returns its tract GEOID ("" when not found)
// with the geocoder result.
func (p *Processor) Lookup(ctx context.Context, addr geocode.AddressInput) (string, *geocode.Result, error) {
	if addr.IsZero() {
		p.metrics.TractLookup(monitoring.OutcomeSkipped)
		return "", &geocode.Result{}, nil
	}
	r, err := p.geocoder.Geocode(ctx, addr)
	if err != nil {
		return "", nil, eris.Wrap(err, "deidentify: geocode")
	}
	geoid, err := p.locate(ctx, *r)
	if err != nil {
		return "", nil, err
	}
	return geoid, r, nil
}

// LookupBatch is Lookup for many addresses. Results are positional.
func (p *Processor) LookupBatch(ctx context.Context, addrs []geocode.AddressInput) ([]string, []geocode.Result, error) {
	results, err := p.geocoder.BatchGeocode(ctx, addrs)
	if err != nil {
		return nil, nil, eris.Wrap(err, "deidentify: geocode")
	}
	geoids := make([]string, len(results))
	for i, r := range results {
		if geoids[i], err = p.locate(ctx, r); err != nil {
			return nil, nil, err
		}
	}
	return geoids, results, nil
}

// locate maps a geocoder result to a tract. Unmatched results and results
// without coordinates are not looked up.
func (p *Processor) locate(ctx context.Context, r geocode.Result) (string, error) {
	if !r.Matched || (r.Latitude == 0 && r.Longitude == 0) {
		p.metrics.TractLookup(monitoring.OutcomeSkipped)
		return "", nil
	}
	geoid, err := p.locator.Locate(ctx, r.Latitude, r.Longitude)
	if err != nil {
		p.metrics.TractLookup(monitoring.OutcomeError)
		return "", eris.Wrap(err, "deidentify: locate tract")
	}
	if geoid == "" {
		p.metrics.TractLookup(monitoring.OutcomeNotFound)
		return "", nil
	}
	p.metrics.TractLookup(monitoring.OutcomeFound)
	return geoid, nil
}
