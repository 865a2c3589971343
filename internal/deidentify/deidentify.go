package deidentify

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/deidentify-cli/internal/address"
)

// Deidentify assigns tracts keeping the zipcode column, which the PII mapping
// may hash as the postal code, then pseudonymizes the participants.
func (p *Processor) Deidentify(ctx context.Context, t *Table, m address.Mapping, pii PIIMapping, secret string) (Summary, error) {
	if secret == "" {
		return Summary{}, eris.New("deidentify: participant hashing secret is not set (pii.secret or PARTICIPANT_DEIDENTIFIER_SECRET)")
	}
	sum, err := p.Annotate(ctx, t, TractOptions{Mapping: m, KeepZipCode: true})
	if err != nil {
		return sum, err
	}
	return sum, Pseudonymize(t, pii, secret)
}
