package deidentify

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/deidentify-cli/internal/address"
)

// IndividualColumn is the column that receives the participant hash.
const IndividualColumn = "individual"

// PII identifiers, in hashing order.
const (
	PIIName       = "name"
	PIIBirthDate  = "birth-date"
	PIIGender     = "gender"
	PIIPostalCode = "postal-code"
)

// PIIFields lists the identifiers in the order their values are joined.
var PIIFields = []string{PIIName, PIIBirthDate, PIIGender, PIIPostalCode}

// PIIMapping maps PII identifiers to record column names. An absent or empty
// entry contributes an empty value to the hash.
type PIIMapping map[string]string

// PIIFlags are column names given on the command line.
type PIIFlags struct {
	Name       string
	BirthDate  string
	Gender     string
	PostalCode string
}

// CustomPII builds a mapping from flags. ok is false when no flag is set.
func CustomPII(f PIIFlags) (m PIIMapping, ok bool) {
	m = PIIMapping{
		PIIName:       f.Name,
		PIIBirthDate:  f.BirthDate,
		PIIGender:     f.Gender,
		PIIPostalCode: f.PostalCode,
	}
	for _, c := range m {
		if c != "" {
			return m, true
		}
	}
	return nil, false
}

// PIIMappingFromConfig validates a configured mapping.
func PIIMappingFromConfig(m map[string]string) (PIIMapping, error) {
	out := make(PIIMapping, len(m))
	for k, v := range m {
		if !isPIIField(k) {
			return nil, eris.Errorf("deidentify: %q is not a PII identifier (valid: %s)", k, strings.Join(PIIFields, ", "))
		}
		out[k] = v
	}
	return out, nil
}

func (m PIIMapping) columns() []string {
	var cols []string
	for _, f := range PIIFields {
		if c := m[f]; c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

var nonLetters = regexp.MustCompile(`[^A-Za-z]+`)

// StandardizePII returns the identifier values of rec in PIIFields order:
// upper-cased and trimmed, with everything but ASCII letters removed from the
// name.
func StandardizePII(rec map[string]any, m PIIMapping) ([]string, error) {
	values := make([]string, len(PIIFields))
	for i, f := range PIIFields {
		col := m[f]
		if col == "" {
			continue
		}
		raw, ok := rec[col]
		if !ok {
			return nil, eris.Errorf("deidentify: PII column %q (%s) not found in record", col, f)
		}
		v := strings.ToUpper(strings.TrimSpace(address.ValueString(raw)))
		if f == PIIName {
			v = nonLetters.ReplaceAllString(v, "")
		}
		values[i] = v
	}
	return values, nil
}

// HashPII returns the hex SHA-256 of the values joined by a space followed by
// secret.
func HashPII(values []string, secret string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(values, " ")))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

// Pseudonymize replaces the mapped PII columns of every record with
// IndividualColumn.
func Pseudonymize(t *Table, m PIIMapping, secret string) error {
	if secret == "" {
		return eris.New("deidentify: participant hashing secret is not set (pii.secret or PARTICIPANT_DEIDENTIFIER_SECRET)")
	}
	cols := m.columns()
	if len(cols) == 0 {
		return eris.New("deidentify: PII mapping selects no columns")
	}

	hashes := make([]string, len(t.Records))
	for i, rec := range t.Records {
		values, err := StandardizePII(rec, m)
		if err != nil {
			return eris.Wrapf(err, "deidentify: record %d", i)
		}
		hashes[i] = HashPII(values, secret)
	}

	t.dropColumns(cols)
	for i, rec := range t.Records {
		rec[IndividualColumn] = hashes[i]
	}
	t.addColumn(IndividualColumn)

	zap.L().Info("participants pseudonymized",
		zap.String("component", "deidentify"),
		zap.Int("records", len(t.Records)),
		zap.Strings("columns", cols),
	)
	return nil
}

func isPIIField(f string) bool {
	for _, known := range PIIFields {
		if f == known {
			return true
		}
	}
	return false
}
