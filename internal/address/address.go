// Package address maps institute-specific record columns onto geocoder
// address fields and standardizes their values.
package address

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

// Geocoder address fields.
const (
	FieldStreet    = "street"
	FieldStreet2   = "street2"
	FieldSecondary = "secondary"
	FieldCity      = "city"
	FieldState     = "state"
	FieldZipCode   = "zipcode"
)

// Fields lists the address fields in lookup order.
var Fields = []string{FieldStreet, FieldStreet2, FieldSecondary, FieldCity, FieldState, FieldZipCode}

// Mapping maps address fields to record column names. A field that is absent
// or maps to "" is not used.
type Mapping map[string]string

// FromConfig validates a configured mapping.
func FromConfig(m map[string]string) (Mapping, error) {
	out := make(Mapping, len(m))
	for field, column := range m {
		if !isField(field) {
			return nil, &InvalidAddressMappingError{Key: field}
		}
		out[field] = column
	}
	return out, nil
}

// Flags are column names given on the command line.
type Flags struct {
	Street    string
	Street2   string
	Secondary string
	City      string
	State     string
	ZipCode   string
}

// Custom builds a mapping from flags. ok is false when no flag is set, in which
// case the institute mapping applies.
func Custom(f Flags) (m Mapping, ok bool) {
	m = Mapping{
		FieldStreet:    f.Street,
		FieldStreet2:   f.Street2,
		FieldSecondary: f.Secondary,
		FieldCity:      f.City,
		FieldState:     f.State,
		FieldZipCode:   f.ZipCode,
	}
	for _, c := range m {
		if c != "" {
			return m, true
		}
	}
	return nil, false
}

// Columns returns the mapped column names in field order.
func (m Mapping) Columns() []string {
	var cols []string
	for _, f := range Fields {
		if c := m[f]; c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// String renders the mapping in field order.
func (m Mapping) String() string {
	parts := make([]string, 0, len(m))
	for _, f := range Fields {
		if c, ok := m[f]; ok {
			parts = append(parts, fmt.Sprintf("%s=%q", f, c))
		}
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// DropColumns returns the identifying columns to remove from output records.
// The zipcode column is kept when keepZip is set.
func DropColumns(m Mapping, keepZip bool) []string {
	var cols []string
	for _, f := range Fields {
		c := m[f]
		if c == "" || (keepZip && f == FieldZipCode) {
			continue
		}
		cols = append(cols, c)
	}
	return cols
}

// Subset returns the mapped columns of record as strings.
func Subset(record map[string]any, m Mapping) (map[string]string, error) {
	cols := m.Columns()
	if len(cols) == 0 {
		return nil, &NoAddressDataFoundError{Keys: sortedKeys(record), Mapping: m}
	}

	out := make(map[string]string, len(cols))
	for _, c := range cols {
		v, ok := record[c]
		if !ok {
			return nil, &AddressTranslationError{Keys: sortedKeys(record), Mapping: m, Missing: c}
		}
		out[c] = ValueString(v)
	}
	return out, nil
}

// Standardize converts a subset into the geocoder's input, upper-casing,
// trimming and stripping diacritics from every value.
func Standardize(subset map[string]string, m Mapping) (geocode.AddressInput, error) {
	var addr geocode.AddressInput
	for field, column := range m {
		if !isField(field) {
			return geocode.AddressInput{}, &InvalidAddressMappingError{Key: field}
		}
		if column == "" {
			continue
		}
		raw, ok := subset[column]
		if !ok {
			return geocode.AddressInput{}, &InvalidAddressMappingError{Key: field}
		}
		v := Normalize(raw)
		switch field {
		case FieldStreet:
			addr.Street = v
		case FieldStreet2:
			addr.Street2 = v
		case FieldSecondary:
			addr.Secondary = v
		case FieldCity:
			addr.City = v
		case FieldState:
			addr.State = v
		case FieldZipCode:
			addr.ZipCode = v
		}
	}
	return addr, nil
}

// Normalize upper-cases s, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	// Transformers keep state, so each call builds its own chain.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.ToUpper(strings.Join(strings.Fields(stripped), " "))
}

// ValueString renders a decoded cell as text. nil becomes "" and whole
// numbers print without a decimal point, so a zipcode read as a JSON number
// stays "98195".
func ValueString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func isField(f string) bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

func sortedKeys(record map[string]any) []string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
