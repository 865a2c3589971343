package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultInstitute is the mapping used when no institute is named.
const DefaultInstitute = "default"

// Institutes maps institute names to their column layouts. Address maps are
// keyed by geocoder field (street, street2, secondary, city, state, zipcode);
// PII maps by identifier (name, birth-date, gender, postal-code). Values are
// column names in the institute's files.
type Institutes struct {
	Address map[string]map[string]string `yaml:"address"`
	PII     map[string]map[string]string `yaml:"pii"`
}

// DefaultInstitutes returns the built-in layouts.
func DefaultInstitutes() *Institutes {
	return &Institutes{
		Address: map[string]map[string]string{
			"uw": {
				"street":    "AddressLine1",
				"street2":   "AddressLine2",
				"secondary": "AddressLine3",
				"city":      "City",
				"state":     "StateText",
				"zipcode":   "PostalCode",
			},
			"sch": {
				"street":    "ADD_LINE_1",
				"street2":   "ADD_LINE_2",
				"secondary": "ADD_LINE_3",
				"city":      "CITY",
				"state":     "ABBR",
				"zipcode":   "ZIP",
			},
			"kp": {},
			DefaultInstitute: {
				"street": "address",
			},
		},
		PII: map[string]map[string]string{
			DefaultInstitute: {
				"name":        "Patient Name",
				"birth-date":  "DOB",
				"gender":      "Gender",
				"postal-code": "Postal Code",
			},
			"sch": {},
		},
	}
}

// LoadInstitutes returns the built-in layouts overlaid with the ones in path.
// An institute present in the file replaces the built-in entry of that name.
// An empty path returns the built-ins.
func LoadInstitutes(path string) (*Institutes, error) {
	inst := DefaultInstitutes()
	if path == "" {
		return inst, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read institutes %s", path)
	}

	var file Institutes
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "config: parse institutes %s", path)
	}

	for name, m := range file.Address {
		inst.Address[name] = m
	}
	for name, m := range file.PII {
		inst.PII[name] = m
	}
	return inst, nil
}

// AddressMapping returns the address layout for institute.
func (i *Institutes) AddressMapping(institute string) (map[string]string, error) {
	if institute == "" {
		institute = DefaultInstitute
	}
	m, ok := i.Address[institute]
	if !ok {
		return nil, eris.Errorf("config: unknown institute %q", institute)
	}
	return m, nil
}

// PIIMapping returns the PII layout for institute.
func (i *Institutes) PIIMapping(institute string) (map[string]string, error) {
	if institute == "" {
		institute = DefaultInstitute
	}
	m, ok := i.PII[institute]
	if !ok {
		return nil, eris.Errorf("config: no PII mapping for institute %q", institute)
	}
	return m, nil
}
