package deidentify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/deidentify-cli/internal/address"
	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

var defaultPII = PIIMapping{
	PIIName:       "Patient Name",
	PIIBirthDate:  "DOB",
	PIIGender:     "Gender",
	PIIPostalCode: "Postal Code",
}

func sum256(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestStandardizePII(t *testing.T) {
	rec := map[string]any{
		"Patient Name": " O'Brien, Mary-Jo ",
		"DOB":          "1980-01-02",
		"Gender":       "f",
		"Postal Code":  98101.0,
	}
	values, err := StandardizePII(rec, defaultPII)
	require.NoError(t, err)
	assert.Equal(t, []string{"OBRIENMARYJO", "1980-01-02", "F", "98101"}, values)
}

func TestStandardizePIIUnmappedAndMissing(t *testing.T) {
	values, err := StandardizePII(map[string]any{"n": "Ann"}, PIIMapping{PIIName: "n", PIIGender: ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"ANN", "", "", ""}, values)

	_, err = StandardizePII(map[string]any{}, PIIMapping{PIIName: "n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"n"`)
}

func TestHashPII(t *testing.T) {
	got := HashPII([]string{"ANN", "2000-01-01", "F", "98101"}, "s3cret")
	assert.Equal(t, sum256("ANN 2000-01-01 F 98101s3cret"), got)
	assert.Len(t, got, 64)
	assert.NotEqual(t, got, HashPII([]string{"ANN", "2000-01-01", "F", "98101"}, "other"))
}

func TestPseudonymize(t *testing.T) {
	tbl := &Table{
		Format:  FormatCSV,
		Columns: []string{"Patient Name", "DOB", "Gender", "Postal Code", "result"},
		Records: []map[string]any{
			{"Patient Name": "Ann Lee", "DOB": "2000-01-01", "Gender": "F", "Postal Code": "98101", "result": "neg"},
			{"Patient Name": "ann lee", "DOB": "2000-01-01", "Gender": "f", "Postal Code": "98101", "result": "pos"},
		},
	}
	require.NoError(t, Pseudonymize(tbl, defaultPII, "s3cret"))

	want := sum256("ANNLEE 2000-01-01 F 98101s3cret")
	assert.Equal(t, []string{"result", IndividualColumn}, tbl.Columns)
	for _, rec := range tbl.Records {
		assert.Equal(t, want, rec[IndividualColumn])
		assert.NotContains(t, rec, "Patient Name")
		assert.NotContains(t, rec, "Postal Code")
	}
}

func TestPseudonymizeErrors(t *testing.T) {
	tbl := &Table{Format: FormatJSON, Records: []map[string]any{{"x": "1"}}}

	err := Pseudonymize(tbl, defaultPII, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret is not set")

	err = Pseudonymize(tbl, PIIMapping{}, "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selects no columns")

	err = Pseudonymize(tbl, defaultPII, "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 0")
}

func TestCustomPII(t *testing.T) {
	_, ok := CustomPII(PIIFlags{})
	assert.False(t, ok)

	m, ok := CustomPII(PIIFlags{Name: "nm", PostalCode: "zip"})
	require.True(t, ok)
	assert.Equal(t, []string{"nm", "zip"}, m.columns())
}

func TestPIIMappingFromConfig(t *testing.T) {
	m, err := PIIMappingFromConfig(map[string]string{"name": "N", "gender": "G"})
	require.NoError(t, err)
	assert.Equal(t, PIIMapping{PIIName: "N", PIIGender: "G"}, m)

	_, err = PIIMappingFromConfig(map[string]string{"ssn": "S"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ssn"`)
}

func TestDeidentifyKeepsZipForHash(t *testing.T) {
	m := address.Mapping{address.FieldStreet: "Address", address.FieldZipCode: "Postal Code"}
	geo := new(mockGeocoder)
	loc := new(mockLocator)
	geo.On("BatchGeocode", mock.Anything, []geocode.AddressInput{{Street: "1 MAIN ST", ZipCode: "98101"}}).
		Return([]geocode.Result{matched(47.6, -122.3)}, nil)
	loc.On("Locate", mock.Anything, 47.6, -122.3).Return("53033000100", nil)

	tbl := &Table{
		Format:  FormatCSV,
		Columns: []string{"Patient Name", "DOB", "Gender", "Address", "Postal Code"},
		Records: []map[string]any{
			{"Patient Name": "Ann", "DOB": "2000-01-01", "Gender": "F", "Address": "1 Main St", "Postal Code": "98101"},
		},
	}

	p := NewProcessor(geo, loc, nil)
	sum, err := p.Deidentify(context.Background(), tbl, m, defaultPII, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Located)
	assert.Equal(t, []string{TractColumn, IndividualColumn}, tbl.Columns)
	assert.Equal(t, map[string]any{
		TractColumn:      "53033000100",
		IndividualColumn: sum256("ANN 2000-01-01 F 98101s3cret"),
	}, tbl.Records[0])
}

func TestDeidentifyRequiresSecretBeforeGeocoding(t *testing.T) {
	geo := new(mockGeocoder)
	p := NewProcessor(geo, new(mockLocator), nil)
	_, err := p.Deidentify(context.Background(), &Table{Format: FormatJSON}, defaultMapping, defaultPII, "")
	require.Error(t, err)
	geo.AssertNotCalled(t, "BatchGeocode", mock.Anything, mock.Anything)
}
