package address

import (
	"fmt"
	"strings"
)

// UnsupportedFileExtensionError is returned for input files whose extension
// has no reader.
type UnsupportedFileExtensionError struct {
	Path      string
	Supported []string
}

func (e *UnsupportedFileExtensionError) Error() string {
	return fmt.Sprintf("unsupported file extension for %q; choose one of: %s",
		e.Path, strings.Join(e.Supported, ", "))
}

// InvalidAddressMappingError is returned when a mapping names a field the
// geocoder does not accept, or a standardized field is missing.
type InvalidAddressMappingError struct {
	Key string
}

func (e *InvalidAddressMappingError) Error() string {
	return fmt.Sprintf("%q is not a valid address field (valid: %s); check the institute configuration",
		e.Key, strings.Join(Fields, ", "))
}

// AddressTranslationError is returned when the mapping names a column the
// record does not have.
type AddressTranslationError struct {
	Keys    []string
	Mapping Mapping
	Missing string
}

func (e *AddressTranslationError) Error() string {
	return fmt.Sprintf("address mapping %s names column %q, which is not among the record keys [%s]; "+
		"did you forget to give an institute or a custom mapping?",
		e.Mapping, e.Missing, strings.Join(e.Keys, ", "))
}

// NoAddressDataFoundError is returned when the mapping yields no address
// columns at all.
type NoAddressDataFoundError struct {
	Keys    []string
	Mapping Mapping
}

func (e *NoAddressDataFoundError) Error() string {
	return fmt.Sprintf("no address data found: mapping %s selects no columns from [%s]; "+
		"did you forget to give an institute or a custom mapping?",
		e.Mapping, strings.Join(e.Keys, ", "))
}
