// Package tiger builds the Census tract boundary files used for
// point-in-polygon lookups. For each state it downloads the TIGER/Line tract
// archive, unzips it and converts the shapefile to GeoJSON, and it can bulk
// load the tracts into PostGIS.
package tiger

import (
	"fmt"
	"sort"
)

// DefaultYear is the TIGER/Line vintage the tract files are built from.
const DefaultYear = 2016

const (
	httpBase = "https://www2.census.gov/geo/tiger"
	ftpBase  = "ftp://ftp2.census.gov/geo/tiger"
)

// stateNames maps 2-digit FIPS codes to state names for the 50 states, DC and
// Puerto Rico.
var stateNames = map[string]string{
	"01": "Alabama", "02": "Alaska", "04": "Arizona", "05": "Arkansas",
	"06": "California", "08": "Colorado", "09": "Connecticut", "10": "Delaware",
	"11": "District of Columbia", "12": "Florida", "13": "Georgia", "15": "Hawaii",
	"16": "Idaho", "17": "Illinois", "18": "Indiana", "19": "Iowa",
	"20": "Kansas", "21": "Kentucky", "22": "Louisiana", "23": "Maine",
	"24": "Maryland", "25": "Massachusetts", "26": "Michigan", "27": "Minnesota",
	"28": "Mississippi", "29": "Missouri", "30": "Montana", "31": "Nebraska",
	"32": "Nevada", "33": "New Hampshire", "34": "New Jersey", "35": "New Mexico",
	"36": "New York", "37": "North Carolina", "38": "North Dakota", "39": "Ohio",
	"40": "Oklahoma", "41": "Oregon", "42": "Pennsylvania", "44": "Rhode Island",
	"45": "South Carolina", "46": "South Dakota", "47": "Tennessee", "48": "Texas",
	"49": "Utah", "50": "Vermont", "51": "Virginia", "53": "Washington",
	"54": "West Virginia", "55": "Wisconsin", "56": "Wyoming", "72": "Puerto Rico",
}

// StateName returns the Census name for a FIPS code.
func StateName(fips string) (string, bool) {
	name, ok := stateNames[fips]
	return name, ok
}

// AllStateFIPS returns a sorted list of all known state FIPS codes.
func AllStateFIPS() []string {
	codes := make([]string, 0, len(stateNames))
	for fips := range stateNames {
		codes = append(codes, fips)
	}
	sort.Strings(codes)
	return codes
}

// ArchiveName is the tract archive file name for a state and year.
func ArchiveName(year int, fips string) string {
	return fmt.Sprintf("tl_%d_%s_tract.zip", year, fips)
}

// ArchiveURL builds the download URL for a state's tract archive. source is
// "http" or "ftp"; base, when set, replaces the Census host and root path.
func ArchiveURL(source, base string, year int, fips string) string {
	if base == "" {
		base = httpBase
		if source == "ftp" {
			base = ftpBase
		}
	}
	return fmt.Sprintf("%s/TIGER%d/TRACT/%s", base, year, ArchiveName(year, fips))
}
