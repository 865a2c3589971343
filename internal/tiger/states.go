package tiger

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// State is one entry of the build list.
type State struct {
	Name string // e.g. "New York"
	FIPS string // e.g. "36"
}

// Slug is the name with spaces replaced by underscores, as used in output
// file names.
func (s State) Slug() string {
	return strings.ReplaceAll(strings.TrimSpace(s.Name), " ", "_")
}

// ReadStates pairs the lines of a state-names file with the lines of a FIPS
// file. Blank lines and lines starting with '#' are ignored in both. The files
// must list the same number of entries and every FIPS code must be known.
func ReadStates(statesPath, fipsPath string) ([]State, error) {
	names, err := readList(statesPath)
	if err != nil {
		return nil, err
	}
	codes, err := readList(fipsPath)
	if err != nil {
		return nil, err
	}
	if len(names) != len(codes) {
		return nil, eris.Errorf("tiger: %s lists %d states but %s lists %d FIPS codes",
			statesPath, len(names), fipsPath, len(codes))
	}

	states := make([]State, len(names))
	seen := make(map[string]bool, len(codes))
	for i, code := range codes {
		if len(code) == 1 {
			code = "0" + code
		}
		if _, ok := StateName(code); !ok {
			return nil, eris.Errorf("tiger: unknown state FIPS code %q (line %d of %s)", codes[i], i+1, fipsPath)
		}
		if seen[code] {
			return nil, eris.Errorf("tiger: duplicate state FIPS code %q", code)
		}
		seen[code] = true
		states[i] = State{Name: names[i], FIPS: code}
	}
	return states, nil
}

// LoadStates reads the build list from statesPath and fipsPath. When neither
// file exists every known state is listed, named as the Census names it.
func LoadStates(statesPath, fipsPath string) ([]State, error) {
	if !exists(statesPath) && !exists(fipsPath) {
		zap.L().Warn("state list files not found, using every state",
			zap.String("states_file", statesPath), zap.String("fips_file", fipsPath))
		return AllStates(), nil
	}
	return ReadStates(statesPath, fipsPath)
}

// AllStates lists every known state in FIPS order.
func AllStates() []State {
	codes := AllStateFIPS()
	states := make([]State, len(codes))
	for i, code := range codes {
		name, _ := StateName(code)
		states[i] = State{Name: name, FIPS: code}
	}
	return states
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FilterStates keeps the states whose FIPS code or name (case-insensitive)
// appears in only. An empty only returns all states.
func FilterStates(states []State, only []string) ([]State, error) {
	if len(only) == 0 {
		return states, nil
	}
	var out []State
	for _, want := range only {
		found := false
		for _, s := range states {
			if s.FIPS == want || strings.EqualFold(s.Name, want) || strings.EqualFold(s.Slug(), want) {
				out = append(out, s)
				found = true
				break
			}
		}
		if !found {
			return nil, eris.Errorf("tiger: state %q is not in the state list", want)
		}
	}
	return out, nil
}

func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "tiger: read %s", path)
	}
	return out, nil
}
