package tiger

import (
	"os"
	"time"
)

// ArtifactStatus reports which build outputs exist for a state.
type ArtifactStatus struct {
	State     State     `json:"state"`
	Archive   bool      `json:"archive"`
	Shapefile bool      `json:"shapefile"`
	GeoJSON   bool      `json:"geojson"`
	Stale     bool      `json:"stale"`
	BuiltAt   time.Time `json:"built_at,omitzero"`
}

// Status inspects the data directory for each state without running anything.
// Stale is set when a GeoJSON exists but is older than its shapefile.
func (p *Pipeline) Status(states []State) []ArtifactStatus {
	out := make([]ArtifactStatus, len(states))
	for i, s := range states {
		paths := p.Paths(s)
		st := ArtifactStatus{
			State:     s,
			Archive:   exists(paths.Archive),
			Shapefile: exists(paths.Shapefile),
		}
		if info, err := os.Stat(paths.GeoJSON); err == nil {
			st.GeoJSON = true
			st.BuiltAt = info.ModTime()
			if fresh, err := upToDate(paths.GeoJSON, []string{paths.Shapefile}); err == nil && st.Shapefile && !fresh {
				st.Stale = true
			}
		}
		out[i] = st
	}
	return out
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
