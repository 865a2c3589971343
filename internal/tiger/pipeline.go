package tiger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/deidentify-cli/internal/fetcher"
)

// Options configures a tract build.
type Options struct {
	Year        int
	DataDir     string
	Source      string // "http" or "ftp"
	BaseURL     string // overrides the Census host, for mirrors
	Concurrency int
	Force       bool
}

// Paths are the artifacts built for one state.
type Paths struct {
	Archive   string
	ShapeDir  string
	Shapefile string
	GeoJSON   string
}

// StateResult reports the tasks run for one state.
type StateResult struct {
	State   State        `json:"state"`
	GeoJSON string       `json:"geojson"`
	Tasks   []TaskResult `json:"tasks"`
}

// Pipeline runs download, unzip and convert for a set of states.
type Pipeline struct {
	opts    Options
	fetcher fetcher.Fetcher
}

// NewPipeline returns a Pipeline that downloads with f.
func NewPipeline(opts Options, f fetcher.Fetcher) *Pipeline {
	if opts.Year == 0 {
		opts.Year = DefaultYear
	}
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Pipeline{opts: opts, fetcher: f}
}

// Paths returns where the artifacts for s live under the data directory.
func (p *Pipeline) Paths(s State) Paths {
	base := strings.TrimSuffix(ArchiveName(p.opts.Year, s.FIPS), ".zip")
	shapeDir := filepath.Join(p.opts.DataDir, "shapefiles", base)
	return Paths{
		Archive:   filepath.Join(p.opts.DataDir, "downloads", base+".zip"),
		ShapeDir:  shapeDir,
		Shapefile: filepath.Join(shapeDir, base+".shp"),
		GeoJSON:   filepath.Join(p.opts.DataDir, "geojsons", fmt.Sprintf("%s_%d.geojson", s.Slug(), p.opts.Year)),
	}
}

// Tasks returns the download, unzip and convert tasks for s.
func (p *Pipeline) Tasks(s State) []Task {
	paths := p.Paths(s)
	url := ArchiveURL(p.opts.Source, p.opts.BaseURL, p.opts.Year, s.FIPS)

	return []Task{
		{
			Name:   "download " + s.Name,
			Output: paths.Archive,
			Run: func(ctx context.Context) error {
				if err := os.MkdirAll(filepath.Dir(paths.Archive), 0o755); err != nil {
					return eris.Wrap(err, "create download dir")
				}
				n, err := p.fetcher.DownloadToFile(ctx, url, paths.Archive)
				if err != nil {
					return err
				}
				zap.L().Debug("tiger: archive downloaded", zap.String("url", url), zap.Int64("bytes", n))
				return nil
			},
		},
		{
			Name:   "unzip " + s.Name,
			Inputs: []string{paths.Archive},
			Output: paths.Shapefile,
			Run: func(context.Context) error {
				files, err := fetcher.ExtractZIPMatching(paths.Archive, paths.ShapeDir,
					fetcher.WithExtensions(".shp", ".shx", ".dbf", ".prj", ".cpg"))
				if err != nil {
					return err
				}
				if _, err := os.Stat(paths.Shapefile); err != nil {
					return eris.Errorf("archive %s has no %s (extracted %d files)",
						paths.Archive, filepath.Base(paths.Shapefile), len(files))
				}
				return nil
			},
		},
		{
			Name:   "convert " + s.Name,
			Inputs: []string{paths.Shapefile},
			Output: paths.GeoJSON,
			Run: func(context.Context) error {
				records, err := ReadShapefile(paths.Shapefile)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					return eris.Errorf("%s has no tract polygons", paths.Shapefile)
				}
				return WriteGeoJSON(paths.GeoJSON, records)
			},
		},
	}
}

// Build runs the task graph for each state, up to Concurrency states at a
// time. Results are returned in the order of states.
func (p *Pipeline) Build(ctx context.Context, states []State) ([]StateResult, error) {
	log := zap.L().With(zap.String("component", "tiger.pipeline"), zap.Int("year", p.opts.Year))

	results := make([]StateResult, len(states))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for i, s := range states {
		g.Go(func() error {
			tasks, err := RunTasks(gCtx, p.Tasks(s), p.opts.Force)
			results[i] = StateResult{State: s, GeoJSON: p.Paths(s).GeoJSON, Tasks: tasks}
			if err != nil {
				return eris.Wrapf(err, "tiger: build %s", s.Name)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}

	log.Info("tract files built", zap.Int("states", len(states)))
	return results, nil
}

// Load builds each state's shapefile if needed and loads its tracts with l.
func (p *Pipeline) Load(ctx context.Context, l *Loader, states []State) ([]LoadResult, error) {
	out := make([]LoadResult, 0, len(states))
	for _, s := range states {
		paths := p.Paths(s)
		tasks := p.Tasks(s)[:2]
		if _, err := RunTasks(ctx, tasks, p.opts.Force); err != nil {
			return out, eris.Wrapf(err, "tiger: prepare %s", s.Name)
		}

		records, err := ReadShapefile(paths.Shapefile)
		if err != nil {
			return out, err
		}
		res, err := l.LoadState(ctx, s, p.opts.Year, records, p.opts.Force)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}
