// Package dataset assembles the training and test collections of
// precomputed mesh samples: the FAUST human-body registrations on
// disk, and an SDF-derived synthetic dataset for smoke testing.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PeterZhouSZ/hsn/internal/geometry"
	"github.com/PeterZhouSZ/hsn/internal/transform"
)

// ErrVertexCountMismatch indicates samples with differing vertex
// counts. The classification head is sized to the dataset's fixed
// vertex count, so this is a hard precondition checked at build time
// rather than a silent truncation later.
var ErrVertexCountMismatch = errors.New("dataset: samples have differing vertex counts")

// Config controls dataset geometry preprocessing.
type Config struct {
	Ratios       []float64 // per-scale vertex-retention fractions
	Radii        []float64 // per-scale neighborhood radius
	MaxNeighbors int
	Remeshed     bool // dataset-variant switch
	Seed         int64
}

// DefaultConfig returns the published experiment configuration.
func DefaultConfig() Config {
	return Config{
		Ratios:       []float64{1.0, 0.25},
		Radii:        []float64{0.05, 0.1},
		MaxNeighbors: 32,
		Seed:         1,
	}
}

// Dataset is an immutable collection of precomputed samples sharing a
// vertex count.
type Dataset struct {
	Samples  []*transform.Sample
	numNodes int
}

// Len returns the sample count.
func (d *Dataset) Len() int { return len(d.Samples) }

// NumNodes returns the vertex count shared by every sample.
func (d *Dataset) NumNodes() int { return d.numNodes }

// preTransform builds the one-time precomputation pipeline for cfg.
func preTransform(cfg Config) transform.Compose {
	return transform.Compose{
		transform.IdentityLabels{},
		transform.TangentFrames{},
		transform.MultiscaleRadiusGraph{
			Ratios:       cfg.Ratios,
			Radii:        cfg.Radii,
			MaxNeighbors: cfg.MaxNeighbors,
			Seed:         cfg.Seed,
		},
	}
}

// cacheKey derives the processed-cache key from everything that
// changes the precomputation's output.
func cacheKey(variant string, cfg Config) string {
	return transform.ConfigKey(
		variant,
		fmt.Sprint(cfg.Ratios),
		fmt.Sprint(cfg.Radii),
		fmt.Sprint(cfg.MaxNeighbors),
		fmt.Sprint(cfg.Seed),
	)
}

// LoadFAUST loads the FAUST registrations below root. The raw meshes
// live in root/raw/<variant>; the multiscale precomputation is cached
// in root/processed and reused across runs. train selects the first
// 80% of the (sorted) meshes, the remainder is the test set.
func LoadFAUST(root string, train bool, cfg Config) (*Dataset, error) {
	variant := "registrations"
	if cfg.Remeshed {
		variant = "remeshed"
	}
	rawDir := filepath.Join(root, "raw", variant)
	files, err := listMeshFiles(rawDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("dataset: no mesh files in %s", rawDir)
	}
	total := len(files)

	split := len(files) * 8 / 10
	name := "test"
	if train {
		name = "train"
		files = files[:split]
	} else {
		files = files[split:]
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("dataset: %s split is empty (%d mesh files in %s, split at %d)", name, total, rawDir, split)
	}

	cache, err := transform.NewCache(filepath.Join(root, "processed"), cacheKey(variant, cfg))
	if err != nil {
		return nil, err
	}
	pre := preTransform(cfg)

	// Entries in a cache without the done marker may be leftovers of an
	// interrupted run; they are rebuilt rather than trusted.
	trusted := cache.Complete()
	samples := make([]*transform.Sample, 0, len(files))
	for _, path := range files {
		s, err := loadSample(path, cache, pre, trusted)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	// Marking completion after a full split is fine: entries are
	// per-mesh, and the marker records that every stored entry came
	// from a run that finished.
	if err := cache.MarkComplete(); err != nil {
		return nil, err
	}
	return newDataset(samples)
}

func newDataset(samples []*transform.Sample) (*Dataset, error) {
	n := samples[0].Mesh.NumVertices()
	for i, s := range samples {
		if v := s.Mesh.NumVertices(); v != n {
			return nil, fmt.Errorf("%w: sample 0 has %d, sample %d has %d", ErrVertexCountMismatch, n, i, v)
		}
	}
	return &Dataset{Samples: samples, numNodes: n}, nil
}

// loadSample returns the precomputed sample for one mesh file,
// consulting the cache first when trusted. A missing or corrupt cache
// entry is rebuilt.
func loadSample(path string, cache *transform.Cache, pre transform.Transform, trusted bool) (*transform.Sample, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".sample"

	if trusted {
		var cached transform.Sample
		switch err := cache.Load(name, &cached); {
		case err == nil:
			return &cached, nil
		case errors.Is(err, transform.ErrCacheMiss), errors.Is(err, transform.ErrCacheChecksum):
			// fall through to rebuild
		default:
			return nil, err
		}
	}

	mesh, err := geometry.LoadMesh(path)
	if err != nil {
		return nil, err
	}
	s, err := pre.Apply(&transform.Sample{Mesh: mesh})
	if err != nil {
		return nil, fmt.Errorf("dataset: preprocess %s: %w", path, err)
	}
	if err := cache.Store(name, s); err != nil {
		return nil, err
	}
	return s, nil
}

func listMeshFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: read raw directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".off", ".ply":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
