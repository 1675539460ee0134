// Package datasource discovers and reads graph datasets. A dataset file is
// either a JSON document (.json) or a SQLite database (.db, .sqlite) holding
// one or both view modes.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// Format identifies the on-disk encoding of a dataset.
type Format string

const (
	// FormatJSON is a single dataset document.
	FormatJSON Format = "json"
	// FormatSQLite is a database with nodes, links and meta tables.
	FormatSQLite Format = "sqlite"
)

// Priority values for formats (higher = preferred when timestamps tie)
const (
	PrioritySQLite = 100
	PriorityJSON   = 50
)

// DataSource describes one dataset file found on disk.
type DataSource struct {
	Format   Format    `json:"format"`
	Path     string    `json:"path"`
	Priority int       `json:"priority"`
	ModTime  time.Time `json:"mod_time"`
	Size     int64     `json:"size"`
	// Valid is set by ValidateSource.
	Valid           bool   `json:"valid"`
	ValidationError string `json:"validation_error,omitempty"`
	NodeCount       int    `json:"node_count"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, nodes=%d, %s)",
		s.Path, s.Format, s.Priority, s.ModTime.Format(time.RFC3339), s.NodeCount, status)
}

// DetectFormat returns the format implied by the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("unsupported dataset file %s (want .json or .db)", path)
	}
}

// SourceFor stats path and describes it as a DataSource.
func SourceFor(path string) (DataSource, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return DataSource{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return DataSource{}, err
	}
	return newSource(format, path, info), nil
}

func newSource(format Format, path string, info os.FileInfo) DataSource {
	prio := PriorityJSON
	if format == FormatSQLite {
		prio = PrioritySQLite
	}
	return DataSource{
		Format:   format,
		Path:     path,
		Priority: prio,
		ModTime:  info.ModTime(),
		Size:     info.Size(),
	}
}

// DiscoveryOptions configures source discovery behavior
type DiscoveryOptions struct {
	// Mode is the view the sources are validated against.
	Mode model.Mode
	// ValidateAfterDiscovery runs validation on each discovered source
	ValidateAfterDiscovery bool
	// IncludeInvalid includes sources that failed validation in results
	IncludeInvalid bool
}

// DiscoverSources lists the dataset files directly inside dir, freshest
// first. Backup and temporary files are skipped.
func DiscoverSources(dir string, opts DiscoveryOptions) ([]DataSource, error) {
	if opts.Mode == "" {
		opts.Mode = model.ModeOverview
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || strings.Contains(name, ".backup") ||
			strings.HasSuffix(name, "-journal") || strings.HasSuffix(name, "-wal") {
			continue
		}
		format, err := DetectFormat(name)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sources = append(sources, newSource(format, filepath.Join(dir, name), info))
	}

	if opts.ValidateAfterDiscovery {
		for i := range sources {
			if err := ValidateSource(&sources[i], opts.Mode); err != nil {
				debug.Log("datasource: %s failed validation: %v", sources[i].Path, err)
			}
		}
		if !opts.IncludeInvalid {
			valid := sources[:0]
			for _, s := range sources {
				if s.Valid {
					valid = append(valid, s)
				}
			}
			sources = valid
		}
	}

	sort.Slice(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			if sources[i].Priority == sources[j].Priority {
				return sources[i].Path < sources[j].Path
			}
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
	debug.Log("datasource: discovered %d sources in %s", len(sources), dir)
	return sources, nil
}

// ValidateSource reads the source for mode and records the outcome on s.
func ValidateSource(s *DataSource, mode model.Mode) error {
	ds, err := LoadFromSource(*s, mode)
	if err != nil {
		s.Valid = false
		s.ValidationError = err.Error()
		return err
	}
	s.Valid = true
	s.ValidationError = ""
	s.NodeCount = len(ds.Nodes)
	return nil
}

// SelectBestSource returns the first valid source of a list sorted by
// DiscoverSources.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	for _, s := range sources {
		if s.Valid {
			return s, nil
		}
	}
	return DataSource{}, fmt.Errorf("no valid dataset among %d sources", len(sources))
}
