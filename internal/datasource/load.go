package datasource

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// document is the JSON dataset layout. A file either is a single dataset or
// carries one dataset per view mode under "views".
type document struct {
	model.Dataset
	Views map[model.Mode]model.Dataset `json:"views,omitempty"`
}

// Load reads the dataset for mode from path, dispatching on the extension.
func Load(path string, mode model.Mode) (model.Dataset, error) {
	source, err := SourceFor(path)
	if err != nil {
		return model.Dataset{}, err
	}
	return LoadFromSource(source, mode)
}

// LoadDir discovers the dataset files in dir and reads the freshest one
// that holds a valid dataset for mode.
func LoadDir(dir string, mode model.Mode) (model.Dataset, DataSource, error) {
	sources, err := DiscoverSources(dir, DiscoveryOptions{Mode: mode, ValidateAfterDiscovery: true})
	if err != nil {
		return model.Dataset{}, DataSource{}, err
	}
	best, err := SelectBestSource(sources)
	if err != nil {
		return model.Dataset{}, DataSource{}, err
	}
	ds, err := LoadFromSource(best, mode)
	return ds, best, err
}

// LoadFromSource reads the dataset for mode from a specific DataSource.
func LoadFromSource(source DataSource, mode model.Mode) (model.Dataset, error) {
	defer metrics.Timer(metrics.DatasetRead)()

	if !mode.IsValid() {
		return model.Dataset{}, fmt.Errorf("unknown view mode %q", mode)
	}
	switch source.Format {
	case FormatSQLite:
		reader, err := OpenSQLite(source.Path)
		if err != nil {
			return model.Dataset{}, fmt.Errorf("failed to open SQLite source %s: %w", source.Path, err)
		}
		defer reader.Close()
		return reader.LoadDataset(mode)

	case FormatJSON:
		return readJSON(source.Path, mode)

	default:
		return model.Dataset{}, fmt.Errorf("unknown source format: %s", source.Format)
	}
}

func readJSON(path string, mode model.Mode) (model.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("reading dataset: %w", err)
	}
	return DecodeJSON(data, mode)
}

// DecodeJSON parses a JSON dataset document and returns the dataset for mode.
func DecodeJSON(data []byte, mode model.Mode) (model.Dataset, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.Dataset{}, fmt.Errorf("parsing dataset: %w", err)
	}

	if len(doc.Views) > 0 {
		ds, ok := doc.Views[mode]
		if !ok {
			return model.Dataset{}, fmt.Errorf("dataset has no %s view", mode)
		}
		ds.Mode = mode
		return ds, nil
	}
	ds := doc.Dataset
	switch ds.Mode {
	case "":
		ds.Mode = mode
	case mode:
	default:
		return model.Dataset{}, fmt.Errorf("dataset is for %s, not %s", ds.Mode, mode)
	}
	return ds, nil
}

// SaveJSON writes ds as an indented JSON document.
func SaveJSON(path string, ds model.Dataset) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling dataset: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}
	return nil
}
