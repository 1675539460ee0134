package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vanderheijden86/graphlens/internal/datasource"
	"github.com/vanderheijden86/graphlens/pkg/config"
	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/engine"
	"github.com/vanderheijden86/graphlens/pkg/expand"
	"github.com/vanderheijden86/graphlens/pkg/export"
	"github.com/vanderheijden86/graphlens/pkg/graph"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/watcher"
)

func run(ctx context.Context, o options, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	engOpts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	path, err := resolveDataset(cfg, o.dataset)
	if err != nil {
		return err
	}

	s, err := openSession(path, cfg.ViewMode(), engOpts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.apply(ctx, o, cfg.ExpandMode(), stderr); err != nil {
		return err
	}

	if o.metricsAddr != "" {
		srv := &http.Server{Addr: o.metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(stderr, "metrics server: %v\n", err)
			}
		}()
		defer srv.Close()
	}

	out := newPrinter(stdout, o.width)
	if err := s.print(out, o.jsonOut); err != nil {
		return err
	}

	if o.snapshot != "" {
		if err := s.saveSnapshot(o.snapshot); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		fmt.Fprintf(stderr, "wrote %s\n", o.snapshot)
	}

	if o.watch {
		if err := s.watch(ctx, cfg.Watch, out, o.jsonOut, stderr); err != nil {
			return err
		}
	}

	if o.stats {
		out.timings(metrics.AllTimingStats())
	}
	return nil
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(o options) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFrom(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}

	if o.mode != "" {
		cfg.Mode = o.mode
	}
	if o.expandMode != "" {
		cfg.Expand.Mode = o.expandMode
	}
	if o.theme != "" {
		cfg.Colors.Theme = o.theme
	}
	if o.nodeScheme != "" {
		cfg.Colors.NodeScheme = o.nodeScheme
	}
	if o.linkScheme != "" {
		cfg.Colors.LinkScheme = o.linkScheme
	}
	if o.watch {
		cfg.Watch.Enabled = true
	}
	return cfg, cfg.Validate()
}

// resolveDataset maps a dataset flag to a path: a configured name, else a
// path as given. Without a flag the first configured dataset is used.
func resolveDataset(cfg config.Config, name string) (string, error) {
	if name == "" {
		if len(cfg.Datasets) == 0 {
			return "", fmt.Errorf("no dataset given and none configured in %s", config.ConfigPath())
		}
		return cfg.Datasets[0].ResolvedPath(), nil
	}
	if d := cfg.FindDataset(name); d != nil {
		return d.ResolvedPath(), nil
	}
	if _, err := os.Stat(name); err != nil {
		return "", fmt.Errorf("dataset %q is neither configured nor a file: %w", name, err)
	}
	return name, nil
}

// session is one loaded dataset bound to an engine.
type session struct {
	eng    *engine.Engine
	mode   model.Mode
	path   string // as given: a file or a directory
	source datasource.DataSource
	ds     model.Dataset

	memory *datasource.MemoryExpander
	sqlite *datasource.SQLiteExpander
}

func openSession(path string, mode model.Mode, opts engine.Options) (*session, error) {
	s := &session{mode: mode, path: path}
	if err := s.read(); err != nil {
		return nil, err
	}

	var service expand.Expander
	if s.source.Format == datasource.FormatSQLite {
		sq, err := datasource.NewSQLiteExpander(s.source.Path, mode)
		if err != nil {
			return nil, err
		}
		s.sqlite = sq
		service = sq
	} else {
		s.memory = datasource.NewMemoryExpander(s.ds)
		service = s.memory
	}

	eng, err := engine.New(service, nil, opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.eng = eng
	if err := eng.Load(mode, s.ds); err != nil {
		s.Close()
		return nil, err
	}
	if err := eng.SetActive(mode); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// read loads the dataset from disk without touching the engine.
func (s *session) read() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		ds, src, err := datasource.LoadDir(s.path, s.mode)
		if err != nil {
			return err
		}
		s.ds, s.source = ds, src
		return nil
	}
	src, err := datasource.SourceFor(s.path)
	if err != nil {
		return err
	}
	ds, err := datasource.LoadFromSource(src, s.mode)
	if err != nil {
		return err
	}
	s.ds, s.source = ds, src
	return nil
}

func (s *session) Close() {
	if s.sqlite != nil {
		if err := s.sqlite.Close(); err != nil {
			debug.Log("glens: closing %s: %v", s.source.Path, err)
		}
	}
	if s.eng != nil {
		for _, m := range model.Modes() {
			s.eng.Layout(m).StopForce()
		}
	}
}

// apply runs the command-line operations in a fixed order: filter, select,
// expand, remove, trim.
func (s *session) apply(ctx context.Context, o options, expandMode model.ExpandMode, stderr io.Writer) error {
	if o.minDegree >= 0 || o.maxDegree >= 0 {
		lo, hi := o.minDegree, o.maxDegree
		if lo < 0 {
			lo = 0
		}
		if hi < 0 {
			hi = maxDegree(s.eng)
		}
		if err := s.eng.FilterNodesByDegree(lo, hi); err != nil {
			return err
		}
	}

	var selection []string
	if o.selectIDs != "" {
		selection = append(selection, splitList(o.selectIDs)...)
	}
	if o.where != "" {
		q, err := parseWhere(o.where)
		if err != nil {
			return err
		}
		ids, err := s.eng.FilterNodesWithValue(q)
		if err != nil {
			return err
		}
		selection = append(selection, ids...)
	}
	if len(selection) > 0 {
		if err := s.eng.SetSelection(selection); err != nil {
			return err
		}
	}

	if o.expandSeeds != "" {
		seeds := splitList(o.expandSeeds)
		if o.expandSeeds == "selected" {
			seeds = selection
		}
		res, err := s.eng.Expand(ctx, seeds, expandMode)
		if err != nil {
			return fmt.Errorf("expand: %w", err)
		}
		if res.Stale {
			fmt.Fprintln(stderr, "expand: view changed before the response arrived; nothing merged")
		} else {
			debug.Log("glens: expanded %v: %+v", seeds, res.Stats)
			if n := len(res.Stats.Rejected); n > 0 {
				fmt.Fprintf(stderr, "expand: %d returned nodes did not qualify\n", n)
			}
		}
	}

	if o.remove {
		if _, err := s.eng.RemoveSelection(); err != nil {
			return err
		}
	}
	if o.trim {
		if _, err := s.eng.TrimNetwork(); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) print(out *printer, jsonOut bool) error {
	snap, err := s.eng.Snapshot(s.mode)
	if err != nil {
		return err
	}
	if jsonOut {
		return out.json(snap)
	}
	out.summary(s.source, snap, s.eng.Palette(s.mode))
	return nil
}

func (s *session) saveSnapshot(path string) error {
	snap, err := s.eng.Snapshot(s.mode)
	if err != nil {
		return err
	}
	pal := s.eng.Palette(s.mode)
	return export.SaveSnapshot(snap, export.SnapshotOptions{
		Path:   path,
		Title:  fmt.Sprintf("glens · %s · %s", s.mode, filepath.Base(s.path)),
		Theme:  pal.Nodes.Theme,
		Legend: pal.Nodes.Legend(),
	})
}

// watch reloads the dataset into the engine whenever its file changes,
// until ctx is done.
func (s *session) watch(ctx context.Context, wc config.WatchConfig, out *printer, jsonOut bool, stderr io.Writer) error {
	w, err := watcher.New([]string{s.source.Path},
		watcher.WithDebounceDuration(wc.Debounce),
		watcher.WithPollInterval(wc.PollInterval),
		watcher.WithForcePoll(wc.ForcePoll),
		watcher.WithOnError(func(path string, err error) {
			fmt.Fprintf(stderr, "watch %s: %v\n", path, err)
		}),
	)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()
	fmt.Fprintf(stderr, "watching %s (polling=%v)\n", s.source.Path, w.IsPolling())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Changed():
			if err := s.reload(out, jsonOut); err != nil {
				metrics.ReloadsTotal.WithLabelValues("error").Inc()
				fmt.Fprintf(stderr, "reload failed, keeping the previous view: %v\n", err)
				continue
			}
			metrics.ReloadsTotal.WithLabelValues("ok").Inc()
		}
	}
}

// reload re-reads the dataset and replaces the view. A malformed file leaves
// the loaded view in place.
func (s *session) reload(out *printer, jsonOut bool) error {
	prev := s.ds
	prevSource := s.source
	if err := s.read(); err != nil {
		return err
	}
	if err := s.eng.Load(s.mode, s.ds); err != nil {
		s.ds, s.source = prev, prevSource
		return err
	}
	if s.memory != nil {
		s.memory.Reset(s.ds)
	}
	out.changes(datasource.Diff(prev, s.ds))
	return s.print(out, jsonOut)
}

func maxDegree(e *engine.Engine) int {
	hi := 0
	_ = e.Store().Read(e.Active(), func(v *graph.View) {
		hi = v.Meta().MaxDegree
	})
	return hi
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseWhere turns "prop=value" into a query. Values that parse as numbers
// match numerically.
func parseWhere(s string) (graph.ValueQuery, error) {
	prop, raw, ok := strings.Cut(s, "=")
	prop = strings.TrimSpace(prop)
	if !ok || prop == "" {
		return graph.ValueQuery{}, fmt.Errorf("-where wants property=value, got %q", s)
	}
	raw = strings.TrimSpace(raw)
	var value any = raw
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		value = f
	}
	return graph.ValueQuery{Property: prop, Value: value}, nil
}
