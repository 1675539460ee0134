package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	mode TEXT PRIMARY KEY,
	query TEXT,
	anchor_properties TEXT
);
CREATE TABLE IF NOT EXISTS nodes (
	mode TEXT NOT NULL,
	seq INTEGER NOT NULL,
	id TEXT NOT NULL,
	label TEXT,
	feature TEXT,
	component INTEGER,
	entries TEXT,
	properties TEXT,
	PRIMARY KEY (mode, id)
);
CREATE TABLE IF NOT EXISTS links (
	mode TEXT NOT NULL,
	seq INTEGER NOT NULL,
	source TEXT NOT NULL,
	target TEXT NOT NULL,
	label TEXT,
	feature TEXT,
	weight REAL,
	count INTEGER
);
CREATE INDEX IF NOT EXISTS links_source ON links (mode, source);
CREATE INDEX IF NOT EXISTS links_target ON links (mode, target);
CREATE TABLE IF NOT EXISTS components (
	mode TEXT NOT NULL,
	id INTEGER NOT NULL,
	visible INTEGER,
	PRIMARY KEY (mode, id)
);
`

// SQLiteReader provides read access to a dataset database
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens a dataset database for reading
func OpenSQLite(path string) (*SQLiteReader, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("datasource: %s on %s: %v", pragma, path, err)
		}
	}

	return &SQLiteReader{db: db, path: path}, nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Path returns the database file.
func (r *SQLiteReader) Path() string { return r.path }

// LoadDataset reads the full dataset stored for mode.
func (r *SQLiteReader) LoadDataset(mode model.Mode) (model.Dataset, error) {
	return r.LoadDatasetContext(context.Background(), mode)
}

// LoadDatasetContext is LoadDataset with a context.
func (r *SQLiteReader) LoadDatasetContext(ctx context.Context, mode model.Mode) (model.Dataset, error) {
	ds := model.Dataset{Mode: mode}

	var query, anchors sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT query, anchor_properties FROM meta WHERE mode = ?`, string(mode)).Scan(&query, &anchors)
	found := err != sql.ErrNoRows
	switch {
	case !found:
	case err != nil:
		return ds, fmt.Errorf("reading meta: %w", err)
	default:
		ds.Query = query.String
		ds.AnchorProperties = parseJSONStringArray(anchors.String)
	}

	nodes, err := r.queryNodes(ctx, `SELECT id, label, feature, component, entries, properties
		FROM nodes WHERE mode = ? ORDER BY seq`, string(mode))
	if err != nil {
		return ds, err
	}
	ds.Nodes = nodes

	links, err := r.queryLinks(ctx, `SELECT source, target, label, feature, weight, count
		FROM links WHERE mode = ? ORDER BY seq`, string(mode))
	if err != nil {
		return ds, err
	}
	ds.Links = links

	rows, err := r.db.QueryContext(ctx, `SELECT id, visible FROM components WHERE mode = ? ORDER BY id`, string(mode))
	if err != nil {
		return ds, fmt.Errorf("reading components: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c model.ComponentRecord
		var visible sql.NullBool
		if err := rows.Scan(&c.ID, &visible); err != nil {
			return ds, fmt.Errorf("reading components: %w", err)
		}
		if visible.Valid {
			v := visible.Bool
			c.Visible = &v
		}
		ds.Components = append(ds.Components, c)
	}
	if err := rows.Err(); err != nil {
		return ds, fmt.Errorf("error iterating components: %w", err)
	}

	if !found && len(ds.Nodes) == 0 {
		return ds, fmt.Errorf("database %s has no %s view", r.path, mode)
	}
	return ds, nil
}

// CountNodes returns the number of nodes stored for mode.
func (r *SQLiteReader) CountNodes(mode model.Mode) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM nodes WHERE mode = ?`, string(mode)).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// LinksOf returns the link records touching id, one record per node pair.
func (r *SQLiteReader) LinksOf(ctx context.Context, mode model.Mode, id string) ([]model.LinkRecord, error) {
	return r.queryLinks(ctx, `SELECT source, target, label, feature, weight, count
		FROM links WHERE mode = ? AND (source = ? OR target = ?) ORDER BY seq`, string(mode), id, id)
}

// NodesByID returns the stored records for ids, in storage order. Unknown
// ids are skipped.
func (r *SQLiteReader) NodesByID(ctx context.Context, mode model.Mode, ids []string) ([]model.NodeRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(mode))
	for _, id := range ids {
		args = append(args, id)
	}
	q := `SELECT id, label, feature, component, entries, properties FROM nodes
		WHERE mode = ? AND id IN (?` + strings.Repeat(",?", len(ids)-1) + `) ORDER BY seq`
	return r.queryNodes(ctx, q, args...)
}

func (r *SQLiteReader) queryNodes(ctx context.Context, query string, args ...any) ([]model.NodeRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading nodes: %w", err)
	}
	defer rows.Close()

	var nodes []model.NodeRecord
	for rows.Next() {
		var n model.NodeRecord
		var label, feature, entries, props sql.NullString
		var component sql.NullInt64
		if err := rows.Scan(&n.ID, &label, &feature, &component, &entries, &props); err != nil {
			return nil, fmt.Errorf("reading nodes: %w", err)
		}
		n.Label = label.String
		n.Feature = feature.String
		n.Component = int(component.Int64)
		n.Entries = parseJSONStringArray(entries.String)
		if props.Valid && props.String != "" && props.String != "null" {
			if err := json.Unmarshal([]byte(props.String), &n.Properties); err != nil {
				return nil, fmt.Errorf("node %s: bad properties: %w", n.ID, err)
			}
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

// queryLinks groups connection rows by node pair, keeping first-seen order.
func (r *SQLiteReader) queryLinks(ctx context.Context, query string, args ...any) ([]model.LinkRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading links: %w", err)
	}
	defer rows.Close()

	var links []model.LinkRecord
	index := make(map[model.LinkKey]int)
	for rows.Next() {
		var source, target string
		var label, feature sql.NullString
		var weight sql.NullFloat64
		var count sql.NullInt64
		if err := rows.Scan(&source, &target, &label, &feature, &weight, &count); err != nil {
			return nil, fmt.Errorf("reading links: %w", err)
		}
		c := model.Connection{
			Label:   label.String,
			Feature: feature.String,
			Weight:  weight.Float64,
			Count:   int(count.Int64),
		}
		key := model.NewLinkKey(source, target)
		if i, ok := index[key]; ok {
			links[i].Connections = append(links[i].Connections, c)
			continue
		}
		index[key] = len(links)
		links = append(links, model.LinkRecord{Source: source, Target: target, Connections: []model.Connection{c}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}
	return links, nil
}

// SaveSQLite writes datasets into the database at path, replacing any view
// already stored for the same mode.
func SaveSQLite(path string, datasets ...model.Dataset) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, ds := range datasets {
		if !ds.Mode.IsValid() {
			return fmt.Errorf("dataset has no valid mode (%q)", ds.Mode)
		}
		if err := saveView(tx, ds); err != nil {
			return fmt.Errorf("saving %s view: %w", ds.Mode, err)
		}
	}
	return tx.Commit()
}

func saveView(tx *sql.Tx, ds model.Dataset) error {
	mode := string(ds.Mode)
	for _, table := range []string{"meta", "nodes", "links", "components"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE mode = ?`, mode); err != nil {
			return err
		}
	}

	anchors, err := json.Marshal(ds.AnchorProperties)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO meta (mode, query, anchor_properties) VALUES (?, ?, ?)`,
		mode, ds.Query, string(anchors)); err != nil {
		return err
	}

	for i, n := range ds.Nodes {
		entries, err := json.Marshal(n.Entries)
		if err != nil {
			return err
		}
		props, err := json.Marshal(n.Properties)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO nodes (mode, seq, id, label, feature, component, entries, properties)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			mode, i, n.ID, n.Label, n.Feature, n.Component, string(entries), string(props)); err != nil {
			return err
		}
	}

	seq := 0
	for _, l := range ds.Links {
		conns := l.Connections
		if len(conns) == 0 {
			conns = []model.Connection{{}}
		}
		for _, c := range conns {
			if _, err := tx.Exec(`INSERT INTO links (mode, seq, source, target, label, feature, weight, count)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				mode, seq, l.Source, l.Target, c.Label, c.Feature, c.Weight, c.Count); err != nil {
				return err
			}
			seq++
		}
	}

	for _, c := range ds.Components {
		var visible any
		if c.Visible != nil {
			visible = *c.Visible
		}
		if _, err := tx.Exec(`INSERT INTO components (mode, id, visible) VALUES (?, ?, ?)`,
			mode, c.ID, visible); err != nil {
			return err
		}
	}
	return nil
}

// parseJSONStringArray parses a JSON array of strings
func parseJSONStringArray(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" || s == "[]" {
		return nil
	}

	var result []string
	if err := json.Unmarshal([]byte(s), &result); err != nil {
		// Fallback to simple parser for malformed JSON
		s = strings.TrimPrefix(s, "[")
		s = strings.TrimSuffix(s, "]")
		for _, item := range strings.Split(s, ",") {
			item = strings.TrimSpace(item)
			item = strings.Trim(item, `"`)
			if item != "" {
				result = append(result, item)
			}
		}
	}
	return result
}
