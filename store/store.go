// Package store persists built rule graphs as SQLite snapshots. Each build
// is kept under its own id so earlier graphs stay loadable.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/brunobiangulo/rulegraph/graph"
)

// ErrBuildNotFound is returned when a snapshot id is unknown or the store
// holds no builds.
var ErrBuildNotFound = errors.New("store: build not found")

// timeLayout keeps created_at fixed-width so it sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Build describes one stored graph snapshot.
type Build struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	NodeCount   int               `json:"node_count"`
	EdgeCount   int               `json:"edge_count"`
	Fingerprint string            `json:"fingerprint"`
	Stats       *graph.Stats      `json:"statistics,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Store wraps the SQLite database for graph snapshots.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema.
func New(dbPath string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Snapshot operations ---

// SaveGraph writes g as build b in a single transaction. A zero CreatedAt
// is set to now. Saving an existing id replaces that snapshot.
func (s *Store) SaveGraph(ctx context.Context, b Build, g *graph.Graph) error {
	if b.ID == "" {
		return errors.New("store: build id is required")
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	stats, err := marshalNullable(b.Stats)
	if err != nil {
		return fmt.Errorf("encoding statistics: %w", err)
	}
	meta, err := marshalNullable(b.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM builds WHERE id = ?", b.ID); err != nil {
			return fmt.Errorf("clearing build: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO builds (id, created_at, node_count, edge_count, statistics, metadata, fingerprint)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, b.ID, b.CreatedAt.UTC().Format(timeLayout), g.NodeCount(), g.EdgeCount(), stats, meta, Fingerprint(g)); err != nil {
			return fmt.Errorf("inserting build: %w", err)
		}

		ruleStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO rules (build_id, node_id, system, rule, position, label, title, category,
				word_count, page_count, filing_relevance, url, classification,
				requirements, deadlines, cross_refs, key_provisions,
				county, judge, department, judge_specific, department_specific)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer ruleStmt.Close()

		for i, n := range g.Nodes() {
			buckets, err := marshalBuckets(n)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", n.ID, err)
			}
			if _, err := ruleStmt.ExecContext(ctx,
				b.ID, n.ID.String(), string(n.ID.System), n.ID.Rule, i, n.Label, n.Title, n.Category,
				n.WordCount, n.PageCount, n.FilingRelevance, n.URL, n.Classification,
				buckets[0], buckets[1], buckets[2], buckets[3],
				n.County, n.Judge, n.Department, n.JudgeSpecific, n.DepartmentSpecific,
			); err != nil {
				return fmt.Errorf("inserting rule %s: %w", n.ID, err)
			}
		}

		edgeStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO relationships (build_id, source_id, target_id, type, weight, description, strength, relation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer edgeStmt.Close()

		for _, e := range g.Edges() {
			if _, err := edgeStmt.ExecContext(ctx,
				b.ID, e.Source.String(), e.Target.String(), string(e.Type), e.Weight(),
				e.Description, e.Strength, e.Relation,
			); err != nil {
				return fmt.Errorf("inserting relationship %s -> %s: %w", e.Source, e.Target, err)
			}
		}
		return nil
	})
}

// LoadGraph rebuilds the graph stored under id. An empty id loads the most
// recent build.
func (s *Store) LoadGraph(ctx context.Context, id string) (*graph.Graph, *Build, error) {
	if id == "" {
		latest, err := s.LatestBuild(ctx)
		if err != nil {
			return nil, nil, err
		}
		id = latest.ID
	}

	b, err := s.GetBuild(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	g := graph.New()
	if err := s.loadRules(ctx, id, g); err != nil {
		return nil, nil, err
	}
	if err := s.loadRelationships(ctx, id, g); err != nil {
		return nil, nil, err
	}
	return g, b, nil
}

func (s *Store) loadRules(ctx context.Context, id string, g *graph.Graph) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, label, title, category, word_count, page_count, filing_relevance,
			url, classification, requirements, deadlines, cross_refs, key_provisions,
			county, judge, department, judge_specific, department_specific
		FROM rules WHERE build_id = ? ORDER BY position
	`, id)
	if err != nil {
		return fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			nodeID, label, category           string
			title, url, classification        sql.NullString
			county, judge, department         sql.NullString
			reqs, deadlines, refs, provisions sql.NullString
			n                                 graph.Node
		)
		if err := rows.Scan(&nodeID, &label, &title, &category, &n.WordCount, &n.PageCount,
			&n.FilingRelevance, &url, &classification, &reqs, &deadlines, &refs, &provisions,
			&county, &judge, &department, &n.JudgeSpecific, &n.DepartmentSpecific); err != nil {
			return err
		}
		nid, err := graph.ParseNodeID(nodeID)
		if err != nil {
			return fmt.Errorf("stored rule: %w", err)
		}
		node := graph.NewNode(nid, title.String)
		node.Label = label
		node.Category = category
		node.WordCount = n.WordCount
		node.PageCount = n.PageCount
		node.FilingRelevance = n.FilingRelevance
		node.URL = url.String
		node.Classification = classification.String
		node.County = county.String
		node.Judge = judge.String
		node.Department = department.String
		node.JudgeSpecific = n.JudgeSpecific
		node.DepartmentSpecific = n.DepartmentSpecific
		for dst, src := range map[*[]string]sql.NullString{
			&node.Requirements:  reqs,
			&node.Deadlines:     deadlines,
			&node.CrossRefs:     refs,
			&node.KeyProvisions: provisions,
		} {
			if err := unmarshalNullable(src, dst); err != nil {
				return fmt.Errorf("decoding %s: %w", nodeID, err)
			}
		}
		g.AddNode(node)
	}
	return rows.Err()
}

func (s *Store) loadRelationships(ctx context.Context, id string, g *graph.Graph) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, target_id, type, description, strength, relation
		FROM relationships WHERE build_id = ? ORDER BY id
	`, id)
	if err != nil {
		return fmt.Errorf("querying relationships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			src, dst, typ         string
			description, relation sql.NullString
			strength              int
		)
		if err := rows.Scan(&src, &dst, &typ, &description, &strength, &relation); err != nil {
			return err
		}
		e := graph.Edge{Description: description.String, Strength: strength, Relation: relation.String}
		if e.Source, err = graph.ParseNodeID(src); err != nil {
			return fmt.Errorf("stored relationship: %w", err)
		}
		if e.Target, err = graph.ParseNodeID(dst); err != nil {
			return fmt.Errorf("stored relationship: %w", err)
		}
		if e.Type, err = graph.ParseEdgeType(typ); err != nil {
			return fmt.Errorf("stored relationship: %w", err)
		}
		if _, err := g.AddEdge(e); err != nil {
			return fmt.Errorf("stored relationship: %w", err)
		}
	}
	return rows.Err()
}

// GetBuild returns the metadata of one build.
func (s *Store) GetBuild(ctx context.Context, id string) (*Build, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, node_count, edge_count, statistics, metadata, fingerprint
		FROM builds WHERE id = ?
	`, id)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBuildNotFound, id)
	}
	return b, err
}

// LatestBuild returns the most recently created build.
func (s *Store) LatestBuild(ctx context.Context) (*Build, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, node_count, edge_count, statistics, metadata, fingerprint
		FROM builds ORDER BY created_at DESC, rowid DESC LIMIT 1
	`)
	b, err := scanBuild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBuildNotFound
	}
	return b, err
}

// ListBuilds returns every build, newest first, without statistics.
func (s *Store) ListBuilds(ctx context.Context) ([]Build, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, node_count, edge_count, NULL, metadata, fingerprint
		FROM builds ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, *b)
	}
	return builds, rows.Err()
}

// DeleteBuild removes a build and, by cascade, its rules and relationships.
func (s *Store) DeleteBuild(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM builds WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrBuildNotFound, id)
	}
	return nil
}

// Prune keeps the newest keep builds and deletes the rest. It returns the
// number of builds removed.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM builds WHERE id NOT IN (
			SELECT id FROM builds ORDER BY created_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Fingerprint hashes the node ids and edge keys of g. Two graphs with the
// same structure share a fingerprint.
func Fingerprint(g *graph.Graph) string {
	h := sha256.New()
	for _, n := range g.Nodes() {
		h.Write([]byte(n.ID.String()))
		h.Write([]byte{0})
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(h, "%s|%s|%s", e.Source, e.Target, e.Type)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// --- helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (*Build, error) {
	var (
		b               Build
		created         string
		stats, meta, fp sql.NullString
	)
	if err := row.Scan(&b.ID, &created, &b.NodeCount, &b.EdgeCount, &stats, &meta, &fp); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("parsing build time %q: %w", created, err)
	}
	b.CreatedAt = t
	b.Fingerprint = fp.String
	if stats.Valid && stats.String != "" {
		b.Stats = new(graph.Stats)
		if err := json.Unmarshal([]byte(stats.String), b.Stats); err != nil {
			return nil, fmt.Errorf("decoding statistics: %w", err)
		}
	}
	if err := unmarshalNullable(meta, &b.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &b, nil
}

func marshalBuckets(n *graph.Node) ([4]any, error) {
	var out [4]any
	for i, bucket := range [][]string{n.Requirements, n.Deadlines, n.CrossRefs, n.KeyProvisions} {
		v, err := marshalNullable(bucket)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// marshalNullable encodes v as JSON text, or NULL for nil and empty values.
func marshalNullable[T any](v T) (any, error) {
	switch x := any(v).(type) {
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
	case map[string]string:
		if len(x) == 0 {
			return nil, nil
		}
	case *graph.Stats:
		if x == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalNullable(s sql.NullString, dst any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
