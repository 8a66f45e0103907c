package hypergraph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id            TEXT PRIMARY KEY,
	content_type  TEXT NOT NULL,
	content       TEXT NOT NULL,
	device_id     TEXT NOT NULL,
	embedding     TEXT,
	version       INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	tombstoned_at TEXT
);

CREATE TABLE IF NOT EXISTS hyperedges (
	id            TEXT PRIMARY KEY,
	node_ids      TEXT NOT NULL,
	relation      TEXT NOT NULL,
	metadata      TEXT,
	version       INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	tombstoned_at TEXT
);

CREATE TABLE IF NOT EXISTS edge_nodes (
	edge_id TEXT NOT NULL,
	node_id TEXT NOT NULL,
	PRIMARY KEY (edge_id, node_id)
);

CREATE INDEX IF NOT EXISTS idx_edge_nodes_node ON edge_nodes(node_id);
CREATE INDEX IF NOT EXISTS idx_nodes_created ON nodes(created_at);
`

// SQLiteStorage is the durable Storage implementation, backed by an
// embedded sqlite database (pure-Go driver). Embeddings live in the row and
// are mirrored into the chromem vector index at open and on writes.
type SQLiteStorage struct {
	db    *sql.DB
	index *VectorIndex
}

// NewSQLiteStorage opens (or creates) the database at path and rebuilds the
// vector index from stored embeddings.
func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, dbErr("open", err)
	}
	// sqlite handles one writer; serializing the pool avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, dbErr("migrate", err)
	}

	index, err := NewVectorIndex()
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStorage{db: db, index: index}
	if err := s.rebuildIndex(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) rebuildIndex(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding FROM nodes WHERE embedding IS NOT NULL AND tombstoned_at IS NULL`)
	if err != nil {
		return dbErr("rebuild_index", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idStr string
		var embJSON sql.NullString
		if err := rows.Scan(&idStr, &embJSON); err != nil {
			return dbErr("rebuild_index", err)
		}
		if !embJSON.Valid {
			continue
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidUUID, idStr)
		}
		var emb []float32
		if err := json.Unmarshal([]byte(embJSON.String), &emb); err != nil {
			continue
		}
		if err := s.index.Upsert(ctx, id, emb); err != nil {
			return err
		}
	}
	return rows.Err()
}

func encodeTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func decodeTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func encodeNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func (s *SQLiteStorage) CreateNode(ctx context.Context, n Node) (Node, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Version == 0 {
		n.Version = 1
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.UpdatedAt = n.CreatedAt
	if err := n.Validate(); err != nil {
		return Node{}, err
	}

	var embJSON any
	if len(n.Embedding) > 0 {
		raw, err := json.Marshal(n.Embedding)
		if err != nil {
			return Node{}, dbErr("create_node", err)
		}
		embJSON = string(raw)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nodes (id, content_type, content, device_id, embedding, version, created_at, updated_at, tombstoned_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		n.ID.String(), string(n.ContentType), n.Content, n.DeviceID, embJSON,
		n.Version, encodeTime(n.CreatedAt), encodeTime(n.UpdatedAt))
	if err != nil {
		return Node{}, dbErr("create_node", err)
	}

	if err := s.index.Upsert(ctx, n.ID, n.Embedding); err != nil {
		return Node{}, err
	}
	return n, nil
}

func (s *SQLiteStorage) scanNode(row interface{ Scan(...any) error }) (Node, error) {
	var (
		n                    Node
		idStr, typeStr       string
		createdStr, updStr   string
		embJSON, tombstoneTS sql.NullString
	)
	if err := row.Scan(&idStr, &typeStr, &n.Content, &n.DeviceID, &embJSON, &n.Version, &createdStr, &updStr, &tombstoneTS); err != nil {
		return Node{}, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return Node{}, fmt.Errorf("%w: %s", ErrInvalidUUID, idStr)
	}
	n.ID = id
	n.ContentType = ContentType(typeStr)
	n.CreatedAt = decodeTime(createdStr)
	n.UpdatedAt = decodeTime(updStr)
	if embJSON.Valid {
		_ = json.Unmarshal([]byte(embJSON.String), &n.Embedding)
	}
	if tombstoneTS.Valid {
		ts := decodeTime(tombstoneTS.String)
		n.TombstonedAt = &ts
	}
	return n, nil
}

const nodeColumns = `id, content_type, content, device_id, embedding, version, created_at, updated_at, tombstoned_at`

func (s *SQLiteStorage) GetNode(ctx context.Context, id uuid.UUID) (Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+nodeColumns+` FROM nodes WHERE id = ? AND tombstoned_at IS NULL`, id.String())

	n, err := s.scanNode(row)
	if err == sql.ErrNoRows {
		return Node{}, nodeNotFound(id)
	}
	if err != nil {
		return Node{}, dbErr("get_node", err)
	}
	return n, nil
}

func (s *SQLiteStorage) UpdateNode(ctx context.Context, n Node) (Node, error) {
	if err := n.Validate(); err != nil {
		return Node{}, err
	}

	var embJSON any
	if len(n.Embedding) > 0 {
		raw, err := json.Marshal(n.Embedding)
		if err != nil {
			return Node{}, dbErr("update_node", err)
		}
		embJSON = string(raw)
	}

	n.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET content_type = ?, content = ?, device_id = ?, embedding = ?, version = ?, updated_at = ?
		 WHERE id = ? AND version = ? AND tombstoned_at IS NULL`,
		string(n.ContentType), n.Content, n.DeviceID, embJSON, n.Version, encodeTime(n.UpdatedAt),
		n.ID.String(), n.Version-1)
	if err != nil {
		return Node{}, dbErr("update_node", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return Node{}, dbErr("update_node", err)
	}
	if affected == 0 {
		stored, getErr := s.GetNode(ctx, n.ID)
		if getErr != nil {
			return Node{}, nodeNotFound(n.ID)
		}
		return Node{}, versionConflict("node", n.ID, n.Version-1, stored.Version)
	}

	if err := s.index.Upsert(ctx, n.ID, n.Embedding); err != nil {
		return Node{}, err
	}
	return n, nil
}

func (s *SQLiteStorage) DeleteNode(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET tombstoned_at = ?, updated_at = ? WHERE id = ? AND tombstoned_at IS NULL`,
		encodeTime(now), encodeTime(now), id.String())
	if err != nil {
		return dbErr("delete_node", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return dbErr("delete_node", err)
	}
	if affected == 0 {
		return nodeNotFound(id)
	}
	return s.index.Remove(ctx, id)
}

func (s *SQLiteStorage) ListNodes(ctx context.Context, filters *NodeFilters) ([]Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE tombstoned_at IS NULL`
	var args []any

	if filters != nil {
		if filters.ContentType != nil {
			query += ` AND content_type = ?`
			args = append(args, string(*filters.ContentType))
		}
		if filters.DeviceID != nil {
			query += ` AND device_id = ?`
			args = append(args, *filters.DeviceID)
		}
		if filters.CreatedAfter != nil {
			query += ` AND created_at > ?`
			args = append(args, encodeTime(*filters.CreatedAfter))
		}
		if filters.CreatedBefore != nil {
			query += ` AND created_at < ?`
			args = append(args, encodeTime(*filters.CreatedBefore))
		}
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr("list_nodes", err)
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		n, err := s.scanNode(rows)
		if err != nil {
			return nil, dbErr("list_nodes", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) BatchGetNodes(ctx context.Context, ids []uuid.UUID) ([]Node, error) {
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		n, err := s.GetNode(ctx, id)
		if err != nil {
			continue // missing ids are not an error
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *SQLiteStorage) CreateHyperedge(ctx context.Context, e Hyperedge) (Hyperedge, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Version == 0 {
		e.Version = 1
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.UpdatedAt = e.CreatedAt
	e.NodeIDs = dedupeIDs(e.NodeIDs)
	if err := e.Validate(); err != nil {
		return Hyperedge{}, err
	}

	for _, id := range e.NodeIDs {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, id.String()).Scan(&exists)
		if err == sql.ErrNoRows {
			return Hyperedge{}, nodeNotFound(id)
		}
		if err != nil {
			return Hyperedge{}, dbErr("create_hyperedge", err)
		}
	}

	nodeIDsJSON, _ := json.Marshal(e.NodeIDs)
	metaJSON, _ := json.Marshal(e.Metadata)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Hyperedge{}, dbErr("create_hyperedge", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO hyperedges (id, node_ids, relation, metadata, version, created_at, updated_at, tombstoned_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
		e.ID.String(), string(nodeIDsJSON), e.Relation, string(metaJSON),
		e.Version, encodeTime(e.CreatedAt), encodeTime(e.UpdatedAt)); err != nil {
		return Hyperedge{}, dbErr("create_hyperedge", err)
	}
	for _, id := range e.NodeIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO edge_nodes (edge_id, node_id) VALUES (?, ?)`, e.ID.String(), id.String()); err != nil {
			return Hyperedge{}, dbErr("create_hyperedge", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Hyperedge{}, dbErr("create_hyperedge", err)
	}
	return e, nil
}

func (s *SQLiteStorage) scanEdge(row interface{ Scan(...any) error }) (Hyperedge, error) {
	var (
		e                  Hyperedge
		idStr              string
		nodeIDsJSON        string
		metaJSON           sql.NullString
		createdStr, updStr string
		tombstoneTS        sql.NullString
	)
	if err := row.Scan(&idStr, &nodeIDsJSON, &e.Relation, &metaJSON, &e.Version, &createdStr, &updStr, &tombstoneTS); err != nil {
		return Hyperedge{}, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return Hyperedge{}, fmt.Errorf("%w: %s", ErrInvalidUUID, idStr)
	}
	e.ID = id
	if err := json.Unmarshal([]byte(nodeIDsJSON), &e.NodeIDs); err != nil {
		return Hyperedge{}, err
	}
	if metaJSON.Valid && metaJSON.String != "null" {
		_ = json.Unmarshal([]byte(metaJSON.String), &e.Metadata)
	}
	e.CreatedAt = decodeTime(createdStr)
	e.UpdatedAt = decodeTime(updStr)
	if tombstoneTS.Valid {
		ts := decodeTime(tombstoneTS.String)
		e.TombstonedAt = &ts
	}
	return e, nil
}

const edgeColumns = `id, node_ids, relation, metadata, version, created_at, updated_at, tombstoned_at`

func (s *SQLiteStorage) GetHyperedge(ctx context.Context, id uuid.UUID) (Hyperedge, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+edgeColumns+` FROM hyperedges WHERE id = ? AND tombstoned_at IS NULL`, id.String())

	e, err := s.scanEdge(row)
	if err == sql.ErrNoRows {
		return Hyperedge{}, edgeNotFound(id)
	}
	if err != nil {
		return Hyperedge{}, dbErr("get_hyperedge", err)
	}
	return e, nil
}

func (s *SQLiteStorage) UpdateHyperedge(ctx context.Context, e Hyperedge) (Hyperedge, error) {
	e.NodeIDs = dedupeIDs(e.NodeIDs)
	if err := e.Validate(); err != nil {
		return Hyperedge{}, err
	}

	nodeIDsJSON, _ := json.Marshal(e.NodeIDs)
	metaJSON, _ := json.Marshal(e.Metadata)
	e.UpdatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Hyperedge{}, dbErr("update_hyperedge", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE hyperedges SET node_ids = ?, relation = ?, metadata = ?, version = ?, updated_at = ?
		 WHERE id = ? AND version = ? AND tombstoned_at IS NULL`,
		string(nodeIDsJSON), e.Relation, string(metaJSON), e.Version, encodeTime(e.UpdatedAt),
		e.ID.String(), e.Version-1)
	if err != nil {
		return Hyperedge{}, dbErr("update_hyperedge", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		tx.Rollback()
		stored, getErr := s.GetHyperedge(ctx, e.ID)
		if getErr != nil {
			return Hyperedge{}, edgeNotFound(e.ID)
		}
		return Hyperedge{}, versionConflict("hyperedge", e.ID, e.Version-1, stored.Version)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM edge_nodes WHERE edge_id = ?`, e.ID.String()); err != nil {
		return Hyperedge{}, dbErr("update_hyperedge", err)
	}
	for _, id := range e.NodeIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO edge_nodes (edge_id, node_id) VALUES (?, ?)`, e.ID.String(), id.String()); err != nil {
			return Hyperedge{}, dbErr("update_hyperedge", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Hyperedge{}, dbErr("update_hyperedge", err)
	}
	return e, nil
}

func (s *SQLiteStorage) DeleteHyperedge(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE hyperedges SET tombstoned_at = ?, updated_at = ? WHERE id = ? AND tombstoned_at IS NULL`,
		encodeTime(now), encodeTime(now), id.String())
	if err != nil {
		return dbErr("delete_hyperedge", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return edgeNotFound(id)
	}
	return nil
}

func (s *SQLiteStorage) ListHyperedges(ctx context.Context, nodeID *uuid.UUID) ([]Hyperedge, error) {
	query := `SELECT ` + edgeColumns + ` FROM hyperedges WHERE tombstoned_at IS NULL`
	var args []any
	if nodeID != nil {
		query = `SELECT ` + qualifiedEdgeColumns + ` FROM hyperedges
			JOIN edge_nodes ON edge_nodes.edge_id = hyperedges.id
			WHERE edge_nodes.node_id = ? AND hyperedges.tombstoned_at IS NULL`
		args = append(args, nodeID.String())
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbErr("list_hyperedges", err)
	}
	defer rows.Close()

	var out []Hyperedge
	for rows.Next() {
		e, err := s.scanEdge(rows)
		if err != nil {
			return nil, dbErr("list_hyperedges", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const qualifiedEdgeColumns = `hyperedges.id, hyperedges.node_ids, hyperedges.relation, hyperedges.metadata, hyperedges.version, hyperedges.created_at, hyperedges.updated_at, hyperedges.tombstoned_at`

func (s *SQLiteStorage) QueryNeighborhood(ctx context.Context, start uuid.UUID, depth int) ([]NodeDistance, error) {
	startNode, err := s.GetNode(ctx, start)
	if err != nil {
		return nil, err
	}

	visited := map[uuid.UUID]int{start: 0}
	frontier := []uuid.UUID{start}
	result := []NodeDistance{{Node: startNode, Distance: 0}}

	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []uuid.UUID
		for _, id := range frontier {
			edges, err := s.ListHyperedges(ctx, &id)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				for _, neighbor := range e.NodeIDs {
					if _, seen := visited[neighbor]; seen {
						continue
					}
					n, err := s.GetNode(ctx, neighbor)
					if err != nil {
						visited[neighbor] = d // tombstoned neighbor still blocks revisits
						continue
					}
					visited[neighbor] = d
					next = append(next, neighbor)
					result = append(result, NodeDistance{Node: n, Distance: d})
				}
			}
		}
		frontier = next
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Distance != result[j].Distance {
			return result[i].Distance < result[j].Distance
		}
		return result[i].Node.CreatedAt.Before(result[j].Node.CreatedAt)
	})
	return result, nil
}

func (s *SQLiteStorage) GetConnectedNodes(ctx context.Context, edgeID uuid.UUID) ([]Node, error) {
	e, err := s.GetHyperedge(ctx, edgeID)
	if err != nil {
		return nil, err
	}
	return s.BatchGetNodes(ctx, e.NodeIDs)
}

func (s *SQLiteStorage) GetEdgesForNode(ctx context.Context, nodeID uuid.UUID) ([]Hyperedge, error) {
	if _, err := s.GetNode(ctx, nodeID); err != nil {
		return nil, err
	}
	return s.ListHyperedges(ctx, &nodeID)
}

func (s *SQLiteStorage) SemanticSearch(ctx context.Context, query []float32, limit int, threshold float32) ([]ScoredNode, error) {
	ids, scores, err := s.index.Query(ctx, query, limit, threshold)
	if err != nil {
		return nil, dbErr("semantic_search", err)
	}

	out := make([]ScoredNode, 0, len(ids))
	for i, id := range ids {
		n, err := s.GetNode(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, ScoredNode{Node: n, Score: scores[i]})
	}
	return out, nil
}

func (s *SQLiteStorage) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return dbErr("health_check", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('nodes', 'hyperedges')`).Scan(&count); err != nil {
		return dbErr("health_check", err)
	}
	if count != 2 {
		return fmt.Errorf("%w: schema incomplete", ErrInternal)
	}
	return nil
}

var _ Storage = (*SQLiteStorage)(nil)
