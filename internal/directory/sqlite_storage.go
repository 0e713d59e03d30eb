package directory

import (
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/infinoted/libinfinity/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStorage is the server-side directory Storage, following the
// teacher's pkg/database shape: a *sql.DB plus embedded, numbered
// migrations applied once at open time.
type SQLiteStorage struct {
	db *sql.DB
}

func OpenSQLiteStorage(uri string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, fmt.Errorf("directory: open database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("directory: migrate: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Close() error { return s.db.Close() }

func (s *SQLiteStorage) Children(parent NodeID) ([]StoredNode, error) {
	rows, err := s.db.Query(
		"SELECT id, name, type, session_type FROM node WHERE parent_id = ? ORDER BY id", parent)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	var out []StoredNode
	for rows.Next() {
		var n StoredNode
		var typ int
		if err := rows.Scan(&n.ID, &n.Name, &typ, &n.SessionType); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		n.Type = NodeType(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) CreateNode(parent NodeID, name string, typ NodeType, sessionType string) (NodeID, error) {
	res, err := s.db.Exec(
		"INSERT INTO node (parent_id, name, type, session_type) VALUES (?, ?, ?, ?)",
		parent, name, int(typ), sessionType)
	if err != nil {
		return 0, fmt.Errorf("insert node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return NodeID(id), nil
}

func (s *SQLiteStorage) DeleteNode(id NodeID) error {
	_, err := s.db.Exec("DELETE FROM node WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	_, err = s.db.Exec("DELETE FROM sheet WHERE node_id = ?", id)
	if err != nil {
		return fmt.Errorf("delete sheets: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) RenameNode(id NodeID, name string) error {
	_, err := s.db.Exec("UPDATE node SET name = ? WHERE id = ?", name, id)
	if err != nil {
		return fmt.Errorf("rename node: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) SetSheet(node NodeID, account string, row SheetRow) error {
	_, err := s.db.Exec(`
		INSERT INTO sheet (node_id, account, mask, perms) VALUES (?, ?, ?, ?)
		ON CONFLICT(node_id, account) DO UPDATE SET mask = excluded.mask, perms = excluded.perms
	`, node, account, row.Mask, row.Perms)
	if err != nil {
		return fmt.Errorf("set sheet: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Sheets(node NodeID) (map[string]SheetRow, error) {
	rows, err := s.db.Query("SELECT account, mask, perms FROM sheet WHERE node_id = ?", node)
	if err != nil {
		return nil, fmt.Errorf("query sheets: %w", err)
	}
	defer rows.Close()

	out := make(map[string]SheetRow)
	for rows.Next() {
		var account string
		var row SheetRow
		if err := rows.Scan(&account, &row.Mask, &row.Perms); err != nil {
			return nil, fmt.Errorf("scan sheet: %w", err)
		}
		out[account] = row
	}
	return out, rows.Err()
}

// migrate applies every pending migration in migrations/, tracked in a
// schema_migrations table, mirroring pkg/database's migration runner.
func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			filename TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	applied := 0
	for i, entry := range entries {
		version := i + 1
		if version <= currentVersion {
			continue
		}
		filename := entry.Name()
		logger.Info("directory: applying migration %d: %s", version, filename)

		content, err := migrationsFS.ReadFile(filepath.Join("migrations", filename))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", filename, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("migration %s: %w", filename, err)
		}
		_, err = db.Exec(
			"INSERT INTO schema_migrations (version, filename, applied_at) VALUES (?, ?, ?)",
			version, filename, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("record migration %s: %w", filename, err)
		}
		applied++
	}
	if applied > 0 {
		logger.Info("directory: applied %d migration(s)", applied)
	}
	return nil
}
