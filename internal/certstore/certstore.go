// Package certstore implements the client-side certificate pinning map
// from spec §4.K: a persistent hostname → fingerprint table consulted
// before accepting a server certificate. It follows the same
// sql.Open-plus-embedded-migrations shape the teacher's pkg/database used
// for document persistence (and internal/directory/sqlite_storage.go
// reuses for the node tree), since nothing in the retrieved pack offers a
// lighter-weight embedded key-value store for this domain.
package certstore

import (
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/infinoted/libinfinity/internal/acl"
	"github.com/infinoted/libinfinity/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the sqlite-backed pin table. A zero Store is not ready to use;
// call Open.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite file at uri and applies
// any pending migrations.
func Open(uri string) (*Store, error) {
	db, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, fmt.Errorf("certstore: open: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("certstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Lookup returns the pinned fingerprint for hostname, or ok=false if no
// pin is on file.
func (s *Store) Lookup(hostname string) (fingerprint []byte, ok bool, err error) {
	var fp []byte
	err = s.db.QueryRow("SELECT fingerprint FROM pin WHERE hostname = ?", hostname).Scan(&fp)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("certstore: lookup %s: %w", hostname, err)
	}
	return fp, true, nil
}

// Pin records fingerprint as the trusted certificate for hostname,
// overwriting any prior pin. Used for both PinAcceptAndPin and
// PinAcceptAndReplace outcomes from acl.DecidePin.
func (s *Store) Pin(hostname string, fingerprint []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO pin (hostname, fingerprint, pinned_at) VALUES (?, ?, ?)
		 ON CONFLICT(hostname) DO UPDATE SET fingerprint = excluded.fingerprint, pinned_at = excluded.pinned_at`,
		hostname, fingerprint, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("certstore: pin %s: %w", hostname, err)
	}
	return nil
}

// Unpin removes any pin on file for hostname, e.g. after a user rejects a
// replacement certificate.
func (s *Store) Unpin(hostname string) error {
	_, err := s.db.Exec("DELETE FROM pin WHERE hostname = ?", hostname)
	if err != nil {
		return fmt.Errorf("certstore: unpin %s: %w", hostname, err)
	}
	return nil
}

// PromptFunc asks the application to confirm an untrusted or replaced
// certificate out of band (the spec's "query user" step); it returns
// whether the user accepted.
type PromptFunc func(hostname string, offered []byte) bool

// Verify runs the full spec §4.K decision table for one TLS handshake:
// it looks up any existing pin, calls acl.DecidePin, invokes prompt only
// for the PinAskUser outcome, and applies the resulting store mutation.
// It returns whether the certificate should be accepted.
func (s *Store) Verify(hostname string, trustedByCA bool, offered []byte, hostnameMatchesCert bool, prompt PromptFunc) (bool, error) {
	pinned, hadPin, err := s.Lookup(hostname)
	if err != nil {
		return false, err
	}
	accept, pin := decideAndPin(hostname, pinned, hadPin, trustedByCA, offered, hostnameMatchesCert, prompt)
	if pin {
		return accept, s.Pin(hostname, offered)
	}
	return accept, nil
}

// decideAndPin is Verify's decision logic pulled out of the sqlite-backed
// Store so it can be exercised without an open database: given whatever
// Lookup already returned, it runs acl.DecidePin, resolves PinAskUser via
// prompt, and reports whether the caller still needs to persist a pin.
func decideAndPin(hostname string, pinned []byte, hadPin bool, trustedByCA bool, offered []byte, hostnameMatchesCert bool, prompt PromptFunc) (accept bool, shouldPin bool) {
	var pinnedArg []byte
	if hadPin {
		pinnedArg = pinned
	}
	outcome := acl.DecidePin(trustedByCA, pinnedArg, offered, hostnameMatchesCert)
	if outcome == acl.PinAskUser {
		accepted := prompt != nil && prompt(hostname, offered)
		outcome = acl.DecideAfterPrompt(accepted, hadPin)
	}
	switch outcome {
	case acl.PinAccept:
		return true, false
	case acl.PinAcceptAndPin, acl.PinAcceptAndReplace:
		return true, true
	default:
		return false, false
	}
}

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
		logger.Info("certstore: applying migration %d: %s", version, filename)

		content, err := migrationsFS.ReadFile(filepath.Join("migrations", filename))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", filename, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("migration %s: %w", filename, err)
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations (version, filename, applied_at) VALUES (?, ?, ?)",
			version, filename, time.Now().Unix(),
		); err != nil {
			return fmt.Errorf("record migration %s: %w", filename, err)
		}
		applied++
	}
	if applied > 0 {
		logger.Info("certstore: applied %d migration(s)", applied)
	}
	return nil
}
