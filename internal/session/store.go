// Package session persists staged import state between upload and final
// import. Sessions are SQLite rows holding a JSON document, bounded by a
// TTL, with read-modify-write atomicity per store.
package session

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/onliops/inventoryd/internal/log"
	"github.com/onliops/inventoryd/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// ErrSessionNotFound covers both a missing and an expired session; callers
// treat the two identically (404-equivalent).
var ErrSessionNotFound = errors.New("import session not found or expired")

// Store is the TTL-bounded session store.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	ttl time.Duration

	now func() time.Time // test hook
}

// NewStore opens (or creates) the session database under dataDir.
func NewStore(dataDir string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	dbPath := filepath.Join(dataDir, "sessions.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to session database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

// Close closes the backing database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create persists a new session and starts its TTL clock.
func (s *Store) Create(sess *model.ImportSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	now := s.now()
	_, err = s.db.Exec(
		`INSERT INTO import_sessions (id, document, expires_at, updated_at) VALUES (?, ?, ?, ?)`,
		sess.ID, string(doc), now.Add(s.ttl).Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("creating session %s: %w", sess.ID, err)
	}
	return nil
}

// Get loads a session. Expired rows are treated as absent and removed
// along with their uploaded file.
func (s *Store) Get(id string) (*model.ImportSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

// get assumes the store lock is held.
func (s *Store) get(id string) (*model.ImportSession, error) {
	var doc string
	var expiresAt int64
	err := s.db.QueryRow(
		`SELECT document, expires_at FROM import_sessions WHERE id = ?`, id,
	).Scan(&doc, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	var sess model.ImportSession
	if err := json.Unmarshal([]byte(doc), &sess); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}

	if s.now().Unix() >= expiresAt {
		s.remove(&sess)
		return nil, ErrSessionNotFound
	}

	return &sess, nil
}

// Update applies fn to the current session document and re-persists it as
// one atomic read-modify-write; concurrent updates to the same id cannot
// interleave. The TTL is refreshed on every successful update.
func (s *Store) Update(id string, fn func(*model.ImportSession) error) (*model.ImportSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}

	doc, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	now := s.now()
	_, err = s.db.Exec(
		`UPDATE import_sessions SET document = ?, expires_at = ?, updated_at = ? WHERE id = ?`,
		string(doc), now.Add(s.ttl).Unix(), now.Unix(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating session %s: %w", id, err)
	}
	return sess, nil
}

// Delete removes the session row and its uploaded source file. Deleting an
// unknown session is a no-op so terminal cleanup can be retried safely.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.get(id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.remove(sess)
}

// remove assumes the store lock is held.
func (s *Store) remove(sess *model.ImportSession) error {
	if sess.FilePath != "" {
		if err := os.Remove(sess.FilePath); err != nil && !os.IsNotExist(err) {
			log.Warn("Failed to remove uploaded file", "session_id", sess.ID, "path", sess.FilePath, "error", err)
		}
	}
	if _, err := s.db.Exec(`DELETE FROM import_sessions WHERE id = ?`, sess.ID); err != nil {
		return fmt.Errorf("deleting session %s: %w", sess.ID, err)
	}
	return nil
}

// Sweep deletes every expired session and its uploaded file, returning how
// many were removed.
func (s *Store) Sweep() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT document FROM import_sessions WHERE expires_at <= ?`, s.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("listing expired sessions: %w", err)
	}
	defer rows.Close()

	var expired []model.ImportSession
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return 0, err
		}
		var sess model.ImportSession
		if err := json.Unmarshal([]byte(doc), &sess); err != nil {
			log.Warn("Dropping undecodable session document", "error", err)
			continue
		}
		expired = append(expired, sess)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	removed := 0
	for i := range expired {
		if err := s.remove(&expired[i]); err != nil {
			log.Warn("Failed to sweep session", "session_id", expired[i].ID, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
