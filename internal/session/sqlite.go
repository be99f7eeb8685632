package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		title      TEXT,
		subjects   TEXT,
		grades     TEXT,
		language   TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);

	CREATE TABLE IF NOT EXISTS messages (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		intent     TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now

	subjects, grades, err := marshalProfile(sess)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, subjects, grades, language, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, nullable(sess.Title), subjects, grades, nullable(sess.Language),
		sess.CreatedAt.Format(time.RFC3339), sess.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrEmptySessionID
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, subjects, grades, language, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return sess, err
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now().UTC()

	subjects, grades, err := marshalProfile(sess)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, subjects = ?, grades = ?, language = ?, updated_at = ?
		 WHERE id = ?`,
		nullable(sess.Title), subjects, grades, nullable(sess.Language),
		sess.UpdatedAt.Format(time.RFC3339), sess.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, subjects, grades, language, created_at, updated_at
		 FROM sessions ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, m *Message) error {
	if m.SessionID == "" {
		return ErrEmptySessionID
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, intent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, string(m.Role), m.Content, nullable(m.Intent),
		m.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	// Touch the parent session so listing reflects activity.
	s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`,
		m.CreatedAt.Format(time.RFC3339Nano), m.SessionID)
	return nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	if limit <= 0 {
		limit = 50
	}

	// Fetch the newest messages, then return them oldest first.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, intent, created_at
		 FROM messages WHERE session_id = ?
		 ORDER BY created_at DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var intent sql.NullString
		var role, createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &intent, &createdAt); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		if intent.Valid {
			m.Intent = intent.String
		}
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var title, subjects, grades, language sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&sess.ID, &title, &subjects, &grades, &language, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if title.Valid {
		sess.Title = title.String
	}
	if language.Valid {
		sess.Language = language.String
	}
	if subjects.Valid {
		json.Unmarshal([]byte(subjects.String), &sess.Subjects)
	}
	if grades.Valid {
		json.Unmarshal([]byte(grades.String), &sess.Grades)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &sess, nil
}

func marshalProfile(sess *Session) (subjects, grades *string, err error) {
	if len(sess.Subjects) > 0 {
		b, err := json.Marshal(sess.Subjects)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal subjects: %w", err)
		}
		v := string(b)
		subjects = &v
	}
	if len(sess.Grades) > 0 {
		b, err := json.Marshal(sess.Grades)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal grades: %w", err)
		}
		v := string(b)
		grades = &v
	}
	return subjects, grades, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
