// Package transcript persists dictation sessions to SQLite.
//
// Each session records the baseline it started from, every applied
// update with the operations it produced, and the final target text.
// The store is an audit trail and a debugging aid: a recorded session
// can be exported as a JSON packet and replayed against the engine.
package transcript

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound reports a session id with no stored record.
var ErrNotFound = errors.New("session not found")

// Schema for the transcript store.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at_ns   INTEGER NOT NULL,
    ended_at_ns     INTEGER,
    baseline_json   TEXT NOT NULL,
    final_text      TEXT
);

CREATE TABLE IF NOT EXISTS updates (
    session_id  INTEGER NOT NULL REFERENCES sessions(id),
    seq         INTEGER NOT NULL,
    pos         INTEGER NOT NULL,
    content     TEXT NOT NULL,
    deleted     INTEGER NOT NULL,
    inserted    TEXT NOT NULL,
    applied_ns  INTEGER NOT NULL,
    PRIMARY KEY (session_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_updates_session ON updates(session_id, seq);
`

// SessionRecord is one stored session.
type SessionRecord struct {
	ID        int64          `json:"id"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at,omitzero"`
	Baseline  map[int]string `json:"baseline"`
	FinalText string         `json:"final_text"`
}

// UpdateRecord is one applied update within a session.
type UpdateRecord struct {
	Seq      int       `json:"seq"`
	Pos      int       `json:"pos"`
	Content  string    `json:"content"`
	Deleted  int       `json:"deleted"`
	Inserted string    `json:"inserted"`
	Applied  time.Time `json:"applied"`
}

// Packet is the exportable form of a session.
type Packet struct {
	Session SessionRecord  `json:"session"`
	Updates []UpdateRecord `json:"updates"`
}

// Store is a SQLite-backed transcript store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the transcript database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginSession records a new session with its baseline and returns the
// session id.
func (s *Store) BeginSession(baseline map[int]string) (int64, error) {
	data, err := json.Marshal(baseline)
	if err != nil {
		return 0, fmt.Errorf("encode baseline: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO sessions (started_at_ns, baseline_json) VALUES (?, ?)`,
		time.Now().UnixNano(), string(data),
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return res.LastInsertId()
}

// AppendUpdate records one applied update and the operations it
// produced. deleted is the deletion count issued (0 for all but the
// session's first update); inserted is the concatenated insertion
// text.
func (s *Store) AppendUpdate(sessionID int64, seq, pos int, content string, deleted int, inserted string) error {
	_, err := s.db.Exec(
		`INSERT INTO updates (session_id, seq, pos, content, deleted, inserted, applied_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, seq, pos, content, deleted, inserted, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert update: %w", err)
	}
	return nil
}

// FinishSession marks the session ended and stores its final text.
func (s *Store) FinishSession(sessionID int64, finalText string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET ended_at_ns = ?, final_text = ? WHERE id = ?`,
		time.Now().UnixNano(), finalText, sessionID,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Session returns one stored session.
func (s *Store) Session(id int64) (SessionRecord, error) {
	var (
		rec          SessionRecord
		startedNs    int64
		endedNs      sql.NullInt64
		baselineJSON string
		finalText    sql.NullString
	)
	err := s.db.QueryRow(
		`SELECT id, started_at_ns, ended_at_ns, baseline_json, final_text FROM sessions WHERE id = ?`,
		id,
	).Scan(&rec.ID, &startedNs, &endedNs, &baselineJSON, &finalText)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("query session: %w", err)
	}

	rec.StartedAt = time.Unix(0, startedNs)
	if endedNs.Valid {
		rec.EndedAt = time.Unix(0, endedNs.Int64)
	}
	rec.FinalText = finalText.String
	if err := json.Unmarshal([]byte(baselineJSON), &rec.Baseline); err != nil {
		return SessionRecord{}, fmt.Errorf("decode baseline: %w", err)
	}
	return rec, nil
}

// Updates returns the session's updates in application order.
func (s *Store) Updates(sessionID int64) ([]UpdateRecord, error) {
	rows, err := s.db.Query(
		`SELECT seq, pos, content, deleted, inserted, applied_ns
		 FROM updates WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query updates: %w", err)
	}
	defer rows.Close()

	var updates []UpdateRecord
	for rows.Next() {
		var (
			u         UpdateRecord
			appliedNs int64
		)
		if err := rows.Scan(&u.Seq, &u.Pos, &u.Content, &u.Deleted, &u.Inserted, &appliedNs); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		u.Applied = time.Unix(0, appliedNs)
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// Export returns a session and its updates as a single packet.
func (s *Store) Export(sessionID int64) (*Packet, error) {
	session, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	updates, err := s.Updates(sessionID)
	if err != nil {
		return nil, err
	}
	if updates == nil {
		// Encodes as [] rather than null; the packet schema requires an
		// array.
		updates = []UpdateRecord{}
	}
	return &Packet{Session: session, Updates: updates}, nil
}
