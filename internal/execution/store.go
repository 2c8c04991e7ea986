package execution

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	cerr "github.com/nmorales/custos/internal/errors"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS submissions (
	id         TEXT PRIMARY KEY,
	chain      TEXT NOT NULL,
	function   TEXT NOT NULL,
	sender     TEXT NOT NULL,
	tx_hash    TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at DESC);
`

// Store persists submissions in a local sqlite database. A file lock guards
// writes so concurrent invocations on the same machine do not interleave.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(dbPath, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, cerr.Wrap(cerr.CodeInternal, "create submission store directory", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeInternal, "open submission store", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(storeSchema); err != nil {
		_ = db.Close()
		return nil, cerr.Wrap(cerr.CodeInternal, "initialize submission store schema", err)
	}

	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ok, err := s.lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		return cerr.Wrap(cerr.CodeInternal, "acquire submission store lock", err)
	}
	if !ok {
		return cerr.New(cerr.CodeInternal, "submission store is locked by another process")
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

// Record upserts a submission at its current state.
func (s *Store) Record(ctx context.Context, sub *Submission) error {
	return s.withLock(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO submissions (id, chain, function, sender, tx_hash, state, error, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				tx_hash    = excluded.tx_hash,
				state      = excluded.state,
				error      = excluded.error,
				updated_at = excluded.updated_at`,
			sub.ID, sub.ChainSlug, sub.Function, sub.Sender, sub.TransactionHash,
			string(sub.State), sub.Error, sub.CreatedAt.Unix(), sub.UpdatedAt.Unix(),
		)
		if err != nil {
			return cerr.Wrap(cerr.CodeInternal, "record submission", err)
		}
		return nil
	})
}

// Get loads one submission by id.
func (s *Store) Get(ctx context.Context, submissionID string) (*Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, chain, function, sender, tx_hash, state, error, created_at, updated_at
		FROM submissions WHERE id = ?`, submissionID)

	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, cerr.New(cerr.CodeUsage, fmt.Sprintf("submission %s not found", submissionID))
	}
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeInternal, "load submission", err)
	}
	return sub, nil
}

// List returns the most recent submissions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chain, function, sender, tx_hash, state, error, created_at, updated_at
		FROM submissions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeInternal, "list submissions", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, cerr.Wrap(cerr.CodeInternal, "scan submission", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, cerr.Wrap(cerr.CodeInternal, "list submissions", err)
	}
	return subs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*Submission, error) {
	var sub Submission
	var state string
	var createdAt, updatedAt int64
	if err := row.Scan(&sub.ID, &sub.ChainSlug, &sub.Function, &sub.Sender,
		&sub.TransactionHash, &state, &sub.Error, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	sub.State = State(state)
	sub.CreatedAt = time.Unix(createdAt, 0).UTC()
	sub.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &sub, nil
}
