package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"tgmirror/internal/config"
)

// Store manages archive persistence backed by SQLite.
//
// The store assumes single-process use; Open acquires a lock file next to
// the database and fails when another tgmirror instance holds it.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open initializes or connects to the archive database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("store is locked by another tgmirror process (%s)", cfg.LockPath())
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, lock: lock}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}

	return store, nil
}

// Close releases the database connection and the instance lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	return err
}

// UpsertMessage stores a message, fully replacing the payload of any previous
// row for the same id. The update form matters: a REPLACE would delete the old
// row and cascade away its file rows. The derived completion flag is recomputed
// from the registered files inside the same transaction, so a message with no
// files is complete immediately.
func (s *Store) UpsertMessage(ctx context.Context, id int64, jsonData string, date time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO messages (message_id, json_data, date) VALUES (?, ?, ?)
         ON CONFLICT (message_id)
         DO UPDATE SET json_data = excluded.json_data, date = excluded.date`,
		id,
		jsonData,
		date.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert message %d: %w", id, err)
	}
	if err := recomputeCompletion(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// ListMessages returns every mirrored message, most recently assigned id first.
func (s *Store) ListMessages(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT message_id, json_data, file_downloaded, date FROM messages ORDER BY message_id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			msg        Message
			downloaded int
			dateRaw    sql.NullString
		)
		if err := rows.Scan(&msg.ID, &msg.JSONData, &downloaded, &dateRaw); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.FileDownloaded = downloaded != 0
		if dateRaw.Valid {
			if parsed, err := time.Parse(time.RFC3339Nano, dateRaw.String); err == nil {
				msg.Date = parsed
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// RegisterFile records an attachment discovered during ingestion. The row is
// keyed on (message id, storage path): re-registering the same logical file
// updates its display path and kind but preserves the downloaded flag, so
// re-running ingestion never duplicates rows or forgets completed transfers.
func (s *Store) RegisterFile(ctx context.Context, messageID int64, path, markdownPath, kind string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO files (message_id, file_path, markdown_path, file_type)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (message_id, file_path)
         DO UPDATE SET markdown_path = excluded.markdown_path, file_type = excluded.file_type`,
		messageID,
		path,
		markdownPath,
		kind,
	)
	if err != nil {
		return fmt.Errorf("register file %q for message %d: %w", path, messageID, err)
	}
	if err := recomputeCompletion(ctx, tx, messageID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit register: %w", err)
	}
	return nil
}

// MarkFileDownloaded flips a file's downloaded flag and recomputes the owning
// message's completion flag in the same transaction. Completions for sibling
// files racing from concurrent transfers serialize here.
func (s *Store) MarkFileDownloaded(ctx context.Context, messageID int64, path string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`UPDATE files SET downloaded = 1 WHERE message_id = ? AND file_path = ?`,
		messageID,
		path,
	)
	if err != nil {
		return fmt.Errorf("mark file downloaded: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark file downloaded: no file %q for message %d", path, messageID)
	}
	if err := recomputeCompletion(ctx, tx, messageID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mark: %w", err)
	}
	return nil
}

// ListPendingFiles returns every file still awaiting download, joined with
// the owning message payload. The result is a fresh snapshot on every call.
func (s *Store) ListPendingFiles(ctx context.Context) ([]PendingFile, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT f.message_id, f.file_path, m.json_data
         FROM files f
         JOIN messages m ON f.message_id = m.message_id
         WHERE f.downloaded = 0
         ORDER BY f.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending files: %w", err)
	}
	defer rows.Close()

	var pending []PendingFile
	for rows.Next() {
		var p PendingFile
		if err := rows.Scan(&p.MessageID, &p.Path, &p.MessageJSON); err != nil {
			return nil, fmt.Errorf("scan pending file: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// FileReferences returns the downloaded attachments of a message for rendering.
func (s *Store) FileReferences(ctx context.Context, messageID int64) ([]FileReference, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT markdown_path, file_type FROM files WHERE message_id = ? AND downloaded = 1 ORDER BY id`,
		messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("file references: %w", err)
	}
	defer rows.Close()

	var refs []FileReference
	for rows.Next() {
		var ref FileReference
		if err := rows.Scan(&ref.MarkdownPath, &ref.Kind); err != nil {
			return nil, fmt.Errorf("scan file reference: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// recomputeCompletion rewrites the derived completion flag for one message:
// 1 iff no registered file for it remains undownloaded.
func recomputeCompletion(ctx context.Context, tx *sql.Tx, messageID int64) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE messages
         SET file_downloaded = CASE
             WHEN EXISTS (SELECT 1 FROM files WHERE message_id = ? AND downloaded = 0) THEN 0
             ELSE 1
         END
         WHERE message_id = ?`,
		messageID,
		messageID,
	)
	if err != nil {
		return fmt.Errorf("recompute completion for message %d: %w", messageID, err)
	}
	return nil
}

// GetTags returns the tags stored for a message's default language slot.
// The boolean reports whether a record exists; an existing empty list is a
// persisted negative result, distinct from "not yet tagged".
func (s *Store) GetTags(ctx context.Context, messageID int64) ([]string, bool, error) {
	var raw string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT tags FROM tags WHERE message_id = ? AND language = ''`,
		messageID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get tags for message %d: %w", messageID, err)
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, false, fmt.Errorf("decode tags for message %d: %w", messageID, err)
	}
	return tags, true, nil
}

// SetTags replaces the tags for a message's default language slot wholesale.
func (s *Store) SetTags(ctx context.Context, messageID int64, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags for message %d: %w", messageID, err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO tags (message_id, language, tags) VALUES (?, '', ?)`,
		messageID,
		string(encoded),
	)
	if err != nil {
		return fmt.Errorf("set tags for message %d: %w", messageID, err)
	}
	return nil
}

// AllTags returns every language slot stored for a message.
func (s *Store) AllTags(ctx context.Context, messageID int64) ([]TagRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT language, tags FROM tags WHERE message_id = ? ORDER BY language`,
		messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("all tags for message %d: %w", messageID, err)
	}
	defer rows.Close()

	var records []TagRecord
	for rows.Next() {
		var (
			record TagRecord
			raw    string
		)
		if err := rows.Scan(&record.Language, &raw); err != nil {
			return nil, fmt.Errorf("scan tag record: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &record.Tags); err != nil {
			return nil, fmt.Errorf("decode tag record for message %d: %w", messageID, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetMeta reads a process meta value. The boolean reports presence.
func (s *Store) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %q: %w", key, err)
	}
	return value, true, nil
}

// SetMeta stores a process meta value, replacing any previous one.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
		key,
		value,
	); err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

// Stats aggregates row counts for the status command.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	row := s.db.QueryRowContext(ctx, `
        SELECT
            (SELECT COUNT(1) FROM messages),
            (SELECT COUNT(DISTINCT message_id) FROM tags),
            (SELECT COUNT(1) FROM files),
            (SELECT COUNT(1) FROM files WHERE downloaded = 1),
            (SELECT COUNT(1) FROM files WHERE downloaded = 0)`)
	if err := row.Scan(
		&stats.Messages,
		&stats.MessagesTagged,
		&stats.FilesTotal,
		&stats.FilesDownloaded,
		&stats.FilesPending,
	); err != nil {
		return Stats{}, fmt.Errorf("store stats: %w", err)
	}
	return stats, nil
}
