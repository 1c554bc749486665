package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MimeLyc/nottranslate-api/internal/jobs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

var _ jobs.Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// SaveFile records a freshly uploaded document
func (s *SQLiteStore) SaveFile(ctx context.Context, rec FileRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("file id is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO files (id, target_language, created_at, translated, deleted)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			target_language=excluded.target_language,
			translated=excluded.translated,
			deleted=excluded.deleted`,
		rec.ID, rec.TargetLanguage, toMillis(rec.CreatedAt), rec.Translated, rec.Deleted,
	)
	return err
}

func (s *SQLiteStore) GetFile(ctx context.Context, id string) (FileRecord, bool, error) {
	var rec FileRecord
	var createdAt int64
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, target_language, created_at, translated, deleted FROM files WHERE id = ?`,
		id,
	).Scan(&rec.ID, &rec.TargetLanguage, &createdAt, &rec.Translated, &rec.Deleted)
	if err == sql.ErrNoRows {
		return FileRecord{}, false, nil
	}
	if err != nil {
		return FileRecord{}, false, err
	}
	rec.CreatedAt = fromMillis(createdAt)
	return rec, true, nil
}

func (s *SQLiteStore) MarkFileTranslated(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE files SET translated = 1 WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) MarkFileDeleted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE files SET deleted = 1 WHERE id = ?`, id)
	return err
}

// ListExpiredFiles returns not yet deleted files created before the cutoff, oldest first
func (s *SQLiteStore) ListExpiredFiles(ctx context.Context, before time.Time) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, target_language, created_at, translated, deleted
		 FROM files
		 WHERE deleted = 0 AND created_at < ?
		 ORDER BY created_at ASC`,
		toMillis(before),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]FileRecord, 0)
	for rows.Next() {
		var rec FileRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.TargetLanguage, &createdAt, &rec.Translated, &rec.Deleted); err != nil {
			return nil, err
		}
		rec.CreatedAt = fromMillis(createdAt)
		ret = append(ret, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) CountFiles(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) SaveFeedback(ctx context.Context, fb Feedback) (int64, error) {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO feedback (
			file_id, original_text, translated_text, corrected_text,
			original_language, target_language, rating, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		fb.FileID,
		fb.OriginalText,
		fb.TranslatedText,
		fb.CorrectedText,
		fb.OriginalLanguage,
		fb.TargetLanguage,
		fb.Rating,
		toMillis(fb.CreatedAt),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) ListFeedback(ctx context.Context, fileID string) ([]Feedback, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, file_id, original_text, translated_text, corrected_text,
			original_language, target_language, rating, created_at
		 FROM feedback
		 WHERE file_id = ?
		 ORDER BY id ASC`,
		fileID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Feedback, 0)
	for rows.Next() {
		var fb Feedback
		var createdAt int64
		if err := rows.Scan(
			&fb.ID,
			&fb.FileID,
			&fb.OriginalText,
			&fb.TranslatedText,
			&fb.CorrectedText,
			&fb.OriginalLanguage,
			&fb.TargetLanguage,
			&fb.Rating,
			&createdAt,
		); err != nil {
			return nil, err
		}
		fb.CreatedAt = fromMillis(createdAt)
		ret = append(ret, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) CountFeedback(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&n)
	return n, err
}

// SaveStatus archives a terminal status record.
func (s *SQLiteStore) SaveStatus(ctx context.Context, id string, rec jobs.StatusRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	finishedAt := time.Now()
	if rec.FinishedAt != nil {
		finishedAt = *rec.FinishedAt
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO job_status (id, payload, finished_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			payload=excluded.payload,
			finished_at=excluded.finished_at`,
		id, string(payload), toMillis(finishedAt),
	)
	return err
}

func (s *SQLiteStore) LoadStatus(ctx context.Context, id string) (jobs.StatusRecord, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM job_status WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return jobs.StatusRecord{}, false, nil
	}
	if err != nil {
		return jobs.StatusRecord{}, false, err
	}

	var rec jobs.StatusRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return jobs.StatusRecord{}, false, fmt.Errorf("unmarshal status %s: %w", id, err)
	}
	return rec, true, nil
}

// DeleteStatusBefore drops archived records finished before cutoff
func (s *SQLiteStore) DeleteStatusBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_status WHERE finished_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
