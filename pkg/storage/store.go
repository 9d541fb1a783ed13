// Package storage is the durable place store: a SQLite table keyed by URL
// plus a token inverted index, written in lockstep within one transaction.
// The engine mirrors this store in memory; everything here is synchronous
// database/sql over an embedded sqlite build.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/rubiojr/places/pkg/log"
	"github.com/rubiojr/places/pkg/places"
)

// ErrDatabaseLocked reports that the database is already open elsewhere.
// Open failures of this kind are fatal to the engine and the host surfaces
// them to the user distinctly from generic open failures.
var ErrDatabaseLocked = errors.New("places database is locked by another process")

// Store is the durable place store.
type Store struct {
	db     *sql.DB
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger *log.Logger
}

// Open opens (creating if needed) the places database and applies pending
// migrations. A locked database is reported as ErrDatabaseLocked.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = memory",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, classifyOpenError(fmt.Errorf("applying pragma %q: %w", pragma, err))
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, classifyOpenError(fmt.Errorf("migrating database: %w", err))
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &Store{
		db:     db,
		enc:    enc,
		dec:    dec,
		logger: log.ForComponent("storage"),
	}, nil
}

// classifyOpenError maps busy/locked sqlite errors onto ErrDatabaseLocked so
// the caller can distinguish "already open elsewhere" from generic failure.
func classifyOpenError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return fmt.Errorf("%w: %v", ErrDatabaseLocked, err)
	}
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

const placeColumns = "url, title, visit_count, last_visit, is_bookmarked, tags, color, metadata, extracted_text, search_index"

// Put inserts or replaces the place row and rewrites its inverted-index
// entries in the same transaction.
func (s *Store) Put(p *places.Place) error {
	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("marshaling tags for %s: %w", p.URL, err)
	}
	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for %s: %w", p.URL, err)
	}
	index, err := json.Marshal(p.SearchIndex)
	if err != nil {
		return fmt.Errorf("marshaling search index for %s: %w", p.URL, err)
	}

	var text []byte
	if p.ExtractedText != "" {
		text = s.enc.EncodeAll([]byte(p.ExtractedText), nil)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				s.logger.Warnf("failed to rollback transaction: %v", err)
			}
		}
	}()

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO places (`+placeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.URL, p.Title, p.VisitCount, p.LastVisit, boolToInt(p.IsBookmarked),
		string(tags), nullableString(p.Color), string(metadata), text, string(index))
	if err != nil {
		return fmt.Errorf("upserting place %s: %w", p.URL, err)
	}

	if _, err := tx.Exec("DELETE FROM place_tokens WHERE url = ?", p.URL); err != nil {
		return fmt.Errorf("clearing tokens for %s: %w", p.URL, err)
	}

	if len(p.SearchIndex) > 0 {
		stmt, err := tx.Prepare("INSERT OR IGNORE INTO place_tokens (token, url) VALUES (?, ?)")
		if err != nil {
			return fmt.Errorf("preparing token statement: %w", err)
		}
		defer func() {
			if err := stmt.Close(); err != nil {
				s.logger.Warnf("failed to close token statement: %v", err)
			}
		}()

		seen := make(map[string]struct{}, len(p.SearchIndex))
		for _, token := range p.SearchIndex {
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			if _, err := stmt.Exec(token, p.URL); err != nil {
				return fmt.Errorf("inserting token %q for %s: %w", token, p.URL, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing place %s: %w", p.URL, err)
	}
	committed = true
	return nil
}

// Get returns the place for a URL, or nil if no row exists.
func (s *Store) Get(url string) (*places.Place, error) {
	row := s.db.QueryRow("SELECT "+placeColumns+" FROM places WHERE url = ?", url)
	p, err := s.scanPlace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// GetMany returns full records for the given URLs, keyed by URL. Missing
// rows are simply absent from the result.
func (s *Store) GetMany(urls []string) (map[string]*places.Place, error) {
	out := make(map[string]*places.Place, len(urls))
	if len(urls) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(urls))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(urls))
	for i, u := range urls {
		args[i] = u
	}

	rows, err := s.db.Query("SELECT "+placeColumns+" FROM places WHERE url IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying places: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		p, err := s.scanPlace(rows)
		if err != nil {
			return nil, err
		}
		out[p.URL] = p
	}
	return out, rows.Err()
}

// AllByVisitCount returns every place ordered by visit count descending,
// the order the cache loader wants.
func (s *Store) AllByVisitCount() ([]*places.Place, error) {
	rows, err := s.db.Query("SELECT " + placeColumns + " FROM places ORDER BY visit_count DESC")
	if err != nil {
		return nil, fmt.Errorf("querying places: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*places.Place
	for rows.Next() {
		p, err := s.scanPlace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TokenMatches returns the set of URLs whose search index contains the
// token, plus the match count (the document-frequency proxy used by the
// full-text ranker).
func (s *Store) TokenMatches(token string) (map[string]struct{}, int, error) {
	rows, err := s.db.Query("SELECT url FROM place_tokens WHERE token = ?", token)
	if err != nil {
		return nil, 0, fmt.Errorf("querying token %q: %w", token, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	matches := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, 0, fmt.Errorf("scanning token row: %w", err)
		}
		matches[url] = struct{}{}
	}
	return matches, len(matches), rows.Err()
}

// Delete removes a place and its inverted-index entries.
func (s *Store) Delete(url string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.Exec("DELETE FROM place_tokens WHERE url = ?", url); err != nil {
		return fmt.Errorf("deleting tokens for %s: %w", url, err)
	}
	if _, err := tx.Exec("DELETE FROM places WHERE url = ?", url); err != nil {
		return fmt.Errorf("deleting place %s: %w", url, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete of %s: %w", url, err)
	}
	committed = true
	return nil
}

// DeleteExpired removes every non-bookmarked place whose last visit is
// before the cutoff (milliseconds since epoch). Returns the number of rows
// removed.
func (s *Store) DeleteExpired(cutoff int64) (int64, error) {
	return s.deleteWhere("last_visit < ? AND is_bookmarked = 0", cutoff)
}

// DeleteNonBookmarked removes every non-bookmarked place. Used by the
// "clear history" action; bookmarked entries are exempt.
func (s *Store) DeleteNonBookmarked() (int64, error) {
	return s.deleteWhere("is_bookmarked = 0")
}

func (s *Store) deleteWhere(cond string, args ...any) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.Exec("DELETE FROM place_tokens WHERE url IN (SELECT url FROM places WHERE "+cond+")", args...); err != nil {
		return 0, fmt.Errorf("deleting tokens: %w", err)
	}
	res, err := tx.Exec("DELETE FROM places WHERE "+cond, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting places: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing bulk delete: %w", err)
	}
	committed = true
	return deleted, nil
}

// Stats returns row counts for the stats command and endpoint.
func (s *Store) Stats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total, bookmarked, tokens int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM places").Scan(&total); err != nil {
		return nil, fmt.Errorf("counting places: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM places WHERE is_bookmarked = 1").Scan(&bookmarked); err != nil {
		return nil, fmt.Errorf("counting bookmarks: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM place_tokens").Scan(&tokens); err != nil {
		return nil, fmt.Errorf("counting tokens: %w", err)
	}

	stats["total_places"] = total
	stats["bookmarked_places"] = bookmarked
	stats["indexed_tokens"] = tokens
	return stats, nil
}

// Optimize runs PRAGMA optimize.
func (s *Store) Optimize() error {
	_, err := s.db.Exec("PRAGMA optimize")
	return err
}

// Vacuum reclaims free pages.
func (s *Store) Vacuum() error {
	_, err := s.db.Exec("VACUUM")
	return err
}

// WALCheckpoint truncates the write-ahead log.
func (s *Store) WALCheckpoint() error {
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanPlace(row rowScanner) (*places.Place, error) {
	var (
		p          places.Place
		bookmarked int
		tags       string
		color      sql.NullString
		metadata   string
		text       []byte
		index      string
	)
	if err := row.Scan(&p.URL, &p.Title, &p.VisitCount, &p.LastVisit, &bookmarked,
		&tags, &color, &metadata, &text, &index); err != nil {
		return nil, err
	}

	p.IsBookmarked = bookmarked != 0
	if color.Valid {
		p.Color = color.String
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags for %s: %w", p.URL, err)
	}
	if err := json.Unmarshal([]byte(metadata), &p.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata for %s: %w", p.URL, err)
	}
	if err := json.Unmarshal([]byte(index), &p.SearchIndex); err != nil {
		return nil, fmt.Errorf("unmarshaling search index for %s: %w", p.URL, err)
	}

	if len(text) > 0 {
		decoded, err := s.dec.DecodeAll(text, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing text for %s: %w", p.URL, err)
		}
		p.ExtractedText = string(decoded)
	}

	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
