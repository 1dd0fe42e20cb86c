package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/viant/sqlite-vec/vector"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"artscope/internal/domain"
	"artscope/internal/port"
)

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS artworks (
    id          INTEGER PRIMARY KEY,
    name        TEXT NOT NULL,
    artist      TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    embedding   BLOB
)`, `
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`}

// SQLiteStore keeps artworks in a SQLite database. Embeddings are stored as
// BLOBs in the format produced by vector.EncodeEmbedding, which lets the registered
// vec_cosine function rank rows inside the database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at dsn. Pass ":memory:" for
// a throwaway database.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	if err := RegisterVectorFunctions(); err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	if dsn == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an open database and ensures the schema exists.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, &domain.StorageError{Op: "open", Err: errors.New("db is nil")}
	}
	if err := EnsureSchema(db); err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	return &SQLiteStore{db: db}, nil
}

// EnsureSchema creates the artworks and meta tables if they do not exist.
func EnsureSchema(db *sql.DB) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) FetchAll(ctx context.Context) ([]domain.Artwork, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, artist, description, embedding FROM artworks ORDER BY id`)
	if err != nil {
		return nil, domain.AsStorageError("fetch", err)
	}
	artworks, err := scanArtworks(rows)
	if err != nil {
		return nil, domain.AsStorageError("fetch", err)
	}
	return artworks, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (domain.Artwork, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, artist, description, embedding FROM artworks WHERE id = ?`, id)
	a, err := scanArtwork(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Artwork{}, fmt.Errorf("%w: %d", domain.ErrArtworkNotFound, id)
	}
	if err != nil {
		return domain.Artwork{}, domain.AsStorageError("get", err)
	}
	return a, nil
}

func (s *SQLiteStore) Put(ctx context.Context, a domain.Artwork) (int64, error) {
	var id any
	if a.ID != 0 {
		id = a.ID
	}
	blob, err := vector.EncodeEmbedding(a.Embedding)
	if err != nil {
		return 0, domain.AsStorageError("put", err)
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO artworks(id, name, artist, description, embedding) VALUES(?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    artist = excluded.artist,
    description = excluded.description,
    embedding = excluded.embedding`,
		id, a.Name, a.Artist, a.Description, blob)
	if err != nil {
		return 0, domain.AsStorageError("put", err)
	}
	if a.ID != 0 {
		return a.ID, nil
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return 0, domain.AsStorageError("put", err)
	}
	return newID, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artworks WHERE id = ?`, id)
	if err != nil {
		return domain.AsStorageError("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.AsStorageError("delete", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrArtworkNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artworks`).Scan(&n); err != nil {
		return 0, domain.AsStorageError("count", err)
	}
	return n, nil
}

// Nearest ranks rows with vec_cosine inside SQLite and returns at most k of
// them, best first. Rows the function cannot score are left out.
func (s *SQLiteStore) Nearest(ctx context.Context, query domain.Embedding, k int) ([]domain.Artwork, error) {
	if k <= 0 {
		return []domain.Artwork{}, nil
	}
	q, err := vector.EncodeEmbedding(query)
	if err != nil {
		return nil, domain.AsStorageError("nearest", err)
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, artist, description, embedding
FROM (
    SELECT id, name, artist, description, embedding, vec_cosine(embedding, ?) AS score
    FROM artworks
)
WHERE score IS NOT NULL
ORDER BY score DESC, id
LIMIT ?`, q, k)
	if err != nil {
		return nil, domain.AsStorageError("nearest", err)
	}
	artworks, err := scanArtworks(rows)
	if err != nil {
		return nil, domain.AsStorageError("nearest", err)
	}
	return artworks, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CheckMigration compares the recorded extractor fingerprint with fingerprint.
func (s *SQLiteStore) CheckMigration(fingerprint string) (*MigrationResult, error) {
	info, err := s.schemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}
	return evaluate(info, fingerprint), nil
}

// Migrate records the current schema version and fingerprint. The SQLite
// schema itself is created by EnsureSchema.
func (s *SQLiteStore) Migrate(fingerprint string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	upsert := `INSERT INTO meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.Exec(upsert, string(keySchemaVersion), fmt.Sprint(CurrentSchemaVersion)); err != nil {
		return err
	}
	if _, err := tx.Exec(upsert, string(keyFingerprint), fingerprint); err != nil {
		return err
	}
	return tx.Commit()
}

// Clear removes all artworks but keeps schema metadata.
func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM artworks`)
	return err
}

func (s *SQLiteStore) schemaInfo() (*SchemaInfo, error) {
	info := &SchemaInfo{}
	rows, err := s.db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		switch key {
		case string(keySchemaVersion):
			if _, err := fmt.Sscan(value, &info.Version); err != nil {
				info.Version = 1
			}
		case string(keyFingerprint):
			info.Fingerprint = value
		}
	}
	return info, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtwork(row rowScanner) (domain.Artwork, error) {
	var a domain.Artwork
	var blob []byte
	if err := row.Scan(&a.ID, &a.Name, &a.Artist, &a.Description, &blob); err != nil {
		return domain.Artwork{}, err
	}
	emb, err := vector.DecodeEmbedding(blob)
	if err != nil {
		return domain.Artwork{}, fmt.Errorf("corrupt embedding for artwork %d: %w", a.ID, err)
	}
	a.Embedding = emb
	return a, nil
}

func scanArtworks(rows *sql.Rows) ([]domain.Artwork, error) {
	defer rows.Close()

	artworks := []domain.Artwork{}
	for rows.Next() {
		a, err := scanArtwork(rows)
		if err != nil {
			return nil, err
		}
		artworks = append(artworks, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return artworks, nil
}

var (
	_ port.ArtworkStore = (*SQLiteStore)(nil)
	_ port.Shortlister  = (*SQLiteStore)(nil)
	_ SchemaTracker     = (*SQLiteStore)(nil)
)
