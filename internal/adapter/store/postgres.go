package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	pgvector "github.com/pgvector/pgvector-go"

	"artscope/internal/domain"
	"artscope/internal/port"
)

var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS artworks (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    artist      TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    embedding   vector
)`,
	`CREATE TABLE IF NOT EXISTS artscope_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`,
}

// PostgresStore keeps artworks in PostgreSQL with embeddings in a pgvector
// column. The column has no fixed dimension so that rows written by an older
// extractor can still be listed and skipped by the matcher.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn, verifies the connection and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &domain.StorageError{Op: "open", Err: err}
	}

	for _, stmt := range postgresSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, &domain.StorageError{Op: "open", Err: describePQ(err)}
		}
	}
	return &PostgresStore{db: db}, nil
}

// describePQ adds a hint for the errors operators actually hit on setup.
func describePQ(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code.Name() {
	case "insufficient_privilege":
		return fmt.Errorf("%w (the pgvector extension must be installed by a superuser)", err)
	case "undefined_file":
		return fmt.Errorf("%w (is pgvector installed on the server?)", err)
	default:
		return err
	}
}

func (s *PostgresStore) FetchAll(ctx context.Context) ([]domain.Artwork, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, artist, description, embedding FROM artworks ORDER BY id`)
	if err != nil {
		return nil, domain.AsStorageError("fetch", err)
	}
	artworks, err := scanPGArtworks(rows)
	if err != nil {
		return nil, domain.AsStorageError("fetch", err)
	}
	return artworks, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (domain.Artwork, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, artist, description, embedding FROM artworks WHERE id = $1`, id)
	a, err := scanPGArtwork(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Artwork{}, fmt.Errorf("%w: %d", domain.ErrArtworkNotFound, id)
	}
	if err != nil {
		return domain.Artwork{}, domain.AsStorageError("get", err)
	}
	return a, nil
}

func (s *PostgresStore) Put(ctx context.Context, a domain.Artwork) (int64, error) {
	var emb any
	if len(a.Embedding) > 0 {
		emb = pgvector.NewVector(a.Embedding)
	}

	if a.ID == 0 {
		var id int64
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO artworks (name, artist, description, embedding) VALUES ($1, $2, $3, $4) RETURNING id`,
			a.Name, a.Artist, a.Description, emb).Scan(&id)
		if err != nil {
			return 0, domain.AsStorageError("put", err)
		}
		return id, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.AsStorageError("put", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO artworks (id, name, artist, description, embedding) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    artist = EXCLUDED.artist,
    description = EXCLUDED.description,
    embedding = EXCLUDED.embedding`,
		a.ID, a.Name, a.Artist, a.Description, emb)
	if err != nil {
		return 0, domain.AsStorageError("put", err)
	}
	// keep generated IDs clear of explicitly assigned ones
	_, err = tx.ExecContext(ctx,
		`SELECT setval(pg_get_serial_sequence('artworks', 'id'), GREATEST((SELECT MAX(id) FROM artworks), 1))`)
	if err != nil {
		return 0, domain.AsStorageError("put", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, domain.AsStorageError("put", err)
	}
	return a.ID, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artworks WHERE id = $1`, id)
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

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artworks`).Scan(&n); err != nil {
		return 0, domain.AsStorageError("count", err)
	}
	return n, nil
}

// Nearest orders rows of the query's dimension by pgvector cosine distance.
// Rows of other dimensions cannot be compared by <=> and are left out.
func (s *PostgresStore) Nearest(ctx context.Context, query domain.Embedding, k int) ([]domain.Artwork, error) {
	if k <= 0 || len(query) == 0 {
		return []domain.Artwork{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, artist, description, embedding
FROM artworks
WHERE embedding IS NOT NULL AND vector_dims(embedding) = $2
ORDER BY embedding <=> $1, id
LIMIT $3`, pgvector.NewVector(query), len(query), k)
	if err != nil {
		return nil, domain.AsStorageError("nearest", err)
	}
	artworks, err := scanPGArtworks(rows)
	if err != nil {
		return nil, domain.AsStorageError("nearest", err)
	}
	return artworks, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CheckMigration(fingerprint string) (*MigrationResult, error) {
	info := &SchemaInfo{}
	rows, err := s.db.Query(`SELECT key, value FROM artscope_meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return evaluate(info, fingerprint), nil
}

func (s *PostgresStore) Migrate(fingerprint string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	upsert := `INSERT INTO artscope_meta (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := tx.Exec(upsert, string(keySchemaVersion), fmt.Sprint(CurrentSchemaVersion)); err != nil {
		return err
	}
	if _, err := tx.Exec(upsert, string(keyFingerprint), fingerprint); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) Clear() error {
	_, err := s.db.Exec(`TRUNCATE artworks`)
	return err
}

func scanPGArtwork(row rowScanner) (domain.Artwork, error) {
	var a domain.Artwork
	var vec sql.Null[pgvector.Vector]
	if err := row.Scan(&a.ID, &a.Name, &a.Artist, &a.Description, &vec); err != nil {
		return domain.Artwork{}, err
	}
	if vec.Valid {
		a.Embedding = vec.V.Slice()
	}
	return a, nil
}

func scanPGArtworks(rows *sql.Rows) ([]domain.Artwork, error) {
	defer rows.Close()

	artworks := []domain.Artwork{}
	for rows.Next() {
		a, err := scanPGArtwork(rows)
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
	_ port.ArtworkStore = (*PostgresStore)(nil)
	_ port.Shortlister  = (*PostgresStore)(nil)
	_ SchemaTracker     = (*PostgresStore)(nil)
)
