package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/viant/sqlite-vec/vector"
	"go.etcd.io/bbolt"

	"artscope/internal/domain"
	"artscope/internal/port"
)

var (
	bucketArtworks   = []byte("artworks")
	bucketEmbeddings = []byte("embeddings")
	bucketMeta       = []byte("meta")
)

// BoltStore keeps artworks in a local BoltDB file. Artwork metadata and
// embeddings live in separate buckets keyed by the big-endian artwork ID, so
// cursor order is ID order.
type BoltStore struct {
	db *bbolt.DB
}

// LockTimeout bounds how long NewBoltStore waits for another process to
// release the database file.
var LockTimeout = time.Second

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: LockTimeout})
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: fmt.Errorf("failed to open bolt db: %w", err)}
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketArtworks, bucketEmbeddings, bucketMeta}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, &domain.StorageError{Op: "open", Err: err}
	}

	return &BoltStore{db: db}, nil
}

type artworkMeta struct {
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	Description string `json:"description"`
}

func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func (s *BoltStore) FetchAll(ctx context.Context) ([]domain.Artwork, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.AsStorageError("fetch", err)
	}

	artworks := []domain.Artwork{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		embeddings := tx.Bucket(bucketEmbeddings)
		return tx.Bucket(bucketArtworks).ForEach(func(k, v []byte) error {
			a, err := decodeArtwork(k, v, embeddings.Get(k))
			if err != nil {
				return err
			}
			artworks = append(artworks, a)
			return nil
		})
	})
	if err != nil {
		return nil, domain.AsStorageError("fetch", err)
	}
	return artworks, nil
}

func (s *BoltStore) Get(ctx context.Context, id int64) (domain.Artwork, error) {
	if err := ctx.Err(); err != nil {
		return domain.Artwork{}, domain.AsStorageError("get", err)
	}

	var a domain.Artwork
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := itob(id)
		data := tx.Bucket(bucketArtworks).Get(key)
		if data == nil {
			return nil
		}
		found = true
		var err error
		a, err = decodeArtwork(key, data, tx.Bucket(bucketEmbeddings).Get(key))
		return err
	})
	if err != nil {
		return domain.Artwork{}, domain.AsStorageError("get", err)
	}
	if !found {
		return domain.Artwork{}, fmt.Errorf("%w: %d", domain.ErrArtworkNotFound, id)
	}
	return a, nil
}

func (s *BoltStore) Put(ctx context.Context, a domain.Artwork) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.AsStorageError("put", err)
	}

	id := a.ID
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketArtworks)
		if id == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			id = int64(seq)
		} else if uint64(id) > b.Sequence() {
			// keep generated IDs clear of explicitly assigned ones
			if err := b.SetSequence(uint64(id)); err != nil {
				return err
			}
		}

		data, err := json.Marshal(artworkMeta{
			Name:        a.Name,
			Artist:      a.Artist,
			Description: a.Description,
		})
		if err != nil {
			return err
		}
		key := itob(id)
		if err := b.Put(key, data); err != nil {
			return err
		}
		blob, err := vector.EncodeEmbedding(a.Embedding)
		if err != nil {
			return err
		}
		if blob == nil {
			blob = []byte{}
		}
		return tx.Bucket(bucketEmbeddings).Put(key, blob)
	})
	if err != nil {
		return 0, domain.AsStorageError("put", err)
	}
	return id, nil
}

func (s *BoltStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return domain.AsStorageError("delete", err)
	}

	var found bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		key := itob(id)
		b := tx.Bucket(bucketArtworks)
		if b.Get(key) == nil {
			return nil
		}
		found = true
		if err := b.Delete(key); err != nil {
			return err
		}
		return tx.Bucket(bucketEmbeddings).Delete(key)
	})
	if err != nil {
		return domain.AsStorageError("delete", err)
	}
	if !found {
		return fmt.Errorf("%w: %d", domain.ErrArtworkNotFound, id)
	}
	return nil
}

func (s *BoltStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.AsStorageError("count", err)
	}

	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketArtworks).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, domain.AsStorageError("count", err)
	}
	return n, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func decodeArtwork(key, meta, blob []byte) (domain.Artwork, error) {
	var m artworkMeta
	if err := json.Unmarshal(meta, &m); err != nil {
		return domain.Artwork{}, fmt.Errorf("corrupt artwork %d: %w", btoi(key), err)
	}
	emb, err := vector.DecodeEmbedding(blob)
	if err != nil {
		return domain.Artwork{}, fmt.Errorf("corrupt embedding for artwork %d: %w", btoi(key), err)
	}
	return domain.Artwork{
		ID:          btoi(key),
		Name:        m.Name,
		Artist:      m.Artist,
		Description: m.Description,
		Embedding:   emb,
	}, nil
}

var _ port.ArtworkStore = (*BoltStore)(nil)
