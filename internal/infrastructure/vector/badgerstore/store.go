// Package badgerstore is an embedded vector store for single-node
// deployments. Search is an exact cosine scan over all stored vectors.
package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

const vectorPrefix = "vec:"

var recordNamespace = uuid.MustParse("0c7d2a7e-2a55-4f0b-a1f4-8b6a3e9d5c10")

type record struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Vector   []float32         `json:"vector"`
	Norm     float64           `json:"norm"`
}

type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Errorf(msg string, items ...any) { a.logger.Error(fmt.Sprintf(msg, items...)) }
func (a slogAdapter) Warningf(msg string, items ...any) {
	a.logger.Warn(fmt.Sprintf(msg, items...))
}
func (a slogAdapter) Infof(msg string, items ...any)  { a.logger.Debug(fmt.Sprintf(msg, items...)) }
func (a slogAdapter) Debugf(msg string, items ...any) { a.logger.Debug(fmt.Sprintf(msg, items...)) }

// Open opens the store at path; an empty path opens an in-memory store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = slogAdapter{logger: logger.With("component", "badger")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(chunk domain.Chunk) []byte {
	return []byte(vectorPrefix + uuid.NewSHA1(recordNamespace, []byte(chunk.Key())).String())
}

func (s *Store) Add(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, chunk := range chunks {
		raw, err := json.Marshal(record{
			Text:     chunk.Text,
			Metadata: chunk.Metadata,
			Vector:   vectors[i],
			Norm:     norm(vectors[i]),
		})
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		if err := wb.Set(recordKey(chunk), raw); err != nil {
			return fmt.Errorf("stage record: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush records: %w", err)
	}
	return nil
}

type scoredRecord struct {
	rec   record
	score float64
}

func (s *Store) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		return []domain.ScoredChunk{}, nil
	}
	qNorm := norm(queryVector)
	if qNorm == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "badger search", fmt.Errorf("zero query vector"))
	}

	var hits []scoredRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			if len(rec.Vector) != len(queryVector) || rec.Norm == 0 {
				continue
			}
			hits = append(hits, scoredRecord{rec: rec, score: dot(rec.Vector, queryVector) / (rec.Norm * qNorm)})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger search: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.ScoredChunk{
			Chunk: domain.Chunk{Text: h.rec.Text, Metadata: h.rec.Metadata},
			Score: h.score,
		})
	}
	return out, nil
}

// Count returns the number of stored vectors.
func (s *Store) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
