package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

//go:embed schema.sql
var schema string

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex stores entries in a pgvector column.
type VectorIndex struct {
	pool *pgxpool.Pool
}

// New connects to connString, verifies the connection and applies the schema.
func New(ctx context.Context, connString string) (*VectorIndex, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing connection string: %v", domain.ErrInvalidConfig, err)
	}

	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: creating connection pool: %v", domain.ErrIndex, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: pinging database: %v", domain.ErrIndex, err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: applying schema: %v", domain.ErrIndex, err)
	}

	return &VectorIndex{pool: pool}, nil
}

// Add upserts entries in one transaction.
func (v *VectorIndex) Add(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return v.inTx(ctx, func(tx pgx.Tx) error {
		base, err := storedDims(ctx, tx, "")
		if err != nil {
			return err
		}
		if _, err := vecmath.CheckDims(entries, base); err != nil {
			return err
		}
		return upsertEntries(ctx, tx, entries)
	})
}

// Query returns the topK entries closest to embedding by cosine distance.
func (v *VectorIndex) Query(ctx context.Context, embedding []float32, topK int) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		return []domain.RetrievalResult{}, nil
	}

	var dims int
	err := v.pool.QueryRow(ctx, "SELECT vector_dims(embedding) FROM index_entries LIMIT 1").Scan(&dims)
	if errors.Is(err, pgx.ErrNoRows) {
		return []domain.RetrievalResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading dimensions: %v", domain.ErrIndex, err)
	}
	if dims != len(embedding) {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrIndex, len(embedding), dims)
	}

	rows, err := v.pool.Query(ctx,
		`SELECT document_id, filename, ordinal, text, text_length, 1 - (embedding <=> $1) AS similarity
		 FROM index_entries
		 ORDER BY embedding <=> $1, seq
		 LIMIT $2`,
		pgvector.NewVector(embedding), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: searching entries: %v", domain.ErrIndex, err)
	}
	defer rows.Close()

	results := []domain.RetrievalResult{}
	for rows.Next() {
		var r domain.RetrievalResult
		if err := rows.Scan(&r.Metadata.DocumentID, &r.Metadata.Filename, &r.Metadata.Ordinal,
			&r.Content, &r.Metadata.TextLength, &r.Similarity); err != nil {
			return nil, fmt.Errorf("%w: scanning entry: %v", domain.ErrIndex, err)
		}
		// Zero-magnitude vectors yield NaN distance.
		if math.IsNaN(r.Similarity) {
			r.Similarity = 0
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating entries: %v", domain.ErrIndex, err)
	}
	return results, nil
}

// DeleteByDocument removes every entry of the document.
func (v *VectorIndex) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	tag, err := v.pool.Exec(ctx, "DELETE FROM index_entries WHERE document_id = $1", documentID)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting entries: %v", domain.ErrIndex, err)
	}
	return int(tag.RowsAffected()), nil
}

// ReplaceDocument swaps the document's entries in one transaction, holding
// a transaction-scoped advisory lock on the document id.
func (v *VectorIndex) ReplaceDocument(ctx context.Context, documentID string, entries []domain.IndexEntry) error {
	if err := vecmath.CheckOwner(documentID, entries); err != nil {
		return err
	}
	return v.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", documentID); err != nil {
			return fmt.Errorf("%w: locking document: %v", domain.ErrIndex, err)
		}
		base, err := storedDims(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if _, err := vecmath.CheckDims(entries, base); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM index_entries WHERE document_id = $1", documentID); err != nil {
			return fmt.Errorf("%w: deleting entries: %v", domain.ErrIndex, err)
		}
		return upsertEntries(ctx, tx, entries)
	})
}

// Count returns the total number of entries.
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.pool.QueryRow(ctx, "SELECT COUNT(*) FROM index_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting entries: %v", domain.ErrIndex, err)
	}
	return n, nil
}

// Close closes the connection pool.
func (v *VectorIndex) Close() error {
	v.pool.Close()
	return nil
}

func (v *VectorIndex) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := v.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", domain.ErrIndex, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing transaction: %v", domain.ErrIndex, err)
	}
	return nil
}

// storedDims returns the dimensionality of entries not owned by
// excludeDocument, or 0 when there are none.
func storedDims(ctx context.Context, tx pgx.Tx, excludeDocument string) (int, error) {
	var dims int
	err := tx.QueryRow(ctx,
		"SELECT vector_dims(embedding) FROM index_entries WHERE document_id <> $1 LIMIT 1", excludeDocument,
	).Scan(&dims)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: reading dimensions: %v", domain.ErrIndex, err)
	}
	return dims, nil
}

func upsertEntries(ctx context.Context, tx pgx.Tx, entries []domain.IndexEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO index_entries (key, document_id, filename, ordinal, text, text_length, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (key) DO UPDATE SET
				document_id = EXCLUDED.document_id,
				filename = EXCLUDED.filename,
				ordinal = EXCLUDED.ordinal,
				text = EXCLUDED.text,
				text_length = EXCLUDED.text_length,
				embedding = EXCLUDED.embedding`,
			e.Key, e.Metadata.DocumentID, e.Metadata.Filename, e.Metadata.Ordinal,
			e.Text, e.Metadata.TextLength, pgvector.NewVector(e.Embedding),
		)
	}
	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for i := range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: writing entry %s: %v", domain.ErrIndex, entries[i].Key, err)
		}
	}
	return nil
}
