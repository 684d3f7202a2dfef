package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// vectorIndex implements driven.VectorIndex with embeddings stored as
// little-endian float32 blobs. Queries scan every row in insertion
// order and rank in process.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Add upserts entries. ON CONFLICT keeps the row's seq, so an overwritten
// key keeps its insertion position.
func (v *vectorIndex) Add(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", domain.ErrIndex, err)
	}
	defer func() { _ = tx.Rollback() }()

	base, err := storedDims(ctx, tx, "")
	if err != nil {
		return err
	}
	if _, err := vecmath.CheckDims(entries, base); err != nil {
		return err
	}
	if err := upsertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing entries: %v", domain.ErrIndex, err)
	}
	return nil
}

// Query returns the topK most similar entries.
func (v *vectorIndex) Query(ctx context.Context, embedding []float32, topK int) ([]domain.RetrievalResult, error) {
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT key, document_id, filename, ordinal, text, text_length, embedding
		FROM index_entries ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying entries: %v", domain.ErrIndex, err)
	}
	defer rows.Close()

	var cands []vecmath.Candidate
	for rows.Next() {
		var e domain.IndexEntry
		var blob []byte
		if err := rows.Scan(&e.Key, &e.Metadata.DocumentID, &e.Metadata.Filename,
			&e.Metadata.Ordinal, &e.Text, &e.Metadata.TextLength, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning entry: %v", domain.ErrIndex, err)
		}
		e.Embedding = bytesToFloat32Slice(blob)
		if len(e.Embedding) != len(embedding) {
			return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
				domain.ErrIndex, len(embedding), len(e.Embedding))
		}
		cands = append(cands, vecmath.Candidate{Entry: e, Similarity: vecmath.Cosine(embedding, e.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating entries: %v", domain.ErrIndex, err)
	}
	return vecmath.Rank(cands, topK), nil
}

// DeleteByDocument removes every entry of the document.
func (v *vectorIndex) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()

	res, err := v.store.db.ExecContext(ctx, "DELETE FROM index_entries WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting entries: %v", domain.ErrIndex, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: counting deleted entries: %v", domain.ErrIndex, err)
	}
	return int(n), nil
}

// ReplaceDocument swaps the document's entries inside one transaction.
func (v *vectorIndex) ReplaceDocument(ctx context.Context, documentID string, entries []domain.IndexEntry) error {
	if err := vecmath.CheckOwner(documentID, entries); err != nil {
		return err
	}

	v.store.writeMu.Lock()
	defer v.store.writeMu.Unlock()

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", domain.ErrIndex, err)
	}
	defer func() { _ = tx.Rollback() }()

	base, err := storedDims(ctx, tx, documentID)
	if err != nil {
		return err
	}
	if _, err := vecmath.CheckDims(entries, base); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_entries WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("%w: deleting entries: %v", domain.ErrIndex, err)
	}
	if err := upsertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing replacement: %v", domain.ErrIndex, err)
	}
	return nil
}

// Count returns the total number of entries.
func (v *vectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM index_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting entries: %v", domain.ErrIndex, err)
	}
	return n, nil
}

// Close is a no-op; the owning Store closes the database.
func (v *vectorIndex) Close() error {
	return nil
}

// storedDims returns the dimensionality of entries not owned by
// excludeDocument, or 0 when there are none.
func storedDims(ctx context.Context, tx *sql.Tx, excludeDocument string) (int, error) {
	var n sql.NullInt64
	err := tx.QueryRowContext(ctx,
		"SELECT length(embedding) FROM index_entries WHERE document_id != ? LIMIT 1", excludeDocument).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: reading dimensions: %v", domain.ErrIndex, err)
	}
	return int(n.Int64) / 4, nil
}

func upsertEntries(ctx context.Context, tx *sql.Tx, entries []domain.IndexEntry) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO index_entries (key, document_id, filename, ordinal, text, text_length, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			document_id = excluded.document_id,
			filename = excluded.filename,
			ordinal = excluded.ordinal,
			text = excluded.text,
			text_length = excluded.text_length,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("%w: preparing upsert: %v", domain.ErrIndex, err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Key, e.Metadata.DocumentID, e.Metadata.Filename,
			e.Metadata.Ordinal, e.Text, e.Metadata.TextLength, float32SliceToBytes(e.Embedding)); err != nil {
			return fmt.Errorf("%w: writing entry %s: %v", domain.ErrIndex, e.Key, err)
		}
	}
	return nil
}
