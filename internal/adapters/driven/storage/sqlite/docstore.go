package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = "id, filename, byte_size, uploaded_at, processed, chunk_count, error"

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return domain.ErrInvalidInput
	}

	var chunkCount sql.NullInt64
	if doc.ChunkCount != nil {
		chunkCount = sql.NullInt64{Int64: int64(*doc.ChunkCount), Valid: true}
	}

	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, byte_size, uploaded_at, processed, chunk_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			byte_size = excluded.byte_size,
			uploaded_at = excluded.uploaded_at,
			processed = excluded.processed,
			chunk_count = excluded.chunk_count,
			error = excluded.error
	`, doc.ID, doc.Filename, doc.ByteSize, formatTime(doc.UploadedAt),
		boolToInt(doc.Processed), chunkCount, nullString(doc.Error))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	return scanDocument(row)
}

// ListDocuments returns all documents, newest upload first.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents ORDER BY uploaded_at DESC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document record.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	res, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return requireAffected(res, id)
}

// MarkProcessed records a successful indexing run.
func (s *documentStore) MarkProcessed(ctx context.Context, id string, chunkCount int) error {
	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	res, err := s.store.db.ExecContext(ctx,
		"UPDATE documents SET processed = 1, chunk_count = ?, error = NULL WHERE id = ?", chunkCount, id)
	if err != nil {
		return fmt.Errorf("marking document processed: %w", err)
	}
	return requireAffected(res, id)
}

// MarkFailed records a failed indexing run.
func (s *documentStore) MarkFailed(ctx context.Context, id string, reason string) error {
	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	res, err := s.store.db.ExecContext(ctx,
		"UPDATE documents SET processed = 0, chunk_count = NULL, error = ? WHERE id = ?", reason, id)
	if err != nil {
		return fmt.Errorf("marking document failed: %w", err)
	}
	return requireAffected(res, id)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var uploadedAt string
	var processed int
	var chunkCount sql.NullInt64
	var errText sql.NullString

	if err := row.Scan(&doc.ID, &doc.Filename, &doc.ByteSize, &uploadedAt,
		&processed, &chunkCount, &errText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	t, err := parseTime(uploadedAt)
	if err != nil {
		return nil, err
	}
	doc.UploadedAt = t
	doc.Processed = processed != 0
	if chunkCount.Valid {
		n := int(chunkCount.Int64)
		doc.ChunkCount = &n
	}
	doc.Error = errText.String
	return &doc, nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return nil
}
