package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/zorli-ai/docvault/internal/domain"
)

// dbtx is the pgx surface shared by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ChunkRepository handles persistence of extracted document chunks.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// ReplaceForDocument swaps a document's chunk set in one transaction so
// a concurrent reader never sees a half-written set.
func (r *ChunkRepository) ReplaceForDocument(ctx context.Context, documentID string, chunks []domain.DocumentChunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := replaceChunks(ctx, tx, documentID, chunks); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func replaceChunks(ctx context.Context, db dbtx, documentID string, chunks []domain.DocumentChunk) error {
	if _, err := db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := db.Exec(ctx,
			`INSERT INTO document_chunks
				(id, document_id, workspace_id, filename, chunk_index, content, start_word, end_word, word_count, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			c.ID, c.DocumentID, c.WorkspaceID, c.Filename, c.ChunkIndex, c.Content,
			c.StartWord, c.EndWord, c.WordCount, nullableVector(c.Embedding), createdAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return err
}

func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.DocumentChunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, workspace_id, filename, chunk_index, content, start_word, end_word, word_count, embedding, created_at
		 FROM document_chunks WHERE document_id = $1 ORDER BY chunk_index ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ListPage walks every chunk in id order, limit rows at a time. Pass the
// last id of the previous page to get the next one; an empty page means
// the walk is done.
func (r *ChunkRepository) ListPage(ctx context.Context, afterID string, limit int) ([]domain.DocumentChunk, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_id, workspace_id, filename, chunk_index, content, start_word, end_word, word_count, embedding, created_at
		 FROM document_chunks WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

func scanChunkRows(rows pgx.Rows) ([]domain.DocumentChunk, error) {
	var chunks []domain.DocumentChunk
	for rows.Next() {
		var c domain.DocumentChunk
		var embedding *pgvector.Vector
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.WorkspaceID, &c.Filename, &c.ChunkIndex, &c.Content,
			&c.StartWord, &c.EndWord, &c.WordCount, &embedding, &c.CreatedAt); err != nil {
			return nil, err
		}
		if embedding != nil {
			c.Embedding = embedding.Slice()
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func nullableVector(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}
