package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zorli-ai/docvault/internal/domain"
	"github.com/zorli-ai/docvault/internal/pagination"
	"github.com/zorli-ai/docvault/internal/service"
)

type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO documents
			(id, workspace_id, filename, media_type, size_bytes, storage_key, status, stage, fail_reason,
			 chunk_count, embedded_count, extract_method, extract_confidence, page_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		d.ID, d.WorkspaceID, d.Filename, d.MediaType, d.SizeBytes, d.StorageKey, d.Status,
		nullableString(string(d.Stage)), nullableString(d.FailReason),
		d.ChunkCount, d.EmbeddedCount, nullableString(d.ExtractMethod), d.ExtractConfidence, d.PageCount,
		d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, workspace_id, filename, media_type, size_bytes, storage_key, status, stage, fail_reason,
		        chunk_count, embedded_count, extract_method, extract_confidence, page_count, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) ListByWorkspace(ctx context.Context, workspaceID string, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.pool.Query(ctx,
			`SELECT id, workspace_id, filename, media_type, size_bytes, storage_key, status, stage, fail_reason,
			        chunk_count, embedded_count, extract_method, extract_confidence, page_count, created_at, updated_at
			 FROM documents
			 WHERE workspace_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			workspaceID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT id, workspace_id, filename, media_type, size_bytes, storage_key, status, stage, fail_reason,
			        chunk_count, embedded_count, extract_method, extract_confidence, page_count, created_at, updated_at
			 FROM documents
			 WHERE workspace_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			workspaceID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.CreatedAt)
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ClaimForProcessing atomically moves a pending document into processing.
// Only one caller can win the claim; everyone else gets
// ErrDocumentNotProcessable (or ErrDocumentNotFound if the row is gone).
func (r *DocumentRepository) ClaimForProcessing(ctx context.Context, id string) (*domain.Document, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE documents
		 SET status = $2, stage = $3, fail_reason = NULL, updated_at = $4
		 WHERE id = $1 AND status = $5
		 RETURNING id, workspace_id, filename, media_type, size_bytes, storage_key, status, stage, fail_reason,
		           chunk_count, embedded_count, extract_method, extract_confidence, page_count, created_at, updated_at`,
		id, domain.DocumentStatusProcessing, string(domain.StageExtracting), time.Now().UTC(),
		domain.DocumentStatusPending,
	)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.statusConflict(ctx, id)
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) SetStage(ctx context.Context, id string, stage domain.ProcessingStage) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE documents SET stage = $2, updated_at = $3 WHERE id = $1 AND status = $4`,
		id, string(stage), time.Now().UTC(), domain.DocumentStatusProcessing,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return r.statusConflict(ctx, id)
	}
	return nil
}

func (r *DocumentRepository) RecordExtraction(ctx context.Context, id, method string, confidence float64, pageCount int) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE documents SET extract_method = $2, extract_confidence = $3, page_count = $4, updated_at = $5
		 WHERE id = $1 AND status = $6`,
		id, nullableString(method), confidence, pageCount, time.Now().UTC(),
		domain.DocumentStatusProcessing,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return r.statusConflict(ctx, id)
	}
	return nil
}

// MarkCompleted finishes a processing run. The returned bool reports
// whether the document was still there to complete; false means it was
// removed or re-routed while the pipeline ran and the caller should
// discard its results.
func (r *DocumentRepository) MarkCompleted(ctx context.Context, id string, chunkCount, embeddedCount int) (bool, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE documents
		 SET status = $2, stage = NULL, fail_reason = NULL, chunk_count = $3, embedded_count = $4, updated_at = $5
		 WHERE id = $1 AND status = $6`,
		id, domain.DocumentStatusCompleted, chunkCount, embeddedCount, time.Now().UTC(),
		domain.DocumentStatusProcessing,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() > 0, nil
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id string, stage domain.ProcessingStage, reason string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE documents SET status = $2, stage = $3, fail_reason = $4, updated_at = $5
		 WHERE id = $1 AND status IN ($6, $7)`,
		id, domain.DocumentStatusFailed, string(stage), nullableString(reason), time.Now().UTC(),
		domain.DocumentStatusPending, domain.DocumentStatusProcessing,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return r.statusConflict(ctx, id)
	}
	return nil
}

// ResetForReprocess returns a document to pending and clears everything
// derived from the previous run. Documents mid-processing are refused.
func (r *DocumentRepository) ResetForReprocess(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE documents
		 SET status = $2, stage = NULL, fail_reason = NULL, chunk_count = 0, embedded_count = 0,
		     extract_method = NULL, extract_confidence = 0, page_count = 0, updated_at = $3
		 WHERE id = $1 AND status <> $4`,
		id, domain.DocumentStatusPending, time.Now().UTC(), domain.DocumentStatusProcessing,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return r.statusConflict(ctx, id)
	}
	return nil
}

// RequeueStaleProcessing flips documents stuck in processing back to
// pending. Run at startup, before any worker claims, to recover
// documents orphaned by a previous shutdown.
func (r *DocumentRepository) RequeueStaleProcessing(ctx context.Context) (int, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE documents SET status = $1, stage = NULL, updated_at = $2 WHERE status = $3`,
		domain.DocumentStatusPending, time.Now().UTC(), domain.DocumentStatusProcessing,
	)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

func (r *DocumentRepository) ListPendingIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM documents WHERE status = $1 ORDER BY created_at ASC`,
		domain.DocumentStatusPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *DocumentRepository) CountByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.DocumentStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[domain.DocumentStatus(status)] = n
	}
	return counts, rows.Err()
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// statusConflict picks the sentinel for a guarded update that matched no
// row: the document is either gone or in a status the update refuses.
func (r *DocumentRepository) statusConflict(ctx context.Context, id string) error {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrDocumentNotFound
	}
	if err != nil {
		return err
	}
	return domain.ErrDocumentNotProcessable
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var stage, failReason, extractMethod *string
	err := row.Scan(&d.ID, &d.WorkspaceID, &d.Filename, &d.MediaType, &d.SizeBytes, &d.StorageKey,
		&d.Status, &stage, &failReason, &d.ChunkCount, &d.EmbeddedCount,
		&extractMethod, &d.ExtractConfidence, &d.PageCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if stage != nil {
		d.Stage = domain.ProcessingStage(*stage)
	}
	if failReason != nil {
		d.FailReason = *failReason
	}
	if extractMethod != nil {
		d.ExtractMethod = *extractMethod
	}
	return &d, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
