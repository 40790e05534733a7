//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zorli-ai/docvault/internal/domain"
	"github.com/zorli-ai/docvault/internal/pagination"
	"github.com/zorli-ai/docvault/internal/testutil"
)

func insertTestDocument(ctx context.Context, t *testing.T, repo *DocumentRepository, workspaceID string) *domain.Document {
	t.Helper()
	id := uuid.NewString()
	doc := domain.NewDocument(
		id, workspaceID, "report.pdf", "application/pdf",
		"workspaces/"+workspaceID+"/documents/"+id+"/report.pdf",
		2048, time.Now().UTC().Truncate(time.Microsecond),
	)
	require.NoError(t, repo.Create(ctx, doc))
	return doc
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := insertTestDocument(ctx, t, repo, "ws-create")

	retrieved, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, retrieved.ID)
	assert.Equal(t, "ws-create", retrieved.WorkspaceID)
	assert.Equal(t, "report.pdf", retrieved.Filename)
	assert.Equal(t, "application/pdf", retrieved.MediaType)
	assert.Equal(t, int64(2048), retrieved.SizeBytes)
	assert.Equal(t, doc.StorageKey, retrieved.StorageKey)
	assert.Equal(t, domain.DocumentStatusPending, retrieved.Status)
	assert.Empty(t, retrieved.Stage)
	assert.Empty(t, retrieved.FailReason)
	assert.Zero(t, retrieved.ChunkCount)
}

func TestDocumentRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_ListByWorkspace_Pagination(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	var ids []string
	for i := 0; i < 5; i++ {
		id := uuid.NewString()
		doc := domain.NewDocument(id, "ws-list", "report.pdf", "application/pdf",
			"workspaces/ws-list/documents/"+id+"/report.pdf", 100, base.Add(-time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, doc))
		ids = append(ids, id)
	}
	insertTestDocument(ctx, t, repo, "ws-other")

	page1, err := repo.ListByWorkspace(ctx, "ws-list", nil, 2)
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	assert.True(t, page1.HasMore)
	assert.NotEmpty(t, page1.NextCursor)
	assert.Equal(t, ids[0], page1.Items[0].ID)
	assert.Equal(t, ids[1], page1.Items[1].ID)

	cursor, err := pagination.DecodeCursor(page1.NextCursor)
	require.NoError(t, err)

	page2, err := repo.ListByWorkspace(ctx, "ws-list", cursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	assert.True(t, page2.HasMore)
	assert.Equal(t, ids[2], page2.Items[0].ID)
	assert.Equal(t, ids[3], page2.Items[1].ID)

	cursor, err = pagination.DecodeCursor(page2.NextCursor)
	require.NoError(t, err)

	page3, err := repo.ListByWorkspace(ctx, "ws-list", cursor, 2)
	require.NoError(t, err)
	require.Len(t, page3.Items, 1)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.NextCursor)
	assert.Equal(t, ids[4], page3.Items[0].ID)

	for _, p := range [][]*domain.Document{page1.Items, page2.Items, page3.Items} {
		for _, d := range p {
			assert.Equal(t, "ws-list", d.WorkspaceID)
		}
	}
}

func TestDocumentRepository_ClaimForProcessing(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := insertTestDocument(ctx, t, repo, "ws-claim")

	claimed, err := repo.ClaimForProcessing(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusProcessing, claimed.Status)
	assert.Equal(t, domain.StageExtracting, claimed.Stage)

	_, err = repo.ClaimForProcessing(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotProcessable)

	_, err = repo.ClaimForProcessing(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_ProcessingLifecycle(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := insertTestDocument(ctx, t, repo, "ws-lifecycle")

	_, err := repo.ClaimForProcessing(ctx, doc.ID)
	require.NoError(t, err)

	require.NoError(t, repo.RecordExtraction(ctx, doc.ID, "pdf_text", 0.95, 4))
	require.NoError(t, repo.SetStage(ctx, doc.ID, domain.StageChunking))
	require.NoError(t, repo.SetStage(ctx, doc.ID, domain.StageIndexing))

	done, err := repo.MarkCompleted(ctx, doc.ID, 7, 5)
	require.NoError(t, err)
	assert.True(t, done)

	retrieved, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusCompleted, retrieved.Status)
	assert.Empty(t, retrieved.Stage)
	assert.Empty(t, retrieved.FailReason)
	assert.Equal(t, 7, retrieved.ChunkCount)
	assert.Equal(t, 5, retrieved.EmbeddedCount)
	assert.Equal(t, "pdf_text", retrieved.ExtractMethod)
	assert.InDelta(t, 0.95, retrieved.ExtractConfidence, 1e-9)
	assert.Equal(t, 4, retrieved.PageCount)
}

func TestDocumentRepository_MarkCompleted_Guarded(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	// Still pending, never claimed.
	pending := insertTestDocument(ctx, t, repo, "ws-guard")
	done, err := repo.MarkCompleted(ctx, pending.ID, 1, 1)
	require.NoError(t, err)
	assert.False(t, done)

	// Removed while processing.
	removed := insertTestDocument(ctx, t, repo, "ws-guard")
	_, err = repo.ClaimForProcessing(ctx, removed.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, removed.ID))

	done, err = repo.MarkCompleted(ctx, removed.ID, 1, 1)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestDocumentRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := insertTestDocument(ctx, t, repo, "ws-fail")

	_, err := repo.ClaimForProcessing(ctx, doc.ID)
	require.NoError(t, err)

	require.NoError(t, repo.MarkFailed(ctx, doc.ID, domain.StageEmbedding, "embedding provider is unavailable"))

	retrieved, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusFailed, retrieved.Status)
	assert.Equal(t, domain.StageEmbedding, retrieved.Stage)
	assert.Equal(t, "embedding provider is unavailable", retrieved.FailReason)

	// Completed documents cannot be flipped to failed.
	other := insertTestDocument(ctx, t, repo, "ws-fail")
	_, err = repo.ClaimForProcessing(ctx, other.ID)
	require.NoError(t, err)
	_, err = repo.MarkCompleted(ctx, other.ID, 1, 1)
	require.NoError(t, err)
	err = repo.MarkFailed(ctx, other.ID, domain.StageIndexing, "late failure")
	assert.ErrorIs(t, err, domain.ErrDocumentNotProcessable)
}

func TestDocumentRepository_ResetForReprocess(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := insertTestDocument(ctx, t, repo, "ws-reset")

	_, err := repo.ClaimForProcessing(ctx, doc.ID)
	require.NoError(t, err)
	require.NoError(t, repo.RecordExtraction(ctx, doc.ID, "pdf_text", 0.9, 2))
	require.NoError(t, repo.MarkFailed(ctx, doc.ID, domain.StageEmbedding, "boom"))

	require.NoError(t, repo.ResetForReprocess(ctx, doc.ID))

	retrieved, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusPending, retrieved.Status)
	assert.Empty(t, retrieved.Stage)
	assert.Empty(t, retrieved.FailReason)
	assert.Empty(t, retrieved.ExtractMethod)
	assert.Zero(t, retrieved.ExtractConfidence)
	assert.Zero(t, retrieved.PageCount)
	assert.Zero(t, retrieved.ChunkCount)
	assert.Zero(t, retrieved.EmbeddedCount)

	// A claimed document refuses the reset.
	claimed := insertTestDocument(ctx, t, repo, "ws-reset")
	_, err = repo.ClaimForProcessing(ctx, claimed.ID)
	require.NoError(t, err)
	err = repo.ResetForReprocess(ctx, claimed.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotProcessable)

	err = repo.ResetForReprocess(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_RequeueStaleProcessing(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)

	stale1 := insertTestDocument(ctx, t, repo, "ws-requeue")
	stale2 := insertTestDocument(ctx, t, repo, "ws-requeue")
	pending := insertTestDocument(ctx, t, repo, "ws-requeue")
	_, err := repo.ClaimForProcessing(ctx, stale1.ID)
	require.NoError(t, err)
	_, err = repo.ClaimForProcessing(ctx, stale2.ID)
	require.NoError(t, err)

	n, err := repo.RequeueStaleProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids, err := repo.ListPendingIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{stale1.ID, stale2.ID, pending.ID}, ids)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[domain.DocumentStatusPending])
	assert.Zero(t, counts[domain.DocumentStatusProcessing])
}

func TestDocumentRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := insertTestDocument(ctx, t, repo, "ws-delete")

	require.NoError(t, repo.Delete(ctx, doc.ID))

	_, err := repo.GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	err = repo.Delete(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}
